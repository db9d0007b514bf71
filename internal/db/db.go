package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/parts-dashboard/internal/config"
	"github.com/jonathan/parts-dashboard/internal/geo"
)

// Scope defines which stored jobs the dashboard shows.
type Scope struct {
	Category string
	Bounds   geo.BoundingBox
}

// ScopeFromConfig builds the dashboard scope from app settings.
func ScopeFromConfig(app config.AppConfig) Scope {
	return Scope{Category: app.JobCategory, Bounds: app.Bounds}
}

// DB is the job store. It owns a Gateway and is shared by the sync
// orchestrator (the only writer) and any number of readers.
type DB struct {
	gw     Gateway
	scope  Scope
	logger *zap.Logger
}

// New wraps an open gateway.
func New(gw Gateway, scope Scope, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{gw: gw, scope: scope, logger: logger.Named("db")}
}

// Open connects to the configured engine and ensures the schema exists.
func Open(ctx context.Context, cfg config.DatabaseConfig, scope Scope, logger *zap.Logger) (*DB, error) {
	var gw Gateway
	switch Dialect(cfg.Driver) {
	case DialectPostgres:
		pg, err := OpenPostgres(ctx, cfg.DSN, cfg.MinConns, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		gw = pg
	case DialectSQLite, "":
		lite, err := OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		gw = lite
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}

	if err := EnsureSchema(ctx, gw); err != nil {
		_ = gw.Close()
		return nil, err
	}

	db := New(gw, scope, logger)
	db.logger.Info("database ready", zap.String("driver", string(gw.Dialect())))
	return db, nil
}

// Gateway returns the underlying statement gateway.
func (db *DB) Gateway() Gateway {
	return db.gw
}

// Scope returns the dashboard scope queries are filtered by.
func (db *DB) Scope() Scope {
	return db.scope
}

// Ping checks that the store is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.gw.Ping(ctx)
}

// Close releases the gateway.
func (db *DB) Close() error {
	if db.gw == nil {
		return nil
	}
	return db.gw.Close()
}
