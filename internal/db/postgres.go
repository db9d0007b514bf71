package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresGateway runs statements on a bounded pgx connection pool.
type PostgresGateway struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates the pool and verifies connectivity.
func OpenPostgres(ctx context.Context, databaseURL string, minConns, maxConns int) (*PostgresGateway, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}
	if minConns > 0 {
		poolConfig.MinConns = int32(minConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresGateway{pool: pool}, nil
}

// Dialect implements Gateway.
func (g *PostgresGateway) Dialect() Dialect {
	return DialectPostgres
}

// Ping implements Gateway.
func (g *PostgresGateway) Ping(ctx context.Context) error {
	return g.pool.Ping(ctx)
}

// Close implements Gateway.
func (g *PostgresGateway) Close() error {
	if g.pool != nil {
		g.pool.Close()
	}
	return nil
}

// Execute implements Gateway.
func (g *PostgresGateway) Execute(ctx context.Context, stmt string, args []any, fetch bool) (*Result, error) {
	var result *Result
	err := pgx.BeginFunc(ctx, g.pool, func(tx pgx.Tx) error {
		if fetch {
			rows, err := tx.Query(ctx, Rebind(stmt), args...)
			if err != nil {
				return err
			}
			result, err = collectRows(rows)
			return err
		}
		tag, err := tx.Exec(ctx, Rebind(stmt), args...)
		if err != nil {
			return err
		}
		result = &Result{RowsAffected: tag.RowsAffected()}
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: "execute", Err: err}
	}
	return result, nil
}

// ExecuteBatch implements Gateway. All parameter sets are sent in one round trip.
func (g *PostgresGateway) ExecuteBatch(ctx context.Context, stmt string, argSets [][]any) (int64, error) {
	var total int64
	err := pgx.BeginFunc(ctx, g.pool, func(tx pgx.Tx) error {
		query := Rebind(stmt)
		batch := &pgx.Batch{}
		for _, args := range argSets {
			batch.Queue(query, args...)
		}

		br := tx.SendBatch(ctx, batch)
		for i := range argSets {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return fmt.Errorf("parameter set %d: %w", i, err)
			}
			total += tag.RowsAffected()
		}
		return br.Close()
	})
	if err != nil {
		return 0, &StorageError{Op: "execute batch", Err: err}
	}
	return total, nil
}

func collectRows(rows pgx.Rows) (*Result, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := &Result{Columns: make([]string, len(fields))}
	for i, fd := range fields {
		result.Columns[i] = fd.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		for i := range values {
			values[i] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
