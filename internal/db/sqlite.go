package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // register the sqlite3 driver
)

// SQLiteGateway is the embedded engine. It keeps one reusable handle, which
// also makes ":memory:" databases behave as a single database.
type SQLiteGateway struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteGateway, error) {
	db, err := sql.Open(string(DialectSQLite), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return &SQLiteGateway{db: db}, nil
}

// Dialect implements Gateway.
func (g *SQLiteGateway) Dialect() Dialect {
	return DialectSQLite
}

// Ping implements Gateway.
func (g *SQLiteGateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

// Close implements Gateway.
func (g *SQLiteGateway) Close() error {
	return g.db.Close()
}

// Execute implements Gateway.
func (g *SQLiteGateway) Execute(ctx context.Context, stmt string, args []any, fetch bool) (*Result, error) {
	var result *Result
	err := g.withTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		if fetch {
			result, err = queryRows(ctx, tx, stmt, args)
			return err
		}
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		affected, _ := res.RowsAffected()
		result = &Result{RowsAffected: affected}
		return nil
	})
	if err != nil {
		return nil, &StorageError{Op: "execute", Err: err}
	}
	return result, nil
}

// ExecuteBatch implements Gateway.
func (g *SQLiteGateway) ExecuteBatch(ctx context.Context, stmt string, argSets [][]any) (int64, error) {
	var total int64
	err := g.withTransaction(ctx, func(tx *sql.Tx) error {
		prepared, err := tx.PrepareContext(ctx, stmt)
		if err != nil {
			return err
		}
		defer func() { _ = prepared.Close() }()

		for i, args := range argSets {
			res, err := prepared.ExecContext(ctx, args...)
			if err != nil {
				return fmt.Errorf("parameter set %d: %w", i, err)
			}
			affected, _ := res.RowsAffected()
			total += affected
		}
		return nil
	})
	if err != nil {
		return 0, &StorageError{Op: "execute batch", Err: err}
	}
	return total, nil
}

// withTransaction runs fn in a transaction, committing on success and
// rolling back on error or panic.
func (g *SQLiteGateway) withTransaction(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func queryRows(ctx context.Context, tx *sql.Tx, stmt string, args []any) (*Result, error) {
	rows, err := tx.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
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
