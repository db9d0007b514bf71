// Package db provides the local job store: a transactional statement gateway
// over PostgreSQL or SQLite and the job and sync-log queries built on it.
package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Dialect identifies the storage engine behind a Gateway.
type Dialect string

// Supported dialects. The values double as config driver names.
const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// Result holds the rows of a fetching statement, or the affected row count
// of a non-fetching one.
type Result struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Gateway executes parameterized statements. Every call runs in its own
// transaction: committed on success, rolled back on any error, with the
// underlying connection released either way. Statements use ? placeholders.
type Gateway interface {
	Execute(ctx context.Context, stmt string, args []any, fetch bool) (*Result, error)
	ExecuteBatch(ctx context.Context, stmt string, argSets [][]any) (int64, error)
	Dialect() Dialect
	Ping(ctx context.Context) error
	Close() error
}

// StorageError wraps a failed gateway operation. The transaction it ran in
// has been rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Rebind rewrites ? placeholders as $1, $2, ... Question marks inside
// single-quoted literals are left alone.
func Rebind(stmt string) string {
	var b strings.Builder
	b.Grow(len(stmt) + 16)
	n := 0
	inQuote := false
	for _, r := range stmt {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// placeholders returns "?, ?, ?" for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// normalizeValue maps driver-specific scan results onto string, int64,
// float64, bool or nil.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case int16:
		return int64(t)
	case float32:
		return float64(t)
	}
	return v
}
