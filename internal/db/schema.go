package db

import (
	"context"
	"fmt"
	"strings"
)

// Timestamps are stored as TEXT in canonical form so both engines compare
// them the same way and the sqlite driver does not convert them.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS jobs (
	external_id          TEXT PRIMARY KEY,
	display_number       TEXT NOT NULL,
	title                TEXT,
	description          TEXT,
	status               TEXT,
	category             TEXT,
	priority             TEXT NOT NULL DEFAULT 'Normal',
	customer_name        TEXT,
	customer_id          TEXT,
	address              TEXT,
	latitude             {{FLOAT}},
	longitude            {{FLOAT}},
	assigned_technician  TEXT,
	technician_id        TEXT,
	scheduled_start      TEXT,
	scheduled_end        TEXT,
	actual_start         TEXT,
	actual_end           TEXT,
	created_at           TEXT,
	updated_at           TEXT,
	parts_status         TEXT,
	parts_delivered_at   TEXT,
	custom_fields        TEXT NOT NULL DEFAULT '{}',
	tags                 TEXT NOT NULL DEFAULT '[]',
	last_synced_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_display_number ON jobs (display_number);
CREATE INDEX IF NOT EXISTS idx_jobs_category ON jobs (category);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status);
CREATE INDEX IF NOT EXISTS idx_jobs_scheduled_start ON jobs (scheduled_start);

CREATE TABLE IF NOT EXISTS sync_log (
	id                {{SERIAL}},
	run_uid           TEXT NOT NULL UNIQUE,
	started_at        TEXT NOT NULL,
	completed_at      TEXT,
	status            TEXT NOT NULL,
	fetch_outcome     TEXT,
	jobs_fetched      INTEGER NOT NULL DEFAULT 0,
	jobs_created      INTEGER NOT NULL DEFAULT 0,
	jobs_updated      INTEGER NOT NULL DEFAULT 0,
	error_messages    TEXT,
	duration_seconds  {{FLOAT}}
);

CREATE INDEX IF NOT EXISTS idx_sync_log_started_at ON sync_log (started_at);
`

// SchemaStatements returns the DDL for dialect, one statement per element.
func SchemaStatements(dialect Dialect) []string {
	replacer := strings.NewReplacer(
		"{{FLOAT}}", "REAL",
		"{{SERIAL}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
	)
	if dialect == DialectPostgres {
		replacer = strings.NewReplacer(
			"{{FLOAT}}", "DOUBLE PRECISION",
			"{{SERIAL}}", "BIGSERIAL PRIMARY KEY",
		)
	}

	var statements []string
	for _, stmt := range strings.Split(replacer.Replace(schemaTemplate), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// EnsureSchema creates missing tables and indexes. It is idempotent.
func EnsureSchema(ctx context.Context, gw Gateway) error {
	for _, stmt := range SchemaStatements(gw.Dialect()) {
		if _, err := gw.Execute(ctx, stmt, nil, false); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
