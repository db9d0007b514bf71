package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/parts-dashboard/internal/types"
)

const syncLogColumns = "id, run_uid, started_at, completed_at, status, fetch_outcome, " +
	"jobs_fetched, jobs_created, jobs_updated, error_messages, duration_seconds"

// CreateSyncRun inserts run with its current status and sets run.ID.
func (db *DB) CreateSyncRun(ctx context.Context, run *types.SyncRun) error {
	result, err := db.gw.Execute(ctx,
		`INSERT INTO sync_log (run_uid, started_at, status, jobs_fetched, jobs_created, jobs_updated)
		 VALUES (?, ?, ?, 0, 0, 0)
		 RETURNING id`,
		[]any{run.RunUID, formatSyncTime(run.StartedAt), string(run.Status)}, true)
	if err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	rows := rowsOf(result)
	if len(rows) == 0 {
		return fmt.Errorf("failed to create sync run: no id returned")
	}
	run.ID = int64(rows[0].int("id"))
	return nil
}

// CompleteSyncRun writes the final state of run. Error messages are stored
// newline-joined, one message per line.
func (db *DB) CompleteSyncRun(ctx context.Context, run *types.SyncRun) error {
	var completedAt any
	if run.CompletedAt != nil {
		completedAt = formatSyncTime(*run.CompletedAt)
	}

	result, err := db.gw.Execute(ctx,
		`UPDATE sync_log SET
			completed_at = ?,
			status = ?,
			fetch_outcome = ?,
			jobs_fetched = ?,
			jobs_created = ?,
			jobs_updated = ?,
			error_messages = ?,
			duration_seconds = ?
		 WHERE id = ?`,
		[]any{
			completedAt,
			string(run.Status),
			string(run.FetchOutcome),
			run.JobsFetched,
			run.JobsCreated,
			run.JobsUpdated,
			joinErrors(run.ErrorMessages),
			run.DurationSeconds,
			run.ID,
		}, false)
	if err != nil {
		return fmt.Errorf("failed to complete sync run %s: %w", run.RunUID, err)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to complete sync run %s: no row with id %d", run.RunUID, run.ID)
	}
	return nil
}

// GetLastSyncRun returns the most recently started run, or nil if none exist.
func (db *DB) GetLastSyncRun(ctx context.Context) (*types.SyncRun, error) {
	runs, err := db.ListSyncRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// ListSyncRuns returns up to limit runs, newest first.
func (db *DB) ListSyncRuns(ctx context.Context, limit int) ([]types.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	result, err := db.gw.Execute(ctx,
		"SELECT "+syncLogColumns+" FROM sync_log ORDER BY started_at DESC, id DESC LIMIT ?",
		[]any{limit}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}

	runs := make([]types.SyncRun, 0, result.Len())
	for _, r := range rowsOf(result) {
		run := types.SyncRun{
			ID:              int64(r.int("id")),
			RunUID:          r.str("run_uid"),
			StartedAt:       parseSyncTime(r.str("started_at")),
			Status:          types.SyncStatus(r.str("status")),
			FetchOutcome:    types.FetchOutcome(r.str("fetch_outcome")),
			JobsFetched:     r.int("jobs_fetched"),
			JobsCreated:     r.int("jobs_created"),
			JobsUpdated:     r.int("jobs_updated"),
			ErrorMessages:   splitErrors(r.str("error_messages")),
			DurationSeconds: r.float("duration_seconds"),
		}
		if completed := r.strPtr("completed_at"); completed != nil {
			t := parseSyncTime(*completed)
			run.CompletedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func formatSyncTime(t time.Time) string {
	return t.UTC().Format(types.SyncTimestampLayout)
}

func parseSyncTime(s string) time.Time {
	for _, layout := range []string{types.SyncTimestampLayout, types.TimestampLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func joinErrors(msgs []string) any {
	if len(msgs) == 0 {
		return nil
	}
	lines := make([]string, len(msgs))
	for i, m := range msgs {
		lines[i] = strings.ReplaceAll(m, "\n", " ")
	}
	return strings.Join(lines, "\n")
}

func splitErrors(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}
