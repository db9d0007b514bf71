//go:build integration

package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/parts-dashboard/internal/config"
	"github.com/jonathan/parts-dashboard/internal/geo"
	"github.com/jonathan/parts-dashboard/internal/types"
)

func newPostgresTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := Open(context.Background(),
		config.DatabaseConfig{Driver: "postgres", DSN: dsn, MinConns: 1, MaxConns: 4},
		Scope{Category: config.DefaultJobCategory, Bounds: geo.EuropeBounds},
		zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostgres_UpsertAndLookup(t *testing.T) {
	db := newPostgresTestDB(t)
	ctx := context.Background()

	id := "it-" + uuid.NewString()
	number := "IT-" + id[len(id)-8:]
	t.Cleanup(func() {
		_, _ = db.Gateway().Execute(context.Background(), "DELETE FROM jobs WHERE external_id = ?", []any{id}, false)
	})

	job := testJob(id, number)
	outcome, err := db.UpsertJob(ctx, job, syncTime)
	require.NoError(t, err)
	assert.Equal(t, UpsertCreated, outcome)

	job.Title = "changed"
	outcome, err = db.UpsertJob(ctx, job, syncTime)
	require.NoError(t, err)
	assert.Equal(t, UpsertUpdated, outcome)

	result, err := db.GetJobsByDisplayNumbers(ctx, []string{number, "IT-missing"})
	require.NoError(t, err)
	require.Len(t, result.Jobs, 1)
	assert.Equal(t, "changed", result.Jobs[0].Title)
	assert.Equal(t, []string{"IT-missing"}, result.NotFound)

	stats, err := db.GetJobStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.TotalJobs, stats.PartsDelivered+stats.PartsPending)
}

func TestPostgres_SyncLog(t *testing.T) {
	db := newPostgresTestDB(t)
	ctx := context.Background()

	run := &types.SyncRun{RunUID: uuid.NewString(), StartedAt: syncTime, Status: types.SyncStatusRunning}
	require.NoError(t, db.CreateSyncRun(ctx, run))
	t.Cleanup(func() {
		_, _ = db.Gateway().Execute(context.Background(), "DELETE FROM sync_log WHERE id = ?", []any{run.ID}, false)
	})

	run.Finish(types.SyncStatusCompleted, syncTime.Add(1500*time.Millisecond))
	require.NoError(t, db.CompleteSyncRun(ctx, run))

	runs, err := db.ListSyncRuns(ctx, 50)
	require.NoError(t, err)
	var found bool
	for _, r := range runs {
		if r.RunUID == run.RunUID {
			found = true
			assert.Equal(t, types.SyncStatusCompleted, r.Status)
		}
	}
	assert.True(t, found)
}
