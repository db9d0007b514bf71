package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/parts-dashboard/internal/config"
	"github.com/jonathan/parts-dashboard/internal/db"
	"github.com/jonathan/parts-dashboard/internal/types"
	"github.com/jonathan/parts-dashboard/internal/zuper"
)

func rawJob(uid, number string) types.RawRecord {
	return types.RawRecord{
		"job_uid":            uid,
		"job_number":         number,
		"job_title":          "Job " + number,
		"job_category":       map[string]any{"category_name": config.DefaultJobCategory},
		"current_job_status": "Parts On Order",
		"latitude":           52.1,
		"longitude":          5.1,
	}
}

func TestSync(t *testing.T) {
	env := newTestEnv(t)
	env.source.result = &zuper.FetchResult{
		Records:      []types.RawRecord{rawJob("uid-1", "1001"), rawJob("uid-2", "1002")},
		PagesFetched: 1,
		TotalPages:   1,
		Outcome:      types.FetchComplete,
	}

	w := env.do(t, http.MethodPost, "/sync", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[SyncResponse](t, w)
	require.NotNil(t, resp.Run)
	assert.Equal(t, types.SyncStatusCompleted, resp.Run.Status)
	assert.Equal(t, 2, resp.Run.JobsFetched)
	assert.Equal(t, 2, resp.Run.JobsCreated)
	assert.Empty(t, resp.Error)

	page := decode[db.JobPage](t, env.do(t, http.MethodGet, "/jobs", ""))
	assert.Equal(t, 2, page.Total)

	w = env.do(t, http.MethodGet, "/sync/last", "")
	require.Equal(t, http.StatusOK, w.Code)
	last := decode[map[string]*types.SyncRun](t, w)
	require.NotNil(t, last["last_sync"])
	assert.Equal(t, resp.Run.RunUID, last["last_sync"].RunUID)
	assert.NotNil(t, last["last_sync"].CompletedAt)
}

func TestSync_FailedRunIsReported(t *testing.T) {
	env := newTestEnv(t)
	env.source.result = &zuper.FetchResult{
		Records:      []types.RawRecord{rawJob("uid-1", "1001")},
		PagesFetched: 1,
		TotalPages:   3,
		Outcome:      types.FetchPartial,
		Err:          errors.New("failed to fetch page 2: server error"),
	}

	w := env.do(t, http.MethodPost, "/sync", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[SyncResponse](t, w)
	assert.Equal(t, types.SyncStatusFailed, resp.Run.Status)
	assert.Equal(t, types.FetchPartial, resp.Run.FetchOutcome)
	assert.Equal(t, 1, resp.Run.JobsCreated)
	require.NotEmpty(t, resp.Run.ErrorMessages)
	assert.Contains(t, resp.Run.ErrorMessages[0], "API error")
}

func TestSync_ClientDisconnectDoesNotAbortWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.source.result = &zuper.FetchResult{
		Records:      []types.RawRecord{rawJob("uid-1", "1001"), rawJob("uid-2", "1002"), rawJob("uid-3", "1003")},
		PagesFetched: 1,
		TotalPages:   1,
		Outcome:      types.FetchComplete,
	}
	env.source.afterFetch = cancel

	req := httptest.NewRequest(http.MethodPost, "/sync", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[SyncResponse](t, w)
	assert.Equal(t, types.SyncStatusCompleted, resp.Run.Status)
	assert.Equal(t, 3, resp.Run.JobsCreated)
	assert.Empty(t, resp.Run.ErrorMessages)

	count, err := env.store.CountJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSync_Unavailable(t *testing.T) {
	unconfigured := newTestEnv(t, withoutSource())
	w := unconfigured.do(t, http.MethodPost, "/sync", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not configured")

	runs := decode[map[string][]types.SyncRun](t, unconfigured.do(t, http.MethodGet, "/sync/runs", ""))
	assert.Empty(t, runs["runs"], "no run is logged when the source is missing")

	disabled := newTestEnv(t, withFeatures(config.FeatureFlags{BulkLookup: true}))
	w = disabled.do(t, http.MethodPost, "/sync", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "manual_sync")
}

func TestLastSync_NoRuns(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/sync/last", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"last_sync": null}`, w.Body.String())
}

func TestListSyncRuns(t *testing.T) {
	env := newTestEnv(t)
	for range 3 {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/sync", "").Code)
	}

	runs := decode[map[string][]types.SyncRun](t, env.do(t, http.MethodGet, "/sync/runs", ""))
	assert.Len(t, runs["runs"], 3)

	runs = decode[map[string][]types.SyncRun](t, env.do(t, http.MethodGet, "/sync/runs?limit=2", ""))
	require.Len(t, runs["runs"], 2)
	assert.GreaterOrEqual(t, runs["runs"][0].ID, runs["runs"][1].ID)

	w := env.do(t, http.MethodGet, "/sync/runs?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
