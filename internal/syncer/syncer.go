// Package syncer runs the fetch, normalize and upsert pipeline and records
// every run in the sync log.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/parts-dashboard/internal/db"
	"github.com/jonathan/parts-dashboard/internal/logging"
	"github.com/jonathan/parts-dashboard/internal/normalize"
	"github.com/jonathan/parts-dashboard/internal/types"
	"github.com/jonathan/parts-dashboard/internal/zuper"
)

// ErrNotConfigured is returned by RunSync when no job source is available.
var ErrNotConfigured = errors.New("job source is not configured")

// JobSource fetches every in-scope raw record. *zuper.Client implements it.
type JobSource interface {
	FetchAllInScopeJobs(ctx context.Context) *zuper.FetchResult
}

// Store is the part of the local store the orchestrator writes to.
type Store interface {
	UpsertJob(ctx context.Context, job *types.JobRecord, syncedAt time.Time) (db.UpsertOutcome, error)
	CreateSyncRun(ctx context.Context, run *types.SyncRun) error
	CompleteSyncRun(ctx context.Context, run *types.SyncRun) error
	GetLastSyncRun(ctx context.Context) (*types.SyncRun, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the clock used for run and sync timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRunID replaces the run id generator.
func WithRunID(newID func() string) Option {
	return func(m *Manager) { m.newID = newID }
}

// Manager coordinates sync runs. A nil source means the API is not configured.
type Manager struct {
	source     JobSource
	store      Store
	normalizer *normalize.Normalizer
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// NewManager creates a Manager. source may be nil when the remote API is not configured.
func NewManager(source JobSource, store Store, logger *zap.Logger, opts ...Option) *Manager {
	logger = logging.OrNop(logger)
	m := &Manager{
		source:     source,
		store:      store,
		normalizer: normalize.New(logger),
		logger:     logger.Named("syncer"),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configured reports whether RunSync can reach the remote API.
func (m *Manager) Configured() bool {
	return m.source != nil
}

// RunSync performs one full sync and returns its stats.
//
// The run row is written as running before anything is fetched and updated
// exactly once at the end. Per-record failures are collected on the run and
// never abort it. Canceling ctx can cut the fetch short, but records already
// fetched are still written. An error is returned only when the run row cannot be
// created (no stats) or cannot be completed (stats and error).
func (m *Manager) RunSync(ctx context.Context) (*types.SyncRun, error) {
	if m.source == nil {
		return nil, ErrNotConfigured
	}

	run := &types.SyncRun{
		RunUID:        m.newID(),
		StartedAt:     m.now().UTC(),
		Status:        types.SyncStatusRunning,
		ErrorMessages: []string{},
	}
	if err := m.store.CreateSyncRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to start sync run: %w", err)
	}

	logger := m.logger.With(zap.String("run_uid", run.RunUID))
	logger.Info("sync started")

	status := m.execute(ctx, run, logger)
	run.Finish(status, m.now().UTC())

	// The completion write must land even if the caller is shutting down.
	if err := m.store.CompleteSyncRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("failed to record sync completion", zap.Error(err))
		return run, fmt.Errorf("failed to complete sync run: %w", err)
	}

	logger.Info("sync finished",
		zap.String("status", string(run.Status)),
		zap.String("fetch_outcome", string(run.FetchOutcome)),
		zap.Int("fetched", run.JobsFetched),
		zap.Int("created", run.JobsCreated),
		zap.Int("updated", run.JobsUpdated),
		zap.Int("errors", len(run.ErrorMessages)),
		zap.Float64("duration_seconds", run.DurationSeconds))
	return run, nil
}

// execute fetches and upserts, filling in run counters, and returns the terminal status.
func (m *Manager) execute(ctx context.Context, run *types.SyncRun, logger *zap.Logger) (status types.SyncStatus) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("sync aborted", zap.Any("panic", r))
			run.AddError(fmt.Sprintf("Unexpected error: %v", r))
			status = types.SyncStatusFailed
		}
	}()

	result := m.source.FetchAllInScopeJobs(ctx)
	run.JobsFetched = len(result.Records)
	run.FetchOutcome = result.Outcome

	status = types.SyncStatusCompleted
	if result.Err != nil || result.Outcome != types.FetchComplete {
		status = types.SyncStatusFailed
	}
	if result.Err != nil {
		run.AddError(fmt.Sprintf("API error: %v", result.Err))
		logger.Warn("fetch stopped early",
			zap.String("outcome", string(result.Outcome)),
			zap.Int("records", len(result.Records)),
			zap.Error(result.Err))
	}

	// Fetched records are always written, even if the caller stops waiting.
	writeCtx := context.WithoutCancel(ctx)
	for _, raw := range result.Records {
		outcome, err := m.syncRecord(writeCtx, raw)
		if err != nil {
			label := normalize.Label(raw)
			run.AddError(fmt.Sprintf("Error upserting job %s: %v", label, err))
			logger.Warn("failed to sync job", zap.String("job", label), zap.Error(err))
			continue
		}
		switch outcome {
		case db.UpsertCreated:
			run.JobsCreated++
		case db.UpsertUpdated:
			run.JobsUpdated++
		}
	}
	return status
}

// syncRecord normalizes and upserts one record. A panic is turned into an error
// so one bad record cannot stop the run.
func (m *Manager) syncRecord(ctx context.Context, raw types.RawRecord) (outcome db.UpsertOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected panic: %v", r)
		}
	}()

	job, err := m.normalizer.Normalize(raw)
	if err != nil {
		return "", err
	}
	return m.store.UpsertJob(ctx, job, m.now().UTC())
}

// GetLastSyncInfo returns the most recent run, or nil when none has run yet.
func (m *Manager) GetLastSyncInfo(ctx context.Context) (*types.SyncRun, error) {
	run, err := m.store.GetLastSyncRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get last sync info: %w", err)
	}
	return run, nil
}
