package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jonathan/parts-dashboard/internal/logging"
)

// Scheduler runs RunSync on a fixed interval. A tick that fires while the
// previous scheduled run is still going is skipped.
type Scheduler struct {
	manager  *Manager
	interval time.Duration
	logger   *zap.Logger
	cron     *cron.Cron
}

// NewScheduler creates a Scheduler for manager.
func NewScheduler(manager *Manager, interval time.Duration, logger *zap.Logger) *Scheduler {
	logger = logging.OrNop(logger).Named("scheduler")
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		manager:  manager,
		interval: interval,
		logger:   logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Spec returns the cron expression the scheduler registers.
func (s *Scheduler) Spec() string {
	return fmt.Sprintf("@every %s", s.interval)
}

// Run schedules the sync and blocks until ctx is done, then waits for a
// running sync to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("invalid sync interval %s", s.interval)
	}
	if _, err := s.cron.AddFunc(s.Spec(), func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule sync: %w", err)
	}

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	run, err := s.manager.RunSync(ctx)
	if err != nil {
		s.logger.Error("scheduled sync failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduled sync done", zap.String("run_uid", run.RunUID), zap.String("status", string(run.Status)))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
