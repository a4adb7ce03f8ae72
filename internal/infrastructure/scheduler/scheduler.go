// Package scheduler fires scheduled reconciliation runs on a cron expression.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SyncTrigger starts a scheduled run and blocks until it is finalized
type SyncTrigger interface {
	TriggerScheduled(ctx context.Context) (*integration.SyncRun, error)
}

// Config holds scheduler configuration
type Config struct {
	// Cron is a standard five-field expression or descriptor such as "@daily"
	Cron string
	// RunTimeout bounds a single scheduled run; zero means unbounded
	RunTimeout time.Duration
	Location   *time.Location
}

// SyncScheduler triggers catalog reconciliation runs on a cron schedule.
// Overlapping firings are skipped, and a firing that finds a run in progress
// is logged and dropped.
type SyncScheduler struct {
	config  Config
	trigger SyncTrigger
	logger  *zap.Logger

	cron      *cron.Cron
	cancel    context.CancelFunc
	mu        sync.Mutex
	isRunning bool
}

// NewSyncScheduler validates the cron expression and builds a stopped scheduler
func NewSyncScheduler(config Config, trigger SyncTrigger, logger *zap.Logger) (*SyncScheduler, error) {
	if _, err := cron.ParseStandard(config.Cron); err != nil {
		return nil, fmt.Errorf("%w: cron %q: %v", ErrInvalidConfig, config.Cron, err)
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	return &SyncScheduler{
		config:  config,
		trigger: trigger,
		logger:  logger.Named("scheduler"),
	}, nil
}

// Start registers the job and starts the cron runner
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return ErrSchedulerRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	cl := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(s.config.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(s.config.Cron, func() { s.fire(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	c.Start()

	s.cron = c
	s.cancel = cancel
	s.isRunning = true

	s.logger.Info("Catalog sync scheduler started", zap.String("cron", s.config.Cron))
	return nil
}

// Stop stops firing new runs, cancels an in-flight run and waits for it to
// finalize or for ctx to expire.
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	c, cancel := s.cron, s.cancel
	s.mu.Unlock()

	done := c.Stop()
	cancel()

	select {
	case <-done.Done():
		s.logger.Info("Catalog sync scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Catalog sync scheduler stop timed out")
		return ctx.Err()
	}
}

// NextRun returns the next firing time, or zero when stopped
func (s *SyncScheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *SyncScheduler) fire(ctx context.Context) {
	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	s.logger.Info("Scheduled catalog sync firing")
	run, err := s.trigger.TriggerScheduled(ctx)
	switch {
	case errors.Is(err, integration.ErrRunAlreadyInProgress):
		s.logger.Info("Scheduled catalog sync skipped, a run is already in progress")
	case err != nil:
		s.logger.Error("Scheduled catalog sync could not start", zap.Error(err))
	default:
		s.logger.Info("Scheduled catalog sync finished",
			zap.String("run_id", run.ID.String()),
			zap.String("status", string(run.Status)),
			zap.Int("synced", run.Stats.Synced),
			zap.Int("failed", run.Stats.Failed),
		)
	}
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
