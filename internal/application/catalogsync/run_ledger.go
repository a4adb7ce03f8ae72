package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/integration"
)

// Ledger defaults
const (
	DefaultLockTTL       = time.Hour
	DefaultStaleRunAfter = 2 * time.Hour
)

// RunLedger brackets a run: it takes the run lock, refuses to start while a
// live run is recorded, abandons stale ones, and writes the single terminal
// update.
type RunLedger struct {
	runs       integration.SyncRunRepository
	lock       integration.RunLock
	lockTTL    time.Duration
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewRunLedger creates a new RunLedger. A nil lock leaves exclusivity to the
// running-row guard alone.
func NewRunLedger(runs integration.SyncRunRepository, lock integration.RunLock, lockTTL, staleAfter time.Duration, logger *zap.Logger) *RunLedger {
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleRunAfter
	}
	return &RunLedger{
		runs:       runs,
		lock:       lock,
		lockTTL:    lockTTL,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Start opens a new running entry. The returned release function frees the
// run lock and must be called after Finalize.
func (l *RunLedger) Start(ctx context.Context, trigger integration.TriggerType, triggeredBy *uuid.UUID) (*integration.SyncRun, func(context.Context), error) {
	release, err := l.acquire(ctx)
	if err != nil {
		return nil, nil, err
	}

	if err := l.guardRunning(ctx); err != nil {
		release(ctx)
		return nil, nil, err
	}

	run, err := integration.NewSyncRun(trigger, triggeredBy)
	if err != nil {
		release(ctx)
		return nil, nil, err
	}
	if err := l.runs.Create(ctx, run); err != nil {
		release(ctx)
		return nil, nil, fmt.Errorf("create sync run: %w", err)
	}
	return run, release, nil
}

// Finalize persists the terminal state already set on the run
func (l *RunLedger) Finalize(ctx context.Context, run *integration.SyncRun) error {
	return l.runs.Finalize(ctx, run)
}

func (l *RunLedger) acquire(ctx context.Context) (func(context.Context), error) {
	if l.lock == nil {
		return func(context.Context) {}, nil
	}

	release, ok, err := l.lock.TryAcquire(ctx, l.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, integration.ErrRunAlreadyInProgress
	}
	return func(ctx context.Context) {
		if err := release(ctx); err != nil {
			l.logger.Warn("Failed to release run lock", zap.Error(err))
		}
	}, nil
}

// guardRunning rejects the start while a live running row exists and
// finalizes the stale ones as abandoned.
func (l *RunLedger) guardRunning(ctx context.Context) error {
	running, err := l.runs.FindRunning(ctx)
	if err != nil {
		return fmt.Errorf("find running sync runs: %w", err)
	}

	now := l.now()
	for i := range running {
		run := &running[i]
		if !run.IsStale(l.staleAfter, now) {
			return fmt.Errorf("%w: run %s started at %s", integration.ErrRunAlreadyInProgress, run.ID, run.StartedAt.Format(time.RFC3339))
		}

		if err := run.Abandon(); err != nil {
			continue
		}
		if err := l.runs.Finalize(ctx, run); err != nil && !errors.Is(err, integration.ErrRunAlreadyFinalized) {
			return fmt.Errorf("abandon stale run %s: %w", run.ID, err)
		}
		l.logger.Warn("Abandoned stale sync run",
			zap.String("run_id", run.ID.String()),
			zap.Time("started_at", run.StartedAt),
		)
	}
	return nil
}
