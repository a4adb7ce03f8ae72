package catalogsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/integration"
)

type failingCreateRuns struct {
	*memRunRepo
}

func (r failingCreateRuns) Create(context.Context, *integration.SyncRun) error {
	return errors.New("disk full")
}

func TestRunLedger_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("lock backend error", func(t *testing.T) {
		lock := &stubLock{err: errors.New("redis: connection refused")}
		ledger := NewRunLedger(newMemRunRepo(), lock, 0, 0, zap.NewNop())

		_, _, err := ledger.Start(ctx, integration.TriggerManual, nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, integration.ErrRunAlreadyInProgress)
		assert.Contains(t, err.Error(), "acquire run lock")
	})

	t.Run("create failure releases the lock", func(t *testing.T) {
		lock := &stubLock{}
		ledger := NewRunLedger(failingCreateRuns{newMemRunRepo()}, lock, time.Minute, time.Hour, zap.NewNop())

		_, _, err := ledger.Start(ctx, integration.TriggerManual, nil)
		require.Error(t, err)
		assert.False(t, lock.held)
		assert.Equal(t, 1, lock.releases)
	})

	t.Run("without a lock", func(t *testing.T) {
		runs := newMemRunRepo()
		ledger := NewRunLedger(runs, nil, 0, 0, zap.NewNop())

		run, release, err := ledger.Start(ctx, integration.TriggerScheduled, nil)
		require.NoError(t, err)
		assert.Equal(t, integration.RunStatusRunning, runs.get(run.ID).Status)

		require.NoError(t, run.Succeed(integration.RunStats{Created: 1}))
		require.NoError(t, ledger.Finalize(ctx, run))
		release(ctx)

		assert.ErrorIs(t, ledger.Finalize(ctx, run), integration.ErrRunAlreadyFinalized)
	})

	t.Run("stale threshold", func(t *testing.T) {
		runs := newMemRunRepo()
		ledger := NewRunLedger(runs, nil, 0, 30*time.Minute, zap.NewNop())
		fixed := time.Now()
		ledger.now = func() time.Time { return fixed }

		old, err := integration.NewSyncRun(integration.TriggerManual, nil)
		require.NoError(t, err)
		old.StartedAt = fixed.Add(-31 * time.Minute)
		require.NoError(t, runs.Create(ctx, old))

		_, _, err = ledger.Start(ctx, integration.TriggerManual, nil)
		require.NoError(t, err)
		assert.Equal(t, integration.ErrorKindAbandoned, runs.get(old.ID).ErrorKind)
	})
}
