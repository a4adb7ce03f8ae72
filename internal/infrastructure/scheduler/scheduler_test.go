package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubTrigger struct {
	calls atomic.Int32
	fn    func(ctx context.Context) (*integration.SyncRun, error)
}

func (s *stubTrigger) TriggerScheduled(ctx context.Context) (*integration.SyncRun, error) {
	s.calls.Add(1)
	return s.fn(ctx)
}

func finishedRun(t *testing.T) *integration.SyncRun {
	t.Helper()
	run, err := integration.NewSyncRun(integration.TriggerScheduled, nil)
	require.NoError(t, err)
	require.NoError(t, run.Succeed(integration.RunStats{Synced: 4}))
	return run
}

func TestNewSyncScheduler_InvalidCron(t *testing.T) {
	_, err := NewSyncScheduler(Config{Cron: "not a cron"}, &stubTrigger{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSyncScheduler(Config{Cron: "0 3 * * *"}, &stubTrigger{}, zap.NewNop())
	assert.NoError(t, err)

	_, err = NewSyncScheduler(Config{Cron: "@daily"}, &stubTrigger{}, zap.NewNop())
	assert.NoError(t, err)
}

func TestSyncScheduler_StartStop(t *testing.T) {
	s, err := NewSyncScheduler(Config{Cron: "0 3 * * *", Location: time.UTC}, &stubTrigger{}, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, s.NextRun().IsZero())
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerRunning)

	next := s.NextRun()
	assert.Equal(t, 3, next.Hour())
	assert.Equal(t, 0, next.Minute())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx))
	assert.True(t, s.NextRun().IsZero())
}

func TestSyncScheduler_Fire(t *testing.T) {
	t.Run("logs finished run", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		trigger := &stubTrigger{fn: func(context.Context) (*integration.SyncRun, error) {
			return finishedRun(t), nil
		}}
		s, err := NewSyncScheduler(Config{Cron: "@daily"}, trigger, zap.New(core))
		require.NoError(t, err)

		s.fire(context.Background())

		assert.Equal(t, int32(1), trigger.calls.Load())
		entries := logs.FilterMessage("Scheduled catalog sync finished").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "success", entries[0].ContextMap()["status"])
	})

	t.Run("run in progress is skipped quietly", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		trigger := &stubTrigger{fn: func(context.Context) (*integration.SyncRun, error) {
			return nil, integration.ErrRunAlreadyInProgress
		}}
		s, err := NewSyncScheduler(Config{Cron: "@daily"}, trigger, zap.New(core))
		require.NoError(t, err)

		s.fire(context.Background())

		assert.Equal(t, 1, logs.FilterMessage("Scheduled catalog sync skipped, a run is already in progress").Len())
		assert.Zero(t, logs.FilterLevelExact(zap.ErrorLevel).Len())
	})

	t.Run("start failure is logged as error", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		trigger := &stubTrigger{fn: func(context.Context) (*integration.SyncRun, error) {
			return nil, errors.New("database down")
		}}
		s, err := NewSyncScheduler(Config{Cron: "@daily"}, trigger, zap.New(core))
		require.NoError(t, err)

		s.fire(context.Background())

		assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len())
	})

	t.Run("run timeout bounds the context", func(t *testing.T) {
		var deadline time.Time
		trigger := &stubTrigger{fn: func(ctx context.Context) (*integration.SyncRun, error) {
			deadline, _ = ctx.Deadline()
			return finishedRun(t), nil
		}}
		s, err := NewSyncScheduler(Config{Cron: "@daily", RunTimeout: time.Minute}, trigger, zap.NewNop())
		require.NoError(t, err)

		s.fire(context.Background())

		assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
	})
}
