package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// mockOutboxRepository is a mock implementation for testing
type mockOutboxRepository struct {
	mu               sync.Mutex
	entries          map[uuid.UUID]*shared.OutboxEntry
	findPendingFn    func(ctx context.Context, limit int) ([]*shared.OutboxEntry, error)
	findRetryableFn  func(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error)
	markProcessingFn func(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error)
	updateFn         func(ctx context.Context, entry *shared.OutboxEntry) error
	deleteFn         func(ctx context.Context, before time.Time) (int64, error)
}

func newMockOutboxRepository() *mockOutboxRepository {
	return &mockOutboxRepository{
		entries: make(map[uuid.UUID]*shared.OutboxEntry),
	}
}

func (r *mockOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *mockOutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	if r.findPendingFn != nil {
		return r.findPendingFn(ctx, limit)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.Status == shared.OutboxStatusPending {
			result = append(result, e)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (r *mockOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	if r.findRetryableFn != nil {
		return r.findRetryableFn(ctx, before, limit)
	}
	return nil, nil
}

func (r *mockOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	if r.markProcessingFn != nil {
		return r.markProcessingFn(ctx, ids)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, id := range ids {
		if e, ok := r.entries[id]; ok {
			e.Status = shared.OutboxStatusProcessing
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *mockOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	if r.updateFn != nil {
		return r.updateFn(ctx, entry)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ID] = entry
	return nil
}

func (r *mockOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	if r.deleteFn != nil {
		return r.deleteFn(ctx, before)
	}
	return 0, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []*shared.OutboxEntry
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, entry *shared.OutboxEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, entry)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func newTranslationEntry() *shared.OutboxEntry {
	return shared.NewOutboxEntry("catalog.translation.requested", "SyncRun", uuid.New(), []byte(`{"run_id":"x"}`))
}

func TestOutboxProcessor_ProcessesPendingEntries(t *testing.T) {
	repo := newMockOutboxRepository()
	publisher := &recordingPublisher{}
	entry := newTranslationEntry()
	require.NoError(t, repo.Save(context.Background(), entry))

	config := OutboxProcessorConfig{
		BatchSize:    100,
		PollInterval: 20 * time.Millisecond,
	}
	processor := NewOutboxProcessor(repo, publisher, config, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, processor.Start(ctx))

	assert.Eventually(t, func() bool { return publisher.count() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, processor.Stop(stopCtx))

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, shared.OutboxStatusSent, repo.entries[entry.ID].Status)
	assert.NotNil(t, repo.entries[entry.ID].ProcessedAt)
}

func TestOutboxProcessor_StopGracefully(t *testing.T) {
	processor := NewOutboxProcessor(newMockOutboxRepository(), &recordingPublisher{}, DefaultOutboxProcessorConfig(), zap.NewNop())

	require.NoError(t, processor.Start(context.Background()))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, processor.Stop(stopCtx))
}

func TestOutboxProcessor_PublishFailureSchedulesRetry(t *testing.T) {
	repo := newMockOutboxRepository()
	publisher := &recordingPublisher{err: errors.New("nats: no responders")}
	entry := newTranslationEntry()
	require.NoError(t, repo.Save(context.Background(), entry))

	processor := NewOutboxProcessor(repo, publisher, DefaultOutboxProcessorConfig(), zap.NewNop())
	processor.processBatch(context.Background())

	stored := repo.entries[entry.ID]
	assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Contains(t, stored.LastError, "no responders")
	require.NotNil(t, stored.NextRetryAt)
	assert.True(t, stored.NextRetryAt.After(time.Now()))
}

func TestOutboxProcessor_DeadLetterAfterMaxRetries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	repo := newMockOutboxRepository()
	entry := newTranslationEntry()
	entry.MaxRetries = 1
	require.NoError(t, repo.Save(context.Background(), entry))

	processor := NewOutboxProcessor(repo, &recordingPublisher{err: errors.New("stream not found")}, DefaultOutboxProcessorConfig(), zap.New(core))
	processor.processBatch(context.Background())

	assert.True(t, repo.entries[entry.ID].IsDead())
	assert.Equal(t, 1, logs.FilterMessage("outbox entry moved to dead letter state").Len())
}

func TestOutboxProcessor_RetriesDueEntries(t *testing.T) {
	repo := newMockOutboxRepository()
	entry := newTranslationEntry()
	entry.MarkFailed("temporary")
	require.NoError(t, repo.Save(context.Background(), entry))

	repo.findRetryableFn = func(_ context.Context, _ time.Time, _ int) ([]*shared.OutboxEntry, error) {
		return []*shared.OutboxEntry{entry}, nil
	}
	publisher := &recordingPublisher{}
	processor := NewOutboxProcessor(repo, publisher, DefaultOutboxProcessorConfig(), zap.NewNop())
	processor.processBatch(context.Background())

	assert.Equal(t, 1, publisher.count())
	assert.Equal(t, shared.OutboxStatusSent, repo.entries[entry.ID].Status)
}

func TestOutboxProcessor_Cleanup(t *testing.T) {
	repo := newMockOutboxRepository()
	var cutoff time.Time
	repo.deleteFn = func(_ context.Context, before time.Time) (int64, error) {
		cutoff = before
		return 3, nil
	}

	config := DefaultOutboxProcessorConfig()
	processor := NewOutboxProcessor(repo, &recordingPublisher{}, config, zap.NewNop())
	processor.cleanup(context.Background())

	assert.WithinDuration(t, time.Now().Add(-config.CleanupRetention), cutoff, time.Second)
}

func TestDefaultOutboxProcessorConfig(t *testing.T) {
	config := DefaultOutboxProcessorConfig()

	assert.Equal(t, 100, config.BatchSize)
	assert.Equal(t, 5*time.Second, config.PollInterval)
	assert.True(t, config.CleanupEnabled)
	assert.Equal(t, 7*24*time.Hour, config.CleanupRetention)
	assert.Equal(t, 1*time.Hour, config.CleanupInterval)
}
