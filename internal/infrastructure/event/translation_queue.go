package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/domain/shared"
)

const syncRunAggregateType = "SyncRun"

// OutboxTranslationQueue enqueues translation requests as outbox entries.
// Delivery to the translation consumer happens through the OutboxProcessor.
type OutboxTranslationQueue struct {
	repo       shared.OutboxRepository
	maxRetries int
}

// NewOutboxTranslationQueue creates a new OutboxTranslationQueue.
// A non-positive maxRetries keeps the outbox default.
func NewOutboxTranslationQueue(repo shared.OutboxRepository, maxRetries int) *OutboxTranslationQueue {
	return &OutboxTranslationQueue{repo: repo, maxRetries: maxRetries}
}

// Enqueue stores one outbox entry carrying the run ID and created products
func (q *OutboxTranslationQueue) Enqueue(ctx context.Context, req integration.TranslationRequest) error {
	if len(req.ProductIDs) == 0 {
		return nil
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal translation request: %w", err)
	}

	entry := shared.NewOutboxEntry(integration.TranslationTopic, syncRunAggregateType, req.RunID, payload)
	if q.maxRetries > 0 {
		entry.MaxRetries = q.maxRetries
	}
	return q.repo.Save(ctx, entry)
}

var _ integration.TranslationQueue = (*OutboxTranslationQueue)(nil)
