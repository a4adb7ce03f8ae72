package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLockNotHeld is returned when releasing a lock owned by someone else
var ErrLockNotHeld = errors.New("integration: run lock is not held by this owner")

// RunLock provides single-flight exclusivity for reconciliation runs.
// TryAcquire returns a release function when the lock was obtained, or
// (nil, false, nil) when another run holds it.
type RunLock interface {
	TryAcquire(ctx context.Context, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// TranslationTopic is the outbox topic of translation requests
const TranslationTopic = "catalog.translation.requested"

// TranslationRequest asks the translation pipeline to localize newly created products
type TranslationRequest struct {
	RunID      uuid.UUID   `json:"run_id"`
	ProductIDs []uuid.UUID `json:"product_ids"`
}

// TranslationQueue hands a translation request off to the asynchronous pipeline.
// Enqueueing is best-effort from the caller's point of view.
type TranslationQueue interface {
	Enqueue(ctx context.Context, req TranslationRequest) error
}
