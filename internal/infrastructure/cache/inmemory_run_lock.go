package cache

import (
	"context"
	"sync"
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
)

// InMemoryRunLock implements integration.RunLock within a single process.
// An expired holder is treated as released.
type InMemoryRunLock struct {
	mu        sync.Mutex
	owner     uint64
	nextOwner uint64
	expiresAt time.Time
	now       func() time.Time
}

// NewInMemoryRunLock creates an unlocked in-process lock
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{now: time.Now}
}

// TryAcquire takes the lock unless a live holder exists
func (l *InMemoryRunLock) TryAcquire(_ context.Context, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.owner != 0 && now.Before(l.expiresAt) {
		return nil, false, nil
	}

	l.nextOwner++
	owner := l.nextOwner
	l.owner = owner
	l.expiresAt = now.Add(ttl)

	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.owner != owner {
			return integration.ErrLockNotHeld
		}
		l.owner = 0
		return nil
	}
	return release, true, nil
}

var _ integration.RunLock = (*InMemoryRunLock)(nil)
