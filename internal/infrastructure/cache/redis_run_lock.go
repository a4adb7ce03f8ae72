package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRunLockKey is the Redis key guarding reconciliation runs
const DefaultRunLockKey = "catalogsync:run-lock"

// releaseScript deletes the lock only while it still carries the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock implements integration.RunLock with SET NX PX, so every
// process sharing the Redis instance observes the same lock.
type RedisRunLock struct {
	client *redis.Client
	key    string
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisRunLock creates a lock on an existing client
func NewRedisRunLock(client *redis.Client, key string) *RedisRunLock {
	if key == "" {
		key = DefaultRunLockKey
	}
	return &RedisRunLock{client: client, key: key}
}

// TryAcquire sets the lock key with a fresh owner token if it is absent
func (l *RedisRunLock) TryAcquire(ctx context.Context, ttl time.Duration) (func(context.Context) error, bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		deleted, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
		if err != nil {
			return fmt.Errorf("failed to release run lock: %w", err)
		}
		if deleted == 0 {
			return integration.ErrLockNotHeld
		}
		return nil
	}
	return release, true, nil
}

// Close closes the Redis client
func (l *RedisRunLock) Close() error {
	return l.client.Close()
}

var _ integration.RunLock = (*RedisRunLock)(nil)
