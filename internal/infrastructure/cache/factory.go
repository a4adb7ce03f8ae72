package cache

import (
	"context"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewRunLock returns a Redis-backed lock when Redis is configured and
// reachable, and an in-process lock otherwise. The returned closer releases
// the Redis connection.
func NewRunLock(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (integration.RunLock, func() error) {
	if !cfg.Enabled() {
		logger.Info("Redis not configured, using in-memory run lock")
		return NewInMemoryRunLock(), func() error { return nil }
	}

	client, err := NewRedisClient(ctx, cfg.Addr(), cfg.Password, cfg.DB)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-memory run lock. "+
			"Concurrent runs from other instances will not be excluded.",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		return NewInMemoryRunLock(), func() error { return nil }
	}

	logger.Info("Using Redis run lock", zap.String("addr", cfg.Addr()))
	lock := NewRedisRunLock(client, DefaultRunLockKey)
	return lock, lock.Close
}
