package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mobilsoft/connectors/internal/domain/shared"
	"github.com/mobilsoft/connectors/internal/infrastructure/config"
)

// NewIdempotencyStore returns the Redis store when Redis is enabled and reachable.
// When it is not, the in-memory store is used unless cfg.Required is set.
func NewIdempotencyStore(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (shared.IdempotencyStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("Redis disabled, using in-memory webhook idempotency store")
		return NewInMemoryIdempotencyStore(DefaultSweepInterval), nil
	}

	store, err := DialRedisIdempotencyStore(ctx, cfg)
	if err == nil {
		logger.Info("Using Redis webhook idempotency store", zap.String("addr", cfg.Addr()))
		return store, nil
	}
	if cfg.Required {
		return nil, fmt.Errorf("redis is required for webhook idempotency: %w", err)
	}

	logger.Warn("Redis unavailable, falling back to in-memory webhook idempotency store; duplicates are only detected per instance",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(DefaultSweepInterval), nil
}
