// Package cache provides the per-key locks that serialize pushes
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/config"
)

// KeyLockerFactory creates key lockers based on configuration
type KeyLockerFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// KeyLockerFactoryOption is a functional option for configuring the factory
type KeyLockerFactoryOption func(*KeyLockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) KeyLockerFactoryOption {
	return func(f *KeyLockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-process locks when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) KeyLockerFactoryOption {
	return func(f *KeyLockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewKeyLockerFactory creates a new factory
func NewKeyLockerFactory(cfg config.RedisConfig, opts ...KeyLockerFactoryOption) *KeyLockerFactory {
	f := &KeyLockerFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisLocker connects to Redis and returns a distributed locker
func (f *KeyLockerFactory) CreateRedisLocker(ctx context.Context) (*RedisKeyLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisKeyLocker(client,
		WithLockTTL(f.redisConfig.LockTTL),
		WithLockerLogger(f.logger),
	), nil
}

// CreateLocker returns a Redis locker when Redis is enabled and reachable.
// A disabled Redis yields in-process locks; an unreachable one falls back to
// them only when fallback is allowed. The returned close function releases
// the Redis client, if any.
func (f *KeyLockerFactory) CreateLocker(ctx context.Context) (integration.KeyLocker, func() error, error) {
	noop := func() error { return nil }
	if !f.redisConfig.Enabled {
		f.logger.Info("using in-process sync locks")
		return NewLocalKeyLocker(), noop, nil
	}

	locker, err := f.CreateRedisLocker(ctx)
	if err == nil {
		f.logger.Info("using Redis sync locks", zap.String("addr", f.redisConfig.Addr()))
		return locker, locker.Close, nil
	}

	if !f.allowInMemoryFallback {
		return nil, nil, fmt.Errorf("Redis required for sync locks but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-process sync locks. "+
		"Pushes of the same product from different instances may interleave.",
		zap.Error(err),
	)
	return NewLocalKeyLocker(), noop, nil
}
