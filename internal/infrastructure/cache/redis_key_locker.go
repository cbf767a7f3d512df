package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/integration"
)

// ErrLockBackend is returned when the lock store cannot be reached
var ErrLockBackend = errors.New("cache: lock backend unavailable")

const (
	defaultLockTTL       = 30 * time.Second
	defaultRetryInterval = 50 * time.Millisecond
	defaultKeyPrefix     = "catalogsync:lock:"
)

// releaseScript deletes the lock only if this holder still owns it.
// KEYS[1] = lock key
// ARGV[1] = holder token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the lease only if this holder still owns it.
// KEYS[1] = lock key
// ARGV[1] = holder token
// ARGV[2] = lease in milliseconds
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisKeyLocker implements KeyLocker with leased Redis keys, serializing a
// sync key across every process sharing the Redis database. A held lease is
// refreshed in the background so long pushes keep it; a crashed holder frees
// the key when its lease runs out.
type RedisKeyLocker struct {
	client        *redis.Client
	keyPrefix     string
	ttl           time.Duration
	retryInterval time.Duration
	local         *LocalKeyLocker
	logger        *zap.Logger
}

// RedisKeyLockerOption is a functional option for configuring RedisKeyLocker
type RedisKeyLockerOption func(*RedisKeyLocker)

// WithLockTTL sets the lease duration
func WithLockTTL(ttl time.Duration) RedisKeyLockerOption {
	return func(l *RedisKeyLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryInterval sets how often a waiter polls for the key
func WithRetryInterval(d time.Duration) RedisKeyLockerOption {
	return func(l *RedisKeyLocker) {
		if d > 0 {
			l.retryInterval = d
		}
	}
}

// WithKeyPrefix sets the prefix of lock keys
func WithKeyPrefix(prefix string) RedisKeyLockerOption {
	return func(l *RedisKeyLocker) {
		if prefix != "" {
			l.keyPrefix = prefix
		}
	}
}

// WithLockerLogger sets the logger used for lease maintenance failures
func WithLockerLogger(logger *zap.Logger) RedisKeyLockerOption {
	return func(l *RedisKeyLocker) {
		l.logger = logger
	}
}

// NewRedisKeyLocker creates a locker with an existing Redis client
func NewRedisKeyLocker(client *redis.Client, opts ...RedisKeyLockerOption) *RedisKeyLocker {
	l := &RedisKeyLocker{
		client:        client,
		keyPrefix:     defaultKeyPrefix,
		ttl:           defaultLockTTL,
		retryInterval: defaultRetryInterval,
		local:         NewLocalKeyLocker(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock acquires key. Goroutines of this process queue on an in-process lock
// first so only one of them polls Redis.
func (l *RedisKeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	redisKey := l.keyPrefix + key
	token := uuid.NewString()
	for {
		// SET NX PX in a single atomic operation
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			unlockLocal()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrLockBackend, err)
		}
		if ok {
			break
		}
		t := time.NewTimer(l.retryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			unlockLocal()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.release(redisKey, token, stop, done)
			unlockLocal()
		})
	}, nil
}

// release stops the lease refresher and deletes the key if still owned
func (l *RedisKeyLocker) release(redisKey, token string, stop chan<- struct{}, done <-chan struct{}) {
	close(stop)
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
		// the lease expires on its own
		l.logger.Warn("failed to release sync lock", zap.String("key", redisKey), zap.Error(err))
	}
}

// keepAlive refreshes the lease every third of its duration until stop closes
func (l *RedisKeyLocker) keepAlive(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			n, err := refreshScript.Run(ctx, l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int64()
			cancel()
			switch {
			case err != nil:
				l.logger.Warn("failed to refresh sync lock", zap.String("key", redisKey), zap.Error(err))
			case n == 0:
				l.logger.Error("sync lock lease lost", zap.String("key", redisKey))
				return
			}
		}
	}
}

// Close closes the Redis client
func (l *RedisKeyLocker) Close() error {
	return l.client.Close()
}

// Ensure RedisKeyLocker implements KeyLocker
var _ integration.KeyLocker = (*RedisKeyLocker)(nil)
