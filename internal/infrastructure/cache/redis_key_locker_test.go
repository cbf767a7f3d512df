package cache

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/catalogsync/backend/internal/infrastructure/config"
)

// newTestRedisClient connects to REDIS_ADDR (default localhost:6379) and
// skips the test when Redis is not running.
func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skip("Skipping Redis integration test: redis not available")
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisKeyLocker_Integration(t *testing.T) {
	client := newTestRedisClient(t)
	ctx := context.Background()
	prefix := "catalogsync:test:" + uuid.NewString() + ":"

	// two lockers model two processes sharing one Redis
	a := NewRedisKeyLocker(client, WithKeyPrefix(prefix), WithRetryInterval(5*time.Millisecond), WithLockerLogger(zaptest.NewLogger(t)))
	b := NewRedisKeyLocker(client, WithKeyPrefix(prefix), WithRetryInterval(5*time.Millisecond))

	t.Run("mutual exclusion across lockers", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			inside  atomic.Int32
			maxSeen atomic.Int32
		)
		for i := 0; i < 10; i++ {
			locker := a
			if i%2 == 1 {
				locker = b
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := locker.Lock(ctx, "WOOCOMMERCE:p1")
				require.NoError(t, err)
				defer unlock()
				n := inside.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxSeen.Load())

		exists, err := client.Exists(ctx, prefix+"WOOCOMMERCE:p1").Result()
		require.NoError(t, err)
		assert.Zero(t, exists)
	})

	t.Run("waiter times out while key is held", func(t *testing.T) {
		unlock, err := a.Lock(ctx, "held")
		require.NoError(t, err)
		defer unlock()

		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		_, err = b.Lock(waitCtx, "held")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("release does not delete a lease owned by someone else", func(t *testing.T) {
		unlock, err := a.Lock(ctx, "stolen")
		require.NoError(t, err)
		require.NoError(t, client.Set(ctx, prefix+"stolen", "other-holder", time.Minute).Err())
		unlock()

		v, err := client.Get(ctx, prefix+"stolen").Result()
		require.NoError(t, err)
		assert.Equal(t, "other-holder", v)
		require.NoError(t, client.Del(ctx, prefix+"stolen").Err())
	})

	t.Run("lease is refreshed while held", func(t *testing.T) {
		short := NewRedisKeyLocker(client, WithKeyPrefix(prefix), WithLockTTL(150*time.Millisecond))
		unlock, err := short.Lock(ctx, "long-push")
		require.NoError(t, err)
		time.Sleep(400 * time.Millisecond)

		exists, err := client.Exists(ctx, prefix+"long-push").Result()
		require.NoError(t, err)
		assert.EqualValues(t, 1, exists)
		unlock()
	})
}

func TestKeyLockerFactory_CreateLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled redis uses local locks", func(t *testing.T) {
		locker, closeFn, err := NewKeyLockerFactory(config.RedisConfig{}).CreateLocker(ctx)
		require.NoError(t, err)
		assert.IsType(t, &LocalKeyLocker{}, locker)
		assert.NoError(t, closeFn())
	})

	unreachable := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

	t.Run("unreachable redis falls back", func(t *testing.T) {
		locker, _, err := NewKeyLockerFactory(unreachable, WithLogger(zaptest.NewLogger(t))).CreateLocker(ctx)
		require.NoError(t, err)
		assert.IsType(t, &LocalKeyLocker{}, locker)
	})

	t.Run("unreachable redis without fallback fails", func(t *testing.T) {
		_, _, err := NewKeyLockerFactory(unreachable, WithInMemoryFallback(false)).CreateLocker(ctx)
		assert.Error(t, err)
	})
}
