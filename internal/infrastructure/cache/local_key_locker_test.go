package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalKeyLocker_Lock(t *testing.T) {
	ctx := context.Background()

	t.Run("serializes holders of the same key", func(t *testing.T) {
		locker := NewLocalKeyLocker()
		var (
			wg      sync.WaitGroup
			inside  atomic.Int32
			maxSeen atomic.Int32
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := locker.Lock(ctx, "SHOPIFY:p1")
				require.NoError(t, err)
				defer unlock()
				n := inside.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxSeen.Load())
		assert.Zero(t, locker.Size(), "entries are dropped once released")
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		locker := NewLocalKeyLocker()
		unlockA, err := locker.Lock(ctx, "a")
		require.NoError(t, err)
		defer unlockA()

		done := make(chan struct{})
		go func() {
			unlockB, err := locker.Lock(ctx, "b")
			if err == nil {
				unlockB()
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lock on b blocked behind a")
		}
	})

	t.Run("waiter gives up when its context ends", func(t *testing.T) {
		locker := NewLocalKeyLocker()
		unlock, err := locker.Lock(ctx, "k")
		require.NoError(t, err)

		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(waitCtx, "k")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, locker.Size())

		unlock()
		assert.Zero(t, locker.Size())
	})

	t.Run("unlock is idempotent", func(t *testing.T) {
		locker := NewLocalKeyLocker()
		unlock, err := locker.Lock(ctx, "k")
		require.NoError(t, err)
		unlock()
		unlock()

		again, err := locker.Lock(ctx, "k")
		require.NoError(t, err)
		again()
	})
}
