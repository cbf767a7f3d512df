package cache

import (
	"context"
	"sync"

	"github.com/catalogsync/backend/internal/domain/integration"
)

// lockEntry is one held or awaited key. refs counts the holder and waiters so
// the entry can be dropped once nobody needs it.
type lockEntry struct {
	sem  chan struct{}
	refs int
}

// LocalKeyLocker implements KeyLocker with per-key in-process locks.
// It is suitable for single-instance deployments and testing.
type LocalKeyLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// NewLocalKeyLocker creates a new in-process key locker
func NewLocalKeyLocker() *LocalKeyLocker {
	return &LocalKeyLocker{entries: make(map[string]*lockEntry)}
}

// Lock blocks until key is free or ctx is done. Waiting on one key never
// blocks callers of another key.
func (l *LocalKeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}, nil
}

func (l *LocalKeyLocker) release(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Size returns the number of keys held or awaited (for testing/monitoring)
func (l *LocalKeyLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Ensure LocalKeyLocker implements KeyLocker
var _ integration.KeyLocker = (*LocalKeyLocker)(nil)
