package integration

import (
	"context"
	"sync"
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pusher pushes a single product
type Pusher interface {
	Push(ctx context.Context, canonicalID uuid.UUID, platform integration.PlatformCode, storeID string) (PushOutcome, error)
}

var _ Pusher = (*PushOrchestrator)(nil)

// BulkResult aggregates the outcome of a bulk push. Every requested id ends
// up in exactly one of Succeeded or Failed.
type BulkResult struct {
	Platform  integration.PlatformCode
	StoreID   string
	Total     int
	Succeeded []uuid.UUID
	Failed    map[uuid.UUID]error
	// Partial lists succeeded ids whose media was only partly attached
	Partial  []uuid.UUID
	Duration time.Duration
}

// FailureKinds classifies each failure
func (r BulkResult) FailureKinds() map[uuid.UUID]integration.ErrorKind {
	out := make(map[uuid.UUID]integration.ErrorKind, len(r.Failed))
	for id, err := range r.Failed {
		out[id] = integration.KindOf(err)
	}
	return out
}

// HasFailures reports whether any item failed
func (r BulkResult) HasFailures() bool {
	return len(r.Failed) > 0
}

// BulkRunner pushes many products with bounded concurrency. A failing item
// never stops the others.
type BulkRunner struct {
	pusher       Pusher
	defaultLimit int
}

// NewBulkRunner creates a runner; defaultLimit applies when a call passes no limit
func NewBulkRunner(pusher Pusher, defaultLimit int) *BulkRunner {
	if defaultLimit <= 0 {
		defaultLimit = 4
	}
	return &BulkRunner{pusher: pusher, defaultLimit: defaultLimit}
}

// RunBulk pushes every id to the platform store. At most concurrencyLimit
// pushes are in flight. Duplicate ids are pushed once.
func (b *BulkRunner) RunBulk(ctx context.Context, canonicalIDs []uuid.UUID, platform integration.PlatformCode, storeID string, concurrencyLimit int) BulkResult {
	started := time.Now()
	if concurrencyLimit <= 0 {
		concurrencyLimit = b.defaultLimit
	}

	ids := dedupe(canonicalIDs)
	result := BulkResult{
		Platform: platform,
		StoreID:  storeID,
		Total:    len(ids),
		Failed:   make(map[uuid.UUID]error),
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(concurrencyLimit)
	for _, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				result.Failed[id] = integration.NewTransientError("bulk", err)
				mu.Unlock()
				return nil
			}
			outcome, err := b.pusher.Push(ctx, id, platform, storeID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[id] = err
				return nil
			}
			result.Succeeded = append(result.Succeeded, id)
			if outcome.Partial {
				result.Partial = append(result.Partial, id)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Succeeded = inOrder(ids, result.Succeeded)
	result.Partial = inOrder(ids, result.Partial)
	result.Duration = time.Since(started)

	logger.L(ctx).Info("bulk push finished",
		zap.String("platform", platform.String()),
		zap.String("store_id", storeID),
		zap.Int("total", result.Total),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("partial", len(result.Partial)),
		zap.Duration("duration", result.Duration),
	)
	return result
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// inOrder sorts subset by the position of each id in ids
func inOrder(ids, subset []uuid.UUID) []uuid.UUID {
	if len(subset) == 0 {
		return subset
	}
	member := make(map[uuid.UUID]struct{}, len(subset))
	for _, id := range subset {
		member[id] = struct{}{}
	}
	out := make([]uuid.UUID, 0, len(subset))
	for _, id := range ids {
		if _, ok := member[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
