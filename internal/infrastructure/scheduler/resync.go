package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	syncapp "github.com/catalogsync/backend/internal/application/integration"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/domain/shared"
)

// RecordLister lists ledger records by platform and status
type RecordLister interface {
	List(ctx context.Context, platform integration.PlatformCode, status *integration.SyncStatus, filter shared.Filter) ([]integration.SyncRecord, error)
}

// BulkPusher pushes a batch of products to one store
type BulkPusher interface {
	RunBulk(ctx context.Context, canonicalIDs []uuid.UUID, platform integration.PlatformCode, storeID string, concurrencyLimit int) syncapp.BulkResult
}

// ---------------------------------------------------------------------------
// BulkExecutor
// ---------------------------------------------------------------------------

// BulkExecutor executes jobs through the bulk runner
type BulkExecutor struct {
	pusher           BulkPusher
	concurrencyLimit int
}

var _ JobExecutor = (*BulkExecutor)(nil)

// NewBulkExecutor creates an executor; a zero limit uses the runner default
func NewBulkExecutor(pusher BulkPusher, concurrencyLimit int) *BulkExecutor {
	return &BulkExecutor{pusher: pusher, concurrencyLimit: concurrencyLimit}
}

// Execute pushes every product of the job. Item failures are recorded in the
// ledger by the push itself and only counted here.
func (e *BulkExecutor) Execute(ctx context.Context, job *Job) error {
	res := e.pusher.RunBulk(ctx, job.CanonicalIDs, job.Platform, job.StoreID, e.concurrencyLimit)
	if err := ctx.Err(); err != nil && len(res.Succeeded) == 0 {
		return err
	}
	job.Complete(len(res.Succeeded), len(res.Failed))
	return nil
}

// ---------------------------------------------------------------------------
// ResyncTrigger
// ---------------------------------------------------------------------------

// ResyncConfig controls which failed records are swept and how often
type ResyncConfig struct {
	Interval time.Duration
	// Platforms to sweep
	Platforms []integration.PlatformCode
	// BatchSize caps the products of one job
	BatchSize int
	// MaxRecords caps the records collected per platform and sweep
	MaxRecords int
}

// DefaultResyncConfig returns default sweep settings
func DefaultResyncConfig() ResyncConfig {
	return ResyncConfig{
		Interval:   15 * time.Minute,
		BatchSize:  50,
		MaxRecords: 1000,
	}
}

const sweepPageSize = 100

// ResyncTrigger periodically re-submits products whose last push failed
// with a kind that may succeed on a later attempt.
type ResyncTrigger struct {
	config    ResyncConfig
	scheduler *Scheduler
	records   RecordLister
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inFlight  map[string]bool
}

// NewResyncTrigger creates a trigger feeding the given scheduler
func NewResyncTrigger(config ResyncConfig, scheduler *Scheduler, records RecordLister, logger *zap.Logger) *ResyncTrigger {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultResyncConfig().BatchSize
	}
	if config.MaxRecords <= 0 {
		config.MaxRecords = DefaultResyncConfig().MaxRecords
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &ResyncTrigger{
		config:    config,
		scheduler: scheduler,
		records:   records,
		logger:    logger,
		inFlight:  make(map[string]bool),
	}
	scheduler.OnJobDone(t.release)
	return t
}

// Resweepable reports whether a failed record is worth another attempt.
// Partial step failures resume from their checkpoint; validation, auth and
// conflict errors need a change on either side first.
func Resweepable(rec integration.SyncRecord) bool {
	if rec.Status != integration.SyncStatusError {
		return false
	}
	return rec.LastErrorKind.Retryable() || rec.LastErrorKind == integration.KindPartialStepFailure
}

// Start starts the sweep loop
func (t *ResyncTrigger) Start(ctx context.Context) error {
	if t.config.Interval <= 0 {
		return ErrInvalidConfig
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Resync trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Int("platforms", len(t.config.Platforms)),
	)
	return nil
}

// Stop stops the sweep loop
func (t *ResyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Resync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *ResyncTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := t.Sweep(ctx); err != nil && ctx.Err() == nil {
				t.logger.Error("Resync sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep collects resweepable records and submits one job per store batch.
// It returns the number of jobs submitted.
func (t *ResyncTrigger) Sweep(ctx context.Context) (int, error) {
	submitted := 0
	for _, platform := range t.config.Platforms {
		byStore, err := t.collect(ctx, platform)
		if err != nil {
			return submitted, err
		}
		for storeID, ids := range byStore {
			for start := 0; start < len(ids); start += t.config.BatchSize {
				end := min(start+t.config.BatchSize, len(ids))
				ok, err := t.submit(platform, storeID, ids[start:end])
				if err != nil {
					return submitted, err
				}
				if ok {
					submitted++
				}
			}
		}
	}
	if submitted > 0 {
		t.logger.Info("Resync jobs submitted", zap.Int("jobs", submitted))
	}
	return submitted, nil
}

// collect pages through the error records of a platform grouped by store.
// Products already queued or running are left out.
func (t *ResyncTrigger) collect(ctx context.Context, platform integration.PlatformCode) (map[string][]uuid.UUID, error) {
	status := integration.SyncStatusError
	filter := shared.Filter{Page: 1, PageSize: sweepPageSize, OrderBy: "updated_at", OrderDir: "asc"}

	t.mu.Lock()
	defer t.mu.Unlock()

	byStore := make(map[string][]uuid.UUID)
	seen := 0
	for seen < t.config.MaxRecords {
		page, err := t.records.List(ctx, platform, &status, filter)
		if err != nil {
			return nil, err
		}
		for _, rec := range page {
			if seen >= t.config.MaxRecords {
				break
			}
			seen++
			if rec.StoreID == "" || !Resweepable(rec) || t.inFlight[inFlightKey(platform, rec.CanonicalID)] {
				continue
			}
			byStore[rec.StoreID] = append(byStore[rec.StoreID], rec.CanonicalID)
		}
		if len(page) < filter.PageSize {
			break
		}
		filter.Page++
	}
	return byStore, nil
}

func (t *ResyncTrigger) submit(platform integration.PlatformCode, storeID string, ids []uuid.UUID) (bool, error) {
	job := NewJob(platform, storeID, ids)

	t.mu.Lock()
	for _, id := range ids {
		t.inFlight[inFlightKey(platform, id)] = true
	}
	t.mu.Unlock()

	if err := t.scheduler.SubmitJob(job); err != nil {
		t.release(job)
		if errors.Is(err, ErrJobQueueFull) {
			t.logger.Warn("Resync queue full, batch deferred to next sweep",
				zap.String("platform", platform.String()),
				zap.String("store_id", storeID),
			)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (t *ResyncTrigger) release(job *Job) {
	t.mu.Lock()
	for _, id := range job.CanonicalIDs {
		delete(t.inFlight, inFlightKey(job.Platform, id))
	}
	t.mu.Unlock()
}

func inFlightKey(platform integration.PlatformCode, id uuid.UUID) string {
	return platform.String() + "|" + id.String()
}
