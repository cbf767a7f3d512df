package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ledger is the single writer of sync records. It is the only component that
// may bind a canonical product to a platform external id.
type Ledger struct {
	repo  integration.SyncRecordRepository
	locks keyMutex
	now   func() time.Time
}

// NewLedger creates a ledger over the given storage
func NewLedger(repo integration.SyncRecordRepository) *Ledger {
	return &Ledger{
		repo: repo,
		now:  time.Now,
	}
}

// Resolve returns the record for (canonicalID, platform). It never fails:
// a missing record resolves to never_synced, and a storage failure resolves
// to a never_synced record flagged Unavailable so callers do not mistake it
// for a product that was never pushed.
func (l *Ledger) Resolve(ctx context.Context, canonicalID uuid.UUID, platform integration.PlatformCode) integration.SyncRecord {
	key, err := integration.NewRecordKey(canonicalID, platform)
	if err != nil {
		rec := integration.SyncRecord{CanonicalID: canonicalID, Platform: platform, Status: integration.SyncStatusNeverSynced}
		rec.Unavailable = true
		return rec
	}

	found, err := l.repo.FindByKey(ctx, key)
	switch {
	case err == nil:
		return *found
	case errors.Is(err, integration.ErrSyncRecordNotFound):
		return integration.NewNeverSyncedRecord(key)
	default:
		logger.L(ctx).Warn("ledger read failed",
			zap.String("key", key.String()),
			zap.Error(err),
		)
		rec := integration.NewNeverSyncedRecord(key)
		rec.Unavailable = true
		return rec
	}
}

// Commit applies an update atomically for its key. An update proposing an
// external id different from the stored one is rejected with an identity
// conflict and the stored record is left untouched.
func (l *Ledger) Commit(ctx context.Context, upd integration.SyncUpdate) (integration.SyncRecord, error) {
	if _, err := integration.NewRecordKey(upd.Key.CanonicalID, upd.Key.Platform); err != nil {
		return integration.SyncRecord{}, err
	}
	if !upd.Status.IsValid() {
		return integration.SyncRecord{}, fmt.Errorf("%w: %q", integration.ErrInvalidSyncStatus, upd.Status)
	}

	unlock := l.locks.lock(upd.Key.String())
	defer unlock()

	rec, err := l.load(ctx, upd.Key)
	if err != nil {
		return integration.SyncRecord{}, err
	}

	if upd.ExternalID != "" {
		if rec.HasExternalID() && rec.ExternalID != upd.ExternalID {
			conflict := integration.NewIdentityConflict(upd.Key, rec.ExternalID, upd.ExternalID)
			logger.L(ctx).Error("identity conflict",
				zap.String("key", upd.Key.String()),
				zap.String("existing_external_id", rec.ExternalID),
				zap.String("proposed_external_id", upd.ExternalID),
			)
			return rec, conflict
		}
		if !rec.HasExternalID() {
			rec.ExternalID = upd.ExternalID
			rec.ExternalIDOrigin = upd.Key.Platform
		}
	}

	at := upd.At
	if at.IsZero() {
		at = l.now()
	}
	at = at.UTC()

	if upd.StoreID != "" {
		rec.StoreID = upd.StoreID
	}
	if upd.Checkpoint != nil {
		rec.Checkpoint = upd.Checkpoint.Clone()
	}
	rec.Status = upd.Status
	switch upd.Status {
	case integration.SyncStatusPending:
		// a pending update without a checkpoint opens a new attempt
		if upd.Checkpoint == nil {
			rec.Attempts++
		}
	case integration.SyncStatusSynced:
		rec.LastSyncedAt = &at
		rec.LastError = ""
		rec.LastErrorKind = ""
		rec.Attempts = 0
	case integration.SyncStatusError:
		if upd.Err != nil {
			rec.LastError = upd.Err.Error()
			rec.LastErrorKind = integration.KindOf(upd.Err)
		} else {
			rec.LastErrorKind = integration.KindInternal
		}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = at
	}
	rec.UpdatedAt = at

	if err := l.repo.Upsert(ctx, &rec); err != nil {
		if errors.Is(err, integration.ErrExternalIDMismatch) {
			// another process bound the key between our read and write
			stored, _ := l.load(ctx, upd.Key)
			return stored, integration.NewIdentityConflict(upd.Key, stored.ExternalID, upd.ExternalID)
		}
		return integration.SyncRecord{}, integration.NewTransientError("ledger.commit",
			fmt.Errorf("%w: %w", integration.ErrLedgerUnavailable, err))
	}
	return rec, nil
}

func (l *Ledger) load(ctx context.Context, key integration.RecordKey) (integration.SyncRecord, error) {
	found, err := l.repo.FindByKey(ctx, key)
	switch {
	case err == nil:
		return *found, nil
	case errors.Is(err, integration.ErrSyncRecordNotFound):
		return integration.NewNeverSyncedRecord(key), nil
	default:
		return integration.SyncRecord{}, integration.NewTransientError("ledger.load",
			fmt.Errorf("%w: %w", integration.ErrLedgerUnavailable, err))
	}
}

// Forget removes the binding for a key, allowing a fresh CREATE. It is an
// operator action for resolving identity conflicts.
func (l *Ledger) Forget(ctx context.Context, canonicalID uuid.UUID, platform integration.PlatformCode) error {
	key, err := integration.NewRecordKey(canonicalID, platform)
	if err != nil {
		return err
	}
	unlock := l.locks.lock(key.String())
	defer unlock()

	if err := l.repo.Delete(ctx, key); err != nil {
		if errors.Is(err, integration.ErrSyncRecordNotFound) {
			return shared.ErrNotFound
		}
		return err
	}
	logger.L(ctx).Info("sync record forgotten", zap.String("key", key.String()))
	return nil
}

// List returns records for a platform, optionally filtered by status
func (l *Ledger) List(ctx context.Context, platform integration.PlatformCode, status *integration.SyncStatus, filter shared.Filter) ([]integration.SyncRecord, error) {
	if !platform.IsValid() {
		return nil, integration.ErrInvalidPlatformCode
	}
	if status != nil && !status.IsValid() {
		return nil, integration.ErrInvalidSyncStatus
	}
	return l.repo.List(ctx, platform, status, filter)
}

// FindByExternalID looks up the record owning a platform id
func (l *Ledger) FindByExternalID(ctx context.Context, platform integration.PlatformCode, externalID string) (*integration.SyncRecord, error) {
	return l.repo.FindByExternalID(ctx, platform, externalID)
}

// ---------------------------------------------------------------------------
// keyMutex
// ---------------------------------------------------------------------------

// keyMutex is a set of mutexes created on demand and dropped when unused
type keyMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
