package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertAttempts bounds the insert/update race between two first commits
const upsertAttempts = 2

// GormSyncRecordRepository implements integration.SyncRecordRepository using GORM
type GormSyncRecordRepository struct {
	db *gorm.DB
}

var _ integration.SyncRecordRepository = (*GormSyncRecordRepository)(nil)

// NewGormSyncRecordRepository creates a new GormSyncRecordRepository
func NewGormSyncRecordRepository(db *gorm.DB) *GormSyncRecordRepository {
	return &GormSyncRecordRepository{db: db}
}

// ---------------------------------------------------------------------------
// SyncRecordReader implementation
// ---------------------------------------------------------------------------

// FindByKey finds the record for a (canonical id, platform) pair
func (r *GormSyncRecordRepository) FindByKey(ctx context.Context, key integration.RecordKey) (*integration.SyncRecord, error) {
	var model models.SyncRecordModel
	if err := r.db.WithContext(ctx).
		Where("canonical_id = ? AND platform = ?", key.CanonicalID, key.Platform).
		Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrSyncRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByExternalID finds the record that owns an external id on a platform
func (r *GormSyncRecordRepository) FindByExternalID(ctx context.Context, platform integration.PlatformCode, externalID string) (*integration.SyncRecord, error) {
	if externalID == "" {
		return nil, integration.ErrSyncRecordNotFound
	}
	var model models.SyncRecordModel
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND external_id = ?", platform, externalID).
		Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrSyncRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// List lists records for a platform, optionally filtered by status
func (r *GormSyncRecordRepository) List(ctx context.Context, platform integration.PlatformCode, status *integration.SyncStatus, filter shared.Filter) ([]integration.SyncRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncRecordModel{}).Where("platform = ?", platform)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var recordModels []models.SyncRecordModel
	if err := query.
		Scopes(paginate(filter, SyncRecordSortFields)).
		Find(&recordModels).Error; err != nil {
		return nil, err
	}

	records := make([]integration.SyncRecord, 0, len(recordModels))
	for i := range recordModels {
		rec, err := recordModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// SyncRecordWriter implementation
// ---------------------------------------------------------------------------

// Upsert inserts the record or updates the existing row for its key. The
// update is a compare-and-set on external_id: a stored non-empty id is never
// replaced by a different one, even by a writer in another process.
func (r *GormSyncRecordRepository) Upsert(ctx context.Context, record *integration.SyncRecord) error {
	if record.CanonicalID == uuid.Nil || !record.Platform.IsValid() {
		return integration.ErrSyncRecordInvalidKey
	}
	record.UpdatedAt = time.Now()
	model, err := models.SyncRecordModelFromDomain(record)
	if err != nil {
		return err
	}
	db := r.db.WithContext(ctx)

	for attempt := 0; attempt < upsertAttempts; attempt++ {
		var existing models.SyncRecordModel
		err := db.Select("id", "external_id", "created_at").
			Where("canonical_id = ? AND platform = ?", model.CanonicalID, model.Platform).
			Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(model)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// another writer inserted the key first
				continue
			}
			record.ID = model.ID
			record.CreatedAt = model.CreatedAt
			return nil
		case err != nil:
			return err
		}

		if existing.ExternalID != "" && existing.ExternalID != model.ExternalID {
			return fmt.Errorf("%w: %s:%s has %q, refusing %q", integration.ErrExternalIDMismatch,
				model.Platform, model.CanonicalID, existing.ExternalID, model.ExternalID)
		}
		res := db.Model(&models.SyncRecordModel{}).
			Where("id = ? AND (external_id = '' OR external_id = ?)", existing.ID, model.ExternalID).
			Updates(model.MutableColumns())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s:%s changed concurrently", integration.ErrExternalIDMismatch,
				model.Platform, model.CanonicalID)
		}
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		return nil
	}
	// the insert can also be skipped because the external id is taken
	if owner, err := r.FindByExternalID(ctx, model.Platform, model.ExternalID); err == nil && owner.CanonicalID != model.CanonicalID {
		return fmt.Errorf("%w: %s %q is owned by %s", integration.ErrExternalIDMismatch,
			model.Platform, model.ExternalID, owner.CanonicalID)
	}
	return fmt.Errorf("%w: %s:%s insert raced", integration.ErrLedgerUnavailable, model.Platform, model.CanonicalID)
}

// Delete removes the record for a key
func (r *GormSyncRecordRepository) Delete(ctx context.Context, key integration.RecordKey) error {
	res := r.db.WithContext(ctx).
		Where("canonical_id = ? AND platform = ?", key.CanonicalID, key.Platform).
		Delete(&models.SyncRecordModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return integration.ErrSyncRecordNotFound
	}
	return nil
}
