package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/google/uuid"
)

// SyncRecordModel is the persistence model for the SyncRecord domain entity.
// (canonical_id, platform) is unique; (platform, external_id) is looked up on pull.
type SyncRecordModel struct {
	BaseModel
	CanonicalID      uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_sync_record_key,priority:1"`
	Platform         integration.PlatformCode `gorm:"type:varchar(20);not null;uniqueIndex:idx_sync_record_key,priority:2;index:idx_sync_record_external,priority:1"`
	StoreID          string                   `gorm:"type:varchar(100);not null;default:''"`
	ExternalID       string                   `gorm:"type:varchar(255);not null;default:'';index:idx_sync_record_external,priority:2"`
	ExternalIDOrigin integration.PlatformCode `gorm:"type:varchar(20);not null;default:''"`
	Status           integration.SyncStatus   `gorm:"type:varchar(20);not null;default:'never_synced';index"`
	LastSyncedAt     *time.Time               `gorm:"index"`
	LastError        string                   `gorm:"type:text"`
	LastErrorKind    integration.ErrorKind    `gorm:"type:varchar(40)"`
	CheckpointJSON   string                   `gorm:"type:jsonb;column:checkpoint;not null;default:'{}'"`
	Attempts         int                      `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (SyncRecordModel) TableName() string {
	return "sync_records"
}

// ToDomain converts the persistence model to a domain SyncRecord
func (m *SyncRecordModel) ToDomain() (*integration.SyncRecord, error) {
	r := &integration.SyncRecord{
		ID:               m.ID,
		CanonicalID:      m.CanonicalID,
		Platform:         m.Platform,
		StoreID:          m.StoreID,
		ExternalID:       m.ExternalID,
		ExternalIDOrigin: m.ExternalIDOrigin,
		Status:           m.Status,
		LastSyncedAt:     m.LastSyncedAt,
		LastError:        m.LastError,
		LastErrorKind:    m.LastErrorKind,
		Attempts:         m.Attempts,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.CheckpointJSON != "" {
		if err := json.Unmarshal([]byte(m.CheckpointJSON), &r.Checkpoint); err != nil {
			return nil, fmt.Errorf("decode checkpoint of %s:%s: %w", m.Platform, m.CanonicalID, err)
		}
	}
	return r, nil
}

// FromDomain populates the persistence model from a domain SyncRecord
func (m *SyncRecordModel) FromDomain(r *integration.SyncRecord) error {
	cp, err := json.Marshal(r.Checkpoint)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	m.ID = r.ID
	m.CanonicalID = r.CanonicalID
	m.Platform = r.Platform
	m.StoreID = r.StoreID
	m.ExternalID = r.ExternalID
	m.ExternalIDOrigin = r.ExternalIDOrigin
	m.Status = r.Status
	m.LastSyncedAt = r.LastSyncedAt
	m.LastError = r.LastError
	m.LastErrorKind = r.LastErrorKind
	m.CheckpointJSON = string(cp)
	m.Attempts = r.Attempts
	m.CreatedAt = r.CreatedAt
	m.UpdatedAt = r.UpdatedAt
	if m.Status == "" {
		m.Status = integration.SyncStatusNeverSynced
	}
	m.touch(time.Now())
	return nil
}

// MutableColumns returns the columns a ledger commit may change. The id,
// the key and created_at are fixed once the row exists.
func (m *SyncRecordModel) MutableColumns() map[string]any {
	return map[string]any{
		"store_id":           m.StoreID,
		"external_id":        m.ExternalID,
		"external_id_origin": m.ExternalIDOrigin,
		"status":             m.Status,
		"last_synced_at":     m.LastSyncedAt,
		"last_error":         m.LastError,
		"last_error_kind":    m.LastErrorKind,
		"checkpoint":         m.CheckpointJSON,
		"attempts":           m.Attempts,
		"updated_at":         m.UpdatedAt,
	}
}

// SyncRecordModelFromDomain creates a new persistence model from a domain SyncRecord
func SyncRecordModelFromDomain(r *integration.SyncRecord) (*SyncRecordModel, error) {
	m := &SyncRecordModel{}
	if err := m.FromDomain(r); err != nil {
		return nil, err
	}
	return m, nil
}
