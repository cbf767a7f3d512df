package integration

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SyncRecord Errors
// ---------------------------------------------------------------------------

var (
	ErrSyncRecordNotFound      = errors.New("integration: sync record not found")
	ErrSyncRecordInvalidKey    = errors.New("integration: sync record key requires canonical id and platform")
	ErrExternalIDMismatch      = errors.New("integration: stored external id differs")
	ErrLedgerUnavailable       = errors.New("integration: ledger unavailable")
	ErrInvalidSyncStatus       = errors.New("integration: invalid sync status")
	ErrExternalIDOriginForeign = errors.New("integration: external id was assigned by another platform")
)

// ---------------------------------------------------------------------------
// SyncStatus
// ---------------------------------------------------------------------------

// SyncStatus is the per (product, platform) synchronization state
type SyncStatus string

const (
	SyncStatusNeverSynced SyncStatus = "never_synced"
	SyncStatusPending     SyncStatus = "pending"
	SyncStatusSynced      SyncStatus = "synced"
	SyncStatusError       SyncStatus = "error"
)

// IsValid returns true if the status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusNeverSynced, SyncStatusPending, SyncStatusSynced, SyncStatusError:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// Operation is the kind of write a push performs
type Operation string

const (
	OperationCreate Operation = "CREATE"
	OperationUpdate Operation = "UPDATE"
)

// ---------------------------------------------------------------------------
// RecordKey
// ---------------------------------------------------------------------------

// RecordKey identifies a sync record
type RecordKey struct {
	CanonicalID uuid.UUID
	Platform    PlatformCode
}

// NewRecordKey validates and builds a key
func NewRecordKey(canonicalID uuid.UUID, platform PlatformCode) (RecordKey, error) {
	if canonicalID == uuid.Nil || !platform.IsValid() {
		return RecordKey{}, ErrSyncRecordInvalidKey
	}
	return RecordKey{CanonicalID: canonicalID, Platform: platform}, nil
}

// String renders the key for locks and logs
func (k RecordKey) String() string {
	return fmt.Sprintf("%s:%s", k.Platform, k.CanonicalID)
}

// ---------------------------------------------------------------------------
// Checkpoint
// ---------------------------------------------------------------------------

// Checkpoint captures the progress of a multi-step push together with the
// platform identifiers produced by completed steps.
type Checkpoint struct {
	// Step is the last completed pipeline step
	Step PushState `json:"step"`
	// MediaIDs maps source image URL to the platform media id
	MediaIDs map[string]string `json:"media_ids,omitempty"`
	// PendingMedia maps source image URL to a media id that was uploaded but
	// has not been seen ready
	PendingMedia map[string]string `json:"pending_media,omitempty"`
	// FailedMedia lists source URLs that did not become ready in the last push
	FailedMedia []string `json:"failed_media,omitempty"`
	// VariantIDs maps variant option key to the platform variant id
	VariantIDs map[string]string `json:"variant_ids,omitempty"`
	// InventoryItemIDs maps variant option key to the platform inventory item id
	InventoryItemIDs map[string]string `json:"inventory_item_ids,omitempty"`
}

// Clone returns a deep copy
func (c Checkpoint) Clone() Checkpoint {
	return Checkpoint{
		Step:             c.Step,
		MediaIDs:         maps.Clone(c.MediaIDs),
		PendingMedia:     maps.Clone(c.PendingMedia),
		FailedMedia:      slices.Clone(c.FailedMedia),
		VariantIDs:       maps.Clone(c.VariantIDs),
		InventoryItemIDs: maps.Clone(c.InventoryItemIDs),
	}
}

// Partial reports whether a completed pipeline skipped failed media
func (c Checkpoint) Partial() bool {
	return len(c.FailedMedia) > 0
}

// SetVariant records the identifiers for one variant
func (c *Checkpoint) SetVariant(key, variantID, inventoryItemID string) {
	if c.VariantIDs == nil {
		c.VariantIDs = make(map[string]string)
	}
	if c.InventoryItemIDs == nil {
		c.InventoryItemIDs = make(map[string]string)
	}
	c.VariantIDs[key] = variantID
	if inventoryItemID != "" {
		c.InventoryItemIDs[key] = inventoryItemID
	}
}

// SetMedia records the platform id of a ready image
func (c *Checkpoint) SetMedia(sourceURL, mediaID string) {
	if c.MediaIDs == nil {
		c.MediaIDs = make(map[string]string)
	}
	c.MediaIDs[sourceURL] = mediaID
	c.DropPendingMedia(sourceURL)
}

// SetPendingMedia records an uploaded image that is still processing
func (c *Checkpoint) SetPendingMedia(sourceURL, mediaID string) {
	if c.PendingMedia == nil {
		c.PendingMedia = make(map[string]string)
	}
	c.PendingMedia[sourceURL] = mediaID
}

// DropPendingMedia forgets an upload the platform rejected
func (c *Checkpoint) DropPendingMedia(sourceURL string) {
	delete(c.PendingMedia, sourceURL)
	if len(c.PendingMedia) == 0 {
		c.PendingMedia = nil
	}
}

// ---------------------------------------------------------------------------
// SyncRecord
// ---------------------------------------------------------------------------

// SyncRecord tracks one canonical product on one platform.
// Only the ledger writes it.
type SyncRecord struct {
	// ID is the storage identity, uuid.Nil until first persisted
	ID uuid.UUID
	// CanonicalID is the engine-owned product id
	CanonicalID uuid.UUID
	// Platform the record tracks
	Platform PlatformCode
	// StoreID is the store connection used for the last push
	StoreID string
	// ExternalID is the platform product id, empty until the first create succeeds
	ExternalID string
	// ExternalIDOrigin is the platform that assigned ExternalID
	ExternalIDOrigin PlatformCode
	// Status is the synchronization state
	Status SyncStatus
	// LastSyncedAt is when the last push completed successfully
	LastSyncedAt *time.Time
	// LastError is the detail of the last failure
	LastError string
	// LastErrorKind classifies the last failure
	LastErrorKind ErrorKind
	// Checkpoint is the multi-step push progress
	Checkpoint Checkpoint
	// Attempts counts push attempts since the last success
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
	// Unavailable is set by the ledger when storage could not be read.
	// Such a record must not be used to decide on a CREATE.
	Unavailable bool
}

// NewNeverSyncedRecord returns the zero record for a key
func NewNeverSyncedRecord(key RecordKey) SyncRecord {
	return SyncRecord{
		CanonicalID: key.CanonicalID,
		Platform:    key.Platform,
		Status:      SyncStatusNeverSynced,
	}
}

// Key returns the record key
func (r SyncRecord) Key() RecordKey {
	return RecordKey{CanonicalID: r.CanonicalID, Platform: r.Platform}
}

// HasExternalID reports whether the product exists on the platform
func (r SyncRecord) HasExternalID() bool {
	return r.ExternalID != ""
}

// Operation decides between CREATE and UPDATE for a push to platform.
// An external id is only usable when it was assigned by that same platform.
func (r SyncRecord) Operation(platform PlatformCode) Operation {
	if r.HasExternalID() && r.ExternalIDOrigin == platform && r.Platform == platform {
		return OperationUpdate
	}
	return OperationCreate
}

// ExternalIDFor returns the external id usable for platform, or an error if
// the stored id belongs to a different platform.
func (r SyncRecord) ExternalIDFor(platform PlatformCode) (string, error) {
	if !r.HasExternalID() {
		return "", ErrSyncRecordNotFound
	}
	if r.ExternalIDOrigin != platform {
		return "", ErrExternalIDOriginForeign
	}
	return r.ExternalID, nil
}

// ---------------------------------------------------------------------------
// SyncUpdate is a proposed change committed through the ledger
// ---------------------------------------------------------------------------

// SyncUpdate carries the result of a push attempt to the ledger
type SyncUpdate struct {
	Key RecordKey
	// StoreID is the store connection used
	StoreID string
	// ExternalID is the id returned by the platform, empty if none yet
	ExternalID string
	// Status is the new sync status
	Status SyncStatus
	// Checkpoint replaces the stored checkpoint when non-nil
	Checkpoint *Checkpoint
	// Err is the failure to record when Status is error
	Err error
	// At is the time of the attempt, defaults to now
	At time.Time
}

// ---------------------------------------------------------------------------
// Repository
// ---------------------------------------------------------------------------

// SyncRecordReader defines read access to the ledger storage
type SyncRecordReader interface {
	// FindByKey returns ErrSyncRecordNotFound when no record exists
	FindByKey(ctx context.Context, key RecordKey) (*SyncRecord, error)

	// FindByExternalID finds the record that owns an external id on a platform
	FindByExternalID(ctx context.Context, platform PlatformCode, externalID string) (*SyncRecord, error)

	// List lists records for a platform, optionally filtered by status
	List(ctx context.Context, platform PlatformCode, status *SyncStatus, filter shared.Filter) ([]SyncRecord, error)
}

// SyncRecordWriter defines write access to the ledger storage
type SyncRecordWriter interface {
	// Upsert inserts or updates the record. Implementations must refuse to
	// change a non-empty stored external id and return ErrExternalIDMismatch.
	Upsert(ctx context.Context, record *SyncRecord) error

	// Delete removes the record for a key
	Delete(ctx context.Context, key RecordKey) error
}

// SyncRecordRepository is the storage port of the identity ledger
type SyncRecordRepository interface {
	SyncRecordReader
	SyncRecordWriter
}
