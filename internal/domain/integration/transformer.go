package integration

import (
	"github.com/catalogsync/backend/internal/domain/catalog"
)

// PlatformPayload is the closed set of platform request bodies produced by a
// Transformer. Every concrete payload validates itself at construction.
type PlatformPayload interface {
	// Platform returns the platform the payload is addressed to
	Platform() PlatformCode
	// Validate checks platform field constraints
	Validate() error
}

// PlatformRecord is a product as read back from a platform. It lives only for
// the duration of one sync operation and is never persisted.
type PlatformRecord interface {
	// Platform returns the platform the record was read from
	Platform() PlatformCode
	// RecordID returns the platform product identifier
	RecordID() string
}

// SyncContext carries the ledger's view of a product into a transform
type SyncContext struct {
	// StoreID is the target store connection
	StoreID string
	// Operation is CREATE or UPDATE as decided from the sync record
	Operation Operation
	// Record is the ledger's current record for (product, platform)
	Record SyncRecord
}

// ExternalID returns the record's external id when it is usable for an update
func (c SyncContext) ExternalID() string {
	if c.Operation != OperationUpdate {
		return ""
	}
	return c.Record.ExternalID
}

// Transformer maps between the canonical product and one platform's wire model.
// Implementations are pure: no I/O, no panics, typed errors only.
type Transformer interface {
	// Platform returns the platform this transformer serves
	Platform() PlatformCode
	// ToPlatform builds a validated payload for the product
	ToPlatform(product *catalog.Product, sc SyncContext) (PlatformPayload, error)
	// FromPlatform rebuilds a canonical product from a platform record
	FromPlatform(record PlatformRecord) (*catalog.Product, error)
}
