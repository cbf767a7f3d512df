// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Structure:
// - base.go: BaseModel with identity and timestamps
// - sync_record.go: the identity ledger (one row per product and platform)
// - product.go: the canonical catalog
//
// Nested values (checkpoints, images, options, variants, extras) are stored as
// JSON documents in jsonb columns.
package models
