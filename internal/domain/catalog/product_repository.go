package catalog

import (
	"context"

	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ProductReader defines read operations on the canonical catalog
type ProductReader interface {
	// FindByID finds a product by its canonical ID
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByIDs finds multiple products; missing IDs are skipped
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)

	// FindAll finds products matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]Product, error)

	// Count counts products matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}

// ProductWriter defines write operations on the canonical catalog
type ProductWriter interface {
	// Save creates or updates a product
	Save(ctx context.Context, product *Product) error

	// Delete removes a product
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProductRepository combines read and write access to the canonical catalog
type ProductRepository interface {
	ProductReader
	ProductWriter
}
