package ecommerce

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/convert"
	"github.com/catalogsync/backend/internal/domain/integration"
)

const testStore = "store-1"

// staticCredentials is an in-memory credential store
type staticCredentials map[string]integration.PlatformCredentials

func (s staticCredentials) GetCredentials(_ context.Context, storeID string) (integration.PlatformCredentials, error) {
	c, ok := s[storeID]
	if !ok {
		return integration.PlatformCredentials{}, integration.ErrCredentialsNotFound
	}
	return c, nil
}

func int64Ptr(v int64) *int64 { return &v }

func testTaxonomy(t *testing.T) *convert.Taxonomy {
	t.Helper()
	tax, err := convert.NewTaxonomy([]convert.TaxonomyEntry{
		{Name: "Shirts", Category: "Apparel > Shirts", Keywords: []string{"tee"}},
		{Name: "Mugs", Category: "Kitchen > Drinkware"},
	}, convert.DefaultCategory)
	require.NoError(t, err)
	return tax
}

// shirtProduct has two option axes, one variant image matched by alt text
// and one image URL without an extension.
func shirtProduct() *catalog.Product {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &catalog.Product{
		ID:             uuid.MustParse("7b0c3a52-7f0e-4f43-9d4c-6c7b1b0f6a11"),
		Title:          "Linen Shirt",
		Description:    "<p>Breathable linen.</p>",
		Vendor:         "Acme",
		ProductType:    "Shirts",
		Tags:           []string{"summer", " linen", "summer"},
		Status:         catalog.StatusActive,
		Price:          4500,
		CompareAtPrice: int64Ptr(6000),
		WeightGrams:    250,
		Images: []catalog.Image{
			{URL: "https://cdn.example.com/shirt-front.jpg", Position: 0},
			{URL: "https://cdn.example.com/images/blue", Alt: "Blue", Position: 1},
		},
		Options: []catalog.Option{
			{Name: "Color", Values: []string{"Red", "Blue"}},
			{Name: "Size", Values: []string{"M", "L"}},
		},
		Variants: []catalog.Variant{
			{SKU: "LS-RM", Price: 4500, CompareAtPrice: int64Ptr(6000), InventoryQuantity: 3, WeightGrams: 250, OptionValues: []string{"Red", "M"}},
			{SKU: "LS-BL", Price: 4800, InventoryQuantity: 0, WeightGrams: 260, OptionValues: []string{"Blue", "L"}},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// mugProduct has no options
func mugProduct() *catalog.Product {
	return &catalog.Product{
		ID:          uuid.MustParse("1d7e8f04-2b1c-4a5e-8f00-0c3a9b2d4e55"),
		Title:       "Ceramic Mug",
		ProductType: "mugs",
		Status:      catalog.StatusDraft,
		Price:       1250,
		WeightGrams: 400,
		Images: []catalog.Image{
			{URL: "https://cdn.example.com/mug.png", Alt: "Mug", Position: 0},
		},
		Variants: []catalog.Variant{
			{SKU: "MUG-1", Price: 1250, InventoryQuantity: 12, WeightGrams: 400},
		},
	}
}

// mugWithOwnPricing carries product-level price, compare-at price and weight
// that differ from its single variant
func mugWithOwnPricing() *catalog.Product {
	p := mugProduct()
	p.Price = 1500
	p.CompareAtPrice = int64Ptr(1800)
	p.WeightGrams = 500
	return p
}

// assertSameProduct compares every canonical field. Extras and timestamps are
// assigned by the platform and checked by the caller.
func assertSameProduct(t *testing.T, want, got *catalog.Product) {
	t.Helper()
	w, g := *want, *got
	w.Extras, g.Extras = nil, nil
	w.CreatedAt, w.UpdatedAt = time.Time{}, time.Time{}
	g.CreatedAt, g.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, w, g)
}
