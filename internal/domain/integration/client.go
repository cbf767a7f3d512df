package integration

import (
	"context"
)

// ---------------------------------------------------------------------------
// Single-call platforms
// ---------------------------------------------------------------------------

// SingleCallClient writes a whole product in one request
type SingleCallClient interface {
	// Platform returns the platform code
	Platform() PlatformCode

	// CreateProduct creates the product and returns the platform-assigned id
	CreateProduct(ctx context.Context, storeID string, payload PlatformPayload) (string, error)

	// UpdateProduct replaces the product identified by externalID
	UpdateProduct(ctx context.Context, storeID, externalID string, payload PlatformPayload) error

	// GetProduct reads the product back
	GetProduct(ctx context.Context, storeID, externalID string) (PlatformRecord, error)
}

// ---------------------------------------------------------------------------
// Multi-step platforms
// ---------------------------------------------------------------------------

// MediaStatus is the processing state of an uploaded asset
type MediaStatus string

const (
	MediaStatusUploaded   MediaStatus = "UPLOADED"
	MediaStatusProcessing MediaStatus = "PROCESSING"
	MediaStatusReady      MediaStatus = "READY"
	MediaStatusFailed     MediaStatus = "FAILED"
)

// IsSettled reports whether polling can stop for the asset
func (s MediaStatus) IsSettled() bool {
	return s == MediaStatusReady || s == MediaStatusFailed
}

// MediaInput is one image to attach to a product
type MediaInput struct {
	// SourceURL is the canonical image URL
	SourceURL string
	// UploadURL is the URL the platform fetches; a proxy rewrite when required
	UploadURL string
	// Alt is the alt text
	Alt string
}

// MediaRef pairs a source URL with the platform media id it produced
type MediaRef struct {
	SourceURL string
	MediaID   string
}

// OptionValue is one selected value for a named option
type OptionValue struct {
	Name  string
	Value string
}

// VariantInput is one variant in platform units
type VariantInput struct {
	// Key is the canonical option tuple identity
	Key string
	// OptionValues in product option order
	OptionValues []OptionValue
	SKU          string
	// Price is a decimal string with two places
	Price string
	// CompareAtPrice is empty when the variant has none
	CompareAtPrice string
	// Weight in WeightUnit, already rounded to platform precision
	Weight     string
	WeightUnit string
	// Quantity is the absolute inventory to set
	Quantity int64
	// ImageSourceURL is the explicitly matched variant image, empty to keep the product image
	ImageSourceURL string
	// RequiresShipping is false for digital goods
	RequiresShipping bool
}

// VariantRef pairs a variant key with its platform identifiers
type VariantRef struct {
	Key             string
	VariantID       string
	InventoryItemID string
}

// VariantUpdate sets price and media on an existing variant
type VariantUpdate struct {
	VariantID      string
	Price          string
	CompareAtPrice string
	SKU            string
	Weight         string
	WeightUnit     string
	// MediaID is empty when the variant keeps the product-level image
	MediaID string
}

// InventoryQuantity is an absolute on-hand quantity for one inventory item
type InventoryQuantity struct {
	InventoryItemID string
	Quantity        int64
}

// ShellResult is what the first pipeline step produces
type ShellResult struct {
	ProductID string
	// DefaultVariant is the variant the platform creates implicitly with the shell
	DefaultVariant VariantRef
}

// MultiStepPayload is a payload that can be split into pipeline step inputs
type MultiStepPayload interface {
	PlatformPayload
	// Media returns the images in display order
	Media() []MediaInput
	// VariantInputs returns every variant; the first one is the implicit default
	VariantInputs() []VariantInput
	// BindMedia records the platform media ids of uploaded images, keyed by
	// source URL, before product fields are written
	BindMedia(mediaIDs map[string]string) error
}

// MultiStepClient exposes one method per pipeline step
type MultiStepClient interface {
	// Platform returns the platform code
	Platform() PlatformCode

	// CreateProductShell creates the product with title and options in a pre-publish state
	CreateProductShell(ctx context.Context, storeID string, payload MultiStepPayload) (ShellResult, error)

	// UploadMedia attaches images to the product
	UploadMedia(ctx context.Context, storeID, productID string, media []MediaInput) ([]MediaRef, error)

	// GetMediaStatus returns the processing status of each media id
	GetMediaStatus(ctx context.Context, storeID, productID string, mediaIDs []string) (map[string]MediaStatus, error)

	// CreateVariants creates variants beyond the implicit default
	CreateVariants(ctx context.Context, storeID, productID string, variants []VariantInput) ([]VariantRef, error)

	// UpdateVariants sets prices and media references
	UpdateVariants(ctx context.Context, storeID, productID string, updates []VariantUpdate) error

	// SetInventory sets absolute quantities at the default location.
	// ignoreCompareQuantity bypasses the platform's optimistic quantity check.
	SetInventory(ctx context.Context, storeID string, quantities []InventoryQuantity, ignoreCompareQuantity bool) error

	// UpdateMetadata applies description, tags, vendor, type and side-channel metadata
	UpdateMetadata(ctx context.Context, storeID, productID string, payload MultiStepPayload) error

	// Activate moves the product to the payload's published state
	Activate(ctx context.Context, storeID, productID string, payload MultiStepPayload) error

	// UpdateProduct updates an already activated product in place
	UpdateProduct(ctx context.Context, storeID, productID string, payload MultiStepPayload) error

	// GetProduct reads the product back with its variants
	GetProduct(ctx context.Context, storeID, productID string) (PlatformRecord, error)
}
