package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrInvalidProduct      = errors.New("catalog: invalid product")
	ErrProductNotFound     = errors.New("catalog: product not found")
	ErrUnknownOptionValue  = errors.New("catalog: variant references undeclared option value")
	ErrDuplicateVariant    = errors.New("catalog: duplicate variant option tuple")
	ErrOptionArityMismatch = errors.New("catalog: variant option count does not match product options")
)

// Status is the lifecycle state of a canonical product
type Status string

const (
	StatusActive   Status = "active"
	StatusDraft    Status = "draft"
	StatusArchived Status = "archived"
)

// IsValid returns true if the status is one of the canonical states
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusDraft, StatusArchived:
		return true
	default:
		return false
	}
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Image is a product-level image. Position is zero-based display order.
type Image struct {
	URL      string `json:"url" validate:"required,url"`
	Alt      string `json:"alt,omitempty"`
	Position int    `json:"position" validate:"gte=0"`
}

// Option is a product axis such as Color or Size with its ordered values
type Option struct {
	Name   string   `json:"name" validate:"required,max=255"`
	Values []string `json:"values" validate:"min=1,dive,required"`
}

// Variant is a purchasable combination of option values
type Variant struct {
	// SKU is the stock keeping unit, optional
	SKU string `json:"sku,omitempty" validate:"max=255"`
	// Price is expressed in minor units (cents)
	Price int64 `json:"price" validate:"gte=0"`
	// CompareAtPrice is the optional strike-through price in minor units
	CompareAtPrice *int64 `json:"compare_at_price,omitempty" validate:"omitempty,gte=0"`
	// InventoryQuantity is the absolute on-hand quantity; zero means out of stock
	InventoryQuantity int64 `json:"inventory_quantity"`
	// WeightGrams is the shipping weight in grams
	WeightGrams int64 `json:"weight_grams" validate:"gte=0"`
	// OptionValues holds one value per product option, in option order
	OptionValues []string `json:"option_values"`
	// ImageURL optionally references one of the product images
	ImageURL string `json:"image_url,omitempty"`
}

// Key returns the option tuple identity of the variant
func (v Variant) Key() string {
	return strings.Join(v.OptionValues, "\x1f")
}

// Title joins the option values the way storefronts display them ("Red / L")
func (v Variant) Title() string {
	if len(v.OptionValues) == 0 {
		return "Default Title"
	}
	return strings.Join(v.OptionValues, " / ")
}

// Product is the platform-agnostic representation of a catalog item.
// It is the single source of truth that every platform payload is derived from.
type Product struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title" validate:"required,max=255"`
	Description    string    `json:"description,omitempty"`
	Vendor         string    `json:"vendor,omitempty" validate:"max=255"`
	ProductType    string    `json:"product_type,omitempty" validate:"max=255"`
	Tags           []string  `json:"tags,omitempty"`
	Status         Status    `json:"status" validate:"required,oneof=active draft archived"`
	Price          int64     `json:"price" validate:"gte=0"`
	CompareAtPrice *int64    `json:"compare_at_price,omitempty" validate:"omitempty,gte=0"`
	WeightGrams    int64     `json:"weight_grams" validate:"gte=0"`
	Images         []Image   `json:"images,omitempty" validate:"dive"`
	Options        []Option  `json:"options,omitempty" validate:"max=3,dive"`
	Variants       []Variant `json:"variants,omitempty" validate:"dive"`
	IsDigital      bool      `json:"is_digital"`
	// Extras keeps fields that exist only on one platform, keyed by platform code,
	// so that a pull followed by a push does not drop them.
	Extras    map[string]json.RawMessage `json:"extras,omitempty"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

// NewProduct creates a draft product with a fresh engine-owned ID
func NewProduct(title string) (*Product, error) {
	now := time.Now()
	p := &Product{
		ID:        uuid.New(),
		Title:     strings.TrimSpace(title),
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field rules and the option/variant invariants.
// Every returned error wraps ErrInvalidProduct.
func (p *Product) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: product is nil", ErrInvalidProduct)
	}
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed %q", ErrInvalidProduct, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	return p.validateVariants()
}

func (p *Product) validateVariants() error {
	if len(p.Variants) == 0 {
		return nil
	}

	seen := make(map[string]int, len(p.Variants))
	for i, v := range p.Variants {
		if len(v.OptionValues) != len(p.Options) {
			return fmt.Errorf("%w: %w: variant %d has %d values, product declares %d options",
				ErrInvalidProduct, ErrOptionArityMismatch, i, len(v.OptionValues), len(p.Options))
		}
		for j, value := range v.OptionValues {
			if !slices.Contains(p.Options[j].Values, value) {
				return fmt.Errorf("%w: %w: variant %d %s=%q",
					ErrInvalidProduct, ErrUnknownOptionValue, i, p.Options[j].Name, value)
			}
		}
		if prev, ok := seen[v.Key()]; ok {
			return fmt.Errorf("%w: %w: variants %d and %d share %q",
				ErrInvalidProduct, ErrDuplicateVariant, prev, i, v.Title())
		}
		seen[v.Key()] = i
	}
	return nil
}

// NormalizeTags trims, de-duplicates and sorts tags in place
func (p *Product) NormalizeTags() {
	out := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	p.Tags = slices.Compact(out)
}

// EffectiveVariants returns the declared variants, or a single default variant
// carrying the product-level price, weight and stock when none are declared.
func (p *Product) EffectiveVariants() []Variant {
	if len(p.Variants) > 0 {
		return p.Variants
	}
	return []Variant{{
		Price:          p.Price,
		CompareAtPrice: p.CompareAtPrice,
		WeightGrams:    p.WeightGrams,
	}}
}

// HasOnlyDefaultVariant reports whether the product declares no option axes
func (p *Product) HasOnlyDefaultVariant() bool {
	return len(p.Options) == 0 && len(p.Variants) <= 1
}

// VariantImage resolves the image for a variant. An explicit ImageURL must
// reference a declared product image; otherwise an image whose alt text equals
// one of the variant's option values is chosen. The second return is false when
// nothing matches, in which case the variant keeps the product-level image.
func (p *Product) VariantImage(v Variant) (Image, bool) {
	if v.ImageURL != "" {
		for _, img := range p.Images {
			if img.URL == v.ImageURL {
				return img, true
			}
		}
	}
	for _, value := range v.OptionValues {
		for _, img := range p.Images {
			if img.Alt != "" && strings.EqualFold(img.Alt, value) {
				return img, true
			}
		}
	}
	return Image{}, false
}

// PrimaryImage returns the image with the lowest position
func (p *Product) PrimaryImage() (Image, bool) {
	if len(p.Images) == 0 {
		return Image{}, false
	}
	best := p.Images[0]
	for _, img := range p.Images[1:] {
		if img.Position < best.Position {
			best = img
		}
	}
	return best, true
}

// Extra returns the platform-only blob stored for the given platform code
func (p *Product) Extra(platform string) json.RawMessage {
	if p.Extras == nil {
		return nil
	}
	return p.Extras[platform]
}

// SetExtra stores a platform-only blob. An empty blob removes the entry.
func (p *Product) SetExtra(platform string, raw json.RawMessage) {
	if len(raw) == 0 {
		delete(p.Extras, platform)
		return
	}
	if p.Extras == nil {
		p.Extras = make(map[string]json.RawMessage)
	}
	p.Extras[platform] = raw
}

// Touch updates the modification timestamp
func (p *Product) Touch() {
	p.UpdatedAt = time.Now()
}
