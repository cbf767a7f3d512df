package ecommerce

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/catalogsync/backend/internal/domain/convert"
	"github.com/catalogsync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// WooCommerce REST wire types
// ---------------------------------------------------------------------------

// WooProduct is a product resource of the WooCommerce REST API
type WooProduct struct {
	ID                int64          `json:"id,omitempty"`
	Name              string         `json:"name"`
	Slug              string         `json:"slug,omitempty"`
	Type              string         `json:"type"` // simple or variable
	Status            string         `json:"status"`
	Featured          *bool          `json:"featured,omitempty"`
	CatalogVisibility string         `json:"catalog_visibility,omitempty"`
	Description       string         `json:"description"`
	ShortDescription  string         `json:"short_description,omitempty"`
	SKU               string         `json:"sku,omitempty"`
	RegularPrice      string         `json:"regular_price"`
	SalePrice         string         `json:"sale_price"`
	Virtual           bool           `json:"virtual"`
	ManageStock       bool           `json:"manage_stock"`
	StockQuantity     *int64         `json:"stock_quantity,omitempty"`
	Weight            string         `json:"weight"`
	MenuOrder         *int           `json:"menu_order,omitempty"`
	Categories        []WooTerm      `json:"categories"`
	Tags              []WooTerm      `json:"tags"`
	Images            []WooImage     `json:"images"`
	Attributes        []WooAttribute `json:"attributes"`
	MetaData          []WooMeta      `json:"meta_data"`
	// Variations holds variation ids; read only
	Variations []int64 `json:"variations,omitempty"`
}

// WooTerm is a category or tag reference. Id is resolved by the client.
type WooTerm struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Slug string `json:"slug,omitempty"`
}

// WooImage is a product or variation image
type WooImage struct {
	ID       int64  `json:"id,omitempty"`
	Src      string `json:"src,omitempty"`
	Alt      string `json:"alt,omitempty"`
	Position int    `json:"position,omitempty"`
}

// WooAttribute is a custom product attribute used for variations
type WooAttribute struct {
	Name      string   `json:"name"`
	Position  int      `json:"position"`
	Visible   bool     `json:"visible"`
	Variation bool     `json:"variation"`
	Options   []string `json:"options"`
}

// WooMeta is one meta_data entry
type WooMeta struct {
	ID    int64           `json:"id,omitempty"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// WooVariation is a variation resource of a variable product
type WooVariation struct {
	ID            int64                   `json:"id,omitempty"`
	SKU           string                  `json:"sku,omitempty"`
	RegularPrice  string                  `json:"regular_price"`
	SalePrice     string                  `json:"sale_price"`
	Virtual       bool                    `json:"virtual"`
	ManageStock   bool                    `json:"manage_stock"`
	StockQuantity *int64                  `json:"stock_quantity,omitempty"`
	Weight        string                  `json:"weight"`
	Image         *WooImage               `json:"image,omitempty"`
	Attributes    []WooVariationAttribute `json:"attributes"`
}

// WooVariationAttribute selects one option value
type WooVariationAttribute struct {
	Name   string `json:"name"`
	Option string `json:"option"`
}

// WooVariationBatch is the body of the variations batch endpoint
type WooVariationBatch struct {
	Create []WooVariation `json:"create,omitempty"`
	Update []WooVariation `json:"update,omitempty"`
	Delete []int64        `json:"delete,omitempty"`
}

// WooVariationBatchResult is the batch endpoint response. Items that failed
// carry an error object instead of a resource.
type WooVariationBatchResult struct {
	Create []WooBatchItem `json:"create"`
	Update []WooBatchItem `json:"update"`
	Delete []WooBatchItem `json:"delete"`
}

// WooBatchItem is one batch result entry
type WooBatchItem struct {
	WooVariation
	Error *WooError `json:"error,omitempty"`
}

// WooError is the REST API error body
type WooError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int               `json:"status"`
		Params map[string]string `json:"params,omitempty"`
		// ResourceID is set on term_exists errors
		ResourceID int64 `json:"resource_id,omitempty"`
	} `json:"data"`
}

// fieldErrors turns an error body into field errors, one per invalid param
func (e *WooError) fieldErrors() []integration.FieldError {
	if len(e.Data.Params) == 0 {
		return []integration.FieldError{{Field: "product", Message: e.Message, Code: e.Code}}
	}
	out := make([]integration.FieldError, 0, len(e.Data.Params))
	for field, msg := range e.Data.Params {
		out = append(out, integration.FieldError{Field: field, Message: msg, Code: e.Code})
	}
	return out
}

// wooSyncMeta is the value of the _catalog_sync meta entry. It carries the
// canonical fields WooCommerce has no column for.
type wooSyncMeta struct {
	CanonicalID    string   `json:"canonical_id"`
	Vendor         string   `json:"vendor,omitempty"`
	ProductType    string   `json:"product_type,omitempty"`
	ImageSources   []string `json:"image_sources,omitempty"`
	Price          *int64   `json:"price,omitempty"`
	CompareAtPrice *int64   `json:"compare_at_price,omitempty"`

	// WeightGrams is set when a simple product's weight column holds a
	// variant weight that differs from the product's own
	WeightGrams *int64 `json:"weight_grams,omitempty"`

	// VariantCompareAtPrice keeps a simple product's compare-at price that
	// regular and sale prices cannot express
	VariantCompareAtPrice *int64 `json:"variant_compare_at_price,omitempty"`
}

// wooExtras holds WooCommerce-only fields kept across pull and push
type wooExtras struct {
	Slug              string `json:"slug,omitempty"`
	ShortDescription  string `json:"short_description,omitempty"`
	CatalogVisibility string `json:"catalog_visibility,omitempty"`
	Featured          *bool  `json:"featured,omitempty"`
	MenuOrder         *int   `json:"menu_order,omitempty"`
}

func (e wooExtras) isZero() bool {
	return e == wooExtras{}
}

// ---------------------------------------------------------------------------
// Payload and record
// ---------------------------------------------------------------------------

// Errors for WooCommerce payloads
var (
	ErrWooMissingName          = errors.New("woocommerce: product name is required")
	ErrWooInvalidType          = errors.New("woocommerce: product type must be simple or variable")
	ErrWooInvalidPrice         = errors.New("woocommerce: invalid price")
	ErrWooMissingVariations    = errors.New("woocommerce: variable product has no variations")
	ErrWooVariationAttributes  = errors.New("woocommerce: variation attributes do not match product attributes")
	ErrWooUnexpectedVariations = errors.New("woocommerce: simple product cannot carry variations")
)

// WooProductPayload is the complete write for one product: the product
// resource plus, for variable products, its variations in variant order.
type WooProductPayload struct {
	Product    WooProduct
	Variations []WooVariation
	// VariantKeys are the canonical keys parallel to Variations
	VariantKeys []string
}

var _ integration.PlatformPayload = (*WooProductPayload)(nil)

// Platform implements integration.PlatformPayload
func (p *WooProductPayload) Platform() integration.PlatformCode {
	return integration.PlatformCodeWooCommerce
}

// Validate implements integration.PlatformPayload
func (p *WooProductPayload) Validate() error {
	if p.Product.Name == "" {
		return ErrWooMissingName
	}
	if err := validWooPrice(p.Product.RegularPrice, true); err != nil {
		return err
	}
	if err := validWooPrice(p.Product.SalePrice, true); err != nil {
		return err
	}
	switch p.Product.Type {
	case "simple":
		if len(p.Variations) > 0 {
			return ErrWooUnexpectedVariations
		}
	case "variable":
		if len(p.Variations) == 0 {
			return ErrWooMissingVariations
		}
		if len(p.VariantKeys) != len(p.Variations) {
			return fmt.Errorf("%w: %d keys for %d variations", ErrWooVariationAttributes, len(p.VariantKeys), len(p.Variations))
		}
		names := make(map[string]bool, len(p.Product.Attributes))
		for _, a := range p.Product.Attributes {
			if a.Variation {
				names[a.Name] = true
			}
		}
		for i, v := range p.Variations {
			if len(v.Attributes) != len(names) {
				return fmt.Errorf("%w: variation %d", ErrWooVariationAttributes, i)
			}
			for _, a := range v.Attributes {
				if !names[a.Name] {
					return fmt.Errorf("%w: variation %d uses %q", ErrWooVariationAttributes, i, a.Name)
				}
			}
			if err := validWooPrice(v.RegularPrice, false); err != nil {
				return fmt.Errorf("variation %d: %w", i, err)
			}
			if err := validWooPrice(v.SalePrice, true); err != nil {
				return fmt.Errorf("variation %d: %w", i, err)
			}
		}
	default:
		return ErrWooInvalidType
	}
	return nil
}

func validWooPrice(s string, allowEmpty bool) error {
	if s == "" {
		if allowEmpty {
			return nil
		}
		return fmt.Errorf("%w: empty", ErrWooInvalidPrice)
	}
	if _, err := convert.DecimalStringToMinor(s); err != nil {
		return fmt.Errorf("%w: %q", ErrWooInvalidPrice, s)
	}
	return nil
}

// WooRecord is a product read back from WooCommerce with its variations
type WooRecord struct {
	Product    WooProduct
	Variations []WooVariation
}

var _ integration.PlatformRecord = (*WooRecord)(nil)

// Platform implements integration.PlatformRecord
func (r *WooRecord) Platform() integration.PlatformCode {
	return integration.PlatformCodeWooCommerce
}

// RecordID implements integration.PlatformRecord
func (r *WooRecord) RecordID() string {
	if r.Product.ID == 0 {
		return ""
	}
	return strconv.FormatInt(r.Product.ID, 10)
}
