package ecommerce

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/catalogsync/backend/internal/domain/convert"
	"github.com/catalogsync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// GraphQL envelope
// ---------------------------------------------------------------------------

// graphqlRequest is the body of every Admin API call
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the envelope of every Admin API response
type graphqlResponse struct {
	Data       json.RawMessage `json:"data"`
	Errors     []graphqlError  `json:"errors,omitempty"`
	Extensions struct {
		Cost *ShopifyQueryCost `json:"cost,omitempty"`
	} `json:"extensions"`
}

// graphqlError is a top-level query error
type graphqlError struct {
	Message    string `json:"message"`
	Path       []any  `json:"path,omitempty"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// ShopifyQueryCost reports the calculated cost and bucket state of a query
type ShopifyQueryCost struct {
	RequestedQueryCost float64 `json:"requestedQueryCost"`
	ActualQueryCost    float64 `json:"actualQueryCost"`
	ThrottleStatus     struct {
		MaximumAvailable   float64 `json:"maximumAvailable"`
		CurrentlyAvailable float64 `json:"currentlyAvailable"`
		RestoreRate        float64 `json:"restoreRate"`
	} `json:"throttleStatus"`
}

// ShopifyUserError is a mutation field error
type ShopifyUserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// ---------------------------------------------------------------------------
// Inputs
// ---------------------------------------------------------------------------

// ShopifyProductInput is the ProductCreateInput / ProductUpdateInput shape
type ShopifyProductInput struct {
	ID              string                  `json:"id,omitempty"`
	Title           string                  `json:"title,omitempty"`
	DescriptionHTML string                  `json:"descriptionHtml,omitempty"`
	Vendor          string                  `json:"vendor,omitempty"`
	ProductType     string                  `json:"productType,omitempty"`
	Tags            []string                `json:"tags,omitempty"`
	Status          string                  `json:"status,omitempty"`
	Handle          string                  `json:"handle,omitempty"`
	TemplateSuffix  string                  `json:"templateSuffix,omitempty"`
	ProductOptions  []ShopifyOptionInput    `json:"productOptions,omitempty"`
	Metafields      []ShopifyMetafieldInput `json:"metafields,omitempty"`
}

// ShopifyOptionInput declares an option axis with its values
type ShopifyOptionInput struct {
	Name   string                    `json:"name"`
	Values []ShopifyOptionValueInput `json:"values"`
}

// ShopifyOptionValueInput is one option value
type ShopifyOptionValueInput struct {
	Name string `json:"name"`
}

// ShopifyMetafieldInput sets a metafield
type ShopifyMetafieldInput struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// shopifyCanonical is the value of the catalog_sync.canonical metafield.
// MediaSources maps platform media ids to source URLs; it is filled once the
// media ids are known.
type shopifyCanonical struct {
	CanonicalID  string            `json:"canonical_id"`
	ProductType  string            `json:"product_type,omitempty"`
	MediaSources map[string]string `json:"media_sources,omitempty"`
	Price        int64             `json:"price"`
	Compare      *int64            `json:"compare_at_price,omitempty"`
	WeightGrams  int64             `json:"weight_grams,omitempty"`
	IsDigital    bool              `json:"is_digital,omitempty"`
	Options      []shopifyOptSave  `json:"options,omitempty"`
}

func (c shopifyCanonical) metafields() ([]ShopifyMetafieldInput, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return []ShopifyMetafieldInput{{
		Namespace: shopifyMetafieldNamespace,
		Key:       shopifyMetafieldKey,
		Type:      "json",
		Value:     string(raw),
	}}, nil
}

type shopifyOptSave struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// shopifyExtras holds Shopify-only fields kept across pull and push
type shopifyExtras struct {
	Handle         string `json:"handle,omitempty"`
	TemplateSuffix string `json:"template_suffix,omitempty"`
}

// ---------------------------------------------------------------------------
// Read models
// ---------------------------------------------------------------------------

// ShopifyProduct is a product as returned by the product query
type ShopifyProduct struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	DescriptionHTML string   `json:"descriptionHtml"`
	Vendor          string   `json:"vendor"`
	ProductType     string   `json:"productType"`
	Tags            []string `json:"tags"`
	Status          string   `json:"status"`
	Handle          string   `json:"handle"`
	TemplateSuffix  string   `json:"templateSuffix"`
	Options         []struct {
		Name         string `json:"name"`
		Position     int    `json:"position"`
		OptionValues []struct {
			Name string `json:"name"`
		} `json:"optionValues"`
	} `json:"options"`
	Media struct {
		Nodes []ShopifyMedia `json:"nodes"`
	} `json:"media"`
	Variants struct {
		Nodes []ShopifyVariant `json:"nodes"`
	} `json:"variants"`
	Metafield *struct {
		Value string `json:"value"`
	} `json:"metafield"`
}

// ShopifySelectedOption is one option value of a variant
type ShopifySelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ShopifyMedia is a MediaImage node
type ShopifyMedia struct {
	ID     string `json:"id"`
	Alt    string `json:"alt"`
	Status string `json:"status"`
	Image  *struct {
		URL string `json:"url"`
	} `json:"image"`
}

// ShopifyVariant is a product variant node
type ShopifyVariant struct {
	ID                string                  `json:"id"`
	SKU               string                  `json:"sku"`
	Price             string                  `json:"price"`
	CompareAtPrice    string                  `json:"compareAtPrice"`
	InventoryQuantity int64                   `json:"inventoryQuantity"`
	SelectedOptions   []ShopifySelectedOption `json:"selectedOptions"`
	Media             struct {
		Nodes []struct {
			ID string `json:"id"`
		} `json:"nodes"`
	} `json:"media"`
	InventoryItem struct {
		ID               string `json:"id"`
		RequiresShipping *bool  `json:"requiresShipping"`
		Measurement      *struct {
			Weight *struct {
				Value float64 `json:"value"`
				Unit  string  `json:"unit"`
			} `json:"weight"`
		} `json:"measurement"`
	} `json:"inventoryItem"`
}

// ---------------------------------------------------------------------------
// Payload and record
// ---------------------------------------------------------------------------

// Errors for Shopify payloads
var (
	ErrShopifyMissingTitle     = errors.New("shopify: product title is required")
	ErrShopifyInvalidStatus    = errors.New("shopify: invalid product status")
	ErrShopifyNoVariants       = errors.New("shopify: product has no variants")
	ErrShopifyTooManyOptions   = errors.New("shopify: too many options")
	ErrShopifyTooManyVariants  = errors.New("shopify: too many variants")
	ErrShopifyVariantOptions   = errors.New("shopify: variant option values do not match product options")
	ErrShopifyDuplicateVariant = errors.New("shopify: duplicate variant")
	ErrShopifyInvalidPrice     = errors.New("shopify: invalid price")
	ErrShopifyMissingMediaURL  = errors.New("shopify: media has no upload url")
)

// ShopifyProductPayload is the input for the multi-step pipeline. Status is
// the target status applied at activation; the shell is always a draft.
type ShopifyProductPayload struct {
	Product   ShopifyProductInput
	Status    string
	media     []integration.MediaInput
	variants  []integration.VariantInput
	canonical shopifyCanonical
}

var _ integration.MultiStepPayload = (*ShopifyProductPayload)(nil)

// Platform implements integration.PlatformPayload
func (p *ShopifyProductPayload) Platform() integration.PlatformCode {
	return integration.PlatformCodeShopify
}

// Media implements integration.MultiStepPayload
func (p *ShopifyProductPayload) Media() []integration.MediaInput {
	return slices.Clone(p.media)
}

// VariantInputs implements integration.MultiStepPayload
func (p *ShopifyProductPayload) VariantInputs() []integration.VariantInput {
	return slices.Clone(p.variants)
}

// BindMedia implements integration.MultiStepPayload. It rewrites the
// canonical metafield so a pull can map each media id to its source URL.
func (p *ShopifyProductPayload) BindMedia(mediaIDs map[string]string) error {
	var sources map[string]string
	for _, m := range p.media {
		id, ok := mediaIDs[m.SourceURL]
		if !ok || id == "" {
			continue
		}
		if sources == nil {
			sources = make(map[string]string, len(p.media))
		}
		sources[id] = m.SourceURL
	}
	p.canonical.MediaSources = sources
	fields, err := p.canonical.metafields()
	if err != nil {
		return err
	}
	p.Product.Metafields = fields
	return nil
}

// Validate implements integration.PlatformPayload
func (p *ShopifyProductPayload) Validate() error {
	if p.Product.Title == "" {
		return ErrShopifyMissingTitle
	}
	if _, err := convert.ShopifyStatuses.FromPlatform(p.Status); err != nil {
		return fmt.Errorf("%w: %q", ErrShopifyInvalidStatus, p.Status)
	}
	if len(p.variants) == 0 {
		return ErrShopifyNoVariants
	}
	if len(p.Product.ProductOptions) > shopifyMaxOptions {
		return fmt.Errorf("%w: %d", ErrShopifyTooManyOptions, len(p.Product.ProductOptions))
	}
	if len(p.variants) > shopifyMaxVariants {
		return fmt.Errorf("%w: %d", ErrShopifyTooManyVariants, len(p.variants))
	}
	seen := make(map[string]bool, len(p.variants))
	for i, v := range p.variants {
		if len(v.OptionValues) != len(p.Product.ProductOptions) {
			return fmt.Errorf("%w: variant %d", ErrShopifyVariantOptions, i)
		}
		for j, ov := range v.OptionValues {
			if ov.Name != p.Product.ProductOptions[j].Name {
				return fmt.Errorf("%w: variant %d option %q", ErrShopifyVariantOptions, i, ov.Name)
			}
		}
		if seen[v.Key] {
			return fmt.Errorf("%w: %q", ErrShopifyDuplicateVariant, v.Key)
		}
		seen[v.Key] = true
		if _, err := convert.DecimalStringToMinor(v.Price); err != nil {
			return fmt.Errorf("%w: variant %d %q", ErrShopifyInvalidPrice, i, v.Price)
		}
		if _, err := convert.OptionalDecimalStringToMinor(v.CompareAtPrice); err != nil {
			return fmt.Errorf("%w: variant %d compare at %q", ErrShopifyInvalidPrice, i, v.CompareAtPrice)
		}
	}
	for i, m := range p.media {
		if m.UploadURL == "" {
			return fmt.Errorf("%w: media %d", ErrShopifyMissingMediaURL, i)
		}
	}
	return nil
}

// ShopifyRecord is a product read back from Shopify
type ShopifyRecord struct {
	Product ShopifyProduct
}

var _ integration.PlatformRecord = (*ShopifyRecord)(nil)

// Platform implements integration.PlatformRecord
func (r *ShopifyRecord) Platform() integration.PlatformCode {
	return integration.PlatformCodeShopify
}

// RecordID implements integration.PlatformRecord
func (r *ShopifyRecord) RecordID() string {
	return r.Product.ID
}
