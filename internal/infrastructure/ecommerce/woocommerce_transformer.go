package ecommerce

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/google/uuid"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/convert"
	"github.com/catalogsync/backend/internal/domain/integration"
)

// WooCommerceTransformer maps canonical products to WooCommerce REST resources
type WooCommerceTransformer struct {
	config   *WooCommerceConfig
	taxonomy *convert.Taxonomy
	proxy    integration.ImageProxy
}

var _ integration.Transformer = (*WooCommerceTransformer)(nil)

// NewWooCommerceTransformer creates a transformer. taxonomy and proxy may be nil.
func NewWooCommerceTransformer(cfg *WooCommerceConfig, taxonomy *convert.Taxonomy, proxy integration.ImageProxy) *WooCommerceTransformer {
	if cfg == nil {
		cfg = NewWooCommerceConfig()
	}
	return &WooCommerceTransformer{config: cfg, taxonomy: taxonomy, proxy: proxy}
}

// Platform implements integration.Transformer
func (t *WooCommerceTransformer) Platform() integration.PlatformCode {
	return integration.PlatformCodeWooCommerce
}

// ToPlatform implements integration.Transformer
func (t *WooCommerceTransformer) ToPlatform(product *catalog.Product, sc integration.SyncContext) (integration.PlatformPayload, error) {
	const op = "woocommerce.toPlatform"
	if err := product.Validate(); err != nil {
		return nil, integration.NewValidationError(op, err)
	}
	status, err := convert.WooCommerceStatuses.ToPlatform(product.Status)
	if err != nil {
		return nil, err
	}

	tags := slices.Clone(product.Tags)
	normalized := catalog.Product{Tags: tags}
	normalized.NormalizeTags()

	wp := WooProduct{
		Name:        product.Title,
		Status:      status,
		Description: product.Description,
		Virtual:     product.IsDigital,
		ManageStock: true,
		Categories:  []WooTerm{{Name: categoryFor(t.taxonomy, product.ProductType)}},
		Tags:        make([]WooTerm, 0, len(normalized.Tags)),
		Weight:      t.formatWeight(product.WeightGrams),
	}
	for _, tag := range normalized.Tags {
		wp.Tags = append(wp.Tags, WooTerm{Name: tag})
	}

	images := sortedImages(product.Images)
	meta := wooSyncMeta{
		CanonicalID: product.ID.String(),
		Vendor:      product.Vendor,
		ProductType: product.ProductType,
	}
	wp.Images = make([]WooImage, 0, len(images))
	for i, img := range images {
		wp.Images = append(wp.Images, WooImage{Src: uploadURL(t.proxy, img.URL), Alt: img.Alt, Position: i})
		meta.ImageSources = append(meta.ImageSources, img.URL)
	}

	// the product-level price pair lives in meta for both types; a simple
	// product's columns hold its default variant
	price := product.Price
	meta.Price = &price
	meta.CompareAtPrice = product.CompareAtPrice

	payload := &WooProductPayload{}
	if product.HasOnlyDefaultVariant() {
		v := product.EffectiveVariants()[0]
		wp.Type = "simple"
		wp.SKU = v.SKU
		wp.RegularPrice, wp.SalePrice, meta.VariantCompareAtPrice = wooPrices(v.Price, v.CompareAtPrice)
		qty := v.InventoryQuantity
		wp.StockQuantity = &qty
		if v.WeightGrams > 0 && v.WeightGrams != product.WeightGrams {
			wp.Weight = t.formatWeight(v.WeightGrams)
			grams := product.WeightGrams
			meta.WeightGrams = &grams
		}
	} else {
		wp.Type = "variable"
		for i, opt := range product.Options {
			wp.Attributes = append(wp.Attributes, WooAttribute{
				Name:      opt.Name,
				Position:  i,
				Visible:   true,
				Variation: true,
				Options:   slices.Clone(opt.Values),
			})
		}
		for _, v := range product.Variants {
			payload.Variations = append(payload.Variations, t.variation(product, v))
			payload.VariantKeys = append(payload.VariantKeys, v.Key())
		}
	}

	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, integration.NewValidationError(op, err)
	}
	wp.MetaData = []WooMeta{{Key: wooMetaKey, Value: rawMeta}}

	if raw := product.Extra(integration.PlatformCodeWooCommerce.String()); len(raw) > 0 {
		var extras wooExtras
		if err := json.Unmarshal(raw, &extras); err != nil {
			return nil, integration.NewValidationError(op, fmt.Errorf("invalid woocommerce extras: %w", err))
		}
		wp.Slug = extras.Slug
		wp.ShortDescription = extras.ShortDescription
		wp.CatalogVisibility = extras.CatalogVisibility
		wp.Featured = extras.Featured
		wp.MenuOrder = extras.MenuOrder
	}

	payload.Product = wp
	if err := payload.Validate(); err != nil {
		return nil, integration.NewValidationError(op, err)
	}
	return payload, nil
}

func (t *WooCommerceTransformer) variation(product *catalog.Product, v catalog.Variant) WooVariation {
	wv := WooVariation{
		SKU:         v.SKU,
		Virtual:     product.IsDigital,
		ManageStock: true,
		Weight:      t.formatWeight(v.WeightGrams),
	}
	wv.RegularPrice, wv.SalePrice, _ = wooPrices(v.Price, v.CompareAtPrice)
	qty := v.InventoryQuantity
	wv.StockQuantity = &qty
	for i, value := range v.OptionValues {
		wv.Attributes = append(wv.Attributes, WooVariationAttribute{Name: product.Options[i].Name, Option: value})
	}
	if img, ok := product.VariantImage(v); ok {
		wv.Image = &WooImage{Src: uploadURL(t.proxy, img.URL), Alt: img.Alt}
	}
	return wv
}

func (t *WooCommerceTransformer) formatWeight(grams int64) string {
	if grams <= 0 {
		return ""
	}
	return convert.FormatMass(grams, t.config.WeightUnit, t.config.WeightPrecision)
}

// FromPlatform implements integration.Transformer
func (t *WooCommerceTransformer) FromPlatform(record integration.PlatformRecord) (*catalog.Product, error) {
	rec, ok := record.(*WooRecord)
	if !ok || rec == nil {
		return nil, integration.NewValidationError("woocommerce.fromPlatform", integration.ErrUnexpectedPayload)
	}
	platform := integration.PlatformCodeWooCommerce
	wp := rec.Product
	if wp.ID == 0 {
		return nil, integration.NewMalformedRecord(platform, "product has no id")
	}
	if wp.Name == "" {
		return nil, integration.NewMalformedRecord(platform, "product %d has no name", wp.ID)
	}
	status, err := convert.WooCommerceStatuses.FromPlatform(wp.Status)
	if err != nil {
		return nil, err
	}
	meta, err := readWooSyncMeta(wp.MetaData)
	if err != nil {
		return nil, integration.NewMalformedRecord(platform, "product %d: %v", wp.ID, err)
	}

	p := &catalog.Product{
		Title:       wp.Name,
		Description: wp.Description,
		Status:      status,
		Vendor:      meta.Vendor,
		ProductType: meta.ProductType,
		IsDigital:   wp.Virtual,
	}
	if id, err := uuid.Parse(meta.CanonicalID); err == nil {
		p.ID = id
	}
	if p.ProductType == "" && len(wp.Categories) > 0 {
		p.ProductType = wp.Categories[0].Name
	}
	for _, tag := range wp.Tags {
		p.Tags = append(p.Tags, tag.Name)
	}
	p.NormalizeTags()

	// srcToSource maps platform-hosted image URLs back to canonical URLs
	srcToSource := make(map[string]string, len(wp.Images))
	for i, img := range wp.Images {
		url := img.Src
		if i < len(meta.ImageSources) && meta.ImageSources[i] != "" {
			url = meta.ImageSources[i]
		}
		srcToSource[img.Src] = url
		p.Images = append(p.Images, catalog.Image{URL: url, Alt: img.Alt, Position: i})
	}

	if p.WeightGrams, err = convert.ParseMass(wp.Weight, t.config.WeightUnit); err != nil {
		return nil, integration.NewMalformedRecord(platform, "product %d weight: %v", wp.ID, err)
	}

	switch wp.Type {
	case "variable":
		if err := t.variantsFromPlatform(p, rec, meta, srcToSource); err != nil {
			return nil, err
		}
	default:
		price, compareAt, err := fromWooPrices(wp.RegularPrice, wp.SalePrice)
		if err != nil {
			return nil, integration.NewMalformedRecord(platform, "product %d price: %v", wp.ID, err)
		}
		if compareAt == nil {
			compareAt = meta.VariantCompareAtPrice
		}
		p.Price = price
		p.CompareAtPrice = compareAt
		if meta.Price != nil {
			p.Price = *meta.Price
			p.CompareAtPrice = meta.CompareAtPrice
		}
		var qty int64
		if wp.StockQuantity != nil {
			qty = *wp.StockQuantity
		}
		if wp.SKU != "" || qty != 0 {
			p.Variants = []catalog.Variant{{
				SKU:               wp.SKU,
				Price:             price,
				CompareAtPrice:    compareAt,
				InventoryQuantity: qty,
				WeightGrams:       p.WeightGrams,
			}}
		}
		if meta.WeightGrams != nil {
			p.WeightGrams = *meta.WeightGrams
		}
	}

	extras := wooExtras{
		Slug:              wp.Slug,
		ShortDescription:  wp.ShortDescription,
		CatalogVisibility: wp.CatalogVisibility,
		Featured:          wp.Featured,
		MenuOrder:         wp.MenuOrder,
	}
	if !extras.isZero() {
		raw, err := json.Marshal(extras)
		if err != nil {
			return nil, integration.NewMalformedRecord(platform, "product %d extras: %v", wp.ID, err)
		}
		p.SetExtra(platform.String(), raw)
	}
	return p, nil
}

func (t *WooCommerceTransformer) variantsFromPlatform(p *catalog.Product, rec *WooRecord, meta wooSyncMeta, srcToSource map[string]string) error {
	platform := integration.PlatformCodeWooCommerce
	attrs := make([]WooAttribute, 0, len(rec.Product.Attributes))
	for _, a := range rec.Product.Attributes {
		if a.Variation {
			attrs = append(attrs, a)
		}
	}
	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Position < attrs[j].Position })
	if len(attrs) == 0 {
		return integration.NewMalformedRecord(platform, "variable product %d has no variation attributes", rec.Product.ID)
	}
	for _, a := range attrs {
		p.Options = append(p.Options, catalog.Option{Name: a.Name, Values: slices.Clone(a.Options)})
	}

	for _, wv := range rec.Variations {
		values := make([]string, len(attrs))
		for i, a := range attrs {
			idx := slices.IndexFunc(wv.Attributes, func(va WooVariationAttribute) bool { return va.Name == a.Name })
			if idx < 0 {
				return integration.NewMalformedRecord(platform, "variation %d has no value for %q", wv.ID, a.Name)
			}
			values[i] = wv.Attributes[idx].Option
		}
		price, compareAt, err := fromWooPrices(wv.RegularPrice, wv.SalePrice)
		if err != nil {
			return integration.NewMalformedRecord(platform, "variation %d price: %v", wv.ID, err)
		}
		grams, err := convert.ParseMass(wv.Weight, t.config.WeightUnit)
		if err != nil {
			return integration.NewMalformedRecord(platform, "variation %d weight: %v", wv.ID, err)
		}
		v := catalog.Variant{
			SKU:            wv.SKU,
			Price:          price,
			CompareAtPrice: compareAt,
			WeightGrams:    grams,
			OptionValues:   values,
		}
		if wv.StockQuantity != nil {
			v.InventoryQuantity = *wv.StockQuantity
		}
		if wv.Image != nil {
			if source, ok := srcToSource[wv.Image.Src]; ok {
				// keep implicit alt-text matches implicit
				if img, matched := p.VariantImage(v); !matched || img.URL != source {
					v.ImageURL = source
				}
			}
		}
		p.Variants = append(p.Variants, v)
	}

	switch {
	case meta.Price != nil:
		p.Price = *meta.Price
	case len(p.Variants) > 0:
		p.Price = p.Variants[0].Price
	}
	p.CompareAtPrice = meta.CompareAtPrice
	return nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// wooPrices maps a price pair onto regular and sale prices. A compare-at
// price that is not above the price cannot be expressed and is returned as kept.
func wooPrices(price int64, compareAt *int64) (regular, sale string, kept *int64) {
	if compareAt != nil && *compareAt > price {
		return convert.MinorToDecimalString(*compareAt), convert.MinorToDecimalString(price), nil
	}
	return convert.MinorToDecimalString(price), "", compareAt
}

// fromWooPrices is the inverse of wooPrices
func fromWooPrices(regular, sale string) (int64, *int64, error) {
	if regular == "" && sale == "" {
		return 0, nil, nil
	}
	if sale == "" {
		price, err := convert.DecimalStringToMinor(regular)
		return price, nil, err
	}
	price, err := convert.DecimalStringToMinor(sale)
	if err != nil {
		return 0, nil, err
	}
	compareAt, err := convert.OptionalDecimalStringToMinor(regular)
	if err != nil {
		return 0, nil, err
	}
	return price, compareAt, nil
}

// readWooSyncMeta finds the _catalog_sync entry. WooCommerce returns the value
// either as the stored object or as a JSON string depending on the plugin setup.
func readWooSyncMeta(entries []WooMeta) (wooSyncMeta, error) {
	var meta wooSyncMeta
	for _, m := range entries {
		if m.Key != wooMetaKey || len(m.Value) == 0 {
			continue
		}
		raw := m.Value
		if raw[0] == '"' {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return meta, fmt.Errorf("%s: %w", wooMetaKey, err)
			}
			raw = []byte(s)
		}
		if err := json.Unmarshal(raw, &meta); err != nil {
			return meta, fmt.Errorf("%s: %w", wooMetaKey, err)
		}
		return meta, nil
	}
	return meta, nil
}

// categoryFor resolves a product type through the taxonomy
func categoryFor(taxonomy *convert.Taxonomy, productType string) string {
	if taxonomy == nil {
		return convert.DefaultCategory
	}
	return taxonomy.Resolve(productType).Category
}

// sortedImages returns the images ordered by position
func sortedImages(images []catalog.Image) []catalog.Image {
	out := slices.Clone(images)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
