package ecommerce

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/convert"
	"github.com/catalogsync/backend/internal/domain/integration"
)

// ShopifyTransformer maps canonical products to Shopify pipeline inputs
type ShopifyTransformer struct {
	config   *ShopifyConfig
	taxonomy *convert.Taxonomy
	proxy    integration.ImageProxy
}

var _ integration.Transformer = (*ShopifyTransformer)(nil)

// NewShopifyTransformer creates a transformer. taxonomy and proxy may be nil.
func NewShopifyTransformer(cfg *ShopifyConfig, taxonomy *convert.Taxonomy, proxy integration.ImageProxy) *ShopifyTransformer {
	if cfg == nil {
		cfg = NewShopifyConfig()
	}
	return &ShopifyTransformer{config: cfg, taxonomy: taxonomy, proxy: proxy}
}

// Platform implements integration.Transformer
func (t *ShopifyTransformer) Platform() integration.PlatformCode {
	return integration.PlatformCodeShopify
}

// ToPlatform implements integration.Transformer
func (t *ShopifyTransformer) ToPlatform(product *catalog.Product, _ integration.SyncContext) (integration.PlatformPayload, error) {
	const op = "shopify.toPlatform"
	if err := product.Validate(); err != nil {
		return nil, integration.NewValidationError(op, err)
	}
	status, err := convert.ShopifyStatuses.ToPlatform(product.Status)
	if err != nil {
		return nil, err
	}

	normalized := catalog.Product{Tags: slices.Clone(product.Tags)}
	normalized.NormalizeTags()

	canonical := shopifyCanonical{
		CanonicalID: product.ID.String(),
		ProductType: product.ProductType,
		Price:       product.Price,
		Compare:     product.CompareAtPrice,
		WeightGrams: product.WeightGrams,
		IsDigital:   product.IsDigital,
	}

	payload := &ShopifyProductPayload{Status: status}
	for _, img := range sortedImages(product.Images) {
		payload.media = append(payload.media, integration.MediaInput{
			SourceURL: img.URL,
			UploadURL: uploadURL(t.proxy, img.URL),
			Alt:       img.Alt,
		})
	}

	variants := product.EffectiveVariants()
	unit := shopifyWeightUnit(t.config.WeightUnit)
	for _, v := range variants {
		in := integration.VariantInput{
			Key:              v.Key(),
			SKU:              v.SKU,
			Price:            convert.MinorToDecimalString(v.Price),
			CompareAtPrice:   convert.OptionalMinorToDecimalString(v.CompareAtPrice),
			Weight:           convert.FormatMass(v.WeightGrams, t.config.WeightUnit, t.config.WeightPrecision),
			WeightUnit:       unit,
			Quantity:         v.InventoryQuantity,
			RequiresShipping: !product.IsDigital,
		}
		for i, value := range v.OptionValues {
			in.OptionValues = append(in.OptionValues, integration.OptionValue{Name: product.Options[i].Name, Value: value})
		}
		if img, ok := product.VariantImage(v); ok {
			in.ImageSourceURL = img.URL
		}
		payload.variants = append(payload.variants, in)
	}

	input := ShopifyProductInput{
		Title:           product.Title,
		DescriptionHTML: product.Description,
		Vendor:          product.Vendor,
		ProductType:     categoryFor(t.taxonomy, product.ProductType),
		Tags:            normalized.Tags,
	}
	// the platform builds its implicit default variant from the first value of
	// every option, so the first variant's values lead each list
	for i, opt := range product.Options {
		canonical.Options = append(canonical.Options, shopifyOptSave{Name: opt.Name, Values: slices.Clone(opt.Values)})
		first := variants[0].OptionValues[i]
		values := []ShopifyOptionValueInput{{Name: first}}
		for _, value := range opt.Values {
			if value != first {
				values = append(values, ShopifyOptionValueInput{Name: value})
			}
		}
		input.ProductOptions = append(input.ProductOptions, ShopifyOptionInput{Name: opt.Name, Values: values})
	}

	if input.Metafields, err = canonical.metafields(); err != nil {
		return nil, integration.NewValidationError(op, err)
	}

	if extra := product.Extra(integration.PlatformCodeShopify.String()); len(extra) > 0 {
		var extras shopifyExtras
		if err := json.Unmarshal(extra, &extras); err != nil {
			return nil, integration.NewValidationError(op, fmt.Errorf("invalid shopify extras: %w", err))
		}
		input.Handle = extras.Handle
		input.TemplateSuffix = extras.TemplateSuffix
	}

	payload.Product = input
	payload.canonical = canonical
	if err := payload.Validate(); err != nil {
		return nil, integration.NewValidationError(op, err)
	}
	return payload, nil
}

// FromPlatform implements integration.Transformer
func (t *ShopifyTransformer) FromPlatform(record integration.PlatformRecord) (*catalog.Product, error) {
	rec, ok := record.(*ShopifyRecord)
	if !ok || rec == nil {
		return nil, integration.NewValidationError("shopify.fromPlatform", integration.ErrUnexpectedPayload)
	}
	platform := integration.PlatformCodeShopify
	sp := rec.Product
	if sp.ID == "" {
		return nil, integration.NewMalformedRecord(platform, "product has no id")
	}
	if sp.Title == "" {
		return nil, integration.NewMalformedRecord(platform, "product %s has no title", sp.ID)
	}
	if len(sp.Variants.Nodes) == 0 {
		return nil, integration.NewMalformedRecord(platform, "product %s has no variants", sp.ID)
	}
	status, err := convert.ShopifyStatuses.FromPlatform(sp.Status)
	if err != nil {
		return nil, err
	}

	var canonical shopifyCanonical
	if sp.Metafield != nil && sp.Metafield.Value != "" {
		if err := json.Unmarshal([]byte(sp.Metafield.Value), &canonical); err != nil {
			return nil, integration.NewMalformedRecord(platform, "product %s canonical metafield: %v", sp.ID, err)
		}
	}

	p := &catalog.Product{
		Title:       sp.Title,
		Description: sp.DescriptionHTML,
		Vendor:      sp.Vendor,
		ProductType: sp.ProductType,
		Tags:        slices.Clone(sp.Tags),
		Status:      status,
	}
	if id, err := uuid.Parse(canonical.CanonicalID); err == nil {
		p.ID = id
	}
	if canonical.ProductType != "" {
		p.ProductType = canonical.ProductType
	}
	p.NormalizeTags()

	mediaSource := make(map[string]string, len(sp.Media.Nodes))
	position := 0
	for _, m := range sp.Media.Nodes {
		if m.ID == "" {
			continue
		}
		src, ok := canonical.MediaSources[m.ID]
		if !ok && m.Image != nil {
			src = m.Image.URL
		}
		if src == "" {
			// still processing or failed; nothing to point at
			continue
		}
		mediaSource[m.ID] = src
		p.Images = append(p.Images, catalog.Image{URL: src, Alt: m.Alt, Position: position})
		position++
	}

	p.Options = shopifyOptions(sp, canonical.Options)
	defaultOnly := len(p.Options) == 0

	for _, sv := range sp.Variants.Nodes {
		v, err := shopifyVariant(sv, p.Options, mediaSource)
		if err != nil {
			return nil, err
		}
		if img, matched := p.VariantImage(catalog.Variant{OptionValues: v.OptionValues}); matched && img.URL == v.ImageURL {
			v.ImageURL = ""
		}
		p.Variants = append(p.Variants, v)
	}

	if canonical.CanonicalID != "" {
		p.Price = canonical.Price
		p.CompareAtPrice = canonical.Compare
		p.WeightGrams = canonical.WeightGrams
		p.IsDigital = canonical.IsDigital
	} else {
		first := sp.Variants.Nodes[0]
		p.Price = p.Variants[0].Price
		p.CompareAtPrice = p.Variants[0].CompareAtPrice
		p.WeightGrams = p.Variants[0].WeightGrams
		p.IsDigital = first.InventoryItem.RequiresShipping != nil && !*first.InventoryItem.RequiresShipping
	}
	if defaultOnly {
		// a single "Default Title" variant carries only stock and sku
		v := p.Variants[0]
		if v.SKU == "" && v.InventoryQuantity == 0 {
			p.Variants = nil
		} else {
			p.Variants = p.Variants[:1]
		}
	}

	extras := shopifyExtras{Handle: sp.Handle, TemplateSuffix: sp.TemplateSuffix}
	if extras != (shopifyExtras{}) {
		raw, err := json.Marshal(extras)
		if err != nil {
			return nil, integration.NewMalformedRecord(platform, "product %s extras: %v", sp.ID, err)
		}
		p.SetExtra(platform.String(), raw)
	}
	return p, nil
}

// shopifyOptions restores canonical option order when the saved options still
// describe the same axes and values.
func shopifyOptions(sp ShopifyProduct, saved []shopifyOptSave) []catalog.Option {
	var out []catalog.Option
	for _, o := range sp.Options {
		values := make([]string, 0, len(o.OptionValues))
		for _, v := range o.OptionValues {
			values = append(values, v.Name)
		}
		out = append(out, catalog.Option{Name: o.Name, Values: values})
	}
	if len(out) == 1 && len(out[0].Values) == 1 && out[0].Name == "Title" && out[0].Values[0] == "Default Title" {
		return nil
	}
	if len(saved) != len(out) {
		return out
	}
	for i := range out {
		if saved[i].Name != out[i].Name || !sameValues(saved[i].Values, out[i].Values) {
			return out
		}
	}
	for i := range out {
		out[i].Values = slices.Clone(saved[i].Values)
	}
	return out
}

func sameValues(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

func shopifyVariant(sv ShopifyVariant, options []catalog.Option, mediaSource map[string]string) (catalog.Variant, error) {
	platform := integration.PlatformCodeShopify
	price, err := convert.DecimalStringToMinor(sv.Price)
	if err != nil {
		return catalog.Variant{}, integration.NewMalformedRecord(platform, "variant %s price: %v", sv.ID, err)
	}
	compareAt, err := convert.OptionalDecimalStringToMinor(sv.CompareAtPrice)
	if err != nil {
		return catalog.Variant{}, integration.NewMalformedRecord(platform, "variant %s compare at price: %v", sv.ID, err)
	}
	v := catalog.Variant{
		SKU:               sv.SKU,
		Price:             price,
		CompareAtPrice:    compareAt,
		InventoryQuantity: sv.InventoryQuantity,
	}
	if m := sv.InventoryItem.Measurement; m != nil && m.Weight != nil {
		unit, err := convert.ParseMassUnit(m.Weight.Unit)
		if err != nil {
			return catalog.Variant{}, integration.NewMalformedRecord(platform, "variant %s weight unit %q", sv.ID, m.Weight.Unit)
		}
		v.WeightGrams = convert.ToGrams(decimal.NewFromFloat(m.Weight.Value), unit)
	}
	for _, opt := range options {
		idx := slices.IndexFunc(sv.SelectedOptions, func(so ShopifySelectedOption) bool { return so.Name == opt.Name })
		if idx < 0 {
			return catalog.Variant{}, integration.NewMalformedRecord(platform, "variant %s has no value for %q", sv.ID, opt.Name)
		}
		v.OptionValues = append(v.OptionValues, sv.SelectedOptions[idx].Value)
	}
	if len(sv.Media.Nodes) > 0 {
		v.ImageURL = mediaSource[sv.Media.Nodes[0].ID]
	}
	return v, nil
}
