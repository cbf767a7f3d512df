package ecommerce

import (
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/convert"
	"github.com/catalogsync/backend/internal/domain/integration"
)

// StorefrontTransformer maps canonical products to Markdown documents with
// YAML front matter. The storefront fetches images itself, so every URL is
// written as is.
type StorefrontTransformer struct {
	config   *StorefrontConfig
	taxonomy *convert.Taxonomy
}

var _ integration.Transformer = (*StorefrontTransformer)(nil)

// NewStorefrontTransformer creates a transformer. taxonomy may be nil.
func NewStorefrontTransformer(cfg *StorefrontConfig, taxonomy *convert.Taxonomy) *StorefrontTransformer {
	if cfg == nil {
		cfg = NewStorefrontConfig()
	}
	return &StorefrontTransformer{config: cfg, taxonomy: taxonomy}
}

// Platform implements integration.Transformer
func (t *StorefrontTransformer) Platform() integration.PlatformCode {
	return integration.PlatformCodeStorefront
}

// ToPlatform implements integration.Transformer
func (t *StorefrontTransformer) ToPlatform(product *catalog.Product, _ integration.SyncContext) (integration.PlatformPayload, error) {
	const op = "storefront.toPlatform"
	if err := product.Validate(); err != nil {
		return nil, integration.NewValidationError(op, err)
	}
	status, err := convert.StorefrontStatuses.ToPlatform(product.Status)
	if err != nil {
		return nil, err
	}

	var extras storefrontExtras
	if raw := product.Extra(integration.PlatformCodeStorefront.String()); len(raw) > 0 {
		if err := json.Unmarshal(raw, &extras); err != nil {
			return nil, integration.NewValidationError(op, fmt.Errorf("invalid storefront extras: %w", err))
		}
	}

	normalized := catalog.Product{Tags: slices.Clone(product.Tags)}
	normalized.NormalizeTags()

	fm := StorefrontFrontMatter{
		Title:          product.Title,
		Slug:           t.slugFor(product, extras.Slug),
		Status:         status,
		Category:       categoryFor(t.taxonomy, product.ProductType),
		Tags:           normalized.Tags,
		Price:          convert.MinorToDecimalString(product.Price),
		CompareAtPrice: convert.OptionalMinorToDecimalString(product.CompareAtPrice),
		Extra: storefrontExtra{
			CanonicalID: product.ID.String(),
			ProductType: product.ProductType,
			Vendor:      product.Vendor,
			Digital:     product.IsDigital,
		},
	}
	if product.WeightGrams > 0 || len(product.Variants) > 0 {
		fm.WeightUnit = string(t.config.WeightUnit)
	}
	if product.WeightGrams > 0 {
		fm.Weight = t.weight(product.WeightGrams)
	}
	for _, img := range sortedImages(product.Images) {
		fm.Images = append(fm.Images, StorefrontImage{Src: img.URL, Alt: img.Alt})
	}
	for _, opt := range product.Options {
		fm.Options = append(fm.Options, StorefrontOption{Name: opt.Name, Values: slices.Clone(opt.Values)})
	}
	for _, v := range product.Variants {
		sv := StorefrontVariant{
			SKU:            v.SKU,
			Options:        slices.Clone(v.OptionValues),
			Price:          convert.MinorToDecimalString(v.Price),
			CompareAtPrice: convert.OptionalMinorToDecimalString(v.CompareAtPrice),
			Inventory:      v.InventoryQuantity,
		}
		if v.WeightGrams > 0 {
			sv.Weight = t.weight(v.WeightGrams)
		}
		if img, ok := product.VariantImage(v); ok {
			sv.Image = img.URL
		}
		fm.Variants = append(fm.Variants, sv)
	}

	payload := &StorefrontPayload{
		FrontMatter: fm,
		Body:        product.Description,
		passthrough: extras.Fields,
	}
	if err := payload.Validate(); err != nil {
		return nil, integration.NewValidationError(op, err)
	}
	return payload, nil
}

func (t *StorefrontTransformer) weight(grams int64) string {
	return convert.FormatMass(grams, t.config.WeightUnit, t.config.WeightPrecision)
}

// slugFor keeps a pulled slug, else derives one from the title, else from the id
func (t *StorefrontTransformer) slugFor(product *catalog.Product, pulled string) string {
	if slugPattern.MatchString(pulled) {
		return pulled
	}
	if slug := Slugify(product.Title); slug != "" {
		return slug
	}
	return "product-" + strings.ReplaceAll(product.ID.String(), "-", "")[:12]
}

// FromPlatform implements integration.Transformer
func (t *StorefrontTransformer) FromPlatform(record integration.PlatformRecord) (*catalog.Product, error) {
	rec, ok := record.(*StorefrontRecord)
	if !ok || rec == nil {
		return nil, integration.NewValidationError("storefront.fromPlatform", integration.ErrUnexpectedPayload)
	}
	platform := integration.PlatformCodeStorefront

	front, body, err := splitDocument(rec.Content)
	if err != nil {
		return nil, integration.NewMalformedRecord(platform, "%s: %v", rec.Path, err)
	}
	var fm StorefrontFrontMatter
	if err := yaml.Unmarshal(front, &fm); err != nil {
		return nil, integration.NewMalformedRecord(platform, "%s: front matter: %v", rec.Path, err)
	}
	if strings.TrimSpace(fm.Title) == "" {
		return nil, integration.NewMalformedRecord(platform, "%s has no title", rec.Path)
	}
	status, err := convert.StorefrontStatuses.FromPlatform(fm.Status)
	if err != nil {
		return nil, err
	}
	unit := t.config.WeightUnit
	if fm.WeightUnit != "" {
		if unit, err = convert.ParseMassUnit(fm.WeightUnit); err != nil {
			return nil, integration.NewMalformedRecord(platform, "%s weight unit %q", rec.Path, fm.WeightUnit)
		}
	}

	p := &catalog.Product{
		Title:       fm.Title,
		Description: string(body),
		Vendor:      fm.Extra.Vendor,
		ProductType: fm.Extra.ProductType,
		Tags:        slices.Clone(fm.Tags),
		Status:      status,
		IsDigital:   fm.Extra.Digital,
	}
	if id, err := uuid.Parse(fm.Extra.CanonicalID); err == nil {
		p.ID = id
	}
	if p.ProductType == "" {
		p.ProductType = fm.Category
	}
	p.NormalizeTags()

	if p.Price, err = convert.DecimalStringToMinor(fm.Price); err != nil {
		return nil, integration.NewMalformedRecord(platform, "%s price: %v", rec.Path, err)
	}
	if p.CompareAtPrice, err = convert.OptionalDecimalStringToMinor(fm.CompareAtPrice); err != nil {
		return nil, integration.NewMalformedRecord(platform, "%s compare at price: %v", rec.Path, err)
	}
	if p.WeightGrams, err = convert.ParseMass(fm.Weight, unit); err != nil {
		return nil, integration.NewMalformedRecord(platform, "%s weight: %v", rec.Path, err)
	}

	for i, img := range fm.Images {
		if img.Src == "" {
			return nil, integration.NewMalformedRecord(platform, "%s image %d has no src", rec.Path, i)
		}
		p.Images = append(p.Images, catalog.Image{URL: img.Src, Alt: img.Alt, Position: i})
	}
	for _, opt := range fm.Options {
		p.Options = append(p.Options, catalog.Option{Name: opt.Name, Values: slices.Clone(opt.Values)})
	}
	for i, sv := range fm.Variants {
		if len(sv.Options) != len(p.Options) {
			return nil, integration.NewMalformedRecord(platform, "%s variant %d has %d option values for %d options",
				rec.Path, i, len(sv.Options), len(p.Options))
		}
		v := catalog.Variant{
			SKU:               sv.SKU,
			InventoryQuantity: sv.Inventory,
			OptionValues:      slices.Clone(sv.Options),
			ImageURL:          sv.Image,
		}
		if v.Price, err = convert.DecimalStringToMinor(sv.Price); err != nil {
			return nil, integration.NewMalformedRecord(platform, "%s variant %d price: %v", rec.Path, i, err)
		}
		if v.CompareAtPrice, err = convert.OptionalDecimalStringToMinor(sv.CompareAtPrice); err != nil {
			return nil, integration.NewMalformedRecord(platform, "%s variant %d compare at price: %v", rec.Path, i, err)
		}
		if v.WeightGrams, err = convert.ParseMass(sv.Weight, unit); err != nil {
			return nil, integration.NewMalformedRecord(platform, "%s variant %d weight: %v", rec.Path, i, err)
		}
		if v.ImageURL != "" {
			if img, matched := p.VariantImage(catalog.Variant{OptionValues: v.OptionValues}); matched && img.URL == v.ImageURL {
				v.ImageURL = ""
			}
		}
		p.Variants = append(p.Variants, v)
	}

	extras, err := storefrontExtrasFrom(front, path.Base(strings.TrimSuffix(rec.Path, storefrontExt)), fm.Slug)
	if err != nil {
		return nil, integration.NewMalformedRecord(platform, "%s: %v", rec.Path, err)
	}
	raw, err := json.Marshal(extras)
	if err != nil {
		return nil, integration.NewMalformedRecord(platform, "%s extras: %v", rec.Path, err)
	}
	p.SetExtra(platform.String(), raw)
	return p, nil
}

// storefrontExtrasFrom collects the document slug and every front matter key
// the engine does not own. The slug in the file name wins over the header.
func storefrontExtrasFrom(front []byte, fileSlug, headerSlug string) (storefrontExtras, error) {
	var all map[string]any
	if err := yaml.Unmarshal(front, &all); err != nil {
		return storefrontExtras{}, err
	}
	extras := storefrontExtras{Slug: headerSlug}
	if slugPattern.MatchString(fileSlug) {
		extras.Slug = fileSlug
	}
	for k, v := range all {
		if storefrontKnownKeys[k] {
			continue
		}
		if extras.Fields == nil {
			extras.Fields = make(map[string]any)
		}
		extras.Fields[k] = v
	}
	return extras, nil
}
