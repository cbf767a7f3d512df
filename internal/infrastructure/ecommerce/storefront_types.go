package ecommerce

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/catalogsync/backend/internal/domain/convert"
	"github.com/catalogsync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Content backends
// ---------------------------------------------------------------------------

// Errors reported by content stores
var (
	ErrContentNotFound = errors.New("storefront: content not found")
	ErrContentConflict = errors.New("storefront: content version conflict")
)

// ContentFile is one stored document
type ContentFile struct {
	Path    string
	Content []byte
	// Version is the backend revision token (blob sha, ETag). Empty on a
	// write means the file must not exist yet.
	Version string
}

// ContentStore reads and writes storefront documents with optimistic
// concurrency. Implementations return ErrContentNotFound and
// ErrContentConflict (possibly wrapped) for the two expected failures.
type ContentStore interface {
	Get(ctx context.Context, creds integration.PlatformCredentials, path string) (ContentFile, error)
	Put(ctx context.Context, creds integration.PlatformCredentials, file ContentFile, message string) (string, error)
}

// ---------------------------------------------------------------------------
// Front matter
// ---------------------------------------------------------------------------

// StorefrontFrontMatter is the YAML header of a product document
type StorefrontFrontMatter struct {
	Title          string              `yaml:"title"`
	Slug           string              `yaml:"slug"`
	Status         string              `yaml:"status"`
	Category       string              `yaml:"category,omitempty"`
	Tags           []string            `yaml:"tags,omitempty"`
	Price          string              `yaml:"price"`
	CompareAtPrice string              `yaml:"compare_at_price,omitempty"`
	Weight         string              `yaml:"weight,omitempty"`
	WeightUnit     string              `yaml:"weight_unit,omitempty"`
	Images         []StorefrontImage   `yaml:"images,omitempty"`
	Options        []StorefrontOption  `yaml:"options,omitempty"`
	Variants       []StorefrontVariant `yaml:"variants,omitempty"`
	Extra          storefrontExtra     `yaml:"extra"`
}

// StorefrontImage is one gallery entry
type StorefrontImage struct {
	Src string `yaml:"src"`
	Alt string `yaml:"alt,omitempty"`
}

// StorefrontOption is one option axis
type StorefrontOption struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

// StorefrontVariant is one purchasable combination
type StorefrontVariant struct {
	SKU            string   `yaml:"sku,omitempty"`
	Options        []string `yaml:"options,omitempty"`
	Price          string   `yaml:"price"`
	CompareAtPrice string   `yaml:"compare_at_price,omitempty"`
	Inventory      int64    `yaml:"inventory"`
	Weight         string   `yaml:"weight,omitempty"`
	Image          string   `yaml:"image,omitempty"`
}

// storefrontExtra carries canonical fields the storefront does not render
type storefrontExtra struct {
	CanonicalID string `yaml:"canonical_id"`
	ProductType string `yaml:"product_type,omitempty"`
	Vendor      string `yaml:"vendor,omitempty"`
	Digital     bool   `yaml:"digital,omitempty"`
}

// storefrontKnownKeys are the front matter keys owned by the sync engine
var storefrontKnownKeys = map[string]bool{
	"title": true, "slug": true, "status": true, "category": true, "tags": true,
	"price": true, "compare_at_price": true, "weight": true, "weight_unit": true,
	"images": true, "options": true, "variants": true, "extra": true,
}

// storefrontExtras holds storefront-only fields kept across pull and push
type storefrontExtras struct {
	Slug   string         `json:"slug,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

const frontMatterFence = "---"

// ErrStorefrontNoFrontMatter is returned for documents without a YAML header
var ErrStorefrontNoFrontMatter = errors.New("storefront: document has no front matter")

// splitDocument separates the YAML header from the Markdown body
func splitDocument(doc []byte) (front, body []byte, err error) {
	text := bytes.ReplaceAll(doc, []byte("\r\n"), []byte("\n"))
	open := []byte(frontMatterFence + "\n")
	if !bytes.HasPrefix(text, open) {
		return nil, nil, ErrStorefrontNoFrontMatter
	}
	rest := text[len(open):]
	if bytes.HasPrefix(rest, open) {
		return nil, rest[len(open):], nil
	}
	closing := []byte("\n" + frontMatterFence + "\n")
	if idx := bytes.Index(rest, closing); idx >= 0 {
		return rest[:idx+1], rest[idx+len(closing):], nil
	}
	if bytes.HasSuffix(rest, []byte("\n"+frontMatterFence)) {
		return rest[:len(rest)-len(frontMatterFence)], nil, nil
	}
	return nil, nil, ErrStorefrontNoFrontMatter
}

// renderDocument writes the header, then passthrough keys in sorted order,
// then the body.
func renderDocument(fm StorefrontFrontMatter, passthrough map[string]any, body string) ([]byte, error) {
	var root yaml.Node
	if err := root.Encode(fm); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	keys := make([]string, 0, len(passthrough))
	for k := range passthrough {
		if !storefrontKnownKeys[k] {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		key := &yaml.Node{}
		key.SetString(k)
		value := &yaml.Node{}
		if err := value.Encode(passthrough[k]); err != nil {
			return nil, fmt.Errorf("encode front matter field %q: %w", k, err)
		}
		root.Content = append(root.Content, key, value)
	}

	var buf bytes.Buffer
	buf.WriteString(frontMatterFence + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	buf.WriteString(frontMatterFence + "\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// ---------------------------------------------------------------------------
// Slugs
// ---------------------------------------------------------------------------

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Slugify turns a title into a lowercase ASCII path segment. Letters outside
// ASCII that do not decompose are dropped; the result may be empty.
func Slugify(title string) string {
	// chains are stateful, so each call builds its own
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, title)
	if err != nil {
		folded = title
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// ---------------------------------------------------------------------------
// Payload and record
// ---------------------------------------------------------------------------

// Errors for storefront payloads
var (
	ErrStorefrontMissingTitle     = errors.New("storefront: title is required")
	ErrStorefrontInvalidSlug      = errors.New("storefront: invalid slug")
	ErrStorefrontInvalidStatus    = errors.New("storefront: invalid status")
	ErrStorefrontInvalidPrice     = errors.New("storefront: invalid price")
	ErrStorefrontVariantOptions   = errors.New("storefront: variant options do not match product options")
	ErrStorefrontMissingCanonical = errors.New("storefront: canonical id is required")
)

// StorefrontPayload is a rendered-ready product document
type StorefrontPayload struct {
	FrontMatter StorefrontFrontMatter
	// Body is the Markdown/HTML description
	Body string
	// passthrough holds storefront-only front matter keys
	passthrough map[string]any
}

var _ integration.PlatformPayload = (*StorefrontPayload)(nil)

// Platform implements integration.PlatformPayload
func (p *StorefrontPayload) Platform() integration.PlatformCode {
	return integration.PlatformCodeStorefront
}

// Validate implements integration.PlatformPayload
func (p *StorefrontPayload) Validate() error {
	fm := p.FrontMatter
	if strings.TrimSpace(fm.Title) == "" {
		return ErrStorefrontMissingTitle
	}
	if !slugPattern.MatchString(fm.Slug) {
		return fmt.Errorf("%w: %q", ErrStorefrontInvalidSlug, fm.Slug)
	}
	if fm.Extra.CanonicalID == "" {
		return ErrStorefrontMissingCanonical
	}
	if _, err := convert.StorefrontStatuses.FromPlatform(fm.Status); err != nil {
		return fmt.Errorf("%w: %q", ErrStorefrontInvalidStatus, fm.Status)
	}
	if _, err := convert.DecimalStringToMinor(fm.Price); err != nil {
		return fmt.Errorf("%w: %q", ErrStorefrontInvalidPrice, fm.Price)
	}
	if _, err := convert.OptionalDecimalStringToMinor(fm.CompareAtPrice); err != nil {
		return fmt.Errorf("%w: compare at %q", ErrStorefrontInvalidPrice, fm.CompareAtPrice)
	}
	for i, v := range fm.Variants {
		if len(v.Options) != len(fm.Options) {
			return fmt.Errorf("%w: variant %d", ErrStorefrontVariantOptions, i)
		}
		if _, err := convert.DecimalStringToMinor(v.Price); err != nil {
			return fmt.Errorf("%w: variant %d %q", ErrStorefrontInvalidPrice, i, v.Price)
		}
	}
	return nil
}

// Document renders the payload as Markdown with YAML front matter
func (p *StorefrontPayload) Document() ([]byte, error) {
	return renderDocument(p.FrontMatter, p.passthrough, p.Body)
}

// withSlug returns a copy addressed to a different slug
func (p *StorefrontPayload) withSlug(slug string) *StorefrontPayload {
	cp := *p
	cp.FrontMatter.Slug = slug
	return &cp
}

// StorefrontRecord is a stored product document
type StorefrontRecord struct {
	Path    string
	Content []byte
	Version string
}

var _ integration.PlatformRecord = (*StorefrontRecord)(nil)

// Platform implements integration.PlatformRecord
func (r *StorefrontRecord) Platform() integration.PlatformCode {
	return integration.PlatformCodeStorefront
}

// RecordID implements integration.PlatformRecord
func (r *StorefrontRecord) RecordID() string {
	return r.Path
}
