package ecommerce

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
)

// ErrStorefrontInvalidPath is returned for external ids outside the content directory
var ErrStorefrontInvalidPath = errors.New("storefront: document path is outside the content directory")

// StorefrontClient writes whole product documents through a ContentStore.
// The external id of a product is its document path.
type StorefrontClient struct {
	config      *StorefrontConfig
	credentials integration.CredentialStore
	store       ContentStore
}

var _ integration.SingleCallClient = (*StorefrontClient)(nil)

// NewStorefrontClient creates a storefront client over a content backend
func NewStorefrontClient(config *StorefrontConfig, credentials integration.CredentialStore, store ContentStore) (*StorefrontClient, error) {
	if config == nil {
		config = NewStorefrontConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if credentials == nil {
		return nil, integration.ErrCredentialsNotFound
	}
	if store == nil {
		return nil, errors.New("storefront: content store is required")
	}
	return &StorefrontClient{config: config, credentials: credentials, store: store}, nil
}

// Platform implements integration.SingleCallClient
func (c *StorefrontClient) Platform() integration.PlatformCode {
	return integration.PlatformCodeStorefront
}

// CreateProduct implements integration.SingleCallClient. A slug already taken
// by another product gets a numeric suffix; a document that already carries
// the same canonical id is adopted and overwritten.
func (c *StorefrontClient) CreateProduct(ctx context.Context, storeID string, payload integration.PlatformPayload) (string, error) {
	const op = "storefront.createProduct"
	p, err := storefrontPayload(op, payload)
	if err != nil {
		return "", err
	}
	creds, err := credentialsFor(ctx, c.credentials, c.Platform(), storeID, op)
	if err != nil {
		return "", err
	}

	base := p.FrontMatter.Slug
	for attempt := 0; attempt < storefrontMaxSlugAttempts; attempt++ {
		slug := base
		if attempt > 0 {
			slug = fmt.Sprintf("%s-%d", base, attempt+1)
		}
		docPath := c.config.documentPath(slug)
		doc, err := p.withSlug(slug).Document()
		if err != nil {
			return "", integration.NewValidationError(op, err)
		}

		_, err = c.store.Put(ctx, creds, ContentFile{Path: docPath, Content: doc}, "Add product "+p.FrontMatter.Title)
		if err == nil {
			return docPath, nil
		}
		if !errors.Is(err, ErrContentConflict) {
			return "", storeError(op, err)
		}

		existing, err := c.store.Get(ctx, creds, docPath)
		if err != nil {
			return "", storeError(op, err)
		}
		if documentCanonicalID(existing.Content) != p.FrontMatter.Extra.CanonicalID {
			logger.L(ctx).Debug("storefront slug taken",
				zap.String("path", docPath),
				zap.String("canonical_id", p.FrontMatter.Extra.CanonicalID),
			)
			continue
		}
		// an earlier attempt wrote the file but its result was lost
		if _, err := c.store.Put(ctx, creds, ContentFile{Path: docPath, Content: doc, Version: existing.Version},
			"Update product "+p.FrontMatter.Title); err != nil {
			return "", storeError(op, err)
		}
		return docPath, nil
	}
	return "", integration.NewPlatformUserError(op, []integration.FieldError{{
		Field:   "slug",
		Message: fmt.Sprintf("slug %q and %d suffixed variants are taken", base, storefrontMaxSlugAttempts-1),
		Code:    "slug_taken",
	}})
}

// UpdateProduct implements integration.SingleCallClient. The document keeps
// the slug of its path.
func (c *StorefrontClient) UpdateProduct(ctx context.Context, storeID, externalID string, payload integration.PlatformPayload) error {
	const op = "storefront.updateProduct"
	p, err := storefrontPayload(op, payload)
	if err != nil {
		return err
	}
	slug, err := c.slugOf(externalID)
	if err != nil {
		return integration.NewValidationError(op, err)
	}
	creds, err := credentialsFor(ctx, c.credentials, c.Platform(), storeID, op)
	if err != nil {
		return err
	}

	current, err := c.store.Get(ctx, creds, externalID)
	if err != nil {
		return storeError(op, err)
	}
	doc, err := p.withSlug(slug).Document()
	if err != nil {
		return integration.NewValidationError(op, err)
	}
	_, err = c.store.Put(ctx, creds, ContentFile{Path: externalID, Content: doc, Version: current.Version}, "Update product "+p.FrontMatter.Title)
	if err != nil {
		return storeError(op, err)
	}
	return nil
}

// GetProduct implements integration.SingleCallClient
func (c *StorefrontClient) GetProduct(ctx context.Context, storeID, externalID string) (integration.PlatformRecord, error) {
	const op = "storefront.getProduct"
	if _, err := c.slugOf(externalID); err != nil {
		return nil, integration.NewValidationError(op, err)
	}
	creds, err := credentialsFor(ctx, c.credentials, c.Platform(), storeID, op)
	if err != nil {
		return nil, err
	}
	file, err := c.store.Get(ctx, creds, externalID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return &StorefrontRecord{Path: externalID, Content: file.Content, Version: file.Version}, nil
}

// slugOf validates a document path and returns its slug
func (c *StorefrontClient) slugOf(docPath string) (string, error) {
	dir, file := path.Split(docPath)
	slug := strings.TrimSuffix(file, storefrontExt)
	if strings.TrimSuffix(dir, "/") != c.config.ContentDir || slug == file || !slugPattern.MatchString(slug) {
		return "", fmt.Errorf("%w: %q", ErrStorefrontInvalidPath, docPath)
	}
	return slug, nil
}

// storeError classifies content store failures. A version conflict means
// someone else committed in between; the retry re-reads the version.
func storeError(op string, err error) error {
	var se *integration.SyncError
	switch {
	case errors.As(err, &se):
		return err
	case errors.Is(err, ErrContentConflict):
		return integration.NewTransientError(op, err)
	case errors.Is(err, ErrContentNotFound):
		return integration.NewValidationError(op, err)
	default:
		return integration.NewTransientError(op, err)
	}
}

// documentCanonicalID reads extra.canonical_id from a document, empty if absent
func documentCanonicalID(doc []byte) string {
	front, _, err := splitDocument(doc)
	if err != nil {
		return ""
	}
	var fm struct {
		Extra storefrontExtra `yaml:"extra"`
	}
	if err := yaml.Unmarshal(front, &fm); err != nil {
		return ""
	}
	return fm.Extra.CanonicalID
}

func storefrontPayload(op string, payload integration.PlatformPayload) (*StorefrontPayload, error) {
	p, ok := payload.(*StorefrontPayload)
	if !ok || p == nil {
		return nil, integration.NewValidationError(op, integration.ErrUnexpectedPayload)
	}
	if err := p.Validate(); err != nil {
		return nil, integration.NewValidationError(op, err)
	}
	return p, nil
}
