package ecommerce

import (
	"errors"
	"path"
	"strings"
	"time"

	"github.com/catalogsync/backend/internal/domain/convert"
)

// StorefrontConfig holds settings for file-backed storefront connections
type StorefrontConfig struct {
	// APIVersion is sent as the contents API version header
	APIVersion string
	// RequestsPerSecond paces calls per client, zero disables pacing
	RequestsPerSecond float64
	// Burst is the limiter bucket size
	Burst int
	// ContentDir is the repository directory holding product documents
	ContentDir string
	// WeightUnit is the unit written to front matter
	WeightUnit convert.MassUnit
	// WeightPrecision is the number of decimals written for weights
	WeightPrecision int32
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// StorefrontDefaultAPIVersion is the contents API version used when none is configured
	StorefrontDefaultAPIVersion = "2022-11-28"
	// StorefrontDefaultContentDir is where product documents live
	StorefrontDefaultContentDir = "content/products"
	// storefrontExt is the product document extension
	storefrontExt = ".md"
	// storefrontMaxSlugAttempts bounds suffixing when a slug is taken by another product
	storefrontMaxSlugAttempts = 5
)

// Errors for storefront configuration
var (
	ErrStorefrontConfigMissingContentDir = errors.New("storefront: content directory is required")
	ErrStorefrontConfigInvalidWeightUnit = errors.New("storefront: invalid weight unit")
	ErrStorefrontConfigInvalidPrecision  = errors.New("storefront: weight precision must be between 0 and 6")
)

// NewStorefrontConfig creates a storefront configuration with defaults
func NewStorefrontConfig() *StorefrontConfig {
	return &StorefrontConfig{
		APIVersion:        StorefrontDefaultAPIVersion,
		RequestsPerSecond: 5,
		Burst:             5,
		ContentDir:        StorefrontDefaultContentDir,
		WeightUnit:        convert.MassUnitGrams,
		WeightPrecision:   0,
		TimeoutSeconds:    30,
	}
}

// Validate validates the configuration and fills in defaults
func (c *StorefrontConfig) Validate() error {
	if c.APIVersion == "" {
		c.APIVersion = StorefrontDefaultAPIVersion
	}
	c.ContentDir = strings.Trim(path.Clean("/"+c.ContentDir), "/")
	if c.ContentDir == "" {
		return ErrStorefrontConfigMissingContentDir
	}
	if c.WeightUnit == "" {
		c.WeightUnit = convert.MassUnitGrams
	}
	unit, err := convert.ParseMassUnit(string(c.WeightUnit))
	if err != nil {
		return ErrStorefrontConfigInvalidWeightUnit
	}
	c.WeightUnit = unit
	if c.WeightPrecision < 0 || c.WeightPrecision > 6 {
		return ErrStorefrontConfigInvalidPrecision
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// Timeout returns the request timeout as a duration
func (c *StorefrontConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// documentPath returns the repository path of a product document
func (c *StorefrontConfig) documentPath(slug string) string {
	return c.ContentDir + "/" + slug + storefrontExt
}
