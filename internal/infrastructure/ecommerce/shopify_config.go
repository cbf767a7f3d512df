package ecommerce

import (
	"errors"
	"strings"
	"time"

	"github.com/catalogsync/backend/internal/domain/convert"
)

// ShopifyConfig holds settings shared by every Shopify store connection
type ShopifyConfig struct {
	// APIVersion is the Admin API version, e.g. "2024-10"
	APIVersion string
	// RequestsPerSecond paces calls per client, zero disables pacing
	RequestsPerSecond float64
	// Burst is the limiter bucket size
	Burst int
	// WeightUnit is the unit variant weights are sent in
	WeightUnit convert.MassUnit
	// WeightPrecision is the number of decimals sent for weights
	WeightPrecision int32
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// ShopifyDefaultAPIVersion is the Admin API version used when none is configured
	ShopifyDefaultAPIVersion = "2024-10"
	// shopifyMetafieldNamespace and shopifyMetafieldKey locate the canonical blob
	shopifyMetafieldNamespace = "catalog_sync"
	shopifyMetafieldKey       = "canonical"
	// shopifyMaxOptions is the platform limit on option axes
	shopifyMaxOptions = 3
	// shopifyMaxVariants is the platform limit on variants per product
	shopifyMaxVariants = 2048
)

// Errors for Shopify configuration
var (
	ErrShopifyConfigMissingAPIVersion = errors.New("shopify: api version is required")
	ErrShopifyConfigInvalidWeightUnit = errors.New("shopify: invalid weight unit")
	ErrShopifyConfigInvalidPrecision  = errors.New("shopify: weight precision must be between 0 and 6")
)

// NewShopifyConfig creates a Shopify configuration with defaults
func NewShopifyConfig() *ShopifyConfig {
	return &ShopifyConfig{
		APIVersion:        ShopifyDefaultAPIVersion,
		RequestsPerSecond: 2,
		Burst:             4,
		WeightUnit:        convert.MassUnitPounds,
		WeightPrecision:   3,
		TimeoutSeconds:    30,
	}
}

// Validate validates the configuration and fills in defaults
func (c *ShopifyConfig) Validate() error {
	c.APIVersion = strings.TrimSpace(c.APIVersion)
	if c.APIVersion == "" {
		return ErrShopifyConfigMissingAPIVersion
	}
	if c.WeightUnit == "" {
		c.WeightUnit = convert.MassUnitPounds
	}
	unit, err := convert.ParseMassUnit(string(c.WeightUnit))
	if err != nil {
		return ErrShopifyConfigInvalidWeightUnit
	}
	c.WeightUnit = unit
	if c.WeightPrecision < 0 || c.WeightPrecision > 6 {
		return ErrShopifyConfigInvalidPrecision
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// Timeout returns the request timeout as a duration
func (c *ShopifyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// graphqlURL returns the Admin GraphQL endpoint for a shop
func (c *ShopifyConfig) graphqlURL(shopURL string) string {
	shopURL = strings.TrimRight(shopURL, "/")
	if !strings.Contains(shopURL, "://") {
		shopURL = "https://" + shopURL
	}
	return shopURL + "/admin/api/" + c.APIVersion + "/graphql.json"
}

// shopifyWeightUnit maps a mass unit onto the WeightUnit enum
func shopifyWeightUnit(u convert.MassUnit) string {
	switch u {
	case convert.MassUnitGrams:
		return "GRAMS"
	case convert.MassUnitKilograms:
		return "KILOGRAMS"
	case convert.MassUnitOunces:
		return "OUNCES"
	default:
		return "POUNDS"
	}
}
