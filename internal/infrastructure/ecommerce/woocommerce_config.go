package ecommerce

import (
	"errors"
	"strings"
	"time"

	"github.com/catalogsync/backend/internal/domain/convert"
)

// WooCommerceConfig holds settings shared by every WooCommerce store connection
type WooCommerceConfig struct {
	// APIVersion is the REST namespace, e.g. "wc/v3"
	APIVersion string
	// RequestsPerSecond paces calls per client, zero disables pacing
	RequestsPerSecond float64
	// Burst is the limiter bucket size
	Burst int
	// WeightUnit is the store's configured weight unit
	WeightUnit convert.MassUnit
	// WeightPrecision is the number of decimals sent for weights
	WeightPrecision int32
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// WooCommerceDefaultAPIVersion is the REST namespace used when none is configured
	WooCommerceDefaultAPIVersion = "wc/v3"
	// wooMetaKey is the meta_data entry that carries canonical-only fields
	wooMetaKey = "_catalog_sync"
	// wooTermCacheTTL bounds how long resolved category and tag ids are reused
	wooTermCacheTTL = 10 * time.Minute
)

// Errors for WooCommerce configuration
var (
	ErrWooConfigMissingAPIVersion = errors.New("woocommerce: api version is required")
	ErrWooConfigInvalidWeightUnit = errors.New("woocommerce: invalid weight unit")
	ErrWooConfigInvalidPrecision  = errors.New("woocommerce: weight precision must be between 0 and 6")
)

// NewWooCommerceConfig creates a WooCommerce configuration with defaults
func NewWooCommerceConfig() *WooCommerceConfig {
	return &WooCommerceConfig{
		APIVersion:        WooCommerceDefaultAPIVersion,
		RequestsPerSecond: 5,
		Burst:             5,
		WeightUnit:        convert.MassUnitPounds,
		WeightPrecision:   3,
		TimeoutSeconds:    30,
	}
}

// Validate validates the configuration and fills in defaults
func (c *WooCommerceConfig) Validate() error {
	c.APIVersion = strings.Trim(c.APIVersion, "/")
	if c.APIVersion == "" {
		return ErrWooConfigMissingAPIVersion
	}
	if c.WeightUnit == "" {
		c.WeightUnit = convert.MassUnitPounds
	}
	unit, err := convert.ParseMassUnit(string(c.WeightUnit))
	if err != nil {
		return ErrWooConfigInvalidWeightUnit
	}
	c.WeightUnit = unit
	if c.WeightPrecision < 0 || c.WeightPrecision > 6 {
		return ErrWooConfigInvalidPrecision
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// Timeout returns the request timeout as a duration
func (c *WooCommerceConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// productsURL returns the products collection URL for a site
func (c *WooCommerceConfig) productsURL(siteURL string) string {
	return strings.TrimRight(siteURL, "/") + "/wp-json/" + c.APIVersion + "/products"
}
