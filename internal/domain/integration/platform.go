package integration

import (
	"context"
	"errors"
	"time"
)

// ---------------------------------------------------------------------------
// Platform Errors
// ---------------------------------------------------------------------------

var (
	ErrPlatformNotConfigured   = errors.New("integration: platform not configured")
	ErrPlatformNotSupported    = errors.New("integration: platform not supported")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrCredentialsNotFound     = errors.New("integration: credentials not found")
	ErrInvalidPlatformCode     = errors.New("integration: invalid platform code")
	ErrUnexpectedPayload       = errors.New("integration: payload does not belong to this platform")
)

// ---------------------------------------------------------------------------
// PlatformCode identifies an external commerce platform
// ---------------------------------------------------------------------------

// PlatformCode identifies an external commerce platform
type PlatformCode string

const (
	// PlatformCodeWooCommerce is a REST platform authenticated with Basic-Auth
	PlatformCodeWooCommerce PlatformCode = "WOOCOMMERCE"
	// PlatformCodeShopify is a GraphQL platform authenticated with a bearer token
	PlatformCodeShopify PlatformCode = "SHOPIFY"
	// PlatformCodeStorefront is a static storefront backed by a file-content API
	PlatformCodeStorefront PlatformCode = "STOREFRONT"
)

// AllPlatformCodes lists every supported platform
var AllPlatformCodes = []PlatformCode{
	PlatformCodeWooCommerce,
	PlatformCodeShopify,
	PlatformCodeStorefront,
}

// IsValid returns true if the platform code is valid
func (c PlatformCode) IsValid() bool {
	switch c {
	case PlatformCodeWooCommerce, PlatformCodeShopify, PlatformCodeStorefront:
		return true
	default:
		return false
	}
}

// String returns the string representation of PlatformCode
func (c PlatformCode) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the platform
func (c PlatformCode) DisplayName() string {
	switch c {
	case PlatformCodeWooCommerce:
		return "WooCommerce"
	case PlatformCodeShopify:
		return "Shopify"
	case PlatformCodeStorefront:
		return "Static Storefront"
	default:
		return string(c)
	}
}

// PushShape returns how products are written to the platform
func (c PlatformCode) PushShape() PushShape {
	if c == PlatformCodeShopify {
		return PushShapeMultiStep
	}
	return PushShapeSingleCall
}

// ParsePlatformCode parses a case-sensitive platform code
func ParsePlatformCode(s string) (PlatformCode, error) {
	c := PlatformCode(s)
	if !c.IsValid() {
		return "", ErrInvalidPlatformCode
	}
	return c, nil
}

// PushShape describes whether a product is written in one request or many
type PushShape string

const (
	// PushShapeSingleCall platforms accept a whole product in one create/update
	PushShapeSingleCall PushShape = "SINGLE_CALL"
	// PushShapeMultiStep platforms need an ordered sequence of dependent mutations
	PushShapeMultiStep PushShape = "MULTI_STEP"
)

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

// PlatformCredentials is the opaque secret bundle for one store connection.
// Which fields are set depends on the platform.
type PlatformCredentials struct {
	// Platform the credentials belong to
	Platform PlatformCode
	// StoreID identifies the store connection
	StoreID string
	// BaseURL is the store's API root (shop domain, site URL or content API)
	BaseURL string
	// Username is the Basic-Auth user (WooCommerce consumer key)
	Username string
	// Password is the Basic-Auth secret (WooCommerce consumer secret)
	Password string
	// AccessToken is the bearer token (Shopify admin token, content API token)
	AccessToken string
	// Repository is the content repository for file-backed storefronts ("owner/name")
	Repository string
	// Branch is the content branch for file-backed storefronts
	Branch string
	// ExpiresAt is when the token stops working, zero if it does not expire
	ExpiresAt time.Time
}

// Expired reports whether the credentials have a known expiry in the past
func (c PlatformCredentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// CredentialStore supplies credentials per store. Clients call it for every
// request and never cache secrets beyond a single call.
type CredentialStore interface {
	GetCredentials(ctx context.Context, storeID string) (PlatformCredentials, error)
}

// ImageProxy rewrites image URLs that a platform would reject into URLs that
// serve the same bytes with a recognizable extension and content type.
// Rewrite is a pure lookup; the fetch is done by the proxy service itself.
type ImageProxy interface {
	Rewrite(sourceURL, wantExt string) string
}

// KeyLocker serializes work on a single key across goroutines (and, for
// distributed implementations, across processes).
type KeyLocker interface {
	// Lock blocks until the key is held or ctx is done.
	// The returned function releases the key.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
