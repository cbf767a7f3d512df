package convert

import (
	"strings"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
)

// StatusTable is the explicit vocabulary mapping for one platform
type StatusTable struct {
	platform     integration.PlatformCode
	toPlatform   map[catalog.Status]string
	fromPlatform map[string]catalog.Status
}

// NewStatusTable builds a table from the canonical mapping plus inbound-only
// aliases. Inbound lookups are case-insensitive.
func NewStatusTable(platform integration.PlatformCode, mapping map[catalog.Status]string, aliases map[string]catalog.Status) StatusTable {
	t := StatusTable{
		platform:     platform,
		toPlatform:   make(map[catalog.Status]string, len(mapping)),
		fromPlatform: make(map[string]catalog.Status, len(mapping)+len(aliases)),
	}
	for status, token := range mapping {
		t.toPlatform[status] = token
		t.fromPlatform[strings.ToLower(token)] = status
	}
	for token, status := range aliases {
		t.fromPlatform[strings.ToLower(token)] = status
	}
	return t
}

// Platform returns the platform the table belongs to
func (t StatusTable) Platform() integration.PlatformCode {
	return t.platform
}

// ToPlatform maps a canonical status to the platform token
func (t StatusTable) ToPlatform(s catalog.Status) (string, error) {
	token, ok := t.toPlatform[s]
	if !ok {
		return "", integration.NewUnmappedStatus(t.platform, string(s))
	}
	return token, nil
}

// FromPlatform maps a platform token to the canonical status.
// Unknown tokens fail instead of defaulting.
func (t StatusTable) FromPlatform(token string) (catalog.Status, error) {
	s, ok := t.fromPlatform[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return "", integration.NewUnmappedStatus(t.platform, token)
	}
	return s, nil
}

var (
	// WooCommerceStatuses maps to WooCommerce post statuses
	WooCommerceStatuses = NewStatusTable(integration.PlatformCodeWooCommerce,
		map[catalog.Status]string{
			catalog.StatusActive:   "publish",
			catalog.StatusDraft:    "draft",
			catalog.StatusArchived: "private",
		},
		map[string]catalog.Status{"pending": catalog.StatusDraft},
	)

	// ShopifyStatuses maps to the ProductStatus GraphQL enum
	ShopifyStatuses = NewStatusTable(integration.PlatformCodeShopify,
		map[catalog.Status]string{
			catalog.StatusActive:   "ACTIVE",
			catalog.StatusDraft:    "DRAFT",
			catalog.StatusArchived: "ARCHIVED",
		},
		nil,
	)

	// StorefrontStatuses maps to the front matter status field
	StorefrontStatuses = NewStatusTable(integration.PlatformCodeStorefront,
		map[catalog.Status]string{
			catalog.StatusActive:   "published",
			catalog.StatusDraft:    "draft",
			catalog.StatusArchived: "hidden",
		},
		nil,
	)
)

// StatusTableFor returns the table for a platform
func StatusTableFor(platform integration.PlatformCode) (StatusTable, bool) {
	switch platform {
	case integration.PlatformCodeWooCommerce:
		return WooCommerceStatuses, true
	case integration.PlatformCodeShopify:
		return ShopifyStatuses, true
	case integration.PlatformCodeStorefront:
		return StorefrontStatuses, true
	default:
		return StatusTable{}, false
	}
}
