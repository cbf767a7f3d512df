package convert

import (
	"testing"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTables_RoundTrip(t *testing.T) {
	for _, platform := range integration.AllPlatformCodes {
		table, ok := StatusTableFor(platform)
		require.True(t, ok, platform)
		for _, s := range []catalog.Status{catalog.StatusActive, catalog.StatusDraft, catalog.StatusArchived} {
			token, err := table.ToPlatform(s)
			require.NoError(t, err)
			back, err := table.FromPlatform(token)
			require.NoError(t, err)
			assert.Equal(t, s, back, "%s %s", platform, s)
		}
	}
}

func TestStatusTables_Tokens(t *testing.T) {
	token, _ := WooCommerceStatuses.ToPlatform(catalog.StatusActive)
	assert.Equal(t, "publish", token)
	token, _ = ShopifyStatuses.ToPlatform(catalog.StatusArchived)
	assert.Equal(t, "ARCHIVED", token)
	token, _ = StorefrontStatuses.ToPlatform(catalog.StatusActive)
	assert.Equal(t, "published", token)

	s, err := WooCommerceStatuses.FromPlatform("pending")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusDraft, s)

	s, err = ShopifyStatuses.FromPlatform("active")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusActive, s)
}

func TestStatusTables_Unmapped(t *testing.T) {
	_, err := WooCommerceStatuses.FromPlatform("trash")
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrUnmappedStatus)
	assert.Equal(t, integration.KindValidation, integration.KindOf(err))

	_, err = ShopifyStatuses.FromPlatform("UNLISTED")
	assert.ErrorIs(t, err, integration.ErrUnmappedStatus)

	_, err = StorefrontStatuses.ToPlatform(catalog.Status("deleted"))
	assert.ErrorIs(t, err, integration.ErrUnmappedStatus)

	_, ok := StatusTableFor("EBAY")
	assert.False(t, ok)
}
