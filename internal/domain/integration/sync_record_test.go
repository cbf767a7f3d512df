package integration

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordKey(t *testing.T) {
	id := uuid.New()

	key, err := NewRecordKey(id, PlatformCodeShopify)
	require.NoError(t, err)
	assert.Equal(t, "SHOPIFY:"+id.String(), key.String())

	_, err = NewRecordKey(uuid.Nil, PlatformCodeShopify)
	assert.ErrorIs(t, err, ErrSyncRecordInvalidKey)

	_, err = NewRecordKey(id, PlatformCode("EBAY"))
	assert.ErrorIs(t, err, ErrSyncRecordInvalidKey)
}

func TestSyncRecord_Operation(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name   string
		record SyncRecord
		target PlatformCode
		want   Operation
	}{
		{
			name:   "never synced creates",
			record: NewNeverSyncedRecord(RecordKey{CanonicalID: id, Platform: PlatformCodeWooCommerce}),
			target: PlatformCodeWooCommerce,
			want:   OperationCreate,
		},
		{
			name: "own external id updates",
			record: SyncRecord{CanonicalID: id, Platform: PlatformCodeWooCommerce,
				ExternalID: "42", ExternalIDOrigin: PlatformCodeWooCommerce},
			target: PlatformCodeWooCommerce,
			want:   OperationUpdate,
		},
		{
			name: "foreign external id never reused",
			record: SyncRecord{CanonicalID: id, Platform: PlatformCodeShopify,
				ExternalID: "42", ExternalIDOrigin: PlatformCodeWooCommerce},
			target: PlatformCodeShopify,
			want:   OperationCreate,
		},
		{
			name: "record for another platform creates",
			record: SyncRecord{CanonicalID: id, Platform: PlatformCodeWooCommerce,
				ExternalID: "42", ExternalIDOrigin: PlatformCodeWooCommerce},
			target: PlatformCodeShopify,
			want:   OperationCreate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.Operation(tt.target))
		})
	}
}

func TestSyncRecord_ExternalIDFor(t *testing.T) {
	r := SyncRecord{ExternalID: "gid://shopify/Product/1", ExternalIDOrigin: PlatformCodeShopify}

	id, err := r.ExternalIDFor(PlatformCodeShopify)
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Product/1", id)

	_, err = r.ExternalIDFor(PlatformCodeWooCommerce)
	assert.ErrorIs(t, err, ErrExternalIDOriginForeign)

	_, err = SyncRecord{}.ExternalIDFor(PlatformCodeShopify)
	assert.ErrorIs(t, err, ErrSyncRecordNotFound)
}

func TestCheckpoint(t *testing.T) {
	var cp Checkpoint
	cp.SetMedia("https://a/1.jpg", "m1")
	cp.SetVariant("Red", "v1", "i1")
	cp.SetVariant("Blue", "v2", "")

	clone := cp.Clone()
	clone.MediaIDs["https://a/1.jpg"] = "changed"
	clone.FailedMedia = append(clone.FailedMedia, "https://a/2.jpg")

	assert.Equal(t, "m1", cp.MediaIDs["https://a/1.jpg"])
	assert.Equal(t, "v2", cp.VariantIDs["Blue"])
	assert.NotContains(t, cp.InventoryItemIDs, "Blue")
	assert.False(t, cp.Partial())
	assert.True(t, clone.Partial())
}

func TestCheckpoint_PendingMedia(t *testing.T) {
	var cp Checkpoint
	cp.SetPendingMedia("https://a/1.jpg", "m1")
	cp.SetPendingMedia("https://a/2.jpg", "m2")

	clone := cp.Clone()
	clone.PendingMedia["https://a/1.jpg"] = "changed"
	assert.Equal(t, "m1", cp.PendingMedia["https://a/1.jpg"])

	cp.SetMedia("https://a/1.jpg", "m1")
	assert.Equal(t, map[string]string{"https://a/2.jpg": "m2"}, cp.PendingMedia)
	assert.Equal(t, "m1", cp.MediaIDs["https://a/1.jpg"])

	cp.DropPendingMedia("https://a/2.jpg")
	assert.Nil(t, cp.PendingMedia)
	assert.NotContains(t, cp.MediaIDs, "https://a/2.jpg")
}

func TestSyncContext_ExternalID(t *testing.T) {
	rec := SyncRecord{ExternalID: "7", ExternalIDOrigin: PlatformCodeWooCommerce}
	assert.Equal(t, "7", SyncContext{Operation: OperationUpdate, Record: rec}.ExternalID())
	assert.Empty(t, SyncContext{Operation: OperationCreate, Record: rec}.ExternalID())
}
