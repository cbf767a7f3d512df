package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/ecommerce"
)

func TestMemoryContentStore(t *testing.T) {
	s := NewMemoryContentStore()
	ctx := context.Background()
	storeA := integration.PlatformCredentials{StoreID: "a"}
	storeB := integration.PlatformCredentials{StoreID: "b"}
	const path = "content/products/mug.md"

	_, err := s.Get(ctx, storeA, path)
	assert.ErrorIs(t, err, ecommerce.ErrContentNotFound)

	v1, err := s.Put(ctx, storeA, ecommerce.ContentFile{Path: path, Content: []byte("one")}, "create")
	require.NoError(t, err)

	t.Run("create only once", func(t *testing.T) {
		_, err := s.Put(ctx, storeA, ecommerce.ContentFile{Path: path, Content: []byte("again")}, "create")
		assert.ErrorIs(t, err, ecommerce.ErrContentConflict)
	})

	t.Run("stores are isolated", func(t *testing.T) {
		_, err := s.Get(ctx, storeB, path)
		assert.ErrorIs(t, err, ecommerce.ErrContentNotFound)
	})

	t.Run("update needs the current version", func(t *testing.T) {
		v2, err := s.Put(ctx, storeA, ecommerce.ContentFile{Path: path, Content: []byte("two"), Version: v1}, "update")
		require.NoError(t, err)
		assert.NotEqual(t, v1, v2)

		_, err = s.Put(ctx, storeA, ecommerce.ContentFile{Path: path, Content: []byte("stale"), Version: v1}, "update")
		assert.ErrorIs(t, err, ecommerce.ErrContentConflict)

		f, err := s.Get(ctx, storeA, path)
		require.NoError(t, err)
		assert.Equal(t, "two", string(f.Content))
		assert.Equal(t, v2, f.Version)
	})

	t.Run("update of a missing file conflicts", func(t *testing.T) {
		_, err := s.Put(ctx, storeA, ecommerce.ContentFile{Path: "content/products/x.md", Version: "9"}, "update")
		assert.ErrorIs(t, err, ecommerce.ErrContentConflict)
	})

	assert.Equal(t, 1, s.Len())
}

func TestMemoryContentStore_DrivesStorefrontClient(t *testing.T) {
	creds := staticCreds{Platform: integration.PlatformCodeStorefront, StoreID: "site", BaseURL: "https://shop.example.com"}
	client, err := ecommerce.NewStorefrontClient(nil, creds, NewMemoryContentStore())
	require.NoError(t, err)

	payload, err := ecommerce.NewStorefrontTransformer(nil, nil).ToPlatform(testProduct(), integration.SyncContext{})
	require.NoError(t, err)
	id, err := client.CreateProduct(context.Background(), "site", payload)
	require.NoError(t, err)
	assert.Equal(t, "content/products/enamel-pin.md", id)
	require.NoError(t, client.UpdateProduct(context.Background(), "site", id, payload))
}
