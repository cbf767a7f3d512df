package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newPullService(h *pushHarness) *PullService {
	return NewPullService(h.products, h.ledger, h.registry, fastRetry(2))
}

func bind(t *testing.T, h *pushHarness, id uuid.UUID, platform integration.PlatformCode, externalID string) {
	t.Helper()
	_, err := h.ledger.Commit(context.Background(), integration.SyncUpdate{
		Key:        integration.RecordKey{CanonicalID: id, Platform: platform},
		StoreID:    testStore,
		ExternalID: externalID,
		Status:     integration.SyncStatusSynced,
	})
	require.NoError(t, err)
}

func TestPullService_PullRefreshesProduct(t *testing.T) {
	ctx := context.Background()
	stored := simpleProduct()
	stored.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	stored.SetExtra("SHOPIFY", json.RawMessage(`{"handle":"ceramic-mug"}`))
	h := newPushHarness(t, stored)
	bind(t, h, stored.ID, integration.PlatformCodeWooCommerce, "101")

	remote := *stored
	remote.ID = uuid.Nil
	remote.Title = "Ceramic Mug XL"
	remote.Extras = nil
	remote.SetExtra("WOOCOMMERCE", json.RawMessage(`{"menu_order":3}`))
	h.single.On("GetProduct", mock.Anything, testStore, "101").
		Return(fakeRecord{platform: integration.PlatformCodeWooCommerce, id: "101", product: &remote}, nil).Once()

	pulled, err := newPullService(h).Pull(ctx, stored.ID, integration.PlatformCodeWooCommerce, testStore)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, pulled.ID)
	assert.Equal(t, "Ceramic Mug XL", pulled.Title)
	assert.Equal(t, stored.CreatedAt, pulled.CreatedAt)
	assert.JSONEq(t, `{"handle":"ceramic-mug"}`, string(pulled.Extra("SHOPIFY")))
	assert.JSONEq(t, `{"menu_order":3}`, string(pulled.Extra("WOOCOMMERCE")))

	saved, err := h.products.FindByID(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ceramic Mug XL", saved.Title)
}

func TestPullService_PullNeverSynced(t *testing.T) {
	product := simpleProduct()
	h := newPushHarness(t, product)

	_, err := newPullService(h).Pull(context.Background(), product.ID, integration.PlatformCodeWooCommerce, testStore)
	require.Error(t, err)
	assert.Equal(t, integration.KindValidation, integration.KindOf(err))
}

func TestPullService_PullIdentityConflict(t *testing.T) {
	stored := simpleProduct()
	h := newPushHarness(t, stored)
	bind(t, h, stored.ID, integration.PlatformCodeWooCommerce, "101")

	remote := *stored
	remote.ID = uuid.New()
	h.single.On("GetProduct", mock.Anything, testStore, "101").
		Return(fakeRecord{platform: integration.PlatformCodeWooCommerce, id: "101", product: &remote}, nil).Once()

	_, err := newPullService(h).Pull(context.Background(), stored.ID, integration.PlatformCodeWooCommerce, testStore)
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrIdentityConflict)

	saved, err := h.products.FindByID(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.Title, saved.Title)
}

func TestPullService_PullMalformedRecord(t *testing.T) {
	stored := simpleProduct()
	h := newPushHarness(t, stored)
	bind(t, h, stored.ID, integration.PlatformCodeWooCommerce, "101")

	h.single.On("GetProduct", mock.Anything, testStore, "101").
		Return(fakeRecord{platform: integration.PlatformCodeWooCommerce, id: "101"}, nil).Once()

	_, err := newPullService(h).Pull(context.Background(), stored.ID, integration.PlatformCodeWooCommerce, testStore)
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrMalformedRecord)
	assert.Equal(t, integration.KindValidation, integration.KindOf(err))
}

func TestPullService_ImportCreatesBinding(t *testing.T) {
	ctx := context.Background()
	h := newPushHarness(t)

	remote, err := catalog.NewProduct("Linen Apron")
	require.NoError(t, err)
	remote.ID = uuid.Nil
	h.multi.product = remote

	imported, err := newPullService(h).Import(ctx, integration.PlatformCodeShopify, testStore, "gid://shopify/Product/77")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, imported.ID)
	assert.Equal(t, "Linen Apron", imported.Title)

	rec := h.record(imported.ID, integration.PlatformCodeShopify)
	assert.Equal(t, "gid://shopify/Product/77", rec.ExternalID)
	assert.Equal(t, integration.PlatformCodeShopify, rec.ExternalIDOrigin)
	assert.Equal(t, integration.SyncStatusSynced, rec.Status)

	// importing again refreshes the same canonical product
	again, err := newPullService(h).Import(ctx, integration.PlatformCodeShopify, testStore, "gid://shopify/Product/77")
	require.NoError(t, err)
	assert.Equal(t, imported.ID, again.ID)
	count, err := h.products.Count(ctx, shared.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPullService_ImportReusesSideChannelID(t *testing.T) {
	h := newPushHarness(t)
	remote, err := catalog.NewProduct("Linen Apron")
	require.NoError(t, err)
	h.multi.product = remote

	imported, err := newPullService(h).Import(context.Background(), integration.PlatformCodeShopify, testStore, "gid://shopify/Product/78")
	require.NoError(t, err)
	assert.Equal(t, remote.ID, imported.ID)
}

func TestPullService_ImportRequiresExternalID(t *testing.T) {
	h := newPushHarness(t)
	_, err := newPullService(h).Import(context.Background(), integration.PlatformCodeShopify, testStore, "")
	require.Error(t, err)
	assert.Equal(t, integration.KindValidation, integration.KindOf(err))
}
