package integration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testStore = "store-1"

type pushHarness struct {
	products *memProducts
	records  *memRecords
	ledger   *Ledger
	registry *Registry
	single   *MockSingleCallClient
	multi    *fakeMultiStepClient
	woo      *fakeTransformer
	shopify  *fakeTransformer
	orch     *PushOrchestrator
}

func newPushHarness(t *testing.T, products ...*catalog.Product) *pushHarness {
	t.Helper()
	h := &pushHarness{
		products: newMemProducts(products...),
		records:  newMemRecords(),
		registry: NewRegistry(),
		single:   &MockSingleCallClient{platform: integration.PlatformCodeWooCommerce},
		multi:    newFakeMultiStepClient(),
		woo:      &fakeTransformer{platform: integration.PlatformCodeWooCommerce},
		shopify:  &fakeTransformer{platform: integration.PlatformCodeShopify},
	}
	h.ledger = NewLedger(h.records)
	require.NoError(t, h.registry.Register(PlatformBinding{Transformer: h.woo, Single: h.single}))
	require.NoError(t, h.registry.Register(PlatformBinding{Transformer: h.shopify, Multi: h.multi}))

	h.orch = NewPushOrchestrator(h.products, h.ledger, h.registry, &localLocker{}, nil, PushConfig{
		Retry:             fastRetry(3),
		MediaPollAttempts: 5,
	})
	h.orch.sleep = noSleep
	return h
}

func (h *pushHarness) record(id uuid.UUID, platform integration.PlatformCode) integration.SyncRecord {
	return h.records.get(integration.RecordKey{CanonicalID: id, Platform: platform})
}

// ---------------------------------------------------------------------------
// Single-call platforms
// ---------------------------------------------------------------------------

func TestPush_SingleCallCreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	product := simpleProduct()
	h := newPushHarness(t, product)

	h.single.On("CreateProduct", mock.Anything, testStore, mock.Anything).Return("101", nil).Once()
	out, err := h.orch.Push(ctx, product.ID, integration.PlatformCodeWooCommerce, testStore)
	require.NoError(t, err)
	assert.Equal(t, integration.OperationCreate, out.Operation)
	assert.Equal(t, "101", out.ExternalID)
	assert.Equal(t, integration.SyncStatusSynced, out.Status)

	h.single.On("UpdateProduct", mock.Anything, testStore, "101", mock.Anything).Return(nil).Once()
	out, err = h.orch.Push(ctx, product.ID, integration.PlatformCodeWooCommerce, testStore)
	require.NoError(t, err)
	assert.Equal(t, integration.OperationUpdate, out.Operation)
	assert.Equal(t, "101", out.ExternalID)

	h.single.AssertExpectations(t)
	h.single.AssertNumberOfCalls(t, "CreateProduct", 1)

	seen := h.woo.contexts()
	require.Len(t, seen, 2)
	assert.Empty(t, seen[0].ExternalID())
	assert.Equal(t, "101", seen[1].ExternalID())

	rec := h.record(product.ID, integration.PlatformCodeWooCommerce)
	assert.Equal(t, integration.SyncStatusSynced, rec.Status)
	assert.Equal(t, testStore, rec.StoreID)
	assert.NotNil(t, rec.LastSyncedAt)
}

func TestPush_SingleCallRateLimitedCreateIsRetried(t *testing.T) {
	product := simpleProduct()
	h := newPushHarness(t, product)

	h.single.On("CreateProduct", mock.Anything, testStore, mock.Anything).
		Return("", integration.NewRateLimitedError("woocommerce.create", 0, errors.New("429"))).Once()
	h.single.On("CreateProduct", mock.Anything, testStore, mock.Anything).Return("101", nil).Once()

	out, err := h.orch.Push(context.Background(), product.ID, integration.PlatformCodeWooCommerce, testStore)
	require.NoError(t, err)
	assert.Equal(t, "101", out.ExternalID)
	h.single.AssertNumberOfCalls(t, "CreateProduct", 2)
}

func TestPush_SingleCallTransientCreateIsNotRepeated(t *testing.T) {
	product := simpleProduct()
	h := newPushHarness(t, product)

	h.single.On("CreateProduct", mock.Anything, testStore, mock.Anything).
		Return("", integration.NewTransientError("woocommerce.create", context.DeadlineExceeded)).Once()

	out, err := h.orch.Push(context.Background(), product.ID, integration.PlatformCodeWooCommerce, testStore)
	require.Error(t, err)
	assert.Equal(t, integration.KindTransientNetwork, integration.KindOf(err))
	assert.Equal(t, integration.SyncStatusError, out.Status)
	h.single.AssertNumberOfCalls(t, "CreateProduct", 1)

	rec := h.record(product.ID, integration.PlatformCodeWooCommerce)
	assert.Equal(t, integration.SyncStatusError, rec.Status)
	assert.Equal(t, integration.KindTransientNetwork, rec.LastErrorKind)
	assert.Empty(t, rec.ExternalID)
}

func TestPush_SingleCallUpdateIsRetried(t *testing.T) {
	ctx := context.Background()
	product := simpleProduct()
	h := newPushHarness(t, product)

	_, err := h.ledger.Commit(ctx, integration.SyncUpdate{
		Key:        integration.RecordKey{CanonicalID: product.ID, Platform: integration.PlatformCodeWooCommerce},
		ExternalID: "55",
		Status:     integration.SyncStatusSynced,
	})
	require.NoError(t, err)

	h.single.On("UpdateProduct", mock.Anything, testStore, "55", mock.Anything).
		Return(integration.NewTransientError("woocommerce.update", errors.New("reset"))).Twice()
	h.single.On("UpdateProduct", mock.Anything, testStore, "55", mock.Anything).Return(nil).Once()

	out, err := h.orch.Push(ctx, product.ID, integration.PlatformCodeWooCommerce, testStore)
	require.NoError(t, err)
	assert.Equal(t, integration.OperationUpdate, out.Operation)
	h.single.AssertNumberOfCalls(t, "UpdateProduct", 3)
}

func TestPush_ConcurrentPushesOfOneProductCreateOnce(t *testing.T) {
	product := simpleProduct()
	h := newPushHarness(t, product)

	h.single.On("CreateProduct", mock.Anything, testStore, mock.Anything).Return("101", nil).Maybe()
	h.single.On("UpdateProduct", mock.Anything, testStore, "101", mock.Anything).Return(nil).Maybe()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.Push(context.Background(), product.ID, integration.PlatformCodeWooCommerce, testStore)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	h.single.AssertNumberOfCalls(t, "CreateProduct", 1)
	h.single.AssertNumberOfCalls(t, "UpdateProduct", 7)
}

// ---------------------------------------------------------------------------
// Preconditions
// ---------------------------------------------------------------------------

func TestPush_InvalidProductMakesNoPlatformCalls(t *testing.T) {
	product := simpleProduct()
	product.Title = ""
	h := newPushHarness(t, product)

	_, err := h.orch.Push(context.Background(), product.ID, integration.PlatformCodeWooCommerce, testStore)
	require.Error(t, err)
	assert.Equal(t, integration.KindValidation, integration.KindOf(err))
	assert.ErrorIs(t, err, catalog.ErrInvalidProduct)
	h.single.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything, mock.Anything)

	rec := h.record(product.ID, integration.PlatformCodeWooCommerce)
	assert.Equal(t, integration.SyncStatusError, rec.Status)
	assert.Equal(t, integration.KindValidation, rec.LastErrorKind)
}

func TestPush_UnknownProduct(t *testing.T) {
	h := newPushHarness(t)
	_, err := h.orch.Push(context.Background(), uuid.New(), integration.PlatformCodeShopify, testStore)
	require.Error(t, err)
	assert.Equal(t, integration.KindValidation, integration.KindOf(err))
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestPush_UnsupportedPlatform(t *testing.T) {
	product := simpleProduct()
	h := newPushHarness(t, product)

	_, err := h.orch.Push(context.Background(), product.ID, "ETSY", testStore)
	require.Error(t, err)
	assert.Equal(t, integration.KindValidation, integration.KindOf(err))
}

func TestPush_LedgerUnavailableBlocksCreate(t *testing.T) {
	product := simpleProduct()
	h := newPushHarness(t, product)
	h.records.readErr = errors.New("connection refused")

	_, err := h.orch.Push(context.Background(), product.ID, integration.PlatformCodeShopify, testStore)
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrLedgerUnavailable)
	assert.Equal(t, integration.KindTransientNetwork, integration.KindOf(err))
	assert.Zero(t, h.multi.count("CreateProductShell"))
}

// ---------------------------------------------------------------------------
// Multi-step platforms
// ---------------------------------------------------------------------------

func TestPush_MultiStepFullPipeline(t *testing.T) {
	product := colorProduct()
	h := newPushHarness(t, product)

	out, err := h.orch.Push(context.Background(), product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)
	assert.Equal(t, integration.OperationCreate, out.Operation)
	assert.Equal(t, integration.PushStateActivated, out.LastStep)
	assert.Equal(t, integration.SyncStatusSynced, out.Status)
	assert.False(t, out.Partial)
	assert.True(t, strings.HasPrefix(out.ExternalID, "gid://shopify/Product/"))

	for _, method := range []string{"CreateProductShell", "UploadMedia", "CreateVariants", "UpdateVariants", "SetInventory", "UpdateMetadata", "Activate"} {
		assert.Equal(t, 1, h.multi.count(method), method)
	}
	assert.True(t, h.multi.activated)
	assert.Equal(t, []bool{true}, h.multi.ignoreFlags)

	rec := h.record(product.ID, integration.PlatformCodeShopify)
	assert.Equal(t, integration.SyncStatusSynced, rec.Status)
	assert.Equal(t, out.ExternalID, rec.ExternalID)
	assert.Equal(t, integration.PushStateActivated, rec.Checkpoint.Step)
	require.Len(t, rec.Checkpoint.VariantIDs, 2)
	require.Len(t, rec.Checkpoint.MediaIDs, 2)

	// zero stock is written explicitly
	blue := rec.Checkpoint.InventoryItemIDs["Blue"]
	qty, ok := h.multi.inventory[blue]
	require.True(t, ok)
	assert.Zero(t, qty)
	assert.Equal(t, int64(7), h.multi.inventory[rec.Checkpoint.InventoryItemIDs["Red"]])

	// variants point at their color image
	assert.Equal(t, rec.Checkpoint.MediaIDs["https://cdn.example.com/tee-red.jpg"], h.multi.variantMedia[rec.Checkpoint.VariantIDs["Red"]])
	assert.Equal(t, rec.Checkpoint.MediaIDs["https://cdn.example.com/tee-blue.jpg"], h.multi.variantMedia[rec.Checkpoint.VariantIDs["Blue"]])
}

func TestPush_MultiStepResumesAfterFailedStep(t *testing.T) {
	ctx := context.Background()
	product := colorProduct()
	h := newPushHarness(t, product)
	h.multi.failWith("SetInventory", integration.NewPlatformUserError("shopify.inventorySetQuantities",
		[]integration.FieldError{{Field: "quantities", Message: "location not found"}}))

	out, err := h.orch.Push(ctx, product.ID, integration.PlatformCodeShopify, testStore)
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrPartialStepFailure)
	assert.Equal(t, integration.KindPlatformUser, integration.RootKind(err))
	assert.Equal(t, integration.PushStateVariantsUpdated, out.LastStep)
	assert.NotEmpty(t, out.ExternalID)

	var se *integration.SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, integration.PushStateInventorySet, se.Step)

	rec := h.record(product.ID, integration.PlatformCodeShopify)
	assert.Equal(t, integration.SyncStatusError, rec.Status)
	assert.Equal(t, integration.KindPartialStepFailure, rec.LastErrorKind)
	assert.Equal(t, integration.PushStateVariantsUpdated, rec.Checkpoint.Step)
	assert.Equal(t, out.ExternalID, rec.ExternalID)

	out2, err := h.orch.Push(ctx, product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)
	assert.Equal(t, out.ExternalID, out2.ExternalID)
	assert.Equal(t, integration.PushStateActivated, out2.LastStep)

	assert.Equal(t, 1, h.multi.count("CreateProductShell"))
	assert.Equal(t, 1, h.multi.count("UploadMedia"))
	assert.Equal(t, 1, h.multi.count("CreateVariants"))
	assert.Equal(t, 1, h.multi.count("UpdateVariants"))
	assert.Equal(t, 2, h.multi.count("SetInventory"))
	assert.Equal(t, 1, h.multi.count("Activate"))
}

func TestPush_MultiStepShellFailureStartsOver(t *testing.T) {
	ctx := context.Background()
	product := simpleProduct()
	h := newPushHarness(t, product)
	h.multi.failWith("CreateProductShell", integration.NewTransientError("shopify.productCreate", context.DeadlineExceeded))

	out, err := h.orch.Push(ctx, product.ID, integration.PlatformCodeShopify, testStore)
	require.Error(t, err)
	assert.Equal(t, integration.PushStateNone, out.LastStep)
	assert.Empty(t, out.ExternalID)
	assert.Equal(t, 1, h.multi.count("CreateProductShell"))
	assert.Empty(t, h.record(product.ID, integration.PlatformCodeShopify).ExternalID)

	_, err = h.orch.Push(ctx, product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)
	assert.Equal(t, 2, h.multi.count("CreateProductShell"))
}

func TestPush_MultiStepMediaFailureIsPartial(t *testing.T) {
	product := simpleProduct()
	h := newPushHarness(t, product)
	h.multi.mediaStatus["https://cdn.example.com/mug.jpg"] = integration.MediaStatusFailed

	out, err := h.orch.Push(context.Background(), product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)
	assert.True(t, out.Partial)
	assert.Equal(t, []string{"https://cdn.example.com/mug.jpg"}, out.FailedMedia)
	assert.Equal(t, integration.PushStateActivated, out.LastStep)
	assert.Equal(t, 1, h.multi.count("Activate"))
}

func TestPush_MultiStepPollsUntilMediaReady(t *testing.T) {
	product := simpleProduct()
	h := newPushHarness(t, product)
	h.multi.pollsUntilReady = 2

	out, err := h.orch.Push(context.Background(), product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)
	assert.False(t, out.Partial)
	assert.Equal(t, 3, h.multi.count("GetMediaStatus"))
}

func TestPush_MultiStepMediaNeverSettles(t *testing.T) {
	product := simpleProduct()
	h := newPushHarness(t, product)
	h.multi.pollsUntilReady = 100

	out, err := h.orch.Push(context.Background(), product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)
	assert.True(t, out.Partial)
	assert.Equal(t, 5, h.multi.count("GetMediaStatus"))
}

func TestPush_MultiStepActivatedProductIsUpdated(t *testing.T) {
	ctx := context.Background()
	product := colorProduct()
	h := newPushHarness(t, product)

	first, err := h.orch.Push(ctx, product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)

	second, err := h.orch.Push(ctx, product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)
	assert.Equal(t, integration.OperationUpdate, second.Operation)
	assert.Equal(t, first.ExternalID, second.ExternalID)
	assert.Equal(t, integration.SyncStatusSynced, second.Status)

	assert.Equal(t, 1, h.multi.count("CreateProductShell"))
	assert.Equal(t, 1, h.multi.count("UpdateProduct"))
	assert.Equal(t, 1, h.multi.count("UploadMedia"))
	assert.Equal(t, 1, h.multi.count("CreateVariants"))
	assert.Equal(t, 2, h.multi.count("UpdateVariants"))
	assert.Equal(t, 2, h.multi.count("SetInventory"))
	assert.Equal(t, 1, h.multi.count("Activate"))
}

func TestPush_MultiStepNewVariantOnActivatedProduct(t *testing.T) {
	ctx := context.Background()
	product := colorProduct()
	h := newPushHarness(t, product)

	_, err := h.orch.Push(ctx, product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)

	product.Options[0].Values = append(product.Options[0].Values, "Green")
	product.Variants = append(product.Variants, catalog.Variant{SKU: "TEE-G", Price: 4500, OptionValues: []string{"Green"}, InventoryQuantity: 3})
	require.NoError(t, h.products.Save(ctx, product))

	_, err = h.orch.Push(ctx, product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)
	assert.Equal(t, 2, h.multi.count("CreateVariants"))

	rec := h.record(product.ID, integration.PlatformCodeShopify)
	assert.Len(t, rec.Checkpoint.VariantIDs, 3)
	assert.Equal(t, int64(3), h.multi.inventory[rec.Checkpoint.InventoryItemIDs["Green"]])
}

func TestPush_MultiStepMetadataCarriesMediaIDs(t *testing.T) {
	product := colorProduct()
	h := newPushHarness(t, product)

	_, err := h.orch.Push(context.Background(), product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)

	rec := h.record(product.ID, integration.PlatformCodeShopify)
	require.Len(t, rec.Checkpoint.MediaIDs, 2)
	assert.Equal(t, rec.Checkpoint.MediaIDs, h.multi.written)
}

func TestPush_MultiStepPendingMediaIsNotUploadedTwice(t *testing.T) {
	ctx := context.Background()
	product := simpleProduct()
	h := newPushHarness(t, product)
	h.multi.failWith("GetMediaStatus", integration.NewAuthExpiredError("shopify.media", errors.New("401")))

	_, err := h.orch.Push(ctx, product.ID, integration.PlatformCodeShopify, testStore)
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrPartialStepFailure)

	rec := h.record(product.ID, integration.PlatformCodeShopify)
	assert.Equal(t, integration.PushStateCreated, rec.Checkpoint.Step)
	pendingID, ok := rec.Checkpoint.PendingMedia["https://cdn.example.com/mug.jpg"]
	require.True(t, ok)
	assert.Empty(t, rec.Checkpoint.MediaIDs)

	out, err := h.orch.Push(ctx, product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)
	assert.False(t, out.Partial)
	assert.Equal(t, 1, h.multi.count("UploadMedia"))

	rec = h.record(product.ID, integration.PlatformCodeShopify)
	assert.Equal(t, pendingID, rec.Checkpoint.MediaIDs["https://cdn.example.com/mug.jpg"])
	assert.Empty(t, rec.Checkpoint.PendingMedia)
}

func TestPush_MultiStepUnsettledMediaIsPolledOnNextPush(t *testing.T) {
	ctx := context.Background()
	product := simpleProduct()
	h := newPushHarness(t, product)
	h.multi.pollsUntilReady = 5

	out, err := h.orch.Push(ctx, product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)
	assert.True(t, out.Partial)
	rec := h.record(product.ID, integration.PlatformCodeShopify)
	assert.Len(t, rec.Checkpoint.PendingMedia, 1)

	out, err = h.orch.Push(ctx, product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)
	assert.False(t, out.Partial)
	assert.Empty(t, out.FailedMedia)
	assert.Equal(t, 1, h.multi.count("UploadMedia"))

	rec = h.record(product.ID, integration.PlatformCodeShopify)
	assert.Len(t, rec.Checkpoint.MediaIDs, 1)
	assert.Empty(t, rec.Checkpoint.PendingMedia)
	assert.Equal(t, rec.Checkpoint.MediaIDs, h.multi.written)
}

func TestPush_MultiStepFailedMediaIsRetried(t *testing.T) {
	ctx := context.Background()
	product := simpleProduct()
	h := newPushHarness(t, product)
	h.multi.mediaStatus["https://cdn.example.com/mug.jpg"] = integration.MediaStatusFailed

	out, err := h.orch.Push(ctx, product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)
	require.True(t, out.Partial)
	rec := h.record(product.ID, integration.PlatformCodeShopify)
	assert.Empty(t, rec.Checkpoint.PendingMedia)

	delete(h.multi.mediaStatus, "https://cdn.example.com/mug.jpg")
	out, err = h.orch.Push(ctx, product.ID, integration.PlatformCodeShopify, testStore)
	require.NoError(t, err)
	assert.Equal(t, integration.OperationUpdate, out.Operation)
	assert.False(t, out.Partial)
	assert.Empty(t, out.FailedMedia)
	assert.Equal(t, 2, h.multi.count("UploadMedia"))

	rec = h.record(product.ID, integration.PlatformCodeShopify)
	assert.Empty(t, rec.Checkpoint.FailedMedia)
	assert.Contains(t, rec.Checkpoint.MediaIDs, "https://cdn.example.com/mug.jpg")
	assert.Equal(t, rec.Checkpoint.MediaIDs, h.multi.written)
}

func TestPush_MultiStepUnrecordedShellIsLogged(t *testing.T) {
	product := simpleProduct()
	h := newPushHarness(t, product)
	h.records.writeErr = func(r *integration.SyncRecord) error {
		if r.Checkpoint.Step == integration.PushStateCreated {
			return errors.New("connection reset")
		}
		return nil
	}
	core, logs := observer.New(zapcore.ErrorLevel)
	ctx := logger.WithContext(context.Background(), zap.New(core))

	out, err := h.orch.Push(ctx, product.ID, integration.PlatformCodeShopify, testStore)
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrLedgerUnavailable)
	require.NotEmpty(t, out.ExternalID)

	entries := logs.FilterMessage("product shell created but not recorded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, out.ExternalID, entries[0].ContextMap()["product_id"])
	assert.Zero(t, h.multi.count("UploadMedia"))
}

func TestPush_SpanCarriesSyncAttributes(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	product := colorProduct()
	h := newPushHarness(t, product)
	h.multi.failWith("SetInventory", integration.NewPlatformUserError("shopify.inventorySetQuantities",
		[]integration.FieldError{{Field: "quantities", Message: "location not found"}}))

	out, err := h.orch.Push(context.Background(), product.ID, integration.PlatformCodeShopify, testStore)
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	attrs := map[attribute.Key]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "sync.Push", spans[0].Name())
	assert.Equal(t, "SHOPIFY", attrs["sync.platform"])
	assert.Equal(t, testStore, attrs["sync.store_id"])
	assert.Equal(t, product.ID.String(), attrs["sync.canonical_id"])
	assert.Equal(t, out.ExternalID, attrs["sync.external_id"])
	assert.Equal(t, out.LastStep.String(), attrs["sync.step"])
	assert.Equal(t, string(integration.KindPlatformUser), attrs["sync.error_kind"])
}

func TestPushResult(t *testing.T) {
	assert.Equal(t, "ok", pushResult(PushOutcome{}, nil))
	assert.Equal(t, "partial", pushResult(PushOutcome{Partial: true}, nil))
	assert.Equal(t, string(integration.KindAuthExpired), pushResult(PushOutcome{}, integration.NewAuthExpiredError("op", errors.New("401"))))
}
