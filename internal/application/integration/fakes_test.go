package integration

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/convert"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

type memProducts struct {
	mu       sync.Mutex
	products map[uuid.UUID]catalog.Product
}

func newMemProducts(products ...*catalog.Product) *memProducts {
	m := &memProducts{products: make(map[uuid.UUID]catalog.Product)}
	for _, p := range products {
		m.products[p.ID] = *p
	}
	return m
}

func (m *memProducts) FindByID(_ context.Context, id uuid.UUID) (*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (m *memProducts) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, id := range ids {
		if p, err := m.FindByID(ctx, id); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProducts) FindAll(_ context.Context, _ shared.Filter) ([]catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]catalog.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *memProducts) Count(_ context.Context, _ shared.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.products)), nil
}

func (m *memProducts) Save(_ context.Context, p *catalog.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = *p
	return nil
}

func (m *memProducts) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
	return nil
}

// ---------------------------------------------------------------------------
// Ledger storage
// ---------------------------------------------------------------------------

type memRecords struct {
	mu      sync.Mutex
	records map[integration.RecordKey]integration.SyncRecord
	readErr error
	upserts int
	// writeErr, when set, decides whether an upsert fails
	writeErr func(r *integration.SyncRecord) error
}

func newMemRecords() *memRecords {
	return &memRecords{records: make(map[integration.RecordKey]integration.SyncRecord)}
}

func (m *memRecords) FindByKey(_ context.Context, key integration.RecordKey) (*integration.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	r, ok := m.records[key]
	if !ok {
		return nil, integration.ErrSyncRecordNotFound
	}
	r.Checkpoint = r.Checkpoint.Clone()
	return &r, nil
}

func (m *memRecords) FindByExternalID(_ context.Context, platform integration.PlatformCode, externalID string) (*integration.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Platform == platform && r.ExternalID == externalID {
			return &r, nil
		}
	}
	return nil, integration.ErrSyncRecordNotFound
}

func (m *memRecords) List(_ context.Context, platform integration.PlatformCode, status *integration.SyncStatus, _ shared.Filter) ([]integration.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []integration.SyncRecord
	for _, r := range m.records {
		if r.Platform != platform || (status != nil && r.Status != *status) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalID.String() < out[j].CanonicalID.String() })
	return out, nil
}

func (m *memRecords) Upsert(_ context.Context, r *integration.SyncRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.writeErr != nil {
		if err := m.writeErr(r); err != nil {
			return err
		}
	}
	key := r.Key()
	if existing, ok := m.records[key]; ok && existing.ExternalID != "" && existing.ExternalID != r.ExternalID {
		return integration.ErrExternalIDMismatch
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	stored := *r
	stored.Checkpoint = r.Checkpoint.Clone()
	m.records[key] = stored
	return nil
}

func (m *memRecords) Delete(_ context.Context, key integration.RecordKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; !ok {
		return integration.ErrSyncRecordNotFound
	}
	delete(m.records, key)
	return nil
}

func (m *memRecords) get(key integration.RecordKey) integration.SyncRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[key]
}

// ---------------------------------------------------------------------------
// Locker
// ---------------------------------------------------------------------------

type localLocker struct {
	km keyMutex
}

func (l *localLocker) Lock(_ context.Context, key string) (func(), error) {
	return l.km.lock(key), nil
}

// ---------------------------------------------------------------------------
// Transformer
// ---------------------------------------------------------------------------

type fakePayload struct {
	platform integration.PlatformCode
	title    string
	media    []integration.MediaInput
	variants []integration.VariantInput
	bound    map[string]string
}

func (p *fakePayload) Platform() integration.PlatformCode          { return p.platform }
func (p *fakePayload) Validate() error                             { return nil }
func (p *fakePayload) Media() []integration.MediaInput             { return p.media }
func (p *fakePayload) VariantInputs() []integration.VariantInput   { return p.variants }
func (p *fakePayload) CategoryResolution() (string, string, string) { return p.title, "Uncategorized", "default" }

func (p *fakePayload) BindMedia(mediaIDs map[string]string) error {
	p.bound = maps.Clone(mediaIDs)
	return nil
}

type fakeRecord struct {
	platform integration.PlatformCode
	id       string
	product  *catalog.Product
}

func (r fakeRecord) Platform() integration.PlatformCode { return r.platform }
func (r fakeRecord) RecordID() string                   { return r.id }

// fakeTransformer converts with the real unit converters, grams to pounds at 3 places
type fakeTransformer struct {
	platform integration.PlatformCode
	mu       sync.Mutex
	seen     []integration.SyncContext
}

func (t *fakeTransformer) Platform() integration.PlatformCode { return t.platform }

func (t *fakeTransformer) ToPlatform(p *catalog.Product, sc integration.SyncContext) (integration.PlatformPayload, error) {
	t.mu.Lock()
	t.seen = append(t.seen, sc)
	t.mu.Unlock()

	payload := &fakePayload{platform: t.platform, title: p.Title}
	for _, img := range p.Images {
		payload.media = append(payload.media, integration.MediaInput{SourceURL: img.URL, UploadURL: img.URL, Alt: img.Alt})
	}
	for _, v := range p.EffectiveVariants() {
		in := integration.VariantInput{
			Key:              v.Key(),
			SKU:              v.SKU,
			Price:            convert.MinorToDecimalString(v.Price),
			CompareAtPrice:   convert.OptionalMinorToDecimalString(v.CompareAtPrice),
			Weight:           convert.GramsToPounds(v.WeightGrams, 3).String(),
			WeightUnit:       "POUNDS",
			Quantity:         v.InventoryQuantity,
			RequiresShipping: !p.IsDigital,
		}
		for i, val := range v.OptionValues {
			in.OptionValues = append(in.OptionValues, integration.OptionValue{Name: p.Options[i].Name, Value: val})
		}
		if img, ok := p.VariantImage(v); ok {
			in.ImageSourceURL = img.URL
		}
		payload.variants = append(payload.variants, in)
	}
	return payload, nil
}

func (t *fakeTransformer) FromPlatform(r integration.PlatformRecord) (*catalog.Product, error) {
	fr, ok := r.(fakeRecord)
	if !ok || fr.product == nil {
		return nil, integration.NewMalformedRecord(t.platform, "unexpected record %T", r)
	}
	p := *fr.product
	return &p, nil
}

func (t *fakeTransformer) contexts() []integration.SyncContext {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]integration.SyncContext(nil), t.seen...)
}

// ---------------------------------------------------------------------------
// Single-call client
// ---------------------------------------------------------------------------

// MockSingleCallClient is a testify mock of a single-call platform client
type MockSingleCallClient struct {
	mock.Mock
	platform integration.PlatformCode
}

func (m *MockSingleCallClient) Platform() integration.PlatformCode { return m.platform }

func (m *MockSingleCallClient) CreateProduct(ctx context.Context, storeID string, payload integration.PlatformPayload) (string, error) {
	args := m.Called(ctx, storeID, payload)
	return args.String(0), args.Error(1)
}

func (m *MockSingleCallClient) UpdateProduct(ctx context.Context, storeID, externalID string, payload integration.PlatformPayload) error {
	args := m.Called(ctx, storeID, externalID, payload)
	return args.Error(0)
}

func (m *MockSingleCallClient) GetProduct(ctx context.Context, storeID, externalID string) (integration.PlatformRecord, error) {
	args := m.Called(ctx, storeID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(integration.PlatformRecord), args.Error(1)
}

// ---------------------------------------------------------------------------
// Multi-step client
// ---------------------------------------------------------------------------

// fakeMultiStepClient simulates a platform with implicit default variants,
// asynchronous media processing and injectable step failures.
type fakeMultiStepClient struct {
	mu sync.Mutex

	nextID int
	calls  map[string]int
	// failures holds errors returned by the next calls of a method
	failures map[string][]error
	// mediaStatus overrides the status reported for a source URL
	mediaStatus map[string]integration.MediaStatus
	// pollsUntilReady is how many status checks report PROCESSING first
	pollsUntilReady int

	mediaSource  map[string]string
	polls        map[string]int
	inventory    map[string]int64
	variantMedia map[string]string
	ignoreFlags  []bool
	activated    bool
	product      *catalog.Product
	// written holds the media ids bound into the last metadata or product write
	written map[string]string
}

func newFakeMultiStepClient() *fakeMultiStepClient {
	return &fakeMultiStepClient{
		calls:        make(map[string]int),
		failures:     make(map[string][]error),
		mediaStatus:  make(map[string]integration.MediaStatus),
		mediaSource:  make(map[string]string),
		polls:        make(map[string]int),
		inventory:    make(map[string]int64),
		variantMedia: make(map[string]string),
	}
}

func (c *fakeMultiStepClient) Platform() integration.PlatformCode {
	return integration.PlatformCodeShopify
}

func (c *fakeMultiStepClient) failWith(method string, errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[method] = append(c.failures[method], errs...)
}

func (c *fakeMultiStepClient) count(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// enter records the call and pops an injected failure; callers hold no lock
func (c *fakeMultiStepClient) enter(method string) error {
	c.calls[method]++
	if q := c.failures[method]; len(q) > 0 {
		c.failures[method] = q[1:]
		return q[0]
	}
	return nil
}

func (c *fakeMultiStepClient) id(prefix string) string {
	c.nextID++
	return fmt.Sprintf("gid://shopify/%s/%d", prefix, c.nextID)
}

func (c *fakeMultiStepClient) CreateProductShell(_ context.Context, _ string, payload integration.MultiStepPayload) (integration.ShellResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("CreateProductShell"); err != nil {
		return integration.ShellResult{}, err
	}
	return integration.ShellResult{
		ProductID: c.id("Product"),
		DefaultVariant: integration.VariantRef{
			Key:             payload.VariantInputs()[0].Key,
			VariantID:       c.id("ProductVariant"),
			InventoryItemID: c.id("InventoryItem"),
		},
	}, nil
}

func (c *fakeMultiStepClient) UploadMedia(_ context.Context, _, _ string, media []integration.MediaInput) ([]integration.MediaRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("UploadMedia"); err != nil {
		return nil, err
	}
	refs := make([]integration.MediaRef, 0, len(media))
	for _, m := range media {
		id := c.id("MediaImage")
		c.mediaSource[id] = m.SourceURL
		refs = append(refs, integration.MediaRef{SourceURL: m.SourceURL, MediaID: id})
	}
	return refs, nil
}

func (c *fakeMultiStepClient) GetMediaStatus(_ context.Context, _, _ string, ids []string) (map[string]integration.MediaStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("GetMediaStatus"); err != nil {
		return nil, err
	}
	out := make(map[string]integration.MediaStatus, len(ids))
	for _, id := range ids {
		c.polls[id]++
		if s, ok := c.mediaStatus[c.mediaSource[id]]; ok {
			out[id] = s
			continue
		}
		if c.polls[id] <= c.pollsUntilReady {
			out[id] = integration.MediaStatusProcessing
		} else {
			out[id] = integration.MediaStatusReady
		}
	}
	return out, nil
}

func (c *fakeMultiStepClient) CreateVariants(_ context.Context, _, _ string, variants []integration.VariantInput) ([]integration.VariantRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("CreateVariants"); err != nil {
		return nil, err
	}
	refs := make([]integration.VariantRef, 0, len(variants))
	for _, v := range variants {
		refs = append(refs, integration.VariantRef{Key: v.Key, VariantID: c.id("ProductVariant"), InventoryItemID: c.id("InventoryItem")})
	}
	return refs, nil
}

func (c *fakeMultiStepClient) UpdateVariants(_ context.Context, _, _ string, updates []integration.VariantUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("UpdateVariants"); err != nil {
		return err
	}
	for _, u := range updates {
		c.variantMedia[u.VariantID] = u.MediaID
	}
	return nil
}

func (c *fakeMultiStepClient) SetInventory(_ context.Context, _ string, quantities []integration.InventoryQuantity, ignoreCompare bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("SetInventory"); err != nil {
		return err
	}
	c.ignoreFlags = append(c.ignoreFlags, ignoreCompare)
	for _, q := range quantities {
		c.inventory[q.InventoryItemID] = q.Quantity
	}
	return nil
}

func (c *fakeMultiStepClient) UpdateMetadata(_ context.Context, _, _ string, payload integration.MultiStepPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("UpdateMetadata"); err != nil {
		return err
	}
	c.recordWrite(payload)
	return nil
}

func (c *fakeMultiStepClient) Activate(_ context.Context, _, _ string, _ integration.MultiStepPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("Activate"); err != nil {
		return err
	}
	c.activated = true
	return nil
}

func (c *fakeMultiStepClient) UpdateProduct(_ context.Context, _, _ string, payload integration.MultiStepPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("UpdateProduct"); err != nil {
		return err
	}
	c.recordWrite(payload)
	return nil
}

func (c *fakeMultiStepClient) recordWrite(payload integration.MultiStepPayload) {
	if fp, ok := payload.(*fakePayload); ok {
		c.written = maps.Clone(fp.bound)
	}
}

func (c *fakeMultiStepClient) GetProduct(_ context.Context, _, productID string) (integration.PlatformRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("GetProduct"); err != nil {
		return nil, err
	}
	if c.product == nil {
		return nil, errors.New("no product")
	}
	return fakeRecord{platform: integration.PlatformCodeShopify, id: productID, product: c.product}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func fastRetry(maxRetries int) RetryPolicy {
	return NewRetryPolicy(maxRetries, time.Millisecond, 2*time.Millisecond, time.Second)
}

func noSleep(context.Context, time.Duration) error { return nil }

func int64Ptr(v int64) *int64 { return &v }

// simpleProduct has one default variant priced at 45.00 and weighing 2000 g
func simpleProduct() *catalog.Product {
	p, _ := catalog.NewProduct("Ceramic Mug")
	p.Status = catalog.StatusActive
	p.Price = 4500
	p.WeightGrams = 2000
	p.Images = []catalog.Image{{URL: "https://cdn.example.com/mug.jpg", Alt: "Mug"}}
	return p
}

// colorProduct has a Color option with Red and Blue variants and one image per color
func colorProduct() *catalog.Product {
	p, _ := catalog.NewProduct("Cotton Tee")
	p.Status = catalog.StatusActive
	p.Price = 4500
	p.WeightGrams = 2000
	p.Images = []catalog.Image{
		{URL: "https://cdn.example.com/tee-red.jpg", Alt: "Red", Position: 0},
		{URL: "https://cdn.example.com/tee-blue.jpg", Alt: "Blue", Position: 1},
	}
	p.Options = []catalog.Option{{Name: "Color", Values: []string{"Red", "Blue"}}}
	p.Variants = []catalog.Variant{
		{SKU: "TEE-R", Price: 4500, WeightGrams: 2000, InventoryQuantity: 7, OptionValues: []string{"Red"}},
		{SKU: "TEE-B", Price: 4500, WeightGrams: 2000, InventoryQuantity: 0, OptionValues: []string{"Blue"}},
	}
	return p
}
