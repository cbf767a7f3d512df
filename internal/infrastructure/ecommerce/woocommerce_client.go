package ecommerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
)

// ErrWooInvalidProductID indicates a non-numeric product id
var ErrWooInvalidProductID = errors.New("woocommerce: invalid product ID format")

const wooVariationsPerPage = 100

// WooCommerceClient writes products through the WooCommerce REST API.
// Each store is authenticated with Basic-Auth using the consumer key and
// secret returned by the credential store for that request.
type WooCommerceClient struct {
	config      *WooCommerceConfig
	credentials integration.CredentialStore
	transport   *transport

	// terms caches category and tag ids per store
	terms   map[string]wooCachedTerm
	termsMu sync.Mutex
	now     func() time.Time
}

type wooCachedTerm struct {
	id      int64
	expires time.Time
}

var _ integration.SingleCallClient = (*WooCommerceClient)(nil)

// NewWooCommerceClient creates a WooCommerce client
func NewWooCommerceClient(config *WooCommerceConfig, credentials integration.CredentialStore, opts ClientOptions) (*WooCommerceClient, error) {
	if config == nil {
		config = NewWooCommerceConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if credentials == nil {
		return nil, integration.ErrCredentialsNotFound
	}
	return &WooCommerceClient{
		config:      config,
		credentials: credentials,
		transport:   newTransport(integration.PlatformCodeWooCommerce, config.RequestsPerSecond, config.Burst, config.Timeout(), opts),
		terms:       make(map[string]wooCachedTerm),
		now:         time.Now,
	}, nil
}

// Platform implements integration.SingleCallClient
func (c *WooCommerceClient) Platform() integration.PlatformCode {
	return integration.PlatformCodeWooCommerce
}

// CreateProduct implements integration.SingleCallClient. When the product is
// created but its variations are not, the product id is returned together
// with the error so the product is updated rather than duplicated next time.
func (c *WooCommerceClient) CreateProduct(ctx context.Context, storeID string, payload integration.PlatformPayload) (string, error) {
	const op = "woocommerce.createProduct"
	p, err := wooPayload(op, payload)
	if err != nil {
		return "", err
	}
	creds, err := credentialsFor(ctx, c.credentials, c.Platform(), storeID, op)
	if err != nil {
		return "", err
	}
	product := p.Product
	if err := c.resolveTerms(ctx, creds, &product); err != nil {
		return "", err
	}

	var created WooProduct
	if err := c.call(ctx, creds, op, http.MethodPost, c.config.productsURL(creds.BaseURL), product, &created); err != nil {
		return "", err
	}
	if created.ID == 0 {
		return "", integration.NewMalformedRecord(c.Platform(), "create response has no product id")
	}
	id := strconv.FormatInt(created.ID, 10)

	if product.Type == "variable" {
		if err := c.batchVariations(ctx, creds, id, WooVariationBatch{Create: p.Variations}); err != nil {
			return id, err
		}
	}
	logger.L(ctx).Debug("woocommerce product created",
		zap.String("store_id", storeID),
		zap.String("product_id", id),
		zap.Int("variations", len(p.Variations)),
	)
	return id, nil
}

// UpdateProduct implements integration.SingleCallClient. Variations are
// matched to existing ones by option values; unmatched ones are deleted.
func (c *WooCommerceClient) UpdateProduct(ctx context.Context, storeID, externalID string, payload integration.PlatformPayload) error {
	const op = "woocommerce.updateProduct"
	p, err := wooPayload(op, payload)
	if err != nil {
		return err
	}
	if err := validateWooID(externalID); err != nil {
		return integration.NewValidationError(op, err)
	}
	creds, err := credentialsFor(ctx, c.credentials, c.Platform(), storeID, op)
	if err != nil {
		return err
	}
	product := p.Product
	if err := c.resolveTerms(ctx, creds, &product); err != nil {
		return err
	}

	productURL := c.config.productsURL(creds.BaseURL) + "/" + externalID
	if err := c.call(ctx, creds, op, http.MethodPut, productURL, product, nil); err != nil {
		return err
	}
	if product.Type != "variable" {
		return nil
	}

	existing, err := c.listVariations(ctx, creds, externalID)
	if err != nil {
		return err
	}
	return c.batchVariations(ctx, creds, externalID, planVariationBatch(product.Attributes, p, existing))
}

// GetProduct implements integration.SingleCallClient
func (c *WooCommerceClient) GetProduct(ctx context.Context, storeID, externalID string) (integration.PlatformRecord, error) {
	const op = "woocommerce.getProduct"
	if err := validateWooID(externalID); err != nil {
		return nil, integration.NewValidationError(op, err)
	}
	creds, err := credentialsFor(ctx, c.credentials, c.Platform(), storeID, op)
	if err != nil {
		return nil, err
	}
	rec := &WooRecord{}
	if err := c.call(ctx, creds, op, http.MethodGet, c.config.productsURL(creds.BaseURL)+"/"+externalID, nil, &rec.Product); err != nil {
		return nil, err
	}
	if rec.Product.Type == "variable" {
		if rec.Variations, err = c.listVariations(ctx, creds, externalID); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// ---------------------------------------------------------------------------
// Variations
// ---------------------------------------------------------------------------

func (c *WooCommerceClient) listVariations(ctx context.Context, creds integration.PlatformCredentials, productID string) ([]WooVariation, error) {
	const op = "woocommerce.listVariations"
	var all []WooVariation
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("per_page", strconv.Itoa(wooVariationsPerPage))
		q.Set("page", strconv.Itoa(page))
		u := c.config.productsURL(creds.BaseURL) + "/" + productID + "/variations?" + q.Encode()

		var batch []WooVariation
		resp, err := c.exchange(ctx, creds, op, http.MethodGet, u, nil, &batch)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		totalPages, _ := strconv.Atoi(resp.Header.Get("X-WP-TotalPages"))
		if len(batch) < wooVariationsPerPage || page >= totalPages {
			return all, nil
		}
	}
}

func (c *WooCommerceClient) batchVariations(ctx context.Context, creds integration.PlatformCredentials, productID string, batch WooVariationBatch) error {
	const op = "woocommerce.batchVariations"
	if len(batch.Create)+len(batch.Update)+len(batch.Delete) == 0 {
		return nil
	}
	var result WooVariationBatchResult
	u := c.config.productsURL(creds.BaseURL) + "/" + productID + "/variations/batch"
	if err := c.call(ctx, creds, op, http.MethodPost, u, batch, &result); err != nil {
		return err
	}

	var fields []integration.FieldError
	collect := func(action string, items []WooBatchItem) {
		for i, item := range items {
			if item.Error == nil {
				continue
			}
			for _, fe := range item.Error.fieldErrors() {
				fe.Field = fmt.Sprintf("variations.%s[%d].%s", action, i, fe.Field)
				fields = append(fields, fe)
			}
		}
	}
	collect("create", result.Create)
	collect("update", result.Update)
	collect("delete", result.Delete)
	if len(fields) > 0 {
		return integration.NewPlatformUserError(op, fields)
	}
	return nil
}

// planVariationBatch matches wanted variations to existing ones by their
// option values in attribute order.
func planVariationBatch(attrs []WooAttribute, p *WooProductPayload, existing []WooVariation) WooVariationBatch {
	byKey := make(map[string]WooVariation, len(existing))
	for _, v := range existing {
		byKey[wooVariationKey(attrs, v)] = v
	}

	var batch WooVariationBatch
	for i, v := range p.Variations {
		key := p.VariantKeys[i]
		if cur, ok := byKey[key]; ok {
			v.ID = cur.ID
			batch.Update = append(batch.Update, v)
			delete(byKey, key)
			continue
		}
		batch.Create = append(batch.Create, v)
	}
	for _, v := range existing {
		if _, stale := byKey[wooVariationKey(attrs, v)]; stale {
			batch.Delete = append(batch.Delete, v.ID)
		}
	}
	return batch
}

func wooVariationKey(attrs []WooAttribute, v WooVariation) string {
	values := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if !a.Variation {
			continue
		}
		value := ""
		for _, va := range v.Attributes {
			if strings.EqualFold(va.Name, a.Name) {
				value = va.Option
				break
			}
		}
		values = append(values, value)
	}
	return strings.Join(values, "\x1f")
}

// ---------------------------------------------------------------------------
// Terms
// ---------------------------------------------------------------------------

// resolveTerms replaces category and tag names with ids, creating missing terms
func (c *WooCommerceClient) resolveTerms(ctx context.Context, creds integration.PlatformCredentials, product *WooProduct) error {
	resolve := func(kind string, terms []WooTerm) ([]WooTerm, error) {
		out := make([]WooTerm, 0, len(terms))
		for _, t := range terms {
			if t.ID != 0 {
				out = append(out, WooTerm{ID: t.ID})
				continue
			}
			id, err := c.ensureTerm(ctx, creds, kind, t.Name)
			if err != nil {
				return nil, err
			}
			out = append(out, WooTerm{ID: id})
		}
		return out, nil
	}
	var err error
	if product.Categories, err = resolve("categories", product.Categories); err != nil {
		return err
	}
	product.Tags, err = resolve("tags", product.Tags)
	return err
}

func (c *WooCommerceClient) ensureTerm(ctx context.Context, creds integration.PlatformCredentials, kind, name string) (int64, error) {
	op := "woocommerce.ensureTerm"
	cacheKey := creds.StoreID + "|" + kind + "|" + strings.ToLower(name)

	c.termsMu.Lock()
	cached, ok := c.terms[cacheKey]
	c.termsMu.Unlock()
	if ok && c.now().Before(cached.expires) {
		return cached.id, nil
	}

	base := c.config.productsURL(creds.BaseURL) + "/" + kind
	q := url.Values{}
	q.Set("search", name)
	q.Set("per_page", "100")
	var found []WooTerm
	if err := c.call(ctx, creds, op, http.MethodGet, base+"?"+q.Encode(), nil, &found); err != nil {
		return 0, err
	}
	var id int64
	for _, t := range found {
		if strings.EqualFold(t.Name, name) {
			id = t.ID
			break
		}
	}
	if id == 0 {
		var created WooTerm
		err := c.call(ctx, creds, op, http.MethodPost, base, WooTerm{Name: name}, &created)
		var exists *wooTermExistsError
		switch {
		case errors.As(err, &exists):
			id = exists.id
		case err != nil:
			return 0, err
		default:
			id = created.ID
		}
	}
	if id == 0 {
		return 0, integration.NewMalformedRecord(c.Platform(), "%s term %q has no id", kind, name)
	}

	c.termsMu.Lock()
	c.terms[cacheKey] = wooCachedTerm{id: id, expires: c.now().Add(wooTermCacheTTL)}
	c.termsMu.Unlock()
	return id, nil
}

// wooTermExistsError is returned when a concurrent writer created the term first
type wooTermExistsError struct {
	id int64
}

func (e *wooTermExistsError) Error() string {
	return fmt.Sprintf("woocommerce: term exists with id %d", e.id)
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

func (c *WooCommerceClient) call(ctx context.Context, creds integration.PlatformCredentials, op, method, u string, body, out any) error {
	_, err := c.exchange(ctx, creds, op, method, u, body, out)
	return err
}

func (c *WooCommerceClient) exchange(ctx context.Context, creds integration.PlatformCredentials, op, method, u string, body, out any) (*response, error) {
	req, err := newJSONRequest(ctx, method, u, body)
	if err != nil {
		return nil, integration.NewValidationError(op, err)
	}
	req.SetBasicAuth(creds.Username, creds.Password)

	resp, err := c.transport.do(ctx, op, req)
	if err != nil {
		return nil, err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return nil, wooStatusError(op, resp)
	}
	if out != nil {
		if err := decodeJSON(c.Platform(), resp.Body, out); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// wooStatusError converts a 4xx response into a platform user error
func wooStatusError(op string, resp *response) error {
	var werr WooError
	if err := decodeJSON(integration.PlatformCodeWooCommerce, resp.Body, &werr); err != nil || werr.Code == "" {
		return integration.NewValidationError(op, fmt.Errorf("%w: HTTP %d: %s", ErrUnexpectedStatus, resp.Status, snippet(resp.Body)))
	}
	if werr.Code == "term_exists" && werr.Data.ResourceID != 0 {
		return &wooTermExistsError{id: werr.Data.ResourceID}
	}
	return integration.NewPlatformUserError(op, werr.fieldErrors())
}

func wooPayload(op string, payload integration.PlatformPayload) (*WooProductPayload, error) {
	p, ok := payload.(*WooProductPayload)
	if !ok || p == nil {
		return nil, integration.NewValidationError(op, integration.ErrUnexpectedPayload)
	}
	if err := p.Validate(); err != nil {
		return nil, integration.NewValidationError(op, err)
	}
	return p, nil
}

func validateWooID(id string) error {
	if id == "" {
		return ErrWooInvalidProductID
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return fmt.Errorf("%w: %q", ErrWooInvalidProductID, id)
	}
	return nil
}
