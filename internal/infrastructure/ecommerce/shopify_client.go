package ecommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
)

// Errors for Shopify responses
var (
	ErrShopifyProductNotFound = errors.New("shopify: product not found")
	ErrShopifyNoLocation      = errors.New("shopify: shop has no primary location")
)

// ShopifyClient drives the Admin GraphQL API one pipeline step at a time
type ShopifyClient struct {
	config      *ShopifyConfig
	credentials integration.CredentialStore
	transport   *transport

	// locations caches the primary location id per store
	locations   map[string]string
	locationsMu sync.Mutex
}

var _ integration.MultiStepClient = (*ShopifyClient)(nil)

// NewShopifyClient creates a Shopify client
func NewShopifyClient(config *ShopifyConfig, credentials integration.CredentialStore, opts ClientOptions) (*ShopifyClient, error) {
	if config == nil {
		config = NewShopifyConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if credentials == nil {
		return nil, integration.ErrCredentialsNotFound
	}
	return &ShopifyClient{
		config:      config,
		credentials: credentials,
		transport:   newTransport(integration.PlatformCodeShopify, config.RequestsPerSecond, config.Burst, config.Timeout(), opts),
		locations:   make(map[string]string),
	}, nil
}

// Platform implements integration.MultiStepClient
func (c *ShopifyClient) Platform() integration.PlatformCode {
	return integration.PlatformCodeShopify
}

// CreateProductShell implements integration.MultiStepClient. The shell holds
// the title and options only and is always created as a draft.
func (c *ShopifyClient) CreateProductShell(ctx context.Context, storeID string, payload integration.MultiStepPayload) (integration.ShellResult, error) {
	const op = "shopify.productCreate"
	p, err := shopifyPayload(op, payload)
	if err != nil {
		return integration.ShellResult{}, err
	}
	shell := ShopifyProductInput{
		Title:          p.Product.Title,
		Handle:         p.Product.Handle,
		Status:         "DRAFT",
		ProductOptions: p.Product.ProductOptions,
	}

	var out struct {
		ProductCreate struct {
			Product *struct {
				ID       string `json:"id"`
				Variants struct {
					Nodes []struct {
						ID            string `json:"id"`
						InventoryItem struct {
							ID string `json:"id"`
						} `json:"inventoryItem"`
					} `json:"nodes"`
				} `json:"variants"`
			} `json:"product"`
			UserErrors []ShopifyUserError `json:"userErrors"`
		} `json:"productCreate"`
	}
	if err := c.graphql(ctx, storeID, op, shopifyProductCreate, map[string]any{"product": shell}, &out); err != nil {
		return integration.ShellResult{}, err
	}
	if err := userErrors(op, out.ProductCreate.UserErrors); err != nil {
		return integration.ShellResult{}, err
	}
	product := out.ProductCreate.Product
	if product == nil || product.ID == "" || len(product.Variants.Nodes) == 0 {
		return integration.ShellResult{}, integration.NewMalformedRecord(c.Platform(), "productCreate returned no product or default variant")
	}
	def := product.Variants.Nodes[0]
	return integration.ShellResult{
		ProductID: product.ID,
		DefaultVariant: integration.VariantRef{
			Key:             p.variants[0].Key,
			VariantID:       def.ID,
			InventoryItemID: def.InventoryItem.ID,
		},
	}, nil
}

// UploadMedia implements integration.MultiStepClient
func (c *ShopifyClient) UploadMedia(ctx context.Context, storeID, productID string, media []integration.MediaInput) ([]integration.MediaRef, error) {
	const op = "shopify.productCreateMedia"
	if len(media) == 0 {
		return nil, nil
	}
	inputs := make([]map[string]any, 0, len(media))
	for _, m := range media {
		inputs = append(inputs, map[string]any{
			"originalSource":   m.UploadURL,
			"alt":              m.Alt,
			"mediaContentType": "IMAGE",
		})
	}

	var out struct {
		ProductCreateMedia struct {
			Media []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"media"`
			MediaUserErrors []ShopifyUserError `json:"mediaUserErrors"`
		} `json:"productCreateMedia"`
	}
	vars := map[string]any{"productId": productID, "media": inputs}
	if err := c.graphql(ctx, storeID, op, shopifyProductCreateMedia, vars, &out); err != nil {
		return nil, err
	}
	if err := userErrors(op, out.ProductCreateMedia.MediaUserErrors); err != nil {
		return nil, err
	}
	created := out.ProductCreateMedia.Media
	if len(created) != len(media) {
		return nil, integration.NewMalformedRecord(c.Platform(), "productCreateMedia returned %d media for %d inputs", len(created), len(media))
	}
	refs := make([]integration.MediaRef, 0, len(media))
	for i, m := range created {
		refs = append(refs, integration.MediaRef{SourceURL: media[i].SourceURL, MediaID: m.ID})
	}
	return refs, nil
}

// GetMediaStatus implements integration.MultiStepClient. Media the shop no
// longer knows about is reported as failed.
func (c *ShopifyClient) GetMediaStatus(ctx context.Context, storeID, _ string, mediaIDs []string) (map[string]integration.MediaStatus, error) {
	const op = "shopify.mediaStatus"
	statuses := make(map[string]integration.MediaStatus, len(mediaIDs))
	if len(mediaIDs) == 0 {
		return statuses, nil
	}
	var out struct {
		Nodes []*struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"nodes"`
	}
	if err := c.graphql(ctx, storeID, op, shopifyMediaStatus, map[string]any{"ids": mediaIDs}, &out); err != nil {
		return nil, err
	}
	for _, id := range mediaIDs {
		statuses[id] = integration.MediaStatusFailed
	}
	for _, n := range out.Nodes {
		if n == nil || n.ID == "" {
			continue
		}
		statuses[n.ID] = integration.MediaStatus(strings.ToUpper(n.Status))
	}
	return statuses, nil
}

// CreateVariants implements integration.MultiStepClient
func (c *ShopifyClient) CreateVariants(ctx context.Context, storeID, productID string, variants []integration.VariantInput) ([]integration.VariantRef, error) {
	const op = "shopify.productVariantsBulkCreate"
	if len(variants) == 0 {
		return nil, nil
	}
	inputs := make([]map[string]any, 0, len(variants))
	for _, v := range variants {
		optionValues := make([]map[string]string, 0, len(v.OptionValues))
		for _, ov := range v.OptionValues {
			optionValues = append(optionValues, map[string]string{"optionName": ov.Name, "name": ov.Value})
		}
		in := map[string]any{
			"optionValues":  optionValues,
			"price":         v.Price,
			"inventoryItem": inventoryItemInput(v.SKU, v.Weight, v.WeightUnit, &v.RequiresShipping),
		}
		if v.CompareAtPrice != "" {
			in["compareAtPrice"] = v.CompareAtPrice
		}
		inputs = append(inputs, in)
	}

	var out struct {
		ProductVariantsBulkCreate struct {
			ProductVariants []struct {
				ID              string                  `json:"id"`
				SelectedOptions []ShopifySelectedOption `json:"selectedOptions"`
				InventoryItem   struct {
					ID string `json:"id"`
				} `json:"inventoryItem"`
			} `json:"productVariants"`
			UserErrors []ShopifyUserError `json:"userErrors"`
		} `json:"productVariantsBulkCreate"`
	}
	vars := map[string]any{"productId": productID, "variants": inputs}
	if err := c.graphql(ctx, storeID, op, shopifyVariantsBulkCreate, vars, &out); err != nil {
		return nil, err
	}
	if err := userErrors(op, out.ProductVariantsBulkCreate.UserErrors); err != nil {
		return nil, err
	}

	byValues := make(map[string]int, len(out.ProductVariantsBulkCreate.ProductVariants))
	for i, pv := range out.ProductVariantsBulkCreate.ProductVariants {
		byValues[selectedKey(pv.SelectedOptions)] = i
	}
	refs := make([]integration.VariantRef, 0, len(variants))
	for _, v := range variants {
		values := make([]ShopifySelectedOption, 0, len(v.OptionValues))
		for _, ov := range v.OptionValues {
			values = append(values, ShopifySelectedOption{Name: ov.Name, Value: ov.Value})
		}
		i, ok := byValues[selectedKey(values)]
		if !ok {
			return nil, integration.NewMalformedRecord(c.Platform(), "productVariantsBulkCreate did not return variant %q", v.Key)
		}
		pv := out.ProductVariantsBulkCreate.ProductVariants[i]
		refs = append(refs, integration.VariantRef{Key: v.Key, VariantID: pv.ID, InventoryItemID: pv.InventoryItem.ID})
	}
	return refs, nil
}

// UpdateVariants implements integration.MultiStepClient
func (c *ShopifyClient) UpdateVariants(ctx context.Context, storeID, productID string, updates []integration.VariantUpdate) error {
	const op = "shopify.productVariantsBulkUpdate"
	if len(updates) == 0 {
		return nil
	}
	inputs := make([]map[string]any, 0, len(updates))
	for _, u := range updates {
		in := map[string]any{
			"id":            u.VariantID,
			"price":         u.Price,
			"inventoryItem": inventoryItemInput(u.SKU, u.Weight, u.WeightUnit, nil),
		}
		// null clears a previous compare-at price
		if u.CompareAtPrice != "" {
			in["compareAtPrice"] = u.CompareAtPrice
		} else {
			in["compareAtPrice"] = nil
		}
		if u.MediaID != "" {
			in["mediaId"] = u.MediaID
		}
		inputs = append(inputs, in)
	}

	var out struct {
		ProductVariantsBulkUpdate struct {
			UserErrors []ShopifyUserError `json:"userErrors"`
		} `json:"productVariantsBulkUpdate"`
	}
	vars := map[string]any{"productId": productID, "variants": inputs}
	if err := c.graphql(ctx, storeID, op, shopifyVariantsBulkUpdate, vars, &out); err != nil {
		return err
	}
	return userErrors(op, out.ProductVariantsBulkUpdate.UserErrors)
}

// SetInventory implements integration.MultiStepClient. Quantities are set at
// the shop's primary location.
func (c *ShopifyClient) SetInventory(ctx context.Context, storeID string, quantities []integration.InventoryQuantity, ignoreCompareQuantity bool) error {
	const op = "shopify.inventorySetQuantities"
	if len(quantities) == 0 {
		return nil
	}
	locationID, err := c.primaryLocation(ctx, storeID)
	if err != nil {
		return err
	}
	qs := make([]map[string]any, 0, len(quantities))
	for _, q := range quantities {
		qs = append(qs, map[string]any{
			"inventoryItemId": q.InventoryItemID,
			"locationId":      locationID,
			"quantity":        q.Quantity,
		})
	}
	input := map[string]any{
		"name":                  "available",
		"reason":                "correction",
		"ignoreCompareQuantity": ignoreCompareQuantity,
		"quantities":            qs,
	}

	var out struct {
		InventorySetQuantities struct {
			UserErrors []ShopifyUserError `json:"userErrors"`
		} `json:"inventorySetQuantities"`
	}
	if err := c.graphql(ctx, storeID, op, shopifyInventorySetQuantities, map[string]any{"input": input}, &out); err != nil {
		return err
	}
	return userErrors(op, out.InventorySetQuantities.UserErrors)
}

// UpdateMetadata implements integration.MultiStepClient
func (c *ShopifyClient) UpdateMetadata(ctx context.Context, storeID, productID string, payload integration.MultiStepPayload) error {
	const op = "shopify.productUpdate.metadata"
	p, err := shopifyPayload(op, payload)
	if err != nil {
		return err
	}
	in := ShopifyProductInput{
		ID:              productID,
		DescriptionHTML: p.Product.DescriptionHTML,
		Vendor:          p.Product.Vendor,
		ProductType:     p.Product.ProductType,
		Tags:            p.Product.Tags,
		TemplateSuffix:  p.Product.TemplateSuffix,
		Metafields:      p.Product.Metafields,
	}
	return c.productUpdate(ctx, storeID, op, in)
}

// Activate implements integration.MultiStepClient
func (c *ShopifyClient) Activate(ctx context.Context, storeID, productID string, payload integration.MultiStepPayload) error {
	const op = "shopify.productUpdate.status"
	p, err := shopifyPayload(op, payload)
	if err != nil {
		return err
	}
	return c.productUpdate(ctx, storeID, op, ShopifyProductInput{ID: productID, Status: p.Status})
}

// UpdateProduct implements integration.MultiStepClient
func (c *ShopifyClient) UpdateProduct(ctx context.Context, storeID, productID string, payload integration.MultiStepPayload) error {
	const op = "shopify.productUpdate"
	p, err := shopifyPayload(op, payload)
	if err != nil {
		return err
	}
	in := p.Product
	in.ID = productID
	in.Status = p.Status
	in.ProductOptions = nil
	return c.productUpdate(ctx, storeID, op, in)
}

// GetProduct implements integration.MultiStepClient
func (c *ShopifyClient) GetProduct(ctx context.Context, storeID, productID string) (integration.PlatformRecord, error) {
	const op = "shopify.product"
	var out struct {
		Product *ShopifyProduct `json:"product"`
	}
	if err := c.graphql(ctx, storeID, op, shopifyProductQuery, map[string]any{"id": productID}, &out); err != nil {
		return nil, err
	}
	if out.Product == nil {
		return nil, integration.NewValidationError(op, fmt.Errorf("%w: %s", ErrShopifyProductNotFound, productID))
	}
	return &ShopifyRecord{Product: *out.Product}, nil
}

func (c *ShopifyClient) productUpdate(ctx context.Context, storeID, op string, in ShopifyProductInput) error {
	var out struct {
		ProductUpdate struct {
			UserErrors []ShopifyUserError `json:"userErrors"`
		} `json:"productUpdate"`
	}
	if err := c.graphql(ctx, storeID, op, shopifyProductUpdate, map[string]any{"product": in}, &out); err != nil {
		return err
	}
	return userErrors(op, out.ProductUpdate.UserErrors)
}

func (c *ShopifyClient) primaryLocation(ctx context.Context, storeID string) (string, error) {
	c.locationsMu.Lock()
	id, ok := c.locations[storeID]
	c.locationsMu.Unlock()
	if ok {
		return id, nil
	}

	var out struct {
		Location *struct {
			ID string `json:"id"`
		} `json:"location"`
	}
	if err := c.graphql(ctx, storeID, "shopify.location", shopifyPrimaryLocation, nil, &out); err != nil {
		return "", err
	}
	if out.Location == nil || out.Location.ID == "" {
		return "", integration.NewValidationError("shopify.location", ErrShopifyNoLocation)
	}

	c.locationsMu.Lock()
	c.locations[storeID] = out.Location.ID
	c.locationsMu.Unlock()
	return out.Location.ID, nil
}

// ---------------------------------------------------------------------------
// GraphQL transport
// ---------------------------------------------------------------------------

func (c *ShopifyClient) graphql(ctx context.Context, storeID, op, query string, vars map[string]any, out any) error {
	creds, err := credentialsFor(ctx, c.credentials, c.Platform(), storeID, op)
	if err != nil {
		return err
	}
	if creds.Expired(time.Now()) {
		return integration.NewAuthExpiredError(op, fmt.Errorf("access token for store %q expired at %s", storeID, creds.ExpiresAt.Format(time.RFC3339)))
	}

	req, err := newJSONRequest(ctx, http.MethodPost, c.config.graphqlURL(creds.BaseURL), graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return integration.NewValidationError(op, err)
	}
	req.Header.Set("X-Shopify-Access-Token", creds.AccessToken)

	resp, err := c.transport.do(ctx, op, req)
	if err != nil {
		return err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return integration.NewValidationError(op, fmt.Errorf("%w: HTTP %d: %s", ErrUnexpectedStatus, resp.Status, snippet(resp.Body)))
	}

	var envelope graphqlResponse
	if err := decodeJSON(c.Platform(), resp.Body, &envelope); err != nil {
		return err
	}
	if len(envelope.Errors) > 0 {
		return graphqlErrors(ctx, op, envelope)
	}
	if out == nil {
		return nil
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return integration.NewMalformedRecord(c.Platform(), "%s returned no data", op)
	}
	return decodeJSON(c.Platform(), envelope.Data, out)
}

// graphqlErrors classifies top-level errors. Throttling is reported with a
// 200 status and a cost extension describing when the bucket refills.
func graphqlErrors(ctx context.Context, op string, envelope graphqlResponse) error {
	for _, e := range envelope.Errors {
		switch e.Extensions.Code {
		case "THROTTLED":
			wait := throttleWait(envelope.Extensions.Cost)
			logger.L(ctx).Debug("shopify throttled",
				zap.String("op", op),
				zap.Duration("retry_after", wait),
			)
			return integration.NewRateLimitedError(op, wait, errors.New(e.Message))
		case "ACCESS_DENIED", "UNAUTHORIZED":
			return integration.NewAuthExpiredError(op, errors.New(e.Message))
		case "INTERNAL_SERVER_ERROR":
			return integration.NewTransientError(op, errors.New(e.Message))
		}
	}
	fields := make([]integration.FieldError, 0, len(envelope.Errors))
	for _, e := range envelope.Errors {
		path := make([]string, 0, len(e.Path))
		for _, p := range e.Path {
			path = append(path, fmt.Sprint(p))
		}
		fields = append(fields, integration.FieldError{Field: strings.Join(path, "."), Message: e.Message, Code: e.Extensions.Code})
	}
	return integration.NewPlatformUserError(op, fields)
}

// throttleWait estimates how long until the bucket holds the requested cost
func throttleWait(cost *ShopifyQueryCost) time.Duration {
	if cost == nil || cost.ThrottleStatus.RestoreRate <= 0 {
		return time.Second
	}
	missing := cost.RequestedQueryCost - cost.ThrottleStatus.CurrentlyAvailable
	if missing <= 0 {
		return time.Second
	}
	return time.Duration(missing / cost.ThrottleStatus.RestoreRate * float64(time.Second))
}

// userErrors converts mutation userErrors into a platform user error
func userErrors(op string, errs []ShopifyUserError) error {
	if len(errs) == 0 {
		return nil
	}
	fields := make([]integration.FieldError, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, integration.FieldError{Field: strings.Join(e.Field, "."), Message: e.Message, Code: e.Code})
	}
	return integration.NewPlatformUserError(op, fields)
}

func shopifyPayload(op string, payload integration.MultiStepPayload) (*ShopifyProductPayload, error) {
	p, ok := payload.(*ShopifyProductPayload)
	if !ok || p == nil {
		return nil, integration.NewValidationError(op, integration.ErrUnexpectedPayload)
	}
	if err := p.Validate(); err != nil {
		return nil, integration.NewValidationError(op, err)
	}
	return p, nil
}

// inventoryItemInput builds the InventoryItemInput for a variant write
func inventoryItemInput(sku, weight, unit string, requiresShipping *bool) map[string]any {
	item := map[string]any{"sku": sku, "tracked": true}
	if requiresShipping != nil {
		item["requiresShipping"] = *requiresShipping
	}
	if weight != "" {
		item["measurement"] = map[string]any{
			"weight": map[string]any{"value": json.Number(weight), "unit": unit},
		}
	}
	return item
}

func selectedKey(options []ShopifySelectedOption) string {
	parts := make([]string, 0, len(options))
	for _, o := range options {
		parts = append(parts, strings.ToLower(o.Name)+"="+o.Value)
	}
	return strings.Join(parts, "\x1f")
}
