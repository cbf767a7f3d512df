package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/catalogsync/backend/internal/application/integration"
	"github.com/catalogsync/backend/internal/domain/catalog"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/interfaces/http/dto"
)

// ProductPusher pushes one product to one platform store
type ProductPusher interface {
	Push(ctx context.Context, canonicalID uuid.UUID, platform integration.PlatformCode, storeID string) (syncapp.PushOutcome, error)
}

// BulkPusher pushes many products with bounded concurrency
type BulkPusher interface {
	RunBulk(ctx context.Context, canonicalIDs []uuid.UUID, platform integration.PlatformCode, storeID string, concurrencyLimit int) syncapp.BulkResult
}

// ProductPuller reads products back from a platform into the catalog
type ProductPuller interface {
	Pull(ctx context.Context, canonicalID uuid.UUID, platform integration.PlatformCode, storeID string) (*catalog.Product, error)
	Import(ctx context.Context, platform integration.PlatformCode, storeID, externalID string) (*catalog.Product, error)
}

// SyncRecordStore is the operator view of the identity ledger
type SyncRecordStore interface {
	List(ctx context.Context, platform integration.PlatformCode, status *integration.SyncStatus, filter shared.Filter) ([]integration.SyncRecord, error)
	Forget(ctx context.Context, canonicalID uuid.UUID, platform integration.PlatformCode) error
}

// PlatformLister reports the platforms with a registered binding
type PlatformLister interface {
	Platforms() []integration.PlatformCode
}

// SyncHandler exposes push, pull and ledger operations per platform
type SyncHandler struct {
	BaseHandler
	pusher    ProductPusher
	bulk      BulkPusher
	puller    ProductPuller
	records   SyncRecordStore
	platforms PlatformLister
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(pusher ProductPusher, bulk BulkPusher, puller ProductPuller, records SyncRecordStore, platforms PlatformLister) *SyncHandler {
	return &SyncHandler{
		pusher:    pusher,
		bulk:      bulk,
		puller:    puller,
		records:   records,
		platforms: platforms,
	}
}

// ListSyncRecordsRequest holds the query parameters of the records listing
type ListSyncRecordsRequest struct {
	dto.ListRequest
	Status string `form:"status" binding:"omitempty,sync_status"`
}

// SyncRecordListResponse is one page of ledger records
type SyncRecordListResponse struct {
	Records  []syncapp.SyncRecordResponse `json:"records"`
	Page     int                          `json:"page"`
	PageSize int                          `json:"page_size"`
	HasMore  bool                         `json:"has_more"`
}

// PlatformResponse describes one registered platform
type PlatformResponse struct {
	Code        integration.PlatformCode `json:"code"`
	DisplayName string                   `json:"display_name"`
	PushShape   integration.PushShape    `json:"push_shape"`
}

// ListPlatforms returns the platforms this instance can push to
// GET /api/v1/sync/platforms
func (h *SyncHandler) ListPlatforms(c *gin.Context) {
	codes := h.platforms.Platforms()
	out := make([]PlatformResponse, 0, len(codes))
	for _, code := range codes {
		out = append(out, PlatformResponse{
			Code:        code,
			DisplayName: code.DisplayName(),
			PushShape:   code.PushShape(),
		})
	}
	h.Success(c, out)
}

// PushProduct pushes one product. The outcome is returned even when the push
// fails, so callers can see how far a multi-step push got.
// POST /api/v1/sync/:platform/products/:id/push
func (h *SyncHandler) PushProduct(c *gin.Context) {
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}
	productID, ok := h.productParam(c)
	if !ok {
		return
	}
	var req syncapp.PushProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	outcome, err := h.pusher.Push(c.Request.Context(), productID, platform, req.StoreID)
	body := syncapp.ToPushOutcomeResponse(outcome, err)
	if err != nil {
		h.errorWithData(c, err, body)
		return
	}
	h.Success(c, body)
}

// BulkPush pushes a batch of products. Per-product failures are reported in
// the body; the response is 207 when at least one product failed.
// POST /api/v1/sync/:platform/push
func (h *SyncHandler) BulkPush(c *gin.Context) {
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}
	var req syncapp.BulkPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result := h.bulk.RunBulk(c.Request.Context(), req.ProductIDs, platform, req.StoreID, req.ConcurrencyLimit)
	status := http.StatusOK
	if result.HasFailures() {
		status = http.StatusMultiStatus
	}
	c.JSON(status, dto.NewSuccessResponse(syncapp.ToBulkPushResponse(result)))
}

// PullProduct refreshes a synced product from the platform
// POST /api/v1/sync/:platform/products/:id/pull
func (h *SyncHandler) PullProduct(c *gin.Context) {
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}
	productID, ok := h.productParam(c)
	if !ok {
		return
	}
	var req syncapp.PullProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	product, err := h.puller.Pull(c.Request.Context(), productID, platform, req.StoreID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// ImportProduct creates or refreshes a canonical product from a platform id
// POST /api/v1/sync/:platform/import
func (h *SyncHandler) ImportProduct(c *gin.Context) {
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}
	var req syncapp.ImportProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	product, err := h.puller.Import(c.Request.Context(), platform, req.StoreID, req.ExternalID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// ListRecords lists ledger records for a platform
// GET /api/v1/sync/:platform/records
func (h *SyncHandler) ListRecords(c *gin.Context) {
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}
	req := ListSyncRecordsRequest{ListRequest: dto.DefaultListRequest()}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Search:   req.Search,
	}
	var status *integration.SyncStatus
	if req.Status != "" {
		s := integration.SyncStatus(req.Status)
		status = &s
	}

	records, err := h.records.List(c.Request.Context(), platform, status, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, SyncRecordListResponse{
		Records:  syncapp.ToSyncRecordResponses(records),
		Page:     req.Page,
		PageSize: filter.Limit(),
		HasMore:  len(records) == filter.Limit(),
	})
}

// ForgetRecord drops the ledger binding of a product so the next push creates
// a new platform product
// DELETE /api/v1/sync/:platform/products/:id
func (h *SyncHandler) ForgetRecord(c *gin.Context) {
	platform, ok := h.platformParam(c)
	if !ok {
		return
	}
	productID, ok := h.productParam(c)
	if !ok {
		return
	}
	if err := h.records.Forget(c.Request.Context(), productID, platform); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// platformParam parses :platform, answering 404 for an unknown code.
// Paths use lower case ("/sync/shopify/...").
func (h *SyncHandler) platformParam(c *gin.Context) (integration.PlatformCode, bool) {
	platform, err := integration.ParsePlatformCode(strings.ToUpper(c.Param("platform")))
	if err != nil {
		h.ErrorWithCode(c, dto.ErrCodePlatformUnsupported, err.Error())
		return "", false
	}
	return platform, true
}

// productParam parses :id as a canonical product id
func (h *SyncHandler) productParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return uuid.Nil, false
	}
	return id, true
}

// errorWithData answers like HandleError but keeps data in the body
func (h *SyncHandler) errorWithData(c *gin.Context, err error, data any) {
	_ = c.Error(err)
	code, message := errorCode(err)
	setRetryAfter(c, err)
	resp := dto.NewErrorResponseWithRequestID(code, message, getRequestID(c))
	resp.Data = data
	c.JSON(dto.GetHTTPStatus(code), resp)
}
