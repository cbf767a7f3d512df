package integration

import (
	"errors"
	"time"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Sync Record DTOs
// ---------------------------------------------------------------------------

// SyncRecordResponse represents a sync record in API responses
type SyncRecordResponse struct {
	CanonicalID         uuid.UUID                `json:"canonical_id"`
	Platform            integration.PlatformCode `json:"platform"`
	PlatformDisplayName string                   `json:"platform_display_name"`
	StoreID             string                   `json:"store_id,omitempty"`
	ExternalID          string                   `json:"external_id,omitempty"`
	Status              integration.SyncStatus   `json:"status"`
	LastStep            string                   `json:"last_step"`
	FailedMedia         []string                 `json:"failed_media,omitempty"`
	LastSyncedAt        *time.Time               `json:"last_synced_at,omitempty"`
	LastError           string                   `json:"last_error,omitempty"`
	LastErrorKind       integration.ErrorKind    `json:"last_error_kind,omitempty"`
	Attempts            int                      `json:"attempts"`
	UpdatedAt           time.Time                `json:"updated_at"`
}

// ToSyncRecordResponse converts a domain record to its response form
func ToSyncRecordResponse(r integration.SyncRecord) SyncRecordResponse {
	return SyncRecordResponse{
		CanonicalID:         r.CanonicalID,
		Platform:            r.Platform,
		PlatformDisplayName: r.Platform.DisplayName(),
		StoreID:             r.StoreID,
		ExternalID:          r.ExternalID,
		Status:              r.Status,
		LastStep:            r.Checkpoint.Step.String(),
		FailedMedia:         r.Checkpoint.FailedMedia,
		LastSyncedAt:        r.LastSyncedAt,
		LastError:           r.LastError,
		LastErrorKind:       r.LastErrorKind,
		Attempts:            r.Attempts,
		UpdatedAt:           r.UpdatedAt,
	}
}

// ToSyncRecordResponses converts a list of records
func ToSyncRecordResponses(records []integration.SyncRecord) []SyncRecordResponse {
	out := make([]SyncRecordResponse, len(records))
	for i, r := range records {
		out[i] = ToSyncRecordResponse(r)
	}
	return out
}

// ---------------------------------------------------------------------------
// Push DTOs
// ---------------------------------------------------------------------------

// PushProductRequest asks for one product to be pushed
type PushProductRequest struct {
	StoreID string `json:"store_id" binding:"required,store_id"`
}

// BulkPushRequest asks for many products to be pushed
type BulkPushRequest struct {
	StoreID          string      `json:"store_id" binding:"required,store_id"`
	ProductIDs       []uuid.UUID `json:"product_ids" binding:"required,min=1,max=1000"`
	ConcurrencyLimit int         `json:"concurrency_limit" binding:"omitempty,min=1,max=64"`
}

// PullProductRequest asks for a synced product to be refreshed from its platform
type PullProductRequest struct {
	StoreID string `json:"store_id" binding:"required,store_id"`
}

// ImportProductRequest asks for a platform product to be imported
type ImportProductRequest struct {
	StoreID    string `json:"store_id" binding:"required,store_id"`
	ExternalID string `json:"external_id" binding:"required"`
}

// PushOutcomeResponse is the result of one push
type PushOutcomeResponse struct {
	CanonicalID uuid.UUID                `json:"canonical_id"`
	Platform    integration.PlatformCode `json:"platform"`
	Operation   integration.Operation    `json:"operation,omitempty"`
	ExternalID  string                   `json:"external_id,omitempty"`
	Status      integration.SyncStatus   `json:"status,omitempty"`
	LastStep    string                   `json:"last_step"`
	Partial     bool                     `json:"partial"`
	FailedMedia []string                 `json:"failed_media,omitempty"`
	DurationMs  int64                    `json:"duration_ms"`
	Error       *SyncErrorResponse       `json:"error,omitempty"`
}

// ToPushOutcomeResponse converts an outcome and its error
func ToPushOutcomeResponse(o PushOutcome, err error) PushOutcomeResponse {
	resp := PushOutcomeResponse{
		CanonicalID: o.CanonicalID,
		Platform:    o.Platform,
		Operation:   o.Operation,
		ExternalID:  o.ExternalID,
		Status:      o.Status,
		LastStep:    o.LastStep.String(),
		Partial:     o.Partial,
		FailedMedia: o.FailedMedia,
		DurationMs:  o.Duration.Milliseconds(),
	}
	if err != nil {
		e := ToSyncErrorResponse(err)
		resp.Error = &e
	}
	return resp
}

// SyncErrorResponse is a classified error
type SyncErrorResponse struct {
	Kind       integration.ErrorKind    `json:"kind"`
	RootKind   integration.ErrorKind    `json:"root_kind,omitempty"`
	Step       string                   `json:"step,omitempty"`
	Message    string                   `json:"message"`
	Retryable  bool                     `json:"retryable"`
	RetryAfter float64                  `json:"retry_after_seconds,omitempty"`
	Fields     []integration.FieldError `json:"fields,omitempty"`
}

// ToSyncErrorResponse classifies err for API output
func ToSyncErrorResponse(err error) SyncErrorResponse {
	kind := integration.KindOf(err)
	resp := SyncErrorResponse{
		Kind:       kind,
		Message:    err.Error(),
		Retryable:  kind.Retryable(),
		RetryAfter: integration.RetryAfterOf(err).Seconds(),
	}
	if root := integration.RootKind(err); root != kind {
		resp.RootKind = root
	}
	var se *integration.SyncError
	if errors.As(err, &se) {
		if se.Step != integration.PushStateNone {
			resp.Step = se.Step.String()
		}
		resp.Fields = se.Fields
	}
	return resp
}

// BulkPushResponse summarizes a bulk push
type BulkPushResponse struct {
	Platform   integration.PlatformCode        `json:"platform"`
	StoreID    string                          `json:"store_id"`
	Total      int                             `json:"total"`
	Succeeded  []uuid.UUID                     `json:"succeeded"`
	Partial    []uuid.UUID                     `json:"partial,omitempty"`
	Failed     map[uuid.UUID]SyncErrorResponse `json:"failed"`
	DurationMs int64                           `json:"duration_ms"`
}

// ToBulkPushResponse converts a bulk result
func ToBulkPushResponse(r BulkResult) BulkPushResponse {
	failed := make(map[uuid.UUID]SyncErrorResponse, len(r.Failed))
	for id, err := range r.Failed {
		failed[id] = ToSyncErrorResponse(err)
	}
	succeeded := r.Succeeded
	if succeeded == nil {
		succeeded = []uuid.UUID{}
	}
	return BulkPushResponse{
		Platform:   r.Platform,
		StoreID:    r.StoreID,
		Total:      r.Total,
		Succeeded:  succeeded,
		Partial:    r.Partial,
		Failed:     failed,
		DurationMs: r.Duration.Milliseconds(),
	}
}
