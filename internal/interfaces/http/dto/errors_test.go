package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/backend/internal/domain/integration"
)

func TestCodeForSyncKind(t *testing.T) {
	tests := []struct {
		kind       integration.ErrorKind
		wantCode   string
		wantStatus int
	}{
		{integration.KindValidation, ErrCodeSyncValidation, http.StatusUnprocessableEntity},
		{integration.KindTransientNetwork, ErrCodePlatformUnavailable, http.StatusServiceUnavailable},
		{integration.KindRateLimited, ErrCodePlatformRateLimited, http.StatusTooManyRequests},
		{integration.KindAuthExpired, ErrCodePlatformAuth, http.StatusBadGateway},
		{integration.KindIdentityConflict, ErrCodeIdentityConflict, http.StatusConflict},
		{integration.KindPlatformUser, ErrCodePlatformRejected, http.StatusUnprocessableEntity},
		{integration.KindPartialStepFailure, ErrCodePartialPush, http.StatusBadGateway},
		{integration.KindInternal, ErrCodeInternal, http.StatusInternalServerError},
		{integration.ErrorKind("SOMETHING_NEW"), ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			code := CodeForSyncKind(tt.kind)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, GetHTTPStatus(code))
		})
	}
}

func TestErrorCodeHTTPStatus_CoversSyncCodes(t *testing.T) {
	for kind, code := range syncKindCodes {
		_, ok := ErrorCodeHTTPStatus[code]
		assert.True(t, ok, "kind %s maps to %s which has no status", kind, code)
	}
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus("ERR_FROM_THE_FUTURE"))
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := map[string]string{
		"NOT_FOUND":        ErrCodeNotFound,
		"ALREADY_EXISTS":   ErrCodeConflict,
		"INVALID_STATE":    ErrCodeInvalidState,
		"VALIDATION_ERROR": ErrCodeValidation,
		ErrCodePartialPush: ErrCodePartialPush,
		"SHOPIFY_THROTTLE": "SHOPIFY_THROTTLE",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeErrorCode(in), in)
	}
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID("NOT_FOUND", "Product not found", "req-42")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "req-42", resp.Error.RequestID)
	assert.NotZero(t, resp.Error.Timestamp)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"data"`)
	assert.NotContains(t, string(raw), `"details"`)
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "", []ValidationDetail{
		{Field: "store_id", Message: "This field is required"},
	})

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Empty(t, resp.Error.RequestID)
	assert.Equal(t, []ValidationDetail{{Field: "store_id", Message: "This field is required"}}, resp.Error.Details)
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		pageSize  int
		wantPages int
		wantSize  int
	}{
		{"exact pages", 100, 10, 10, 10},
		{"partial last page", 101, 10, 11, 10},
		{"empty", 0, 10, 0, 10},
		{"single short page", 9, 10, 1, 10},
		{"default page size", 100, 0, 5, 20},
		{"negative page size", 100, -1, 5, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewSuccessResponseWithMeta([]string{}, tt.total, 2, tt.pageSize)
			assert.True(t, resp.Success)
			assert.Nil(t, resp.Error)
			require.NotNil(t, resp.Meta)
			assert.Equal(t, 2, resp.Meta.Page)
			assert.Equal(t, tt.wantPages, resp.Meta.TotalPages)
			assert.Equal(t, tt.wantSize, resp.Meta.PageSize)
		})
	}
}
