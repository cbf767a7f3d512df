package dto

import (
	"net/http"

	"github.com/catalogsync/backend/internal/domain/integration"
)

// API error codes. Format: ERR_<CATEGORY>_<DESCRIPTION>.
const (
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"

	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeConflict     = "ERR_CONFLICT"
	ErrCodeInvalidState = "ERR_INVALID_STATE"
)

// Synchronization error codes. Every sync error kind has exactly one.
const (
	// ErrCodePlatformUnsupported: the platform is unknown or has no configured client
	ErrCodePlatformUnsupported = "ERR_PLATFORM_UNSUPPORTED"
	ErrCodeSyncValidation      = "ERR_SYNC_VALIDATION"
	ErrCodePlatformUnavailable = "ERR_PLATFORM_UNAVAILABLE"
	ErrCodePlatformRateLimited = "ERR_PLATFORM_RATE_LIMITED"
	ErrCodePlatformAuth        = "ERR_PLATFORM_AUTH"
	ErrCodeIdentityConflict    = "ERR_IDENTITY_CONFLICT"
	ErrCodePlatformRejected    = "ERR_PLATFORM_REJECTED"
	// ErrCodePartialPush: a multi-step push stopped after some steps landed
	ErrCodePartialPush = "ERR_PARTIAL_PUSH"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,

	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeConflict:     http.StatusConflict,
	ErrCodeInvalidState: http.StatusUnprocessableEntity,

	ErrCodePlatformUnsupported: http.StatusNotFound,
	ErrCodeSyncValidation:      http.StatusUnprocessableEntity,
	ErrCodePlatformUnavailable: http.StatusServiceUnavailable,
	ErrCodePlatformRateLimited: http.StatusTooManyRequests,
	ErrCodePlatformAuth:        http.StatusBadGateway,
	ErrCodeIdentityConflict:    http.StatusConflict,
	ErrCodePlatformRejected:    http.StatusUnprocessableEntity,
	ErrCodePartialPush:         http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status for an error code, 500 when unmapped
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

var syncKindCodes = map[integration.ErrorKind]string{
	integration.KindValidation:         ErrCodeSyncValidation,
	integration.KindTransientNetwork:   ErrCodePlatformUnavailable,
	integration.KindRateLimited:        ErrCodePlatformRateLimited,
	integration.KindAuthExpired:        ErrCodePlatformAuth,
	integration.KindIdentityConflict:   ErrCodeIdentityConflict,
	integration.KindPlatformUser:       ErrCodePlatformRejected,
	integration.KindPartialStepFailure: ErrCodePartialPush,
}

// CodeForSyncKind returns the API code of a sync error kind. Internal and
// unknown kinds report ERR_INTERNAL.
func CodeForSyncKind(kind integration.ErrorKind) string {
	if code, ok := syncKindCodes[kind]; ok {
		return code
	}
	return ErrCodeInternal
}

// domainCodes maps shared.DomainError codes to API codes
var domainCodes = map[string]string{
	"NOT_FOUND":        ErrCodeNotFound,
	"ALREADY_EXISTS":   ErrCodeConflict,
	"INVALID_INPUT":    ErrCodeInvalidInput,
	"INVALID_STATE":    ErrCodeInvalidState,
	"CONFLICT":         ErrCodeConflict,
	"VALIDATION_ERROR": ErrCodeValidation,
	"BAD_REQUEST":      ErrCodeBadRequest,
	"INTERNAL_ERROR":   ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to its API code. API codes
// and unknown codes pass through.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainCodes[code]; ok {
		return apiCode
	}
	return code
}
