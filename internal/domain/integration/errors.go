package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/catalogsync/backend/internal/domain/catalog"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// ErrorKind classifies a sync failure and decides how it is handled
type ErrorKind string

const (
	// KindValidation is malformed canonical or platform data. Not retried.
	KindValidation ErrorKind = "VALIDATION_ERROR"
	// KindTransientNetwork is a connection failure or timeout. Retried with backoff.
	KindTransientNetwork ErrorKind = "TRANSIENT_NETWORK_ERROR"
	// KindRateLimited is a platform throttle. Retried honoring RetryAfter.
	KindRateLimited ErrorKind = "RATE_LIMITED"
	// KindAuthExpired means credentials were rejected. Surfaced for re-authentication.
	KindAuthExpired ErrorKind = "AUTH_EXPIRED"
	// KindIdentityConflict is an external id mismatch. Never auto-resolved.
	KindIdentityConflict ErrorKind = "IDENTITY_CONFLICT"
	// KindPlatformUser is a business-rule rejection reported by the platform.
	KindPlatformUser ErrorKind = "PLATFORM_USER_ERROR"
	// KindPartialStepFailure is a push step that failed after its retry budget.
	KindPartialStepFailure ErrorKind = "PARTIAL_STEP_FAILURE"
	// KindInternal covers anything unclassified.
	KindInternal ErrorKind = "INTERNAL_ERROR"
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	return string(k)
}

// Retryable reports whether the kind is recovered locally with backoff
func (k ErrorKind) Retryable() bool {
	return k == KindTransientNetwork || k == KindRateLimited
}

// Sentinels matched by errors.Is against any SyncError of the same kind.
var (
	ErrValidation         = errors.New("integration: validation error")
	ErrTransientNetwork   = errors.New("integration: transient network error")
	ErrRateLimited        = errors.New("integration: rate limited")
	ErrAuthExpired        = errors.New("integration: authentication expired")
	ErrIdentityConflict   = errors.New("integration: identity conflict")
	ErrPlatformUser       = errors.New("integration: platform rejected request")
	ErrPartialStepFailure = errors.New("integration: push step failed")

	// ErrUnmappedStatus is wrapped by status conversions that meet an unknown token
	ErrUnmappedStatus = errors.New("integration: unmapped status")
	// ErrMalformedRecord is wrapped when a platform record lacks required fields
	ErrMalformedRecord = errors.New("integration: malformed platform record")
)

var kindSentinels = map[ErrorKind]error{
	KindValidation:         ErrValidation,
	KindTransientNetwork:   ErrTransientNetwork,
	KindRateLimited:        ErrRateLimited,
	KindAuthExpired:        ErrAuthExpired,
	KindIdentityConflict:   ErrIdentityConflict,
	KindPlatformUser:       ErrPlatformUser,
	KindPartialStepFailure: ErrPartialStepFailure,
}

// FieldError is one field-level rejection reported by a platform, kept verbatim
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// SyncError is the single error type crossing component boundaries
type SyncError struct {
	// Kind decides retry and surfacing behavior
	Kind ErrorKind
	// Op names the failing operation, e.g. "shopify.productCreate"
	Op string
	// Step is set for orchestrator step failures
	Step PushState
	// RetryAfter is the platform's hint for RateLimited, zero if absent
	RetryAfter time.Duration
	// Fields carries verbatim platform field errors for PlatformUser
	Fields []FieldError
	// Err is the underlying cause
	Err error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Op != "" {
		b.WriteString(" [")
		b.WriteString(e.Op)
		b.WriteString("]")
	}
	if e.Step != "" {
		b.WriteString(" at step ")
		b.WriteString(string(e.Step))
	}
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			if f.Field != "" {
				parts = append(parts, f.Field+": "+f.Message)
			} else {
				parts = append(parts, f.Message)
			}
		}
		b.WriteString(": ")
		b.WriteString(strings.Join(parts, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the cause
func (e *SyncError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinel
func (e *SyncError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// NewValidationError wraps err as a ValidationError
func NewValidationError(op string, err error) *SyncError {
	return &SyncError{Kind: KindValidation, Op: op, Err: err}
}

// NewMalformedRecord reports a platform record missing required data
func NewMalformedRecord(platform PlatformCode, format string, args ...any) *SyncError {
	return &SyncError{
		Kind: KindValidation,
		Op:   strings.ToLower(platform.String()) + ".fromPlatform",
		Err:  fmt.Errorf("%w: %s", ErrMalformedRecord, fmt.Sprintf(format, args...)),
	}
}

// NewUnmappedStatus reports a status token with no canonical equivalent
func NewUnmappedStatus(platform PlatformCode, value string) *SyncError {
	return &SyncError{
		Kind: KindValidation,
		Op:   strings.ToLower(platform.String()) + ".status",
		Err:  fmt.Errorf("%w: %q", ErrUnmappedStatus, value),
	}
}

// NewTransientError wraps a connection level failure
func NewTransientError(op string, err error) *SyncError {
	return &SyncError{Kind: KindTransientNetwork, Op: op, Err: err}
}

// NewRateLimitedError reports a throttled request with an optional hint
func NewRateLimitedError(op string, retryAfter time.Duration, err error) *SyncError {
	return &SyncError{Kind: KindRateLimited, Op: op, RetryAfter: retryAfter, Err: err}
}

// NewAuthExpiredError reports rejected credentials
func NewAuthExpiredError(op string, err error) *SyncError {
	return &SyncError{Kind: KindAuthExpired, Op: op, Err: err}
}

// NewIdentityConflict reports an attempt to replace an immutable external id
func NewIdentityConflict(key RecordKey, existing, proposed string) *SyncError {
	return &SyncError{
		Kind: KindIdentityConflict,
		Op:   "ledger.commit",
		Err:  fmt.Errorf("%s already bound to external id %q, refusing %q", key, existing, proposed),
	}
}

// NewPlatformUserError reports platform field errors verbatim
func NewPlatformUserError(op string, fields []FieldError) *SyncError {
	return &SyncError{Kind: KindPlatformUser, Op: op, Fields: fields}
}

// NewPartialStepFailure wraps the error that stopped a push pipeline
func NewPartialStepFailure(step PushState, err error) *SyncError {
	return &SyncError{Kind: KindPartialStepFailure, Op: "push", Step: step, Err: err}
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

// KindOf classifies any error into the taxonomy.
// The outermost SyncError wins; known causes are mapped otherwise.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, catalog.ErrInvalidProduct):
		return KindValidation
	case errors.Is(err, context.DeadlineExceeded):
		return KindTransientNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransientNetwork
	}
	return KindInternal
}

// RootKind returns the kind of the innermost SyncError, so a step failure can
// still be reported by what actually went wrong.
func RootKind(err error) ErrorKind {
	kind := KindOf(err)
	for err != nil {
		var se *SyncError
		if !errors.As(err, &se) {
			break
		}
		kind = se.Kind
		err = se.Err
	}
	return kind
}

// RetryAfterOf returns the first rate-limit hint found along the error chain
func RetryAfterOf(err error) time.Duration {
	for err != nil {
		var se *SyncError
		if !errors.As(err, &se) {
			return 0
		}
		if se.RetryAfter > 0 {
			return se.RetryAfter
		}
		err = se.Err
	}
	return 0
}
