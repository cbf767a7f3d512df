package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum accepted platform response size (10MB)
const maxResponseSize = 10 * 1024 * 1024

// ErrUnexpectedStatus wraps HTTP statuses that carry no platform error body
var ErrUnexpectedStatus = errors.New("ecommerce: unexpected HTTP status")

// ClientOptions configures the HTTP layer shared by all platform clients
type ClientOptions struct {
	// HTTPClient overrides the default client, mainly for tests
	HTTPClient *http.Client
	// Metrics records per-call counters, may be nil
	Metrics *telemetry.SyncMetrics
	// UserAgent is sent with every request
	UserAgent string
}

// transport paces, executes and classifies platform HTTP calls
type transport struct {
	platform   integration.PlatformCode
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *telemetry.SyncMetrics
	userAgent  string
}

func newTransport(platform integration.PlatformCode, requestsPerSecond float64, burst int, timeout time.Duration, opts ClientOptions) *transport {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "catalogsync/1.0"
	}
	return &transport{
		platform:   platform,
		httpClient: client,
		limiter:    rate.NewLimiter(limit, burst),
		metrics:    opts.Metrics,
		userAgent:  ua,
	}
}

// response is a fully read platform response
type response struct {
	Status int
	Header http.Header
	Body   []byte
}

// do sends req and classifies transport failures, throttling, rejected
// credentials and server errors. Other statuses are returned for the caller
// to interpret.
func (t *transport) do(ctx context.Context, op string, req *http.Request) (*response, error) {
	ctx, span := telemetry.StartSpan(ctx, op,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, t.platform.String()),
		telemetry.WithAttribute("http.request.method", req.Method),
	)
	defer span.End()

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, integration.NewTransientError(op, err)
	}

	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.metrics.RecordCall(ctx, t.platform.String(), op, 0, time.Since(started))
		telemetry.RecordError(span, err)
		return nil, integration.NewTransientError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	t.metrics.RecordCall(ctx, t.platform.String(), op, resp.StatusCode, time.Since(started))
	telemetry.SetAttributes(span, "http.response.status_code", resp.StatusCode)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, integration.NewTransientError(op, fmt.Errorf("read response: %w", err))
	}

	out := &response{Status: resp.StatusCode, Header: resp.Header, Body: body}
	var classified error
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		classified = integration.NewRateLimitedError(op,
			parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		classified = integration.NewAuthExpiredError(op, fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, resp.StatusCode))
	case resp.StatusCode >= 500:
		classified = integration.NewTransientError(op, fmt.Errorf("%w: HTTP %d: %s", ErrUnexpectedStatus, resp.StatusCode, snippet(body)))
	}
	if classified != nil {
		telemetry.RecordError(span, classified)
		return out, classified
	}
	return out, nil
}

// newJSONRequest builds a request with a JSON body, or none when body is nil
func newJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// parseRetryAfter reads delta-seconds or an HTTP date; zero when absent or invalid
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// snippet trims a body for error messages
func snippet(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// decodeJSON unmarshals a platform body, classifying garbage as malformed
func decodeJSON(platform integration.PlatformCode, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return integration.NewMalformedRecord(platform, "invalid JSON response: %v", err)
	}
	return nil
}
