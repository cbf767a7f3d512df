package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
)

// HTTPMetricsConfig holds configuration for HTTP metrics middleware.
type HTTPMetricsConfig struct {
	// MeterProvider is the OpenTelemetry meter provider.
	MeterProvider *telemetry.MeterProvider
	// Enabled controls whether metrics collection is active.
	Enabled bool
}

// httpMetrics holds the HTTP server instruments.
type httpMetrics struct {
	requestTotal    *telemetry.Counter
	requestDuration *telemetry.Histogram
	requestSize     *telemetry.Histogram
	partialTotal    *telemetry.Counter
	activeRequests  metric.Int64UpDownCounter
}

// sizeBuckets covers single pushes up to bulk bodies near the body limit
var sizeBuckets = []float64{100, 500, 1000, 5000, 20000, 100000, 500000, 1000000}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	requestTotal, err := telemetry.NewCounter(
		meter,
		"http_server_request_total",
		"Total number of HTTP requests",
		"{request}",
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency distribution in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	requestSize, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_size_bytes",
		Description: "Sync request body size distribution in bytes",
		Unit:        "By",
		Boundaries:  sizeBuckets,
	})
	if err != nil {
		return nil, err
	}

	partialTotal, err := telemetry.NewCounter(
		meter,
		"sync_http_partial_responses_total",
		"Sync requests answered with 207 because some products or media failed",
		"{response}",
	)
	if err != nil {
		return nil, err
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"http_server_active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &httpMetrics{
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestSize:     requestSize,
		partialTotal:    partialTotal,
		activeRequests:  activeRequests,
	}, nil
}

// HTTPMetrics returns a Gin middleware that records request count, latency,
// request body size, partial sync responses and in-flight requests. Routes are
// labelled by their pattern ("/api/v1/sync/:platform/push"), never by the raw
// path, and sync routes also carry the platform code.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"), true)
}

// HTTPMetricsWithMeter returns HTTP metrics middleware using an existing meter.
func HTTPMetricsWithMeter(meter metric.Meter, enabled bool) gin.HandlerFunc {
	if !enabled {
		return passThrough
	}
	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		return passThrough
	}
	return httpMetricsMiddleware(metrics)
}

func passThrough(c *gin.Context) {
	c.Next()
}

func httpMetricsMiddleware(metrics *httpMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		requestSize := getRequestSize(c)

		metrics.activeRequests.Add(ctx, 1)
		c.Next()
		metrics.activeRequests.Add(ctx, -1)

		attrs := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(getRoutePattern(c)),
		}
		if platform, ok := platformLabel(c); ok {
			attrs = append(attrs, telemetry.AttrPlatform.String(platform))
		}
		recordHTTPMetrics(ctx, metrics, attrs, c.Writer.Status(), time.Since(start), requestSize)
	}
}

func recordHTTPMetrics(
	ctx context.Context,
	metrics *httpMetrics,
	attrs []attribute.KeyValue,
	statusCode int,
	duration time.Duration,
	requestSize int64,
) {
	metrics.requestTotal.Inc(ctx, append(attrs, telemetry.AttrHTTPStatus.Int(statusCode))...)

	// the histograms carry the status class only
	metrics.requestDuration.RecordDuration(ctx, duration,
		append(attrs, telemetry.AttrHTTPStatusClass.String(HTTPMetricsStatusGroup(statusCode)))...)
	if requestSize > 0 {
		metrics.requestSize.Record(ctx, float64(requestSize), attrs...)
	}
	if statusCode == http.StatusMultiStatus {
		metrics.partialTotal.Inc(ctx, attrs...)
	}
}

// platformLabel returns the platform code named by the :platform route
// parameter. Unsupported values collapse to "unknown".
func platformLabel(c *gin.Context) (string, bool) {
	raw := c.Param("platform")
	if raw == "" {
		return "", false
	}
	code, err := integration.ParsePlatformCode(strings.ToUpper(raw))
	if err != nil {
		return "unknown", true
	}
	return code.String(), true
}

// getRoutePattern returns the matched route pattern, or "unknown" for
// requests that matched no route.
func getRoutePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

func getRequestSize(c *gin.Context) int64 {
	if cl := c.Request.ContentLength; cl > 0 {
		return cl
	}
	return 0
}

// HTTPMetricsStatusGroup buckets a status code into its class (2xx, 4xx...).
func HTTPMetricsStatusGroup(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "other"
	}
}
