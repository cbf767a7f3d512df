package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/infrastructure/telemetry"
)

func setupTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetricByName(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func attrValue(set attribute.Set, key attribute.Key) (attribute.Value, bool) {
	return set.Value(key)
}

func metricsRouter(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handler)
	router.GET("/api/v1/sync/:platform/records", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"records": []string{}})
	})
	router.POST("/api/v1/sync/:platform/push", func(c *gin.Context) {
		c.JSON(http.StatusMultiStatus, gin.H{"partial": true})
	})
	return router
}

func TestHTTPMetrics_Disabled(t *testing.T) {
	router := metricsRouter(HTTPMetrics(HTTPMetricsConfig{Enabled: false}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync/shopify/records", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetrics_NilMeterProvider(t *testing.T) {
	router := metricsRouter(HTTPMetrics(HTTPMetricsConfig{Enabled: true}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync/shopify/records", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetrics_WithTelemetryProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader, zap.NewNop())
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	router := metricsRouter(HTTPMetrics(HTTPMetricsConfig{MeterProvider: mp, Enabled: true}))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync/shopify/records", nil))
	require.Equal(t, http.StatusOK, w.Code)

	rm := collectMetrics(t, reader)
	assert.NotNil(t, findMetricByName(rm, "http_server_request_total"))
	assert.NotNil(t, findMetricByName(rm, "http_server_request_duration_seconds"))
}

func TestHTTPMetricsWithMeter_RequestCounterAttributes(t *testing.T) {
	mp, reader := setupTestMeter(t)
	router := metricsRouter(HTTPMetricsWithMeter(mp.Meter("http.server"), true))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync/woocommerce/records", nil))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync/shopify/push", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusMultiStatus, w.Code)

	rm := collectMetrics(t, reader)
	m := findMetricByName(rm, "http_server_request_total")
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 2)

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		route, ok := attrValue(dp.Attributes, telemetry.AttrHTTPRoute)
		require.True(t, ok)
		status, ok := attrValue(dp.Attributes, telemetry.AttrHTTPStatus)
		require.True(t, ok)
		counts[route.AsString()] = dp.Value
		if route.AsString() == "/api/v1/sync/:platform/push" {
			assert.Equal(t, int64(http.StatusMultiStatus), status.AsInt64())
		}
	}
	assert.Equal(t, int64(3), counts["/api/v1/sync/:platform/records"])
	assert.Equal(t, int64(1), counts["/api/v1/sync/:platform/push"])
}

func TestHTTPMetricsWithMeter_Sizes(t *testing.T) {
	mp, reader := setupTestMeter(t)
	router := metricsRouter(HTTPMetricsWithMeter(mp.Meter("http.server"), true))

	body := `{"store_id":"shop-1","product_ids":["3f5d2c8a-9b1e-4c7d-a2f6-0e4b8c1d9a37"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/shopify/push", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	rm := collectMetrics(t, reader)
	reqSize := findMetricByName(rm, "http_server_request_size_bytes")
	require.NotNil(t, reqSize)
	hist, ok := reqSize.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, float64(len(body)), hist.DataPoints[0].Sum)

	platform, ok := attrValue(hist.DataPoints[0].Attributes, telemetry.AttrPlatform)
	require.True(t, ok)
	assert.Equal(t, "SHOPIFY", platform.AsString())
}

func TestHTTPMetricsWithMeter_SyncAttributes(t *testing.T) {
	mp, reader := setupTestMeter(t)
	router := metricsRouter(HTTPMetricsWithMeter(mp.Meter("http.server"), true))
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/v1/sync/shopify/records", "/api/v1/sync/etsy/records", "/healthz"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync/woocommerce/push", strings.NewReader(`{}`)))

	rm := collectMetrics(t, reader)
	total := findMetricByName(rm, "http_server_request_total")
	require.NotNil(t, total)
	platforms := map[string]int64{}
	for _, dp := range total.Data.(metricdata.Sum[int64]).DataPoints {
		label := "-"
		if v, ok := attrValue(dp.Attributes, telemetry.AttrPlatform); ok {
			label = v.AsString()
		}
		platforms[label] += dp.Value
	}
	assert.Equal(t, map[string]int64{"SHOPIFY": 1, "unknown": 1, "WOOCOMMERCE": 1, "-": 1}, platforms)

	duration := findMetricByName(rm, "http_server_request_duration_seconds")
	require.NotNil(t, duration)
	classes := map[string]bool{}
	for _, dp := range duration.Data.(metricdata.Histogram[float64]).DataPoints {
		_, hasStatus := attrValue(dp.Attributes, telemetry.AttrHTTPStatus)
		assert.False(t, hasStatus)
		class, ok := attrValue(dp.Attributes, telemetry.AttrHTTPStatusClass)
		require.True(t, ok)
		classes[class.AsString()] = true
	}
	assert.True(t, classes["2xx"])

	partial := findMetricByName(rm, "sync_http_partial_responses_total")
	require.NotNil(t, partial)
	points := partial.Data.(metricdata.Sum[int64]).DataPoints
	require.Len(t, points, 1)
	assert.Equal(t, int64(1), points[0].Value)
	platform, _ := attrValue(points[0].Attributes, telemetry.AttrPlatform)
	assert.Equal(t, "WOOCOMMERCE", platform.AsString())
}

func TestHTTPMetricsWithMeter_ActiveRequestsSettle(t *testing.T) {
	mp, reader := setupTestMeter(t)
	router := metricsRouter(HTTPMetricsWithMeter(mp.Meter("http.server"), true))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync/shopify/records", nil))

	rm := collectMetrics(t, reader)
	m := findMetricByName(rm, "http_server_active_requests")
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range sum.DataPoints {
		assert.Equal(t, int64(0), dp.Value)
	}
}

func TestHTTPMetricsWithMeter_UnmatchedRoute(t *testing.T) {
	mp, reader := setupTestMeter(t)
	router := metricsRouter(HTTPMetricsWithMeter(mp.Meter("http.server"), true))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	rm := collectMetrics(t, reader)
	m := findMetricByName(rm, "http_server_request_total")
	require.NotNil(t, m)
	sum := m.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	route, _ := attrValue(sum.DataPoints[0].Attributes, telemetry.AttrHTTPRoute)
	assert.Equal(t, "unknown", route.AsString())
}

func TestHTTPMetricsWithMeter_Disabled(t *testing.T) {
	mp, reader := setupTestMeter(t)
	router := metricsRouter(HTTPMetricsWithMeter(mp.Meter("http.server"), false))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sync/shopify/records", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	rm := collectMetrics(t, reader)
	assert.Nil(t, findMetricByName(rm, "http_server_request_total"))
}

func TestHTTPMetricsStatusGroup(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		207: "2xx",
		304: "3xx",
		422: "4xx",
		429: "4xx",
		503: "5xx",
		100: "other",
	}
	for code, want := range tests {
		assert.Equal(t, want, HTTPMetricsStatusGroup(code), code)
	}
}
