package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), MetricsConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("x"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestSyncMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := NewMeterProviderWithReader(reader, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewSyncMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordPush(ctx, "SHOPIFY", "CREATE", "ok", 2*time.Second)
	m.RecordPush(ctx, "SHOPIFY", "UPDATE", "RATE_LIMITED", time.Second)
	m.RecordStep(ctx, "SHOPIFY", "CREATED", true)
	m.RecordStep(ctx, "SHOPIFY", "INVENTORY_SET", false)
	m.RecordCall(ctx, "WOOCOMMERCE", "POST", 429, 10*time.Millisecond)
	m.RecordThrottle(ctx, "SHOPIFY")

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["catalogsync_push_total"]))
	assert.Equal(t, int64(2), sumOf(t, got["catalogsync_push_step_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["catalogsync_platform_call_total"]))
	assert.Equal(t, int64(2), sumOf(t, got["catalogsync_platform_throttled_total"]))

	hist, ok := got["catalogsync_push_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}

func TestSyncMetrics_NilIsNoop(t *testing.T) {
	var m *SyncMetrics
	assert.NotPanics(t, func() {
		m.RecordPush(context.Background(), "SHOPIFY", "CREATE", "ok", time.Second)
		m.RecordStep(context.Background(), "SHOPIFY", "CREATED", true)
		m.RecordCall(context.Background(), "SHOPIFY", "POST", 200, time.Second)
		m.RecordThrottle(context.Background(), "SHOPIFY")
	})
}

func TestNewSyncMetrics_NilMeter(t *testing.T) {
	_, err := NewSyncMetrics(nil)
	assert.ErrorIs(t, err, ErrMeterNil)
}
