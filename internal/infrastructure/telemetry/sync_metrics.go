package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SyncMetrics counts pushes, pipeline steps and outbound platform calls.
// A nil *SyncMetrics records nothing.
type SyncMetrics struct {
	pushTotal     *Counter
	pushDuration  *Histogram
	stepTotal     *Counter
	callTotal     *Counter
	callDuration  *Histogram
	throttleTotal *Counter
}

// NewSyncMetrics registers the sync instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	var (
		m   SyncMetrics
		err error
	)
	if m.pushTotal, err = NewCounter(meter, "catalogsync_push_total",
		"Product pushes by platform, operation and result", "{pushes}"); err != nil {
		return nil, err
	}
	if m.pushDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "catalogsync_push_duration_seconds",
		Description: "Wall time of one product push",
		Unit:        "s",
		Boundaries:  PushDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.stepTotal, err = NewCounter(meter, "catalogsync_push_step_total",
		"Multi-step pipeline steps by outcome", "{steps}"); err != nil {
		return nil, err
	}
	if m.callTotal, err = NewCounter(meter, "catalogsync_platform_call_total",
		"Outbound platform requests by status", "{requests}"); err != nil {
		return nil, err
	}
	if m.callDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "catalogsync_platform_call_duration_seconds",
		Description: "Outbound platform request latency",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.throttleTotal, err = NewCounter(meter, "catalogsync_platform_throttled_total",
		"Requests rejected by platform rate limits", "{requests}"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordPush records one finished push
func (m *SyncMetrics) RecordPush(ctx context.Context, platform, operation, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.pushTotal.Inc(ctx, AttrPlatform.String(platform), AttrOperation.String(operation), AttrResult.String(result))
	m.pushDuration.RecordDuration(ctx, d, AttrPlatform.String(platform), AttrOperation.String(operation))
}

// RecordStep records one pipeline step
func (m *SyncMetrics) RecordStep(ctx context.Context, platform, step string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.stepTotal.Inc(ctx, AttrPlatform.String(platform), AttrStep.String(step), AttrResult.String(result))
}

// RecordCall records one outbound HTTP request; status is 0 for transport failures
func (m *SyncMetrics) RecordCall(ctx context.Context, platform, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.callTotal.Inc(ctx, AttrPlatform.String(platform), AttrHTTPMethod.String(method), AttrHTTPStatus.Int(status))
	m.callDuration.RecordDuration(ctx, d, AttrPlatform.String(platform), AttrHTTPMethod.String(method))
	if status == 429 {
		m.throttleTotal.Inc(ctx, AttrPlatform.String(platform))
	}
}

// RecordThrottle records a throttle signalled in a response body
func (m *SyncMetrics) RecordThrottle(ctx context.Context, platform string) {
	if m == nil {
		return
	}
	m.throttleTotal.Inc(ctx, AttrPlatform.String(platform))
}
