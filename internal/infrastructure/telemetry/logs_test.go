package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// memoryProcessor keeps emitted records
type memoryProcessor struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (p *memoryProcessor) OnEmit(_ context.Context, r *sdklog.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, r.Clone())
	return nil
}

func (p *memoryProcessor) Shutdown(context.Context) error   { return nil }
func (p *memoryProcessor) ForceFlush(context.Context) error { return nil }
func (p *memoryProcessor) Enabled(context.Context, sdklog.EnabledParameters) bool {
	return true
}

func (p *memoryProcessor) bodies() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.records))
	for _, r := range p.records {
		out = append(out, r.Body().AsString())
	}
	return out
}

func TestNewLoggerProvider_Disabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())

	base := zap.NewNop()
	assert.Same(t, base, lp.Bridge(base))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestLoggerProvider_Bridge(t *testing.T) {
	proc := &memoryProcessor{}
	lp := NewLoggerProviderWithProcessor(proc, LogsConfig{ServiceName: "test", Level: zapcore.WarnLevel}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })

	core, logs := observer.New(zapcore.DebugLevel)
	logger := lp.Bridge(zap.New(core))

	logger.Info("push completed")
	logger.Warn("retrying platform call")
	logger.Error("identity conflict")

	assert.Equal(t, 3, logs.Len(), "base core receives everything")
	assert.Equal(t, []string{"retrying platform call", "identity conflict"}, proc.bodies())
}
