package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), nil)
	require.NoError(t, err)

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NotNil(t, tel.LoggerProvider())
	assert.False(t, tel.IsEnabled())

	health := tel.Health()
	assert.True(t, health.Healthy)
	assert.False(t, health.Degraded)
	assert.Empty(t, health.Problems)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""

	tel, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Health().Degraded)
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
}

func TestTelemetry_Shutdown(t *testing.T) {
	tel, err := New(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tel.Shutdown(ctx))
	assert.False(t, tel.Health().Healthy)
}

func TestTelemetry_SetDegraded(t *testing.T) {
	tel, err := New(context.Background(), nil)
	require.NoError(t, err)

	tel.setDegraded("meter provider: %s", "boom")
	health := tel.Health()
	assert.True(t, health.Degraded)
	assert.Equal(t, []string{"meter provider: boom"}, health.Problems)
}

func TestTestTelemetry_Spans(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	_, span := tt.Tracer("test").Start(ctx, "store.read")
	span.SetAttributes(attribute.String("resource", "definitions"), attribute.Int("count", 2))
	span.End()

	tt.AssertSpanExists(t, "store.read")
	tt.AssertSpanAttribute(t, "store.read", "resource", "definitions")
	tt.AssertSpanAttribute(t, "store.read", "count", int64(2))
	assert.Nil(t, tt.SpanByName("missing"))
	assert.True(t, tt.IsEnabled())
}

func TestTestTelemetry_CounterValue(t *testing.T) {
	tt := NewTestTelemetry()
	ctx := context.Background()

	counter, err := tt.Meter("test").Int64Counter("requests")
	require.NoError(t, err)
	counter.Add(ctx, 1, metricAttrs("ok"))
	counter.Add(ctx, 2, metricAttrs("ok"))
	counter.Add(ctx, 5, metricAttrs("error"))

	got, ok := tt.CounterValue(ctx, "requests", attribute.String("status", "ok"))
	require.True(t, ok)
	assert.Equal(t, int64(3), got)

	got, ok = tt.CounterValue(ctx, "requests")
	require.True(t, ok)
	assert.Equal(t, int64(8), got)

	_, ok = tt.CounterValue(ctx, "absent")
	assert.False(t, ok)
}

func metricAttrs(status string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("status", status))
}
