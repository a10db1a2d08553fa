package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "cctvdash", cfg.ServiceName)
}

func TestInit_Disabled(t *testing.T) {
	tp, err := Init(Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestSpans_RecordedWithProvider(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	defer otel.SetTracerProvider(prev)

	ctx, span := TraceBackendRequest(context.Background(), "GET", "employees")
	AddSpanAttributes(ctx, AttemptKey.Int(2))
	RecordError(ctx, errors.New("timeout"))
	assert.NotEmpty(t, TraceID(ctx))
	span.End()

	_, push := TracePushMessage(context.Background(), "inbound", "camera_frame")
	push.End()

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "backend.employees", ended[0].Name())
	assert.Equal(t, "push.inbound.camera_frame", ended[1].Name())
	assert.Len(t, ended[0].Events(), 1)
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Equal(t, "", TraceID(context.Background()))
}
