package tracing

import (
	"context"
	"errors"
	"testing"

	"nocs-settlement/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newRecordingService() (*Service, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return NewService(tp, "test-service"), recorder
}

func TestNewService_NilProviderUsesGlobal(t *testing.T) {
	service := NewService(nil, "test-service")
	assert.NotNil(t, service.tracer)
}

func TestService_StartSpan_RecordsAttributesAndError(t *testing.T) {
	service, recorder := newRecordingService()

	ctx, span := service.StartSpan(context.Background(), "nocs.settle")
	AddSpanAttributes(span, map[string]string{"nocs.transaction_id": "tc01-txn-1"})
	RecordError(span, errors.New("connection refused"))
	assert.NotEmpty(t, ExtractTraceID(ctx))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "nocs.settle", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("nocs.transaction_id", "tc01-txn-1"))
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "connection refused", ended[0].Status().Description)
}

func TestRecordError_NilIsNoop(t *testing.T) {
	service, recorder := newRecordingService()

	_, span := service.StartSpan(context.Background(), "ok")
	RecordError(span, nil)
	span.End()

	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, codes.Unset, recorder.Ended()[0].Status().Code)
}

func TestExtractTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, ExtractTraceID(context.Background()))

	_, span := noop.NewTracerProvider().Tracer("t").Start(context.Background(), "s")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, shutdown := NewTracerProvider(config.TracingConfig{Enabled: false}, zap.NewNop())

	_, ok := tp.(noop.TracerProvider)
	assert.True(t, ok)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewTracerProvider_EnabledExportsToLog(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tp, shutdown := NewTracerProvider(config.TracingConfig{Enabled: true, SampleRate: 1, ServiceName: "nocs-test"}, zap.New(core))
	defer func() { _ = shutdown(context.Background()) }()

	_, span := NewService(tp, "nocs-test").StartSpan(context.Background(), "scenario.TC_01")
	span.End()

	entries := logs.FilterMessage("span finished").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "scenario.TC_01", entries[0].ContextMap()["span"])
}
