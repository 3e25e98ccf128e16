package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	configpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/config"
	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
)

func stubExporterFactory(t *testing.T, exp sdktrace.SpanExporter, err error) *int {
	t.Helper()
	calls := 0
	prev := otlpExporterFactory
	otlpExporterFactory = func(ctx context.Context, opts ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
		calls++
		return exp, err
	}
	t.Cleanup(func() { otlpExporterFactory = prev })
	return &calls
}

func TestNewTracerProviderWithoutEndpoint(t *testing.T) {
	calls := stubExporterFactory(t, nil, errors.New("should not be called"))

	conf := configpkg.Default()
	conf.OTLPEndpoint = ""

	tp, err := NewTracerProvider(context.Background(), conf, loggingpkg.Nop())
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.SpanContext().IsSampled())
	assert.Zero(t, *calls)
}

func TestNewTracerProviderExportsToEndpoint(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	calls := stubExporterFactory(t, exporter, nil)

	conf := configpkg.Default()
	conf.ServiceName = "workerservice"
	conf.OTLPEndpoint = "http://localhost:4317"

	tp, err := NewTracerProvider(context.Background(), conf, loggingpkg.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	name, ok := spans[0].Resource.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "workerservice", name.AsString())

	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewTracerProviderExporterError(t *testing.T) {
	stubExporterFactory(t, nil, errors.New("dial failed"))

	conf := configpkg.Default()
	conf.OTLPEndpoint = "collector:4317"

	_, err := NewTracerProvider(context.Background(), conf, loggingpkg.Nop())
	assert.ErrorContains(t, err, "dial failed")
}
