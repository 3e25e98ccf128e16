package runtime

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	configpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/config"
	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
)

// instrumentationName identifies spans created by this module.
const instrumentationName = "github.com/Depechie/2024-portotechhub-aspireotel"

var otlpExporterFactory = func(ctx context.Context, opts ...otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
	return otlptracegrpc.New(ctx, opts...)
}

// NewTracerProvider builds a tracer provider owned by the caller. Spans are
// exported over OTLP/gRPC when an endpoint is configured; otherwise they are
// sampled and dropped, which still yields valid span contexts to propagate.
func NewTracerProvider(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger) (*sdktrace.TracerProvider, error) {
	res := resource.NewSchemaless(attribute.String("service.name", conf.ServiceName))

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	}

	if conf.OTLPEndpoint != "" {
		exporterOpts := []otlptracegrpc.Option{endpointOption(conf.OTLPEndpoint)}
		if conf.OTLPInsecure {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlpExporterFactory(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		log.Info("Exporting spans over OTLP", loggingpkg.LogFields{"endpoint": conf.OTLPEndpoint})
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

func endpointOption(endpoint string) otlptracegrpc.Option {
	if strings.Contains(endpoint, "://") {
		return otlptracegrpc.WithEndpointURL(endpoint)
	}
	return otlptracegrpc.WithEndpoint(endpoint)
}

// spanName renders "<Queue> <operation>", e.g. "Orders publish".
func spanName(queue, operation string) string {
	if queue == "" {
		return operation
	}
	r, size := utf8.DecodeRuneInString(queue)
	return string(unicode.ToUpper(r)) + queue[size:] + " " + operation
}

// messagingSystem maps a transport name onto the messaging.system attribute value.
func messagingSystem(transportName string) string {
	switch transportName {
	case "aws":
		return "aws_sqs"
	case "":
		return "rabbitmq"
	default:
		return transportName
	}
}

func messagingAttributes(system, queue string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("messaging.system", system),
		attribute.String("messaging.destination_kind", "queue"),
		attribute.String("messaging.destination", queue),
	}
	if system == "rabbitmq" {
		attrs = append(attrs, attribute.String("messaging.rabbitmq.routing_key", queue))
	}
	return attrs
}

func tracerFrom(tp trace.TracerProvider) trace.Tracer {
	return tp.Tracer(instrumentationName)
}
