// Package propagation carries OpenTelemetry trace context and baggage across
// process boundaries inside message metadata.
//
// A Propagator is an explicit instance handed to producers and consumers; it
// never reads or writes the process-global OpenTelemetry propagator.
package propagation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/baggage"
	otelprop "go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/metadata"
)

// Designated header keys. Lookup is exact and case-sensitive.
const (
	HeaderTraceParent = "traceparent"
	HeaderTraceState  = "tracestate"
	HeaderBaggage     = "baggage"
)

// Propagator injects and extracts W3C trace-context and baggage headers.
type Propagator struct {
	composite otelprop.TextMapPropagator
	logger    logging.ServiceLogger
}

// New returns a Propagator using a composite of W3C trace-context and W3C
// baggage. A nil logger discards diagnostics.
func New(logger logging.ServiceLogger) *Propagator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Propagator{
		composite: otelprop.NewCompositeTextMapPropagator(otelprop.TraceContext{}, otelprop.Baggage{}),
		logger:    logger,
	}
}

// Fields returns the header keys the propagator reads and writes.
func (p *Propagator) Fields() []string {
	return p.composite.Fields()
}

// Inject writes the span context and baggage carried by ctx into md. It is a
// no-op when md is nil or when ctx has neither a valid span nor baggage.
// Keys other than the designated ones are left untouched.
func (p *Propagator) Inject(ctx context.Context, md metadata.Metadata) {
	if md == nil || ctx == nil {
		return
	}
	if !trace.SpanContextFromContext(ctx).IsValid() && baggage.FromContext(ctx).Len() == 0 {
		return
	}
	p.composite.Inject(ctx, md)
}

// InjectTraceContext writes an explicit TraceContext value into md.
func (p *Propagator) InjectTraceContext(tc TraceContext, md metadata.Metadata) {
	p.Inject(tc.ContextWith(context.Background()), md)
}

// Extract returns a copy of ctx carrying the remote span context and baggage
// found in md. Absent or malformed headers yield ctx unchanged.
func (p *Propagator) Extract(ctx context.Context, md metadata.Metadata) (out context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(md) == 0 {
		return ctx
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Trace context extraction panicked", fmt.Errorf("%v", r), nil)
			out = ctx
		}
	}()

	out = p.composite.Extract(ctx, md)
	p.logMalformed(out, md)
	return out
}

// ExtractTraceContext reads md into a TraceContext value. The result is
// empty (IsValid reports false) when md has no usable trace headers.
func (p *Propagator) ExtractTraceContext(md metadata.Metadata) TraceContext {
	return FromContext(p.Extract(context.Background(), md))
}

func (p *Propagator) logMalformed(ctx context.Context, md metadata.Metadata) {
	if raw, ok := md[HeaderTraceParent]; ok && !trace.SpanContextFromContext(ctx).IsValid() {
		p.logger.Debug("Ignoring malformed traceparent header", logging.LogFields{"traceparent": raw})
	}
	if raw, ok := md[HeaderBaggage]; ok && raw != "" && baggage.FromContext(ctx).Len() == 0 {
		p.logger.Debug("Ignoring malformed baggage header", logging.LogFields{"baggage": raw})
	}
}
