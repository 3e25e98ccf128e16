package propagation

import (
	"context"

	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext is an immutable snapshot of a span context plus its baggage.
// Derive a child span from it; never mutate it.
type TraceContext struct {
	TraceID trace.TraceID
	SpanID  trace.SpanID
	Flags   trace.TraceFlags
	State   trace.TraceState
	Baggage baggage.Baggage
}

// FromContext snapshots the span context and baggage active in ctx.
func FromContext(ctx context.Context) TraceContext {
	sc := trace.SpanContextFromContext(ctx)
	return TraceContext{
		TraceID: sc.TraceID(),
		SpanID:  sc.SpanID(),
		Flags:   sc.TraceFlags(),
		State:   sc.TraceState(),
		Baggage: baggage.FromContext(ctx),
	}
}

// IsValid reports whether the trace and span ids are both set.
func (tc TraceContext) IsValid() bool {
	return tc.SpanContext().IsValid()
}

// Sampled reports whether the sampled flag is set.
func (tc TraceContext) Sampled() bool {
	return tc.Flags.IsSampled()
}

// SpanContext returns the remote span context described by tc.
func (tc TraceContext) SpanContext() trace.SpanContext {
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tc.TraceID,
		SpanID:     tc.SpanID,
		TraceFlags: tc.Flags,
		TraceState: tc.State,
		Remote:     true,
	})
}

// ContextWith returns parent carrying tc as the remote span context and its
// baggage. An invalid span context is not attached.
func (tc TraceContext) ContextWith(parent context.Context) context.Context {
	ctx := parent
	if sc := tc.SpanContext(); sc.IsValid() {
		ctx = trace.ContextWithRemoteSpanContext(ctx, sc)
	}
	if tc.Baggage.Len() > 0 {
		ctx = baggage.ContextWithBaggage(ctx, tc.Baggage)
	}
	return ctx
}
