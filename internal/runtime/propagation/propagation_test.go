package propagation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/baggage"
	otelprop "go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/metadata"
)

func sampledContext(t *testing.T) (context.Context, trace.SpanContext) {
	t.Helper()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "GET /weatherforecast")
	t.Cleanup(func() { span.End() })
	return ctx, span.SpanContext()
}

func withBaggage(t *testing.T, ctx context.Context, key, value string) context.Context {
	t.Helper()
	member, err := baggage.NewMember(key, value)
	require.NoError(t, err)
	bag, err := baggage.New(member)
	require.NoError(t, err)
	return baggage.ContextWithBaggage(ctx, bag)
}

func TestInjectExtractRoundTrip(t *testing.T) {
	p := New(nil)
	ctx, sc := sampledContext(t)
	ctx = withBaggage(t, ctx, "tenant", "porto")

	md := metadata.Metadata{}
	p.Inject(ctx, md)

	require.Contains(t, md, HeaderTraceParent)
	require.Contains(t, md, HeaderBaggage)

	tc := p.ExtractTraceContext(md)
	assert.True(t, tc.IsValid())
	assert.Equal(t, sc.TraceID(), tc.TraceID)
	assert.Equal(t, sc.SpanID(), tc.SpanID)
	assert.True(t, tc.Sampled())
	assert.Equal(t, "porto", tc.Baggage.Member("tenant").Value())
}

func TestExtractRestoresBaggageIntoContext(t *testing.T) {
	p := New(nil)
	ctx, sc := sampledContext(t)
	ctx = withBaggage(t, ctx, "origin", "apiservice")

	md := metadata.Metadata{}
	p.Inject(ctx, md)

	out := p.Extract(context.Background(), md)
	assert.Equal(t, sc.TraceID(), trace.SpanContextFromContext(out).TraceID())
	assert.True(t, trace.SpanContextFromContext(out).IsRemote())
	assert.Equal(t, "apiservice", baggage.FromContext(out).Member("origin").Value())
}

func TestExtractWithoutDesignatedKeysIsEmpty(t *testing.T) {
	p := New(nil)
	cases := map[string]metadata.Metadata{
		"nil":          nil,
		"empty":        {},
		"unrelated":    {"correlation_id": "abc", "content_type": "text/plain"},
		"wrong casing": {"Traceparent": "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01"},
	}
	for name, md := range cases {
		t.Run(name, func(t *testing.T) {
			tc := p.ExtractTraceContext(md)
			assert.False(t, tc.IsValid())
			assert.Equal(t, 0, tc.Baggage.Len())
		})
	}
}

type parentKey struct{}

func TestExtractMalformedHeadersDegrades(t *testing.T) {
	p := New(nil)
	md := metadata.Metadata{
		HeaderTraceParent: "not-a-traceparent",
		HeaderBaggage:     "===",
	}
	parent := context.WithValue(context.Background(), parentKey{}, "kept")

	out := p.Extract(parent, md)
	assert.False(t, trace.SpanContextFromContext(out).IsValid())
	assert.Equal(t, "kept", out.Value(parentKey{}))
}

func TestInjectNoopCases(t *testing.T) {
	p := New(nil)

	md := metadata.Metadata{"correlation_id": "abc"}
	p.Inject(context.Background(), md)
	assert.Equal(t, metadata.Metadata{"correlation_id": "abc"}, md)

	ctx, _ := sampledContext(t)
	assert.NotPanics(t, func() { p.Inject(ctx, nil) })
}

func TestInjectOnlyTouchesDesignatedKeys(t *testing.T) {
	p := New(nil)
	ctx, _ := sampledContext(t)

	md := metadata.Metadata{"correlation_id": "abc", "x-custom": "1"}
	p.Inject(ctx, md)

	assert.Equal(t, "abc", md["correlation_id"])
	assert.Equal(t, "1", md["x-custom"])
	for key := range md {
		if key == "correlation_id" || key == "x-custom" {
			continue
		}
		assert.Contains(t, p.Fields(), key)
	}
}

func TestHeaderIsolationBetweenInjects(t *testing.T) {
	p := New(nil)
	ctxA, scA := sampledContext(t)
	ctxB, scB := sampledContext(t)
	require.NotEqual(t, scA.TraceID(), scB.TraceID())

	mdA := metadata.Metadata{}
	mdB := metadata.Metadata{}
	p.Inject(ctxA, mdA)
	p.Inject(ctxB, mdB)

	assert.Equal(t, scA.TraceID(), p.ExtractTraceContext(mdA).TraceID)
	assert.Equal(t, scB.TraceID(), p.ExtractTraceContext(mdB).TraceID)
}

func TestInjectTraceContextValue(t *testing.T) {
	p := New(nil)
	ctx, sc := sampledContext(t)
	tc := FromContext(ctx)

	md := metadata.Metadata{}
	p.InjectTraceContext(tc, md)

	assert.Equal(t, sc.SpanID(), p.ExtractTraceContext(md).SpanID)
}

func TestPropagatorIgnoresGlobal(t *testing.T) {
	previous := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(otelprop.NewCompositeTextMapPropagator())
	t.Cleanup(func() { otel.SetTextMapPropagator(previous) })

	p := New(nil)
	ctx, sc := sampledContext(t)
	md := metadata.Metadata{}
	p.Inject(ctx, md)

	assert.Equal(t, sc.TraceID(), p.ExtractTraceContext(md).TraceID)
}

type panickingPropagator struct{ otelprop.TraceContext }

func (panickingPropagator) Extract(context.Context, otelprop.TextMapCarrier) context.Context {
	panic("boom")
}

func TestExtractRecoversPanics(t *testing.T) {
	p := New(nil)
	p.composite = panickingPropagator{}

	parent := context.Background()
	var out context.Context
	require.NotPanics(t, func() {
		out = p.Extract(parent, metadata.Metadata{HeaderTraceParent: "x"})
	})
	assert.Equal(t, parent, out)
}
