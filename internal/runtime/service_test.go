package runtime

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	configpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/config"
	errspkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/errors"
	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
	"github.com/Depechie/2024-portotechhub-aspireotel/transport"
	"github.com/Depechie/2024-portotechhub-aspireotel/transport/channel"
)

func TestNewServiceRequiresConfigAndLogger(t *testing.T) {
	_, err := NewService(context.Background(), nil, loggingpkg.Nop(), ServiceDependencies{})
	assert.ErrorIs(t, err, errspkg.ErrConfigRequired)

	_, err = NewService(context.Background(), configpkg.Default(), nil, ServiceDependencies{})
	assert.ErrorIs(t, err, errspkg.ErrLoggerRequired)
}

func TestNewServiceWrapsTransportError(t *testing.T) {
	buildErr := errors.New("connection refused")
	conf := configpkg.Default()
	conf.PubSubSystem = "rabbitmq"
	conf.OTLPEndpoint = ""

	_, err := NewService(context.Background(), conf, loggingpkg.Nop(), ServiceDependencies{
		TransportBuilder: func(context.Context, transport.Config, watermill.LoggerAdapter) (transport.Transport, error) {
			return transport.Transport{}, buildErr
		},
	})
	require.ErrorIs(t, err, buildErr)
	assert.ErrorContains(t, err, "build rabbitmq transport")
}

func TestNewServiceRejectsIncompleteTransport(t *testing.T) {
	conf := configpkg.Default()
	conf.OTLPEndpoint = ""

	_, err := NewService(context.Background(), conf, loggingpkg.Nop(), ServiceDependencies{
		TransportBuilder: func(context.Context, transport.Config, watermill.LoggerAdapter) (transport.Transport, error) {
			return transport.Transport{}, nil
		},
	})
	assert.ErrorIs(t, err, errspkg.ErrPublisherRequired)
}

func TestNewServiceOwnsTracerProvider(t *testing.T) {
	conf := configpkg.Default()
	conf.PubSubSystem = "channel"
	conf.OTLPEndpoint = ""
	conf.MetricsEnabled = false

	svc, err := NewService(context.Background(), conf, loggingpkg.Nop(), ServiceDependencies{TransportBuilder: channel.Build})
	require.NoError(t, err)

	assert.NotNil(t, svc.TracerProvider())
	assert.NotNil(t, svc.shutdownTracer)
	assert.Nil(t, svc.Metrics())

	require.NoError(t, svc.Close(context.Background()))
	require.NoError(t, svc.Close(context.Background()))
}

func TestServiceMetricsDefaultFromConfig(t *testing.T) {
	conf := configpkg.Default()
	conf.PubSubSystem = "channel"
	conf.OTLPEndpoint = ""
	conf.MetricsEnabled = true

	svc, err := NewService(context.Background(), conf, loggingpkg.Nop(), ServiceDependencies{TransportBuilder: channel.Build})
	require.NoError(t, err)
	defer func() { _ = svc.Close(context.Background()) }()

	require.NotNil(t, svc.Metrics())

	p, err := svc.Producer("orders")
	require.NoError(t, err)
	_, err = p.PublishText(context.Background(), "Hello World!")
	require.NoError(t, err)

	families, err := svc.Metrics().Registry().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "portotechhub_messages_published_total")
	assert.Contains(t, names, "portotechhub_broker_publish_time_seconds")
}

func TestServiceConsumerUsesConfigDefaults(t *testing.T) {
	h := newTestService(t, ServiceDependencies{})
	h.svc.Conf.ConsumerWorkers = 4
	h.svc.Conf.ConsumerAutoAck = false

	c, err := h.svc.Consumer("orders", func(context.Context, InboundMessage) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 4, c.opts.workers)
	assert.False(t, c.opts.autoAck)

	c, err = h.svc.Consumer("orders", func(context.Context, InboundMessage) error { return nil }, WithWorkers(2))
	require.NoError(t, err)
	assert.Equal(t, 2, c.opts.workers)
	assert.Len(t, h.svc.consumers, 2)
}

func TestServiceStartStopsOnCancel(t *testing.T) {
	h := newTestService(t, ServiceDependencies{})

	_, err := h.svc.Consumer("orders", func(context.Context, InboundMessage) error { return nil })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, h.svc.Start(ctx))
}

func TestRegisterHTTPHandlerSharesMuxPerPort(t *testing.T) {
	h := newTestService(t, ServiceDependencies{})
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	h.svc.RegisterHTTPHandler(9090, "/metrics", ok)
	h.svc.RegisterHTTPHandler(9090, "/health", ok)
	h.svc.RegisterHTTPHandler(9091, "/metrics", ok)

	assert.Len(t, h.svc.httpServers, 2)
}

type closeCountingPublisher struct{ closes int }

func (p *closeCountingPublisher) Publish(string, ...*message.Message) error { return nil }

func (p *closeCountingPublisher) Close() error {
	p.closes++
	return nil
}

// keepingExporter retains exported spans across provider shutdown.
type keepingExporter struct{ *tracetest.InMemoryExporter }

func (keepingExporter) Shutdown(context.Context) error { return nil }

func TestServiceCloseWithMetricsFlushesSpans(t *testing.T) {
	exporter := keepingExporter{tracetest.NewInMemoryExporter()}
	stubExporterFactory(t, exporter, nil)

	conf := configpkg.Default()
	conf.PubSubSystem = "channel"
	conf.OTLPEndpoint = "collector:4317"

	svc, err := NewService(context.Background(), conf, loggingpkg.Nop(), ServiceDependencies{
		TransportBuilder: channel.Build,
		Metrics:          NewMetrics(),
	})
	require.NoError(t, err)

	p, err := svc.Producer("orders")
	require.NoError(t, err)
	_, err = p.PublishText(context.Background(), "Hello World!")
	require.NoError(t, err)

	require.NotPanics(t, func() {
		require.NoError(t, svc.Close(context.Background()))
	})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "batched span is flushed on Close")
	assert.Equal(t, "Orders publish", spans[0].Name)
}

func TestServiceCloseWithMetricsClosesEachPublisherOnce(t *testing.T) {
	persistent := &closeCountingPublisher{}
	transient := &closeCountingPublisher{}
	h := newTestService(t, ServiceDependencies{
		TransportBuilder: func(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
			return transport.Transport{
				Publisher:          persistent,
				TransientPublisher: transient,
				Subscriber:         gochannel.NewGoChannel(gochannel.Config{}, logger),
				Capabilities:       transport.RabbitMQCapabilities,
			}, nil
		},
	})

	require.NotPanics(t, func() {
		require.NoError(t, h.svc.Close(context.Background()))
	})
	assert.Equal(t, 1, persistent.closes)
	assert.Equal(t, 1, transient.closes)
}

func TestServiceSharedPublisherStaysSharedAfterDecoration(t *testing.T) {
	shared := &closeCountingPublisher{}
	h := newTestService(t, ServiceDependencies{
		TransportBuilder: func(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
			return transport.Transport{
				Publisher:    shared,
				Subscriber:   gochannel.NewGoChannel(gochannel.Config{}, logger),
				Capabilities: transport.ChannelCapabilities,
			}, nil
		},
	})

	require.NoError(t, h.svc.Close(context.Background()))
	assert.Equal(t, 1, shared.closes)
}
