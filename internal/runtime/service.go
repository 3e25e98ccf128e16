package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	wmmetrics "github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	configpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/config"
	errspkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/errors"
	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/propagation"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/queue"
	transportpkg "github.com/Depechie/2024-portotechhub-aspireotel/transport"
)

const httpShutdownTimeout = 5 * time.Second

// ServiceDependencies holds optional collaborators. Zero values select the
// defaults derived from the configuration.
type ServiceDependencies struct {
	// TransportBuilder defaults to the transport registry.
	TransportBuilder transportpkg.Builder
	// TracerProvider defaults to a provider built by NewTracerProvider and
	// owned by the service.
	TracerProvider trace.TracerProvider
	// Metrics defaults to a fresh registry when metrics are enabled.
	Metrics *Metrics
	// Middlewares are appended after the default chain of every consumer.
	Middlewares               []MiddlewareRegistration
	DisableDefaultMiddlewares bool
	Hooks                     JobHooks
}

// Service wires the queue client, context propagator, tracer provider and
// metrics shared by the producers and consumers of one process.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	client         *queue.Client
	propagator     *propagation.Propagator
	tracerProvider trace.TracerProvider
	shutdownTracer func(context.Context) error
	metrics        *Metrics
	deps           ServiceDependencies

	consumers   []*Consumer
	consumersMu sync.Mutex

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewService builds the transport named by conf.PubSubSystem and everything
// layered on top of it. Close releases what it created.
func NewService(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}

	log.Info("Creating service", loggingpkg.LogFields{
		"pubsub_system": conf.PubSubSystem,
		"config":        conf.String(),
	})

	s := &Service{
		Conf:       conf,
		Logger:     log,
		propagator: propagation.New(log),
		metrics:    deps.Metrics,
		deps:       deps,
	}
	if s.metrics == nil && conf.MetricsEnabled {
		s.metrics = NewMetrics()
	}

	s.tracerProvider = deps.TracerProvider
	if s.tracerProvider == nil {
		tp, err := NewTracerProvider(ctx, conf, log)
		if err != nil {
			return nil, err
		}
		s.tracerProvider = tp
		s.shutdownTracer = tp.Shutdown
	}

	builder := deps.TransportBuilder
	if builder == nil {
		builder = transportpkg.Build
	}
	t, err := builder(ctx, conf, loggingpkg.NewWatermillAdapter(log))
	if err != nil {
		s.shutdownTracing(ctx)
		return nil, fmt.Errorf("build %s transport: %w", conf.PubSubSystem, err)
	}

	if s.metrics != nil {
		if t, err = s.decoratePublishers(t); err != nil {
			_ = t.Close()
			s.shutdownTracing(ctx)
			return nil, err
		}
	}

	s.client, err = queue.NewClient(t, log)
	if err != nil {
		_ = t.Close()
		s.shutdownTracing(ctx)
		return nil, err
	}
	return s, nil
}

// meteredPublisher boxes watermill's metrics decorator, a struct value that
// cannot be compared, so a publisher shared by both delivery modes stays one
// instance and is closed once.
type meteredPublisher struct {
	message.Publisher
}

// decoratePublishers adds watermill's publish metrics. Subscribers are left
// undecorated so queue declaration keeps working.
func (s *Service) decoratePublishers(t transportpkg.Transport) (transportpkg.Transport, error) {
	builder := wmmetrics.NewPrometheusMetricsBuilder(s.metrics.Registry(), metricsNamespace, "broker")

	shared := t.TransientPublisher == nil || transportpkg.SameInstance(t.TransientPublisher, t.Publisher)
	pub, err := builder.DecoratePublisher(t.Publisher)
	if err != nil {
		return t, fmt.Errorf("decorate publisher: %w", err)
	}
	t.Publisher = &meteredPublisher{Publisher: pub}

	if shared {
		t.TransientPublisher = t.Publisher
		return t, nil
	}
	transient, err := builder.DecoratePublisher(t.TransientPublisher)
	if err != nil {
		return t, fmt.Errorf("decorate transient publisher: %w", err)
	}
	t.TransientPublisher = &meteredPublisher{Publisher: transient}
	return t, nil
}

// Queue returns the underlying queue client.
func (s *Service) Queue() *queue.Client {
	return s.client
}

// Propagator returns the propagator used on both sides of the queue.
func (s *Service) Propagator() *propagation.Propagator {
	return s.propagator
}

// TracerProvider returns the provider spans are created from.
func (s *Service) TracerProvider() trace.TracerProvider {
	return s.tracerProvider
}

// Metrics returns the service metrics, or nil when metrics are disabled.
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// Producer returns a producer for queueName.
func (s *Service) Producer(queueName string, opts ...ProducerOption) (*Producer, error) {
	return NewProducer(s.client, s.propagator, s.tracerProvider, s.metrics, s.Logger, queueName, opts...)
}

// Consumer builds a consumer for queueName and registers it so Start runs it.
// Worker count and ack mode default to the configuration.
func (s *Service) Consumer(queueName string, handler MessageHandler, opts ...ConsumerOption) (*Consumer, error) {
	base := []ConsumerOption{
		WithWorkers(s.Conf.ConsumerWorkers),
		WithConsumerAutoAck(s.Conf.ConsumerAutoAck),
		WithHooks(s.deps.Hooks),
		WithMiddleware(s.deps.Middlewares...),
	}
	if s.deps.DisableDefaultMiddlewares {
		base = append(base, WithoutDefaultMiddlewares())
	}

	c, err := NewConsumer(s.client, s.propagator, s.tracerProvider, s.metrics, s.Logger, queueName, handler, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	s.consumersMu.Lock()
	s.consumers = append(s.consumers, c)
	s.consumersMu.Unlock()
	return c, nil
}

// Start serves the registered HTTP handlers and runs every registered
// consumer until ctx is cancelled or one of them fails.
func (s *Service) Start(ctx context.Context) error {
	s.consumersMu.Lock()
	consumers := append([]*Consumer(nil), s.consumers...)
	s.consumersMu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	s.startHTTPServers(gctx, g)
	for _, c := range consumers {
		g.Go(func() error {
			return c.Run(gctx)
		})
	}
	return g.Wait()
}

// Close releases the queue client and flushes the tracer provider if the
// service created it. Safe to call more than once.
func (s *Service) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.client.Close(); err != nil {
			errs = append(errs, err)
		}
		if s.shutdownTracer != nil {
			if err := s.shutdownTracer(ctx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func (s *Service) shutdownTracing(ctx context.Context) {
	if s.shutdownTracer != nil {
		_ = s.shutdownTracer(ctx)
	}
}

// RegisterHTTPHandler mounts handler on pattern of the server listening on
// port. Servers are started by Start.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers(ctx context.Context, g *errgroup.Group) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})

		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server %s: %w", srv.Addr, err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
}
