package runtime

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/cache"
)

const metricsNamespace = "portotechhub"

// Metrics holds the Prometheus collectors shared by the API and worker. They
// live on a dedicated registry so tests and multiple services do not collide
// on the global one.
type Metrics struct {
	registry *prometheus.Registry

	published      prometheus.Counter
	publishErrors  prometheus.Counter
	consumed       *prometheus.CounterVec
	processingTime prometheus.Histogram
	cacheRequests  *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_published_total",
			Help:      "Messages accepted by the broker.",
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "publish_errors_total",
			Help:      "Publish attempts rejected by the broker.",
		}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_consumed_total",
			Help:      "Messages handled by the consumer, by outcome.",
		}, []string{"outcome"}),
		processingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "message_processing_seconds",
			Help:      "Time spent in the message handler.",
			Buckets:   prometheus.DefBuckets,
		}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_requests_total",
			Help:      "Cache-aside lookups, by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status.",
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.published,
		m.publishErrors,
		m.consumed,
		m.processingTime,
		m.cacheRequests,
		m.httpRequests,
	)
	return m
}

// Registry exposes the underlying registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observePublish(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.publishErrors.Inc()
		return
	}
	m.published.Inc()
}

func (m *Metrics) observeConsume(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.consumed.WithLabelValues(outcome).Inc()
	m.processingTime.Observe(elapsed.Seconds())
}

// CacheObserver returns a callback suitable for cache.WithObserver.
func (m *Metrics) CacheObserver() func(cache.Result) {
	return func(r cache.Result) {
		if m == nil {
			return
		}
		m.cacheRequests.WithLabelValues(string(r)).Inc()
	}
}

// ObserveHTTPRequest counts one served request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
