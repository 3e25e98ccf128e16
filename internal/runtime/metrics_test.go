package runtime

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/cache"
)

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := NewMetrics()
	m.observePublish(nil)
	m.ObserveHTTPRequest(http.MethodGet, "/todos", http.StatusOK)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "portotechhub_messages_published_total 1")
	assert.Contains(t, body, `portotechhub_http_requests_total{method="GET",route="/todos",status="200"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsCacheObserver(t *testing.T) {
	m := NewMetrics()
	observe := m.CacheObserver()
	observe(cache.ResultHit)
	observe(cache.ResultMiss)
	observe(cache.ResultMiss)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues(string(cache.ResultHit))))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues(string(cache.ResultMiss))))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observePublish(nil)
		m.observeConsume("success", 0)
		m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK)
		m.CacheObserver()(cache.ResultHit)
	})
}
