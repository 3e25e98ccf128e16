package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
	metadatapkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/metadata"
)

// routeOf returns the matched route pattern, or "unmatched".
func routeOf(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return "unmatched"
}

// tracingMiddleware continues an incoming trace, if any, in a server span.
func (s *Server) tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		incoming := metadatapkg.Metadata{}
		for _, field := range s.deps.Propagator.Fields() {
			if v := c.GetHeader(field); v != "" {
				incoming[field] = v
			}
		}
		ctx := s.deps.Propagator.Extract(c.Request.Context(), incoming)

		route := routeOf(c)
		ctx, span := s.tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("url.path", c.Request.URL.Path),
			),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.deps.Metrics.ObserveHTTPRequest(c.Request.Method, routeOf(c), c.Writer.Status())
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := loggingpkg.LogFields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		for k, v := range loggingpkg.TraceFields(c.Request.Context()) {
			fields[k] = v
		}
		s.deps.Logger.Debug("HTTP request", fields)
	}
}

// recoveryMiddleware turns handler panics into 500 problem responses.
func (s *Server) recoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		fields := loggingpkg.LogFields{"path": c.Request.URL.Path}
		for k, v := range loggingpkg.TraceFields(c.Request.Context()) {
			fields[k] = v
		}
		s.deps.Logger.Error("Recovered from panic", fmt.Errorf("panic: %v", recovered), fields)
		writeProblem(c, http.StatusInternalServerError, "")
	})
}
