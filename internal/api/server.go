// Package api serves the public HTTP endpoints of the API process.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	runtimepkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime"
	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/propagation"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/queue"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/todos"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/weather"
)

// DefaultMessage is published on every forecast request.
const DefaultMessage = "Hello World!"

const shutdownTimeout = 5 * time.Second

// Publisher sends the forecast notification.
type Publisher interface {
	PublishText(ctx context.Context, text string) (queue.Message, error)
}

// Forecaster returns the current forecast.
type Forecaster interface {
	Forecast(ctx context.Context) ([]weather.Forecast, error)
}

// TodoStore reads todos.
type TodoStore interface {
	All(ctx context.Context) ([]todos.Todo, error)
	ByID(ctx context.Context, id int) (todos.Todo, error)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Dependencies are the collaborators of the HTTP server. Publisher and
// Forecasts are required; a nil Todos store makes the todo routes answer 503.
type Dependencies struct {
	Publisher      Publisher
	Forecasts      Forecaster
	Todos          TodoStore
	Logger         loggingpkg.ServiceLogger
	Metrics        *runtimepkg.Metrics
	Propagator     *propagation.Propagator
	TracerProvider trace.TracerProvider
	HealthChecks   map[string]HealthCheck
	// Development exposes the OpenAPI document.
	Development bool
	// Message overrides DefaultMessage.
	Message string
}

// Server is the gin engine plus its dependencies.
type Server struct {
	engine *gin.Engine
	deps   Dependencies
	tracer trace.Tracer
}

// NewServer builds the router.
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Publisher == nil {
		return nil, errors.New("api: publisher is required")
	}
	if deps.Forecasts == nil {
		return nil, errors.New("api: forecaster is required")
	}
	if deps.Logger == nil {
		deps.Logger = loggingpkg.Nop()
	}
	if deps.Propagator == nil {
		deps.Propagator = propagation.New(deps.Logger)
	}
	if deps.TracerProvider == nil {
		deps.TracerProvider = noop.NewTracerProvider()
	}
	if deps.Message == "" {
		deps.Message = DefaultMessage
	}

	s := &Server{
		deps:   deps,
		tracer: deps.TracerProvider.Tracer("github.com/Depechie/2024-portotechhub-aspireotel/internal/api"),
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoRoute(func(c *gin.Context) {
		writeProblem(c, http.StatusNotFound, "")
	})
	r.NoMethod(func(c *gin.Context) {
		writeProblem(c, http.StatusMethodNotAllowed, "")
	})

	r.Use(
		s.tracingMiddleware(),
		s.metricsMiddleware(),
		s.loggingMiddleware(),
		s.recoveryMiddleware(),
	)

	r.GET("/weatherforecast", s.getWeatherForecast)
	r.GET("/todos", s.getTodos)
	r.GET("/todos/:id", s.getTodo)

	r.GET("/health", s.getHealth)
	r.GET("/alive", s.getAlive)

	if s.deps.Development {
		r.GET("/openapi/v1.json", s.getOpenAPI)
	}
	if s.deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
