package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	errspkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/errors"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/jsoncodec"
	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
)

const healthCheckTimeout = 2 * time.Second

// getWeatherForecast publishes the notification message, then serves the
// cached forecast. A failed publish fails the request.
func (s *Server) getWeatherForecast(c *gin.Context) {
	ctx := c.Request.Context()

	if _, err := s.deps.Publisher.PublishText(ctx, s.deps.Message); err != nil {
		s.deps.Logger.Error("Failed to publish forecast notification", err, loggingpkg.TraceFields(ctx))
		writeProblem(c, http.StatusInternalServerError, "")
		return
	}

	forecast, err := s.deps.Forecasts.Forecast(ctx)
	if err != nil {
		s.deps.Logger.Error("Failed to load forecast", err, loggingpkg.TraceFields(ctx))
		writeProblem(c, http.StatusInternalServerError, "")
		return
	}
	writeJSON(c, http.StatusOK, forecast)
}

func (s *Server) getTodos(c *gin.Context) {
	if s.deps.Todos == nil {
		writeProblem(c, http.StatusServiceUnavailable, "todo store is not configured")
		return
	}

	items, err := s.deps.Todos.All(c.Request.Context())
	if err != nil {
		s.deps.Logger.Error("Failed to list todos", err, loggingpkg.TraceFields(c.Request.Context()))
		writeProblem(c, http.StatusInternalServerError, "")
		return
	}
	writeJSON(c, http.StatusOK, items)
}

func (s *Server) getTodo(c *gin.Context) {
	if s.deps.Todos == nil {
		writeProblem(c, http.StatusServiceUnavailable, "todo store is not configured")
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		writeProblem(c, http.StatusBadRequest, "id must be an integer")
		return
	}

	todo, err := s.deps.Todos.ByID(c.Request.Context(), id)
	switch {
	case errors.Is(err, errspkg.ErrTodoNotFound):
		writeProblem(c, http.StatusNotFound, "")
	case err != nil:
		s.deps.Logger.Error("Failed to load todo", err, loggingpkg.LogFields{"id": id})
		writeProblem(c, http.StatusInternalServerError, "")
	default:
		writeJSON(c, http.StatusOK, todo)
	}
}

// getHealth runs every registered check.
func (s *Server) getHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	for name, check := range s.deps.HealthChecks {
		if err := check(ctx); err != nil {
			s.deps.Logger.Error("Health check failed", err, loggingpkg.LogFields{"check": name})
			c.String(http.StatusServiceUnavailable, "Unhealthy")
			return
		}
	}
	c.String(http.StatusOK, "Healthy")
}

// getAlive reports liveness only.
func (s *Server) getAlive(c *gin.Context) {
	c.String(http.StatusOK, "Healthy")
}

func (s *Server) getOpenAPI(c *gin.Context) {
	writeJSON(c, http.StatusOK, openAPIDocument)
}

func writeJSON(c *gin.Context, status int, v any) {
	body, err := jsoncodec.Marshal(v)
	if err != nil {
		writeProblem(c, http.StatusInternalServerError, "")
		return
	}
	c.Data(status, "application/json; charset=utf-8", body)
}
