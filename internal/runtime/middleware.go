package runtime

import (
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	idspkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/ids"
	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
	metadatapkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/metadata"
)

// MiddlewareBuilder constructs a handler middleware for the given consumer.
// Returning a nil middleware skips the registration.
type MiddlewareBuilder func(*Consumer) (message.HandlerMiddleware, error)

// MiddlewareRegistration captures how a middleware is added to a consumer's chain.
type MiddlewareRegistration struct {
	Name       string
	Middleware message.HandlerMiddleware
	Builder    MiddlewareBuilder
}

func (r MiddlewareRegistration) build(c *Consumer) (message.HandlerMiddleware, error) {
	switch {
	case r.Middleware != nil:
		return r.Middleware, nil
	case r.Builder != nil:
		return r.Builder(c)
	default:
		return nil, errors.New("middleware registration requires Middleware or Builder")
	}
}

// DefaultMiddlewares returns the standard chain, outermost first. The tracer
// runs before logging so log lines carry the consume span's ids, and the
// recoverer is innermost so panics surface as errors to everything above it.
func DefaultMiddlewares() []MiddlewareRegistration {
	return []MiddlewareRegistration{
		CorrelationIDMiddleware(),
		TracerMiddleware(),
		LogMessagesMiddleware(nil),
		MetricsMiddleware(),
		JobHooksMiddleware(),
		RecovererMiddleware(),
	}
}

// CorrelationIDMiddleware ensures each processed message carries a correlation identifier.
func CorrelationIDMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "correlation_id",
		Middleware: func(h message.HandlerFunc) message.HandlerFunc {
			return func(msg *message.Message) ([]*message.Message, error) {
				if msg.Metadata.Get(metadatapkg.KeyCorrelationID) == "" {
					msg.Metadata.Set(metadatapkg.KeyCorrelationID, idspkg.NewCorrelationID())
				}
				return h(msg)
			}
		},
	}
}

// TracerMiddleware restores the producer's trace context from the message
// headers and wraps the handler in a "<Queue> consume" span. Messages without
// usable trace headers start a new root span.
func TracerMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "tracer",
		Builder: func(c *Consumer) (message.HandlerMiddleware, error) {
			return c.tracerMiddleware(), nil
		},
	}
}

// LogMessagesMiddleware logs each delivery before it is handled.
func LogMessagesMiddleware(logger loggingpkg.ServiceLogger) MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "log_messages",
		Builder: func(c *Consumer) (message.HandlerMiddleware, error) {
			l := logger
			if l == nil {
				l = c.logger
			}
			return logMessagesMiddleware(l), nil
		},
	}
}

// MetricsMiddleware records the outcome and duration of each handled message.
// It is skipped when the consumer has no metrics.
func MetricsMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "metrics",
		Builder: func(c *Consumer) (message.HandlerMiddleware, error) {
			if c.metrics == nil {
				return nil, nil
			}
			return metricsMiddleware(c.metrics), nil
		},
	}
}

// JobHooksMiddleware invokes the consumer's lifecycle hooks, if any.
func JobHooksMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name: "job_hooks",
		Builder: func(c *Consumer) (message.HandlerMiddleware, error) {
			if c.opts.hooks.empty() {
				return nil, nil
			}
			return jobHooksMiddleware(c.queue, c.opts.hooks), nil
		},
	}
}

// RecovererMiddleware converts handler panics into errors.
func RecovererMiddleware() MiddlewareRegistration {
	return MiddlewareRegistration{
		Name:       "recoverer",
		Middleware: middleware.Recoverer,
	}
}

func (c *Consumer) tracerMiddleware() message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			ctx := c.propagator.Extract(msg.Context(), metadatapkg.FromWatermill(msg.Metadata))

			opts := []trace.SpanStartOption{
				trace.WithSpanKind(trace.SpanKindConsumer),
				trace.WithAttributes(messagingAttributes(c.system, c.queue)...),
				trace.WithAttributes(attribute.String("messaging.message_id", msg.UUID)),
			}
			if sc := trace.SpanContextFromContext(ctx); !sc.IsValid() || !sc.IsRemote() {
				opts = append(opts, trace.WithNewRoot())
			}

			ctx, span := c.tracer.Start(ctx, spanName(c.queue, "consume"), opts...)
			defer span.End()
			msg.SetContext(ctx)

			out, err := h(msg)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return out, err
		}
	}
}

func logMessagesMiddleware(logger loggingpkg.ServiceLogger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			fields := loggingpkg.LogFields{
				"message_id":     msg.UUID,
				"correlation_id": msg.Metadata.Get(metadatapkg.KeyCorrelationID),
			}
			for k, v := range loggingpkg.TraceFields(msg.Context()) {
				fields[k] = v
			}
			logger.Info("Processing message...", fields)
			logger.Trace("Message payload", loggingpkg.LogFields{
				"payload":  string(msg.Payload),
				"metadata": msg.Metadata,
			})
			return h(msg)
		}
	}
}

func metricsMiddleware(m *Metrics) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			out, err := h(msg)
			outcome := "success"
			if err != nil {
				outcome = "error"
			}
			m.observeConsume(outcome, time.Since(start))
			return out, err
		}
	}
}
