package runtime

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
	metadatapkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/metadata"
)

// JobContext describes one message being handled.
type JobContext struct {
	Queue         string
	MessageID     string
	CorrelationID string
	Headers       metadatapkg.Metadata
	// Context carries the consume span.
	Context   context.Context
	StartedAt time.Time
	// Duration is only set for OnJobDone and OnJobError.
	Duration time.Duration
}

// JobHooks defines callbacks for job lifecycle events. Nil hooks are skipped.
type JobHooks struct {
	OnJobStart func(ctx JobContext)
	OnJobDone  func(ctx JobContext)
	OnJobError func(ctx JobContext, err error)
}

// Merge combines two JobHooks. The hooks from other run after those from h.
func (h JobHooks) Merge(other JobHooks) JobHooks {
	return JobHooks{
		OnJobStart: chainJobHooks(h.OnJobStart, other.OnJobStart),
		OnJobDone:  chainJobHooks(h.OnJobDone, other.OnJobDone),
		OnJobError: chainErrorHooks(h.OnJobError, other.OnJobError),
	}
}

func (h JobHooks) empty() bool {
	return h.OnJobStart == nil && h.OnJobDone == nil && h.OnJobError == nil
}

func chainJobHooks(a, b func(JobContext)) func(JobContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx JobContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(JobContext, error)) func(JobContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx JobContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

func jobHooksMiddleware(queue string, hooks JobHooks) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			headers := metadatapkg.FromWatermill(msg.Metadata)
			jobCtx := JobContext{
				Queue:         queue,
				MessageID:     msg.UUID,
				CorrelationID: headers.Get(metadatapkg.KeyCorrelationID),
				Headers:       headers,
				Context:       msg.Context(),
				StartedAt:     time.Now(),
			}

			if hooks.OnJobStart != nil {
				hooks.OnJobStart(jobCtx)
			}

			msgs, err := h(msg)
			jobCtx.Duration = time.Since(jobCtx.StartedAt)

			if err != nil {
				if hooks.OnJobError != nil {
					hooks.OnJobError(jobCtx, err)
				}
			} else if hooks.OnJobDone != nil {
				hooks.OnJobDone(jobCtx)
			}
			return msgs, err
		}
	}
}

// LoggingHooks logs job lifecycle events at debug level and failures at error level.
func LoggingHooks(logger loggingpkg.ServiceLogger) JobHooks {
	fields := func(ctx JobContext) loggingpkg.LogFields {
		f := loggingpkg.LogFields{
			"queue":          ctx.Queue,
			"message_id":     ctx.MessageID,
			"correlation_id": ctx.CorrelationID,
		}
		if ctx.Duration > 0 {
			f["duration_ms"] = ctx.Duration.Milliseconds()
		}
		return f
	}
	return JobHooks{
		OnJobStart: func(ctx JobContext) {
			logger.Debug("Job started", fields(ctx))
		},
		OnJobDone: func(ctx JobContext) {
			logger.Debug("Job completed", fields(ctx))
		},
		OnJobError: func(ctx JobContext, err error) {
			logger.Error("Job failed", err, fields(ctx))
		},
	}
}
