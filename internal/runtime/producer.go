package runtime

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	errspkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/errors"
	idspkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/ids"
	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
	metadatapkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/metadata"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/propagation"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/queue"
)

const textContentType = "text/plain; charset=utf-8"

// Producer publishes traced messages to a single queue. Each publish runs in
// its own producer span and carries that span's context in the message
// headers so the consumer can continue the trace.
type Producer struct {
	client     *queue.Client
	propagator *propagation.Propagator
	tracer     trace.Tracer
	metrics    *Metrics
	logger     loggingpkg.ServiceLogger
	queue      string
	system     string
	persistent bool
}

// ProducerOption customises a Producer.
type ProducerOption func(*Producer)

// WithTransientDelivery publishes without asking the broker to persist messages.
func WithTransientDelivery() ProducerOption {
	return func(p *Producer) {
		p.persistent = false
	}
}

// NewProducer creates a producer for queueName. The tracer provider and
// metrics may be nil.
func NewProducer(client *queue.Client, prop *propagation.Propagator, tp trace.TracerProvider, metrics *Metrics, log loggingpkg.ServiceLogger, queueName string, opts ...ProducerOption) (*Producer, error) {
	if client == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if prop == nil {
		return nil, errspkg.ErrPropagatorRequired
	}
	if queueName == "" {
		return nil, errspkg.ErrQueueRequired
	}
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	if log == nil {
		log = loggingpkg.Nop()
	}
	p := &Producer{
		client:     client,
		propagator: prop,
		tracer:     tracerFrom(tp),
		metrics:    metrics,
		logger:     log.With(loggingpkg.LogFields{"queue": queueName}),
		queue:      queueName,
		system:     messagingSystem(client.Capabilities().Name),
		persistent: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Queue returns the destination queue name.
func (p *Producer) Queue() string {
	return p.queue
}

// PublishText publishes text as UTF-8 bytes.
func (p *Producer) PublishText(ctx context.Context, text string) (queue.Message, error) {
	return p.Publish(ctx, []byte(text))
}

// Publish sends payload to the queue inside a "<Queue> publish" producer span.
// Broker errors are recorded on the span and returned; the message is not
// retried.
func (p *Producer) Publish(ctx context.Context, payload []byte) (queue.Message, error) {
	ctx, span := p.tracer.Start(ctx, spanName(p.queue, "publish"),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(messagingAttributes(p.system, p.queue)...),
	)
	defer span.End()

	headers := metadatapkg.New(
		metadatapkg.KeyCorrelationID, idspkg.NewCorrelationID(),
		metadatapkg.KeyContentType, textContentType,
		metadatapkg.KeyPublishedAt, time.Now().UTC().Format(time.RFC3339Nano),
	)
	p.inject(ctx, headers)

	msg, err := p.client.Publish(ctx, p.queue, payload, headers, queue.WithPersistent(p.persistent))
	p.metrics.observePublish(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("Publish failed", err, loggingpkg.TraceFields(ctx))
		return queue.Message{}, err
	}

	span.SetAttributes(attribute.String("messaging.message_id", msg.ID))
	p.logger.Debug("Message published", loggingpkg.LogFields{
		"message_id":     msg.ID,
		"correlation_id": headers.Get(metadatapkg.KeyCorrelationID),
	})
	return msg, nil
}

// inject never fails the publish: a message without trace headers is still
// delivered, it just starts a new trace on the consumer side.
func (p *Producer) inject(ctx context.Context, headers metadatapkg.Metadata) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Failed to inject trace context", fmt.Errorf("panic: %v", r), nil)
		}
	}()
	p.propagator.Inject(ctx, headers)
}
