package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	errspkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/errors"
	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
	metadatapkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/metadata"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/propagation"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/queue"
)

// InboundMessage is what a MessageHandler sees: the decoded body and the
// application headers of one delivery.
type InboundMessage struct {
	ID            string
	Queue         string
	Text          string
	Payload       []byte
	Headers       metadatapkg.Metadata
	CorrelationID string
}

// MessageHandler processes one message. The context carries the consume span
// and any baggage restored from the message headers.
type MessageHandler func(ctx context.Context, msg InboundMessage) error

// Consumer reads a queue and runs each delivery through the middleware chain
// and the handler.
type Consumer struct {
	client     *queue.Client
	propagator *propagation.Propagator
	tracer     trace.Tracer
	metrics    *Metrics
	logger     loggingpkg.ServiceLogger

	queue   string
	system  string
	handler MessageHandler
	opts    consumerOptions
	chain   message.HandlerFunc
}

type consumerOptions struct {
	workers            int
	autoAck            bool
	hooks              JobHooks
	middlewares        []MiddlewareRegistration
	disableDefaultMids bool
}

// ConsumerOption customises a Consumer.
type ConsumerOption func(*consumerOptions)

// WithWorkers sets the number of concurrent handler goroutines. With more
// than one worker, processing order across messages is not preserved.
func WithWorkers(n int) ConsumerOption {
	return func(o *consumerOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithManualAck acknowledges each delivery only after the handler returns
// without error; failed deliveries are negatively acknowledged and requeued.
func WithManualAck() ConsumerOption {
	return func(o *consumerOptions) {
		o.autoAck = false
	}
}

// WithConsumerAutoAck selects between auto-ack (at-most-once) and manual ack.
func WithConsumerAutoAck(autoAck bool) ConsumerOption {
	return func(o *consumerOptions) {
		o.autoAck = autoAck
	}
}

// WithHooks registers job lifecycle hooks.
func WithHooks(hooks JobHooks) ConsumerOption {
	return func(o *consumerOptions) {
		o.hooks = o.hooks.Merge(hooks)
	}
}

// WithMiddleware appends middleware after the default chain.
func WithMiddleware(regs ...MiddlewareRegistration) ConsumerOption {
	return func(o *consumerOptions) {
		o.middlewares = append(o.middlewares, regs...)
	}
}

// WithoutDefaultMiddlewares drops the default chain. Tracing and metrics are
// part of it.
func WithoutDefaultMiddlewares() ConsumerOption {
	return func(o *consumerOptions) {
		o.disableDefaultMids = true
	}
}

// NewConsumer builds a consumer for queueName. The tracer provider and
// metrics may be nil.
func NewConsumer(client *queue.Client, prop *propagation.Propagator, tp trace.TracerProvider, metrics *Metrics, log loggingpkg.ServiceLogger, queueName string, handler MessageHandler, opts ...ConsumerOption) (*Consumer, error) {
	if client == nil {
		return nil, errspkg.ErrSubscriberRequired
	}
	if prop == nil {
		return nil, errspkg.ErrPropagatorRequired
	}
	if queueName == "" {
		return nil, errspkg.ErrQueueRequired
	}
	if handler == nil {
		return nil, errspkg.ErrHandlerRequired
	}
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	if log == nil {
		log = loggingpkg.Nop()
	}

	o := consumerOptions{workers: 1, autoAck: true}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Consumer{
		client:     client,
		propagator: prop,
		tracer:     tracerFrom(tp),
		metrics:    metrics,
		logger:     log.With(loggingpkg.LogFields{"queue": queueName}),
		queue:      queueName,
		system:     messagingSystem(client.Capabilities().Name),
		handler:    handler,
		opts:       o,
	}

	regs := o.middlewares
	if !o.disableDefaultMids {
		regs = append(DefaultMiddlewares(), regs...)
	}
	chain, err := c.buildChain(regs)
	if err != nil {
		return nil, err
	}
	c.chain = chain
	return c, nil
}

// Queue returns the source queue name.
func (c *Consumer) Queue() string {
	return c.queue
}

// Run declares the queue, subscribes and processes deliveries until ctx is
// cancelled or the transport closes the subscription. Cancellation is a clean
// shutdown and returns nil; in-flight handlers finish first. A subscription
// closed by the transport returns ErrSubscriptionClosed.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.client.Declare(ctx, c.queue); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	sub, err := c.client.Subscribe(ctx, c.queue, queue.WithAutoAck(c.opts.autoAck))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer func() { _ = sub.Close() }()

	c.logger.Info("Awaiting messages...", loggingpkg.LogFields{
		"workers":  c.opts.workers,
		"auto_ack": c.opts.autoAck,
	})

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.opts.workers; i++ {
		g.Go(func() error {
			for d := range sub.Deliveries() {
				c.process(gctx, d)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := sub.Err(); err != nil {
		c.logger.Error("Subscription ended", err, nil)
		return err
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, d queue.Delivery) {
	in := d.Message()

	wm := message.NewMessage(in.ID, in.Payload)
	wm.Metadata = metadatapkg.ToWatermill(in.Headers)
	wm.SetContext(ctx)

	_, err := c.chain(wm)

	switch {
	case err == nil:
		d.Ack()
	case d.AutoAcked():
		c.logger.Error("Handler failed, message dropped", err, loggingpkg.LogFields{"message_id": in.ID})
	default:
		c.logger.Error("Handler failed, message requeued", err, loggingpkg.LogFields{"message_id": in.ID})
		d.Nack()
	}
}

// dispatch is the innermost handler of the chain.
func (c *Consumer) dispatch(msg *message.Message) ([]*message.Message, error) {
	headers := metadatapkg.FromWatermill(msg.Metadata)
	return nil, c.handler(msg.Context(), InboundMessage{
		ID:            msg.UUID,
		Queue:         c.queue,
		Text:          DecodeText(msg.Payload),
		Payload:       msg.Payload,
		Headers:       headers,
		CorrelationID: headers.Get(metadatapkg.KeyCorrelationID),
	})
}

func (c *Consumer) buildChain(regs []MiddlewareRegistration) (message.HandlerFunc, error) {
	mws := make([]message.HandlerMiddleware, 0, len(regs))
	for _, reg := range regs {
		mw, err := reg.build(c)
		if err != nil {
			return nil, fmt.Errorf("middleware %q: %w", reg.Name, err)
		}
		if mw != nil {
			mws = append(mws, mw)
		}
	}

	h := message.HandlerFunc(c.dispatch)
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h, nil
}

// DecodeText decodes payload as UTF-8, replacing invalid sequences with U+FFFD.
func DecodeText(payload []byte) string {
	return strings.ToValidUTF8(string(payload), "\uFFFD")
}
