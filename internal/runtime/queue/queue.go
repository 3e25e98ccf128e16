// Package queue is the durable queue client used by the producer and consumer
// paths. It sits on top of a transport.Transport and exposes declaration,
// publishing with metadata, and channel-based subscriptions.
package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	amqp091 "github.com/rabbitmq/amqp091-go"

	errspkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/errors"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/ids"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/metadata"
	"github.com/Depechie/2024-portotechhub-aspireotel/transport"
)

// Message is one queued unit of work. It is never modified after Publish
// hands it to the transport.
type Message struct {
	ID         string
	Queue      string
	Payload    []byte
	Headers    metadata.Metadata
	Persistent bool
}

// Client publishes to and subscribes from named durable queues.
type Client struct {
	transport transport.Transport
	logger    logging.ServiceLogger
	closed    atomic.Bool
}

// NewClient wraps a built transport. The client takes ownership of it and
// closes it on Close.
func NewClient(t transport.Transport, logger logging.ServiceLogger) (*Client, error) {
	if t.Publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if t.Subscriber == nil {
		return nil, errspkg.ErrSubscriberRequired
	}
	if t.TransientPublisher == nil {
		t.TransientPublisher = t.Publisher
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		transport: t,
		logger:    logger.With(logging.LogFields{"transport": t.Capabilities.Name}),
	}, nil
}

// Capabilities reports what the underlying transport guarantees.
func (c *Client) Capabilities() transport.Capabilities {
	return c.transport.Capabilities
}

// Declare creates the queue as durable and non-exclusive if it does not exist.
// Declaring an existing queue with the same properties is a no-op, so the
// producer and consumer may both call it. A queue that already exists with
// different properties yields ErrQueueDeclareMismatch.
func (c *Client) Declare(ctx context.Context, queue string) error {
	if queue == "" {
		return errspkg.ErrQueueRequired
	}
	if c.closed.Load() {
		return errspkg.ErrClientClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	initializer, ok := c.transport.Subscriber.(message.SubscribeInitializer)
	if !ok {
		c.logger.Debug("Transport declares queues on first use", logging.LogFields{"queue": queue})
		return nil
	}

	if err := initializer.SubscribeInitialize(queue); err != nil {
		var amqpErr *amqp091.Error
		if errors.As(err, &amqpErr) && amqpErr.Code == amqp091.PreconditionFailed {
			return fmt.Errorf("%w: queue %q: %s", errspkg.ErrQueueDeclareMismatch, queue, amqpErr.Reason)
		}
		return fmt.Errorf("declare queue %q: %w", queue, err)
	}

	c.logger.Debug("Queue declared", logging.LogFields{"queue": queue})
	return nil
}

// Publish enqueues payload with a copy of headers and returns once the
// transport accepted it. Messages are persistent unless WithPersistent(false)
// is given. Publish does not retry.
func (c *Client) Publish(ctx context.Context, queue string, payload []byte, headers metadata.Metadata, opts ...PublishOption) (Message, error) {
	if queue == "" {
		return Message{}, errspkg.ErrQueueRequired
	}
	if c.closed.Load() {
		return Message{}, errspkg.ErrClientClosed
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	options := publishOptions{persistent: true}
	for _, opt := range opts {
		opt(&options)
	}

	msg := Message{
		ID:         ids.NewMessageID(),
		Queue:      queue,
		Payload:    bytes.Clone(payload),
		Headers:    headers.Clone(),
		Persistent: options.persistent,
	}

	wm := message.NewMessage(msg.ID, bytes.Clone(msg.Payload))
	wm.Metadata = metadata.ToWatermill(msg.Headers)
	wm.Metadata.Set(metadata.KeyPersistent, fmt.Sprint(msg.Persistent))
	wm.SetContext(ctx)

	publisher := c.transport.Publisher
	if !msg.Persistent {
		publisher = c.transport.TransientPublisher
	}
	if err := publisher.Publish(queue, wm); err != nil {
		return Message{}, fmt.Errorf("publish to queue %q: %w", queue, err)
	}
	return msg, nil
}

// Subscribe starts consuming queue. Deliveries arrive on the returned
// Subscription's channel in broker order until ctx is cancelled, Close is
// called, or the transport ends the stream.
func (c *Client) Subscribe(ctx context.Context, queue string, opts ...SubscribeOption) (*Subscription, error) {
	if queue == "" {
		return nil, errspkg.ErrQueueRequired
	}
	if c.closed.Load() {
		return nil, errspkg.ErrClientClosed
	}

	options := subscribeOptions{autoAck: true}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.autoAck && !c.transport.Capabilities.SupportsReliableDelivery() && c.transport.Capabilities.Name != "" {
		c.logger.Info("Transport cannot redeliver; nacked messages may be lost", logging.LogFields{"queue": queue})
	}

	subCtx, cancel := context.WithCancel(ctx)
	raw, err := c.transport.Subscriber.Subscribe(subCtx, queue)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to queue %q: %w", queue, err)
	}

	s := newSubscription(subCtx, cancel, queue, options.autoAck, c.logger)
	go s.pump(raw)
	return s, nil
}

// Close releases the transport. Further calls return nil.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.transport.Close()
}

func fromWatermill(queue string, raw *message.Message) Message {
	headers := metadata.FromWatermill(raw.Metadata)
	persistent := headers[metadata.KeyPersistent] == "true"
	delete(headers, metadata.KeyPersistent)

	return Message{
		ID:         raw.UUID,
		Queue:      queue,
		Payload:    bytes.Clone(raw.Payload),
		Headers:    headers,
		Persistent: persistent,
	}
}
