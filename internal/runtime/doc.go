/*
Package runtime wires the traced messaging path shared by the API and worker
processes.

# Architecture Overview

A Service builds a transport from configuration and layers the queue client,
the context propagator, a tracer provider and Prometheus metrics on top of
it. Producers and consumers are created from the Service and share those
collaborators.

# Package Structure

## Core Service (service.go)

The Service struct is the central orchestrator that wires together:
  - The queue client over the configured transport
  - The context propagator used on both sides of the queue
  - The tracer provider (owned by the Service unless injected)
  - Metrics and the HTTP servers that expose them

## Producer (producer.go)

Producer.Publish opens a "<Queue> publish" producer span, writes its context
and a correlation ID into fresh message headers, and publishes the payload.

## Consumer (consumer.go)

Consumer.Run declares the queue, subscribes and feeds deliveries to a pool of
workers. Each delivery passes through the middleware chain before reaching
the MessageHandler.

## Middleware (middleware.go)

  - CorrelationID: ensures every message carries a correlation ID
  - Tracer: restores the producer's trace and opens a "<Queue> consume" span
  - LogMessages: logs each delivery with its trace ids
  - Metrics: counts outcomes and records handler latency
  - JobHooks: lifecycle callbacks (hooks.go)
  - Recoverer: converts handler panics into errors

# Sub-packages

  - cache/: Cache-aside accessor with Redis and in-memory stores
  - config/: Service configuration with validation
  - errors/: Sentinel errors and error types
  - ids/: ULID generation for message and correlation IDs
  - jsoncodec/: JSON marshaling utilities
  - logging/: Logger interface and adapters
  - metadata/: Message header utilities
  - propagation/: Trace context injection into and extraction from headers
  - queue/: Durable queue client, subscriptions and deliveries

# Usage Example

	svc, err := runtime.NewService(ctx, cfg, logger, runtime.ServiceDependencies{})
	if err != nil {
		return err
	}
	defer svc.Close(ctx)

	producer, _ := svc.Producer("orders")
	producer.PublishText(ctx, "Hello World!")

	svc.Consumer("orders", func(ctx context.Context, msg runtime.InboundMessage) error {
		logger.Info("Message received: "+msg.Text, nil)
		return nil
	})
	return svc.Start(ctx)
*/
package runtime
