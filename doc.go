// Package portotechhub wires a traced durable-queue producer and consumer, a
// cache-aside reader, and the todo store behind the demo API and worker
// processes.
//
// A Service reads the target transport (RabbitMQ, AWS SQS or in-memory Go
// channels) from Config, builds the queue client on top of it, and owns the
// context propagator, tracer provider and Prometheus metrics shared by its
// producers and consumers. A Producer publishes each message inside a
// "<Queue> publish" span and writes that span's context into the message
// headers; a Consumer restores it and handles the message inside a
// "<Queue> consume" child span, so both processes report one trace.
//
// # Transports
//
//   - channel: in-memory Go channels for tests and local runs
//   - rabbitmq: AMQP durable queues with persistent or transient delivery
//   - aws: SQS queues with LocalStack support
//
// Import a transport package for its side effect to register it, for example
// _ "github.com/Depechie/2024-portotechhub-aspireotel/transport/rabbitmq".
//
// # Middleware
//
// Every delivery runs through correlation ID injection, trace extraction,
// logging, metrics, job hooks and panic recovery before reaching the
// MessageHandler. Extra middleware is appended via ServiceDependencies or
// WithMiddleware.
//
// # Cache
//
// CacheAside implements read-through caching over a Store: Redis in
// production, an in-memory map when no Redis address is configured.
package portotechhub
