package transport

// Capabilities describes the delivery guarantees of a transport backend.
type Capabilities struct {
	// Name is the human-readable name of the transport.
	Name string

	// SupportsDurability indicates queued messages survive a broker restart
	// when published persistent.
	SupportsDurability bool

	// SupportsOrdering indicates per-queue FIFO delivery to a single consumer.
	SupportsOrdering bool

	// SupportsDeclare indicates the subscriber can declare a queue ahead of
	// consumption (watermill's SubscribeInitializer).
	SupportsDeclare bool

	// SupportsAck indicates the transport supports explicit message acknowledgment.
	SupportsAck bool

	// SupportsNack indicates the transport supports negative acknowledgment (redelivery).
	SupportsNack bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64
}

// SupportsReliableDelivery returns true if the transport supports at-least-once
// delivery semantics (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// Predefined capability sets for the bundled transports.
var (
	// ChannelCapabilities for the in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// RabbitMQCapabilities for RabbitMQ durable queues.
	RabbitMQCapabilities = Capabilities{
		Name:               "rabbitmq",
		SupportsDurability: true,
		SupportsOrdering:   true,
		SupportsDeclare:    true,
		SupportsAck:        true,
		SupportsNack:       true,
		MaxMessageSize:     134217728, // 128MB broker default
	}

	// AWSCapabilities for Amazon SQS standard queues.
	AWSCapabilities = Capabilities{
		Name:               "aws",
		SupportsDurability: true,
		SupportsOrdering:   false,
		SupportsDeclare:    true,
		SupportsAck:        true,
		SupportsNack:       true,
		MaxMessageSize:     262144, // 256KB
	}
)

// GetCapabilities returns the capabilities for a transport by name.
// Returns a zero Capabilities struct if the transport is unknown.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
