// Package rabbitmq provides a RabbitMQ transport backed by durable,
// non-exclusive queues addressed through the default exchange.
package rabbitmq

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/Depechie/2024-portotechhub-aspireotel/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "rabbitmq"

// DefaultClientName is reported to the broker as the connection name.
const DefaultClientName = "app:event-producer"

// ConnectionFactory allows overriding the connection creation for testing.
var ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
	return amqp.NewConnection(cfg, logger)
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
	return amqp.NewPublisherWithConnection(cfg, logger, conn)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Subscriber, error) {
	return amqp.NewSubscriberWithConnection(cfg, logger, conn)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.RabbitMQCapabilities)
}

// Build dials one connection and shares it between a persistent publisher,
// a transient publisher and the subscriber. Reconnection is handled by the
// connection wrapper.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	connCfg := connectionConfig(cfg.GetRabbitMQURL(), cfg.GetRabbitMQClientName())

	conn, err := ConnectionFactory(connCfg, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	publisher, err := PublisherFactory(queueConfig(connCfg, false), logger, conn)
	if err != nil {
		return transport.Transport{}, err
	}

	transient, err := PublisherFactory(queueConfig(connCfg, true), logger, conn)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(queueConfig(connCfg, false), logger, conn)
	if err != nil {
		_ = publisher.Close()
		_ = transient.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:          publisher,
		TransientPublisher: transient,
		Subscriber:         subscriber,
		Capabilities:       transport.RabbitMQCapabilities,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.RabbitMQCapabilities
}

func connectionConfig(url, clientName string) amqp.ConnectionConfig {
	if clientName == "" {
		clientName = DefaultClientName
	}
	return amqp.ConnectionConfig{
		AmqpURI: url,
		AmqpConfig: &amqp091.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Properties: amqp091.Table{
				"connection_name": clientName,
			},
		},
		Reconnect: amqp.DefaultReconnectConfig(),
	}
}

// queueConfig declares durable, non-exclusive, non-auto-delete queues named
// after the topic and publishes through the default exchange with the queue
// name as routing key.
func queueConfig(connCfg amqp.ConnectionConfig, transient bool) amqp.Config {
	c := amqp.NewDurableQueueConfig(connCfg.AmqpURI)
	c.Connection = connCfg
	c.Marshaler = HeaderTolerantMarshaler{
		DefaultMarshaler: amqp.DefaultMarshaler{NotPersistentDeliveryMode: transient},
	}
	// one unacked delivery at a time keeps a single consumer in publish order
	c.Consume.Qos.PrefetchCount = 1
	return c
}
