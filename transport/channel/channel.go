// Package channel provides an in-memory Go channel transport. Messages
// published before any subscriber attaches are retained and replayed, which
// stands in for a durable queue in tests and local development. Publish waits
// for the subscriber's ack so live deliveries keep publish order; replayed
// messages carry no ordering guarantee.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/Depechie/2024-portotechhub-aspireotel/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// DefaultConfig retains published messages for late subscribers.
var DefaultConfig = gochannel.Config{
	OutputChannelBuffer:            256,
	Persistent:                     true,
	BlockPublishUntilSubscriberAck: true,
}

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
	_ = transport.Alias("gochannel", TransportName)
}

// Build creates a new Go channel transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	pub, sub := Factory(DefaultConfig, logger)
	return transport.Transport{
		Publisher:          pub,
		TransientPublisher: pub,
		Subscriber:         sub,
		Capabilities:       transport.ChannelCapabilities,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}
