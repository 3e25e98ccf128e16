// Package transport defines the broker abstraction used by the queue client.
// Each broker implementation (rabbitmq, aws, channel) lives in its own
// sub-package and registers itself with the transport registry.
package transport

import (
	"context"
	"errors"
	"reflect"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport bundles the publishers and subscriber produced by a builder.
//
// TransientPublisher publishes with non-persistent delivery mode where the
// broker distinguishes it; otherwise it is the same value as Publisher.
type Transport struct {
	Publisher          message.Publisher
	TransientPublisher message.Publisher
	Subscriber         message.Subscriber
	Capabilities       Capabilities
}

type closer interface{ Close() error }

// Close releases the publishers and subscriber. Shared instances are closed
// once; values that cannot be compared are always closed.
func (t Transport) Close() error {
	var errs []error
	var closed []closer
	for _, c := range []closer{t.Publisher, t.TransientPublisher, t.Subscriber} {
		if isNil(c) || containsInstance(closed, c) {
			continue
		}
		closed = append(closed, c)
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isNil(c closer) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func containsInstance(seen []closer, c closer) bool {
	for _, s := range seen {
		if SameInstance(s, c) {
			return true
		}
	}
	return false
}

// SameInstance reports whether a and b hold the same value. Values whose
// dynamic type cannot be compared, including structs wrapping such values,
// are never the same instance.
func SameInstance(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// Builder is the function signature for creating a transport from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the configuration values needed by transports.
// This interface allows transports to access only the config they need
// without depending on the full config package.
type Config interface {
	// GetPubSubSystem returns the transport type name.
	GetPubSubSystem() string

	// RabbitMQ
	GetRabbitMQURL() string
	GetRabbitMQClientName() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by transports that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
