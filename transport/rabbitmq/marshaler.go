package rabbitmq

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/ids"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/metadata"
)

// HeaderTolerantMarshaler accepts deliveries from producers that are not
// Watermill based. Header values that are not strings (byte arrays written by
// other AMQP clients, numbers, booleans) are converted to strings, and a
// message id is assigned when the Watermill uuid header is absent.
type HeaderTolerantMarshaler struct {
	amqp.DefaultMarshaler
}

func (m HeaderTolerantMarshaler) Marshal(msg *message.Message) (amqp091.Publishing, error) {
	publishing, err := m.DefaultMarshaler.Marshal(msg)
	if err != nil {
		return publishing, err
	}
	publishing.MessageId = msg.UUID
	if ct := msg.Metadata.Get(metadata.KeyContentType); ct != "" {
		publishing.ContentType = ct
	}
	return publishing, nil
}

func (m HeaderTolerantMarshaler) Unmarshal(delivery amqp091.Delivery) (*message.Message, error) {
	uuidKey := m.uuidHeaderKey()

	headers := make(amqp091.Table, len(delivery.Headers)+1)
	for key, value := range delivery.Headers {
		headers[key] = headerString(value)
	}
	if id, _ := headers[uuidKey].(string); id == "" {
		switch {
		case delivery.MessageId != "":
			headers[uuidKey] = delivery.MessageId
		default:
			headers[uuidKey] = ids.NewMessageID()
		}
	}
	delivery.Headers = headers

	return m.DefaultMarshaler.Unmarshal(delivery)
}

func (m HeaderTolerantMarshaler) uuidHeaderKey() string {
	if m.MessageUUIDHeaderKey != "" {
		return m.MessageUUIDHeaderKey
	}
	return amqp.DefaultMessageUUIDHeaderKey
}

func headerString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
