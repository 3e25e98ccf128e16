package metadata

import (
	"maps"

	"github.com/ThreeDotsLabs/watermill/message"
)

// FromWatermill copies a received message's metadata into a header map.
func FromWatermill(md message.Metadata) Metadata {
	return copyHeaders(md)
}

// ToWatermill copies headers for hand-off to a transport, so later writes by
// the caller never reach an in-flight message.
func ToWatermill(md Metadata) message.Metadata {
	return message.Metadata(copyHeaders(md))
}

func copyHeaders[M ~map[string]string](src M) Metadata {
	if len(src) == 0 {
		return Metadata{}
	}
	return Metadata(maps.Clone(map[string]string(src)))
}
