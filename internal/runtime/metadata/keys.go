package metadata

// Reserved header keys written by the producer path.
const (
	KeyCorrelationID = "correlation_id"
	KeyContentType   = "content_type"
	KeyPublishedAt   = "published_at"
)

// KeyPersistent records the delivery mode a message was published with so
// consumers can report it. The queue client strips it before handing headers
// to application code.
const KeyPersistent = "_persistent"
