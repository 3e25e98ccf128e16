package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewMessageID returns a time-sortable ULID used as the broker message id.
func NewMessageID() string {
	return newULID(time.Now()).String()
}

// NewCorrelationID returns a fresh correlation identifier for a publish call.
func NewCorrelationID() string {
	return newULID(time.Now()).String()
}

// Timestamp reports the creation time encoded in a ULID string.
func Timestamp(id string) (time.Time, bool) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, false
	}
	return ulid.Time(parsed.Time()), true
}

func newULID(at time.Time) ulid.ULID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy)
}
