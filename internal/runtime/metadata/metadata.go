// Package metadata holds the flat string header map that travels with every
// queued message. Trace context is carried in it by the propagation package.
package metadata

import (
	"maps"
	"slices"
)

// Metadata represents the headers carried alongside a message.
type Metadata map[string]string

func (m Metadata) cloneWithExtra(extra int) Metadata {
	cloned := make(Metadata, len(m)+extra)
	maps.Copy(cloned, m)
	return cloned
}

// Clone returns a shallow copy of the metadata map. Cloning a nil map yields
// an empty, writable map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

// WithAll returns a cloned metadata map containing the supplied entries.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := m.cloneWithExtra(len(entries))
	maps.Copy(cloned, entries)
	return cloned
}

// Get returns the value stored under key. Lookup is exact and case-sensitive.
func (m Metadata) Get(key string) string {
	return m[key]
}

// Set stores value under key. Calling Set on a nil map is a no-op.
func (m Metadata) Set(key, value string) {
	if m == nil {
		return
	}
	m[key] = value
}

// Keys lists the keys in lexical order.
func (m Metadata) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}
