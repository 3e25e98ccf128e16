package transport

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
)

var (
	// ErrConfigRequired is returned by Build when no config is supplied.
	ErrConfigRequired = errors.New("transport: config is required")
	// ErrUnknownTransport is returned by Build when PUBSUB_SYSTEM names no registered transport.
	ErrUnknownTransport = errors.New("transport: unknown transport")
)

type entry struct {
	builder Builder
	caps    Capabilities
}

// Registry maps PUBSUB_SYSTEM values to transport builders. Transport packages
// register themselves from init.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// DefaultRegistry is the process-wide registry the transport packages populate.
var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds builder under name with zero capabilities.
func (r *Registry) Register(name string, builder Builder) {
	r.RegisterWithCapabilities(name, builder, Capabilities{Name: name})
}

// RegisterWithCapabilities adds builder under name. A later registration
// under the same name replaces the earlier one.
func (r *Registry) RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	r.mu.Lock()
	r.entries[name] = entry{builder: builder, caps: caps}
	r.mu.Unlock()
}

// Alias makes alias resolve to whatever is registered under name.
func (r *Registry) Alias(alias, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTransport, name)
	}
	r.entries[alias] = e
	return nil
}

// GetCapabilities returns the capabilities registered for name, or a zero
// value carrying only the name.
func (r *Registry) GetCapabilities(name string) Capabilities {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return Capabilities{Name: name}
	}
	return e.caps
}

// Build resolves cfg.GetPubSubSystem() and runs the matching builder.
func (r *Registry) Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	if cfg == nil {
		return Transport{}, ErrConfigRequired
	}

	name := cfg.GetPubSubSystem()
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return Transport{}, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownTransport, name, r.Names())
	}

	t, err := e.builder(ctx, cfg, logger)
	if err != nil {
		return Transport{}, err
	}
	if t.TransientPublisher == nil {
		t.TransientPublisher = t.Publisher
	}
	if t.Capabilities.Name == "" {
		t.Capabilities = e.caps
	}
	return t, nil
}

// Names lists registered names, aliases included, in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

func Register(name string, builder Builder) {
	DefaultRegistry.Register(name, builder)
}

func RegisterWithCapabilities(name string, builder Builder, caps Capabilities) {
	DefaultRegistry.RegisterWithCapabilities(name, builder, caps)
}

// Alias registers alias for name on the default registry.
func Alias(alias, name string) error {
	return DefaultRegistry.Alias(alias, name)
}

// Build creates a transport from the default registry.
func Build(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error) {
	return DefaultRegistry.Build(ctx, cfg, logger)
}
