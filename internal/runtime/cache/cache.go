// Package cache implements the cache-aside read path: look the key up, and on
// a miss compute the value, store it with a TTL and return it. Entries are
// never invalidated explicitly; they live until the store expires them.
package cache

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	errspkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/errors"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/jsoncodec"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
)

// Store is an external key/value cache with per-entry expiry.
type Store interface {
	// Get returns the value and true on a hit, or false when the key is absent
	// or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set atomically replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ComputeFunc produces the value for a missing key.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Result classifies a lookup for observers.
type Result string

const (
	ResultHit   Result = "hit"
	ResultMiss  Result = "miss"
	ResultError Result = "error"
)

// Aside is a cache-aside accessor over a Store.
type Aside struct {
	store    Store
	logger   logging.ServiceLogger
	observe  func(Result)
	failOpen bool
	group    *singleflight.Group
}

// Option configures an Aside.
type Option func(*Aside)

// WithSingleFlight collapses concurrent misses for the same key into one
// compute call. Without it every concurrent miss computes independently.
func WithSingleFlight() Option {
	return func(a *Aside) {
		a.group = &singleflight.Group{}
	}
}

// WithFailOpen treats store read errors as misses and logs store write errors
// instead of returning them.
func WithFailOpen() Option {
	return func(a *Aside) {
		a.failOpen = true
	}
}

// WithLogger sets the logger used for fail-open diagnostics.
func WithLogger(logger logging.ServiceLogger) Option {
	return func(a *Aside) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithObserver registers a callback invoked once per lookup with its result.
func WithObserver(fn func(Result)) Option {
	return func(a *Aside) {
		a.observe = fn
	}
}

// New returns an accessor over store.
func New(store Store, opts ...Option) (*Aside, error) {
	if store == nil {
		return nil, errspkg.ErrCacheStoreRequired
	}
	a := &Aside{
		store:   store,
		logger:  logging.Nop(),
		observe: func(Result) {},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// GetOrCompute returns the cached bytes for key. On a miss it calls compute,
// stores the result for ttl and returns it. compute is not called on a hit.
func (a *Aside) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) ([]byte, error) {
	switch {
	case key == "":
		return nil, errspkg.ErrCacheKeyRequired
	case compute == nil:
		return nil, errspkg.ErrComputeRequired
	case ttl <= 0:
		return nil, errspkg.ErrInvalidTTL
	}

	value, hit, err := a.lookup(ctx, key)
	if err != nil {
		a.observe(ResultError)
		return nil, err
	}
	if hit {
		a.observe(ResultHit)
		return value, nil
	}
	a.observe(ResultMiss)

	if a.group == nil {
		return a.fill(ctx, key, ttl, compute)
	}

	v, err, _ := a.group.Do(key, func() (any, error) {
		// another flight may have filled the key while we waited
		if value, hit, err := a.lookup(ctx, key); err == nil && hit {
			return value, nil
		}
		return a.fill(ctx, key, ttl, compute)
	})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(v.([]byte)), nil
}

func (a *Aside) lookup(ctx context.Context, key string) ([]byte, bool, error) {
	value, hit, err := a.store.Get(ctx, key)
	if err == nil {
		return value, hit, nil
	}
	if a.failOpen {
		a.logger.Error("Cache read failed; computing value", err, logging.LogFields{"key": key})
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("cache get %q: %w", key, err)
}

func (a *Aside) fill(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) ([]byte, error) {
	value, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.store.Set(ctx, key, value, ttl); err != nil {
		if !a.failOpen {
			return nil, fmt.Errorf("cache set %q: %w", key, err)
		}
		a.logger.Error("Cache write failed; returning computed value", err, logging.LogFields{"key": key})
	}
	return value, nil
}

// GetOrComputeJSON is GetOrCompute for values serialised as JSON.
func GetOrComputeJSON[T any](ctx context.Context, a *Aside, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	raw, err := a.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return jsoncodec.Marshal(v)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, err := jsoncodec.Decode[T](raw)
	if err != nil {
		return out, fmt.Errorf("decode cached %q: %w", key, err)
	}
	return out, nil
}
