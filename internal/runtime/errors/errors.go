package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrServiceRequired      = sterrors.New("portotechhub: service is required")
	ErrConfigRequired       = sterrors.New("portotechhub: configuration is required")
	ErrLoggerRequired       = sterrors.New("portotechhub: logger is required")
	ErrHandlerRequired      = sterrors.New("portotechhub: handler function is required")
	ErrPublisherRequired    = sterrors.New("portotechhub: publisher is required")
	ErrSubscriberRequired   = sterrors.New("portotechhub: subscriber is required")
	ErrQueueRequired        = sterrors.New("portotechhub: queue name is required")
	ErrPropagatorRequired   = sterrors.New("portotechhub: context propagator is required")
	ErrCacheStoreRequired   = sterrors.New("portotechhub: cache store is required")
	ErrCacheKeyRequired     = sterrors.New("portotechhub: cache key is required")
	ErrComputeRequired      = sterrors.New("portotechhub: compute function is required")
	ErrInvalidTTL           = sterrors.New("portotechhub: cache ttl must be positive")
	ErrQueueDeclareMismatch = sterrors.New("portotechhub: queue exists with different properties")
	ErrSubscriptionClosed   = sterrors.New("portotechhub: subscription is closed")
	ErrClientClosed         = sterrors.New("portotechhub: queue client is closed")
	ErrTodoNotFound         = sterrors.New("portotechhub: todo not found")
	ErrDatabaseRequired     = sterrors.New("portotechhub: database is required")
)

// ConfigValidationError reports every problem found while validating a Config.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("portotechhub: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err, returning nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
