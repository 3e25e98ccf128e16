package portotechhub

import (
	"context"
	"time"

	runtimepkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime"
	cachepkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/cache"
	configpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/config"
	errspkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/errors"
	idspkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/ids"
	jsoncodec "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/jsoncodec"
	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
	metadatapkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/metadata"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/propagation"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/queue"
	"github.com/Depechie/2024-portotechhub-aspireotel/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies

	Producer       = runtimepkg.Producer
	ProducerOption = runtimepkg.ProducerOption
	Consumer       = runtimepkg.Consumer
	ConsumerOption = runtimepkg.ConsumerOption
	MessageHandler = runtimepkg.MessageHandler
	InboundMessage = runtimepkg.InboundMessage
	Metrics        = runtimepkg.Metrics

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration

	JobContext = runtimepkg.JobContext
	JobHooks   = runtimepkg.JobHooks

	Message      = queue.Message
	Metadata     = metadatapkg.Metadata
	TraceContext = propagation.TraceContext
	Propagator   = propagation.Propagator

	CacheAside = cachepkg.Aside
	CacheStore = cachepkg.Store

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError = errspkg.ConfigValidationError

	Transport        = transport.Transport
	TransportBuilder = transport.Builder
	Capabilities     = transport.Capabilities
)

var (
	NewService     = runtimepkg.NewService
	LoadConfig     = configpkg.Load
	DefaultConfig  = configpkg.Default
	ValidateConfig = configpkg.ValidateConfig

	NewMetrics        = runtimepkg.NewMetrics
	NewTracerProvider = runtimepkg.NewTracerProvider

	WithTransientDelivery     = runtimepkg.WithTransientDelivery
	WithWorkers               = runtimepkg.WithWorkers
	WithManualAck             = runtimepkg.WithManualAck
	WithHooks                 = runtimepkg.WithHooks
	WithMiddleware            = runtimepkg.WithMiddleware
	WithoutDefaultMiddlewares = runtimepkg.WithoutDefaultMiddlewares

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	JobHooksMiddleware      = runtimepkg.JobHooksMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware
	LoggingHooks            = runtimepkg.LoggingHooks

	NewCache         = cachepkg.New
	NewRedisStore    = cachepkg.NewRedisStore
	NewMemoryStore   = cachepkg.NewMemoryStore
	WithSingleFlight = cachepkg.WithSingleFlight
	WithFailOpen     = cachepkg.WithFailOpen
	WithCacheLogger  = cachepkg.WithLogger
	WithObserver     = cachepkg.WithObserver

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal

	ErrConfigRequired       = errspkg.ErrConfigRequired
	ErrLoggerRequired       = errspkg.ErrLoggerRequired
	ErrHandlerRequired      = errspkg.ErrHandlerRequired
	ErrPublisherRequired    = errspkg.ErrPublisherRequired
	ErrSubscriberRequired   = errspkg.ErrSubscriberRequired
	ErrQueueRequired        = errspkg.ErrQueueRequired
	ErrQueueDeclareMismatch = errspkg.ErrQueueDeclareMismatch
	ErrSubscriptionClosed   = errspkg.ErrSubscriptionClosed
	ErrClientClosed         = errspkg.ErrClientClosed
	ErrInvalidTTL           = errspkg.ErrInvalidTTL

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewSlogHandler       = loggingpkg.NewSlogHandler

	NewMetadata     = metadatapkg.New
	NewMessageID    = idspkg.NewMessageID
	NewPropagator   = propagation.New
	GetCapabilities = transport.GetCapabilities
	BuildTransport  = transport.Build
)

// Metadata keys written by the producer.
const (
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyContentType   = metadatapkg.KeyContentType
	MetadataKeyPublishedAt   = metadatapkg.KeyPublishedAt
)

// GetOrComputeJSON is the typed form of CacheAside.GetOrCompute.
func GetOrComputeJSON[T any](ctx context.Context, a *CacheAside, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	return cachepkg.GetOrComputeJSON(ctx, a, key, ttl, compute)
}
