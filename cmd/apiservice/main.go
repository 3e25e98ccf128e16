// Command apiservice serves the weather forecast and todo endpoints and
// publishes a traced message to the orders queue on every forecast request.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/Depechie/2024-portotechhub-aspireotel/internal/api"
	runtimepkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/cache"
	configpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/config"
	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/todos"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/weather"
	_ "github.com/Depechie/2024-portotechhub-aspireotel/transport/transports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("apiservice stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	conf, err := configpkg.Load(configpkg.WithServiceName("apiservice"))
	if err != nil {
		return err
	}

	handler, err := loggingpkg.NewSlogHandler(conf.LogLevel, conf.LogFormat, os.Stdout)
	if err != nil {
		return err
	}
	slogger := slog.New(handler)
	warnInProcessTransport(conf, slogger)
	logger := loggingpkg.NewSlogServiceLogger(slogger).With(loggingpkg.LogFields{"service": conf.ServiceName})

	svc, err := runtimepkg.NewService(ctx, conf, logger, runtimepkg.ServiceDependencies{
		Metrics: runtimepkg.NewMetrics(),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			logger.Error("Failed to close service", err, nil)
		}
	}()

	// The queue is declared up front so messages published before the
	// worker starts are retained.
	if err := svc.Queue().Declare(ctx, conf.QueueName); err != nil {
		return err
	}
	producer, err := svc.Producer(conf.QueueName)
	if err != nil {
		return err
	}

	healthChecks := map[string]api.HealthCheck{}

	store, closeStore := cacheStore(conf, healthChecks)
	defer closeStore()

	cacheOpts := []cache.Option{
		cache.WithLogger(logger),
		cache.WithObserver(svc.Metrics().CacheObserver()),
	}
	if conf.CacheSingleFlight {
		cacheOpts = append(cacheOpts, cache.WithSingleFlight())
	}
	if conf.CacheFailOpen {
		cacheOpts = append(cacheOpts, cache.WithFailOpen())
	}
	aside, err := cache.New(store, cacheOpts...)
	if err != nil {
		return err
	}

	deps := api.Dependencies{
		Publisher:      producer,
		Forecasts:      weather.NewService(aside, weather.NewGenerator(), conf.CacheTTL),
		Logger:         logger,
		Metrics:        svc.Metrics(),
		Propagator:     svc.Propagator(),
		TracerProvider: svc.TracerProvider(),
		HealthChecks:   healthChecks,
		Development:    conf.IsDevelopment(),
	}

	if conf.PostgresURL != "" {
		db, err := todos.Open(ctx, conf.PostgresURL)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		todoStore, err := todos.New(db)
		if err != nil {
			return err
		}
		if err := todoStore.EnsureSchema(ctx); err != nil {
			return err
		}
		deps.Todos = todoStore
		healthChecks["postgres"] = todoStore.Ping
	} else {
		logger.Info("POSTGRES_URL not set, todo endpoints disabled", nil)
	}

	server, err := api.NewServer(deps)
	if err != nil {
		return err
	}

	return server.Run(ctx, conf.HTTPAddress)
}

// cacheStore picks Redis when an address is configured and an in-process map otherwise.
func cacheStore(conf *configpkg.Config, healthChecks map[string]api.HealthCheck) (cache.Store, func()) {
	if conf.RedisAddr == "" {
		return cache.NewMemoryStore(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})
	store := cache.NewRedisStore(client)
	healthChecks["redis"] = store.Ping
	return store, func() { _ = client.Close() }
}

// warnInProcessTransport flags the channel broker: it keeps messages inside
// this process, so workerservice never sees them.
func warnInProcessTransport(conf *configpkg.Config, log *slog.Logger) {
	if !conf.InProcessTransport() {
		return
	}
	log.Warn("In-process transport selected; messages are not shared with workerservice. Set PUBSUB_SYSTEM to rabbitmq or aws",
		"pubsub_system", conf.PubSubSystem, "queue", conf.QueueName)
}
