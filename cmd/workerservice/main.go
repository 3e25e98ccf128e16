// Command workerservice consumes the orders queue and logs each message
// under the trace started by the API process.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	runtimepkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime"
	configpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/config"
	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
	_ "github.com/Depechie/2024-portotechhub-aspireotel/transport/transports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("workerservice stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	conf, err := configpkg.Load(configpkg.WithServiceName("workerservice"))
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
		Hooks: runtimepkg.LoggingHooks(logger),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			logger.Error("Failed to close service", err, nil)
		}
	}()

	if m := svc.Metrics(); m != nil && conf.MetricsPort > 0 {
		svc.RegisterHTTPHandler(conf.MetricsPort, "/metrics", m.Handler())
	}

	if _, err := svc.Consumer(conf.QueueName, logMessage(logger)); err != nil {
		return err
	}
	return svc.Start(ctx)
}

func logMessage(logger loggingpkg.ServiceLogger) runtimepkg.MessageHandler {
	return func(ctx context.Context, msg runtimepkg.InboundMessage) error {
		fields := loggingpkg.TraceFields(ctx)
		if fields == nil {
			fields = loggingpkg.LogFields{}
		}
		fields["message_id"] = msg.ID
		logger.Info("Message received: "+msg.Text, fields)
		return nil
	}
}

// warnInProcessTransport flags the channel broker: it keeps messages inside
// this process, so apiservice never sees them.
func warnInProcessTransport(conf *configpkg.Config, log *slog.Logger) {
	if !conf.InProcessTransport() {
		return
	}
	log.Warn("In-process transport selected; messages are not shared with apiservice. Set PUBSUB_SYSTEM to rabbitmq or aws",
		"pubsub_system", conf.PubSubSystem, "queue", conf.QueueName)
}
