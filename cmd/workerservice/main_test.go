package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	runtimepkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime"
	configpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/config"
	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
)

func TestLogMessage(t *testing.T) {
	capture := watermill.NewCaptureLogger()
	handler := logMessage(loggingpkg.NewWatermillServiceLogger(capture))

	err := handler(context.Background(), runtimepkg.InboundMessage{ID: "m-1", Queue: "orders", Text: "Hello World!"})
	require.NoError(t, err)

	infos := capture.Captured()[watermill.InfoLogLevel]
	require.Len(t, infos, 1)
	assert.Equal(t, "Message received: Hello World!", infos[0].Msg)
	assert.Equal(t, "m-1", infos[0].Fields["message_id"])
}

func TestWarnInProcessTransport(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	conf := configpkg.Default()
	conf.PubSubSystem = "channel"
	warnInProcessTransport(conf, log)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "pubsub_system=channel")

	buf.Reset()
	conf.PubSubSystem = "rabbitmq"
	warnInProcessTransport(conf, log)
	assert.Empty(t, buf.String())
}
