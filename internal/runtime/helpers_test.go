package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	configpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/config"
	loggingpkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
	"github.com/Depechie/2024-portotechhub-aspireotel/transport/channel"
)

type logEntry struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	fields  loggingpkg.LogFields
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (l *recordingLogger) record(level, msg string, err error, fields loggingpkg.LogFields) {
	merged := loggingpkg.LogFields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.mu.Lock()
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg, err: err, fields: merged})
	l.mu.Unlock()
}

func (l *recordingLogger) With(fields loggingpkg.LogFields) loggingpkg.ServiceLogger {
	merged := loggingpkg.LogFields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &recordingLogger{mu: l.mu, entries: l.entries, fields: merged}
}

func (l *recordingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	l.record("debug", msg, nil, fields)
}

func (l *recordingLogger) Info(msg string, fields loggingpkg.LogFields) {
	l.record("info", msg, nil, fields)
}

func (l *recordingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	l.record("error", msg, err, fields)
}

func (l *recordingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	l.record("trace", msg, nil, fields)
}

func (l *recordingLogger) find(msg string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range *l.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

type testHarness struct {
	svc      *Service
	recorder *tracetest.SpanRecorder
	logger   *recordingLogger
}

// newTestService builds a Service over the in-memory channel transport with
// spans captured by a SpanRecorder.
func newTestService(t *testing.T, deps ServiceDependencies) testHarness {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	if deps.TransportBuilder == nil {
		deps.TransportBuilder = channel.Build
	}
	if deps.TracerProvider == nil {
		deps.TracerProvider = tp
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}

	conf := configpkg.Default()
	conf.PubSubSystem = "channel"

	logger := newRecordingLogger()
	svc, err := NewService(context.Background(), conf, logger, deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	return testHarness{svc: svc, recorder: recorder, logger: logger}
}

// runConsumer runs c until the test ends and returns a channel with Run's result.
func runConsumer(t *testing.T, c *Consumer) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		done <- c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-finished:
		case <-time.After(5 * time.Second):
		}
	})
	return cancel, done
}

func endedSpan(recorder *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	for _, s := range recorder.Ended() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}
