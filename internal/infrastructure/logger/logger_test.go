package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_WritesToStderrStream(t *testing.T) {
	var buf bytes.Buffer
	log, closeLog, err := New(Config{Level: "info", Format: "json", Output: "stderr"}, &buf)
	require.NoError(t, err)
	defer closeLog()

	log.Debug("dropped")
	log.Info("kept", zap.String("key", "value"))

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"key":"value"`)
}

func TestNew_DefaultsToWarnConsole(t *testing.T) {
	var buf bytes.Buffer
	log, closeLog, err := New(Config{}, &buf)
	require.NoError(t, err)
	defer closeLog()

	log.Info("quiet")
	log.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "loud")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chemctl.log")
	var stderr bytes.Buffer

	log, closeLog, err := New(Config{Level: "debug", Format: "json", Output: path}, &stderr)
	require.NoError(t, err)
	log.Debug("written to file")
	require.NoError(t, log.Sync())
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written to file"`)
	assert.Empty(t, stderr.String())
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New(Config{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	t.Run("missing logger falls back to nop", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})

	t.Run("request id and profile are attached", func(t *testing.T) {
		ctx := WithContext(context.Background(), base)
		ctx, l := WithProfile(ctx, FromContext(ctx), "field")
		ctx, _ = WithRequestID(ctx, l, "req-1")

		L(ctx).Info("hello")

		require.Equal(t, 1, logs.Len())
		fields := logs.All()[0].ContextMap()
		assert.Equal(t, "field", fields["profile"])
		assert.Equal(t, "req-1", fields["request_id"])
		assert.Equal(t, "req-1", GetRequestID(ctx))
		assert.Equal(t, "field", GetProfile(ctx))
	})

	t.Run("trace ids are attached when a span is active", func(t *testing.T) {
		traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
		spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: trace.FlagsSampled,
		})
		ctx := trace.ContextWithSpanContext(WithContext(context.Background(), base), sc)

		L(ctx).Info("traced")

		last := logs.All()[logs.Len()-1].ContextMap()
		assert.Equal(t, traceID.String(), last["trace_id"])
		assert.Equal(t, spanID.String(), last["span_id"])
		assert.Equal(t, traceID.String(), GetTraceID(ctx))
	})

	t.Run("no span leaves logger unchanged", func(t *testing.T) {
		assert.Empty(t, GetTraceID(context.Background()))
	})
}
