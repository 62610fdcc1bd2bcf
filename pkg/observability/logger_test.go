package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/platinummonkey/taskcore/pkg/contextkeys"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		assert.Zero(t, buf.Len())
	})

	t.Run("info logged as JSON", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")
		entry := decodeEntry(t, &buf)
		assert.Equal(t, "info", entry["level"])
		assert.Equal(t, "info message", entry["message"])
		assert.Contains(t, entry, "time")
	})

	t.Run("fields are preserved", func(t *testing.T) {
		buf.Reset()
		logger.WithField("code", "AUTH_001").Warn("rejected")
		entry := decodeEntry(t, &buf)
		assert.Equal(t, "AUTH_001", entry["code"])
		assert.Equal(t, "warning", entry["level"])
	})
}

func TestSetLevel(t *testing.T) {
	logger := NewLogger("warn", &bytes.Buffer{})
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	assert.True(t, SetLevel(logger, "debug"))
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	assert.False(t, SetLevel(logger, "loud"))
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNewLogger_UnknownLevelDefaultsToInfo(t *testing.T) {
	logger := NewLogger("verbose", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger("info", &buf)

	t.Run("empty context returns base", func(t *testing.T) {
		assert.Same(t, base, FromContext(context.Background(), base))
	})

	t.Run("request and user ids", func(t *testing.T) {
		buf.Reset()
		ctx := contextkeys.WithRequestID(context.Background(), "req-1")
		ctx = contextkeys.WithUserID(ctx, 42)
		FromContext(ctx, base).Info("hello")

		entry := decodeEntry(t, &buf)
		assert.Equal(t, "req-1", entry["request_id"])
		assert.Equal(t, float64(42), entry["user_id"])
	})

	t.Run("trace ids from active span", func(t *testing.T) {
		buf.Reset()
		tp := sdktrace.NewTracerProvider()
		defer func() { _ = tp.Shutdown(context.Background()) }()
		ctx, span := tp.Tracer("test").Start(context.Background(), "op")
		defer span.End()

		FromContext(ctx, base).Info("traced")
		entry := decodeEntry(t, &buf)
		assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
	})

	t.Run("stored logger wins", func(t *testing.T) {
		stored := base.WithField("component", "api")
		ctx := WithLogger(contextkeys.WithRequestID(context.Background(), "req-2"), stored)
		assert.Equal(t, stored, FromContext(ctx, base))
	})
}
