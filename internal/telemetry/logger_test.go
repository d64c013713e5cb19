package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestLoggerAddsRequestAndTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(),
		trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID}))
	ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-1")

	logger.With("component", "shop").InfoContext(ctx, "order placed")

	rec := decode(t, &buf)
	assert.Equal(t, "order placed", rec["msg"])
	assert.Equal(t, "req-1", rec["request_id"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", rec["span_id"])
	assert.Equal(t, "shop", rec["component"])
}

func TestLoggerPlainContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.InfoContext(context.Background(), "dropped")
	assert.Zero(t, buf.Len())

	logger.WarnContext(context.Background(), "kept")
	rec := decode(t, &buf)
	assert.NotContains(t, rec, "trace_id")
	assert.NotContains(t, rec, "request_id")
}
