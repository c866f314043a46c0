package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "theme", "population")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "population", entry["theme"])
}

func TestEnrich(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, "info", "json")

	ctx := WithRunID(context.Background(), "run-1")
	ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-7")
	assert.Equal(t, "run-1", RunID(ctx))

	Enrich(ctx, base).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "req-7", entry["request_id"])
}

func TestEnrich_EmptyContext(t *testing.T) {
	var buf bytes.Buffer
	Enrich(context.Background(), New(&buf, "info", "json")).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "run_id")
	assert.NotContains(t, entry, "request_id")
	assert.Equal(t, "", RunID(context.Background()))
}
