package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLoggerWritesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentAPI, Output: &buf, NoColor: true})

	logger.Info("request done", NewFields().WithRequest("GET", "/api/balance", 200, 12).ToSlice()...)
	out := buf.String()
	assert.Contains(t, out, "request done")
	assert.Contains(t, out, "component=api")
	assert.Contains(t, out, "path=/api/balance")

	buf.Reset()
	logger.WithComponent(ComponentWorker).Debug("tick")
	assert.Contains(t, buf.String(), "component=worker")
}

func TestContextLogger(t *testing.T) {
	logger := New(Config{Component: ComponentApp, Output: &bytes.Buffer{}})
	ctx := NewContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestLogFields(t *testing.T) {
	f := NewFields().WithError(errors.New("boom")).WithError(nil).WithOperation(OpSync)
	assert.Equal(t, "boom", f[FieldError])
	assert.Equal(t, OpSync, f[FieldOperation])
	assert.Len(t, f.ToSlice(), 4)
}
