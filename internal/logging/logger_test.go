package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"notice", LevelNotice},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"crit", LevelCritical},
		{"", LevelInfo},
		{"bogus", LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLevel(tc.input))
		})
	}
}

func TestSlogLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelNotice, Output: &buf})
	ctx := context.Background()

	logger.Info(ctx, "hidden")
	logger.Notice(ctx, "Call to undefined component {name}.", "name", "ui:buton")
	logger.Critical(ctx, errors.New("boom"), "cache failed")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=NOTICE")
	assert.Contains(t, out, "Call to undefined component ui:buton.")
	assert.Contains(t, out, "level=CRITICAL")
	assert.Contains(t, out, "error=boom")
}

func TestSlogLoggerJSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("runtime").With("pass", "abc").Debug(context.Background(), "render")

	out := buf.String()
	assert.Contains(t, out, `"component":"runtime"`)
	assert.Contains(t, out, `"pass":"abc"`)
	assert.Contains(t, out, `"msg":"render"`)
}

func TestInterpolate(t *testing.T) {
	msg := Interpolate("{className} lacks {method}", "className", "Button", "method", "RuntimeRender")
	assert.Equal(t, "Button lacks RuntimeRender", msg)
	assert.Equal(t, "plain", Interpolate("plain", "a", 1))
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()

	child := rec.WithComponent("compiler").With("file", "page.html")
	child.Error(ctx, errors.New("bad"), "failed {file}")
	rec.Notice(ctx, "note")

	entries := rec.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, LevelError, entries[0].Level)
	assert.Equal(t, "compiler", entries[0].Component)
	assert.Equal(t, "page.html", entries[0].Fields["file"])
	assert.Equal(t, 1, rec.Count(LevelError))
	assert.Equal(t, 1, rec.Count(LevelNotice))

	rec.Reset()
	assert.Empty(t, rec.Entries())
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Critical(context.Background(), errors.New("x"), "dropped")
	})
}
