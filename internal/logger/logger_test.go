package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSON(level string) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(&Config{Level: level, Format: "json", Output: buf}), buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestLogger_Thresholds(t *testing.T) {
	tests := []struct {
		level string
		log   func(*Logger)
		want  bool
	}{
		{"debug", func(l *Logger) { l.DebugWith("database not ready", map[string]any{"attempt": 1}) }, true},
		{"info", func(l *Logger) { l.DebugWith("database not ready", map[string]any{"attempt": 1}) }, false},
		{"info", func(l *Logger) { l.InfoWith("database ready", nil) }, true},
		{"warn", func(l *Logger) { l.Info("connection pool created") }, false},
		{"warn", func(l *Logger) { l.WarnWith("dropping stale connection", errors.New("eof"), nil) }, true},
		{"error", func(l *Logger) { l.WarnWith("duplicate", errors.New("23505"), nil) }, false},
		{"error", func(l *Logger) { l.ErrorWith("migration failed", errors.New("syntax"), nil) }, true},
		{"verbose", func(l *Logger) { l.Debug("unknown levels fall back to info") }, false},
		{"verbose", func(l *Logger) { l.Info("unknown levels fall back to info") }, true},
	}

	for _, tt := range tests {
		l, buf := newJSON(tt.level)
		tt.log(l)
		assert.Equal(t, tt.want, buf.Len() > 0, "level %s: %q", tt.level, buf.String())
	}
}

func TestLogger_LevelIsPerLogger(t *testing.T) {
	quiet, quietBuf := newJSON("error")
	debug, debugBuf := newJSON("debug")

	debug.Debug("still visible")
	quiet.Info("hidden")

	assert.Contains(t, debugBuf.String(), "still visible")
	assert.Empty(t, quietBuf.String())
}

func TestLogger_StructuredFields(t *testing.T) {
	l, buf := newJSON("warn")

	l.WarnWith("duplicate entity", errors.New("23505"), map[string]any{
		"op":     "create",
		"entity": "Tournament",
		"code":   409,
	})

	entry := decode(t, buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "duplicate entity", entry["message"])
	assert.Equal(t, "23505", entry["error"])
	assert.Equal(t, "create", entry["op"])
	assert.Equal(t, "Tournament", entry["entity"])
	assert.Equal(t, float64(409), entry["code"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_ChildContext(t *testing.T) {
	l, buf := newJSON("debug")

	l.With().
		Str("component", "ephemeral").
		Int("max_conns", 10).
		Dur("acquire_timeout", 5*time.Second).
		Err(errors.New("connection refused")).
		Any("mode", "serialized").
		Logger().
		Debug("connection pool created")

	entry := decode(t, buf)
	assert.Equal(t, "ephemeral", entry["component"])
	assert.Equal(t, float64(10), entry["max_conns"])
	assert.Equal(t, float64(5000), entry["acquire_timeout"])
	assert.Equal(t, "connection refused", entry["error"])
	assert.Equal(t, "serialized", entry["mode"])
}

func TestLogger_HTTPEvent(t *testing.T) {
	l, buf := newJSON("info")

	l.HTTPEvent().Str("method", "POST").Int("status", 201).Msg("http request")

	entry := decode(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, float64(201), entry["status"])
}

func TestLogger_ContextRoundTrip(t *testing.T) {
	l, buf := newJSON("info")

	FromContext(l.WithContext(context.Background())).Info("from context")
	assert.Equal(t, "from context", decode(t, buf)["message"])

	assert.NotNil(t, FromContext(context.Background()))
}

func TestLogger_ConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "info", Format: "console", Output: buf})

	l.Infof("applied %d migrations", 2)

	out := buf.String()
	assert.Contains(t, out, "applied 2 migrations")
	assert.False(t, strings.HasPrefix(out, "{"), "console output is not JSON")
}

func TestLogger_UnixMillisTime(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "info", Format: "json", TimeFormat: "unixms", Output: buf})
	t.Cleanup(func() { New(&Config{Output: io.Discard}) })

	l.Info("stamped")

	_, isNumber := decode(t, buf)["time"].(float64)
	assert.True(t, isNumber)
}

func TestNop(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.Info("dropped")
		l.ErrorWith("dropped", errors.New("x"), nil)
		l.With().Str("k", "v").Logger().Warn("dropped")
	})
}

func BenchmarkLogger_InfoWith(b *testing.B) {
	l := New(&Config{Level: "info", Format: "json", Output: io.Discard})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.InfoWith("http request", map[string]any{"status": 200, "path": "/api/tournaments"})
	}
}
