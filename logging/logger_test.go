package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var (
	_ Logger = (*AnalystLogger)(nil)
	_ Logger = (*SlogAdapter)(nil)
	_ Logger = (*ZapAdapter)(nil)
	_ Logger = NoOpLogger{}
)

func TestAnalystLogger_SessionAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "json", Output: &buf}).
		WithComponent("engine").
		WithSession("s-1", "router")

	l.Info("step.completed", "step", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "step.completed", entry["msg"])
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "s-1", entry["session_id"])
	assert.Equal(t, "router", entry["agent"])
	assert.EqualValues(t, 1, entry["step"])
}

func TestAnalystLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Output: &buf})
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.LogToolCall("search_database", time.Millisecond, 0, errors.New("boom"))
	assert.Contains(t, buf.String(), "tool.call.failed")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelInfo, ParseLevel("bogus"))
}

func TestZapAdapter(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewZapAdapter(zap.New(core))

	l.Warn("persist.retry", "session_id", "s-1", "attempt", 2)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "persist.retry", entry.Message)
	assert.Equal(t, "s-1", entry.ContextMap()["session_id"])
}

func TestNew_Backends(t *testing.T) {
	l, err := New(Config{Backend: "slog", Level: "info"})
	require.NoError(t, err)
	assert.IsType(t, &AnalystLogger{}, l)

	l, err = New(Config{Backend: "zap", Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.IsType(t, &ZapAdapter{}, l)

	_, err = New(Config{Backend: "logrus"})
	assert.Error(t, err)
}
