package core

import (
	"slices"

	"github.com/hupe1980/analystmesh/logging"
)

// boundLogger prefixes every log line with a fixed set of key/value pairs.
type boundLogger struct {
	logging.Logger
	kv []any
}

func (b boundLogger) Debug(msg string, args ...any) { b.Logger.Debug(msg, b.args(args)...) }
func (b boundLogger) Info(msg string, args ...any)  { b.Logger.Info(msg, b.args(args)...) }
func (b boundLogger) Warn(msg string, args ...any)  { b.Logger.Warn(msg, b.args(args)...) }
func (b boundLogger) Error(msg string, args ...any) { b.Logger.Error(msg, b.args(args)...) }

func (b boundLogger) args(args []any) []any {
	out := make([]any, 0, len(b.kv)+len(args))
	return append(append(out, b.kv...), args...)
}

// stepLogger scopes logging to one agent step. Every line carries the
// session_id, agent and step keys; tool scopes add tool and fc_id.
type stepLogger struct {
	bound boundLogger
}

func newStepLogger(l logging.Logger, sessionID, agent string, step int) *stepLogger {
	if l == nil {
		l = logging.NoOpLogger{}
	}
	// AnalystLogger renders session_id and agent as base attributes.
	if al, ok := l.(*logging.AnalystLogger); ok {
		return &stepLogger{bound: boundLogger{Logger: al.WithSession(sessionID, agent), kv: []any{"step", step}}}
	}
	return &stepLogger{bound: boundLogger{Logger: l, kv: []any{"session_id", sessionID, "agent", agent, "step", step}}}
}

func (s *stepLogger) forTool(toolName, callID string) *stepLogger {
	kv := append(slices.Clone(s.bound.kv), "tool", toolName, "fc_id", callID)
	return &stepLogger{bound: boundLogger{Logger: s.bound.Logger, kv: kv}}
}

// Logger returns the scoped logger.
func (s *stepLogger) Logger() logging.Logger { return s.bound }

// LogDebug logs a debug message.
func (s *stepLogger) LogDebug(msg string, args ...any) { s.bound.Debug(msg, args...) }

// LogInfo logs an info message.
func (s *stepLogger) LogInfo(msg string, args ...any) { s.bound.Info(msg, args...) }

// LogWarn logs a warning message.
func (s *stepLogger) LogWarn(msg string, args ...any) { s.bound.Warn(msg, args...) }

// LogError logs an error message.
func (s *stepLogger) LogError(msg string, args ...any) { s.bound.Error(msg, args...) }
