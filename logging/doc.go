// Package logging provides a minimal logging interface and adapters for analystmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, agents and tools use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter and ZapAdapter wrapping log/slog and go.uber.org/zap
//   - AnalystLogger, a slog-backed logger with session context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", Backend: "zap"})
//	eng := engine.New(agents, engine.WithLogger(logger))
package logging
