package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the complete process configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" env:"LOG"`
	LLM       LLMConfig       `yaml:"llm" env:"LLM"`
	Database  DatabaseConfig  `yaml:"database" env:"DATABASE"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	Session   SessionConfig   `yaml:"session" env:"SESSION"`
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// DataDir holds the CSV snapshot loaded by upload-snapshot.
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`
}

// LogConfig selects the logging backend.
type LogConfig struct {
	Level   string `yaml:"level" env:"LEVEL"`
	Format  string `yaml:"format" env:"FORMAT"`   // json or text
	Backend string `yaml:"backend" env:"BACKEND"` // slog or zap
}

// LLMConfig configures the generation backend.
type LLMConfig struct {
	Provider            string  `yaml:"provider" env:"PROVIDER"` // openai or anthropic
	BaseURL             string  `yaml:"base_url" env:"BASE_URL"`
	APIKey              string  `yaml:"api_key" env:"API_KEY"`
	Model               string  `yaml:"model" env:"MODEL"`
	Temperature         float64 `yaml:"temperature" env:"TEMPERATURE"`
	FallbackTemperature float64 `yaml:"fallback_temperature" env:"FALLBACK_TEMPERATURE"`
	MaxTokens           int     `yaml:"max_tokens" env:"MAX_TOKENS"`
}

// DatabaseConfig configures the analytics database.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DRIVER"` // postgres or sqlite
	DSN             string        `yaml:"dsn" env:"DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RedisConfig is used when the session sink is redis.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// SessionConfig bounds and persists sessions.
type SessionConfig struct {
	Sink                  string        `yaml:"sink" env:"SINK"` // database, redis or memory
	MaxInteractions       int           `yaml:"max_interactions" env:"MAX_INTERACTIONS"`
	MaxConsecutiveReplans int           `yaml:"max_consecutive_replans" env:"MAX_CONSECUTIVE_REPLANS"`
	Timeout               time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxConcurrent         int           `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	MaxModelCalls         int           `yaml:"max_model_calls" env:"MAX_MODEL_CALLS"`
	CycleDetection        bool          `yaml:"cycle_detection" env:"CYCLE_DETECTION"`
	CycleWindow           int           `yaml:"cycle_window" env:"CYCLE_WINDOW"`
	PersistRetries        int           `yaml:"persist_retries" env:"PERSIST_RETRIES"`
	WriterQueue           int           `yaml:"writer_queue" env:"WRITER_QUEUE"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// TelemetryConfig configures tracing export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:   "info",
			Format:  "json",
			Backend: "slog",
		},
		LLM: LLMConfig{
			Provider:            "openai",
			Model:               "qwen3-32b",
			FallbackTemperature: 0.3,
			MaxTokens:           2048,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "analystmesh:",
		},
		Session: SessionConfig{
			Sink:                  "database",
			MaxInteractions:       5,
			MaxConsecutiveReplans: 2,
			Timeout:               2 * time.Minute,
			MaxConcurrent:         10,
			MaxModelCalls:         20,
			CycleDetection:        true,
			CycleWindow:           4,
			PersistRetries:        5,
			WriterQueue:           64,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    3 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "analystmesh",
			SampleRate:  1.0,
		},
		DataDir: "./data",
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(oneOf(c.Log.Format, "json", "text", "console"), "log.format must be json or text, got %q", c.Log.Format)
	check(oneOf(c.Log.Backend, "slog", "zap"), "log.backend must be slog or zap, got %q", c.Log.Backend)

	check(oneOf(c.LLM.Provider, "openai", "anthropic"), "llm.provider must be openai or anthropic, got %q", c.LLM.Provider)
	check(c.LLM.Model != "", "llm.model cannot be empty")
	check(c.LLM.Temperature >= 0 && c.LLM.Temperature <= 2, "llm.temperature must be within [0, 2]")
	check(c.LLM.FallbackTemperature >= 0 && c.LLM.FallbackTemperature <= 2, "llm.fallback_temperature must be within [0, 2]")
	check(c.LLM.MaxTokens >= 0, "llm.max_tokens must be >= 0")

	check(oneOf(c.Database.Driver, "postgres", "sqlite"), "database.driver must be postgres or sqlite, got %q", c.Database.Driver)

	check(oneOf(c.Session.Sink, "database", "redis", "memory"), "session.sink must be database, redis or memory, got %q", c.Session.Sink)
	check(c.Session.MaxInteractions > 0, "session.max_interactions must be > 0")
	check(c.Session.MaxConsecutiveReplans >= 0, "session.max_consecutive_replans must be >= 0")
	check(c.Session.Timeout >= 0, "session.timeout must be >= 0")
	check(c.Session.MaxConcurrent >= 0, "session.max_concurrent must be >= 0")
	check(c.Session.MaxModelCalls >= 0, "session.max_model_calls must be >= 0")
	check(!c.Session.CycleDetection || c.Session.CycleWindow >= 2, "session.cycle_window must be >= 2")
	check(c.Session.PersistRetries > 0, "session.persist_retries must be > 0")
	check(c.Session.WriterQueue > 0, "session.writer_queue must be > 0")
	if c.Session.Sink == "redis" {
		check(c.Redis.Addr != "", "redis.addr cannot be empty when session.sink is redis")
	}

	check(c.Server.Addr != "", "server.addr cannot be empty")
	check(c.Telemetry.SampleRate >= 0 && c.Telemetry.SampleRate <= 1, "telemetry.sample_rate must be within [0, 1]")
	if c.Telemetry.Enabled {
		check(c.Telemetry.OTLPEndpoint != "", "telemetry.otlp_endpoint cannot be empty when telemetry is enabled")
	}

	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
