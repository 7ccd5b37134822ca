package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vals map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vals[key]
		return v, ok
	}
}

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader().WithEnvFiles().WithLookup(env(nil)).Load()
	require.NoError(t, err)

	assert.Equal(t, "qwen3-32b", cfg.LLM.Model)
	assert.InDelta(t, 0.3, cfg.LLM.FallbackTemperature, 1e-9)
	assert.Equal(t, 5, cfg.Session.MaxInteractions)
	assert.Equal(t, 2, cfg.Session.MaxConsecutiveReplans)
	assert.Equal(t, 2*time.Minute, cfg.Session.Timeout)
	assert.Equal(t, 10, cfg.Session.MaxConcurrent)
	assert.True(t, cfg.Session.CycleDetection)
	assert.Equal(t, 4, cfg.Session.CycleWindow)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "./data", cfg.DataDir)
}

func TestLoad_Layering(t *testing.T) {
	yamlPath := write(t, "analyst.yaml", `
llm:
  model: from-yaml
  temperature: 0.1
session:
  max_interactions: 7
  timeout: 45s
database:
  driver: sqlite
  dsn: file.db
`)
	envPath := write(t, ".env", "ANALYST_SESSION_MAX_INTERACTIONS=8\nANALYST_LOG_LEVEL=debug\n")

	cfg, err := NewLoader().
		WithConfigPath(yamlPath).
		WithEnvFiles(envPath).
		WithLookup(env(map[string]string{
			"ANALYST_SESSION_MAX_INTERACTIONS": "9",
			"ANALYST_SERVER_ADDR":              ":9090",
		})).
		Load()
	require.NoError(t, err)

	assert.Equal(t, "from-yaml", cfg.LLM.Model)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 45*time.Second, cfg.Session.Timeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 9, cfg.Session.MaxInteractions, "process environment wins over .env")
	assert.Equal(t, "debug", cfg.Log.Level, ".env wins over defaults")
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoad_LegacyVariables(t *testing.T) {
	cfg, err := NewLoader().WithEnvFiles().WithLookup(env(map[string]string{
		"POSTGRES_DSN":      "postgres://u:p@db:5432/coffee",
		"BASE_URL":          "http://llm:8000/v1",
		"LLM_API_KEY":       "secret",
		"MODEL_NAME":        "legacy-model",
		"ANALYST_LLM_MODEL": "prefixed-model",
	})).Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/coffee", cfg.Database.DSN)
	assert.Equal(t, "http://llm:8000/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
	assert.Equal(t, "prefixed-model", cfg.LLM.Model)
}

func TestLoad_MissingFilesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	_, err := NewLoader().
		WithConfigPath(filepath.Join(dir, "none.yaml")).
		WithEnvFiles(filepath.Join(dir, ".env")).
		WithLookup(env(nil)).
		Load()
	require.NoError(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	_, err := NewLoader().WithEnvFiles().WithLookup(env(map[string]string{
		"ANALYST_SESSION_TIMEOUT": "soon",
	})).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANALYST_SESSION_TIMEOUT")

	path := write(t, "bad.yaml", "session: [unclosed")
	_, err = NewLoader().WithConfigPath(path).WithEnvFiles().WithLookup(env(nil)).Load()
	require.Error(t, err)
}

func TestLoad_CustomValidator(t *testing.T) {
	_, err := NewLoader().WithEnvFiles().WithLookup(env(nil)).
		WithValidator(func(c *Config) error {
			if c.LLM.APIKey == "" {
				return assert.AnError
			}
			return nil
		}).Load()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Session.Sink = "kafka"
	cfg.Session.MaxInteractions = 0
	cfg.LLM.Provider = "llama"
	cfg.Telemetry.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"session.sink", "session.max_interactions", "llm.provider", "telemetry.otlp_endpoint"} {
		assert.Contains(t, err.Error(), want)
	}
}
