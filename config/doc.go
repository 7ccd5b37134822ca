// Package config loads the analystmesh process configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then a
// .env file, then environment variables. Variables use the ANALYST_ prefix
// and the section path, e.g. ANALYST_SESSION_TIMEOUT=90s or
// ANALYST_LLM_MODEL=qwen3-32b. The variables POSTGRES_DSN, BASE_URL,
// LLM_API_KEY and MODEL_NAME are honored for compatibility with existing
// deployments.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("analyst.yaml").
//	    Load()
//
// A loaded Config is treated as immutable for the lifetime of the process.
package config
