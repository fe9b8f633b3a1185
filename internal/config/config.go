// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (HACKAGENT_* overrides)
//  2. Config file (~/.hackathon-agent/config.yaml, or ./config.yaml)
//  3. Default values (offline single-machine deployment out of the box)
//
// Categories:
//   - Embedding: Ollama host and embedder model for the RAG index
//   - Storage: SQLite database path, embedding cache directory,
//     bundled default ruleset path
//   - Retrieval: top-k and similarity cutoff
//   - Server: HTTP listen address, proxy trust, rate limiting
//   - Observability: optional OTLP trace collector endpoint
//
// Validation is fail-fast: Load returns an error for out-of-range values
// using sentinel errors checkable with errors.Is.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidOllamaHost indicates the Ollama host is empty or malformed.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidEmbedderModel indicates the embedder model name is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidCutoff indicates the similarity cutoff is outside [-1, 1].
	ErrInvalidCutoff = errors.New("invalid similarity cutoff")

	// ErrInvalidDBPath indicates the database path is empty.
	ErrInvalidDBPath = errors.New("invalid database path")

	// ErrInvalidRateBurst indicates a negative rate-limit burst.
	ErrInvalidRateBurst = errors.New("invalid rate burst")
)

const (
	// DefaultEmbedderModel is the local embedding model pulled via Ollama.
	// nomic-embed-text produces 768-dimensional vectors and runs offline.
	DefaultEmbedderModel = "nomic-embed-text"

	// DefaultTopK is the default number of chunks returned per retrieval.
	DefaultTopK = 5

	// DefaultAddr is the default HTTP listen address.
	DefaultAddr = "127.0.0.1:8000"
)

// Config stores application configuration.
type Config struct {
	// Embedding provider (Ollama)
	OllamaHost    string `mapstructure:"ollama_host" json:"ollama_host"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Storage
	DBPath    string `mapstructure:"db_path" json:"db_path"`
	CacheDir  string `mapstructure:"cache_dir" json:"cache_dir"`
	RulesPath string `mapstructure:"rules_path" json:"rules_path"`

	// Retrieval
	TopK             int     `mapstructure:"top_k" json:"top_k"`
	SimilarityCutoff float32 `mapstructure:"similarity_cutoff" json:"similarity_cutoff"`

	// HTTP server
	Addr       string `mapstructure:"addr" json:"addr"`
	TrustProxy bool   `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst  int    `mapstructure:"rate_burst" json:"rate_burst"`

	// Observability (optional; empty endpoint disables tracing)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".hackathon-agent")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("db_path", filepath.Join(configDir, "app.db"))
	v.SetDefault("cache_dir", filepath.Join(configDir, "embeddings_cache"))
	v.SetDefault("rules_path", "docs/rules.txt")

	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("similarity_cutoff", 0.0)

	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 20)

	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("service_name", "hackathon-agent")
}

// bindEnvVariables binds environment overrides explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a programming bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("ollama_host", "HACKAGENT_OLLAMA_HOST")
	mustBind("embedder_model", "HACKAGENT_EMBEDDER_MODEL")
	mustBind("db_path", "HACKAGENT_DB_PATH")
	mustBind("cache_dir", "HACKAGENT_CACHE_DIR")
	mustBind("rules_path", "HACKAGENT_RULES_PATH")
	mustBind("addr", "HACKAGENT_ADDR")
	mustBind("trust_proxy", "HACKAGENT_TRUST_PROXY")
	mustBind("otlp_endpoint", "HACKAGENT_OTLP_ENDPOINT")
}
