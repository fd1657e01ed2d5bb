// Package config loads application configuration with multi-source priority.
//
// Sources, highest to lowest:
//  1. Environment variables
//  2. Config file (~/.rex/config.yaml, or ./config.yaml)
//  3. Defaults
//
// DATABASE_URL, when set, overrides the individual postgres_* settings.
// Validation is fail-fast with sentinel errors for errors.Is checks.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidProvider indicates the model provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidWindow indicates the history window size is out of range.
	ErrInvalidWindow = errors.New("invalid history window")

	// ErrInvalidTimeout indicates a timeout setting is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidIngest indicates an ingestion pipeline setting is out of range.
	ErrInvalidIngest = errors.New("invalid ingest setting")
)

// Provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"
)

// DefaultEmbedderModel is the default Gemini embedder. gemini-embedding-001
// supports truncation to 768 dimensions, which is what the pgvector schema
// stores; see knowledge.VectorDimension.
const DefaultEmbedderModel = "gemini-embedding-001"

// Config stores application configuration.
type Config struct {
	// Model provider and generation settings
	Provider    string  `mapstructure:"provider"`   // "gemini" (default) or "ollama"
	ModelName   string  `mapstructure:"model_name"` // e.g. "gemini-2.5-flash", "llama3.3"
	Temperature float64 `mapstructure:"temperature"`
	MaxTurns    int     `mapstructure:"max_turns"` // tool-call round limit per generation

	// Ollama settings (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host"`

	// Embedding
	EmbedderModel string `mapstructure:"embedder_model"`

	// Conversation memory
	HistoryWindow int `mapstructure:"history_window"` // messages retained per chat

	// Answer pipeline
	GenerationTimeoutSec int `mapstructure:"generation_timeout_sec"`
	RetrievalTimeoutSec  int `mapstructure:"retrieval_timeout_sec"`
	RetrievalTopK        int `mapstructure:"retrieval_top_k"`
	RateLimitRPS         int `mapstructure:"rate_limit_rps"` // generation requests per second

	// Ingestion pipeline
	IngestQueueSize int `mapstructure:"ingest_queue_size"`
	IngestWorkers   int `mapstructure:"ingest_workers"`

	// HTTP server
	ServeAddr string `mapstructure:"serve_addr"`

	// Storage (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`
}

// Load loads configuration with priority env > file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".rex")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("config file not found, using defaults", "search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_turns", 5)

	viper.SetDefault("ollama_host", "http://localhost:11434")

	viper.SetDefault("embedder_model", DefaultEmbedderModel)

	viper.SetDefault("history_window", 20)

	viper.SetDefault("generation_timeout_sec", 60)
	viper.SetDefault("retrieval_timeout_sec", 5)
	viper.SetDefault("retrieval_top_k", 5)
	viper.SetDefault("rate_limit_rps", 5)

	viper.SetDefault("ingest_queue_size", 256)
	viper.SetDefault("ingest_workers", 2)

	viper.SetDefault("serve_addr", ":8080")

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "rex")
	viper.SetDefault("postgres_password", "rex_dev_password")
	viper.SetDefault("postgres_db_name", "rex")
	viper.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds the runtime override variables explicitly.
// GEMINI_API_KEY is read directly by the Genkit plugin, not via viper.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "REX_PROVIDER")
	mustBind("model_name", "REX_MODEL_NAME")
	mustBind("embedder_model", "REX_EMBEDDER_MODEL")
	mustBind("ollama_host", "REX_OLLAMA_HOST")
	mustBind("serve_addr", "REX_SERVE_ADDR")
	mustBind("history_window", "REX_HISTORY_WINDOW")
}

// FullModelName returns the provider-qualified model name for Genkit,
// e.g. "googleai/gemini-2.5-flash" or "ollama/llama3.3". A name that
// already contains "/" is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	if c.Provider == ProviderOllama {
		return ProviderOllama + "/" + c.ModelName
	}
	return ProviderGoogleAI + "/" + c.ModelName
}
