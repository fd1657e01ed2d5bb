package config

import (
	"fmt"
	"strings"
)

// Validate checks all configuration values and fails fast on the first
// violation. Errors wrap the package sentinels for errors.Is checks.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOllama, ProviderGoogleAI:
	default:
		return fmt.Errorf("%w: %q (expected gemini or ollama)", ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (expected 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}

	if c.HistoryWindow < 2 || c.HistoryWindow > 1000 {
		return fmt.Errorf("%w: %d (expected 2-1000)", ErrInvalidWindow, c.HistoryWindow)
	}

	if c.GenerationTimeoutSec < 1 || c.GenerationTimeoutSec > 600 {
		return fmt.Errorf("%w: generation_timeout_sec %d (expected 1-600)", ErrInvalidTimeout, c.GenerationTimeoutSec)
	}
	if c.RetrievalTimeoutSec < 1 || c.RetrievalTimeoutSec > 60 {
		return fmt.Errorf("%w: retrieval_timeout_sec %d (expected 1-60)", ErrInvalidTimeout, c.RetrievalTimeoutSec)
	}
	if c.RetrievalTopK < 1 || c.RetrievalTopK > 100 {
		return fmt.Errorf("%w: %d (expected 1-100)", ErrInvalidTopK, c.RetrievalTopK)
	}

	if c.IngestQueueSize < 1 {
		return fmt.Errorf("%w: queue size %d (expected >= 1)", ErrInvalidIngest, c.IngestQueueSize)
	}
	if c.IngestWorkers < 1 || c.IngestWorkers > 64 {
		return fmt.Errorf("%w: workers %d (expected 1-64)", ErrInvalidIngest, c.IngestWorkers)
	}

	return nil
}
