// Package knowledge stores embedding documents in PostgreSQL with
// pgvector and serves nearest-neighbor search for retrieval-augmented
// answers.
package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// VectorDimension is the embedding width the documents table stores.
// gemini-embedding-001 truncates to this via output dimensionality.
const VectorDimension = 768

// Document is one ingested text unit. Immutable once created; the
// identifier is generated at ingestion time, never caller-supplied.
type Document struct {
	ID        uuid.UUID
	Content   string
	Metadata  map[string]any // opaque tags for filtering/attribution
	CreatedAt time.Time
}

// Result is a single search hit.
type Result struct {
	Document   Document
	Similarity float64 // cosine similarity, higher is closer
}

// SearchOption configures Search via functional options.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK   int32
	filter map[string]any
}

// WithTopK caps the number of results. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = int32(k) // #nosec G115 -- bounded by validation upstream
		}
	}
}

// WithFilter restricts results to documents whose metadata contains the
// given key/value. Repeated calls AND together.
func WithFilter(key string, value any) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]any)
		}
		c.filter[key] = value
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{topK: 5}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
