package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// Querier defines the database operations the store needs. Consumer-side
// interface; tests substitute a mock.
type Querier interface {
	InsertDocument(ctx context.Context, arg InsertDocumentParams) error
	SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchRow, error)
	SearchDocumentsAll(ctx context.Context, arg SearchDocumentsAllParams) ([]SearchRow, error)
	CountDocuments(ctx context.Context, filterMetadata []byte) (int64, error)
	CountDocumentsAll(ctx context.Context) (int64, error)
}

// Store manages embedding documents. Safe for concurrent use.
type Store struct {
	queries  Querier
	pool     *pgxpool.Pool // batch insert support; nil in unit tests
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store. pool may be nil for tests; logger may be nil.
func New(queries Querier, pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: queries, pool: pool, embedder: embedder, logger: logger}
}

// AddBatch embeds and persists all documents of one batch. The whole
// batch goes through a single embedding request and a single database
// round trip (pgx batch inside one transaction), so a batch either lands
// completely or not at all.
//
// Documents must arrive with identifiers already assigned; the store does
// not dedupe, identical content under a fresh ID becomes a new row.
func (s *Store) AddBatch(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	input := make([]*ai.Document, len(docs))
	for i, doc := range docs {
		input[i] = ai.DocumentFromText(doc.Content, nil)
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   input,
		Options: embedOptions(),
	})
	if err != nil {
		return fmt.Errorf("embedding batch of %d: %w", len(docs), err)
	}
	if len(resp.Embeddings) != len(docs) {
		return fmt.Errorf("embedder returned %d embeddings for %d documents", len(resp.Embeddings), len(docs))
	}

	params := make([]InsertDocumentParams, len(docs))
	for i, doc := range docs {
		if len(resp.Embeddings[i].Embedding) == 0 {
			return fmt.Errorf("empty embedding for document %s", doc.ID)
		}
		metadata := doc.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for document %s: %w", doc.ID, err)
		}
		vec := pgvector.NewVector(resp.Embeddings[i].Embedding)
		params[i] = InsertDocumentParams{
			ID:        pgtype.UUID{Bytes: doc.ID, Valid: true},
			Content:   doc.Content,
			Metadata:  metadataJSON,
			Embedding: &vec,
		}
	}

	if s.pool == nil {
		for _, p := range params {
			if err := s.queries.InsertDocument(ctx, p); err != nil {
				return fmt.Errorf("inserting document: %w", err)
			}
		}
	} else if err := s.insertBatch(ctx, params); err != nil {
		return err
	}

	s.logger.Debug("stored document batch", "count", len(docs))
	return nil
}

func (s *Store) insertBatch(ctx context.Context, params []InsertDocumentParams) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning batch transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			s.logger.Debug("batch rollback (likely already committed)", "error", err)
		}
	}()

	batch := &pgx.Batch{}
	for _, p := range params {
		batch.Queue(insertDocument, p.ID, p.Content, p.Metadata, p.Embedding)
	}

	results := tx.SendBatch(ctx, batch)
	for range params {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("batch insert: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

// Search returns the documents nearest to query, ordered by descending
// cosine similarity, at most topK entries.
//
//	results, err := store.Search(ctx, "friendly dog for kids",
//	    knowledge.WithTopK(3), knowledge.WithFilter("dogId", "42"))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(query, nil)},
		Options: embedOptions(),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned for query")
	}

	queryVec := pgvector.NewVector(resp.Embeddings[0].Embedding)

	if len(cfg.filter) > 0 {
		// Filter is always produced by json.Marshal and bound as a
		// parameter; never interpolate user input into the query text.
		filterJSON, err := json.Marshal(cfg.filter)
		if err != nil {
			return nil, fmt.Errorf("marshaling filter: %w", err)
		}
		rows, err := s.queries.SearchDocuments(ctx, SearchDocumentsParams{
			QueryEmbedding: &queryVec,
			FilterMetadata: filterJSON,
			ResultLimit:    cfg.topK,
		})
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		return s.rowsToResults(rows), nil
	}

	rows, err := s.queries.SearchDocumentsAll(ctx, SearchDocumentsAllParams{
		QueryEmbedding: &queryVec,
		ResultLimit:    cfg.topK,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return s.rowsToResults(rows), nil
}

// Count returns the number of documents matching filter; a nil or empty
// filter counts everything.
func (s *Store) Count(ctx context.Context, filter map[string]any) (int, error) {
	var (
		count int64
		err   error
	)
	if len(filter) > 0 {
		filterJSON, marshalErr := json.Marshal(filter)
		if marshalErr != nil {
			return 0, fmt.Errorf("marshaling filter: %w", marshalErr)
		}
		count, err = s.queries.CountDocuments(ctx, filterJSON)
	} else {
		count, err = s.queries.CountDocumentsAll(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}

	if count > math.MaxInt {
		return 0, fmt.Errorf("document count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}

// embedOptions truncates embeddings to the width the documents table
// stores. gemini-embedding-001 outputs 3072 dimensions by default and
// supports Matryoshka truncation to 768.
func embedOptions() *genai.EmbedContentConfig {
	dim := int32(VectorDimension)
	return &genai.EmbedContentConfig{OutputDimensionality: &dim}
}

func fromPgUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return id.Bytes
}

func (s *Store) rowsToResults(rows []SearchRow) []Result {
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		var metadata map[string]any
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			s.logger.Warn("unparseable document metadata", "document_id", fromPgUUID(row.ID), "error", err)
			metadata = map[string]any{}
		}
		results = append(results, Result{
			Document: Document{
				ID:        fromPgUUID(row.ID),
				Content:   row.Content,
				Metadata:  metadata,
				CreatedAt: row.CreatedAt.Time,
			},
			Similarity: row.Similarity,
		})
	}
	return results
}
