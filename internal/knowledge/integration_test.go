//go:build integration

package knowledge_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/vlaship/rex/internal/knowledge"
	"github.com/vlaship/rex/internal/log"
	"github.com/vlaship/rex/internal/testutil"
)

func setupKnowledge(t *testing.T) (*knowledge.Store, *testutil.MockEmbedder, func()) {
	t.Helper()
	db, cleanup := testutil.SetupTestDB(t)
	embedder := testutil.NewMockEmbedder(knowledge.VectorDimension)
	store := knowledge.New(knowledge.NewQueries(db.Pool), db.Pool, embedder, log.NewNop())
	return store, embedder, cleanup
}

func newDoc(t *testing.T, content string, metadata map[string]any) knowledge.Document {
	t.Helper()
	id, err := uuid.NewV7()
	if err != nil {
		t.Fatalf("uuid.NewV7: %v", err)
	}
	return knowledge.Document{ID: id, Content: content, Metadata: metadata}
}

func axisVector(dim, axis int) []float32 {
	vec := make([]float32, dim)
	vec[axis] = 1
	return vec
}

func TestIntegration_AddBatchAndSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store, embedder, cleanup := setupKnowledge(t)
	defer cleanup()
	ctx := context.Background()

	// Orthogonal vectors give exact similarity control: the query matches
	// "labrador" perfectly and "siamese" not at all.
	embedder.SetVector("labradors are friendly dogs", axisVector(knowledge.VectorDimension, 0))
	embedder.SetVector("siamese cats are vocal", axisVector(knowledge.VectorDimension, 1))
	embedder.SetVector("friendly dog", axisVector(knowledge.VectorDimension, 0))

	err := store.AddBatch(ctx, []knowledge.Document{
		newDoc(t, "labradors are friendly dogs", map[string]any{"species": "dog"}),
		newDoc(t, "siamese cats are vocal", map[string]any{"species": "cat"}),
	})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}

	results, err := store.Search(ctx, "friendly dog", knowledge.WithTopK(2))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Document.Content != "labradors are friendly dogs" {
		t.Errorf("best match = %q", results[0].Document.Content)
	}
	if results[0].Similarity < 0.99 {
		t.Errorf("best similarity = %f, want ~1", results[0].Similarity)
	}
	if results[1].Similarity > 0.01 {
		t.Errorf("orthogonal similarity = %f, want ~0", results[1].Similarity)
	}
}

func TestIntegration_SearchWithMetadataFilter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store, _, cleanup := setupKnowledge(t)
	defer cleanup()
	ctx := context.Background()

	err := store.AddBatch(ctx, []knowledge.Document{
		newDoc(t, "labrador profile", map[string]any{"dogId": "42"}),
		newDoc(t, "poodle profile", map[string]any{"dogId": "7"}),
	})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}

	results, err := store.Search(ctx, "profile", knowledge.WithFilter("dogId", "42"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Document.Metadata["dogId"] != "42" {
		t.Errorf("metadata = %v", results[0].Document.Metadata)
	}
}

func TestIntegration_Count(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store, _, cleanup := setupKnowledge(t)
	defer cleanup()
	ctx := context.Background()

	err := store.AddBatch(ctx, []knowledge.Document{
		newDoc(t, "doc one", map[string]any{"source": "manual"}),
		newDoc(t, "doc two", map[string]any{"source": "manual"}),
		newDoc(t, "doc three", nil),
	})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}

	total, err := store.Count(ctx, nil)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}

	filtered, err := store.Count(ctx, map[string]any{"source": "manual"})
	if err != nil {
		t.Fatalf("Count filtered: %v", err)
	}
	if filtered != 2 {
		t.Errorf("filtered = %d, want 2", filtered)
	}
}

func TestIntegration_SameContentFreshIDsCreatesRows(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store, _, cleanup := setupKnowledge(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.AddBatch(ctx, []knowledge.Document{newDoc(t, "same content", nil)}); err != nil {
		t.Fatalf("first AddBatch: %v", err)
	}
	if err := store.AddBatch(ctx, []knowledge.Document{newDoc(t, "same content", nil)}); err != nil {
		t.Fatalf("second AddBatch: %v", err)
	}

	total, err := store.Count(ctx, nil)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2 (no dedupe)", total)
	}
}
