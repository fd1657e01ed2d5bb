package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/google/uuid"

	"github.com/vlaship/rex/internal/log"
)

// mockEmbedder implements ai.Embedder, returning one fixed-width vector
// per input document.
type mockEmbedder struct {
	err        error
	embedCalls int
	lastInputs int
	short      bool // return fewer embeddings than inputs
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(api.Registry) {}

func (m *mockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.embedCalls++
	m.lastInputs = len(req.Input)
	if m.err != nil {
		return nil, m.err
	}
	n := len(req.Input)
	if m.short {
		n--
	}
	resp := &ai.EmbedResponse{}
	for range n {
		vec := make([]float32, VectorDimension)
		vec[0] = 1
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
	}
	return resp, nil
}

type mockQuerier struct {
	insertErr error
	searchErr error

	inserted    []InsertDocumentParams
	searchRows  []SearchRow
	lastFilter  []byte
	lastLimit   int32
	allSearches int
	countAll    int64
	countMatch  int64
}

func (m *mockQuerier) InsertDocument(_ context.Context, arg InsertDocumentParams) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, arg)
	return nil
}

func (m *mockQuerier) SearchDocuments(_ context.Context, arg SearchDocumentsParams) ([]SearchRow, error) {
	m.lastFilter = arg.FilterMetadata
	m.lastLimit = arg.ResultLimit
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchRows, nil
}

func (m *mockQuerier) SearchDocumentsAll(_ context.Context, arg SearchDocumentsAllParams) ([]SearchRow, error) {
	m.allSearches++
	m.lastLimit = arg.ResultLimit
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchRows, nil
}

func (m *mockQuerier) CountDocuments(_ context.Context, filter []byte) (int64, error) {
	m.lastFilter = filter
	return m.countMatch, nil
}

func (m *mockQuerier) CountDocumentsAll(_ context.Context) (int64, error) {
	return m.countAll, nil
}

func doc(content string) Document {
	id, _ := uuid.NewV7()
	return Document{ID: id, Content: content}
}

func TestAddBatch_SingleEmbedRequest(t *testing.T) {
	embedder := &mockEmbedder{}
	querier := &mockQuerier{}
	store := New(querier, nil, embedder, log.NewNop())

	docs := []Document{doc("alpha"), doc("beta"), doc("gamma")}
	if err := store.AddBatch(context.Background(), docs); err != nil {
		t.Fatalf("AddBatch() = %v", err)
	}

	if embedder.embedCalls != 1 {
		t.Errorf("embed calls = %d, want 1 per batch", embedder.embedCalls)
	}
	if embedder.lastInputs != 3 {
		t.Errorf("embed inputs = %d, want 3", embedder.lastInputs)
	}
	if len(querier.inserted) != 3 {
		t.Errorf("inserted = %d, want 3", len(querier.inserted))
	}
}

func TestAddBatch_DefaultsMetadataToEmptyMap(t *testing.T) {
	querier := &mockQuerier{}
	store := New(querier, nil, &mockEmbedder{}, log.NewNop())

	if err := store.AddBatch(context.Background(), []Document{doc("no metadata")}); err != nil {
		t.Fatalf("AddBatch() = %v", err)
	}

	var metadata map[string]any
	if err := json.Unmarshal(querier.inserted[0].Metadata, &metadata); err != nil {
		t.Fatalf("metadata not valid JSON: %v", err)
	}
	if metadata == nil || len(metadata) != 0 {
		t.Errorf("metadata = %v, want empty map", metadata)
	}
}

func TestAddBatch_EmbedderFailure(t *testing.T) {
	embedErr := errors.New("quota exceeded")
	store := New(&mockQuerier{}, nil, &mockEmbedder{err: embedErr}, log.NewNop())

	err := store.AddBatch(context.Background(), []Document{doc("x")})
	if !errors.Is(err, embedErr) {
		t.Errorf("AddBatch() = %v, want wrapped embed error", err)
	}
}

func TestAddBatch_EmbeddingCountMismatch(t *testing.T) {
	store := New(&mockQuerier{}, nil, &mockEmbedder{short: true}, log.NewNop())

	if err := store.AddBatch(context.Background(), []Document{doc("a"), doc("b")}); err == nil {
		t.Fatal("expected error on embedding count mismatch")
	}
}

func TestAddBatch_EmptyIsNoop(t *testing.T) {
	embedder := &mockEmbedder{}
	store := New(&mockQuerier{}, nil, embedder, log.NewNop())

	if err := store.AddBatch(context.Background(), nil); err != nil {
		t.Fatalf("AddBatch() = %v", err)
	}
	if embedder.embedCalls != 0 {
		t.Error("empty batch reached the embedder")
	}
}

func TestSearch_Unfiltered(t *testing.T) {
	querier := &mockQuerier{searchRows: []SearchRow{
		{Content: "best match", Metadata: []byte(`{}`), Similarity: 0.93},
		{Content: "second", Metadata: []byte(`{}`), Similarity: 0.71},
	}}
	store := New(querier, nil, &mockEmbedder{}, log.NewNop())

	results, err := store.Search(context.Background(), "query", WithTopK(2))
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}

	if querier.allSearches != 1 {
		t.Error("unfiltered search must not use the filtered query")
	}
	if querier.lastLimit != 2 {
		t.Errorf("limit = %d, want 2", querier.lastLimit)
	}
	if len(results) != 2 || results[0].Similarity < results[1].Similarity {
		t.Errorf("results not in descending similarity: %+v", results)
	}
}

func TestSearch_FilterMarshaledAsJSON(t *testing.T) {
	querier := &mockQuerier{}
	store := New(querier, nil, &mockEmbedder{}, log.NewNop())

	_, err := store.Search(context.Background(), "query", WithFilter("dogId", "42"))
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}

	var filter map[string]any
	if err := json.Unmarshal(querier.lastFilter, &filter); err != nil {
		t.Fatalf("filter not valid JSON: %v", err)
	}
	if filter["dogId"] != "42" {
		t.Errorf("filter = %v", filter)
	}
}

func TestSearch_MalformedMetadataDegrades(t *testing.T) {
	querier := &mockQuerier{searchRows: []SearchRow{
		{Content: "kept", Metadata: []byte(`{broken`), Similarity: 0.5},
	}}
	store := New(querier, nil, &mockEmbedder{}, log.NewNop())

	results, err := store.Search(context.Background(), "query")
	if err != nil {
		t.Fatalf("Search() = %v", err)
	}
	if len(results) != 1 || results[0].Document.Content != "kept" {
		t.Fatalf("document dropped on metadata parse failure: %+v", results)
	}
	if len(results[0].Document.Metadata) != 0 {
		t.Errorf("metadata = %v, want empty map", results[0].Document.Metadata)
	}
}

func TestCount(t *testing.T) {
	querier := &mockQuerier{countAll: 10, countMatch: 3}
	store := New(querier, nil, &mockEmbedder{}, log.NewNop())

	all, err := store.Count(context.Background(), nil)
	if err != nil || all != 10 {
		t.Errorf("Count(nil) = %d, %v; want 10", all, err)
	}

	match, err := store.Count(context.Background(), map[string]any{"dogId": "42"})
	if err != nil || match != 3 {
		t.Errorf("Count(filter) = %d, %v; want 3", match, err)
	}
}

func TestRetriever_ReturnsSnippets(t *testing.T) {
	querier := &mockQuerier{searchRows: []SearchRow{
		{Content: "Buddy, a golden retriever, friendly with kids", Metadata: []byte(`{"dogId":"42"}`), Similarity: 0.9},
	}}
	store := New(querier, nil, &mockEmbedder{}, log.NewNop())
	retriever := NewRetriever(store, 5)

	snippets, err := retriever.Retrieve(context.Background(), "friendly dog for kids", 1)
	if err != nil {
		t.Fatalf("Retrieve() = %v", err)
	}
	if len(snippets) != 1 || snippets[0] != "Buddy, a golden retriever, friendly with kids" {
		t.Errorf("snippets = %v", snippets)
	}
}
