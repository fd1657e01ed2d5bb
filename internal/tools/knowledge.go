package tools

import (
	"fmt"

	"github.com/firebase/genkit/go/ai"

	"github.com/vlaship/rex/internal/knowledge"
)

// SearchDocumentsInput defines input for search_documents.
type SearchDocumentsInput struct {
	Query string `json:"query" jsonschema_description:"The search query string"`
	TopK  int    `json:"topK,omitempty" jsonschema_description:"Maximum results to return (1-10)"`
}

// SearchMatch is one search_documents result entry.
type SearchMatch struct {
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// SearchDocumentsOutput is the search_documents result.
type SearchDocumentsOutput struct {
	Query   string        `json:"query"`
	Count   int           `json:"count"`
	Results []SearchMatch `json:"results"`
}

// CountDocumentsInput defines input for count_documents.
type CountDocumentsInput struct {
	Filter map[string]any `json:"filter,omitempty" jsonschema_description:"Metadata key/value pairs a document must contain"`
}

// CountDocumentsOutput is the count_documents result.
type CountDocumentsOutput struct {
	Count int `json:"count"`
}

// SearchDocuments performs a semantic search over the document store.
func (r *Registry) SearchDocuments(ctx *ai.ToolContext, input SearchDocumentsInput) (SearchDocumentsOutput, error) {
	if input.Query == "" {
		return SearchDocumentsOutput{}, fmt.Errorf("query is required")
	}

	topK := clampTopK(input.TopK)
	results, err := r.searcher.Search(ctx, input.Query, knowledge.WithTopK(topK))
	if err != nil {
		r.logger.Warn("search_documents failed", "query", input.Query, "error", err)
		return SearchDocumentsOutput{}, fmt.Errorf("searching documents: %w", err)
	}

	matches := make([]SearchMatch, len(results))
	for i, res := range results {
		matches[i] = SearchMatch{Content: res.Document.Content, Similarity: res.Similarity}
	}
	return SearchDocumentsOutput{Query: input.Query, Count: len(matches), Results: matches}, nil
}

// CountDocuments counts stored documents, optionally filtered by metadata.
func (r *Registry) CountDocuments(ctx *ai.ToolContext, input CountDocumentsInput) (CountDocumentsOutput, error) {
	count, err := r.searcher.Count(ctx, input.Filter)
	if err != nil {
		r.logger.Warn("count_documents failed", "error", err)
		return CountDocumentsOutput{}, fmt.Errorf("counting documents: %w", err)
	}
	return CountDocumentsOutput{Count: count}, nil
}
