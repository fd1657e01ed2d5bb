// Package tools defines the fixed tool registry exposed to the model.
//
// Three tools are registered: current_time, search_documents and
// count_documents. Handlers live on the Registry struct so they can be
// tested directly and reused by the MCP server; the Genkit registration
// is a thin adapter around them.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/vlaship/rex/internal/knowledge"
)

// Tool name constants registered with Genkit and MCP.
const (
	CurrentTimeName     = "current_time"
	SearchDocumentsName = "search_documents"
	CountDocumentsName  = "count_documents"
)

// TopK bounds for search_documents.
const (
	DefaultSearchTopK = 5
	MaxSearchTopK     = 10
)

// Searcher is the slice of the knowledge store the tools need.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
	Count(ctx context.Context, filter map[string]any) (int, error)
}

// Registry holds tool handler dependencies.
type Registry struct {
	searcher Searcher
	logger   *slog.Logger
}

// New creates a Registry. searcher is required; logger may be nil.
func New(searcher Searcher, logger *slog.Logger) (*Registry, error) {
	if searcher == nil {
		return nil, fmt.Errorf("tools: searcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{searcher: searcher, logger: logger}, nil
}

// Register registers all tools with Genkit and returns them for use as
// generation options.
func (r *Registry) Register(g *genkit.Genkit) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("tools: genkit instance is required")
	}

	registered := []ai.Tool{
		genkit.DefineTool(g, CurrentTimeName,
			"Get the current date and time. "+
				"Returns the time in RFC 3339 format plus a Unix timestamp. "+
				"Call this before answering any question about current dates, times or durations.",
			r.CurrentTime),
		genkit.DefineTool(g, SearchDocumentsName,
			"Search the indexed document store using semantic similarity. "+
				"Returns document excerpts with similarity scores. "+
				"Use this to find information from the user's knowledge base. "+
				"Default topK: 5. Maximum topK: 10.",
			r.SearchDocuments),
		genkit.DefineTool(g, CountDocumentsName,
			"Count documents in the store, optionally restricted to documents "+
				"whose metadata contains the given key/value pairs.",
			r.CountDocuments),
	}

	r.logger.Info("tools registered", "count", len(registered))
	return registered, nil
}

// Refs converts registered tools to references for generation options.
func Refs(registered []ai.Tool) []ai.ToolRef {
	refs := make([]ai.ToolRef, len(registered))
	for i, t := range registered {
		refs[i] = t
	}
	return refs
}

// clampTopK keeps topK within [1, MaxSearchTopK], defaulting when unset.
func clampTopK(topK int) int {
	if topK <= 0 {
		return DefaultSearchTopK
	}
	if topK > MaxSearchTopK {
		return MaxSearchTopK
	}
	return topK
}
