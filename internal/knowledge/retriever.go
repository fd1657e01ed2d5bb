package knowledge

import (
	"context"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Retriever adapts the store to the answer pipeline: plain text snippets
// in, nearest documents out. It also registers the store as a Genkit
// retriever so flows can address it by name.
type Retriever struct {
	store *Store
	topK  int
}

// NewRetriever creates a Retriever returning at most topK snippets by
// default.
func NewRetriever(store *Store, topK int) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{store: store, topK: topK}
}

// Retrieve returns the contents of the k documents nearest to query,
// best match first. k <= 0 falls back to the configured default.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		k = r.topK
	}

	results, err := r.store.Search(ctx, query, WithTopK(k))
	if err != nil {
		return nil, err
	}

	snippets := make([]string, 0, len(results))
	for _, res := range results {
		snippets = append(snippets, res.Document.Content)
	}
	return snippets, nil
}

// Define registers the store as a Genkit retriever under name.
func (r *Retriever) Define(g *genkit.Genkit, name string) ai.Retriever {
	return genkit.DefineRetriever(g, name, nil,
		func(ctx context.Context, req *ai.RetrieverRequest) (*ai.RetrieverResponse, error) {
			query := ""
			if req.Query != nil && len(req.Query.Content) > 0 {
				query = req.Query.Content[0].Text
			}

			results, err := r.store.Search(ctx, query, WithTopK(r.topK))
			if err != nil {
				return nil, err
			}

			docs := make([]*ai.Document, len(results))
			for i, res := range results {
				metadata := make(map[string]any, len(res.Document.Metadata)+1)
				for k, v := range res.Document.Metadata {
					metadata[k] = v
				}
				metadata["similarity"] = res.Similarity
				docs[i] = ai.DocumentFromText(res.Document.Content, metadata)
			}
			return &ai.RetrieverResponse{Documents: docs}, nil
		},
	)
}
