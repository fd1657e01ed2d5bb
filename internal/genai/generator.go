// Package genai implements the generation capability on top of Genkit.
// The tool-call loop lives entirely inside the model call; callers see
// one request in, a stream of text fragments and a final answer out.
package genai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/vlaship/rex/internal/answer"
	"github.com/vlaship/rex/internal/memory"
)

// systemPrompt frames the conversational assistant. The summarizer uses
// its own prompt; keep the two disjoint.
const systemPrompt = `You are Rex, a helpful assistant. Answer the user's question directly and concisely.
Use the provided context documents when they are relevant, and say so when they are not.
Use the available tools when a question needs information you do not have.`

// Generator runs answer generation through a Genkit model with the fixed
// tool registry attached.
type Generator struct {
	g           *genkit.Genkit
	modelName   string
	toolRefs    []ai.ToolRef
	temperature float64
	maxTurns    int
	logger      *slog.Logger
}

// NewGenerator creates a Generator. modelName must be provider-qualified
// (see config.FullModelName). logger may be nil.
func NewGenerator(g *genkit.Genkit, modelName string, toolRefs []ai.ToolRef, temperature float64, maxTurns int, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxTurns <= 0 {
		maxTurns = 5
	}
	return &Generator{
		g:           g,
		modelName:   modelName,
		toolRefs:    toolRefs,
		temperature: temperature,
		maxTurns:    maxTurns,
		logger:      logger,
	}
}

// Generate produces one answer. Conversation history and the question
// become the message list, snippets ride along as context documents, and
// every streamed text part is forwarded to onDelta in order.
func (gen *Generator) Generate(ctx context.Context, req answer.GenerateRequest, onDelta func(context.Context, string) error) (string, error) {
	messages := make([]*ai.Message, 0, len(req.History)+1)
	for _, msg := range req.History {
		switch msg.Role {
		case memory.RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(msg.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(msg.Content)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(req.Question)))

	opts := []ai.GenerateOption{
		ai.WithModelName(gen.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
		ai.WithMaxTurns(gen.maxTurns),
		ai.WithConfig(map[string]any{"temperature": gen.temperature}),
	}

	if len(gen.toolRefs) > 0 {
		opts = append(opts, ai.WithTools(gen.toolRefs...))
	}

	if len(req.Snippets) > 0 {
		docs := make([]*ai.Document, len(req.Snippets))
		for i, snippet := range req.Snippets {
			docs[i] = ai.DocumentFromText(snippet, nil)
		}
		opts = append(opts, ai.WithDocs(docs...))
	}

	if onDelta != nil {
		opts = append(opts, ai.WithStreaming(func(cctx context.Context, chunk *ai.ModelResponseChunk) error {
			if chunk == nil {
				return nil
			}
			for _, part := range chunk.Content {
				if part.Text != "" {
					if err := onDelta(cctx, part.Text); err != nil {
						return err
					}
				}
			}
			return nil
		}))
	}

	gen.logger.Debug("generating answer",
		"model", gen.modelName,
		"history", len(req.History),
		"snippets", len(req.Snippets),
		"tools", len(gen.toolRefs),
	)

	resp, err := genkit.Generate(ctx, gen.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return resp.Text(), nil
}
