// Package summarizer titles chats from their first exchange.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// titlePrompt is deliberately disjoint from the conversational system
// prompt: this model call names the chat, it never answers the question.
const titlePrompt = `Generate a short, concise title (3-5 words) for a conversation that starts with the following exchange.
Reply with the title only: no quotes, no trailing punctuation, no explanation.`

// maxTitleLen caps stored titles in runes.
const maxTitleLen = 80

// Summarizer produces chat titles through a Genkit model.
type Summarizer struct {
	g         *genkit.Genkit
	modelName string
	logger    *slog.Logger
}

// New creates a Summarizer. logger may be nil.
func New(g *genkit.Genkit, modelName string, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{g: g, modelName: modelName, logger: logger}
}

// Summarize returns a title for the chat's first exchange. The answer
// may be empty; the question alone is enough to title a chat.
func (s *Summarizer) Summarize(ctx context.Context, question, answerText string) (string, error) {
	exchange := fmt.Sprintf("User: %s\n\nAssistant: %s", question, answerText)

	resp, err := genkit.Generate(ctx, s.g,
		ai.WithModelName(s.modelName),
		ai.WithSystem(titlePrompt),
		ai.WithPrompt(exchange),
		// Low temperature: titles should be stable, not creative.
		ai.WithConfig(map[string]any{"temperature": 0.2}),
	)
	if err != nil {
		return "", fmt.Errorf("summarizing title: %w", err)
	}

	title := sanitizeTitle(resp.Text())
	if title == "" {
		return "", fmt.Errorf("summarizer returned an empty title")
	}

	s.logger.Debug("summarized chat title", "title", title)
	return title, nil
}

// sanitizeTitle strips the decoration models like to add and caps the
// length.
func sanitizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	title = strings.TrimSuffix(title, ".")
	title = strings.TrimSpace(title)

	// Models occasionally return multiple lines; the first one is the title.
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = strings.TrimSpace(title[:idx])
	}

	runes := []rune(title)
	if len(runes) > maxTitleLen {
		title = strings.TrimSpace(string(runes[:maxTitleLen]))
	}
	return title
}
