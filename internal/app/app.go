// Package app wires the application together: database, Genkit, stores,
// the ingestion pipeline and the answer orchestrator.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vlaship/rex/internal/answer"
	"github.com/vlaship/rex/internal/config"
	"github.com/vlaship/rex/internal/genai"
	"github.com/vlaship/rex/internal/ingest"
	"github.com/vlaship/rex/internal/knowledge"
	"github.com/vlaship/rex/internal/log"
	"github.com/vlaship/rex/internal/memory"
	"github.com/vlaship/rex/internal/session"
	"github.com/vlaship/rex/internal/summarizer"
	"github.com/vlaship/rex/internal/tools"
)

// App is the application container. Setup builds it; Close releases it.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Pool     *pgxpool.Pool
	Embedder ai.Embedder

	Knowledge *knowledge.Store
	Retriever *knowledge.Retriever
	Sessions  *session.Store
	Window    *memory.Window

	Tools      *tools.Registry
	Generator  *genai.Generator
	Summarizer *summarizer.Summarizer

	Ingest       *ingest.Pipeline
	Orchestrator *answer.Orchestrator
	Flow         *answer.Flow
}

// Close shuts the application down. The ingestion pipeline drains first
// so queued batches still reach the database before the pool closes.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.Ingest != nil {
		a.Ingest.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return nil
}
