package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vlaship/rex/db"
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

// RetrieverName is the Genkit registration name of the document retriever.
const RetrieverName = "rex/documents"

// Setup creates and initializes the application. On failure everything
// already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := providePool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Knowledge = knowledge.New(knowledge.NewQueries(pool), pool, embedder, logger)
	a.Retriever = knowledge.NewRetriever(a.Knowledge, cfg.RetrievalTopK)
	a.Retriever.Define(g, RetrieverName)

	a.Sessions = session.New(session.NewQueries(pool), logger)
	a.Window = memory.NewWindow(memory.NewQueries(pool), pool, cfg.HistoryWindow, logger)

	registry, err := tools.New(a.Knowledge, logger)
	if err != nil {
		return nil, err
	}
	a.Tools = registry

	registered, err := registry.Register(g)
	if err != nil {
		return nil, err
	}

	a.Generator = genai.NewGenerator(g, cfg.FullModelName(), tools.Refs(registered), cfg.Temperature, cfg.MaxTurns, logger)
	a.Summarizer = summarizer.New(g, cfg.FullModelName(), logger)

	a.Ingest = ingest.New(a.Knowledge, cfg.IngestQueueSize, cfg.IngestWorkers, logger)

	a.Orchestrator = answer.New(a.Sessions, a.Window, a.Retriever, a.Generator, a.Summarizer, answer.Config{
		GenerationTimeout: time.Duration(cfg.GenerationTimeoutSec) * time.Second,
		RetrievalTimeout:  time.Duration(cfg.RetrievalTimeoutSec) * time.Second,
		TopK:              cfg.RetrievalTopK,
		RateLimitRPS:      cfg.RateLimitRPS,
	}, logger)
	a.Flow = a.Orchestrator.DefineFlow(g)

	return a, nil
}

// providePool runs migrations, then opens and pings the connection pool.
func providePool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the configured model provider.
// Ollama models need explicit registration; Gemini models are discovered
// by the plugin.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, nil

	default: // gemini / googleai
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized genkit with gemini provider", "model", cfg.ModelName)
		return g, nil
	}
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	if cfg.Provider == config.ProviderOllama {
		// Ollama embedders are keyed by server address (see provideGenkit).
		return ollama.Embedder(g, cfg.OllamaHost)
	}
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}
