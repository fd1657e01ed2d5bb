// Package answer orchestrates one streamed assistant answer: resolve the
// session, retrieve supporting snippets, generate with tools, stream
// deltas, persist the exchange.
//
// Each request walks INIT, RETRIEVING, GENERATING, STREAMING and ends in
// COMPLETED or FAILED. Retrieval failure degrades to an answer without
// snippets; generation failure or timeout becomes the terminal error
// event; persistence failure after the answer was delivered is logged
// only. Client cancellation stops the stream without a terminal event
// and without side effects.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vlaship/rex/internal/memory"
	"github.com/vlaship/rex/internal/session"
)

// ErrValidation indicates a malformed request, reported before any event
// is emitted.
var ErrValidation = errors.New("invalid request")

// Request asks for one streamed answer. A nil ChatID starts a new chat.
type Request struct {
	ChatID   *uuid.UUID
	UserID   string
	Question string
}

// GenerateRequest carries the assembled context into the generation
// capability. The capability may loop through tool calls internally; the
// orchestrator never observes those.
type GenerateRequest struct {
	History  []memory.Message
	Snippets []string
	Question string
}

// Generator produces the answer, invoking onDelta once per text fragment
// in order. It returns the full final text, which may be empty when the
// model only produced fragments.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest, onDelta func(context.Context, string) error) (string, error)
}

// Retriever supplies supporting snippets for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
}

// Sessions is the slice of the session store the orchestrator uses.
type Sessions interface {
	Get(ctx context.Context, chatID uuid.UUID, userID string) (session.ChatSession, error)
	Create(ctx context.Context, userID, initialMessage string) (session.ChatSession, error)
	UpdatePreview(ctx context.Context, chatID uuid.UUID, userID, newMessage string) (session.ChatSession, error)
	Rename(ctx context.Context, chatID uuid.UUID, userID, newTitle string) (session.ChatSession, error)
}

// History is the slice of the memory window the orchestrator uses.
type History interface {
	Load(ctx context.Context, chatID uuid.UUID) ([]memory.Message, error)
	Append(ctx context.Context, chatID uuid.UUID, msgs ...memory.Message) error
}

// Summarizer produces a short chat title from the first exchange.
type Summarizer interface {
	Summarize(ctx context.Context, question, answerText string) (string, error)
}

// Config tunes the orchestrator.
type Config struct {
	GenerationTimeout time.Duration
	RetrievalTimeout  time.Duration
	TopK              int
	RateLimitRPS      int
}

func (c *Config) applyDefaults() {
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = 60 * time.Second
	}
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = 5 * time.Second
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = 5
	}
}

// Orchestrator runs answer requests. Safe for concurrent use.
type Orchestrator struct {
	sessions   Sessions
	history    History
	retriever  Retriever
	generator  Generator
	summarizer Summarizer
	limiter    *rate.Limiter
	cfg        Config
	logger     *slog.Logger
}

// New creates an Orchestrator. logger may be nil.
func New(sessions Sessions, history History, retriever Retriever, generator Generator, summarizer Summarizer, cfg Config, logger *slog.Logger) *Orchestrator {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sessions:   sessions,
		history:    history,
		retriever:  retriever,
		generator:  generator,
		summarizer: summarizer,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitRPS*2),
		cfg:        cfg,
		logger:     logger,
	}
}

// Answer streams one answer through emit. Validation and ownership
// failures return before any event (ErrValidation, session.ErrNotFound);
// once streaming has begun all failures surface as the terminal error
// event and Answer returns nil.
func (o *Orchestrator) Answer(ctx context.Context, req Request, emit EmitFunc) error {
	if strings.TrimSpace(req.UserID) == "" {
		return fmt.Errorf("%w: userId must not be blank", ErrValidation)
	}
	if strings.TrimSpace(req.Question) == "" {
		return fmt.Errorf("%w: question must not be blank", ErrValidation)
	}

	// INIT: resolve or create the session.
	var (
		chat session.ChatSession
		err  error
	)
	if req.ChatID != nil {
		chat, err = o.sessions.Get(ctx, *req.ChatID, req.UserID)
	} else {
		chat, err = o.sessions.Create(ctx, req.UserID, req.Question)
	}
	if err != nil {
		return err
	}

	out := &emitter{emit: emit}
	logger := o.logger.With("chat_id", chat.ID, "user_id", req.UserID)

	history, err := o.history.Load(ctx, chat.ID)
	if err != nil {
		// Missing context degrades the answer, it does not block it.
		logger.Warn("loading history failed, answering without it", "error", err)
		history = nil
	}
	firstExchange := len(history) == 0

	// RETRIEVING: best effort, bounded, degrades to zero snippets.
	snippets := o.retrieve(ctx, logger, req.Question)

	// GENERATING / STREAMING.
	if err := o.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err() // client gone before any event
		}
		return o.fail(out, chat.ID, logger, "answer generation is overloaded, try again later", err)
	}

	genCtx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	var assembled strings.Builder
	onDelta := func(_ context.Context, fragment string) error {
		if fragment == "" {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		assembled.WriteString(fragment)
		return out.delta(chat.ID, fragment)
	}

	finalText, err := o.generator.Generate(genCtx, GenerateRequest{
		History:  history,
		Snippets: snippets,
		Question: req.Question,
	}, onDelta)
	if err != nil {
		// Cancellation by the client: stop quietly, no terminal event,
		// no side effects for an answer that never completed.
		if ctx.Err() != nil {
			logger.Debug("request canceled mid-generation", "error", err)
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return o.fail(out, chat.ID, logger, "answer generation timed out", err)
		}
		return o.fail(out, chat.ID, logger, "answer generation failed", err)
	}

	if finalText == "" {
		finalText = assembled.String()
	}

	// COMPLETED: the terminal event goes out first; everything after it
	// is a side effect whose failure is logged, never retried, never
	// surfaced to a client that already has its answer.
	if err := out.completed(chat.ID, finalText); err != nil {
		logger.Debug("client gone before completed event", "error", err)
		return nil
	}

	// The client disconnecting after delivery must not cancel persistence.
	o.persistExchange(context.WithoutCancel(ctx), logger, chat, req.Question, finalText, firstExchange)
	return nil
}

// retrieve fetches snippets under the retrieval timeout. Any failure is
// logged and turned into an empty result.
func (o *Orchestrator) retrieve(ctx context.Context, logger *slog.Logger, question string) []string {
	rctx, cancel := context.WithTimeout(ctx, o.cfg.RetrievalTimeout)
	defer cancel()

	snippets, err := o.retriever.Retrieve(rctx, question, o.cfg.TopK)
	if err != nil {
		logger.Warn("retrieval failed, continuing without snippets", "error", err)
		return nil
	}
	return snippets
}

// fail emits the terminal error event. The emit error itself only means
// the client is gone, which at this point changes nothing.
func (o *Orchestrator) fail(out *emitter, chatID uuid.UUID, logger *slog.Logger, message string, cause error) error {
	logger.Error("answer failed", "message", message, "error", cause)
	if err := out.error(chatID, message); err != nil {
		logger.Debug("client gone before error event", "error", err)
	}
	return nil
}

// persistExchange appends the completed exchange to the memory window,
// refreshes the preview, and titles the chat on its first exchange.
func (o *Orchestrator) persistExchange(ctx context.Context, logger *slog.Logger, chat session.ChatSession, question, answerText string, firstExchange bool) {
	if err := o.history.Append(ctx, chat.ID,
		memory.Message{Role: memory.RoleUser, Content: question},
		memory.Message{Role: memory.RoleAssistant, Content: answerText},
	); err != nil {
		logger.Error("persisting exchange failed after delivery", "error", err)
	}

	if _, err := o.sessions.UpdatePreview(ctx, chat.ID, chat.UserID, answerText); err != nil {
		logger.Error("updating preview failed", "error", err)
	}

	if firstExchange {
		sctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		title, err := o.summarizer.Summarize(sctx, question, answerText)
		if err != nil {
			logger.Warn("summarizing title failed", "error", err)
			return
		}
		if _, err := o.sessions.Rename(ctx, chat.ID, chat.UserID, title); err != nil {
			logger.Warn("renaming chat failed", "error", err)
		}
	}
}
