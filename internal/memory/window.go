// Package memory maintains the per-chat conversation window: an ordered,
// size-bounded list of the most recent messages, stored durably and used
// verbatim as generation context.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Role identifies who produced a message.
type Role string

// Message roles stored in the window.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one window element. Messages are append-only; they are never
// edited, and disappear only through FIFO eviction.
type Message struct {
	ChatID    uuid.UUID `json:"chatId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Querier defines the database operations the window needs.
type Querier interface {
	LockChat(ctx context.Context, chatID pgtype.UUID) (pgtype.UUID, error)
	MaxSeq(ctx context.Context, chatID pgtype.UUID) (int32, error)
	InsertMessage(ctx context.Context, arg InsertMessageParams) error
	EvictBeforeSeq(ctx context.Context, chatID pgtype.UUID, cutoff int32) error
	ListMessages(ctx context.Context, chatID pgtype.UUID) ([]MessageRow, error)
}

// Window persists bounded conversation history. Safe for concurrent use;
// appends to the same chat are serialized through a row lock.
type Window struct {
	querier Querier
	pool    *pgxpool.Pool // transaction support; nil in unit tests
	size    int
	logger  *slog.Logger
}

// NewWindow creates a Window holding at most size messages per chat.
// pool may be nil for tests with a mock querier; logger may be nil.
func NewWindow(querier Querier, pool *pgxpool.Pool, size int, logger *slog.Logger) *Window {
	if logger == nil {
		logger = slog.Default()
	}
	return &Window{querier: querier, pool: pool, size: size, logger: logger}
}

// Size returns the configured window capacity.
func (w *Window) Size() int {
	return w.size
}

// Append adds messages to the chat's window in order and evicts the
// oldest entries beyond the capacity, all in one transaction. The chat
// row is locked first (SELECT ... FOR UPDATE) so two concurrent appends
// to the same chat cannot interleave their sequence numbers.
func (w *Window) Append(ctx context.Context, chatID uuid.UUID, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	if w.pool == nil {
		return w.appendWith(ctx, w.querier, chatID, msgs)
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning append transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			w.logger.Debug("append rollback (likely already committed)", "error", err)
		}
	}()

	txQueries := NewQueries(tx)
	if _, err := txQueries.LockChat(ctx, toPgUUID(chatID)); err != nil {
		return fmt.Errorf("locking chat %s: %w", chatID, err)
	}

	if err := w.appendWith(ctx, txQueries, chatID, msgs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing append: %w", err)
	}

	w.logger.Debug("appended messages", "chat_id", chatID, "count", len(msgs))
	return nil
}

func (w *Window) appendWith(ctx context.Context, q Querier, chatID uuid.UUID, msgs []Message) error {
	pgID := toPgUUID(chatID)

	maxSeq, err := q.MaxSeq(ctx, pgID)
	if err != nil {
		return fmt.Errorf("reading max sequence for chat %s: %w", chatID, err)
	}

	for i, msg := range msgs {
		seq := maxSeq + int32(i) + 1 // #nosec G115 -- i bounded by slice length
		if err := q.InsertMessage(ctx, InsertMessageParams{
			ChatID:  pgID,
			Role:    string(msg.Role),
			Content: msg.Content,
			Seq:     seq,
		}); err != nil {
			return fmt.Errorf("inserting message %d: %w", i, err)
		}
	}

	newMax := maxSeq + int32(len(msgs)) // #nosec G115 -- len bounded by practical message limits
	cutoff := newMax - int32(w.size)    // #nosec G115 -- size validated by config
	if cutoff > 0 {
		if err := q.EvictBeforeSeq(ctx, pgID, cutoff); err != nil {
			return fmt.Errorf("evicting old messages: %w", err)
		}
	}

	return nil
}

// Load returns the chat's window contents, oldest first. The result never
// exceeds the configured capacity.
func (w *Window) Load(ctx context.Context, chatID uuid.UUID) ([]Message, error) {
	rows, err := w.querier.ListMessages(ctx, toPgUUID(chatID))
	if err != nil {
		return nil, fmt.Errorf("loading window for chat %s: %w", chatID, err)
	}

	msgs := make([]Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, Message{
			ChatID:    fromPgUUID(row.ChatID),
			Role:      Role(row.Role),
			Content:   row.Content,
			CreatedAt: row.CreatedAt.Time,
		})
	}
	return msgs, nil
}

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func fromPgUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return id.Bytes
}
