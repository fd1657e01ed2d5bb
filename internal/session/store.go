package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Querier defines the database operations the store needs. The interface
// lives on the consumer side so tests can substitute a mock.
type Querier interface {
	CreateChat(ctx context.Context, arg CreateChatParams) (ChatRow, error)
	GetChat(ctx context.Context, arg GetChatParams) (ChatRow, error)
	ListChats(ctx context.Context, userID string) ([]ChatRow, error)
	RenameChat(ctx context.Context, arg RenameChatParams) (ChatRow, error)
	UpdateLastMessage(ctx context.Context, arg UpdateLastMessageParams) (ChatRow, error)
}

// Store manages chat session persistence. Safe for concurrent use.
type Store struct {
	querier Querier
	logger  *slog.Logger
}

// New creates a Store. logger may be nil.
func New(querier Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, logger: logger}
}

// Create persists a new session for userID, seeding the preview from
// initialMessage. The UUIDv7 identifier is generated here, immediately
// before the insert: time-ordered so listings sort naturally, random
// enough that concurrent creates cannot collide.
func (s *Store) Create(ctx context.Context, userID, initialMessage string) (ChatSession, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return ChatSession{}, fmt.Errorf("generating chat id: %w", err)
	}

	row, err := s.querier.CreateChat(ctx, CreateChatParams{
		ID:          toPgUUID(id),
		UserID:      userID,
		LastMessage: TruncatePreview(initialMessage),
	})
	if err != nil {
		return ChatSession{}, fmt.Errorf("creating chat: %w", err)
	}

	s.logger.Debug("created chat", "chat_id", id, "user_id", userID)
	return rowToSession(row), nil
}

// Get returns the session only when chatID belongs to userID.
func (s *Store) Get(ctx context.Context, chatID uuid.UUID, userID string) (ChatSession, error) {
	row, err := s.querier.GetChat(ctx, GetChatParams{ID: toPgUUID(chatID), UserID: userID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChatSession{}, ErrNotFound
		}
		return ChatSession{}, fmt.Errorf("getting chat %s: %w", chatID, err)
	}
	return rowToSession(row), nil
}

// ListByUser returns the user's sessions, most recently created first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]ChatSession, error) {
	rows, err := s.querier.ListChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing chats for %s: %w", userID, err)
	}

	sessions := make([]ChatSession, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, rowToSession(row))
	}
	return sessions, nil
}

// Rename replaces the session title, returning the new version.
func (s *Store) Rename(ctx context.Context, chatID uuid.UUID, userID, newTitle string) (ChatSession, error) {
	row, err := s.querier.RenameChat(ctx, RenameChatParams{
		ID:     toPgUUID(chatID),
		UserID: userID,
		Title:  newTitle,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChatSession{}, ErrNotFound
		}
		return ChatSession{}, fmt.Errorf("renaming chat %s: %w", chatID, err)
	}

	s.logger.Debug("renamed chat", "chat_id", chatID, "title", newTitle)
	return rowToSession(row), nil
}

// UpdatePreview replaces the last-message preview with the truncated copy
// of newMessage, returning the new version.
func (s *Store) UpdatePreview(ctx context.Context, chatID uuid.UUID, userID, newMessage string) (ChatSession, error) {
	row, err := s.querier.UpdateLastMessage(ctx, UpdateLastMessageParams{
		ID:          toPgUUID(chatID),
		UserID:      userID,
		LastMessage: TruncatePreview(newMessage),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChatSession{}, ErrNotFound
		}
		return ChatSession{}, fmt.Errorf("updating preview for chat %s: %w", chatID, err)
	}
	return rowToSession(row), nil
}

func rowToSession(row ChatRow) ChatSession {
	return ChatSession{
		ID:          fromPgUUID(row.ID),
		UserID:      row.UserID,
		Title:       row.Title,
		LastMessage: row.LastMessage,
		CreatedAt:   row.CreatedAt.Time,
	}
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
