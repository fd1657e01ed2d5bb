package session

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of pgx connections the queries need. Both
// *pgxpool.Pool and pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries holds the hand-written SQL for the chats table.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// ChatRow mirrors a chats table row.
type ChatRow struct {
	ID          pgtype.UUID
	UserID      string
	Title       *string
	LastMessage string
	CreatedAt   pgtype.Timestamptz
}

const createChat = `
INSERT INTO chats (id, user_id, last_message)
VALUES ($1, $2, $3)
RETURNING id, user_id, title, last_message, created_at`

// CreateChatParams holds the arguments for CreateChat.
type CreateChatParams struct {
	ID          pgtype.UUID
	UserID      string
	LastMessage string
}

func (q *Queries) CreateChat(ctx context.Context, arg CreateChatParams) (ChatRow, error) {
	row := q.db.QueryRow(ctx, createChat, arg.ID, arg.UserID, arg.LastMessage)
	var c ChatRow
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.LastMessage, &c.CreatedAt)
	return c, err
}

const getChat = `
SELECT id, user_id, title, last_message, created_at
FROM chats
WHERE id = $1 AND user_id = $2`

// GetChatParams holds the arguments for GetChat.
type GetChatParams struct {
	ID     pgtype.UUID
	UserID string
}

func (q *Queries) GetChat(ctx context.Context, arg GetChatParams) (ChatRow, error) {
	row := q.db.QueryRow(ctx, getChat, arg.ID, arg.UserID)
	var c ChatRow
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.LastMessage, &c.CreatedAt)
	return c, err
}

const listChats = `
SELECT id, user_id, title, last_message, created_at
FROM chats
WHERE user_id = $1
ORDER BY created_at DESC`

func (q *Queries) ListChats(ctx context.Context, userID string) ([]ChatRow, error) {
	rows, err := q.db.Query(ctx, listChats, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []ChatRow
	for rows.Next() {
		var c ChatRow
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.LastMessage, &c.CreatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

const renameChat = `
UPDATE chats
SET title = $3
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, title, last_message, created_at`

// RenameChatParams holds the arguments for RenameChat.
type RenameChatParams struct {
	ID     pgtype.UUID
	UserID string
	Title  string
}

func (q *Queries) RenameChat(ctx context.Context, arg RenameChatParams) (ChatRow, error) {
	row := q.db.QueryRow(ctx, renameChat, arg.ID, arg.UserID, arg.Title)
	var c ChatRow
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.LastMessage, &c.CreatedAt)
	return c, err
}

const updateLastMessage = `
UPDATE chats
SET last_message = $3
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, title, last_message, created_at`

// UpdateLastMessageParams holds the arguments for UpdateLastMessage.
type UpdateLastMessageParams struct {
	ID          pgtype.UUID
	UserID      string
	LastMessage string
}

func (q *Queries) UpdateLastMessage(ctx context.Context, arg UpdateLastMessageParams) (ChatRow, error) {
	row := q.db.QueryRow(ctx, updateLastMessage, arg.ID, arg.UserID, arg.LastMessage)
	var c ChatRow
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.LastMessage, &c.CreatedAt)
	return c, err
}
