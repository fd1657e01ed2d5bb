package memory

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the subset of pgx connections the queries need. Both
// *pgxpool.Pool and pgx.Tx satisfy it, which lets the same Queries run
// inside the append transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries holds the hand-written SQL for the chat_messages table.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// MessageRow mirrors a chat_messages table row.
type MessageRow struct {
	ChatID    pgtype.UUID
	Role      string
	Content   string
	Seq       int32
	CreatedAt pgtype.Timestamptz
}

// lockChat serializes appends per chat. The row lock is held until the
// surrounding transaction commits.
const lockChat = `SELECT id FROM chats WHERE id = $1 FOR UPDATE`

func (q *Queries) LockChat(ctx context.Context, chatID pgtype.UUID) (pgtype.UUID, error) {
	row := q.db.QueryRow(ctx, lockChat, chatID)
	var id pgtype.UUID
	err := row.Scan(&id)
	return id, err
}

const maxSeq = `SELECT COALESCE(MAX(seq), 0) FROM chat_messages WHERE chat_id = $1`

func (q *Queries) MaxSeq(ctx context.Context, chatID pgtype.UUID) (int32, error) {
	row := q.db.QueryRow(ctx, maxSeq, chatID)
	var seq int32
	err := row.Scan(&seq)
	return seq, err
}

const insertMessage = `
INSERT INTO chat_messages (chat_id, role, content, seq)
VALUES ($1, $2, $3, $4)`

// InsertMessageParams holds the arguments for InsertMessage.
type InsertMessageParams struct {
	ChatID  pgtype.UUID
	Role    string
	Content string
	Seq     int32
}

func (q *Queries) InsertMessage(ctx context.Context, arg InsertMessageParams) error {
	_, err := q.db.Exec(ctx, insertMessage, arg.ChatID, arg.Role, arg.Content, arg.Seq)
	return err
}

// evictBeforeSeq implements the FIFO window: everything at or below the
// cutoff sequence number is dropped.
const evictBeforeSeq = `DELETE FROM chat_messages WHERE chat_id = $1 AND seq <= $2`

func (q *Queries) EvictBeforeSeq(ctx context.Context, chatID pgtype.UUID, cutoff int32) error {
	_, err := q.db.Exec(ctx, evictBeforeSeq, chatID, cutoff)
	return err
}

const listMessages = `
SELECT chat_id, role, content, seq, created_at
FROM chat_messages
WHERE chat_id = $1
ORDER BY seq ASC`

func (q *Queries) ListMessages(ctx context.Context, chatID pgtype.UUID) ([]MessageRow, error) {
	rows, err := q.db.Query(ctx, listMessages, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []MessageRow
	for rows.Next() {
		var m MessageRow
		if err := rows.Scan(&m.ChatID, &m.Role, &m.Content, &m.Seq, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
