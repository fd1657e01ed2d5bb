package knowledge

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// DBTX is the subset of pgx connections the queries need.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries holds the hand-written SQL for the documents table.
type Queries struct {
	db DBTX
}

// NewQueries creates a Queries bound to db.
func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

const insertDocument = `
INSERT INTO documents (id, content, metadata, embedding)
VALUES ($1, $2, $3, $4)`

// InsertDocumentParams holds the arguments for InsertDocument.
type InsertDocumentParams struct {
	ID        pgtype.UUID
	Content   string
	Metadata  []byte
	Embedding *pgvector.Vector
}

func (q *Queries) InsertDocument(ctx context.Context, arg InsertDocumentParams) error {
	_, err := q.db.Exec(ctx, insertDocument, arg.ID, arg.Content, arg.Metadata, arg.Embedding)
	return err
}

// SearchRow is one vector-search result row.
type SearchRow struct {
	ID         pgtype.UUID
	Content    string
	Metadata   []byte
	CreatedAt  pgtype.Timestamptz
	Similarity float64
}

const searchDocuments = `
SELECT id, content, metadata, created_at,
       1 - (embedding <=> $1) AS similarity
FROM documents
WHERE metadata @> $2
ORDER BY embedding <=> $1
LIMIT $3`

// SearchDocumentsParams holds the arguments for SearchDocuments.
type SearchDocumentsParams struct {
	QueryEmbedding *pgvector.Vector
	FilterMetadata []byte
	ResultLimit    int32
}

func (q *Queries) SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchRow, error) {
	rows, err := q.db.Query(ctx, searchDocuments, arg.QueryEmbedding, arg.FilterMetadata, arg.ResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSearchRows(rows)
}

const searchDocumentsAll = `
SELECT id, content, metadata, created_at,
       1 - (embedding <=> $1) AS similarity
FROM documents
ORDER BY embedding <=> $1
LIMIT $2`

// SearchDocumentsAllParams holds the arguments for SearchDocumentsAll.
type SearchDocumentsAllParams struct {
	QueryEmbedding *pgvector.Vector
	ResultLimit    int32
}

func (q *Queries) SearchDocumentsAll(ctx context.Context, arg SearchDocumentsAllParams) ([]SearchRow, error) {
	rows, err := q.db.Query(ctx, searchDocumentsAll, arg.QueryEmbedding, arg.ResultLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSearchRows(rows)
}

func scanSearchRows(rows pgx.Rows) ([]SearchRow, error) {
	var result []SearchRow
	for rows.Next() {
		var r SearchRow
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata, &r.CreatedAt, &r.Similarity); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

const countDocuments = `SELECT COUNT(*) FROM documents WHERE metadata @> $1`

func (q *Queries) CountDocuments(ctx context.Context, filterMetadata []byte) (int64, error) {
	row := q.db.QueryRow(ctx, countDocuments, filterMetadata)
	var n int64
	err := row.Scan(&n)
	return n, err
}

const countDocumentsAll = `SELECT COUNT(*) FROM documents`

func (q *Queries) CountDocumentsAll(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countDocumentsAll)
	var n int64
	err := row.Scan(&n)
	return n, err
}
