package search

import (
	"context"
	"database/sql"
	"errors"

	"vecdb/internal/domain"
)

// PostgresChunkReader hydrates search hits with chunk contents.
type PostgresChunkReader struct {
	db *sql.DB
}

func NewPostgresChunkReader(db *sql.DB) *PostgresChunkReader {
	return &PostgresChunkReader{db: db}
}

func (r *PostgresChunkReader) GetChunkContent(ctx context.Context, id domain.ChunkID) (string, error) {
	var content []byte
	query := `SELECT content FROM chunks WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, string(id)).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &domain.NotFoundError{Kind: "chunk", ID: string(id)}
	}
	if err != nil {
		return "", err
	}
	return string(content), nil
}
