package stats

import (
	"context"
	"database/sql"
)

// PostgresCounter counts everything off the relational store, embeddings
// included: the embeddings table is the source of truth, the vector index
// is a projection of it.
type PostgresCounter struct {
	db *sql.DB
}

func NewPostgresCounter(db *sql.DB) *PostgresCounter {
	return &PostgresCounter{db: db}
}

func (c *PostgresCounter) CountLibraries(ctx context.Context) (int, error) {
	return c.count(ctx, `SELECT COUNT(*) FROM libraries WHERE status != 'DELETED'`)
}

func (c *PostgresCounter) CountDocuments(ctx context.Context) (int, error) {
	return c.count(ctx, `SELECT COUNT(*) FROM documents WHERE status != 'DELETED'`)
}

func (c *PostgresCounter) CountChunks(ctx context.Context) (int, error) {
	return c.count(ctx, `SELECT COUNT(*) FROM chunks`)
}

func (c *PostgresCounter) CountEmbeddings(ctx context.Context) (int, error) {
	return c.count(ctx, `SELECT COUNT(*) FROM embeddings`)
}

func (c *PostgresCounter) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
