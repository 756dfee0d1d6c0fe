package library

import (
	"context"
	"database/sql"
	"time"
)

type PostgresReader struct {
	db *sql.DB
}

func NewPostgresReader(db *sql.DB) *PostgresReader {
	return &PostgresReader{db: db}
}

// List returns a page of non-deleted libraries with their live document
// counts, newest first.
func (r *PostgresReader) List(ctx context.Context, limit, offset int) ([]Summary, error) {
	query := `SELECT l.id, l.name, l.status, l.version, l.created_at, l.updated_at,
			COUNT(d.id) FILTER (WHERE d.status != 'DELETED') AS document_count
		FROM libraries l
		LEFT JOIN documents d ON d.library_id = l.id
		WHERE l.status != 'DELETED'
		GROUP BY l.id, l.name, l.status, l.version, l.created_at, l.updated_at
		ORDER BY l.created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&s.ID, &s.Name, &s.Status, &s.Version, &createdAt, &updatedAt, &s.DocumentCount); err != nil {
			return nil, err
		}
		s.CreatedAt = createdAt.UTC().Format(timeFormat)
		s.UpdatedAt = updatedAt.UTC().Format(timeFormat)
		out = append(out, s)
	}
	return out, rows.Err()
}
