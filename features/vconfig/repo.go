package vconfig

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

// List returns all configs, every version included, newest first. The
// version chain is reconstructable client-side via previous_version_id
// on the detail view.
func (r *PostgresReader) List(ctx context.Context) ([]Summary, error) {
	query := `SELECT id, version, status, description, created_at
		FROM vectorization_configs
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var createdAt time.Time
		if err := rows.Scan(&s.ID, &s.Version, &s.Status, &s.Description, &createdAt); err != nil {
			return nil, err
		}
		s.CreatedAt = createdAt.UTC().Format(timeFormat)
		out = append(out, s)
	}
	return out, rows.Err()
}
