package document

import (
	"context"
	"database/sql"
	"time"

	"vecdb/internal/domain"
)

type PostgresReader struct {
	db *sql.DB
}

func NewPostgresReader(db *sql.DB) *PostgresReader {
	return &PostgresReader{db: db}
}

// List returns a page of a library's non-deleted documents with fragment
// counts, newest first.
func (r *PostgresReader) List(ctx context.Context, libraryID domain.LibraryID, limit, offset int) ([]Summary, error) {
	query := `SELECT d.id, d.name, d.status, d.upload_complete, d.created_at, d.updated_at,
			COUNT(f.id) AS fragment_count,
			COALESCE(SUM(OCTET_LENGTH(f.content)), 0) AS total_bytes
		FROM documents d
		LEFT JOIN fragments f ON f.document_id = d.id
		WHERE d.library_id = $1 AND d.status != 'DELETED'
		GROUP BY d.id, d.name, d.status, d.upload_complete, d.created_at, d.updated_at
		ORDER BY d.created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, string(libraryID), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&s.ID, &s.Name, &s.Status, &s.UploadComplete, &createdAt, &updatedAt, &s.FragmentCount, &s.TotalBytes); err != nil {
			return nil, err
		}
		s.CreatedAt = createdAt.UTC().Format(timeFormat)
		s.UpdatedAt = updatedAt.UTC().Format(timeFormat)
		out = append(out, s)
	}
	return out, rows.Err()
}
