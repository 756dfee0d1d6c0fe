package pipeline

import (
	"context"
	"database/sql"

	"vecdb/internal/domain"
)

// PostgresReadStore serves the pipeline's point reads: extracted contents
// for chunking, embedding existence for dedup, completed documents for
// orchestration backfill.
type PostgresReadStore struct {
	db *sql.DB
}

func NewPostgresReadStore(db *sql.DB) *PostgresReadStore {
	return &PostgresReadStore{db: db}
}

func (r *PostgresReadStore) ListExtractedContents(ctx context.Context, documentID domain.DocumentID) ([]*domain.ExtractedContent, error) {
	query := `SELECT id, fragment_id, content, modality, modality_sequence_number, is_last_of_modality, status, failure_reason
		FROM extracted_contents WHERE document_id = $1 ORDER BY modality, modality_sequence_number`
	rows, err := r.db.QueryContext(ctx, query, string(documentID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ExtractedContent
	for rows.Next() {
		var (
			id            string
			fragmentID    string
			content       []byte
			modality      string
			seq           int
			isLast        bool
			status        string
			failureReason sql.NullString
		)
		if err := rows.Scan(&id, &fragmentID, &content, &modality, &seq, &isLast, &status, &failureReason); err != nil {
			return nil, err
		}
		out = append(out, domain.ReconstituteExtractedContent(
			domain.ExtractedContentID(id), documentID, domain.FragmentID(fragmentID), content,
			domain.Modality(modality), seq, isLast,
			domain.ExtractedContentStatus(status), failureReason.String))
	}
	return out, rows.Err()
}

func (r *PostgresReadStore) EmbeddingExists(ctx context.Context, id domain.EmbeddingID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM embeddings WHERE id = $1)`
	if err := r.db.QueryRowContext(ctx, query, string(id)).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresReadStore) ListCompletedDocumentIDs(ctx context.Context, libraryID domain.LibraryID) ([]domain.DocumentID, error) {
	query := `SELECT id FROM documents WHERE library_id = $1 AND status = 'COMPLETED' ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, string(libraryID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DocumentID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, domain.DocumentID(id))
	}
	return out, rows.Err()
}
