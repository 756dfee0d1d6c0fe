package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"vecdb/internal/domain"
)

// VectorizationState is the per (document, config) pipeline state. It is
// a coordination ledger, not business state: the aggregate never reads
// it.
type VectorizationState string

const (
	StatePending    VectorizationState = "pending"
	StateProcessing VectorizationState = "processing"
	StateCompleted  VectorizationState = "completed"
	StateFailed     VectorizationState = "failed"
)

// VectorizationStatus is one ledger row.
type VectorizationStatus struct {
	DocumentID domain.DocumentID
	ConfigID   domain.VectorizationConfigID
	LibraryID  domain.LibraryID
	State      VectorizationState
	Error      string
	UpdatedAt  time.Time
}

// StatusStore upserts the ledger. Upserts are keyed by (document_id,
// config_id) so repeated delivery of the same signal is a no-op overwrite
// of the same row.
type StatusStore interface {
	Upsert(ctx context.Context, st VectorizationStatus) error
	Get(ctx context.Context, documentID domain.DocumentID, configID domain.VectorizationConfigID) (*VectorizationStatus, error)
	ListByDocument(ctx context.Context, documentID domain.DocumentID) ([]VectorizationStatus, error)
}

type PostgresStatusStore struct {
	db *sql.DB
}

func NewPostgresStatusStore(db *sql.DB) *PostgresStatusStore {
	return &PostgresStatusStore{db: db}
}

func (s *PostgresStatusStore) Upsert(ctx context.Context, st VectorizationStatus) error {
	query := `INSERT INTO document_vectorization_status (document_id, config_id, library_id, status, error, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (document_id, config_id) DO UPDATE SET status = EXCLUDED.status, error = EXCLUDED.error, updated_at = NOW()`
	_, err := s.db.ExecContext(ctx, query, string(st.DocumentID), string(st.ConfigID), string(st.LibraryID), string(st.State), st.Error)
	return err
}

func (s *PostgresStatusStore) Get(ctx context.Context, documentID domain.DocumentID, configID domain.VectorizationConfigID) (*VectorizationStatus, error) {
	st := &VectorizationStatus{DocumentID: documentID, ConfigID: configID}
	var (
		libraryID string
		state     string
		errMsg    sql.NullString
	)
	query := `SELECT library_id, status, error, updated_at FROM document_vectorization_status WHERE document_id = $1 AND config_id = $2`
	err := s.db.QueryRowContext(ctx, query, string(documentID), string(configID)).Scan(&libraryID, &state, &errMsg, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "vectorization status", ID: string(documentID) + "/" + string(configID)}
	}
	if err != nil {
		return nil, err
	}
	st.LibraryID = domain.LibraryID(libraryID)
	st.State = VectorizationState(state)
	st.Error = errMsg.String
	return st, nil
}

func (s *PostgresStatusStore) ListByDocument(ctx context.Context, documentID domain.DocumentID) ([]VectorizationStatus, error) {
	query := `SELECT config_id, library_id, status, error, updated_at FROM document_vectorization_status WHERE document_id = $1 ORDER BY config_id`
	rows, err := s.db.QueryContext(ctx, query, string(documentID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VectorizationStatus
	for rows.Next() {
		st := VectorizationStatus{DocumentID: documentID}
		var (
			configID  string
			libraryID string
			state     string
			errMsg    sql.NullString
		)
		if err := rows.Scan(&configID, &libraryID, &state, &errMsg, &st.UpdatedAt); err != nil {
			return nil, err
		}
		st.ConfigID = domain.VectorizationConfigID(configID)
		st.LibraryID = domain.LibraryID(libraryID)
		st.State = VectorizationState(state)
		st.Error = errMsg.String
		out = append(out, st)
	}
	return out, rows.Err()
}
