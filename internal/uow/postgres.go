package uow

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/lib/pq"

	"vecdb/internal/domain"
)

// PostgresStarter opens units of work backed by database/sql transactions.
type PostgresStarter struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewPostgresStarter(db *sql.DB, logger *slog.Logger) *PostgresStarter {
	return &PostgresStarter{db: db, logger: logger}
}

func (s *PostgresStarter) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &domain.TransactionError{Op: "begin", Err: err}
	}
	return &postgresUoW{
		tx:        tx,
		logger:    s.logger,
		libraries: newPostgresLibraryRepo(tx),
		configs:   newPostgresConfigRepo(tx),
	}, nil
}

type postgresUoW struct {
	tx     *sql.Tx
	logger *slog.Logger
	done   bool

	libraries *postgresLibraryRepo
	configs   *postgresConfigRepo
}

func (u *postgresUoW) Libraries() LibraryRepository { return u.libraries }
func (u *postgresUoW) Configs() ConfigRepository    { return u.configs }

// Commit flushes every tracked aggregate, commits, then harvests events.
// Harvest strictly follows the commit so that a failed transaction never
// leaks events.
func (u *postgresUoW) Commit(ctx context.Context) ([]domain.Event, error) {
	if u.done {
		return nil, &domain.TransactionError{Op: "commit", Err: errors.New("unit of work already finished")}
	}
	for _, lib := range u.libraries.Seen() {
		if err := u.libraries.flush(ctx, lib); err != nil {
			return nil, err
		}
	}
	for _, cfg := range u.configs.Seen() {
		if err := u.configs.flush(ctx, cfg); err != nil {
			return nil, err
		}
	}
	if err := u.tx.Commit(); err != nil {
		return nil, &domain.TransactionError{Op: "commit", Err: err}
	}
	u.done = true

	var events []domain.Event
	for _, lib := range u.libraries.Seen() {
		events = append(events, lib.CollectAllEvents()...)
	}
	for _, cfg := range u.configs.Seen() {
		events = append(events, cfg.CollectAllEvents()...)
	}
	return events, nil
}

// Rollback discards the transaction and the events recorded under it.
func (u *postgresUoW) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	for _, lib := range u.libraries.Seen() {
		lib.CollectAllEvents()
	}
	for _, cfg := range u.configs.Seen() {
		cfg.CollectAllEvents()
	}
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return &domain.TransactionError{Op: "rollback", Err: err}
	}
	return nil
}

type postgresLibraryRepo struct {
	tx    *sql.Tx
	seen  map[domain.LibraryID]*domain.Library
	order []domain.LibraryID
	added map[domain.LibraryID]bool

	// version each non-added library carried when loaded; the flush CAS
	// compares against it
	baseVersion map[domain.LibraryID]int64
}

func newPostgresLibraryRepo(tx *sql.Tx) *postgresLibraryRepo {
	return &postgresLibraryRepo{
		tx:          tx,
		seen:        make(map[domain.LibraryID]*domain.Library),
		added:       make(map[domain.LibraryID]bool),
		baseVersion: make(map[domain.LibraryID]int64),
	}
}

func (r *postgresLibraryRepo) track(lib *domain.Library) {
	if _, ok := r.seen[lib.ID]; !ok {
		r.order = append(r.order, lib.ID)
	}
	r.seen[lib.ID] = lib
}

func (r *postgresLibraryRepo) Seen() []*domain.Library {
	out := make([]*domain.Library, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.seen[id])
	}
	return out
}

func (r *postgresLibraryRepo) Add(ctx context.Context, lib *domain.Library) error {
	r.added[lib.ID] = true
	r.track(lib)
	return nil
}

func (r *postgresLibraryRepo) Get(ctx context.Context, id domain.LibraryID) (*domain.Library, error) {
	if lib, ok := r.seen[id]; ok {
		return lib, nil
	}

	var (
		name      string
		status    string
		version   int64
		createdAt sql.NullTime
		updatedAt sql.NullTime
	)
	query := `SELECT name, status, version, created_at, updated_at FROM libraries WHERE id = $1`
	err := r.tx.QueryRowContext(ctx, query, string(id)).Scan(&name, &status, &version, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "library", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}

	configIDs, err := r.loadConfigIDs(ctx, id)
	if err != nil {
		return nil, err
	}

	lib := domain.ReconstituteLibrary(id, name, domain.LibraryStatus(status), version, configIDs,
		createdAt.Time, updatedAt.Time, r.documentLoader())
	r.baseVersion[id] = version
	r.track(lib)
	return lib, nil
}

func (r *postgresLibraryRepo) loadConfigIDs(ctx context.Context, id domain.LibraryID) ([]domain.VectorizationConfigID, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT config_id FROM library_configs WHERE library_id = $1`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.VectorizationConfigID
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			return nil, err
		}
		out = append(out, domain.VectorizationConfigID(cid))
	}
	return out, rows.Err()
}

// documentLoader returns the lazy-loading callback wired into
// reconstituted libraries. It runs inside this repo's transaction.
func (r *postgresLibraryRepo) documentLoader() domain.DocumentLoader {
	return func(ctx context.Context, libraryID domain.LibraryID, documentID domain.DocumentID) (*domain.Document, error) {
		var (
			name           string
			status         string
			uploadComplete bool
			createdAt      sql.NullTime
			updatedAt      sql.NullTime
		)
		query := `SELECT name, status, upload_complete, created_at, updated_at FROM documents WHERE id = $1 AND library_id = $2`
		err := r.tx.QueryRowContext(ctx, query, string(documentID), string(libraryID)).Scan(&name, &status, &uploadComplete, &createdAt, &updatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Kind: "document", ID: string(documentID)}
		}
		if err != nil {
			return nil, err
		}
		return domain.ReconstituteDocument(documentID, libraryID, name, domain.DocumentStatus(status), uploadComplete,
			createdAt.Time, updatedAt.Time, r.fragmentLoader()), nil
	}
}

func (r *postgresLibraryRepo) fragmentLoader() domain.FragmentLoader {
	return func(ctx context.Context, documentID domain.DocumentID) ([]*domain.Fragment, error) {
		query := `SELECT id, sequence_number, content, is_last_fragment, created_at FROM fragments WHERE document_id = $1 ORDER BY sequence_number`
		rows, err := r.tx.QueryContext(ctx, query, string(documentID))
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []*domain.Fragment
		for rows.Next() {
			var (
				id        string
				seq       int
				content   []byte
				isLast    bool
				createdAt sql.NullTime
			)
			if err := rows.Scan(&id, &seq, &content, &isLast, &createdAt); err != nil {
				return nil, err
			}
			out = append(out, domain.ReconstituteFragment(domain.FragmentID(id), documentID, seq, content, isLast, createdAt.Time))
		}
		return out, rows.Err()
	}
}

// flush writes one library aggregate tree. New libraries insert; loaded
// libraries update under a version compare-and-swap so concurrent writers
// fail fast instead of silently overwriting each other.
func (r *postgresLibraryRepo) flush(ctx context.Context, lib *domain.Library) error {
	if r.added[lib.ID] {
		query := `INSERT INTO libraries (id, name, status, version, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := r.tx.ExecContext(ctx, query, string(lib.ID), lib.Name, string(lib.Status), lib.Version, lib.CreatedAt, lib.UpdatedAt); err != nil {
			return &domain.TransactionError{Op: "insert library", Err: err}
		}
	} else {
		base := r.baseVersion[lib.ID]
		query := `UPDATE libraries SET name = $1, status = $2, version = version + 1, updated_at = NOW() WHERE id = $3 AND version = $4`
		res, err := r.tx.ExecContext(ctx, query, lib.Name, string(lib.Status), string(lib.ID), base)
		if err != nil {
			return &domain.TransactionError{Op: "update library", Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return &domain.TransactionError{Op: "update library", Err: err}
		}
		if n == 0 {
			return &domain.ConflictError{Msg: "library " + string(lib.ID) + " was modified concurrently"}
		}
		lib.Version = base + 1
	}

	for _, cid := range lib.PendingConfigAdds() {
		query := `INSERT INTO library_configs (library_id, config_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
		if _, err := r.tx.ExecContext(ctx, query, string(lib.ID), string(cid)); err != nil {
			return &domain.TransactionError{Op: "add library config", Err: err}
		}
	}
	for _, cid := range lib.PendingConfigRemoves() {
		query := `DELETE FROM library_configs WHERE library_id = $1 AND config_id = $2`
		if _, err := r.tx.ExecContext(ctx, query, string(lib.ID), string(cid)); err != nil {
			return &domain.TransactionError{Op: "remove library config", Err: err}
		}
	}
	lib.ApplyConfigChanges()

	for _, doc := range lib.Documents() {
		if err := r.flushDocument(ctx, lib, doc); err != nil {
			return err
		}
	}
	for _, c := range lib.Chunks() {
		if err := r.flushChunk(ctx, c); err != nil {
			return err
		}
	}
	for _, e := range lib.Embeddings() {
		if err := r.flushEmbedding(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresLibraryRepo) flushDocument(ctx context.Context, lib *domain.Library, doc *domain.Document) error {
	query := `INSERT INTO documents (id, library_id, name, status, upload_complete, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, status = EXCLUDED.status, upload_complete = EXCLUDED.upload_complete, updated_at = EXCLUDED.updated_at`
	if _, err := r.tx.ExecContext(ctx, query, string(doc.ID), string(lib.ID), doc.Name, string(doc.Status), doc.UploadComplete, doc.CreatedAt, doc.UpdatedAt); err != nil {
		return &domain.TransactionError{Op: "upsert document", Err: err}
	}

	for _, f := range doc.Fragments() {
		query := `INSERT INTO fragments (id, document_id, sequence_number, content, content_hash, is_last_fragment, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`
		if _, err := r.tx.ExecContext(ctx, query, string(f.ID), string(doc.ID), f.SequenceNumber, f.Content, string(f.ContentHash), f.IsLastFragment, f.CreatedAt); err != nil {
			return &domain.TransactionError{Op: "insert fragment", Err: err}
		}
	}
	for _, ec := range doc.ExtractedContents() {
		query := `INSERT INTO extracted_contents (id, document_id, fragment_id, content, modality, modality_sequence_number, is_last_of_modality, status, failure_reason, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, failure_reason = EXCLUDED.failure_reason, updated_at = EXCLUDED.updated_at`
		if _, err := r.tx.ExecContext(ctx, query, string(ec.ID), string(doc.ID), string(ec.FragmentID), ec.Content, string(ec.Modality), ec.ModalitySequenceNumber, ec.IsLastOfModality, string(ec.Status), ec.FailureReason, ec.CreatedAt, ec.UpdatedAt); err != nil {
			return &domain.TransactionError{Op: "upsert extracted content", Err: err}
		}
	}
	return nil
}

// Chunks and embeddings are content-addressed and immutable: conflicting
// inserts are always the same row, so DO NOTHING is correct, not lossy.
func (r *postgresLibraryRepo) flushChunk(ctx context.Context, c domain.Chunk) error {
	query := `INSERT INTO chunks (id, library_id, document_id, extracted_content_id, modality, content, chunking_strategy_id, content_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`
	_, err := r.tx.ExecContext(ctx, query, string(c.ID()), string(c.LibraryID), string(c.DocumentID), string(c.ExtractedContentID), string(c.Modality), c.Content, string(c.ChunkingStrategyID), string(c.ContentHash))
	if err != nil {
		return &domain.TransactionError{Op: "insert chunk", Err: err}
	}
	return nil
}

func (r *postgresLibraryRepo) flushEmbedding(ctx context.Context, e domain.Embedding) error {
	query := `INSERT INTO embeddings (id, chunk_id, embedding_strategy_id, library_id, config_id, vector, dimensions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`
	_, err := r.tx.ExecContext(ctx, query, string(e.ID()), string(e.ChunkID), string(e.EmbeddingStrategyID), string(e.LibraryID), string(e.ConfigID), pq.Array(float32sTo64(e.Vector)), e.Dimensions())
	if err != nil {
		return &domain.TransactionError{Op: "insert embedding", Err: err}
	}
	return nil
}

func float32sTo64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
