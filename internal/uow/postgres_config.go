package uow

import (
	"context"
	"database/sql"
	"errors"

	"vecdb/internal/domain"
)

type postgresConfigRepo struct {
	tx    *sql.Tx
	seen  map[domain.VectorizationConfigID]*domain.VectorizationConfig
	order []domain.VectorizationConfigID
	added map[domain.VectorizationConfigID]bool
}

func newPostgresConfigRepo(tx *sql.Tx) *postgresConfigRepo {
	return &postgresConfigRepo{
		tx:    tx,
		seen:  make(map[domain.VectorizationConfigID]*domain.VectorizationConfig),
		added: make(map[domain.VectorizationConfigID]bool),
	}
}

func (r *postgresConfigRepo) track(cfg *domain.VectorizationConfig) {
	if _, ok := r.seen[cfg.ID]; !ok {
		r.order = append(r.order, cfg.ID)
	}
	r.seen[cfg.ID] = cfg
}

func (r *postgresConfigRepo) Seen() []*domain.VectorizationConfig {
	out := make([]*domain.VectorizationConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.seen[id])
	}
	return out
}

func (r *postgresConfigRepo) Add(ctx context.Context, cfg *domain.VectorizationConfig) error {
	r.added[cfg.ID] = true
	r.track(cfg)
	return nil
}

func (r *postgresConfigRepo) Get(ctx context.Context, id domain.VectorizationConfigID) (*domain.VectorizationConfig, error) {
	if cfg, ok := r.seen[id]; ok {
		return cfg, nil
	}

	var (
		version           int
		status            string
		previousVersionID sql.NullString
		description       sql.NullString
		embeddingID       string
		indexing          string
		metric            string
		createdAt         sql.NullTime
		updatedAt         sql.NullTime
	)
	query := `SELECT version, status, previous_version_id, description, embedding_strategy_id, indexing_strategy, similarity_metric, created_at, updated_at
		FROM vectorization_configs WHERE id = $1`
	err := r.tx.QueryRowContext(ctx, query, string(id)).Scan(&version, &status, &previousVersionID, &description, &embeddingID, &indexing, &metric, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "vectorization config", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}

	chunking, err := r.loadChunkingStrategies(ctx, id)
	if err != nil {
		return nil, err
	}
	embedding, err := r.loadEmbeddingStrategy(ctx, embeddingID)
	if err != nil {
		return nil, err
	}

	cfg := domain.ReconstituteVectorizationConfig(id, version, domain.ConfigStatus(status),
		domain.VectorizationConfigID(previousVersionID.String), description.String,
		chunking, embedding, domain.IndexingStrategy(indexing), domain.SimilarityMetric(metric),
		createdAt.Time, updatedAt.Time)
	r.track(cfg)
	return cfg, nil
}

func (r *postgresConfigRepo) loadChunkingStrategies(ctx context.Context, configID domain.VectorizationConfigID) ([]*domain.ChunkingStrategy, error) {
	query := `SELECT s.id, s.name, s.model_key, s.status, s.modality, s.behavior,
			s.chunk_size_tokens, s.chunk_overlap_tokens, s.min_chunk_size_tokens, s.max_chunk_size_tokens,
			s.max_content_size_bytes, s.max_width_pixels, s.max_height_pixels,
			s.frame_sample_rate_fps, s.max_frames, s.segment_duration_seconds, s.segment_overlap_seconds,
			s.created_at, s.updated_at
		FROM chunking_strategies s
		JOIN config_chunking_strategies cs ON cs.strategy_id = s.id
		WHERE cs.config_id = $1
		ORDER BY cs.position`
	rows, err := r.tx.QueryContext(ctx, query, string(configID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ChunkingStrategy
	for rows.Next() {
		var (
			s                    domain.ChunkingStrategy
			id                   string
			status               string
			modality             string
			behavior             string
			sizeTokens           sql.NullInt64
			overlapTokens        sql.NullInt64
			minTokens            sql.NullInt64
			maxTokens            sql.NullInt64
			maxContentSize       sql.NullInt64
			maxWidth             sql.NullInt64
			maxHeight            sql.NullInt64
			frameRate            sql.NullFloat64
			maxFrames            sql.NullInt64
			segmentDuration      sql.NullFloat64
			segmentOverlap       sql.NullFloat64
			createdAt, updatedAt sql.NullTime
		)
		if err := rows.Scan(&id, &s.Name, &s.ModelKey, &status, &modality, &behavior,
			&sizeTokens, &overlapTokens, &minTokens, &maxTokens,
			&maxContentSize, &maxWidth, &maxHeight,
			&frameRate, &maxFrames, &segmentDuration, &segmentOverlap,
			&createdAt, &updatedAt); err != nil {
			return nil, err
		}
		s.ID = domain.ChunkingStrategyID(id)
		s.Status = domain.StrategyStatus(status)
		s.Modality = domain.Modality(modality)
		s.Behavior = domain.ChunkingBehavior(behavior)
		s.ChunkSizeTokens = int(sizeTokens.Int64)
		s.ChunkOverlapTokens = int(overlapTokens.Int64)
		s.MinChunkSizeTokens = int(minTokens.Int64)
		s.MaxChunkSizeTokens = int(maxTokens.Int64)
		s.MaxContentSizeBytes = int(maxContentSize.Int64)
		s.MaxWidthPixels = int(maxWidth.Int64)
		s.MaxHeightPixels = int(maxHeight.Int64)
		s.FrameSampleRateFPS = frameRate.Float64
		s.MaxFrames = int(maxFrames.Int64)
		s.SegmentDurationSeconds = segmentDuration.Float64
		s.SegmentOverlapSeconds = segmentOverlap.Float64
		out = append(out, domain.ReconstituteChunkingStrategy(s, createdAt.Time, updatedAt.Time))
	}
	return out, rows.Err()
}

func (r *postgresConfigRepo) loadEmbeddingStrategy(ctx context.Context, id string) (*domain.EmbeddingStrategy, error) {
	var (
		s                    domain.EmbeddingStrategy
		status               string
		modality             string
		maxTokens            sql.NullInt64
		maxImageSize         sql.NullInt64
		createdAt, updatedAt sql.NullTime
	)
	query := `SELECT name, model_key, model_name, modality, dimensions, status, max_tokens, max_image_size_bytes, created_at, updated_at
		FROM embedding_strategies WHERE id = $1`
	err := r.tx.QueryRowContext(ctx, query, id).Scan(&s.Name, &s.ModelKey, &s.ModelName, &modality, &s.Dimensions, &status, &maxTokens, &maxImageSize, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Kind: "embedding strategy", ID: id}
	}
	if err != nil {
		return nil, err
	}
	s.ID = domain.EmbeddingStrategyID(id)
	s.Status = domain.StrategyStatus(status)
	s.Modality = domain.Modality(modality)
	s.MaxTokens = int(maxTokens.Int64)
	s.MaxImageSizeBytes = int(maxImageSize.Int64)
	return domain.ReconstituteEmbeddingStrategy(s, createdAt.Time, updatedAt.Time), nil
}

// flush persists one config aggregate. Configs are immutable, so loaded
// configs only ever need their status column refreshed; strategies upsert
// by their deterministic ids.
func (r *postgresConfigRepo) flush(ctx context.Context, cfg *domain.VectorizationConfig) error {
	if err := r.flushEmbeddingStrategy(ctx, cfg.EmbeddingStrategy); err != nil {
		return err
	}
	for _, cs := range cfg.ChunkingStrategies {
		if err := r.flushChunkingStrategy(ctx, cs); err != nil {
			return err
		}
	}

	if r.added[cfg.ID] {
		var prev any
		if cfg.PreviousVersionID != "" {
			prev = string(cfg.PreviousVersionID)
		}
		query := `INSERT INTO vectorization_configs (id, version, status, previous_version_id, description, embedding_strategy_id, indexing_strategy, similarity_metric, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		if _, err := r.tx.ExecContext(ctx, query, string(cfg.ID), cfg.Version, string(cfg.Status), prev, cfg.Description,
			string(cfg.EmbeddingStrategy.ID), string(cfg.IndexingStrategy), string(cfg.SimilarityMetric), cfg.CreatedAt, cfg.UpdatedAt); err != nil {
			return &domain.TransactionError{Op: "insert config", Err: err}
		}
		for i, cs := range cfg.ChunkingStrategies {
			query := `INSERT INTO config_chunking_strategies (config_id, strategy_id, position) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
			if _, err := r.tx.ExecContext(ctx, query, string(cfg.ID), string(cs.ID), i); err != nil {
				return &domain.TransactionError{Op: "link config strategy", Err: err}
			}
		}
		return nil
	}

	query := `UPDATE vectorization_configs SET status = $1, updated_at = NOW() WHERE id = $2`
	if _, err := r.tx.ExecContext(ctx, query, string(cfg.Status), string(cfg.ID)); err != nil {
		return &domain.TransactionError{Op: "update config", Err: err}
	}
	return nil
}

func (r *postgresConfigRepo) flushChunkingStrategy(ctx context.Context, s *domain.ChunkingStrategy) error {
	query := `INSERT INTO chunking_strategies (id, name, model_key, status, modality, behavior,
			chunk_size_tokens, chunk_overlap_tokens, min_chunk_size_tokens, max_chunk_size_tokens,
			max_content_size_bytes, max_width_pixels, max_height_pixels,
			frame_sample_rate_fps, max_frames, segment_duration_seconds, segment_overlap_seconds,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	_, err := r.tx.ExecContext(ctx, query, string(s.ID), s.Name, s.ModelKey, string(s.Status), string(s.Modality), string(s.Behavior),
		s.ChunkSizeTokens, s.ChunkOverlapTokens, s.MinChunkSizeTokens, s.MaxChunkSizeTokens,
		s.MaxContentSizeBytes, s.MaxWidthPixels, s.MaxHeightPixels,
		s.FrameSampleRateFPS, s.MaxFrames, s.SegmentDurationSeconds, s.SegmentOverlapSeconds,
		s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return &domain.TransactionError{Op: "upsert chunking strategy", Err: err}
	}
	return nil
}

func (r *postgresConfigRepo) flushEmbeddingStrategy(ctx context.Context, s *domain.EmbeddingStrategy) error {
	query := `INSERT INTO embedding_strategies (id, name, model_key, model_name, modality, dimensions, status, max_tokens, max_image_size_bytes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	_, err := r.tx.ExecContext(ctx, query, string(s.ID), s.Name, s.ModelKey, s.ModelName, string(s.Modality), s.Dimensions, string(s.Status), s.MaxTokens, s.MaxImageSizeBytes,
		s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return &domain.TransactionError{Op: "upsert embedding strategy", Err: err}
	}
	return nil
}
