// Package search answers similarity queries against a library's vectors
// under one vectorization config.
package search

import (
	"context"
	"time"

	"vecdb/internal/domain"
	"vecdb/internal/middleware"
	"vecdb/internal/pipeline"
	"vecdb/internal/uow"
)

// SearchResult is one ranked hit hydrated with its chunk content.
type SearchResult struct {
	EmbeddingID domain.EmbeddingID `json:"embedding_id"`
	ChunkID     domain.ChunkID     `json:"chunk_id"`
	Score       float32            `json:"score"`
	Content     string             `json:"content"`
}

// ChunkReader hydrates hit contents from the chunk store.
type ChunkReader interface {
	GetChunkContent(ctx context.Context, id domain.ChunkID) (string, error)
}

type Service struct {
	starter  uow.Starter
	embedder pipeline.Embedder
	index    pipeline.VectorIndex
	chunks   ChunkReader
	logger   *QueryLogger
}

func NewService(starter uow.Starter, e pipeline.Embedder, idx pipeline.VectorIndex, chunks ChunkReader, l *QueryLogger) *Service {
	return &Service{starter: starter, embedder: e, index: idx, chunks: chunks, logger: l}
}

const defaultTopK = 10

// Search embeds the query with the config's model and returns the top-k
// nearest chunks of one library. The config must be associated with the
// library; querying an unassociated config is a validation error.
func (s *Service) Search(ctx context.Context, libraryID domain.LibraryID, configID domain.VectorizationConfigID, query string, k int) ([]SearchResult, error) {
	start := time.Now()
	if query == "" {
		return nil, &domain.ValidationError{Msg: "query cannot be empty"}
	}
	if k <= 0 {
		k = defaultTopK
	}

	cfg, err := s.resolveConfig(ctx, libraryID, configID)
	if err != nil {
		return nil, err
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.index.Search(ctx, libraryID, configID, vec, k, cfg.SimilarityMetric)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		content := h.Content
		if content == "" && s.chunks != nil {
			content, err = s.chunks.GetChunkContent(ctx, h.ChunkID)
			if err != nil {
				return nil, err
			}
		}
		results = append(results, SearchResult{
			EmbeddingID: h.EmbeddingID,
			ChunkID:     h.ChunkID,
			Score:       h.Score,
			Content:     content,
		})
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			LibraryID:     string(libraryID),
			ConfigID:      string(configID),
			Query:         query,
			NumResults:    len(results),
			Duration:      time.Since(start),
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
	}
	return results, nil
}

// resolveConfig loads the config and checks the library association in a
// read-only unit of work.
func (s *Service) resolveConfig(ctx context.Context, libraryID domain.LibraryID, configID domain.VectorizationConfigID) (*domain.VectorizationConfig, error) {
	u, err := s.starter.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer u.Rollback() //nolint:errcheck

	lib, err := u.Libraries().Get(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	associated := false
	for _, id := range lib.ConfigIDs() {
		if id == configID {
			associated = true
			break
		}
	}
	if !associated {
		return nil, &domain.ValidationError{Msg: "config is not associated with this library"}
	}
	return u.Configs().Get(ctx, configID)
}
