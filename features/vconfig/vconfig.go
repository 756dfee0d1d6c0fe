// Package vconfig exposes vectorization configs: immutable, versioned
// pipeline definitions shared across libraries.
package vconfig

import (
	"context"

	"vecdb/internal/domain"
	"vecdb/internal/events"
	"vecdb/internal/uow"
)

// ChunkingInput is the request shape for one chunking strategy.
type ChunkingInput struct {
	Name     string `json:"name"`
	ModelKey string `json:"model_key"`
	Modality string `json:"modality"`
	Behavior string `json:"behavior"`

	ChunkSizeTokens     int `json:"chunk_size_tokens,omitempty"`
	ChunkOverlapTokens  int `json:"chunk_overlap_tokens,omitempty"`
	MaxContentSizeBytes int `json:"max_content_size_bytes,omitempty"`
}

// EmbeddingInput is the request shape for the embedding strategy.
type EmbeddingInput struct {
	Name       string `json:"name"`
	ModelKey   string `json:"model_key"`
	ModelName  string `json:"model_name"`
	Modality   string `json:"modality"`
	Dimensions int    `json:"dimensions"`

	MaxTokens         int `json:"max_tokens,omitempty"`
	MaxImageSizeBytes int `json:"max_image_size_bytes,omitempty"`
}

// ConfigInput is the request shape for creating a config or a new
// version of one.
type ConfigInput struct {
	Description        string          `json:"description"`
	ChunkingStrategies []ChunkingInput `json:"chunking_strategies"`
	EmbeddingStrategy  EmbeddingInput  `json:"embedding_strategy"`
	IndexingStrategy   string          `json:"indexing_strategy,omitempty"`
	SimilarityMetric   string          `json:"similarity_metric,omitempty"`
}

func (in ConfigInput) buildStrategies() ([]*domain.ChunkingStrategy, *domain.EmbeddingStrategy, error) {
	chunking := make([]*domain.ChunkingStrategy, 0, len(in.ChunkingStrategies))
	for _, ci := range in.ChunkingStrategies {
		var opts []domain.ChunkingOption
		switch domain.ChunkingBehavior(ci.Behavior) {
		case domain.BehaviorSplit:
			opts = append(opts, domain.WithSplitParams(ci.ChunkSizeTokens, ci.ChunkOverlapTokens))
		case domain.BehaviorPassthrough:
			opts = append(opts, domain.WithPassthroughParams(ci.MaxContentSizeBytes))
		}
		cs, err := domain.NewChunkingStrategy(ci.Name, ci.ModelKey, domain.Modality(ci.Modality), domain.ChunkingBehavior(ci.Behavior), opts...)
		if err != nil {
			return nil, nil, err
		}
		chunking = append(chunking, cs)
	}

	ei := in.EmbeddingStrategy
	var eopts []domain.EmbeddingOption
	if ei.MaxTokens > 0 {
		eopts = append(eopts, domain.WithMaxTokens(ei.MaxTokens))
	}
	if ei.MaxImageSizeBytes > 0 {
		eopts = append(eopts, domain.WithMaxImageSize(ei.MaxImageSizeBytes))
	}
	embedding, err := domain.NewEmbeddingStrategy(ei.Name, ei.ModelKey, ei.ModelName, domain.Modality(ei.Modality), ei.Dimensions, eopts...)
	if err != nil {
		return nil, nil, err
	}
	return chunking, embedding, nil
}

// ChunkingView and EmbeddingView render strategies in responses.
type ChunkingView struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	ModelKey            string `json:"model_key"`
	Modality            string `json:"modality"`
	Behavior            string `json:"behavior"`
	ChunkSizeTokens     int    `json:"chunk_size_tokens,omitempty"`
	ChunkOverlapTokens  int    `json:"chunk_overlap_tokens,omitempty"`
	MaxContentSizeBytes int    `json:"max_content_size_bytes,omitempty"`
}

type EmbeddingView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ModelKey   string `json:"model_key"`
	ModelName  string `json:"model_name"`
	Modality   string `json:"modality"`
	Dimensions int    `json:"dimensions"`
}

// View is the full config read model.
type View struct {
	ID                 string         `json:"id"`
	Version            int            `json:"version"`
	Status             string         `json:"status"`
	PreviousVersionID  string         `json:"previous_version_id,omitempty"`
	Description        string         `json:"description"`
	ChunkingStrategies []ChunkingView `json:"chunking_strategies"`
	EmbeddingStrategy  EmbeddingView  `json:"embedding_strategy"`
	IndexingStrategy   string         `json:"indexing_strategy"`
	SimilarityMetric   string         `json:"similarity_metric"`
	CreatedAt          string         `json:"created_at"`
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func viewOf(cfg *domain.VectorizationConfig) *View {
	v := &View{
		ID:                string(cfg.ID),
		Version:           cfg.Version,
		Status:            string(cfg.Status),
		PreviousVersionID: string(cfg.PreviousVersionID),
		Description:       cfg.Description,
		IndexingStrategy:  string(cfg.IndexingStrategy),
		SimilarityMetric:  string(cfg.SimilarityMetric),
		CreatedAt:         cfg.CreatedAt.Format(timeFormat),
	}
	for _, cs := range cfg.ChunkingStrategies {
		v.ChunkingStrategies = append(v.ChunkingStrategies, ChunkingView{
			ID:                  string(cs.ID),
			Name:                cs.Name,
			ModelKey:            cs.ModelKey,
			Modality:            string(cs.Modality),
			Behavior:            string(cs.Behavior),
			ChunkSizeTokens:     cs.ChunkSizeTokens,
			ChunkOverlapTokens:  cs.ChunkOverlapTokens,
			MaxContentSizeBytes: cs.MaxContentSizeBytes,
		})
	}
	if es := cfg.EmbeddingStrategy; es != nil {
		v.EmbeddingStrategy = EmbeddingView{
			ID:         string(es.ID),
			Name:       es.Name,
			ModelKey:   es.ModelKey,
			ModelName:  es.ModelName,
			Modality:   string(es.Modality),
			Dimensions: es.Dimensions,
		}
	}
	return v
}

// Summary is the list read model.
type Summary struct {
	ID          string `json:"id"`
	Version     int    `json:"version"`
	Status      string `json:"status"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

type Reader interface {
	List(ctx context.Context) ([]Summary, error)
}

type Service struct {
	starter uow.Starter
	pub     events.Publisher
	reader  Reader
}

func NewService(starter uow.Starter, pub events.Publisher, reader Reader) *Service {
	return &Service{starter: starter, pub: pub, reader: reader}
}

func (s *Service) Create(ctx context.Context, in ConfigInput) (*View, error) {
	chunking, embedding, err := in.buildStrategies()
	if err != nil {
		return nil, err
	}
	var created *domain.VectorizationConfig
	err = uow.Do(ctx, s.starter, s.pub, func(ctx context.Context, u uow.UnitOfWork) error {
		cfg, cerr := domain.NewVectorizationConfig(in.Description, chunking, embedding,
			domain.IndexingStrategy(in.IndexingStrategy), domain.SimilarityMetric(in.SimilarityMetric))
		if cerr != nil {
			return cerr
		}
		created = cfg
		return u.Configs().Add(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	return viewOf(created), nil
}

// NewVersion derives the successor of an existing config. The parent is
// untouched; the new config points back at it.
func (s *Service) NewVersion(ctx context.Context, id domain.VectorizationConfigID, in ConfigInput) (*View, error) {
	chunking, embedding, err := in.buildStrategies()
	if err != nil {
		return nil, err
	}
	var created *domain.VectorizationConfig
	err = uow.Do(ctx, s.starter, s.pub, func(ctx context.Context, u uow.UnitOfWork) error {
		parent, perr := u.Configs().Get(ctx, id)
		if perr != nil {
			return perr
		}
		next, nerr := parent.NewVersion(in.Description, chunking, embedding,
			domain.IndexingStrategy(in.IndexingStrategy), domain.SimilarityMetric(in.SimilarityMetric))
		if nerr != nil {
			return nerr
		}
		created = next
		return u.Configs().Add(ctx, next)
	})
	if err != nil {
		return nil, err
	}
	return viewOf(created), nil
}

func (s *Service) Get(ctx context.Context, id domain.VectorizationConfigID) (*View, error) {
	u, err := s.starter.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer u.Rollback() //nolint:errcheck

	cfg, err := u.Configs().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return viewOf(cfg), nil
}

func (s *Service) List(ctx context.Context) ([]Summary, error) {
	return s.reader.List(ctx)
}
