package domain

import (
	"time"

	"github.com/google/uuid"
)

// VectorizationConfig is an immutable, versioned pipeline definition: how
// to chunk per modality, which single embedder to use, how vectors are
// indexed and compared. Configs are global, not owned by libraries;
// libraries associate with them by id.
//
// Editing never mutates a config. NewVersion produces a fresh entity whose
// PreviousVersionID points at its parent, forming an append-only chain.
type VectorizationConfig struct {
	entity

	ID                VectorizationConfigID
	Version           int
	Status            ConfigStatus
	PreviousVersionID VectorizationConfigID
	Description       string

	ChunkingStrategies []*ChunkingStrategy
	EmbeddingStrategy  *EmbeddingStrategy
	IndexingStrategy   IndexingStrategy
	SimilarityMetric   SimilarityMetric
}

func NewVectorizationConfig(description string, chunking []*ChunkingStrategy, embedding *EmbeddingStrategy, indexing IndexingStrategy, metric SimilarityMetric) (*VectorizationConfig, error) {
	cfg, err := buildConfig(1, "", description, chunking, embedding, indexing, metric)
	if err != nil {
		return nil, err
	}
	cfg.record(&VectorizationConfigCreated{
		EventMeta:   newMeta(EventConfigCreated),
		ConfigID:    cfg.ID,
		Version:     cfg.Version,
		Status:      cfg.Status,
		Description: cfg.Description,
	})
	return cfg, nil
}

// NewVersion derives the successor config in the version chain, applying
// the given edit to a copy of this config's definition.
func (c *VectorizationConfig) NewVersion(description string, chunking []*ChunkingStrategy, embedding *EmbeddingStrategy, indexing IndexingStrategy, metric SimilarityMetric) (*VectorizationConfig, error) {
	next, err := buildConfig(c.Version+1, c.ID, description, chunking, embedding, indexing, metric)
	if err != nil {
		return nil, err
	}
	next.record(&VectorizationConfigVersionCreated{
		EventMeta:         newMeta(EventConfigVersionCreated),
		ConfigID:          next.ID,
		Version:           next.Version,
		PreviousVersionID: c.ID,
		Status:            next.Status,
		Description:       next.Description,
	})
	return next, nil
}

// ReconstituteVectorizationConfig rebuilds a persisted config without
// re-validating or recording events.
func ReconstituteVectorizationConfig(id VectorizationConfigID, version int, status ConfigStatus, previousVersionID VectorizationConfigID, description string, chunking []*ChunkingStrategy, embedding *EmbeddingStrategy, indexing IndexingStrategy, metric SimilarityMetric, createdAt, updatedAt time.Time) *VectorizationConfig {
	return &VectorizationConfig{
		entity:             entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:                 id,
		Version:            version,
		Status:             status,
		PreviousVersionID:  previousVersionID,
		Description:        description,
		ChunkingStrategies: chunking,
		EmbeddingStrategy:  embedding,
		IndexingStrategy:   indexing,
		SimilarityMetric:   metric,
	}
}

func buildConfig(version int, previousVersionID VectorizationConfigID, description string, chunking []*ChunkingStrategy, embedding *EmbeddingStrategy, indexing IndexingStrategy, metric SimilarityMetric) (*VectorizationConfig, error) {
	if version < 1 {
		return nil, validationf("config version must be >= 1, got %d", version)
	}
	if previousVersionID != "" && version <= 1 {
		return nil, validationf("config with previous_version_id must have version > 1, got %d", version)
	}
	if len(chunking) == 0 {
		return nil, validationf("config must have at least one chunking strategy")
	}
	if embedding == nil {
		return nil, validationf("config must have exactly one embedding strategy")
	}
	seen := make(map[Modality]struct{}, len(chunking))
	for _, cs := range chunking {
		if _, dup := seen[cs.Modality]; dup {
			return nil, validationf("duplicate chunking strategy modality %s", cs.Modality)
		}
		seen[cs.Modality] = struct{}{}
	}
	if embedding.Modality != ModalityMultimodal {
		if _, ok := seen[embedding.Modality]; !ok {
			return nil, validationf("embedding strategy modality %s has no matching chunking strategy", embedding.Modality)
		}
	}
	if indexing == "" {
		indexing = IndexingFlat
	}
	if metric == "" {
		metric = SimilarityCosine
	}
	return &VectorizationConfig{
		entity:             newEntity(time.Now().UTC()),
		ID:                 VectorizationConfigID(uuid.NewString()),
		Version:            version,
		Status:             ConfigActive,
		PreviousVersionID:  previousVersionID,
		Description:        description,
		ChunkingStrategies: chunking,
		EmbeddingStrategy:  embedding,
		IndexingStrategy:   indexing,
		SimilarityMetric:   metric,
	}, nil
}

// ChunkingStrategyFor returns the chunking strategy registered for a
// modality, if any.
func (c *VectorizationConfig) ChunkingStrategyFor(m Modality) (*ChunkingStrategy, bool) {
	for _, cs := range c.ChunkingStrategies {
		if cs.Modality == m {
			return cs, true
		}
	}
	return nil, false
}

func (c *VectorizationConfig) Archive() {
	c.Status = ConfigArchived
	c.touch(time.Now().UTC())
}

// CollectAllEvents harvests and clears this aggregate's events. Configs
// have no child entities.
func (c *VectorizationConfig) CollectAllEvents() []Event {
	return c.drainEvents()
}
