package domain

import (
	"time"
)

type StrategyStatus string

const (
	StrategyActive     StrategyStatus = "ACTIVE"
	StrategyDeprecated StrategyStatus = "DEPRECATED"
	StrategyInactive   StrategyStatus = "INACTIVE"
)

// ChunkingStrategy is a reusable per-modality chunking configuration.
// Identity derives from model_key, so registering the same strategy twice
// yields the same entity. Which parameter group is required depends on the
// behavior.
type ChunkingStrategy struct {
	entity

	ID       ChunkingStrategyID
	Name     string
	ModelKey string
	Status   StrategyStatus
	Modality Modality
	Behavior ChunkingBehavior

	// SPLIT (TEXT)
	ChunkSizeTokens    int
	ChunkOverlapTokens int
	MinChunkSizeTokens int
	MaxChunkSizeTokens int

	// PASSTHROUGH (IMAGE)
	MaxContentSizeBytes int
	MaxWidthPixels      int
	MaxHeightPixels     int

	// FRAME_EXTRACT (VIDEO)
	FrameSampleRateFPS float64
	MaxFrames          int

	// TIME_SEGMENT (AUDIO)
	SegmentDurationSeconds float64
	SegmentOverlapSeconds  float64
}

func NewChunkingStrategy(name, modelKey string, modality Modality, behavior ChunkingBehavior, opts ...ChunkingOption) (*ChunkingStrategy, error) {
	if name == "" {
		return nil, validationf("chunking strategy name cannot be empty")
	}
	if modelKey == "" {
		return nil, validationf("chunking strategy model_key cannot be empty")
	}
	if modality == ModalityMultimodal {
		return nil, validationf("MULTIMODAL is not allowed for chunking strategies")
	}
	allowed, ok := validBehaviors[modality]
	if !ok {
		return nil, validationf("unknown modality %q", modality)
	}
	found := false
	for _, b := range allowed {
		if b == behavior {
			found = true
			break
		}
	}
	if !found {
		return nil, validationf("%s modality does not allow %s behavior", modality, behavior)
	}

	s := &ChunkingStrategy{
		entity:   newEntity(time.Now().UTC()),
		ID:       NewChunkingStrategyID(modelKey),
		Name:     name,
		ModelKey: modelKey,
		Status:   StrategyActive,
		Modality: modality,
		Behavior: behavior,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.validateBehaviorParams(); err != nil {
		return nil, err
	}
	return s, nil
}

type ChunkingOption func(*ChunkingStrategy)

func WithSplitParams(sizeTokens, overlapTokens int) ChunkingOption {
	return func(s *ChunkingStrategy) {
		s.ChunkSizeTokens = sizeTokens
		s.ChunkOverlapTokens = overlapTokens
	}
}

func WithChunkSizeBounds(minTokens, maxTokens int) ChunkingOption {
	return func(s *ChunkingStrategy) {
		s.MinChunkSizeTokens = minTokens
		s.MaxChunkSizeTokens = maxTokens
	}
}

func WithPassthroughParams(maxContentSizeBytes int) ChunkingOption {
	return func(s *ChunkingStrategy) {
		s.MaxContentSizeBytes = maxContentSizeBytes
	}
}

func WithFrameExtractParams(sampleRateFPS float64, maxFrames int) ChunkingOption {
	return func(s *ChunkingStrategy) {
		s.FrameSampleRateFPS = sampleRateFPS
		s.MaxFrames = maxFrames
	}
}

func WithTimeSegmentParams(durationSeconds, overlapSeconds float64) ChunkingOption {
	return func(s *ChunkingStrategy) {
		s.SegmentDurationSeconds = durationSeconds
		s.SegmentOverlapSeconds = overlapSeconds
	}
}

func (s *ChunkingStrategy) validateBehaviorParams() error {
	switch s.Behavior {
	case BehaviorSplit:
		if s.ChunkSizeTokens <= 0 {
			return validationf("SPLIT behavior requires positive chunk_size_tokens")
		}
		if s.ChunkOverlapTokens < 0 {
			return validationf("SPLIT behavior requires non-negative chunk_overlap_tokens")
		}
		if s.ChunkOverlapTokens >= s.ChunkSizeTokens {
			return validationf("chunk_overlap_tokens must be < chunk_size_tokens")
		}
		if s.MinChunkSizeTokens > 0 && s.MinChunkSizeTokens > s.ChunkSizeTokens {
			return validationf("min_chunk_size_tokens cannot exceed chunk_size_tokens")
		}
		if s.MaxChunkSizeTokens > 0 && s.ChunkSizeTokens > s.MaxChunkSizeTokens {
			return validationf("chunk_size_tokens cannot exceed max_chunk_size_tokens")
		}
	case BehaviorPassthrough:
		if s.MaxContentSizeBytes <= 0 {
			return validationf("PASSTHROUGH behavior requires positive max_content_size_bytes")
		}
	case BehaviorFrameExtract:
		if s.FrameSampleRateFPS <= 0 {
			return validationf("FRAME_EXTRACT behavior requires positive frame_sample_rate_fps")
		}
	case BehaviorTimeSegment:
		if s.SegmentDurationSeconds <= 0 {
			return validationf("TIME_SEGMENT behavior requires positive segment_duration_seconds")
		}
		if s.SegmentOverlapSeconds < 0 {
			return validationf("TIME_SEGMENT behavior requires non-negative segment_overlap_seconds")
		}
	}
	return nil
}

// ReconstituteChunkingStrategy rebuilds a persisted strategy without
// re-validating behavior parameters.
func ReconstituteChunkingStrategy(s ChunkingStrategy, createdAt, updatedAt time.Time) *ChunkingStrategy {
	s.entity = entity{CreatedAt: createdAt, UpdatedAt: updatedAt}
	return &s
}

func (s *ChunkingStrategy) Deprecate() {
	s.Status = StrategyDeprecated
	s.touch(time.Now().UTC())
}

// EmbeddingStrategy describes one embedding model. MULTIMODAL strategies
// can embed any modality; single-modality strategies only their own.
type EmbeddingStrategy struct {
	entity

	ID         EmbeddingStrategyID
	Name       string
	ModelKey   string
	ModelName  string
	Modality   Modality
	Dimensions int
	Status     StrategyStatus

	MaxTokens         int
	MaxImageSizeBytes int
}

func NewEmbeddingStrategy(name, modelKey, modelName string, modality Modality, dimensions int, opts ...EmbeddingOption) (*EmbeddingStrategy, error) {
	if name == "" {
		return nil, validationf("embedding strategy name cannot be empty")
	}
	if modelKey == "" {
		return nil, validationf("embedding strategy model_key cannot be empty")
	}
	if dimensions <= 0 {
		return nil, validationf("embedding strategy requires positive dimensions")
	}
	s := &EmbeddingStrategy{
		entity:     newEntity(time.Now().UTC()),
		ID:         NewEmbeddingStrategyID(modelKey),
		Name:       name,
		ModelKey:   modelKey,
		ModelName:  modelName,
		Modality:   modality,
		Dimensions: dimensions,
		Status:     StrategyActive,
	}
	for _, opt := range opts {
		opt(s)
	}
	switch modality {
	case ModalityText:
		if s.MaxTokens <= 0 {
			return nil, validationf("TEXT modality requires positive max_tokens")
		}
	case ModalityImage:
		if s.MaxImageSizeBytes <= 0 {
			return nil, validationf("IMAGE modality requires positive max_image_size_bytes")
		}
	}
	return s, nil
}

type EmbeddingOption func(*EmbeddingStrategy)

func WithMaxTokens(n int) EmbeddingOption {
	return func(s *EmbeddingStrategy) { s.MaxTokens = n }
}

func WithMaxImageSize(bytes int) EmbeddingOption {
	return func(s *EmbeddingStrategy) { s.MaxImageSizeBytes = bytes }
}

// ReconstituteEmbeddingStrategy rebuilds a persisted strategy without
// re-validating modality limits.
func ReconstituteEmbeddingStrategy(s EmbeddingStrategy, createdAt, updatedAt time.Time) *EmbeddingStrategy {
	s.entity = entity{CreatedAt: createdAt, UpdatedAt: updatedAt}
	return &s
}

// CanEmbed reports whether this strategy handles content of the given
// modality.
func (s *EmbeddingStrategy) CanEmbed(m Modality) bool {
	if s.Modality == ModalityMultimodal {
		return true
	}
	return s.Modality == m
}
