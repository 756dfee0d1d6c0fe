package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textChunker(t *testing.T) *ChunkingStrategy {
	t.Helper()
	s, err := NewChunkingStrategy("Sentence Split", "sentence-split-256", ModalityText, BehaviorSplit,
		WithSplitParams(256, 25))
	require.NoError(t, err)
	return s
}

func imageChunker(t *testing.T) *ChunkingStrategy {
	t.Helper()
	s, err := NewChunkingStrategy("Image Passthrough", "image-passthrough", ModalityImage, BehaviorPassthrough,
		WithPassthroughParams(20*1024*1024))
	require.NoError(t, err)
	return s
}

func textEmbedder(t *testing.T) *EmbeddingStrategy {
	t.Helper()
	s, err := NewEmbeddingStrategy("Gemini Embedding", "gemini-embedding-001", "gemini-embedding-001", ModalityText, 768,
		WithMaxTokens(2048))
	require.NoError(t, err)
	return s
}

func multimodalEmbedder(t *testing.T) *EmbeddingStrategy {
	t.Helper()
	s, err := NewEmbeddingStrategy("Multimodal", "multimodal-v1", "multimodal-v1", ModalityMultimodal, 1024)
	require.NoError(t, err)
	return s
}

func TestNewVectorizationConfig(t *testing.T) {
	cfg, err := NewVectorizationConfig("default text", []*ChunkingStrategy{textChunker(t)}, textEmbedder(t), "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, ConfigActive, cfg.Status)
	assert.Equal(t, IndexingFlat, cfg.IndexingStrategy)
	assert.Equal(t, SimilarityCosine, cfg.SimilarityMetric)
	assert.Empty(t, cfg.PreviousVersionID)

	events := cfg.CollectAllEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventConfigCreated, events[0].EventName())
	assert.Empty(t, cfg.CollectAllEvents())
}

func TestVectorizationConfig_Invariants(t *testing.T) {
	chunkers := []*ChunkingStrategy{textChunker(t)}
	embedder := textEmbedder(t)

	_, err := buildConfig(0, "", "", chunkers, embedder, IndexingFlat, SimilarityCosine)
	assert.ErrorIs(t, err, ErrValidation, "version < 1")

	_, err = buildConfig(1, "parent-id", "", chunkers, embedder, IndexingFlat, SimilarityCosine)
	assert.ErrorIs(t, err, ErrValidation, "previous version with version <= 1")

	_, err = buildConfig(1, "", "", nil, embedder, IndexingFlat, SimilarityCosine)
	assert.ErrorIs(t, err, ErrValidation, "no chunking strategies")

	_, err = buildConfig(1, "", "", chunkers, nil, IndexingFlat, SimilarityCosine)
	assert.ErrorIs(t, err, ErrValidation, "no embedding strategy")

	// Single-modality embedder needs a chunker of its modality.
	_, err = buildConfig(1, "", "", []*ChunkingStrategy{imageChunker(t)}, embedder, IndexingFlat, SimilarityCosine)
	assert.ErrorIs(t, err, ErrValidation, "modality mismatch")

	// A MULTIMODAL embedder matches any chunker set.
	_, err = buildConfig(1, "", "", []*ChunkingStrategy{imageChunker(t)}, multimodalEmbedder(t), IndexingFlat, SimilarityCosine)
	assert.NoError(t, err)

	// Duplicate chunker modalities rejected.
	_, err = buildConfig(1, "", "", []*ChunkingStrategy{textChunker(t), textChunker(t)}, embedder, IndexingFlat, SimilarityCosine)
	assert.ErrorIs(t, err, ErrValidation, "duplicate modality")
}

func TestVectorizationConfig_NewVersion(t *testing.T) {
	v1, err := NewVectorizationConfig("v1", []*ChunkingStrategy{textChunker(t)}, textEmbedder(t), "", "")
	require.NoError(t, err)

	v2, err := v1.NewVersion("v2 with images", []*ChunkingStrategy{textChunker(t), imageChunker(t)}, multimodalEmbedder(t), "", "")
	require.NoError(t, err)

	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, v1.ID, v2.PreviousVersionID)
	assert.NotEqual(t, v1.ID, v2.ID)

	// v1 is untouched.
	assert.Equal(t, 1, v1.Version)
	assert.Len(t, v1.ChunkingStrategies, 1)

	events := v2.CollectAllEvents()
	require.Len(t, events, 1)
	ev, ok := events[0].(*VectorizationConfigVersionCreated)
	require.True(t, ok)
	assert.Equal(t, v1.ID, ev.PreviousVersionID)
}

func TestChunkingStrategyFor(t *testing.T) {
	cfg, err := NewVectorizationConfig("", []*ChunkingStrategy{textChunker(t), imageChunker(t)}, multimodalEmbedder(t), "", "")
	require.NoError(t, err)

	s, ok := cfg.ChunkingStrategyFor(ModalityText)
	require.True(t, ok)
	assert.Equal(t, BehaviorSplit, s.Behavior)

	_, ok = cfg.ChunkingStrategyFor(ModalityMultimodal)
	assert.False(t, ok)
}
