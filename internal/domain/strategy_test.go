package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunkingStrategy_BehaviorModality(t *testing.T) {
	_, err := NewChunkingStrategy("s", "k", ModalityMultimodal, BehaviorSplit)
	assert.ErrorIs(t, err, ErrValidation, "MULTIMODAL chunker")

	_, err = NewChunkingStrategy("s", "k", ModalityText, BehaviorPassthrough)
	assert.ErrorIs(t, err, ErrValidation, "TEXT only allows SPLIT")

	_, err = NewChunkingStrategy("s", "k", ModalityImage, BehaviorSplit)
	assert.ErrorIs(t, err, ErrValidation, "IMAGE only allows PASSTHROUGH")
}

func TestNewChunkingStrategy_SplitParams(t *testing.T) {
	_, err := NewChunkingStrategy("s", "k", ModalityText, BehaviorSplit)
	assert.ErrorIs(t, err, ErrValidation, "missing chunk_size_tokens")

	_, err = NewChunkingStrategy("s", "k", ModalityText, BehaviorSplit, WithSplitParams(256, 256))
	assert.ErrorIs(t, err, ErrValidation, "overlap >= size")

	_, err = NewChunkingStrategy("s", "k", ModalityText, BehaviorSplit,
		WithSplitParams(256, 25), WithChunkSizeBounds(0, 128))
	assert.ErrorIs(t, err, ErrValidation, "size above max")

	s, err := NewChunkingStrategy("s", "k", ModalityText, BehaviorSplit,
		WithSplitParams(256, 25), WithChunkSizeBounds(32, 512))
	require.NoError(t, err)
	assert.Equal(t, StrategyActive, s.Status)
	assert.Equal(t, NewChunkingStrategyID("k"), s.ID)
}

func TestNewChunkingStrategy_PassthroughParams(t *testing.T) {
	_, err := NewChunkingStrategy("s", "k", ModalityImage, BehaviorPassthrough)
	assert.ErrorIs(t, err, ErrValidation, "missing max_content_size_bytes")

	s, err := NewChunkingStrategy("s", "k", ModalityImage, BehaviorPassthrough, WithPassthroughParams(1024))
	require.NoError(t, err)
	assert.Equal(t, ModalityImage, s.Modality)
}

func TestNewEmbeddingStrategy(t *testing.T) {
	_, err := NewEmbeddingStrategy("", "k", "m", ModalityText, 768, WithMaxTokens(512))
	assert.ErrorIs(t, err, ErrValidation, "empty name")

	_, err = NewEmbeddingStrategy("s", "k", "m", ModalityText, 0, WithMaxTokens(512))
	assert.ErrorIs(t, err, ErrValidation, "zero dimensions")

	_, err = NewEmbeddingStrategy("s", "k", "m", ModalityText, 768)
	assert.ErrorIs(t, err, ErrValidation, "TEXT without max_tokens")

	_, err = NewEmbeddingStrategy("s", "k", "m", ModalityImage, 768)
	assert.ErrorIs(t, err, ErrValidation, "IMAGE without max_image_size_bytes")

	s, err := NewEmbeddingStrategy("s", "k", "m", ModalityMultimodal, 1024)
	require.NoError(t, err)
	assert.True(t, s.CanEmbed(ModalityText))
	assert.True(t, s.CanEmbed(ModalityImage))

	txt, err := NewEmbeddingStrategy("s", "k", "m", ModalityText, 768, WithMaxTokens(512))
	require.NoError(t, err)
	assert.True(t, txt.CanEmbed(ModalityText))
	assert.False(t, txt.CanEmbed(ModalityImage))
}
