package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecdb/internal/domain"
	"vecdb/internal/search"
)

func addEmbedding(t *testing.T, idx *search.MemIndex, libID domain.LibraryID, cfgID domain.VectorizationConfigID, content string, vec []float32) domain.Embedding {
	t.Helper()
	chunkID := domain.NewChunkID(libID, "doc-1", "cs-1", []byte(content))
	e, err := domain.NewEmbedding(chunkID, "es-1", vec, libID, cfgID)
	require.NoError(t, err)
	require.NoError(t, idx.Add(context.Background(), e))
	return e
}

func TestMemIndex_CosineRanksByAngle(t *testing.T) {
	idx := search.NewMemIndex()
	close := addEmbedding(t, idx, "lib-1", "cfg-1", "close", []float32{1, 0, 0})
	addEmbedding(t, idx, "lib-1", "cfg-1", "far", []float32{0, 1, 0})

	hits, err := idx.Search(context.Background(), "lib-1", "cfg-1", []float32{0.9, 0.1, 0}, 10, domain.SimilarityCosine)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, close.ID(), hits[0].EmbeddingID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestMemIndex_EuclideanPrefersNearest(t *testing.T) {
	idx := search.NewMemIndex()
	near := addEmbedding(t, idx, "lib-1", "cfg-1", "near", []float32{1, 1})
	addEmbedding(t, idx, "lib-1", "cfg-1", "far", []float32{10, 10})

	hits, err := idx.Search(context.Background(), "lib-1", "cfg-1", []float32{1.1, 1.1}, 10, domain.SimilarityEuclidean)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, near.ID(), hits[0].EmbeddingID)
}

func TestMemIndex_ScopesByLibraryAndConfig(t *testing.T) {
	idx := search.NewMemIndex()
	mine := addEmbedding(t, idx, "lib-1", "cfg-1", "mine", []float32{1, 0})
	addEmbedding(t, idx, "lib-2", "cfg-1", "other library", []float32{1, 0})
	addEmbedding(t, idx, "lib-1", "cfg-2", "other config", []float32{1, 0})

	hits, err := idx.Search(context.Background(), "lib-1", "cfg-1", []float32{1, 0}, 10, domain.SimilarityCosine)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, mine.ID(), hits[0].EmbeddingID)
}

func TestMemIndex_TopKLimit(t *testing.T) {
	idx := search.NewMemIndex()
	for i := 0; i < 5; i++ {
		addEmbedding(t, idx, "lib-1", "cfg-1", string(rune('a'+i)), []float32{float32(i + 1), 1})
	}

	hits, err := idx.Search(context.Background(), "lib-1", "cfg-1", []float32{1, 1}, 3, domain.SimilarityCosine)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestMemIndex_AddIsUpsert(t *testing.T) {
	idx := search.NewMemIndex()
	e := addEmbedding(t, idx, "lib-1", "cfg-1", "same", []float32{1, 0})
	require.NoError(t, idx.Add(context.Background(), e))

	hits, err := idx.Search(context.Background(), "lib-1", "cfg-1", []float32{1, 0}, 10, domain.SimilarityCosine)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestMemIndex_Remove(t *testing.T) {
	idx := search.NewMemIndex()
	e := addEmbedding(t, idx, "lib-1", "cfg-1", "gone", []float32{1, 0})
	require.NoError(t, idx.Remove(context.Background(), "cfg-1", e.ID()))

	hits, err := idx.Search(context.Background(), "lib-1", "cfg-1", []float32{1, 0}, 10, domain.SimilarityCosine)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
