package search

import (
	"context"
	"math"
	"sort"
	"sync"

	"vecdb/internal/domain"
	"vecdb/internal/pipeline"
)

// MemIndex is an in-process vector index, one bucket per config. It backs
// tests and single-node deployments without a Weaviate instance; the
// scoring matches the metric the config declares.
type MemIndex struct {
	mu      sync.RWMutex
	buckets map[domain.VectorizationConfigID]map[domain.EmbeddingID]domain.Embedding
}

func NewMemIndex() *MemIndex {
	return &MemIndex{buckets: make(map[domain.VectorizationConfigID]map[domain.EmbeddingID]domain.Embedding)}
}

func (m *MemIndex) Add(ctx context.Context, e domain.Embedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.buckets[e.ConfigID]
	if !ok {
		bucket = make(map[domain.EmbeddingID]domain.Embedding)
		m.buckets[e.ConfigID] = bucket
	}
	bucket[e.ID()] = e
	return nil
}

func (m *MemIndex) Remove(ctx context.Context, configID domain.VectorizationConfigID, id domain.EmbeddingID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets[configID], id)
	return nil
}

func (m *MemIndex) Search(ctx context.Context, libraryID domain.LibraryID, configID domain.VectorizationConfigID, query []float32, k int, metric domain.SimilarityMetric) ([]pipeline.SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []pipeline.SearchHit
	for id, e := range m.buckets[configID] {
		if e.LibraryID != libraryID {
			continue
		}
		if len(e.Vector) != len(query) {
			continue
		}
		hits = append(hits, pipeline.SearchHit{
			EmbeddingID: id,
			ChunkID:     e.ChunkID,
			Score:       score(query, e.Vector, metric),
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// score maps every metric to a higher-is-better value so ranking is
// uniform across metrics.
func score(a, b []float32, metric domain.SimilarityMetric) float32 {
	switch metric {
	case domain.SimilarityDotProduct:
		return dot(a, b)
	case domain.SimilarityEuclidean:
		return -euclidean(a, b)
	default:
		return cosine(a, b)
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func cosine(a, b []float32) float32 {
	na := norm(a)
	nb := norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot(a, b) / (na * nb)
}

func euclidean(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

func norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}
