// Package pipeline runs the asynchronous vectorization stages: parse,
// chunk, embed, index. Every stage is an idempotent NSQ consumer; retried
// deliveries recompute deterministic ids and skip work already done.
package pipeline

import (
	"context"

	"vecdb/internal/domain"
)

// Embedder produces a vector for one piece of content.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the searchable vector store. Entries live in one
// collection per config; adds are upserts keyed by embedding id.
type VectorIndex interface {
	Add(ctx context.Context, e domain.Embedding) error
	Remove(ctx context.Context, configID domain.VectorizationConfigID, id domain.EmbeddingID) error
	Search(ctx context.Context, libraryID domain.LibraryID, configID domain.VectorizationConfigID, query []float32, k int, metric domain.SimilarityMetric) ([]SearchHit, error)
}

// SearchHit is one ranked result from the vector index.
type SearchHit struct {
	EmbeddingID domain.EmbeddingID
	ChunkID     domain.ChunkID
	Score       float32
	Content     string
}

// ContentSource reads persisted extracted contents for the chunking
// stage; the write side only caches what it created this transaction.
type ContentSource interface {
	ListExtractedContents(ctx context.Context, documentID domain.DocumentID) ([]*domain.ExtractedContent, error)
}

// EmbeddingLookup answers "does this embedding already exist" so the
// embed stage can skip the provider call entirely on retries.
type EmbeddingLookup interface {
	EmbeddingExists(ctx context.Context, id domain.EmbeddingID) (bool, error)
}

// DocumentLister feeds the orchestrator the ingested documents of a
// library when a new config association needs backfilling.
type DocumentLister interface {
	ListCompletedDocumentIDs(ctx context.Context, libraryID domain.LibraryID) ([]domain.DocumentID, error)
}
