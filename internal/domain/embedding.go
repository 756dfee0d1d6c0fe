package domain

// Embedding is an immutable value: a vector produced from a chunk by an
// embedding strategy. Deduplicated by (chunk, strategy) through its
// computed id; re-embedding the same chunk with the same strategy is
// idempotent by construction.
type Embedding struct {
	ChunkID             ChunkID
	EmbeddingStrategyID EmbeddingStrategyID
	Vector              []float32

	// Query context, not part of the natural key.
	LibraryID LibraryID
	ConfigID  VectorizationConfigID
}

func NewEmbedding(chunkID ChunkID, strategyID EmbeddingStrategyID, vector []float32, libraryID LibraryID, configID VectorizationConfigID) (Embedding, error) {
	if len(vector) == 0 {
		return Embedding{}, validationf("embedding vector cannot be empty")
	}
	return Embedding{
		ChunkID:             chunkID,
		EmbeddingStrategyID: strategyID,
		Vector:              vector,
		LibraryID:           libraryID,
		ConfigID:            configID,
	}, nil
}

// ID is the embedding's deterministic identity.
func (e Embedding) ID() EmbeddingID {
	return NewEmbeddingID(e.ChunkID, e.EmbeddingStrategyID)
}

func (e Embedding) Dimensions() int { return len(e.Vector) }
