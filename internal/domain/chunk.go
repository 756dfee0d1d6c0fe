package domain

// Chunk is an immutable value: a unit of content ready for embedding,
// scoped to a chunking strategy. Its id is computed, not assigned, so the
// same (library, document, strategy, content) always maps to the same
// chunk and re-creation is a no-op.
type Chunk struct {
	LibraryID          LibraryID
	DocumentID         DocumentID
	ExtractedContentID ExtractedContentID
	Modality           Modality
	Content            []byte
	ChunkingStrategyID ChunkingStrategyID
	ContentHash        ContentHash
}

func NewChunk(libraryID LibraryID, documentID DocumentID, extractedID ExtractedContentID, modality Modality, content []byte, strategyID ChunkingStrategyID) (Chunk, error) {
	if len(content) == 0 {
		return Chunk{}, validationf("chunk content cannot be empty")
	}
	if modality == ModalityMultimodal {
		return Chunk{}, validationf("MULTIMODAL is not a chunk modality")
	}
	return Chunk{
		LibraryID:          libraryID,
		DocumentID:         documentID,
		ExtractedContentID: extractedID,
		Modality:           modality,
		Content:            content,
		ChunkingStrategyID: strategyID,
		ContentHash:        HashContent(content),
	}, nil
}

// ID is the chunk's deterministic content-addressed identity.
func (c Chunk) ID() ChunkID {
	return NewChunkID(c.LibraryID, c.DocumentID, c.ChunkingStrategyID, c.Content)
}

// Text returns the content as a string. Only meaningful for TEXT chunks.
func (c Chunk) Text() string { return string(c.Content) }
