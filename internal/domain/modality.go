package domain

// Modality classifies extracted content and strategy applicability.
// MULTIMODAL is reserved for embedding strategies; extracted content and
// chunking strategies are always single-modality.
type Modality string

const (
	ModalityText       Modality = "TEXT"
	ModalityImage      Modality = "IMAGE"
	ModalityMultimodal Modality = "MULTIMODAL"

	// ModalityUnknown marks extracted content whose fragment matched no
	// parser. Such rows are always FAILED and sit outside modality
	// sequencing.
	ModalityUnknown Modality = "UNKNOWN"
)

// ChunkingBehavior selects which parameters a chunking strategy requires.
type ChunkingBehavior string

const (
	BehaviorSplit        ChunkingBehavior = "SPLIT"
	BehaviorPassthrough  ChunkingBehavior = "PASSTHROUGH"
	BehaviorFrameExtract ChunkingBehavior = "FRAME_EXTRACT"
	BehaviorTimeSegment  ChunkingBehavior = "TIME_SEGMENT"
)

// validBehaviors maps each chunkable modality to its allowed behaviors.
var validBehaviors = map[Modality][]ChunkingBehavior{
	ModalityText:  {BehaviorSplit},
	ModalityImage: {BehaviorPassthrough},
}

type LibraryStatus string

const (
	LibraryStatusActive   LibraryStatus = "ACTIVE"
	LibraryStatusArchived LibraryStatus = "ARCHIVED"
	LibraryStatusDeleted  LibraryStatus = "DELETED"
)

type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "PENDING"
	DocumentStatusProcessing DocumentStatus = "PROCESSING"
	DocumentStatusCompleted  DocumentStatus = "COMPLETED"
	DocumentStatusFailed     DocumentStatus = "FAILED"
	DocumentStatusDeleted    DocumentStatus = "DELETED"
)

type ExtractedContentStatus string

const (
	ExtractedPending ExtractedContentStatus = "PENDING"
	ExtractedChunked ExtractedContentStatus = "CHUNKED"
	ExtractedFailed  ExtractedContentStatus = "FAILED"
)

type ConfigStatus string

const (
	ConfigDraft    ConfigStatus = "DRAFT"
	ConfigActive   ConfigStatus = "ACTIVE"
	ConfigArchived ConfigStatus = "ARCHIVED"
)

type IndexingStrategy string

const (
	IndexingFlat IndexingStrategy = "FLAT"
)

type SimilarityMetric string

const (
	SimilarityCosine     SimilarityMetric = "COSINE"
	SimilarityDotProduct SimilarityMetric = "DOT_PRODUCT"
	SimilarityEuclidean  SimilarityMetric = "EUCLIDEAN"
)
