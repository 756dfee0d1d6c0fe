package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is an immutable record of something that happened in the domain.
// Events are recorded by aggregates during mutation and harvested by the
// unit of work after a successful commit; they are never published before
// the transaction that produced them is durable.
type Event interface {
	EventID() string
	EventName() string
	OccurredAt() time.Time
}

// EventMeta carries the metadata common to all events.
type EventMeta struct {
	ID   string    `json:"event_id"`
	Name string    `json:"event_name"`
	At   time.Time `json:"occurred_at"`
}

func newMeta(name string) EventMeta {
	return EventMeta{ID: uuid.NewString(), Name: name, At: time.Now().UTC()}
}

// NewEventMeta builds metadata for coordination events emitted outside an
// aggregate (pipeline scheduling and completion signals).
func NewEventMeta(name string) EventMeta {
	return newMeta(name)
}

func (m EventMeta) EventID() string       { return m.ID }
func (m EventMeta) EventName() string     { return m.Name }
func (m EventMeta) OccurredAt() time.Time { return m.At }

type LibraryCreated struct {
	EventMeta
	LibraryID LibraryID `json:"library_id"`
	Name      string    `json:"name"`
}

type LibraryUpdated struct {
	EventMeta
	LibraryID LibraryID `json:"library_id"`
	Name      string    `json:"name"`
}

type LibraryDeleted struct {
	EventMeta
	LibraryID LibraryID `json:"library_id"`
}

type LibraryConfigAdded struct {
	EventMeta
	LibraryID LibraryID             `json:"library_id"`
	ConfigID  VectorizationConfigID `json:"config_id"`
}

type LibraryConfigRemoved struct {
	EventMeta
	LibraryID LibraryID             `json:"library_id"`
	ConfigID  VectorizationConfigID `json:"config_id"`
}

type DocumentCreated struct {
	EventMeta
	DocumentID DocumentID `json:"document_id"`
	LibraryID  LibraryID  `json:"library_id"`
	Name       string     `json:"name"`
}

type DocumentUpdated struct {
	EventMeta
	DocumentID DocumentID `json:"document_id"`
	LibraryID  LibraryID  `json:"library_id"`
	Name       string     `json:"name"`
}

type DocumentDeleted struct {
	EventMeta
	DocumentID DocumentID `json:"document_id"`
	LibraryID  LibraryID  `json:"library_id"`
}

// DocumentFragmentReceived triggers parsing as soon as a fragment lands,
// before the upload as a whole completes.
type DocumentFragmentReceived struct {
	EventMeta
	LibraryID      LibraryID  `json:"library_id"`
	DocumentID     DocumentID `json:"document_id"`
	FragmentID     FragmentID `json:"fragment_id"`
	SequenceNumber int        `json:"sequence_number"`
	IsFinal        bool       `json:"is_final"`
}

// DocumentParsed closes the ingestion state machine: the final fragment
// was parsed and the document is COMPLETED or FAILED.
type DocumentParsed struct {
	EventMeta
	DocumentID DocumentID `json:"document_id"`
	LibraryID  LibraryID  `json:"library_id"`
	Failed     bool       `json:"failed"`
}

type ExtractedContentCreated struct {
	EventMeta
	LibraryID              LibraryID          `json:"library_id"`
	DocumentID             DocumentID         `json:"document_id"`
	FragmentID             FragmentID         `json:"fragment_id"`
	ExtractedContentID     ExtractedContentID `json:"extracted_content_id"`
	Modality               Modality           `json:"modality"`
	ModalitySequenceNumber int                `json:"modality_sequence_number"`
	IsLastOfModality       bool               `json:"is_last_of_modality"`
}

type EmbeddingCreated struct {
	EventMeta
	EmbeddingID         EmbeddingID           `json:"embedding_id"`
	ChunkID             ChunkID               `json:"chunk_id"`
	LibraryID           LibraryID             `json:"library_id"`
	ConfigID            VectorizationConfigID `json:"config_id"`
	EmbeddingStrategyID EmbeddingStrategyID   `json:"embedding_strategy_id"`
	Vector              []float32             `json:"vector"`
	Dimensions          int                   `json:"dimensions"`
	IndexingStrategy    IndexingStrategy      `json:"indexing_strategy"`
}

type VectorizationConfigCreated struct {
	EventMeta
	ConfigID    VectorizationConfigID `json:"config_id"`
	Version     int                   `json:"version"`
	Status      ConfigStatus          `json:"status"`
	Description string                `json:"description,omitempty"`
}

// VectorizationConfigVersionCreated is raised when editing a config
// produces a new immutable version in the chain.
type VectorizationConfigVersionCreated struct {
	EventMeta
	ConfigID          VectorizationConfigID `json:"config_id"`
	Version           int                   `json:"version"`
	PreviousVersionID VectorizationConfigID `json:"previous_version_id"`
	Status            ConfigStatus          `json:"status"`
	Description       string                `json:"description,omitempty"`
}

// DocumentVectorizationPending schedules one (document, config) pair for
// the chunk/embed/index pipeline.
type DocumentVectorizationPending struct {
	EventMeta
	DocumentID DocumentID            `json:"document_id"`
	LibraryID  LibraryID             `json:"library_id"`
	ConfigID   VectorizationConfigID `json:"config_id"`
}

type DocumentVectorizationCompleted struct {
	EventMeta
	DocumentID DocumentID            `json:"document_id"`
	LibraryID  LibraryID             `json:"library_id"`
	ConfigID   VectorizationConfigID `json:"config_id"`
}

type DocumentVectorizationFailed struct {
	EventMeta
	DocumentID DocumentID            `json:"document_id"`
	LibraryID  LibraryID             `json:"library_id"`
	ConfigID   VectorizationConfigID `json:"config_id"`
	Reason     string                `json:"reason"`
}

// Event names double as routing keys: the publisher maps the prefix
// (document, library.config, content, vectorization) to a topic.
const (
	EventLibraryCreated           = "library.created"
	EventLibraryUpdated           = "library.updated"
	EventLibraryDeleted           = "library.deleted"
	EventLibraryConfigAdded       = "library.config.added"
	EventLibraryConfigRemoved     = "library.config.removed"
	EventDocumentCreated          = "document.created"
	EventDocumentUpdated          = "document.updated"
	EventDocumentDeleted          = "document.deleted"
	EventDocumentFragmentReceived = "document.fragment_received"
	EventDocumentParsed           = "document.parsed"
	EventExtractedContentCreated  = "content.extracted"
	EventEmbeddingCreated         = "vectorization.embedding_created"
	EventConfigCreated            = "vectorization.config_created"
	EventConfigVersionCreated     = "vectorization.config_version_created"
	EventVectorizationPending     = "vectorization.pending"
	EventVectorizationCompleted   = "vectorization.completed"
	EventVectorizationFailed      = "vectorization.failed"
)
