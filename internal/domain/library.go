package domain

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DocumentLoader fetches a persisted document of a library by id.
type DocumentLoader func(ctx context.Context, libraryID LibraryID, documentID DocumentID) (*Document, error)

// Library is the aggregate root for the document/fragment/chunk/embedding
// subgraph. Every mutation below it flows through a Library method, and
// every mutating method records exactly one domain event; nothing here
// publishes directly.
//
// A loaded Library is exclusively owned by its transaction. Concurrent
// transactions on the same library race at commit time and are resolved by
// the repository's version check (compare-and-swap on Version).
type Library struct {
	entity

	ID     LibraryID
	Name   string
	Status LibraryStatus

	// Version backs the optimistic concurrency check at persistence time.
	Version int64

	documents      map[DocumentID]*Document
	documentLoader DocumentLoader

	chunks     map[ChunkID]Chunk
	embeddings map[EmbeddingID]Embedding

	configIDs      map[VectorizationConfigID]struct{}
	addedConfigs   map[VectorizationConfigID]struct{}
	removedConfigs map[VectorizationConfigID]struct{}
}

func NewLibrary(name string) (*Library, error) {
	if name == "" {
		return nil, validationf("library name cannot be empty")
	}
	now := time.Now().UTC()
	lib := &Library{
		entity:         newEntity(now),
		ID:             LibraryID(uuid.NewString()),
		Name:           name,
		Status:         LibraryStatusActive,
		Version:        1,
		documents:      make(map[DocumentID]*Document),
		chunks:         make(map[ChunkID]Chunk),
		embeddings:     make(map[EmbeddingID]Embedding),
		configIDs:      make(map[VectorizationConfigID]struct{}),
		addedConfigs:   make(map[VectorizationConfigID]struct{}),
		removedConfigs: make(map[VectorizationConfigID]struct{}),
	}
	lib.record(&LibraryCreated{EventMeta: newMeta(EventLibraryCreated), LibraryID: lib.ID, Name: name})
	return lib, nil
}

// ReconstituteLibrary rebuilds a persisted library without recording a
// creation event.
func ReconstituteLibrary(id LibraryID, name string, status LibraryStatus, version int64, configIDs []VectorizationConfigID, createdAt, updatedAt time.Time, loader DocumentLoader) *Library {
	lib := &Library{
		entity:         entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:             id,
		Name:           name,
		Status:         status,
		Version:        version,
		documents:      make(map[DocumentID]*Document),
		documentLoader: loader,
		chunks:         make(map[ChunkID]Chunk),
		embeddings:     make(map[EmbeddingID]Embedding),
		configIDs:      make(map[VectorizationConfigID]struct{}),
		addedConfigs:   make(map[VectorizationConfigID]struct{}),
		removedConfigs: make(map[VectorizationConfigID]struct{}),
	}
	for _, cid := range configIDs {
		lib.configIDs[cid] = struct{}{}
	}
	return lib
}

func (l *Library) Rename(name string) error {
	if name == "" {
		return validationf("library name cannot be empty")
	}
	l.Name = name
	l.touch(time.Now().UTC())
	l.record(&LibraryUpdated{EventMeta: newMeta(EventLibraryUpdated), LibraryID: l.ID, Name: name})
	return nil
}

// SoftDelete marks the library DELETED. Libraries are never destroyed.
func (l *Library) SoftDelete() {
	if l.Status == LibraryStatusDeleted {
		return
	}
	l.Status = LibraryStatusDeleted
	l.touch(time.Now().UTC())
	l.record(&LibraryDeleted{EventMeta: newMeta(EventLibraryDeleted), LibraryID: l.ID})
}

func (l *Library) Archive() {
	if l.Status == LibraryStatusArchived {
		return
	}
	l.Status = LibraryStatusArchived
	l.touch(time.Now().UTC())
}

// Documents returns the documents loaded in this transaction, ordered by
// creation time.
func (l *Library) Documents() []*Document {
	out := make([]*Document, 0, len(l.documents))
	for _, d := range l.documents {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// GetDocument returns a document by id, fetching from storage on cache
// miss when a loader is configured.
func (l *Library) GetDocument(ctx context.Context, id DocumentID) (*Document, error) {
	if doc, ok := l.documents[id]; ok {
		return doc, nil
	}
	if l.documentLoader == nil {
		return nil, &NotFoundError{Kind: "document", ID: string(id)}
	}
	doc, err := l.documentLoader(ctx, l.ID, id)
	if err != nil {
		return nil, err
	}
	l.documents[doc.ID] = doc
	return doc, nil
}

func (l *Library) AddDocument(name string) (*Document, error) {
	if l.Status != LibraryStatusActive {
		return nil, conflictf("library %s is %s, cannot add documents", l.ID, l.Status)
	}
	now := time.Now().UTC()
	doc, err := newDocument(l.ID, name, now)
	if err != nil {
		return nil, err
	}
	l.documents[doc.ID] = doc
	l.record(&DocumentCreated{EventMeta: newMeta(EventDocumentCreated), DocumentID: doc.ID, LibraryID: l.ID, Name: name})
	return doc, nil
}

func (l *Library) UpdateDocument(ctx context.Context, id DocumentID, name string) (*Document, error) {
	if name == "" {
		return nil, validationf("document name cannot be empty")
	}
	doc, err := l.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.Name = name
	doc.touch(time.Now().UTC())
	l.record(&DocumentUpdated{EventMeta: newMeta(EventDocumentUpdated), DocumentID: id, LibraryID: l.ID, Name: name})
	return doc, nil
}

func (l *Library) RemoveDocument(ctx context.Context, id DocumentID) error {
	doc, err := l.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	doc.Status = DocumentStatusDeleted
	doc.touch(time.Now().UTC())
	l.record(&DocumentDeleted{EventMeta: newMeta(EventDocumentDeleted), DocumentID: id, LibraryID: l.ID})
	return nil
}

// AddDocumentFragment attaches the next fragment of a streaming upload.
// Sequence numbers must arrive consecutively; the final fragment flips the
// document PENDING -> PROCESSING.
func (l *Library) AddDocumentFragment(ctx context.Context, documentID DocumentID, seq int, content []byte, isFinal bool) (*Fragment, error) {
	doc, err := l.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	// Persisted fragments count toward the sequence invariants.
	if _, err := doc.LoadFragments(ctx); err != nil {
		return nil, err
	}
	if doc.hasFinalFragment() {
		return nil, conflictf("document %s already has its final fragment", documentID)
	}
	if expected := doc.nextSequenceNumber(); seq != expected {
		return nil, conflictf("fragment sequence %d out of order, expected %d", seq, expected)
	}
	now := time.Now().UTC()
	frag, err := newFragment(documentID, seq, content, isFinal, now)
	if err != nil {
		return nil, err
	}
	doc.fragments[frag.ID] = frag
	if isFinal {
		doc.UploadComplete = true
		doc.Status = DocumentStatusProcessing
	}
	doc.touch(now)
	l.record(&DocumentFragmentReceived{
		EventMeta:      newMeta(EventDocumentFragmentReceived),
		LibraryID:      l.ID,
		DocumentID:     documentID,
		FragmentID:     frag.ID,
		SequenceNumber: seq,
		IsFinal:        isFinal,
	})
	return frag, nil
}

// AddDocumentExtractedContent attaches parsed content to a document and
// records the event that triggers per-config vectorization.
func (l *Library) AddDocumentExtractedContent(ctx context.Context, documentID DocumentID, ec *ExtractedContent) error {
	doc, err := l.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	doc.extracted[ec.ID] = ec
	doc.touch(time.Now().UTC())
	l.record(&ExtractedContentCreated{
		EventMeta:              newMeta(EventExtractedContentCreated),
		LibraryID:              l.ID,
		DocumentID:             documentID,
		FragmentID:             ec.FragmentID,
		ExtractedContentID:     ec.ID,
		Modality:               ec.Modality,
		ModalitySequenceNumber: ec.ModalitySequenceNumber,
		IsLastOfModality:       ec.IsLastOfModality,
	})
	return nil
}

// MarkExtractedContentChunked transitions a parsed content to CHUNKED and
// tracks it on its document so the status change persists with the
// aggregate. No event: the transition is bookkeeping, not a trigger.
func (l *Library) MarkExtractedContentChunked(ctx context.Context, ec *ExtractedContent) error {
	doc, err := l.GetDocument(ctx, ec.DocumentID)
	if err != nil {
		return err
	}
	if err := ec.MarkChunked(); err != nil {
		return err
	}
	doc.extracted[ec.ID] = ec
	doc.touch(time.Now().UTC())
	return nil
}

// MarkExtractedContentFailed transitions a content to FAILED, tracking it
// like MarkExtractedContentChunked.
func (l *Library) MarkExtractedContentFailed(ctx context.Context, ec *ExtractedContent, reason string) error {
	doc, err := l.GetDocument(ctx, ec.DocumentID)
	if err != nil {
		return err
	}
	if err := ec.MarkFailed(reason); err != nil {
		return err
	}
	doc.extracted[ec.ID] = ec
	doc.touch(time.Now().UTC())
	return nil
}

// MarkDocumentParsed finishes the ingestion state machine for a document
// after its final fragment was parsed.
func (l *Library) MarkDocumentParsed(ctx context.Context, documentID DocumentID, failed bool) error {
	doc, err := l.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	return doc.markParsed(failed, time.Now().UTC())
}

// ConfigIDs returns the committed config associations.
func (l *Library) ConfigIDs() []VectorizationConfigID {
	out := make([]VectorizationConfigID, 0, len(l.configIDs))
	for cid := range l.configIDs {
		out = append(out, cid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PendingConfigAdds and PendingConfigRemoves expose the association delta
// for the repository to persist at commit time.
func (l *Library) PendingConfigAdds() []VectorizationConfigID {
	return configSetToSlice(l.addedConfigs)
}

func (l *Library) PendingConfigRemoves() []VectorizationConfigID {
	return configSetToSlice(l.removedConfigs)
}

func configSetToSlice(set map[VectorizationConfigID]struct{}) []VectorizationConfigID {
	out := make([]VectorizationConfigID, 0, len(set))
	for cid := range set {
		out = append(out, cid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ApplyConfigChanges folds the pending association delta into the
// committed set. Repositories call it once the delta is durable; until
// then ConfigIDs reflects only what the last load saw.
func (l *Library) ApplyConfigChanges() {
	for cid := range l.addedConfigs {
		l.configIDs[cid] = struct{}{}
	}
	for cid := range l.removedConfigs {
		delete(l.configIDs, cid)
	}
	l.addedConfigs = make(map[VectorizationConfigID]struct{})
	l.removedConfigs = make(map[VectorizationConfigID]struct{})
}

// AddConfig associates a vectorization config. Idempotent: re-adding an
// associated or already-pending config records nothing.
func (l *Library) AddConfig(configID VectorizationConfigID) {
	if _, ok := l.configIDs[configID]; ok {
		return
	}
	if _, ok := l.addedConfigs[configID]; ok {
		return
	}
	l.addedConfigs[configID] = struct{}{}
	l.record(&LibraryConfigAdded{EventMeta: newMeta(EventLibraryConfigAdded), LibraryID: l.ID, ConfigID: configID})
}

// RemoveConfig disassociates a config. Idempotent like AddConfig.
func (l *Library) RemoveConfig(configID VectorizationConfigID) {
	if _, ok := l.removedConfigs[configID]; ok {
		return
	}
	l.removedConfigs[configID] = struct{}{}
	l.record(&LibraryConfigRemoved{EventMeta: newMeta(EventLibraryConfigRemoved), LibraryID: l.ID, ConfigID: configID})
}

// AddChunk stores a chunk, returning the existing instance when its
// computed id is already present. No event: chunks are derived values.
func (l *Library) AddChunk(c Chunk) Chunk {
	id := c.ID()
	if existing, ok := l.chunks[id]; ok {
		return existing
	}
	l.chunks[id] = c
	return c
}

func (l *Library) GetChunk(id ChunkID) (Chunk, bool) {
	c, ok := l.chunks[id]
	return c, ok
}

func (l *Library) ChunkCount() int { return len(l.chunks) }

// Chunks returns the chunks added this transaction, ordered by id for
// deterministic persistence.
func (l *Library) Chunks() []Chunk {
	out := make([]Chunk, 0, len(l.chunks))
	for _, c := range l.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// AddEmbedding stores an embedding, returning the existing instance on a
// duplicate id. Records EmbeddingCreated only for genuinely new vectors.
func (l *Library) AddEmbedding(e Embedding, indexing IndexingStrategy) Embedding {
	id := e.ID()
	if existing, ok := l.embeddings[id]; ok {
		return existing
	}
	l.embeddings[id] = e
	l.record(&EmbeddingCreated{
		EventMeta:           newMeta(EventEmbeddingCreated),
		EmbeddingID:         id,
		ChunkID:             e.ChunkID,
		LibraryID:           e.LibraryID,
		ConfigID:            e.ConfigID,
		EmbeddingStrategyID: e.EmbeddingStrategyID,
		Vector:              e.Vector,
		Dimensions:          e.Dimensions(),
		IndexingStrategy:    indexing,
	})
	return e
}

func (l *Library) GetEmbedding(id EmbeddingID) (Embedding, bool) {
	e, ok := l.embeddings[id]
	return e, ok
}

func (l *Library) EmbeddingCount() int { return len(l.embeddings) }

// Embeddings returns the embeddings added this transaction, ordered by id.
func (l *Library) Embeddings() []Embedding {
	out := make([]Embedding, 0, len(l.embeddings))
	for _, e := range l.embeddings {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// CollectAllEvents destructively harvests the aggregate's events plus
// every loaded child's, in aggregate-then-child order. A second call
// without intervening mutation returns nothing.
func (l *Library) CollectAllEvents() []Event {
	all := l.drainEvents()
	for _, doc := range l.Documents() {
		all = append(all, doc.drainEvents()...)
		for _, frag := range doc.Fragments() {
			all = append(all, frag.drainEvents()...)
		}
	}
	return all
}
