package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecdb/internal/domain"
	"vecdb/internal/pipeline"
	"vecdb/internal/uow"
)

func vectorizationPending(libID domain.LibraryID, docID domain.DocumentID, cfgID domain.VectorizationConfigID) *domain.DocumentVectorizationPending {
	return &domain.DocumentVectorizationPending{
		EventMeta:  domain.NewEventMeta(domain.EventVectorizationPending),
		LibraryID:  libID,
		DocumentID: docID,
		ConfigID:   cfgID,
	}
}

func TestVectorizeConsumer_ChunksEmbedsAndCompletes(t *testing.T) {
	starter := uow.NewMemStarter()
	pub := &capturingPublisher{}
	libID, docID, fragID := seedLibraryWithDocument(t, starter, []byte("hello vector world"))
	cfg := seedTextConfig(t, starter)

	contents := &fakeContents{byDocument: map[domain.DocumentID][]*domain.ExtractedContent{
		docID: {mustExtractedContent(t, docID, fragID, []byte("hello vector world"), domain.ModalityText, 1, true)},
	}}
	lookup := &fakeLookup{existing: map[domain.EmbeddingID]bool{}}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	statuses := newMemStatusStore()

	consumer := pipeline.NewVectorizeConsumer(starter, pub, contents, lookup, embedder, statuses, slog.Default())

	err := consumer.HandleMessage(nsqMsg(t, vectorizationPending(libID, docID, cfg.ID)))
	require.NoError(t, err)

	assert.Equal(t, 1, embedder.calls)
	assert.Contains(t, pub.names(), domain.EventEmbeddingCreated)
	assert.Contains(t, pub.names(), domain.EventVectorizationCompleted)

	st, err := statuses.Get(context.Background(), docID, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateCompleted, st.State)

	ctx := context.Background()
	u, err := starter.Begin(ctx)
	require.NoError(t, err)
	defer u.Rollback() //nolint:errcheck
	lib, err := u.Libraries().Get(ctx, libID)
	require.NoError(t, err)
	assert.Equal(t, 1, lib.ChunkCount())
	assert.Equal(t, 1, lib.EmbeddingCount())
}

func TestVectorizeConsumer_MarksContentChunked(t *testing.T) {
	starter := uow.NewMemStarter()
	pub := &capturingPublisher{}
	libID, docID, fragID := seedLibraryWithDocument(t, starter, []byte("hello vector world"))
	cfg := seedTextConfig(t, starter)

	ec := mustExtractedContent(t, docID, fragID, []byte("hello vector world"), domain.ModalityText, 1, true)
	contents := &fakeContents{byDocument: map[domain.DocumentID][]*domain.ExtractedContent{
		docID: {ec},
	}}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	statuses := newMemStatusStore()

	consumer := pipeline.NewVectorizeConsumer(starter, pub, contents, &fakeLookup{}, embedder, statuses, slog.Default())

	err := consumer.HandleMessage(nsqMsg(t, vectorizationPending(libID, docID, cfg.ID)))
	require.NoError(t, err)

	assert.Equal(t, domain.ExtractedChunked, ec.Status)

	// The transition is tracked on the aggregate, so it persists with
	// the same commit that wrote the chunks.
	ctx := context.Background()
	u, err := starter.Begin(ctx)
	require.NoError(t, err)
	defer u.Rollback() //nolint:errcheck
	lib, err := u.Libraries().Get(ctx, libID)
	require.NoError(t, err)
	doc, err := lib.GetDocument(ctx, docID)
	require.NoError(t, err)
	ecs := doc.ExtractedContents()
	require.Len(t, ecs, 1)
	assert.Equal(t, domain.ExtractedChunked, ecs[0].Status)
}

func TestVectorizeConsumer_ExistingEmbeddingSkipsProvider(t *testing.T) {
	starter := uow.NewMemStarter()
	pub := &capturingPublisher{}
	content := []byte("hello vector world")
	libID, docID, fragID := seedLibraryWithDocument(t, starter, content)
	cfg := seedTextConfig(t, starter)

	chunkID := domain.NewChunkID(libID, docID, cfg.ChunkingStrategies[0].ID, content)
	embID := domain.NewEmbeddingID(chunkID, cfg.EmbeddingStrategy.ID)

	contents := &fakeContents{byDocument: map[domain.DocumentID][]*domain.ExtractedContent{
		docID: {mustExtractedContent(t, docID, fragID, content, domain.ModalityText, 1, true)},
	}}
	lookup := &fakeLookup{existing: map[domain.EmbeddingID]bool{embID: true}}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	statuses := newMemStatusStore()

	consumer := pipeline.NewVectorizeConsumer(starter, pub, contents, lookup, embedder, statuses, slog.Default())

	err := consumer.HandleMessage(nsqMsg(t, vectorizationPending(libID, docID, cfg.ID)))
	require.NoError(t, err)

	assert.Equal(t, 0, embedder.calls, "existing embedding must skip the provider call")
	assert.NotContains(t, pub.names(), domain.EventEmbeddingCreated)
	assert.Contains(t, pub.names(), domain.EventVectorizationCompleted)

	st, err := statuses.Get(context.Background(), docID, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateCompleted, st.State)
}

func TestVectorizeConsumer_EmbedderFailureMarksFailed(t *testing.T) {
	starter := uow.NewMemStarter()
	pub := &capturingPublisher{}
	libID, docID, fragID := seedLibraryWithDocument(t, starter, []byte("hello vector world"))
	cfg := seedTextConfig(t, starter)

	contents := &fakeContents{byDocument: map[domain.DocumentID][]*domain.ExtractedContent{
		docID: {mustExtractedContent(t, docID, fragID, []byte("hello vector world"), domain.ModalityText, 1, true)},
	}}
	embedder := &fakeEmbedder{err: errors.New("provider down")}
	statuses := newMemStatusStore()

	consumer := pipeline.NewVectorizeConsumer(starter, pub, contents, &fakeLookup{}, embedder, statuses, slog.Default())

	err := consumer.HandleMessage(nsqMsg(t, vectorizationPending(libID, docID, cfg.ID)))
	assert.Error(t, err, "transient provider failure must requeue")

	assert.Contains(t, pub.names(), domain.EventVectorizationFailed)
	st, gerr := statuses.Get(context.Background(), docID, cfg.ID)
	require.NoError(t, gerr)
	assert.Equal(t, pipeline.StateFailed, st.State)
	assert.Contains(t, st.Error, "provider down")
}

func TestVectorizeConsumer_SkipsModalityWithoutStrategy(t *testing.T) {
	starter := uow.NewMemStarter()
	pub := &capturingPublisher{}
	libID, docID, fragID := seedLibraryWithDocument(t, starter, []byte("hello vector world"))
	cfg := seedTextConfig(t, starter)

	png := append([]byte{0x89, 'P', 'N', 'G'}, []byte("fake image bytes")...)
	contents := &fakeContents{byDocument: map[domain.DocumentID][]*domain.ExtractedContent{
		docID: {mustExtractedContent(t, docID, fragID, png, domain.ModalityImage, 1, true)},
	}}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	statuses := newMemStatusStore()

	consumer := pipeline.NewVectorizeConsumer(starter, pub, contents, &fakeLookup{}, embedder, statuses, slog.Default())

	err := consumer.HandleMessage(nsqMsg(t, vectorizationPending(libID, docID, cfg.ID)))
	require.NoError(t, err)

	assert.Equal(t, 0, embedder.calls)
	assert.Contains(t, pub.names(), domain.EventVectorizationCompleted)
}

func TestVectorizeConsumer_SkipsFailedExtractedContent(t *testing.T) {
	starter := uow.NewMemStarter()
	pub := &capturingPublisher{}
	libID, docID, fragID := seedLibraryWithDocument(t, starter, []byte("hello vector world"))
	cfg := seedTextConfig(t, starter)

	failed := mustExtractedContent(t, docID, fragID, []byte("hello vector world"), domain.ModalityText, 1, true)
	require.NoError(t, failed.MarkFailed("bad content"))
	contents := &fakeContents{byDocument: map[domain.DocumentID][]*domain.ExtractedContent{
		docID: {failed},
	}}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	statuses := newMemStatusStore()

	consumer := pipeline.NewVectorizeConsumer(starter, pub, contents, &fakeLookup{}, embedder, statuses, slog.Default())

	err := consumer.HandleMessage(nsqMsg(t, vectorizationPending(libID, docID, cfg.ID)))
	require.NoError(t, err)
	assert.Equal(t, 0, embedder.calls)
}
