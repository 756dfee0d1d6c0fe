package pipeline_test

import (
	"context"
	"sync"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/require"

	"vecdb/internal/domain"
	"vecdb/internal/events"
	"vecdb/internal/pipeline"
	"vecdb/internal/uow"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *capturingPublisher) PublishEvents(ctx context.Context, evs []domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return p.err
}

func (p *capturingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.EventName()
	}
	return out
}

type fakeContents struct {
	byDocument map[domain.DocumentID][]*domain.ExtractedContent
}

func (f *fakeContents) ListExtractedContents(ctx context.Context, documentID domain.DocumentID) ([]*domain.ExtractedContent, error) {
	return f.byDocument[documentID], nil
}

type fakeLookup struct {
	existing map[domain.EmbeddingID]bool
	calls    int
}

func (f *fakeLookup) EmbeddingExists(ctx context.Context, id domain.EmbeddingID) (bool, error) {
	f.calls++
	return f.existing[id], nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeDocs struct {
	docIDs []domain.DocumentID
}

func (f *fakeDocs) ListCompletedDocumentIDs(ctx context.Context, libraryID domain.LibraryID) ([]domain.DocumentID, error) {
	return f.docIDs, nil
}

type memStatusStore struct {
	mu   sync.Mutex
	rows map[string]pipeline.VectorizationStatus
}

func newMemStatusStore() *memStatusStore {
	return &memStatusStore{rows: make(map[string]pipeline.VectorizationStatus)}
}

func statusKey(documentID domain.DocumentID, configID domain.VectorizationConfigID) string {
	return string(documentID) + "/" + string(configID)
}

func (s *memStatusStore) Upsert(ctx context.Context, st pipeline.VectorizationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[statusKey(st.DocumentID, st.ConfigID)] = st
	return nil
}

func (s *memStatusStore) Get(ctx context.Context, documentID domain.DocumentID, configID domain.VectorizationConfigID) (*pipeline.VectorizationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rows[statusKey(documentID, configID)]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "vectorization status", ID: statusKey(documentID, configID)}
	}
	return &st, nil
}

func (s *memStatusStore) ListByDocument(ctx context.Context, documentID domain.DocumentID) ([]pipeline.VectorizationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []pipeline.VectorizationStatus
	for _, st := range s.rows {
		if st.DocumentID == documentID {
			out = append(out, st)
		}
	}
	return out, nil
}

type memIndex struct {
	mu      sync.Mutex
	entries map[domain.EmbeddingID]domain.Embedding
	err     error
}

func newMemIndexFake() *memIndex {
	return &memIndex{entries: make(map[domain.EmbeddingID]domain.Embedding)}
}

func (m *memIndex) Add(ctx context.Context, e domain.Embedding) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID()] = e
	return nil
}

func (m *memIndex) Remove(ctx context.Context, configID domain.VectorizationConfigID, id domain.EmbeddingID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *memIndex) Search(ctx context.Context, libraryID domain.LibraryID, configID domain.VectorizationConfigID, query []float32, k int, metric domain.SimilarityMetric) ([]pipeline.SearchHit, error) {
	return nil, nil
}

// nsqMsg wraps an event in its wire envelope the way the publisher does.
func nsqMsg(t *testing.T, ev domain.Event) *nsq.Message {
	t.Helper()
	body, err := events.Marshal(context.Background(), ev)
	require.NoError(t, err)
	return &nsq.Message{Body: body}
}

// seedLibraryWithDocument commits a library holding one fully uploaded
// single-fragment document.
func seedLibraryWithDocument(t *testing.T, starter *uow.MemStarter, content []byte) (domain.LibraryID, domain.DocumentID, domain.FragmentID) {
	t.Helper()
	ctx := context.Background()

	var (
		libID  domain.LibraryID
		docID  domain.DocumentID
		fragID domain.FragmentID
	)
	err := uow.Do(ctx, starter, nil, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := domain.NewLibrary("papers")
		if err != nil {
			return err
		}
		libID = lib.ID
		doc, err := lib.AddDocument("paper.txt")
		if err != nil {
			return err
		}
		docID = doc.ID
		frag, err := lib.AddDocumentFragment(ctx, doc.ID, 0, content, true)
		if err != nil {
			return err
		}
		fragID = frag.ID
		return u.Libraries().Add(ctx, lib)
	})
	require.NoError(t, err)
	return libID, docID, fragID
}

// seedTextConfig commits a text-only config with a split chunker and a
// three-dimensional embedder.
func seedTextConfig(t *testing.T, starter *uow.MemStarter) *domain.VectorizationConfig {
	t.Helper()
	ctx := context.Background()

	chunker, err := domain.NewChunkingStrategy("split", "sentence-split-256", domain.ModalityText, domain.BehaviorSplit,
		domain.WithSplitParams(256, 0))
	require.NoError(t, err)
	embedder, err := domain.NewEmbeddingStrategy("gemini", "gemini-embedding-001", "gemini-embedding-001", domain.ModalityText, 3,
		domain.WithMaxTokens(2048))
	require.NoError(t, err)
	cfg, err := domain.NewVectorizationConfig("default", []*domain.ChunkingStrategy{chunker}, embedder, "", "")
	require.NoError(t, err)

	err = uow.Do(ctx, starter, nil, func(ctx context.Context, u uow.UnitOfWork) error {
		return u.Configs().Add(ctx, cfg)
	})
	require.NoError(t, err)
	return cfg
}

func mustExtractedContent(t *testing.T, docID domain.DocumentID, fragID domain.FragmentID, content []byte, modality domain.Modality, seq int, isLast bool) *domain.ExtractedContent {
	t.Helper()
	ec, err := domain.NewExtractedContent(docID, fragID, content, modality, seq, isLast)
	require.NoError(t, err)
	return ec
}
