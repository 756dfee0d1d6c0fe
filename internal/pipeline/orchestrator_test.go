package pipeline_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecdb/internal/domain"
	"vecdb/internal/pipeline"
	"vecdb/internal/uow"
)

func associateConfig(t *testing.T, starter *uow.MemStarter, libID domain.LibraryID, cfgID domain.VectorizationConfigID) {
	t.Helper()
	err := uow.Do(context.Background(), starter, nil, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := u.Libraries().Get(ctx, libID)
		if err != nil {
			return err
		}
		lib.AddConfig(cfgID)
		return nil
	})
	require.NoError(t, err)
}

func TestOrchestrator_DocumentParsedSchedulesAllConfigs(t *testing.T) {
	starter := uow.NewMemStarter()
	pub := &capturingPublisher{}
	libID, docID, _ := seedLibraryWithDocument(t, starter, []byte("hello"))
	cfgA := seedTextConfig(t, starter)
	cfgB := seedTextConfig(t, starter)
	associateConfig(t, starter, libID, cfgA.ID)
	associateConfig(t, starter, libID, cfgB.ID)

	statuses := newMemStatusStore()
	orch := pipeline.NewOrchestrator(starter, &fakeDocs{}, statuses, pub, slog.Default())

	ev := &domain.DocumentParsed{
		EventMeta:  domain.NewEventMeta(domain.EventDocumentParsed),
		DocumentID: docID,
		LibraryID:  libID,
	}
	require.NoError(t, orch.HandleMessage(nsqMsg(t, ev)))

	names := pub.names()
	require.Len(t, names, 2)
	assert.Equal(t, domain.EventVectorizationPending, names[0])
	assert.Equal(t, domain.EventVectorizationPending, names[1])

	for _, cfgID := range []domain.VectorizationConfigID{cfgA.ID, cfgB.ID} {
		st, err := statuses.Get(context.Background(), docID, cfgID)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StatePending, st.State)
	}
}

func TestOrchestrator_FailedParseSchedulesNothing(t *testing.T) {
	starter := uow.NewMemStarter()
	pub := &capturingPublisher{}
	libID, docID, _ := seedLibraryWithDocument(t, starter, []byte("hello"))
	cfg := seedTextConfig(t, starter)
	associateConfig(t, starter, libID, cfg.ID)

	orch := pipeline.NewOrchestrator(starter, &fakeDocs{}, newMemStatusStore(), pub, slog.Default())

	ev := &domain.DocumentParsed{
		EventMeta:  domain.NewEventMeta(domain.EventDocumentParsed),
		DocumentID: docID,
		LibraryID:  libID,
		Failed:     true,
	}
	require.NoError(t, orch.HandleMessage(nsqMsg(t, ev)))
	assert.Empty(t, pub.events)
}

func TestOrchestrator_ConfigAddedBackfillsDocuments(t *testing.T) {
	starter := uow.NewMemStarter()
	pub := &capturingPublisher{}
	libID, _, _ := seedLibraryWithDocument(t, starter, []byte("hello"))
	cfg := seedTextConfig(t, starter)

	docs := &fakeDocs{docIDs: []domain.DocumentID{"doc-1", "doc-2"}}
	statuses := newMemStatusStore()
	orch := pipeline.NewOrchestrator(starter, docs, statuses, pub, slog.Default())

	ev := &domain.LibraryConfigAdded{
		EventMeta: domain.NewEventMeta(domain.EventLibraryConfigAdded),
		LibraryID: libID,
		ConfigID:  cfg.ID,
	}
	require.NoError(t, orch.HandleMessage(nsqMsg(t, ev)))

	require.Len(t, pub.events, 2)
	for _, docID := range docs.docIDs {
		st, err := statuses.Get(context.Background(), docID, cfg.ID)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StatePending, st.State)
		assert.Equal(t, libID, st.LibraryID)
	}
}
