package pipeline

import (
	"context"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"vecdb/internal/domain"
	"vecdb/internal/events"
	"vecdb/internal/middleware"
	"vecdb/internal/uow"
)

// Orchestrator fans work out across the (document x config) matrix. Two
// triggers:
//
//   - document.parsed: schedule the document against every config
//     associated with its library
//   - library.config.added: backfill the new config against every
//     already-ingested document of the library
//
// Scheduling a pair means upserting its ledger row to pending and
// publishing vectorization.pending. Both are idempotent, so duplicate
// triggers collapse into the same pending row and a redundant message.
type Orchestrator struct {
	starter  uow.Starter
	docs     DocumentLister
	statuses StatusStore
	pub      events.Publisher
	logger   *slog.Logger
}

func NewOrchestrator(starter uow.Starter, docs DocumentLister, statuses StatusStore, pub events.Publisher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{starter: starter, docs: docs, statuses: statuses, pub: pub, logger: logger}
}

func (o *Orchestrator) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}
	env, err := events.Unmarshal(m.Body, nil)
	if err != nil {
		o.logger.Error("poison pill: invalid orchestrator event", "error", err)
		return nil
	}

	ctx := context.Background()
	if env.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, env.CorrelationID)
	}

	switch env.EventName {
	case domain.EventDocumentParsed:
		var payload domain.DocumentParsed
		if _, err := events.Unmarshal(m.Body, &payload); err != nil {
			return nil
		}
		if payload.Failed {
			return nil
		}
		return o.scheduleDocument(ctx, payload.LibraryID, payload.DocumentID)
	case domain.EventLibraryConfigAdded:
		var payload domain.LibraryConfigAdded
		if _, err := events.Unmarshal(m.Body, &payload); err != nil {
			return nil
		}
		return o.backfillConfig(ctx, payload.LibraryID, payload.ConfigID)
	default:
		return nil
	}
}

// scheduleDocument schedules one parsed document against all configs of
// its library.
func (o *Orchestrator) scheduleDocument(ctx context.Context, libraryID domain.LibraryID, documentID domain.DocumentID) error {
	configIDs, err := o.libraryConfigIDs(ctx, libraryID)
	if err != nil {
		return err
	}
	for _, cfgID := range configIDs {
		if err := o.schedule(ctx, libraryID, documentID, cfgID); err != nil {
			return err
		}
	}
	return nil
}

// backfillConfig schedules a newly associated config against all
// documents the library has already ingested.
func (o *Orchestrator) backfillConfig(ctx context.Context, libraryID domain.LibraryID, configID domain.VectorizationConfigID) error {
	docIDs, err := o.docs.ListCompletedDocumentIDs(ctx, libraryID)
	if err != nil {
		return err
	}
	for _, docID := range docIDs {
		if err := o.schedule(ctx, libraryID, docID, configID); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) schedule(ctx context.Context, libraryID domain.LibraryID, documentID domain.DocumentID, configID domain.VectorizationConfigID) error {
	err := o.statuses.Upsert(ctx, VectorizationStatus{
		DocumentID: documentID,
		ConfigID:   configID,
		LibraryID:  libraryID,
		State:      StatePending,
	})
	if err != nil {
		return err
	}
	ev := &domain.DocumentVectorizationPending{
		EventMeta:  domain.NewEventMeta(domain.EventVectorizationPending),
		DocumentID: documentID,
		LibraryID:  libraryID,
		ConfigID:   configID,
	}
	o.logger.InfoContext(ctx, "vectorization scheduled", "document_id", documentID, "config_id", configID)
	return o.pub.PublishEvents(ctx, []domain.Event{ev})
}

// libraryConfigIDs reads the library's associations in a throwaway
// read-only unit of work.
func (o *Orchestrator) libraryConfigIDs(ctx context.Context, libraryID domain.LibraryID) ([]domain.VectorizationConfigID, error) {
	u, err := o.starter.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer u.Rollback() //nolint:errcheck

	lib, err := u.Libraries().Get(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	return lib.ConfigIDs(), nil
}
