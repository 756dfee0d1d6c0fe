package uow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vecdb/internal/domain"
	"vecdb/internal/uow"
)

type capturingPublisher struct {
	events []domain.Event
	err    error
}

func (p *capturingPublisher) PublishEvents(ctx context.Context, events []domain.Event) error {
	p.events = append(p.events, events...)
	return p.err
}

func TestDo_CommitThenHarvest(t *testing.T) {
	ctx := context.Background()
	starter := uow.NewMemStarter()
	pub := &capturingPublisher{}

	var libID domain.LibraryID
	err := uow.Do(ctx, starter, pub, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := domain.NewLibrary("papers")
		if err != nil {
			return err
		}
		libID = lib.ID
		if _, err := lib.AddDocument("paper.pdf"); err != nil {
			return err
		}
		return u.Libraries().Add(ctx, lib)
	})
	require.NoError(t, err)

	// Events surface only through the publisher, after commit.
	require.Len(t, pub.events, 2)
	assert.Equal(t, domain.EventLibraryCreated, pub.events[0].EventName())
	assert.Equal(t, domain.EventDocumentCreated, pub.events[1].EventName())

	// The committed aggregate is visible to the next unit of work.
	u, err := starter.Begin(ctx)
	require.NoError(t, err)
	lib, err := u.Libraries().Get(ctx, libID)
	require.NoError(t, err)
	assert.Equal(t, "papers", lib.Name)
	require.NoError(t, u.Rollback())
}

func TestDo_RollbackDiscardsEvents(t *testing.T) {
	ctx := context.Background()
	starter := uow.NewMemStarter()
	pub := &capturingPublisher{}

	boom := errors.New("boom")
	err := uow.Do(ctx, starter, pub, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := domain.NewLibrary("papers")
		if err != nil {
			return err
		}
		if err := u.Libraries().Add(ctx, lib); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, pub.events, "rolled-back transactions must not publish")
}

func TestDo_PublishErrorSurfacesAfterCommit(t *testing.T) {
	ctx := context.Background()
	starter := uow.NewMemStarter()
	pub := &capturingPublisher{err: errors.New("bus down")}

	var libID domain.LibraryID
	err := uow.Do(ctx, starter, pub, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, lerr := domain.NewLibrary("papers")
		if lerr != nil {
			return lerr
		}
		libID = lib.ID
		return u.Libraries().Add(ctx, lib)
	})
	assert.Error(t, err)

	// The write is durable even though publication failed.
	u, err := starter.Begin(ctx)
	require.NoError(t, err)
	_, err = u.Libraries().Get(ctx, libID)
	assert.NoError(t, err)
	require.NoError(t, u.Rollback())
}

func TestMemUoW_GetTracksAggregate(t *testing.T) {
	ctx := context.Background()
	starter := uow.NewMemStarter()

	cfgID := seedConfig(t, starter)

	u, err := starter.Begin(ctx)
	require.NoError(t, err)
	cfg, err := u.Configs().Get(ctx, cfgID)
	require.NoError(t, err)
	assert.Equal(t, cfgID, cfg.ID)
	assert.Len(t, u.Configs().Seen(), 1)

	_, err = u.Configs().Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, u.Rollback())
}

func TestMemUoW_CommitAppliesConfigAssociations(t *testing.T) {
	ctx := context.Background()
	starter := uow.NewMemStarter()
	cfgID := seedConfig(t, starter)

	var libID domain.LibraryID
	err := uow.Do(ctx, starter, nil, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := domain.NewLibrary("papers")
		if err != nil {
			return err
		}
		libID = lib.ID
		lib.AddConfig(cfgID)
		return u.Libraries().Add(ctx, lib)
	})
	require.NoError(t, err)

	// A later unit sees the association as committed, not pending.
	u, err := starter.Begin(ctx)
	require.NoError(t, err)
	lib, err := u.Libraries().Get(ctx, libID)
	require.NoError(t, err)
	assert.Equal(t, []domain.VectorizationConfigID{cfgID}, lib.ConfigIDs())
	assert.Empty(t, lib.PendingConfigAdds())
	require.NoError(t, u.Rollback())

	err = uow.Do(ctx, starter, nil, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := u.Libraries().Get(ctx, libID)
		if err != nil {
			return err
		}
		lib.RemoveConfig(cfgID)
		return nil
	})
	require.NoError(t, err)

	u, err = starter.Begin(ctx)
	require.NoError(t, err)
	lib, err = u.Libraries().Get(ctx, libID)
	require.NoError(t, err)
	assert.Empty(t, lib.ConfigIDs())
	require.NoError(t, u.Rollback())
}

func seedConfig(t *testing.T, starter *uow.MemStarter) domain.VectorizationConfigID {
	t.Helper()
	ctx := context.Background()

	chunker, err := domain.NewChunkingStrategy("split", "sentence-split-256", domain.ModalityText, domain.BehaviorSplit,
		domain.WithSplitParams(256, 25))
	require.NoError(t, err)
	embedder, err := domain.NewEmbeddingStrategy("gemini", "gemini-embedding-001", "gemini-embedding-001", domain.ModalityText, 768,
		domain.WithMaxTokens(2048))
	require.NoError(t, err)
	cfg, err := domain.NewVectorizationConfig("default", []*domain.ChunkingStrategy{chunker}, embedder, "", "")
	require.NoError(t, err)

	err = uow.Do(ctx, starter, nil, func(ctx context.Context, u uow.UnitOfWork) error {
		return u.Configs().Add(ctx, cfg)
	})
	require.NoError(t, err)
	return cfg.ID
}
