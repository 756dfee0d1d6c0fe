// Package uow implements the unit of work: one transaction per use case,
// with aggregate tracking and commit-then-harvest event collection.
package uow

import (
	"context"

	"vecdb/internal/domain"
)

// LibraryRepository is the write-side repository for the Library aggregate
// root. Documents, fragments, chunks and embeddings persist through it;
// they have no repository of their own.
//
// Implementations track every aggregate they hand out or accept ("seen"),
// so the unit of work can flush changes and harvest events at commit.
type LibraryRepository interface {
	Add(ctx context.Context, lib *domain.Library) error
	Get(ctx context.Context, id domain.LibraryID) (*domain.Library, error)
	Seen() []*domain.Library
}

// ConfigRepository is the write-side repository for the
// VectorizationConfig aggregate root, including its strategy entities.
type ConfigRepository interface {
	Add(ctx context.Context, cfg *domain.VectorizationConfig) error
	Get(ctx context.Context, id domain.VectorizationConfigID) (*domain.VectorizationConfig, error)
	Seen() []*domain.VectorizationConfig
}

// UnitOfWork scopes one atomic use case. Commit persists every tracked
// aggregate and returns the harvested events; events are never released
// for a transaction that did not commit.
type UnitOfWork interface {
	Libraries() LibraryRepository
	Configs() ConfigRepository

	Commit(ctx context.Context) ([]domain.Event, error)
	Rollback() error
}

// Starter opens units of work. *PostgresStarter in production, *MemStarter
// in tests.
type Starter interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// Publisher releases committed events to the bus. Satisfied by
// events.Publisher; declared here so the uow package does not depend on
// the transport.
type Publisher interface {
	PublishEvents(ctx context.Context, events []domain.Event) error
}

// Do runs fn inside a fresh unit of work, committing on success and
// rolling back on error. Events harvested by the commit are handed to pub;
// a nil pub discards them. Publish failures are returned but the commit
// stands: the write is durable, delivery is at-least-once via retry
// upstream.
func Do(ctx context.Context, starter Starter, pub Publisher, fn func(ctx context.Context, u UnitOfWork) error) error {
	u, err := starter.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, u); err != nil {
		_ = u.Rollback()
		return err
	}
	events, err := u.Commit(ctx)
	if err != nil {
		_ = u.Rollback()
		return err
	}
	if pub == nil || len(events) == 0 {
		return nil
	}
	return pub.PublishEvents(ctx, events)
}
