package uow

import (
	"context"
	"sync"

	"vecdb/internal/domain"
)

// MemStarter is an in-memory unit of work factory. Aggregates are shared
// by reference across units, so there is no isolation between concurrent
// units; it exists for tests and single-process wiring, not production.
type MemStarter struct {
	mu        sync.Mutex
	libraries map[domain.LibraryID]*domain.Library
	configs   map[domain.VectorizationConfigID]*domain.VectorizationConfig
}

func NewMemStarter() *MemStarter {
	return &MemStarter{
		libraries: make(map[domain.LibraryID]*domain.Library),
		configs:   make(map[domain.VectorizationConfigID]*domain.VectorizationConfig),
	}
}

func (s *MemStarter) Begin(ctx context.Context) (UnitOfWork, error) {
	return &memUoW{
		store:     s,
		libraries: &memLibraryRepo{store: s},
		configs:   &memConfigRepo{store: s},
	}, nil
}

type memUoW struct {
	store     *MemStarter
	libraries *memLibraryRepo
	configs   *memConfigRepo
	committed bool
}

func (u *memUoW) Libraries() LibraryRepository { return u.libraries }
func (u *memUoW) Configs() ConfigRepository    { return u.configs }

func (u *memUoW) Commit(ctx context.Context) ([]domain.Event, error) {
	u.store.mu.Lock()
	for _, lib := range u.libraries.Seen() {
		lib.ApplyConfigChanges()
		u.store.libraries[lib.ID] = lib
	}
	for _, cfg := range u.configs.Seen() {
		u.store.configs[cfg.ID] = cfg
	}
	u.store.mu.Unlock()
	u.committed = true

	var events []domain.Event
	for _, lib := range u.libraries.Seen() {
		events = append(events, lib.CollectAllEvents()...)
	}
	for _, cfg := range u.configs.Seen() {
		events = append(events, cfg.CollectAllEvents()...)
	}
	return events, nil
}

func (u *memUoW) Rollback() error {
	for _, lib := range u.libraries.Seen() {
		lib.CollectAllEvents()
	}
	for _, cfg := range u.configs.Seen() {
		cfg.CollectAllEvents()
	}
	return nil
}

type memLibraryRepo struct {
	store *MemStarter
	seen  []*domain.Library
}

func (r *memLibraryRepo) Seen() []*domain.Library { return r.seen }

func (r *memLibraryRepo) Add(ctx context.Context, lib *domain.Library) error {
	r.seen = append(r.seen, lib)
	return nil
}

func (r *memLibraryRepo) Get(ctx context.Context, id domain.LibraryID) (*domain.Library, error) {
	for _, lib := range r.seen {
		if lib.ID == id {
			return lib, nil
		}
	}
	r.store.mu.Lock()
	lib, ok := r.store.libraries[id]
	r.store.mu.Unlock()
	if !ok {
		return nil, &domain.NotFoundError{Kind: "library", ID: string(id)}
	}
	r.seen = append(r.seen, lib)
	return lib, nil
}

type memConfigRepo struct {
	store *MemStarter
	seen  []*domain.VectorizationConfig
}

func (r *memConfigRepo) Seen() []*domain.VectorizationConfig { return r.seen }

func (r *memConfigRepo) Add(ctx context.Context, cfg *domain.VectorizationConfig) error {
	r.seen = append(r.seen, cfg)
	return nil
}

func (r *memConfigRepo) Get(ctx context.Context, id domain.VectorizationConfigID) (*domain.VectorizationConfig, error) {
	for _, cfg := range r.seen {
		if cfg.ID == id {
			return cfg, nil
		}
	}
	r.store.mu.Lock()
	cfg, ok := r.store.configs[id]
	r.store.mu.Unlock()
	if !ok {
		return nil, &domain.NotFoundError{Kind: "vectorization config", ID: string(id)}
	}
	r.seen = append(r.seen, cfg)
	return cfg, nil
}
