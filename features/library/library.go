// Package library exposes the library aggregate over HTTP: CRUD plus
// config association management.
package library

import (
	"context"

	"vecdb/internal/domain"
	"vecdb/internal/events"
	"vecdb/internal/uow"
)

// Summary is the read model for listing libraries.
type Summary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	Version       int64  `json:"version"`
	DocumentCount int    `json:"document_count"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// Reader serves list queries off the write model's tables.
type Reader interface {
	List(ctx context.Context, limit, offset int) ([]Summary, error)
}

type Service struct {
	starter uow.Starter
	pub     events.Publisher
	reader  Reader
}

func NewService(starter uow.Starter, pub events.Publisher, reader Reader) *Service {
	return &Service{starter: starter, pub: pub, reader: reader}
}

func (s *Service) Create(ctx context.Context, name string) (*domain.Library, error) {
	var created *domain.Library
	err := uow.Do(ctx, s.starter, s.pub, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := domain.NewLibrary(name)
		if err != nil {
			return err
		}
		created = lib
		return u.Libraries().Add(ctx, lib)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Detail is the single-library read model, including associations.
type Detail struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Status    string   `json:"status"`
	Version   int64    `json:"version"`
	ConfigIDs []string `json:"config_ids"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

func (s *Service) Get(ctx context.Context, id domain.LibraryID) (*Detail, error) {
	u, err := s.starter.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer u.Rollback() //nolint:errcheck

	lib, err := u.Libraries().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	configIDs := make([]string, 0, len(lib.ConfigIDs()))
	for _, cfgID := range lib.ConfigIDs() {
		configIDs = append(configIDs, string(cfgID))
	}
	return &Detail{
		ID:        string(lib.ID),
		Name:      lib.Name,
		Status:    string(lib.Status),
		Version:   lib.Version,
		ConfigIDs: configIDs,
		CreatedAt: lib.CreatedAt.Format(timeFormat),
		UpdatedAt: lib.UpdatedAt.Format(timeFormat),
	}, nil
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func (s *Service) List(ctx context.Context, limit, offset int) ([]Summary, error) {
	return s.reader.List(ctx, limit, offset)
}

func (s *Service) Rename(ctx context.Context, id domain.LibraryID, name string) error {
	return uow.Do(ctx, s.starter, s.pub, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := u.Libraries().Get(ctx, id)
		if err != nil {
			return err
		}
		return lib.Rename(name)
	})
}

func (s *Service) Delete(ctx context.Context, id domain.LibraryID) error {
	return uow.Do(ctx, s.starter, s.pub, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := u.Libraries().Get(ctx, id)
		if err != nil {
			return err
		}
		lib.SoftDelete()
		return nil
	})
}

func (s *Service) Archive(ctx context.Context, id domain.LibraryID) error {
	return uow.Do(ctx, s.starter, s.pub, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := u.Libraries().Get(ctx, id)
		if err != nil {
			return err
		}
		lib.Archive()
		return nil
	})
}

// AttachConfig associates a config with the library. The config must
// exist; the association is idempotent.
func (s *Service) AttachConfig(ctx context.Context, id domain.LibraryID, configID domain.VectorizationConfigID) error {
	return uow.Do(ctx, s.starter, s.pub, func(ctx context.Context, u uow.UnitOfWork) error {
		if _, err := u.Configs().Get(ctx, configID); err != nil {
			return err
		}
		lib, err := u.Libraries().Get(ctx, id)
		if err != nil {
			return err
		}
		lib.AddConfig(configID)
		return nil
	})
}

func (s *Service) DetachConfig(ctx context.Context, id domain.LibraryID, configID domain.VectorizationConfigID) error {
	return uow.Do(ctx, s.starter, s.pub, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := u.Libraries().Get(ctx, id)
		if err != nil {
			return err
		}
		lib.RemoveConfig(configID)
		return nil
	})
}
