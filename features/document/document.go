// Package document exposes document CRUD and the streaming upload
// endpoint that feeds the ingestion pipeline.
package document

import (
	"context"
	"io"

	"vecdb/internal/domain"
	"vecdb/internal/events"
	"vecdb/internal/metrics"
	"vecdb/internal/uow"
)

// FragmentSize is how much of an upload body goes into one fragment.
// Fragments commit individually, so parsing can start on the first
// fragment while the rest of the body is still streaming in.
const FragmentSize = 1 << 20

// Summary is the read model for listing a library's documents.
type Summary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	UploadComplete bool   `json:"upload_complete"`
	FragmentCount  int    `json:"fragment_count"`
	TotalBytes     int64  `json:"total_bytes"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type Reader interface {
	List(ctx context.Context, libraryID domain.LibraryID, limit, offset int) ([]Summary, error)
}

type Service struct {
	starter uow.Starter
	pub     events.Publisher
	reader  Reader
}

func NewService(starter uow.Starter, pub events.Publisher, reader Reader) *Service {
	return &Service{starter: starter, pub: pub, reader: reader}
}

func (s *Service) Create(ctx context.Context, libraryID domain.LibraryID, name string) (*domain.Document, error) {
	var created *domain.Document
	err := uow.Do(ctx, s.starter, s.pub, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := u.Libraries().Get(ctx, libraryID)
		if err != nil {
			return err
		}
		doc, err := lib.AddDocument(name)
		if err != nil {
			return err
		}
		created = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UploadResult reports what a completed streaming upload produced.
type UploadResult struct {
	DocumentID string `json:"document_id"`
	Fragments  int    `json:"fragments"`
	Bytes      int64  `json:"bytes"`
}

// Upload streams the request body into consecutive fragments. Each
// fragment commits in its own transaction, publishing its event before
// the next fragment is read; a one-read lookahead decides which fragment
// is final without buffering the whole body.
func (s *Service) Upload(ctx context.Context, libraryID domain.LibraryID, documentID domain.DocumentID, body io.Reader) (*UploadResult, error) {
	cur, err := readFragment(body)
	if err != nil {
		return nil, err
	}

	result := &UploadResult{DocumentID: string(documentID)}
	// A zero-byte upload emits no fragments at all; the document stays
	// PENDING with nothing to parse.
	if len(cur) == 0 {
		return result, nil
	}
	for seq := 0; ; seq++ {
		next, err := readFragment(body)
		if err != nil {
			return nil, err
		}
		isFinal := len(next) == 0

		content := cur
		uerr := uow.Do(ctx, s.starter, s.pub, func(ctx context.Context, u uow.UnitOfWork) error {
			lib, lerr := u.Libraries().Get(ctx, libraryID)
			if lerr != nil {
				return lerr
			}
			_, ferr := lib.AddDocumentFragment(ctx, documentID, seq, content, isFinal)
			return ferr
		})
		if uerr != nil {
			return nil, uerr
		}
		metrics.FragmentsIngested.Inc()
		metrics.FragmentBytesIngested.Add(float64(len(content)))
		result.Fragments++
		result.Bytes += int64(len(content))
		if isFinal {
			return result, nil
		}
		cur = next
	}
}

// readFragment fills up to FragmentSize bytes. A zero-length result means
// the body is exhausted.
func readFragment(r io.Reader) ([]byte, error) {
	buf := make([]byte, FragmentSize)
	n, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return buf[:n], nil
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Detail is the single-document read model.
type Detail struct {
	ID             string `json:"id"`
	LibraryID      string `json:"library_id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	UploadComplete bool   `json:"upload_complete"`
	FragmentCount  int    `json:"fragment_count"`
	TotalBytes     int64  `json:"total_bytes"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func (s *Service) Get(ctx context.Context, libraryID domain.LibraryID, documentID domain.DocumentID) (*Detail, error) {
	u, err := s.starter.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer u.Rollback() //nolint:errcheck

	lib, err := u.Libraries().Get(ctx, libraryID)
	if err != nil {
		return nil, err
	}
	doc, err := lib.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	frags, err := doc.LoadFragments(ctx)
	if err != nil {
		return nil, err
	}
	var totalBytes int64
	for _, f := range frags {
		totalBytes += int64(len(f.Content))
	}
	return &Detail{
		ID:             string(doc.ID),
		LibraryID:      string(doc.LibraryID),
		Name:           doc.Name,
		Status:         string(doc.Status),
		UploadComplete: doc.UploadComplete,
		FragmentCount:  len(frags),
		TotalBytes:     totalBytes,
		CreatedAt:      doc.CreatedAt.Format(timeFormat),
		UpdatedAt:      doc.UpdatedAt.Format(timeFormat),
	}, nil
}

func (s *Service) List(ctx context.Context, libraryID domain.LibraryID, limit, offset int) ([]Summary, error) {
	return s.reader.List(ctx, libraryID, limit, offset)
}

func (s *Service) Rename(ctx context.Context, libraryID domain.LibraryID, documentID domain.DocumentID, name string) error {
	return uow.Do(ctx, s.starter, s.pub, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := u.Libraries().Get(ctx, libraryID)
		if err != nil {
			return err
		}
		_, err = lib.UpdateDocument(ctx, documentID, name)
		return err
	})
}

func (s *Service) Delete(ctx context.Context, libraryID domain.LibraryID, documentID domain.DocumentID) error {
	return uow.Do(ctx, s.starter, s.pub, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := u.Libraries().Get(ctx, libraryID)
		if err != nil {
			return err
		}
		return lib.RemoveDocument(ctx, documentID)
	})
}
