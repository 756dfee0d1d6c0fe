package domain

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// FragmentLoader fetches the persisted fragments of a document, ordered by
// sequence number. Used for cache-or-fetch: an in-memory cache of fragments
// added this transaction plus a fallback to storage. A nil loader means the
// document is cache-only (freshly created).
type FragmentLoader func(ctx context.Context, documentID DocumentID) ([]*Fragment, error)

// Document is a child entity of the Library aggregate. All mutation goes
// through Library methods; Document exposes no public setters.
type Document struct {
	entity

	ID             DocumentID
	LibraryID      LibraryID
	Name           string
	Status         DocumentStatus
	UploadComplete bool

	fragments       map[FragmentID]*Fragment
	fragmentsLoaded bool
	fragmentLoader  FragmentLoader

	extracted map[ExtractedContentID]*ExtractedContent
}

func newDocument(libraryID LibraryID, name string, now time.Time) (*Document, error) {
	if name == "" {
		return nil, validationf("document name cannot be empty")
	}
	return &Document{
		entity:    newEntity(now),
		ID:        DocumentID(uuid.NewString()),
		LibraryID: libraryID,
		Name:      name,
		Status:    DocumentStatusPending,
		fragments: make(map[FragmentID]*Fragment),
		extracted: make(map[ExtractedContentID]*ExtractedContent),
	}, nil
}

// ReconstituteDocument rebuilds a persisted document without recording a
// creation event. Repositories use it when loading aggregates.
func ReconstituteDocument(id DocumentID, libraryID LibraryID, name string, status DocumentStatus, uploadComplete bool, createdAt, updatedAt time.Time, loader FragmentLoader) *Document {
	return &Document{
		entity:         entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:             id,
		LibraryID:      libraryID,
		Name:           name,
		Status:         status,
		UploadComplete: uploadComplete,
		fragments:      make(map[FragmentID]*Fragment),
		fragmentLoader: loader,
		extracted:      make(map[ExtractedContentID]*ExtractedContent),
	}
}

// Fragments returns the cached fragments ordered by sequence number. It
// never hits storage; use LoadFragments for cache-or-fetch.
func (d *Document) Fragments() []*Fragment {
	out := make([]*Fragment, 0, len(d.fragments))
	for _, f := range d.fragments {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out
}

// LoadFragments returns all fragments, fetching the persisted ones on
// first call. "Not yet loaded" is distinct from "does not exist": a
// document with a loader always consults storage once.
func (d *Document) LoadFragments(ctx context.Context) ([]*Fragment, error) {
	if !d.fragmentsLoaded && d.fragmentLoader != nil {
		loaded, err := d.fragmentLoader(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		for _, f := range loaded {
			if _, ok := d.fragments[f.ID]; !ok {
				d.fragments[f.ID] = f
			}
		}
		d.fragmentsLoaded = true
	}
	return d.Fragments(), nil
}

// GetFragment returns one fragment, loading from storage on cache miss.
func (d *Document) GetFragment(ctx context.Context, id FragmentID) (*Fragment, error) {
	if f, ok := d.fragments[id]; ok {
		return f, nil
	}
	if _, err := d.LoadFragments(ctx); err != nil {
		return nil, err
	}
	if f, ok := d.fragments[id]; ok {
		return f, nil
	}
	return nil, &NotFoundError{Kind: "fragment", ID: string(id)}
}

// ExtractedContents returns extracted contents ordered by modality then
// modality sequence number.
func (d *Document) ExtractedContents() []*ExtractedContent {
	out := make([]*ExtractedContent, 0, len(d.extracted))
	for _, ec := range d.extracted {
		out = append(out, ec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Modality != out[j].Modality {
			return out[i].Modality < out[j].Modality
		}
		return out[i].ModalitySequenceNumber < out[j].ModalitySequenceNumber
	})
	return out
}

// nextSequenceNumber is the sequence the next fragment must carry to keep
// per-document numbering consecutive.
func (d *Document) nextSequenceNumber() int {
	return len(d.fragments)
}

func (d *Document) hasFinalFragment() bool {
	for _, f := range d.fragments {
		if f.IsLastFragment {
			return true
		}
	}
	return false
}

// markParsed flips the ingestion state machine once the final fragment has
// been parsed: PROCESSING -> COMPLETED or FAILED. This is independent of
// per-config vectorization status.
func (d *Document) markParsed(failed bool, now time.Time) error {
	if d.Status != DocumentStatusProcessing {
		return conflictf("document %s is %s, expected PROCESSING", d.ID, d.Status)
	}
	if failed {
		d.Status = DocumentStatusFailed
	} else {
		d.Status = DocumentStatusCompleted
	}
	d.touch(now)
	d.record(&DocumentParsed{EventMeta: newMeta(EventDocumentParsed), DocumentID: d.ID, LibraryID: d.LibraryID, Failed: failed})
	return nil
}
