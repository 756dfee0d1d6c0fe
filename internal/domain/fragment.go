package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxFragmentSizeBytes is the hard per-fragment limit (100 MiB). Uploads
// are batched well below this (see features/document); the limit guards
// against a caller attaching oversized fragments directly.
const MaxFragmentSizeBytes = 100 * 1024 * 1024

// Fragment is a bounded slice of raw uploaded bytes, immutable once
// created. Modality is unknown at this stage; parsing assigns it later.
//
// Invariants: sequence numbers are consecutive per document starting at 0,
// and exactly one fragment per document carries IsLastFragment.
type Fragment struct {
	entity

	ID             FragmentID
	DocumentID     DocumentID
	SequenceNumber int
	Content        []byte
	ContentHash    ContentHash
	IsLastFragment bool
}

func newFragment(documentID DocumentID, seq int, content []byte, isFinal bool, now time.Time) (*Fragment, error) {
	if seq < 0 {
		return nil, validationf("fragment sequence_number must be >= 0, got %d", seq)
	}
	if len(content) == 0 {
		return nil, validationf("fragment content cannot be empty")
	}
	if len(content) > MaxFragmentSizeBytes {
		return nil, validationf("fragment size %d exceeds limit of %d bytes", len(content), MaxFragmentSizeBytes)
	}
	return &Fragment{
		entity:         newEntity(now),
		ID:             FragmentID(uuid.NewString()),
		DocumentID:     documentID,
		SequenceNumber: seq,
		Content:        content,
		ContentHash:    HashContent(content),
		IsLastFragment: isFinal,
	}, nil
}

// ReconstituteFragment rebuilds a persisted fragment without validation.
func ReconstituteFragment(id FragmentID, documentID DocumentID, seq int, content []byte, isFinal bool, createdAt time.Time) *Fragment {
	return &Fragment{
		entity:         entity{CreatedAt: createdAt, UpdatedAt: createdAt},
		ID:             id,
		DocumentID:     documentID,
		SequenceNumber: seq,
		Content:        content,
		ContentHash:    HashContent(content),
		IsLastFragment: isFinal,
	}
}

func (f *Fragment) SizeBytes() int { return len(f.Content) }
