package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExtractedContent is the parsed output of one fragment: raw bytes with a
// detected modality, sequenced per (document, modality).
//
// Invariants: modality sequence numbers are consecutive starting at 1, and
// exactly one ExtractedContent per (document, modality) carries
// IsLastOfModality. MULTIMODAL never appears here.
type ExtractedContent struct {
	entity

	ID                     ExtractedContentID
	DocumentID             DocumentID
	FragmentID             FragmentID
	Content                []byte
	Modality               Modality
	ModalitySequenceNumber int
	IsLastOfModality       bool
	Status                 ExtractedContentStatus
	FailureReason          string
}

func NewExtractedContent(documentID DocumentID, fragmentID FragmentID, content []byte, modality Modality, seq int, isLast bool) (*ExtractedContent, error) {
	if len(content) == 0 {
		return nil, validationf("extracted content cannot be empty")
	}
	if modality == ModalityMultimodal {
		return nil, validationf("MULTIMODAL is reserved for embedding strategies, not extracted content")
	}
	if seq < 1 {
		return nil, validationf("modality_sequence_number must be >= 1, got %d", seq)
	}
	return &ExtractedContent{
		entity:                 newEntity(time.Now().UTC()),
		ID:                     ExtractedContentID(uuid.NewString()),
		DocumentID:             documentID,
		FragmentID:             fragmentID,
		Content:                content,
		Modality:               modality,
		ModalitySequenceNumber: seq,
		IsLastOfModality:       isLast,
		Status:                 ExtractedPending,
	}, nil
}

// NewFailedExtractedContent records a fragment that no parser could
// classify. The row keeps the fragment visible to redelivery checks and
// fails the document once its final fragment is parsed, even when the
// failure happened while the upload was still streaming.
func NewFailedExtractedContent(documentID DocumentID, fragmentID FragmentID, reason string) (*ExtractedContent, error) {
	if reason == "" {
		return nil, validationf("failure reason cannot be empty")
	}
	return &ExtractedContent{
		entity:        newEntity(time.Now().UTC()),
		ID:            ExtractedContentID(uuid.NewString()),
		DocumentID:    documentID,
		FragmentID:    fragmentID,
		Content:       []byte{},
		Modality:      ModalityUnknown,
		Status:        ExtractedFailed,
		FailureReason: reason,
	}, nil
}

// ReconstituteExtractedContent rebuilds a persisted extracted content
// without validation.
func ReconstituteExtractedContent(id ExtractedContentID, documentID DocumentID, fragmentID FragmentID, content []byte, modality Modality, seq int, isLast bool, status ExtractedContentStatus, failureReason string) *ExtractedContent {
	return &ExtractedContent{
		ID:                     id,
		DocumentID:             documentID,
		FragmentID:             fragmentID,
		Content:                content,
		Modality:               modality,
		ModalitySequenceNumber: seq,
		IsLastOfModality:       isLast,
		Status:                 status,
		FailureReason:          failureReason,
	}
}

func (ec *ExtractedContent) MarkChunked() error {
	if ec.Status == ExtractedFailed {
		return conflictf("extracted content %s is FAILED, cannot mark CHUNKED", ec.ID)
	}
	ec.Status = ExtractedChunked
	ec.touch(time.Now().UTC())
	return nil
}

func (ec *ExtractedContent) MarkFailed(reason string) error {
	if reason == "" {
		return validationf("failure reason cannot be empty")
	}
	ec.Status = ExtractedFailed
	ec.FailureReason = reason
	ec.touch(time.Now().UTC())
	return nil
}
