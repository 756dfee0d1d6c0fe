package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTime() time.Time {
	return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

func TestLoadFragments_CacheOrFetch(t *testing.T) {
	ctx := context.Background()
	now := testTime()
	f1, err := newFragment("doc-1", 0, []byte("persisted"), false, now)
	require.NoError(t, err)
	f2, err := newFragment("doc-1", 1, []byte("persisted too"), true, now)
	require.NoError(t, err)

	calls := 0
	loader := func(ctx context.Context, documentID DocumentID) ([]*Fragment, error) {
		calls++
		return []*Fragment{f1, f2}, nil
	}
	doc := ReconstituteDocument("doc-1", "lib-1", "paper.pdf", DocumentStatusProcessing, true, now, now, loader)

	// Cache-only view is empty before the first load.
	assert.Empty(t, doc.Fragments())

	frags, err := doc.LoadFragments(ctx)
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, 0, frags[0].SequenceNumber)
	assert.Equal(t, 1, frags[1].SequenceNumber)

	// Loader is consulted exactly once.
	_, err = doc.LoadFragments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	got, err := doc.GetFragment(ctx, f2.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLastFragment)

	_, err = doc.GetFragment(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFragmentValidation(t *testing.T) {
	now := testTime()

	_, err := newFragment("doc-1", -1, []byte("x"), false, now)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = newFragment("doc-1", 0, nil, false, now)
	assert.ErrorIs(t, err, ErrValidation)

	big := make([]byte, MaxFragmentSizeBytes+1)
	_, err = newFragment("doc-1", 0, big, false, now)
	assert.ErrorIs(t, err, ErrValidation)

	f, err := newFragment("doc-1", 0, []byte("ok"), true, now)
	require.NoError(t, err)
	assert.Equal(t, 2, f.SizeBytes())
	assert.Equal(t, HashString("ok"), f.ContentHash)
}

func TestExtractedContent(t *testing.T) {
	_, err := NewExtractedContent("doc-1", "frag-1", nil, ModalityText, 1, false)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewExtractedContent("doc-1", "frag-1", []byte("x"), ModalityMultimodal, 1, false)
	assert.ErrorIs(t, err, ErrValidation)

	// Modality sequencing is 1-indexed, unlike fragment sequencing.
	_, err = NewExtractedContent("doc-1", "frag-1", []byte("x"), ModalityText, 0, false)
	assert.ErrorIs(t, err, ErrValidation)

	ec, err := NewExtractedContent("doc-1", "frag-1", []byte("parsed text"), ModalityText, 1, true)
	require.NoError(t, err)
	assert.Equal(t, ExtractedPending, ec.Status)

	require.NoError(t, ec.MarkChunked())
	assert.Equal(t, ExtractedChunked, ec.Status)

	failed, err := NewExtractedContent("doc-1", "frag-2", []byte("bad"), ModalityText, 2, false)
	require.NoError(t, err)
	require.NoError(t, failed.MarkFailed("parser crashed"))
	assert.ErrorIs(t, failed.MarkChunked(), ErrConflict)
}
