package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderIdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1, testImages(1, 2, 3, 4), testQuestion(100, "prompt", 3))),
	)
	store := newFakeStore()
	rec := NewRecorder(catalog, store, zerolog.Nop())

	// The subject changes their mind repeatedly within the delay window.
	for _, pick := range []int{1, 4, 2, 3} {
		_, err := rec.Record(ctx, 7, 100, pick)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, store.count(), "exactly one response per (patient, question)")
	row, ok := store.get(7, 100)
	require.True(t, ok)
	assert.Equal(t, 3, row.SelectedImageID, "last write wins")
	assert.True(t, row.IsCorrect)
}

func TestRecorderDerivesCorrectness(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1, testImages(1, 2), testQuestion(100, "prompt", 2))),
	)
	store := newFakeStore()
	rec := NewRecorder(catalog, store, zerolog.Nop())

	resp, err := rec.Record(ctx, 7, 100, 1)
	require.NoError(t, err)
	assert.False(t, resp.IsCorrect)

	resp, err = rec.Record(ctx, 7, 100, 2)
	require.NoError(t, err)
	assert.True(t, resp.IsCorrect)
}

func TestRecorderUnknownQuestion(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder(newFakeCatalog(), newFakeStore(), zerolog.Nop())

	_, err := rec.Record(ctx, 7, 999, 1)
	require.ErrorIs(t, err, ErrContentNotFound)
}

func TestRecorderUnresolvableAnswerKey(t *testing.T) {
	ctx := context.Background()

	// Answer key pointing outside the screen's own image set.
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1, testImages(1, 2), testQuestion(100, "prompt", 99))),
	)
	store := newFakeStore()
	rec := NewRecorder(catalog, store, zerolog.Nop())

	_, err := rec.Record(ctx, 7, 100, 1)
	require.ErrorIs(t, err, ErrContentNotFound, "unresolvable answer key is a content error, not a scoring zero")
	assert.Equal(t, 0, store.count())

	// Unassigned answer key is the same defect.
	unassigned := model.Question{ID: 101, Text: "prompt"}
	catalog.levels[1].Screens[0].Questions = append(catalog.levels[1].Screens[0].Questions, unassigned)
	_, err = rec.Record(ctx, 7, 101, 1)
	require.ErrorIs(t, err, ErrContentNotFound)
}

func TestRecorderStoreFailure(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1, testImages(1, 2), testQuestion(100, "prompt", 1))),
	)
	store := newFakeStore()
	store.upsertErr = errors.New("connection refused")
	rec := NewRecorder(catalog, store, zerolog.Nop())

	_, err := rec.Record(ctx, 7, 100, 1)
	require.ErrorIs(t, err, ErrPersistence)
}
