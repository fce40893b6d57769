package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdvanceDelay = 30 * time.Millisecond

func newTestTraversal(t *testing.T, catalog Catalog, store ResponseStore, narrator Narrator) *Traversal {
	t.Helper()
	log := zerolog.Nop()
	rec := NewRecorder(catalog, store, log)
	return NewTraversal(catalog, rec, narrator, log, 1, testAdvanceDelay)
}

func TestTraversalSingleScreenCorrectPick(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1,
			testImages(1, 2),
			testQuestion(100, "Point to the apple", 1),
		)),
	)
	store := newFakeStore()
	narrator := &fakeNarrator{}
	tr := newTestTraversal(t, catalog, store, narrator)

	require.NoError(t, tr.Start(ctx))
	require.False(t, tr.Ended())

	prompt, ok := tr.CurrentPrompt()
	require.True(t, ok)
	assert.Equal(t, "Point to the apple", prompt)
	assert.Len(t, tr.CurrentImages(), 2)

	resp, err := tr.Select(ctx, 1)
	require.NoError(t, err)
	assert.True(t, resp.IsCorrect)

	// Last question of the last screen of the last level: the delayed
	// advance must terminate the traversal.
	require.Eventually(t, tr.Ended, time.Second, 5*time.Millisecond)

	row, ok := store.get(1, 100)
	require.True(t, ok)
	assert.True(t, row.IsCorrect)
	assert.Equal(t, 1, store.count())
}

func TestTraversalSkipsEmptyLevel(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		// Level 1 has a screen but no questions anywhere.
		testLevel(1, testScreen(10, 1, testImages(1, 2))),
		testLevel(2, testScreen(20, 1, testImages(3, 4), testQuestion(200, "Point to the dog", 3))),
	)
	tr := newTestTraversal(t, catalog, newFakeStore(), &fakeNarrator{})

	require.NoError(t, tr.Start(ctx))
	require.False(t, tr.Ended())

	state := tr.Cursor()
	assert.Equal(t, 2, state.Level)
	assert.Equal(t, 200, state.QuestionID)
}

func TestTraversalSkipsInertScreens(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1,
			testScreen(10, 1, testImages(1, 2)), // inert
			testScreen(11, 2, testImages(3, 4), testQuestion(100, "first", 3)),
			testScreen(12, 3, testImages(5, 6)), // inert
			testScreen(13, 4, testImages(7, 8), testQuestion(101, "second", 7)),
		),
	)
	tr := newTestTraversal(t, catalog, newFakeStore(), &fakeNarrator{})

	require.NoError(t, tr.Start(ctx))
	state := tr.Cursor()
	assert.Equal(t, 2, state.ScreenNumber, "inert first screen must be skipped on entry")

	_, err := tr.Select(ctx, 3)
	require.NoError(t, err)
	require.NoError(t, tr.Next(ctx))

	state = tr.Cursor()
	assert.Equal(t, 4, state.ScreenNumber, "inert screen between questions must be skipped")
	assert.Equal(t, 101, state.QuestionID)
}

func TestTraversalWrongThenCorrectedSelection(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1,
			testImages(1, 2, 3, 4),
			testQuestion(100, "first", 2),
			testQuestion(101, "second", 4),
		)),
	)
	store := newFakeStore()
	tr := newTestTraversal(t, catalog, store, &fakeNarrator{})
	require.NoError(t, tr.Start(ctx))

	resp, err := tr.Select(ctx, 1) // wrong
	require.NoError(t, err)
	assert.False(t, resp.IsCorrect)

	resp, err = tr.Select(ctx, 2) // corrected before the timer elapses
	require.NoError(t, err)
	assert.True(t, resp.IsCorrect)

	// Exactly one advance: the cursor lands on the second question and
	// stays there.
	require.Eventually(t, func() bool {
		return tr.Cursor().QuestionID == 101
	}, time.Second, 5*time.Millisecond)
	time.Sleep(3 * testAdvanceDelay)
	assert.Equal(t, 101, tr.Cursor().QuestionID)
	assert.False(t, tr.Ended())

	// The store holds one row reflecting only the corrected selection.
	assert.Equal(t, 1, store.count())
	row, ok := store.get(1, 100)
	require.True(t, ok)
	assert.Equal(t, 2, row.SelectedImageID)
	assert.True(t, row.IsCorrect)
}

func TestTraversalManualNextRequiresAnswer(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1, testImages(1, 2), testQuestion(100, "first", 1))),
	)
	tr := newTestTraversal(t, catalog, newFakeStore(), &fakeNarrator{})
	require.NoError(t, tr.Start(ctx))

	err := tr.Next(ctx)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 100, tr.Cursor().QuestionID)
}

func TestTraversalManualNavigationCancelsAutoAdvance(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1,
			testImages(1, 2),
			testQuestion(100, "first", 1),
			testQuestion(101, "second", 2),
			testQuestion(102, "third", 1),
		)),
	)
	tr := newTestTraversal(t, catalog, newFakeStore(), &fakeNarrator{})
	require.NoError(t, tr.Start(ctx))

	_, err := tr.Select(ctx, 1)
	require.NoError(t, err)
	// Manual advance before the timer fires; the scheduled advance must be
	// cancelled rather than firing against the new cursor.
	require.NoError(t, tr.Next(ctx))
	assert.Equal(t, 101, tr.Cursor().QuestionID)

	time.Sleep(3 * testAdvanceDelay)
	assert.Equal(t, 101, tr.Cursor().QuestionID, "stale timer must not advance past an unanswered question")
}

func TestTraversalPreviousClearsBuffer(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1,
			testImages(1, 2),
			testQuestion(100, "first", 1),
			testQuestion(101, "second", 2),
		)),
	)
	tr := newTestTraversal(t, catalog, newFakeStore(), &fakeNarrator{})
	require.NoError(t, tr.Start(ctx))

	_, err := tr.Select(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, tr.Next(ctx))
	require.Equal(t, 101, tr.Cursor().QuestionID)

	require.NoError(t, tr.Previous(ctx))
	state := tr.Cursor()
	assert.Equal(t, 100, state.QuestionID)
	assert.Empty(t, state.Answered, "backward navigation clears the answer buffer")

	// Very first question of the very first screen: previous is absorbed.
	require.ErrorIs(t, tr.Previous(ctx), ErrInvalidTransition)
}

func TestTraversalPreviousLevel(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1, testImages(1, 2), testQuestion(100, "l1", 1))),
		testLevel(2, testScreen(20, 1, testImages(3, 4), testQuestion(200, "l2", 3))),
	)
	tr := newTestTraversal(t, catalog, newFakeStore(), &fakeNarrator{})
	require.NoError(t, tr.Start(ctx))

	require.ErrorIs(t, tr.PreviousLevel(ctx), ErrInvalidTransition, "no-op at level 1")

	_, err := tr.Select(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, tr.Next(ctx))
	require.Equal(t, 2, tr.Cursor().Level)

	require.NoError(t, tr.PreviousLevel(ctx))
	state := tr.Cursor()
	assert.Equal(t, 1, state.Level)
	assert.Equal(t, 100, state.QuestionID)
	assert.Empty(t, state.Answered)
}

func TestTraversalTermination(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1,
			testScreen(10, 1, testImages(1, 2), testQuestion(100, "a", 1), testQuestion(101, "b", 2)),
			testScreen(11, 2, testImages(3, 4)),
			testScreen(12, 3, testImages(5, 6), testQuestion(102, "c", 5)),
		),
		testLevel(2), // entirely empty
		testLevel(3,
			testScreen(30, 1, testImages(7, 8), testQuestion(300, "d", 8)),
		),
	)
	store := newFakeStore()
	tr := newTestTraversal(t, catalog, store, &fakeNarrator{})
	require.NoError(t, tr.Start(ctx))

	steps := 0
	for !tr.Ended() {
		steps++
		require.LessOrEqual(t, steps, 20, "traversal must terminate in a bounded number of steps")

		state := tr.Cursor()
		q, err := catalog.GetQuestion(ctx, state.QuestionID)
		require.NoError(t, err)
		_, err = tr.Select(ctx, *q.AnswerImageID)
		require.NoError(t, err)
		// Manual advance; the pending auto-advance is cancelled by it.
		_ = tr.Next(ctx)
	}

	assert.Equal(t, 4, steps, "one step per presentable question")
	assert.Equal(t, 4, store.count())
}

func TestTraversalExitAndRetake(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1, testImages(1, 2), testQuestion(100, "first", 1))),
	)
	tr := newTestTraversal(t, catalog, newFakeStore(), &fakeNarrator{})

	var endedCalls atomic.Int32
	tr.SetOnEnded(func() { endedCalls.Add(1) })

	require.NoError(t, tr.Start(ctx))
	tr.Exit()
	assert.True(t, tr.Ended())
	require.Eventually(t, func() bool { return endedCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Selections and navigation are absorbed in the terminal state.
	_, err := tr.Select(ctx, 1)
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, tr.Retake(ctx))
	assert.False(t, tr.Ended())
	state := tr.Cursor()
	assert.Equal(t, 1, state.Level)
	assert.Equal(t, 100, state.QuestionID)
	assert.Empty(t, state.Answered)
}

// ctxCatalog fails level fetches once the request context is done, the way
// a database-backed catalog would.
type ctxCatalog struct {
	Catalog
}

func (c ctxCatalog) GetLevel(ctx context.Context, level int) (*model.TestLevel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Catalog.GetLevel(ctx, level)
}

func TestTraversalRetakeRefreshesSessionContext(t *testing.T) {
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1, testImages(1, 2), testQuestion(100, "l1", 1))),
		testLevel(2, testScreen(20, 1, testImages(3, 4), testQuestion(200, "l2", 3))),
	)
	tr := newTestTraversal(t, ctxCatalog{catalog}, newFakeStore(), &fakeNarrator{})

	firstCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, tr.Start(firstCtx))
	cancel()

	require.NoError(t, tr.Retake(context.Background()))
	require.Equal(t, 1, tr.Cursor().Level)

	_, err := tr.Select(context.Background(), 1)
	require.NoError(t, err)

	// The delayed advance crosses a level boundary, fetching level 2 under
	// the session context held by the machine. That must be the retake's
	// context, not the cancelled one from the first start.
	require.Eventually(t, func() bool {
		return tr.Cursor().Level == 2
	}, time.Second, 5*time.Millisecond)
	assert.False(t, tr.Ended())
}

func TestTraversalLevelFetchFailureEnds(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1, testImages(1, 2), testQuestion(100, "first", 1))),
	)
	catalog.getLevelErr = errors.New("catalog unavailable")
	tr := newTestTraversal(t, catalog, newFakeStore(), &fakeNarrator{})

	err := tr.Start(ctx)
	require.Error(t, err)
	assert.True(t, tr.Ended(), "fetch failure must reach the terminal state, never hang")
}

func TestTraversalEmptyCatalogEnds(t *testing.T) {
	ctx := context.Background()
	tr := newTestTraversal(t, newFakeCatalog(), newFakeStore(), &fakeNarrator{})

	require.NoError(t, tr.Start(ctx))
	assert.True(t, tr.Ended(), "absence of content is completion, not an error")
}

func TestTraversalRecordFailureKeepsSelection(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1,
			testImages(1, 2),
			testQuestion(100, "first", 1),
			testQuestion(101, "second", 2),
		)),
	)
	store := newFakeStore()
	store.upsertErr = errors.New("store down")
	tr := newTestTraversal(t, catalog, store, &fakeNarrator{})
	require.NoError(t, tr.Start(ctx))

	_, err := tr.Select(ctx, 1)
	require.ErrorIs(t, err, ErrPersistence)

	// The selection stays buffered and traversal carries on.
	assert.Equal(t, 1, tr.Cursor().Answered[100])
	require.Eventually(t, func() bool {
		return tr.Cursor().QuestionID == 101
	}, time.Second, 5*time.Millisecond)
}

func TestTraversalNarratesEachQuestion(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1,
			testImages(1, 2),
			testQuestion(100, "first prompt", 1),
			testQuestion(101, "second prompt", 2),
		)),
	)
	narrator := &fakeNarrator{}
	tr := newTestTraversal(t, catalog, newFakeStore(), narrator)
	require.NoError(t, tr.Start(ctx))

	require.Eventually(t, func() bool {
		return len(narrator.texts()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"first prompt"}, narrator.texts())

	_, err := tr.Select(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, tr.Next(ctx))

	require.Eventually(t, func() bool {
		return len(narrator.texts()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "second prompt", narrator.texts()[1])
}

func TestTraversalInvalidSelection(t *testing.T) {
	ctx := context.Background()
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1, testImages(1, 2), testQuestion(100, "first", 1))),
	)
	tr := newTestTraversal(t, catalog, newFakeStore(), &fakeNarrator{})
	require.NoError(t, tr.Start(ctx))

	_, err := tr.Select(ctx, 99)
	require.ErrorIs(t, err, ErrInvalidSelection)
}
