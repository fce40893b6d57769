package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aggregatorFixture(t *testing.T) (*fakeCatalog, *fakeStore, *fakeReports, *Aggregator) {
	t.Helper()
	catalog := newFakeCatalog(
		testLevel(1, testScreen(10, 1,
			testImages(1, 2, 3, 4),
			testQuestion(100, "Point to the apple", 1),
			testQuestion(101, "Point to the dog", 2),
			testQuestion(102, "Point to the house", 3),
		)),
	)
	store := newFakeStore()
	reports := &fakeReports{}
	agg := NewAggregator(catalog, store, reports, zerolog.Nop())
	return catalog, store, reports, agg
}

func record(t *testing.T, catalog Catalog, store ResponseStore, patientID, questionID, pick int) {
	t.Helper()
	rec := NewRecorder(catalog, store, zerolog.Nop())
	_, err := rec.Record(context.Background(), patientID, questionID, pick)
	require.NoError(t, err)
}

func TestAggregatorScoreConsistency(t *testing.T) {
	ctx := context.Background()
	catalog, store, _, agg := aggregatorFixture(t)

	record(t, catalog, store, 7, 100, 1) // correct
	record(t, catalog, store, 7, 101, 4) // wrong
	record(t, catalog, store, 7, 102, 3) // correct

	report, err := agg.Recompute(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Score)
	assert.Len(t, report.Detail, 3)

	responses, err := store.ListByPatient(ctx, 7)
	require.NoError(t, err)
	correct := 0
	for _, r := range responses {
		if r.IsCorrect {
			correct++
		}
	}
	assert.Equal(t, correct, report.Score)
}

func TestAggregatorEmptyResponseSet(t *testing.T) {
	ctx := context.Background()
	_, _, reports, agg := aggregatorFixture(t)

	report, err := agg.Recompute(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Score)
	assert.Empty(t, report.Detail)
	assert.Len(t, reports.appended, 1)
}

func TestAggregatorReportImmutability(t *testing.T) {
	ctx := context.Background()
	catalog, store, reports, agg := aggregatorFixture(t)

	record(t, catalog, store, 7, 100, 1)
	record(t, catalog, store, 7, 101, 4)

	first, err := agg.Recompute(ctx, 7)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := agg.Recompute(ctx, 7)
	require.NoError(t, err)

	// Same score and detail, distinct identities: reports are an
	// append-only history, not a mutable row.
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Detail, second.Detail)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.TakenAt.After(first.TakenAt))
	assert.Len(t, reports.appended, 2)
}

func TestAggregatorSnapshotsQuestionData(t *testing.T) {
	ctx := context.Background()
	catalog, store, _, agg := aggregatorFixture(t)

	record(t, catalog, store, 7, 100, 4)

	report, err := agg.Recompute(ctx, 7)
	require.NoError(t, err)
	require.Len(t, report.Detail, 1)

	snap := report.Detail[0]
	assert.Equal(t, "Point to the apple", snap.QuestionText)
	assert.Equal(t, 4, snap.SelectedImageID)
	assert.False(t, snap.IsCorrect)
	assert.Len(t, snap.Options, 4, "the screen's full image list is embedded at report time")
}

func TestAggregatorToleratesDeletedQuestion(t *testing.T) {
	ctx := context.Background()
	catalog, store, _, agg := aggregatorFixture(t)

	record(t, catalog, store, 7, 100, 1)
	catalog.deleteQuestion(100)

	report, err := agg.Recompute(ctx, 7)
	require.NoError(t, err)
	require.Len(t, report.Detail, 1)
	assert.Equal(t, 1, report.Score, "correctness was derived at write time and survives deletion")
	assert.Empty(t, report.Detail[0].QuestionText)
}

func TestAggregatorAppendFailure(t *testing.T) {
	ctx := context.Background()
	catalog, store, reports, agg := aggregatorFixture(t)

	record(t, catalog, store, 7, 100, 1)
	reports.appendErr = errors.New("tx aborted")

	_, err := agg.Recompute(ctx, 7)
	require.ErrorIs(t, err, ErrPersistence)
}

func TestAggregatorReleasesPatientLocks(t *testing.T) {
	ctx := context.Background()
	catalog, store, reports, agg := aggregatorFixture(t)

	record(t, catalog, store, 7, 100, 1)

	var wg sync.WaitGroup
	for i := 0; i < 9; i++ {
		patientID := 7 + i%3
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := agg.Recompute(ctx, patientID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, reports.appended, 9)

	agg.mu.Lock()
	defer agg.mu.Unlock()
	assert.Empty(t, agg.locks, "per-patient serialization entries are evicted after release")
}

func TestAggregatorListReportsWindow(t *testing.T) {
	ctx := context.Background()
	catalog, store, _, agg := aggregatorFixture(t)

	record(t, catalog, store, 7, 100, 1)

	first, err := agg.Recompute(ctx, 7)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	cutoff := time.Now().UTC()
	time.Sleep(2 * time.Millisecond)
	second, err := agg.Recompute(ctx, 7)
	require.NoError(t, err)

	all, err := agg.ListReports(ctx, 7, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	recent, err := agg.ListReports(ctx, 7, &cutoff, nil)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, second.ID, recent[0].ID)

	old, err := agg.ListReports(ctx, 7, nil, &cutoff)
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, first.ID, old[0].ID)
}
