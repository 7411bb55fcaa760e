package queue

import (
	"context"
	"testing"
	"time"

	"backend-loket/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetDay(t *testing.T) {
	archive := &captureArchive{}
	f := newFixture(t, WithArchive(archive))
	ctx := context.Background()
	c := f.counter(t, "Loket 1")

	serving := f.join(t, "c-1", false)
	waiting := f.join(t, "c-2", false)
	done := f.join(t, "c-3", false)
	_, err := f.svc.CancelService(ctx, done.ID)
	require.NoError(t, err)
	_, err = f.svc.AssignNext(ctx, c.ID)
	require.NoError(t, err)

	f.clock.Advance(8 * time.Hour)
	report, err := f.svc.ResetDay(ctx, f.svc.Today())
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", report.EffectiveDate)
	assert.Equal(t, 1, report.CompletedForced)
	assert.Equal(t, 1, report.CancelledForced)
	assert.Len(t, report.Entries, 2)

	got, err := f.store.GetEntry(ctx, serving.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Nil(t, got.AssignedCounterID)
	got, err = f.store.GetEntry(ctx, waiting.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	assert.Equal(t,
		[]models.EventType{models.EventJoined, models.EventCalled, models.EventCompleted, models.EventReset},
		f.eventTypes(t, serving))
	assert.Equal(t,
		[]models.EventType{models.EventJoined, models.EventCancelled, models.EventReset},
		f.eventTypes(t, waiting))
	assert.Equal(t, []models.EventType{models.EventJoined, models.EventCancelled}, f.eventTypes(t, done))

	counter, err := f.store.GetCounter(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, counter.CurrentQueueEntryID)
	checkCounterBinding(t, f)

	require.Len(t, archive.snapshots, 1)
	assert.Len(t, archive.snapshots[0].Entries, 3)

	again, err := f.svc.ResetDay(ctx, f.svc.Today())
	require.NoError(t, err)
	assert.True(t, again.Empty())
	assert.Empty(t, again.Entries)
}

func TestResetDayKeepsTokensUniqueForToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.join(t, "c-1", false)
	f.join(t, "c-2", false)

	_, err := f.svc.ResetDay(ctx, f.svc.Today())
	require.NoError(t, err)

	e := f.join(t, "c-3", false)
	assert.Equal(t, 3, e.TokenNumber)

	f.clock.Advance(24 * time.Hour)
	tomorrow := f.join(t, "c-4", false)
	assert.Equal(t, 1, tomorrow.TokenNumber)
	assert.Equal(t, "2026-03-03", tomorrow.BusinessDate)
}

func TestResetDayRejectsBadDate(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ResetDay(context.Background(), "02-03-2026")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestResetDayArchiveFailure(t *testing.T) {
	archive := &captureArchive{err: errors.New("disk full")}
	f := newFixture(t, WithArchive(archive))
	f.join(t, "c-1", false)

	report, err := f.svc.ResetDay(context.Background(), f.svc.Today())
	require.Error(t, err)
	assert.Equal(t, 1, report.CancelledForced)

	waiting, err := f.store.ListWaiting(context.Background())
	require.NoError(t, err)
	assert.Empty(t, waiting)
}

func TestBackfillServedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	updated := time.Date(2026, 2, 27, 15, 4, 0, 0, wib)

	legacy := models.QueueEntry{
		ID: uuid.New(), CustomerID: "c-1", TokenNumber: 4, BusinessDate: "2026-02-27",
		Status: models.StatusCompleted, CreatedAt: updated.Add(-time.Hour), UpdatedAt: &updated,
	}
	noUpdate := models.QueueEntry{
		ID: uuid.New(), CustomerID: "c-2", TokenNumber: 5, BusinessDate: "2026-02-27",
		Status: models.StatusCompleted, CreatedAt: updated,
	}
	f.store.Seed(legacy, noUpdate)

	n, err := f.svc.BackfillServedAt(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.store.GetEntry(ctx, legacy.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ServedAt)
	assert.True(t, got.ServedAt.Equal(updated))

	got, err = f.store.GetEntry(ctx, noUpdate.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ServedAt)

	n, err = f.svc.BackfillServedAt(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	events, err := f.svc.ListEvents(ctx, EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}
