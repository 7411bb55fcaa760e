package queue

import (
	"context"
	"testing"
	"time"

	"backend-loket/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryAt(token int, priority bool, created time.Time) models.QueueEntry {
	return models.QueueEntry{
		ID:          uuid.New(),
		TokenNumber: token,
		Status:      models.StatusWaiting,
		IsPriority:  priority,
		CreatedAt:   created,
	}
}

func TestOrder(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, wib)
	t1 := entryAt(1, false, base)
	t2 := entryAt(2, true, base.Add(time.Minute))
	t3 := entryAt(3, false, base.Add(2*time.Minute))
	served := entryAt(4, true, base)
	served.Status = models.StatusServing

	got := Order([]models.QueueEntry{t1, t2, served, t3})
	require.Len(t, got, 3)
	assert.Equal(t, []int{2, 1, 3}, []int{got[0].TokenNumber, got[1].TokenNumber, got[2].TokenNumber})

	head, ok := Head([]models.QueueEntry{t3, t1, served, t2})
	require.True(t, ok)
	assert.Equal(t, t2.ID, head.ID)

	assert.Equal(t, 1, Position([]models.QueueEntry{t1, t2, t3}, t2.ID))
	assert.Equal(t, 3, Position([]models.QueueEntry{t1, t2, t3}, t3.ID))
	assert.Equal(t, 0, Position([]models.QueueEntry{t1, served}, served.ID))
}

func TestOrderTieBreaksOnToken(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, wib)
	a := entryAt(8, false, at)
	b := entryAt(7, false, at)

	head, ok := Head([]models.QueueEntry{a, b})
	require.True(t, ok)
	assert.Equal(t, 7, head.TokenNumber)
}

func TestHeadEmpty(t *testing.T) {
	_, ok := Head(nil)
	assert.False(t, ok)
}

func TestServeOrderPriorityFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.counter(t, "Loket 1")

	t1 := f.join(t, "c-1", false)
	f.clock.Advance(time.Minute)
	t2 := f.join(t, "c-2", true)
	f.clock.Advance(time.Minute)
	t3 := f.join(t, "c-3", false)

	var served []uuid.UUID
	for i := 0; i < 3; i++ {
		e, err := f.svc.AssignNext(ctx, c.ID)
		require.NoError(t, err)
		served = append(served, e.ID)
		_, err = f.svc.CompleteService(ctx, e.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, []uuid.UUID{t2.ID, t1.ID, t3.ID}, served)

	_, err := f.svc.AssignNext(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNoWaitingCustomers)
}
