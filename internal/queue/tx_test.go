package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"backend-loket/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tracingStore wraps every transaction so a test can fail one event type and
// see the order rows were locked in.
type tracingStore struct {
	*MemoryStore

	mu     sync.Mutex
	failOn models.EventType
	calls  []string
}

func (s *tracingStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.MemoryStore.WithinTx(ctx, func(tx Tx) error {
		return fn(&tracingTx{Tx: tx, store: s})
	})
}

func (s *tracingStore) failEvents(t models.EventType) {
	s.mu.Lock()
	s.failOn = t
	s.mu.Unlock()
}

func (s *tracingStore) trace(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *tracingStore) reset() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

func (s *tracingStore) traced() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type tracingTx struct {
	Tx
	store *tracingStore
}

func (t *tracingTx) EntryForUpdate(ctx context.Context, id uuid.UUID) (models.QueueEntry, error) {
	t.store.trace("entry")
	return t.Tx.EntryForUpdate(ctx, id)
}

func (t *tracingTx) CounterForUpdate(ctx context.Context, id int64) (models.Counter, error) {
	t.store.trace("counter")
	return t.Tx.CounterForUpdate(ctx, id)
}

func (t *tracingTx) AppendEvent(ctx context.Context, ev *models.QueueEvent) error {
	t.store.mu.Lock()
	fail := t.store.failOn
	t.store.mu.Unlock()
	if fail != "" && ev.EventType == fail {
		return errors.Errorf("disk full writing %s event", ev.EventType)
	}
	return t.Tx.AppendEvent(ctx, ev)
}

func newTracingFixture(t *testing.T) (*Service, *tracingStore) {
	t.Helper()
	store := &tracingStore{MemoryStore: NewMemoryStore()}
	svc := NewService(store, NewMemorySequencer(), WithLocation(wib), WithClock(newFakeClock().Now))
	t.Cleanup(svc.Wait)
	return svc, store
}

func entryEvents(t *testing.T, svc *Service, id uuid.UUID) []models.EventType {
	t.Helper()
	events, err := svc.ListEvents(context.Background(), EventFilter{EntryID: &id})
	require.NoError(t, err)
	out := []models.EventType{}
	for _, ev := range events {
		out = append(out, ev.EventType)
	}
	return out
}

func TestAssignRolledBackWhenEventWriteFails(t *testing.T) {
	svc, store := newTracingFixture(t)
	ctx := context.Background()
	c, err := svc.RegisterCounter(ctx, "Loket 1")
	require.NoError(t, err)
	e, err := svc.CreateEntry(ctx, "c-1", false)
	require.NoError(t, err)

	store.failEvents(models.EventCalled)
	_, err = svc.AssignNext(ctx, c.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	got, err := store.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, got.Status)
	assert.Nil(t, got.AssignedCounterID)
	assert.Nil(t, got.CalledAt)

	counter, err := store.GetCounter(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, counter.CurrentQueueEntryID)

	assert.Equal(t, []models.EventType{models.EventJoined}, entryEvents(t, svc, e.ID))

	// the same call goes through once the event log accepts writes again
	store.failEvents("")
	called, err := svc.AssignNext(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, called.ID)
}

func TestCompleteRolledBackWhenEventWriteFails(t *testing.T) {
	svc, store := newTracingFixture(t)
	ctx := context.Background()
	c, err := svc.RegisterCounter(ctx, "Loket 1")
	require.NoError(t, err)
	e, err := svc.CreateEntry(ctx, "c-1", false)
	require.NoError(t, err)
	_, err = svc.AssignNext(ctx, c.ID)
	require.NoError(t, err)

	store.failEvents(models.EventCompleted)
	_, err = svc.CompleteService(ctx, e.ID)
	require.Error(t, err)

	got, err := store.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusServing, got.Status)
	require.NotNil(t, got.AssignedCounterID)
	assert.Equal(t, c.ID, *got.AssignedCounterID)
	assert.Nil(t, got.ServedAt)

	counter, err := store.GetCounter(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, counter.CurrentQueueEntryID)
	assert.Equal(t, e.ID, *counter.CurrentQueueEntryID)

	assert.Equal(t, []models.EventType{models.EventJoined, models.EventCalled}, entryEvents(t, svc, e.ID))
}

func TestFinishLocksCounterBeforeEntry(t *testing.T) {
	svc, store := newTracingFixture(t)
	ctx := context.Background()
	c, err := svc.RegisterCounter(ctx, "Loket 1")
	require.NoError(t, err)
	e, err := svc.CreateEntry(ctx, "c-1", false)
	require.NoError(t, err)
	_, err = svc.AssignNext(ctx, c.ID)
	require.NoError(t, err)

	store.reset()
	_, err = svc.CompleteService(ctx, e.ID)
	require.NoError(t, err)

	calls := store.traced()
	require.NotEmpty(t, calls)
	assert.Equal(t, "counter", calls[0])
	assert.Contains(t, calls, "entry")

	// a waiting entry has no counter to lock
	w, err := svc.CreateEntry(ctx, "c-2", false)
	require.NoError(t, err)
	store.reset()
	_, err = svc.CancelService(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"entry"}, store.traced())
}

// staleStore serves an out-of-date entry on the first unlocked read.
type staleStore struct {
	*MemoryStore
	stale int32
	txs   int32
}

func (s *staleStore) GetEntry(ctx context.Context, id uuid.UUID) (models.QueueEntry, error) {
	e, err := s.MemoryStore.GetEntry(ctx, id)
	if err == nil && atomic.AddInt32(&s.stale, -1) >= 0 {
		e.Status = models.StatusWaiting
		e.AssignedCounterID = nil
	}
	return e, err
}

func (s *staleStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	atomic.AddInt32(&s.txs, 1)
	return s.MemoryStore.WithinTx(ctx, fn)
}

func TestFinishRetriesWhenCounterChangedSinceRead(t *testing.T) {
	store := &staleStore{MemoryStore: NewMemoryStore()}
	svc := NewService(store, NewMemorySequencer(), WithLocation(wib))
	t.Cleanup(svc.Wait)
	ctx := context.Background()

	c, err := svc.RegisterCounter(ctx, "Loket 1")
	require.NoError(t, err)
	e, err := svc.CreateEntry(ctx, "c-1", false)
	require.NoError(t, err)
	_, err = svc.AssignNext(ctx, c.ID)
	require.NoError(t, err)

	atomic.StoreInt32(&store.stale, 1)
	atomic.StoreInt32(&store.txs, 0)
	done, err := svc.CompleteService(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&store.txs))

	counter, err := store.GetCounter(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, counter.CurrentQueueEntryID)
}
