package queue

import (
	"context"
	"sort"
	"time"

	"backend-loket/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MemoryStore is an in-process Store. One transaction runs at a time; writes
// are staged on the transaction and applied only when fn succeeds.
type MemoryStore struct {
	sem chan struct{}

	entries       map[uuid.UUID]models.QueueEntry
	counters      map[int64]models.Counter
	events        []models.QueueEvent
	lastCounterID int64
	lastSeq       int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sem:      make(chan struct{}, 1),
		entries:  make(map[uuid.UUID]models.QueueEntry),
		counters: make(map[int64]models.Counter),
	}
}

func (s *MemoryStore) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ErrConcurrencyConflict, ctx.Err().Error())
	}
}

func (s *MemoryStore) release() { <-s.sem }

// Seed inserts rows as-is, bypassing the state machine. Used to load
// historical data and in tests.
func (s *MemoryStore) Seed(entries ...models.QueueEntry) {
	s.sem <- struct{}{}
	defer s.release()
	for _, e := range entries {
		s.entries[e.ID] = cloneEntry(e)
	}
}

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	tx := &memTx{
		store:         s,
		entries:       make(map[uuid.UUID]models.QueueEntry),
		counters:      make(map[int64]models.Counter),
		lastCounterID: s.lastCounterID,
		lastSeq:       s.lastSeq,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(ErrConcurrencyConflict, err.Error())
	}

	for id, e := range tx.entries {
		s.entries[id] = e
	}
	for id, c := range tx.counters {
		s.counters[id] = c
	}
	s.events = append(s.events, tx.events...)
	s.lastCounterID = tx.lastCounterID
	s.lastSeq = tx.lastSeq
	return nil
}

func (s *MemoryStore) GetEntry(ctx context.Context, id uuid.UUID) (models.QueueEntry, error) {
	if err := s.acquire(ctx); err != nil {
		return models.QueueEntry{}, err
	}
	defer s.release()

	e, ok := s.entries[id]
	if !ok {
		return models.QueueEntry{}, errors.Wrap(ErrEntryNotFound, id.String())
	}
	return cloneEntry(e), nil
}

func (s *MemoryStore) ListWaiting(ctx context.Context) ([]models.QueueEntry, error) {
	return s.listEntries(ctx, func(e models.QueueEntry) bool { return e.Status == models.StatusWaiting })
}

func (s *MemoryStore) ListEntries(ctx context.Context, businessDate string) ([]models.QueueEntry, error) {
	return s.listEntries(ctx, func(e models.QueueEntry) bool { return e.BusinessDate == businessDate })
}

func (s *MemoryStore) listEntries(ctx context.Context, keep func(models.QueueEntry) bool) ([]models.QueueEntry, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return filterEntries(s.entries, nil, keep), nil
}

func (s *MemoryStore) GetCounter(ctx context.Context, id int64) (models.Counter, error) {
	if err := s.acquire(ctx); err != nil {
		return models.Counter{}, err
	}
	defer s.release()

	c, ok := s.counters[id]
	if !ok {
		return models.Counter{}, errors.Wrapf(ErrCounterNotFound, "counter %d", id)
	}
	return cloneCounter(c), nil
}

func (s *MemoryStore) ListCounters(ctx context.Context) ([]models.Counter, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return sortedCounters(s.counters, nil), nil
}

func (s *MemoryStore) QueryEvents(ctx context.Context, f EventFilter) ([]models.QueueEvent, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	out := []models.QueueEvent{}
	for _, ev := range s.events {
		if f.Match(ev) {
			out = append(out, cloneEvent(ev))
		}
	}
	return out, nil
}

type memTx struct {
	store *MemoryStore

	entries       map[uuid.UUID]models.QueueEntry
	counters      map[int64]models.Counter
	events        []models.QueueEvent
	lastCounterID int64
	lastSeq       int64
}

func (t *memTx) entry(id uuid.UUID) (models.QueueEntry, bool) {
	if e, ok := t.entries[id]; ok {
		return e, true
	}
	e, ok := t.store.entries[id]
	return e, ok
}

func (t *memTx) counter(id int64) (models.Counter, bool) {
	if c, ok := t.counters[id]; ok {
		return c, true
	}
	c, ok := t.store.counters[id]
	return c, ok
}

func (t *memTx) InsertEntry(_ context.Context, e models.QueueEntry) error {
	if _, exists := t.entry(e.ID); exists {
		return errors.Errorf("queue entry %s already exists", e.ID)
	}
	t.entries[e.ID] = cloneEntry(e)
	return nil
}

func (t *memTx) EntryForUpdate(_ context.Context, id uuid.UUID) (models.QueueEntry, error) {
	e, ok := t.entry(id)
	if !ok {
		return models.QueueEntry{}, errors.Wrap(ErrEntryNotFound, id.String())
	}
	return cloneEntry(e), nil
}

func (t *memTx) WaitingForUpdate(_ context.Context) ([]models.QueueEntry, error) {
	return filterEntries(t.store.entries, t.entries, func(e models.QueueEntry) bool {
		return e.Status == models.StatusWaiting
	}), nil
}

func (t *memTx) OpenEntriesForUpdate(_ context.Context) ([]models.QueueEntry, error) {
	return filterEntries(t.store.entries, t.entries, func(e models.QueueEntry) bool {
		return !e.Status.IsTerminal()
	}), nil
}

func (t *memTx) LegacyCompletedForUpdate(_ context.Context) ([]models.QueueEntry, error) {
	return filterEntries(t.store.entries, t.entries, func(e models.QueueEntry) bool {
		return e.Status == models.StatusCompleted && e.ServedAt == nil
	}), nil
}

func (t *memTx) UpdateEntry(_ context.Context, e models.QueueEntry) error {
	if _, ok := t.entry(e.ID); !ok {
		return errors.Wrap(ErrEntryNotFound, e.ID.String())
	}
	t.entries[e.ID] = cloneEntry(e)
	return nil
}

func (t *memTx) InsertCounter(_ context.Context, c *models.Counter) error {
	t.lastCounterID++
	c.ID = t.lastCounterID
	t.counters[c.ID] = cloneCounter(*c)
	return nil
}

func (t *memTx) CounterForUpdate(_ context.Context, id int64) (models.Counter, error) {
	c, ok := t.counter(id)
	if !ok {
		return models.Counter{}, errors.Wrapf(ErrCounterNotFound, "counter %d", id)
	}
	return cloneCounter(c), nil
}

func (t *memTx) CountersForUpdate(_ context.Context) ([]models.Counter, error) {
	return sortedCounters(t.store.counters, t.counters), nil
}

func (t *memTx) UpdateCounter(_ context.Context, c models.Counter) error {
	if _, ok := t.counter(c.ID); !ok {
		return errors.Wrapf(ErrCounterNotFound, "counter %d", c.ID)
	}
	t.counters[c.ID] = cloneCounter(c)
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, ev *models.QueueEvent) error {
	t.lastSeq++
	ev.Seq = t.lastSeq
	t.events = append(t.events, cloneEvent(*ev))
	return nil
}

// filterEntries merges staged rows over base rows and returns matches in
// creation order.
func filterEntries(base, staged map[uuid.UUID]models.QueueEntry, keep func(models.QueueEntry) bool) []models.QueueEntry {
	out := []models.QueueEntry{}
	for id, e := range base {
		if s, ok := staged[id]; ok {
			e = s
		}
		if keep(e) {
			out = append(out, cloneEntry(e))
		}
	}
	for id, e := range staged {
		if _, ok := base[id]; ok {
			continue
		}
		if keep(e) {
			out = append(out, cloneEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].TokenNumber < out[j].TokenNumber
	})
	return out
}

func sortedCounters(base, staged map[int64]models.Counter) []models.Counter {
	merged := make(map[int64]models.Counter, len(base)+len(staged))
	for id, c := range base {
		merged[id] = c
	}
	for id, c := range staged {
		merged[id] = c
	}
	out := make([]models.Counter, 0, len(merged))
	for _, c := range merged {
		out = append(out, cloneCounter(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneEntry(e models.QueueEntry) models.QueueEntry {
	e.AssignedCounterID = cloneInt64(e.AssignedCounterID)
	e.CalledAt = cloneTime(e.CalledAt)
	e.ServedAt = cloneTime(e.ServedAt)
	e.UpdatedAt = cloneTime(e.UpdatedAt)
	return e
}

func cloneCounter(c models.Counter) models.Counter {
	if c.CurrentQueueEntryID != nil {
		id := *c.CurrentQueueEntryID
		c.CurrentQueueEntryID = &id
	}
	return c
}

func cloneEvent(ev models.QueueEvent) models.QueueEvent {
	ev.CounterID = cloneInt64(ev.CounterID)
	if ev.WaitDurationMinutes != nil {
		m := *ev.WaitDurationMinutes
		ev.WaitDurationMinutes = &m
	}
	if ev.ServiceDurationMinutes != nil {
		m := *ev.ServiceDurationMinutes
		ev.ServiceDurationMinutes = &m
	}
	return ev
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
