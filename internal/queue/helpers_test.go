package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"backend-loket/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

var wib = time.FixedZone("WIB", 7*60*60)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, wib)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordedNotification struct {
	customerID string
	template   string
	vars       map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []recordedNotification
}

func (n *recordingNotifier) Notify(_ context.Context, customerID, template string, vars map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, recordedNotification{customerID: customerID, template: template, vars: vars})
	return nil
}

func (n *recordingNotifier) all() []recordedNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedNotification(nil), n.sent...)
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	changes []Change
}

func (b *recordingBroadcaster) Broadcast(c Change) {
	b.mu.Lock()
	b.changes = append(b.changes, c)
	b.mu.Unlock()
}

type captureArchive struct {
	snapshots []Snapshot
	err       error
}

func (a *captureArchive) SaveSnapshot(_ context.Context, s Snapshot) error {
	a.snapshots = append(a.snapshots, s)
	return a.err
}

type fixture struct {
	svc   *Service
	store *MemoryStore
	seq   *MemorySequencer
	clock *fakeClock
	hook  *test.Hook
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	f := &fixture{
		store: NewMemoryStore(),
		seq:   NewMemorySequencer(),
		clock: newFakeClock(),
		hook:  hook,
	}
	base := []Option{WithClock(f.clock.Now), WithLocation(wib), WithLogger(logger)}
	f.svc = NewService(f.store, f.seq, append(base, opts...)...)
	t.Cleanup(f.svc.Wait)
	return f
}

func (f *fixture) counter(t *testing.T, name string) models.Counter {
	t.Helper()
	c, err := f.svc.RegisterCounter(context.Background(), name)
	require.NoError(t, err)
	return c
}

func (f *fixture) join(t *testing.T, customerID string, priority bool) models.QueueEntry {
	t.Helper()
	e, err := f.svc.CreateEntry(context.Background(), customerID, priority)
	require.NoError(t, err)
	return e
}

func (f *fixture) eventTypes(t *testing.T, entry models.QueueEntry) []models.EventType {
	t.Helper()
	id := entry.ID
	events, err := f.svc.ListEvents(context.Background(), EventFilter{EntryID: &id})
	require.NoError(t, err)
	out := make([]models.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.EventType)
	}
	return out
}

// checkCounterBinding asserts that serving entries and busy counters point at each other.
func checkCounterBinding(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	counters, err := f.store.ListCounters(ctx)
	require.NoError(t, err)

	busy := map[int64]bool{}
	for _, c := range counters {
		if c.CurrentQueueEntryID == nil {
			continue
		}
		busy[c.ID] = true
		e, err := f.store.GetEntry(ctx, *c.CurrentQueueEntryID)
		require.NoError(t, err)
		require.Equal(t, models.StatusServing, e.Status)
		require.NotNil(t, e.AssignedCounterID)
		require.Equal(t, c.ID, *e.AssignedCounterID)
	}

	entries, err := f.store.ListEntries(ctx, f.svc.Today())
	require.NoError(t, err)
	for _, e := range entries {
		if e.Status == models.StatusServing {
			require.NotNil(t, e.AssignedCounterID, "serving entry %s without counter", e.ID)
			require.True(t, busy[*e.AssignedCounterID])
		} else {
			require.Nil(t, e.AssignedCounterID, "%s entry %s still bound", e.Status, e.ID)
		}
	}
}
