package queue

import (
	"context"
	"time"

	"backend-loket/internal/models"

	"github.com/google/uuid"
)

// Store is the persistent store the engine runs against. Every mutation goes
// through WithinTx; if fn returns an error nothing it wrote is committed.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	GetEntry(ctx context.Context, id uuid.UUID) (models.QueueEntry, error)
	ListWaiting(ctx context.Context) ([]models.QueueEntry, error)
	ListEntries(ctx context.Context, businessDate string) ([]models.QueueEntry, error)
	GetCounter(ctx context.Context, id int64) (models.Counter, error)
	ListCounters(ctx context.Context) ([]models.Counter, error)
	QueryEvents(ctx context.Context, f EventFilter) ([]models.QueueEvent, error)
}

// Tx is one atomic read-modify-write unit. The *ForUpdate reads hold their
// rows until the transaction ends.
type Tx interface {
	InsertEntry(ctx context.Context, e models.QueueEntry) error
	EntryForUpdate(ctx context.Context, id uuid.UUID) (models.QueueEntry, error)
	WaitingForUpdate(ctx context.Context) ([]models.QueueEntry, error)
	OpenEntriesForUpdate(ctx context.Context) ([]models.QueueEntry, error)
	LegacyCompletedForUpdate(ctx context.Context) ([]models.QueueEntry, error)
	UpdateEntry(ctx context.Context, e models.QueueEntry) error

	InsertCounter(ctx context.Context, c *models.Counter) error
	CounterForUpdate(ctx context.Context, id int64) (models.Counter, error)
	CountersForUpdate(ctx context.Context) ([]models.Counter, error)
	UpdateCounter(ctx context.Context, c models.Counter) error

	// AppendEvent stores ev and sets ev.Seq.
	AppendEvent(ctx context.Context, ev *models.QueueEvent) error
}

// Sequencer issues day-scoped token numbers.
type Sequencer interface {
	Next(ctx context.Context, businessDate string) (int, error)
	Reset(ctx context.Context, businessDate string) error
}

// Directory resolves customer display data.
type Directory interface {
	Lookup(ctx context.Context, customerID string) (models.Customer, error)
}

// Notifier delivers customer notifications. Callers never wait on it.
type Notifier interface {
	Notify(ctx context.Context, customerID, templateKind string, vars map[string]string) error
}

// Change is pushed to the broadcaster after every committed transition.
type Change struct {
	EntryID   uuid.UUID     `json:"entry_id"`
	NewStatus models.Status `json:"new_status"`
	CounterID *int64        `json:"counter_id"`
}

type Broadcaster interface {
	Broadcast(c Change)
}

// BroadcasterFunc adapts a plain function to Broadcaster.
type BroadcasterFunc func(c Change)

func (f BroadcasterFunc) Broadcast(c Change) { f(c) }

// EventSink receives events after they are committed, e.g. an analytics exchange.
// Calls come from the committing goroutine, so batches of different
// transactions may arrive out of seq order.
type EventSink interface {
	Publish(ctx context.Context, events []models.QueueEvent) error
}

// Snapshot is the immutable close-out record of one business day.
type Snapshot struct {
	Report  models.ResetReport  `json:"report"`
	Entries []models.QueueEntry `json:"entries"`
	TakenAt time.Time           `json:"taken_at"`
}

type Archive interface {
	SaveSnapshot(ctx context.Context, s Snapshot) error
}

const (
	TemplateJoined = "queue_joined"
	TemplateCalled = "queue_called"
)

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(Change) {}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, string, map[string]string) error { return nil }

type nopSink struct{}

func (nopSink) Publish(context.Context, []models.QueueEvent) error { return nil }

type nopArchive struct{}

func (nopArchive) SaveSnapshot(context.Context, Snapshot) error { return nil }
