// Package queue is the queue state machine and counter assignment engine:
// token issuance, status transitions, serve ordering, counter claims, the
// append-only event log and the daily reset.
package queue

import (
	"context"
	"strings"
	"sync"
	"time"

	"backend-loket/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func WithLogger(l *logrus.Logger) Option { return func(s *Service) { s.log = l } }

func WithDirectory(d Directory) Option { return func(s *Service) { s.directory = d } }

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithBroadcaster(b Broadcaster) Option { return func(s *Service) { s.broadcaster = b } }

func WithEventSink(sink EventSink) Option { return func(s *Service) { s.sink = sink } }

func WithArchive(a Archive) Option { return func(s *Service) { s.archive = a } }

// Service is the only entry point for mutating queue state.
type Service struct {
	store    Store
	seq      Sequencer
	recorder *Recorder

	directory   Directory
	notifier    Notifier
	broadcaster Broadcaster
	sink        EventSink
	archive     Archive

	log *logrus.Logger
	now func() time.Time
	loc *time.Location

	// reset holds the write side; AssignNext holds the read side.
	barrier sync.RWMutex

	notifyWG sync.WaitGroup
}

func NewService(store Store, seq Sequencer, opts ...Option) *Service {
	s := &Service{
		store:       store,
		seq:         seq,
		recorder:    NewRecorder(store),
		directory:   StaticDirectory{},
		notifier:    nopNotifier{},
		broadcaster: nopBroadcaster{},
		sink:        nopSink{},
		archive:     nopArchive{},
		log:         logrus.StandardLogger(),
		now:         time.Now,
		loc:         time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Location() *time.Location { return s.loc }

// Today is the current business date.
func (s *Service) Today() string { return BusinessDate(s.now(), s.loc) }

// unit collects what one transaction produced so it can be fanned out after commit.
type unit struct {
	tx      Tx
	events  []models.QueueEvent
	changes []Change
}

func (s *Service) inTx(ctx context.Context, fn func(u *unit) error) error {
	u := &unit{}
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		u.tx = tx
		u.events = u.events[:0]
		u.changes = u.changes[:0]
		return fn(u)
	})
	if err != nil {
		return err
	}
	s.afterCommit(ctx, u)
	return nil
}

// withRetry retries fn once on ErrConcurrencyConflict.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if !errors.Is(err, ErrConcurrencyConflict) || ctx.Err() != nil {
		return err
	}
	s.logger().WithField("op", op).WithError(err).Warn("concurrency conflict, retrying once")
	return fn()
}

func (s *Service) record(ctx context.Context, u *unit, ev models.QueueEvent) error {
	if err := s.recorder.Record(ctx, u.tx, &ev); err != nil {
		return err
	}
	u.events = append(u.events, ev)
	return nil
}

func (s *Service) afterCommit(ctx context.Context, u *unit) {
	for _, c := range u.changes {
		s.broadcaster.Broadcast(c)
	}
	if len(u.events) == 0 {
		return
	}
	if err := s.sink.Publish(ctx, u.events); err != nil {
		// The transition is committed; the downstream log is now behind.
		s.logger().WithFields(logrus.Fields{
			"alert":  true,
			"events": len(u.events),
			"seq":    u.events[0].Seq,
		}).WithError(err).Error("event sink publish failed after commit")
	}
}

func (s *Service) logger() *logrus.Entry {
	return s.log.WithField("component", "queue")
}

// CreateEntry registers a customer as waiting with a fresh token number.
func (s *Service) CreateEntry(ctx context.Context, customerID string, isPriority bool) (models.QueueEntry, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return models.QueueEntry{}, errors.Wrap(ErrInvalidInput, "customer_id is required")
	}

	now := s.now()
	date := BusinessDate(now, s.loc)
	token, err := s.seq.Next(ctx, date)
	if err != nil {
		return models.QueueEntry{}, errors.Wrap(err, "issue token")
	}

	entry := models.QueueEntry{
		ID:           uuid.New(),
		CustomerID:   customerID,
		TokenNumber:  token,
		BusinessDate: date,
		Status:       models.StatusWaiting,
		IsPriority:   isPriority,
		CreatedAt:    now,
		UpdatedAt:    &now,
	}

	err = s.withRetry(ctx, "create_entry", func() error {
		return s.inTx(ctx, func(u *unit) error {
			if err := u.tx.InsertEntry(ctx, entry); err != nil {
				return errors.Wrap(err, "insert entry")
			}
			u.changes = append(u.changes, Change{EntryID: entry.ID, NewStatus: entry.Status})
			return s.record(ctx, u, newEvent(entry, models.EventJoined, now))
		})
	})
	if err != nil {
		return models.QueueEntry{}, err
	}

	s.logger().WithFields(logrus.Fields{
		"entry_id": entry.ID,
		"token":    entry.Token(),
		"priority": entry.IsPriority,
	}).Info("customer joined queue")
	s.notify(entry, TemplateJoined, nil)
	return entry, nil
}

func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (models.QueueEntry, error) {
	return s.store.GetEntry(ctx, id)
}

// GetQueuePosition is recomputed on every call; it is never stored.
func (s *Service) GetQueuePosition(ctx context.Context, id uuid.UUID) (int, error) {
	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return 0, err
	}
	if entry.Status != models.StatusWaiting {
		return 0, errors.Wrapf(ErrNotWaiting, "entry %s is %s", id, entry.Status)
	}
	waiting, err := s.store.ListWaiting(ctx)
	if err != nil {
		return 0, err
	}
	pos := Position(waiting, id)
	if pos == 0 {
		return 0, errors.Wrapf(ErrNotWaiting, "entry %s left the waiting set", id)
	}
	return pos, nil
}

// WaitingEntry is a waiting entry with its current position.
type WaitingEntry struct {
	models.QueueEntry
	Position int `json:"position"`
}

func (s *Service) ListWaiting(ctx context.Context) ([]WaitingEntry, error) {
	waiting, err := s.store.ListWaiting(ctx)
	if err != nil {
		return nil, err
	}
	ordered := Order(waiting)
	out := make([]WaitingEntry, 0, len(ordered))
	for i, e := range ordered {
		out = append(out, WaitingEntry{QueueEntry: e, Position: i + 1})
	}
	return out, nil
}

func (s *Service) ListEvents(ctx context.Context, f EventFilter) ([]models.QueueEvent, error) {
	return s.recorder.Query(ctx, f)
}

func (s *Service) ListCounters(ctx context.Context) ([]models.Counter, error) {
	return s.store.ListCounters(ctx)
}

func (s *Service) RegisterCounter(ctx context.Context, name string) (models.Counter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Counter{}, errors.Wrap(ErrInvalidInput, "counter name is required")
	}
	now := s.now()
	counter := models.Counter{Name: name, IsActive: true, CreatedAt: now, UpdatedAt: now}
	err := s.inTx(ctx, func(u *unit) error {
		return u.tx.InsertCounter(ctx, &counter)
	})
	if err != nil {
		return models.Counter{}, errors.Wrap(err, "register counter")
	}
	return counter, nil
}

// SetCounterActive toggles whether the counter accepts new customers. A
// customer already being served stays bound until completed or cancelled.
func (s *Service) SetCounterActive(ctx context.Context, id int64, active bool) (models.Counter, error) {
	var counter models.Counter
	err := s.withRetry(ctx, "set_counter_active", func() error {
		return s.inTx(ctx, func(u *unit) error {
			c, err := u.tx.CounterForUpdate(ctx, id)
			if err != nil {
				return err
			}
			c.IsActive = active
			c.UpdatedAt = s.now()
			if err := u.tx.UpdateCounter(ctx, c); err != nil {
				return err
			}
			counter = c
			cid := c.ID
			u.changes = append(u.changes, Change{CounterID: &cid})
			return nil
		})
	})
	return counter, err
}

// Summary - ringkasan hari ini untuk dashboard
type Summary struct {
	BusinessDate string `json:"business_date"`
	Total        int    `json:"total"`
	Waiting      int    `json:"waiting"`
	Serving      int    `json:"serving"`
	Completed    int    `json:"completed"`
	Cancelled    int    `json:"cancelled"`
	Priority     int    `json:"priority"`
}

func (s *Service) Summary(ctx context.Context, businessDate string) (Summary, error) {
	entries, err := s.store.ListEntries(ctx, businessDate)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{BusinessDate: businessDate, Total: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case models.StatusWaiting:
			sum.Waiting++
		case models.StatusServing:
			sum.Serving++
		case models.StatusCompleted:
			sum.Completed++
		case models.StatusCancelled:
			sum.Cancelled++
		}
		if e.IsPriority {
			sum.Priority++
		}
	}
	return sum, nil
}

// notify runs in the background; delivery failures are only logged.
func (s *Service) notify(entry models.QueueEntry, template string, counter *models.Counter) {
	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		vars := map[string]string{
			"token":         entry.Token(),
			"business_date": entry.BusinessDate,
		}
		if counter != nil {
			vars["counter"] = counter.Name
		}
		customer, err := s.directory.Lookup(ctx, entry.CustomerID)
		if err != nil {
			s.logger().WithField("customer_id", entry.CustomerID).WithError(err).Warn("customer lookup failed")
		} else {
			vars["name"] = customer.Name
		}

		if err := s.notifier.Notify(ctx, entry.CustomerID, template, vars); err != nil {
			s.logger().WithFields(logrus.Fields{
				"customer_id": entry.CustomerID,
				"template":    template,
			}).WithError(err).Warn("notification dispatch failed")
		}
	}()
}

// Wait blocks until background notifications have finished.
func (s *Service) Wait() { s.notifyWG.Wait() }

func newEvent(e models.QueueEntry, t models.EventType, at time.Time) models.QueueEvent {
	return models.QueueEvent{
		QueueEntryID: e.ID,
		EventType:    t,
		CounterID:    cloneInt64(e.AssignedCounterID),
		TokenNumber:  e.TokenNumber,
		BusinessDate: e.BusinessDate,
		IsPriority:   e.IsPriority,
		OccurredAt:   at,
	}
}
