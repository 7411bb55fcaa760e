package queue

import (
	"context"
	"time"

	"backend-loket/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// EventFilter selects events in [From, To). Zero-valued fields match everything.
type EventFilter struct {
	From      time.Time
	To        time.Time
	EntryID   *uuid.UUID
	CounterID *int64
	Types     []models.EventType
	Priority  *bool
}

func (f EventFilter) Validate() error {
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return errors.Wrap(ErrInvalidInput, "event range: from must be before to")
	}
	for _, t := range f.Types {
		if !t.Valid() {
			return errors.Wrapf(ErrInvalidInput, "event type %q", t)
		}
	}
	return nil
}

// Match is used by stores that filter in Go rather than in SQL.
func (f EventFilter) Match(ev models.QueueEvent) bool {
	if !f.From.IsZero() && ev.OccurredAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !ev.OccurredAt.Before(f.To) {
		return false
	}
	if f.EntryID != nil && ev.QueueEntryID != *f.EntryID {
		return false
	}
	if f.CounterID != nil && (ev.CounterID == nil || *ev.CounterID != *f.CounterID) {
		return false
	}
	if f.Priority != nil && ev.IsPriority != *f.Priority {
		return false
	}
	if len(f.Types) > 0 {
		for _, t := range f.Types {
			if ev.EventType == t {
				return true
			}
		}
		return false
	}
	return true
}

// Recorder is the append-only queue event log. It never updates or deletes.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends ev inside tx so the event commits or rolls back with the
// transition that produced it.
func (r *Recorder) Record(ctx context.Context, tx Tx, ev *models.QueueEvent) error {
	if !ev.EventType.Valid() {
		return errors.Wrapf(ErrInvalidInput, "event type %q", ev.EventType)
	}
	if ev.QueueEntryID == uuid.Nil {
		return errors.Wrap(ErrInvalidInput, "event without queue entry")
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if err := tx.AppendEvent(ctx, ev); err != nil {
		return errors.Wrapf(err, "record %s event", ev.EventType)
	}
	return nil
}

// Query returns matching events ordered by commit sequence.
func (r *Recorder) Query(ctx context.Context, f EventFilter) ([]models.QueueEvent, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return r.store.QueryEvents(ctx, f)
}

func minutesBetween(from, to time.Time) *int {
	m := int(to.Sub(from) / time.Minute)
	if m < 0 {
		m = 0
	}
	return &m
}
