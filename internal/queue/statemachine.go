package queue

import (
	"context"
	"time"

	"backend-loket/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var transitionEvent = map[models.Status]models.EventType{
	models.StatusServing:   models.EventCalled,
	models.StatusCompleted: models.EventCompleted,
	models.StatusCancelled: models.EventCancelled,
}

// transition moves entry to next, writes it and records the matching event in
// the same transaction. Leaving serving releases the bound counter first.
func (s *Service) transition(ctx context.Context, u *unit, entry *models.QueueEntry, next models.Status, now time.Time) error {
	if err := checkTransition(entry.Status, next); err != nil {
		return errors.WithMessagef(err, "entry %s", entry.ID)
	}

	from := entry.Status
	counterID := cloneInt64(entry.AssignedCounterID)
	if from == models.StatusServing {
		if err := s.releaseCounter(ctx, u, entry, now); err != nil {
			return err
		}
	}

	entry.Status = next
	entry.UpdatedAt = &now
	switch {
	case next == models.StatusServing:
		entry.CalledAt = &now
	case next.IsTerminal():
		entry.ServedAt = &now
	}
	if err := u.tx.UpdateEntry(ctx, *entry); err != nil {
		return errors.Wrap(err, "update entry")
	}

	ev := newEvent(*entry, transitionEvent[next], now)
	ev.CounterID = counterID
	switch next {
	case models.StatusServing:
		ev.WaitDurationMinutes = minutesBetween(entry.CreatedAt, now)
	case models.StatusCompleted, models.StatusCancelled:
		if entry.CalledAt != nil {
			ev.ServiceDurationMinutes = minutesBetween(*entry.CalledAt, now)
		}
	}
	if err := s.record(ctx, u, ev); err != nil {
		return err
	}

	u.changes = append(u.changes, Change{EntryID: entry.ID, NewStatus: next, CounterID: counterID})
	return nil
}

// CompleteService ends service for a serving entry.
func (s *Service) CompleteService(ctx context.Context, id uuid.UUID) (models.QueueEntry, error) {
	return s.finish(ctx, id, models.StatusCompleted)
}

// CancelService cancels a waiting or serving entry. Cancelling a terminal
// entry fails with ErrAlreadyTerminal.
func (s *Service) CancelService(ctx context.Context, id uuid.UUID) (models.QueueEntry, error) {
	return s.finish(ctx, id, models.StatusCancelled)
}

// finish locks the bound counter before the entry, the same order AssignNext
// and ResetDay use. The counter is learned from an unlocked read and checked
// again once the entry is locked.
func (s *Service) finish(ctx context.Context, id uuid.UUID, next models.Status) (models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.withRetry(ctx, string(next), func() error {
		seen, err := s.store.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		return s.inTx(ctx, func(u *unit) error {
			if seen.AssignedCounterID != nil {
				if _, err := u.tx.CounterForUpdate(ctx, *seen.AssignedCounterID); err != nil {
					return errors.Wrap(err, "lock bound counter")
				}
			}
			e, err := u.tx.EntryForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if !sameCounter(seen.AssignedCounterID, e.AssignedCounterID) {
				return errors.Wrapf(ErrConcurrencyConflict, "entry %s changed counter", id)
			}
			if err := s.transition(ctx, u, &e, next, s.now()); err != nil {
				return err
			}
			entry = e
			return nil
		})
	})
	if errors.Is(err, ErrAlreadyTerminal) {
		s.logger().WithFields(logrus.Fields{"entry_id": id, "to": next}).Warn("entry already terminal")
	}
	if err != nil {
		return models.QueueEntry{}, err
	}

	s.logger().WithFields(logrus.Fields{
		"entry_id": entry.ID,
		"token":    entry.Token(),
		"status":   entry.Status,
	}).Info("queue entry finished")
	return entry, nil
}

func sameCounter(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
