package queue

import (
	"context"
	"time"

	"backend-loket/internal/models"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AssignNext claims the head-of-line waiting customer for counterID.
// It returns ErrNoWaitingCustomers when nobody is waiting.
//
// The counter row is locked before the waiting set, so two counters racing
// for "next" serialize on the waiting set and never claim the same entry.
func (s *Service) AssignNext(ctx context.Context, counterID int64) (models.QueueEntry, error) {
	s.barrier.RLock()
	defer s.barrier.RUnlock()

	var (
		entry   models.QueueEntry
		counter models.Counter
	)
	err := s.withRetry(ctx, "assign_next", func() error {
		return s.inTx(ctx, func(u *unit) error {
			c, err := u.tx.CounterForUpdate(ctx, counterID)
			if err != nil {
				return err
			}
			if !c.Available() {
				return counterUnavailable(c)
			}

			waiting, err := u.tx.WaitingForUpdate(ctx)
			if err != nil {
				return errors.Wrap(err, "load waiting entries")
			}
			head, ok := Head(waiting)
			if !ok {
				return ErrNoWaitingCustomers
			}

			if err := s.claim(ctx, u, &c, &head, s.now()); err != nil {
				return err
			}
			entry, counter = head, c
			return nil
		})
	})
	if err != nil {
		return models.QueueEntry{}, err
	}

	s.logger().WithFields(logrus.Fields{
		"entry_id":   entry.ID,
		"token":      entry.Token(),
		"counter_id": counter.ID,
		"priority":   entry.IsPriority,
	}).Info("customer called to counter")
	s.notify(entry, TemplateCalled, &counter)
	return entry, nil
}

// claim binds entry and counter to each other and moves entry to serving.
func (s *Service) claim(ctx context.Context, u *unit, counter *models.Counter, entry *models.QueueEntry, now time.Time) error {
	if err := checkTransition(entry.Status, models.StatusServing); err != nil {
		return errors.WithMessagef(err, "entry %s", entry.ID)
	}
	if !counter.Available() {
		return counterUnavailable(*counter)
	}

	counterID := counter.ID
	entryID := entry.ID
	entry.AssignedCounterID = &counterID
	counter.CurrentQueueEntryID = &entryID
	counter.UpdatedAt = now
	if err := u.tx.UpdateCounter(ctx, *counter); err != nil {
		return errors.Wrap(err, "bind counter")
	}
	return s.transition(ctx, u, entry, models.StatusServing, now)
}

// releaseCounter unbinds a serving entry from its counter.
func (s *Service) releaseCounter(ctx context.Context, u *unit, entry *models.QueueEntry, now time.Time) error {
	if entry.AssignedCounterID == nil {
		return nil
	}
	c, err := u.tx.CounterForUpdate(ctx, *entry.AssignedCounterID)
	if err != nil {
		return errors.Wrap(err, "load bound counter")
	}
	if c.CurrentQueueEntryID != nil && *c.CurrentQueueEntryID == entry.ID {
		c.CurrentQueueEntryID = nil
		c.UpdatedAt = now
		if err := u.tx.UpdateCounter(ctx, c); err != nil {
			return errors.Wrap(err, "release counter")
		}
	}
	entry.AssignedCounterID = nil
	return nil
}

func counterUnavailable(c models.Counter) error {
	if !c.IsActive {
		return errors.Wrapf(ErrCounterUnavailable, "counter %d is inactive", c.ID)
	}
	return errors.Wrapf(ErrCounterUnavailable, "counter %d is serving %s", c.ID, c.CurrentQueueEntryID)
}
