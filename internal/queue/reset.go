package queue

import (
	"context"
	"time"

	"backend-loket/internal/models"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ResetDay force-closes every entry still waiting or serving: serving entries
// are completed, waiting entries are cancelled, and each gets a reset event
// after its terminal event. All counters end up empty. Running it again
// right away finds nothing open and returns an empty report.
//
// No AssignNext runs while a reset is in progress.
func (s *Service) ResetDay(ctx context.Context, effectiveDate string) (models.ResetReport, error) {
	if _, err := time.ParseInLocation(DateLayout, effectiveDate, s.loc); err != nil {
		return models.ResetReport{}, errors.Wrapf(ErrInvalidInput, "effective date %q", effectiveDate)
	}

	s.barrier.Lock()
	defer s.barrier.Unlock()

	var report models.ResetReport
	err := s.withRetry(ctx, "reset_day", func() error {
		return s.inTx(ctx, func(u *unit) error {
			now := s.now()
			report = models.ResetReport{EffectiveDate: effectiveDate, ResetAt: now, Entries: []models.QueueEntry{}}

			// counters before entries, same lock order as AssignNext
			counters, err := u.tx.CountersForUpdate(ctx)
			if err != nil {
				return errors.Wrap(err, "lock counters")
			}
			open, err := u.tx.OpenEntriesForUpdate(ctx)
			if err != nil {
				return errors.Wrap(err, "lock open entries")
			}

			for i := range open {
				e := open[i]
				next := models.StatusCancelled
				if e.Status == models.StatusServing {
					next = models.StatusCompleted
				}
				counterID := cloneInt64(e.AssignedCounterID)
				if err := s.transition(ctx, u, &e, next, now); err != nil {
					return err
				}
				ev := newEvent(e, models.EventReset, now)
				ev.CounterID = counterID
				if err := s.record(ctx, u, ev); err != nil {
					return err
				}

				if next == models.StatusCompleted {
					report.CompletedForced++
				} else {
					report.CancelledForced++
				}
				report.Entries = append(report.Entries, e)
			}

			for _, c := range counters {
				if c.CurrentQueueEntryID == nil {
					continue
				}
				// re-read: releases above may already have cleared it
				current, err := u.tx.CounterForUpdate(ctx, c.ID)
				if err != nil {
					return err
				}
				if current.CurrentQueueEntryID == nil {
					continue
				}
				current.CurrentQueueEntryID = nil
				current.UpdatedAt = now
				if err := u.tx.UpdateCounter(ctx, current); err != nil {
					return errors.Wrap(err, "clear counter")
				}
				cid := current.ID
				u.changes = append(u.changes, Change{CounterID: &cid})
			}
			return nil
		})
	})
	if err != nil {
		return models.ResetReport{}, err
	}

	log := s.logger().WithFields(logrus.Fields{
		"effective_date":   effectiveDate,
		"completed_forced": report.CompletedForced,
		"cancelled_forced": report.CancelledForced,
	})
	log.Info("daily reset finished")

	if err := s.resetSequencer(ctx, effectiveDate); err != nil {
		return report, err
	}

	entries, err := s.store.ListEntries(ctx, effectiveDate)
	if err != nil {
		return report, errors.Wrap(err, "load entries for snapshot")
	}
	snap := Snapshot{Report: report, Entries: entries, TakenAt: report.ResetAt}
	if err := s.archive.SaveSnapshot(ctx, snap); err != nil {
		log.WithError(err).Error("reset snapshot not archived")
		return report, errors.Wrap(err, "archive reset snapshot")
	}
	return report, nil
}

// resetSequencer starts the following business day at token 1. A day that
// has already begun is left alone so its issued tokens stay unique.
func (s *Service) resetSequencer(ctx context.Context, effectiveDate string) error {
	day, err := time.ParseInLocation(DateLayout, effectiveDate, s.loc)
	if err != nil {
		return errors.Wrapf(ErrInvalidInput, "effective date %q", effectiveDate)
	}
	next := day.AddDate(0, 0, 1).Format(DateLayout)
	if next <= s.Today() {
		return nil
	}
	if err := s.seq.Reset(ctx, next); err != nil {
		return errors.Wrapf(err, "reset token sequence for %s", next)
	}
	return nil
}

// BackfillServedAt fills served_at from updated_at for completed rows written
// before served_at existed. Rows that already have served_at, or have no
// updated_at, are not touched. It is not a status transition and records no
// events.
func (s *Service) BackfillServedAt(ctx context.Context) (int, error) {
	var n int
	err := s.withRetry(ctx, "backfill_served_at", func() error {
		n = 0
		return s.inTx(ctx, func(u *unit) error {
			rows, err := u.tx.LegacyCompletedForUpdate(ctx)
			if err != nil {
				return errors.Wrap(err, "load legacy rows")
			}
			for _, e := range rows {
				if e.ServedAt != nil || e.UpdatedAt == nil || e.Status != models.StatusCompleted {
					continue
				}
				servedAt := *e.UpdatedAt
				e.ServedAt = &servedAt
				if err := u.tx.UpdateEntry(ctx, e); err != nil {
					return errors.Wrapf(err, "backfill entry %s", e.ID)
				}
				n++
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	s.logger().WithField("rows", n).Info("served_at backfill finished")
	return n, nil
}
