package queue

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Scheduler runs ResetDay once a day at the closing time.
type Scheduler struct {
	svc     *Service
	openAt  string // HH:MM in the service location
	closeAt string
}

// NewScheduler takes the opening and closing clock of the service window.
// A closing time at or before the opening time means the window runs past
// midnight.
func NewScheduler(svc *Service, openAt, closeAt string) (*Scheduler, error) {
	for name, v := range map[string]string{"open": openAt, "close": closeAt} {
		if _, err := time.Parse("15:04", v); err != nil || len(v) != 5 {
			return nil, errors.Wrapf(ErrInvalidInput, "%s time %q", name, v)
		}
	}
	return &Scheduler{svc: svc, openAt: openAt, closeAt: closeAt}, nil
}

func (s *Scheduler) overnight() bool { return s.closeAt <= s.openAt }

// nextRun is the first closing time strictly after now.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	clock, _ := time.Parse("15:04", s.closeAt)
	local := now.In(s.svc.loc)
	run := time.Date(local.Year(), local.Month(), local.Day(), clock.Hour(), clock.Minute(), 0, 0, s.svc.loc)
	if !run.After(local) {
		run = run.AddDate(0, 0, 1)
	}
	return run
}

// effectiveDate is the business date of the session closing at run, i.e. the
// date it opened on.
func (s *Scheduler) effectiveDate(run time.Time) string {
	local := run.In(s.svc.loc)
	if s.overnight() {
		local = local.AddDate(0, 0, -1)
	}
	return BusinessDate(local, s.svc.loc)
}

// Run blocks until ctx is done. A failed reset is logged and retried at the
// next closing time; the operator can also run it by hand.
func (s *Scheduler) Run(ctx context.Context) {
	log := s.svc.logger().WithFields(logrus.Fields{"open_at": s.openAt, "close_at": s.closeAt})
	for {
		next := s.nextRun(s.svc.now())
		log.WithField("next_run", next.Format(time.RFC3339)).Info("daily reset scheduled")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		date := s.effectiveDate(next)
		report, err := s.svc.ResetDay(ctx, date)
		if err != nil {
			log.WithField("effective_date", date).WithError(err).Error("scheduled reset failed")
			continue
		}
		log.WithFields(logrus.Fields{
			"effective_date":   date,
			"completed_forced": report.CompletedForced,
			"cancelled_forced": report.CancelledForced,
		}).Info("scheduled reset done")
	}
}
