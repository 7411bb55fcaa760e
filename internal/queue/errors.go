package queue

import (
	"backend-loket/internal/models"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidTransition - transisi tidak ada di tabel status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrCounterUnavailable - loket sedang melayani atau tidak aktif.
	ErrCounterUnavailable = errors.New("counter unavailable")
	// ErrAlreadyTerminal - complete/cancel pada entry yang sudah selesai.
	ErrAlreadyTerminal = errors.New("queue entry already terminal")
	// ErrNoWaitingCustomers is an expected empty outcome of AssignNext, not a failure.
	ErrNoWaitingCustomers = errors.New("no waiting customers")
	// ErrConcurrencyConflict - lock timeout / deadlock, nothing was committed.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	ErrEntryNotFound   = errors.New("queue entry not found")
	ErrCounterNotFound = errors.New("counter not found")
	ErrNotWaiting      = errors.New("queue entry is not waiting")
	ErrInvalidInput    = errors.New("invalid input")
)

// checkTransition maps an illegal move to its error kind.
func checkTransition(from, to models.Status) error {
	if from.CanTransitionTo(to) {
		return nil
	}
	if from.IsTerminal() && to.IsTerminal() {
		return errors.Wrapf(ErrAlreadyTerminal, "%s -> %s", from, to)
	}
	return errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
}
