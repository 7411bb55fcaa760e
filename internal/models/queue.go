package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status - status partisipasi antrian. Nilai di luar konstanta di bawah ditolak.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusServing   Status = "serving"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// transitions is the only place where legal status moves are defined.
var transitions = map[Status][]Status{
	StatusWaiting: {StatusServing, StatusCancelled},
	StatusServing: {StatusCompleted, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusServing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown queue status %q", v)
	}
	return s, nil
}

// EventType - jenis kejadian di queue_events
type EventType string

const (
	EventJoined    EventType = "joined"
	EventCalled    EventType = "called"
	EventCompleted EventType = "completed"
	EventCancelled EventType = "cancelled"
	EventReset     EventType = "reset"
)

func (e EventType) Valid() bool {
	switch e {
	case EventJoined, EventCalled, EventCompleted, EventCancelled, EventReset:
		return true
	}
	return false
}

func ParseEventType(v string) (EventType, error) {
	e := EventType(v)
	if !e.Valid() {
		return "", fmt.Errorf("unknown event type %q", v)
	}
	return e, nil
}

// QueueEntry - satu customer dalam antrian hari ini
type QueueEntry struct {
	ID                uuid.UUID  `json:"id"`
	CustomerID        string     `json:"customer_id"`
	TokenNumber       int        `json:"token_number"`
	BusinessDate      string     `json:"business_date"` // YYYY-MM-DD
	Status            Status     `json:"status"`
	IsPriority        bool       `json:"is_priority"`
	AssignedCounterID *int64     `json:"assigned_counter_id"`
	CalledAt          *time.Time `json:"called_at"`
	ServedAt          *time.Time `json:"served_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at"`
}

// Token returns the display form, e.g. #007.
func (e QueueEntry) Token() string {
	return FormatToken(e.TokenNumber)
}

func FormatToken(n int) string {
	return fmt.Sprintf("#%03d", n)
}

// Counter - loket pelayanan
type Counter struct {
	ID                  int64      `json:"id"`
	Name                string     `json:"name"`
	IsActive            bool       `json:"is_active"`
	CurrentQueueEntryID *uuid.UUID `json:"current_queue_entry_id"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Available reports whether the counter may claim a new customer.
func (c Counter) Available() bool {
	return c.IsActive && c.CurrentQueueEntryID == nil
}

// QueueEvent - append-only, tidak pernah diubah atau dihapus
type QueueEvent struct {
	ID                     uuid.UUID `json:"id"`
	Seq                    int64     `json:"seq"`
	QueueEntryID           uuid.UUID `json:"queue_entry_id"`
	EventType              EventType `json:"event_type"`
	CounterID              *int64    `json:"counter_id"`
	TokenNumber            int       `json:"token_number"`
	BusinessDate           string    `json:"business_date"`
	IsPriority             bool      `json:"is_priority"`
	WaitDurationMinutes    *int      `json:"wait_duration_minutes"`
	ServiceDurationMinutes *int      `json:"service_duration_minutes"`
	OccurredAt             time.Time `json:"occurred_at"`
}

// ResetReport - hasil reset harian
type ResetReport struct {
	EffectiveDate   string       `json:"effective_date"`
	CompletedForced int          `json:"completed_forced"`
	CancelledForced int          `json:"cancelled_forced"`
	ResetAt         time.Time    `json:"reset_at"`
	Entries         []QueueEntry `json:"entries"`
}

func (r ResetReport) Empty() bool {
	return r.CompletedForced == 0 && r.CancelledForced == 0
}

// Customer - data dari customer directory
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}
