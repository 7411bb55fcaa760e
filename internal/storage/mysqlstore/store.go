// Package mysqlstore is the MySQL implementation of the queue store, token
// sequence, customer directory and staff accounts.
package mysqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"backend-loket/internal/models"
	"backend-loket/internal/queue"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// Store runs queue transactions at READ COMMITTED with row locks.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx queue.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return mapError(errors.Wrap(err, "begin tx"))
	}
	// no-op after Commit
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapError(errors.Wrap(err, "commit tx"))
	}
	return nil
}

// mapError turns lock timeouts, deadlocks and expired contexts into
// queue.ErrConcurrencyConflict. Anything else is returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && (myErr.Number == errDeadlock || myErr.Number == errLockWaitTimeout) {
		return errors.Wrap(queue.ErrConcurrencyConflict, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Wrap(queue.ErrConcurrencyConflict, err.Error())
	}
	return err
}

/*
|--------------------------------------------------------------------------
| Reads
|--------------------------------------------------------------------------
*/

const entryColumns = `id, customer_id, token_number, business_date, status, is_priority,
	assigned_counter_id, called_at, served_at, created_at, updated_at`

const counterColumns = `id, name, is_active, current_queue_entry_id, created_at, updated_at`

const eventColumns = `seq, id, queue_entry_id, event_type, counter_id, token_number, business_date,
	is_priority, wait_duration_minutes, service_duration_minutes, occurred_at`

// waitingOrder mirrors queue.Less so the locked rows come back in serve order.
const waitingOrder = `ORDER BY is_priority DESC, created_at ASC, token_number ASC`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (models.QueueEntry, error) {
	return getEntry(ctx, s.db, id, "")
}

func (s *Store) ListWaiting(ctx context.Context) ([]models.QueueEntry, error) {
	return listEntries(ctx, s.db, `SELECT `+entryColumns+` FROM queue_entries WHERE status = 'waiting' `+waitingOrder)
}

func (s *Store) ListEntries(ctx context.Context, businessDate string) ([]models.QueueEntry, error) {
	return listEntries(ctx, s.db,
		`SELECT `+entryColumns+` FROM queue_entries WHERE business_date = ? ORDER BY token_number ASC`,
		businessDate)
}

func (s *Store) GetCounter(ctx context.Context, id int64) (models.Counter, error) {
	return getCounter(ctx, s.db, id, "")
}

func (s *Store) ListCounters(ctx context.Context) ([]models.Counter, error) {
	return listCounters(ctx, s.db, `SELECT `+counterColumns+` FROM counters ORDER BY id ASC`)
}

func (s *Store) QueryEvents(ctx context.Context, f queue.EventFilter) ([]models.QueueEvent, error) {
	query, args := buildEventQuery(f)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	defer rows.Close()

	events := []models.QueueEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, errors.Wrap(rows.Err(), "iterate events")
}

func buildEventQuery(f queue.EventFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if !f.From.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where = append(where, "occurred_at < ?")
		args = append(args, f.To.UTC())
	}
	if f.EntryID != nil {
		where = append(where, "queue_entry_id = ?")
		args = append(args, f.EntryID.String())
	}
	if f.CounterID != nil {
		where = append(where, "counter_id = ?")
		args = append(args, *f.CounterID)
	}
	if f.Priority != nil {
		where = append(where, "is_priority = ?")
		args = append(args, *f.Priority)
	}
	if len(f.Types) > 0 {
		marks := make([]string, len(f.Types))
		for i, t := range f.Types {
			marks[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, "event_type IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT ` + eventColumns + ` FROM queue_events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	return query + ` ORDER BY seq ASC`, args
}

func getEntry(ctx context.Context, q queryer, id uuid.UUID, lock string) (models.QueueEntry, error) {
	row := q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM queue_entries WHERE id = ?`+lock, id.String())
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.QueueEntry{}, errors.Wrap(queue.ErrEntryNotFound, id.String())
	}
	return e, err
}

func listEntries(ctx context.Context, q queryer, query string, args ...any) ([]models.QueueEntry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query entries")
	}
	defer rows.Close()

	entries := []models.QueueEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "iterate entries")
}

func getCounter(ctx context.Context, q queryer, id int64, lock string) (models.Counter, error) {
	row := q.QueryRowContext(ctx, `SELECT `+counterColumns+` FROM counters WHERE id = ?`+lock, id)
	c, err := scanCounter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Counter{}, errors.Wrapf(queue.ErrCounterNotFound, "counter %d", id)
	}
	return c, err
}

func listCounters(ctx context.Context, q queryer, query string) ([]models.Counter, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "query counters")
	}
	defer rows.Close()

	counters := []models.Counter{}
	for rows.Next() {
		c, err := scanCounter(rows)
		if err != nil {
			return nil, err
		}
		counters = append(counters, c)
	}
	return counters, errors.Wrap(rows.Err(), "iterate counters")
}

func scanEntry(row scanner) (models.QueueEntry, error) {
	var (
		e                  models.QueueEntry
		id                 string
		status             string
		counterID          sql.NullInt64
		calledAt, servedAt sql.NullTime
		updatedAt          sql.NullTime
	)
	err := row.Scan(&id, &e.CustomerID, &e.TokenNumber, &e.BusinessDate, &status, &e.IsPriority,
		&counterID, &calledAt, &servedAt, &e.CreatedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, errors.Wrap(err, "scan entry")
	}

	if e.ID, err = uuid.Parse(id); err != nil {
		return e, errors.Wrapf(err, "entry id %q", id)
	}
	if e.Status, err = models.ParseStatus(status); err != nil {
		return e, err
	}
	e.AssignedCounterID = nullInt64(counterID)
	e.CalledAt = nullTime(calledAt)
	e.ServedAt = nullTime(servedAt)
	e.UpdatedAt = nullTime(updatedAt)
	return e, nil
}

func scanCounter(row scanner) (models.Counter, error) {
	var (
		c       models.Counter
		current sql.NullString
	)
	err := row.Scan(&c.ID, &c.Name, &c.IsActive, &current, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c, err
		}
		return c, errors.Wrap(err, "scan counter")
	}
	if current.Valid {
		id, err := uuid.Parse(current.String)
		if err != nil {
			return c, errors.Wrapf(err, "counter %d current entry", c.ID)
		}
		c.CurrentQueueEntryID = &id
	}
	return c, nil
}

func scanEvent(row scanner) (models.QueueEvent, error) {
	var (
		ev                models.QueueEvent
		id, entryID, kind string
		counterID         sql.NullInt64
		wait, service     sql.NullInt64
	)
	err := row.Scan(&ev.Seq, &id, &entryID, &kind, &counterID, &ev.TokenNumber, &ev.BusinessDate,
		&ev.IsPriority, &wait, &service, &ev.OccurredAt)
	if err != nil {
		return ev, errors.Wrap(err, "scan event")
	}
	if ev.ID, err = uuid.Parse(id); err != nil {
		return ev, errors.Wrapf(err, "event id %q", id)
	}
	if ev.QueueEntryID, err = uuid.Parse(entryID); err != nil {
		return ev, errors.Wrapf(err, "event entry id %q", entryID)
	}
	if ev.EventType, err = models.ParseEventType(kind); err != nil {
		return ev, err
	}
	ev.CounterID = nullInt64(counterID)
	ev.WaitDurationMinutes = nullInt(wait)
	ev.ServiceDurationMinutes = nullInt(service)
	return ev, nil
}

func nullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func int64Arg(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func intArg(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
