package mysqlstore

import (
	"context"
	"database/sql"

	"backend-loket/internal/models"
	"backend-loket/internal/queue"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const forUpdate = ` FOR UPDATE`

// sqlTx implements queue.Tx. Every *ForUpdate read takes row locks that are
// held until commit or rollback.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) InsertEntry(ctx context.Context, e models.QueueEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO queue_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.CustomerID, e.TokenNumber, e.BusinessDate, string(e.Status), e.IsPriority,
		int64Arg(e.AssignedCounterID), timeArg(e.CalledAt), timeArg(e.ServedAt), e.CreatedAt.UTC(), timeArg(e.UpdatedAt),
	)
	return errors.Wrap(err, "insert queue entry")
}

func (t *sqlTx) EntryForUpdate(ctx context.Context, id uuid.UUID) (models.QueueEntry, error) {
	return getEntry(ctx, t.tx, id, forUpdate)
}

func (t *sqlTx) WaitingForUpdate(ctx context.Context) ([]models.QueueEntry, error) {
	return listEntries(ctx, t.tx,
		`SELECT `+entryColumns+` FROM queue_entries WHERE status = 'waiting' `+waitingOrder+forUpdate)
}

func (t *sqlTx) OpenEntriesForUpdate(ctx context.Context) ([]models.QueueEntry, error) {
	return listEntries(ctx, t.tx,
		`SELECT `+entryColumns+` FROM queue_entries
		WHERE status IN ('waiting', 'serving') ORDER BY created_at ASC, token_number ASC`+forUpdate)
}

func (t *sqlTx) LegacyCompletedForUpdate(ctx context.Context) ([]models.QueueEntry, error) {
	return listEntries(ctx, t.tx,
		`SELECT `+entryColumns+` FROM queue_entries
		WHERE status = 'completed' AND served_at IS NULL ORDER BY created_at ASC`+forUpdate)
}

func (t *sqlTx) UpdateEntry(ctx context.Context, e models.QueueEntry) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE queue_entries
		SET status = ?, assigned_counter_id = ?, called_at = ?, served_at = ?, updated_at = ?
		WHERE id = ?`,
		string(e.Status), int64Arg(e.AssignedCounterID), timeArg(e.CalledAt), timeArg(e.ServedAt),
		timeArg(e.UpdatedAt), e.ID.String(),
	)
	if err != nil {
		return errors.Wrap(err, "update queue entry")
	}
	return requireRow(res, errors.Wrap(queue.ErrEntryNotFound, e.ID.String()))
}

func (t *sqlTx) InsertCounter(ctx context.Context, c *models.Counter) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO counters (name, is_active, current_queue_entry_id, created_at, updated_at)
		VALUES (?, ?, NULL, ?, ?)`,
		c.Name, c.IsActive, c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "insert counter")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "counter id")
	}
	c.ID = id
	return nil
}

func (t *sqlTx) CounterForUpdate(ctx context.Context, id int64) (models.Counter, error) {
	return getCounter(ctx, t.tx, id, forUpdate)
}

func (t *sqlTx) CountersForUpdate(ctx context.Context) ([]models.Counter, error) {
	return listCounters(ctx, t.tx, `SELECT `+counterColumns+` FROM counters ORDER BY id ASC`+forUpdate)
}

func (t *sqlTx) UpdateCounter(ctx context.Context, c models.Counter) error {
	var current any
	if c.CurrentQueueEntryID != nil {
		current = c.CurrentQueueEntryID.String()
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE counters SET name = ?, is_active = ?, current_queue_entry_id = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.IsActive, current, c.UpdatedAt.UTC(), c.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update counter")
	}
	return requireRow(res, errors.Wrapf(queue.ErrCounterNotFound, "counter %d", c.ID))
}

func (t *sqlTx) AppendEvent(ctx context.Context, ev *models.QueueEvent) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO queue_events (id, queue_entry_id, event_type, counter_id, token_number, business_date,
			is_priority, wait_duration_minutes, service_duration_minutes, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID.String(), ev.QueueEntryID.String(), string(ev.EventType), int64Arg(ev.CounterID),
		ev.TokenNumber, ev.BusinessDate, ev.IsPriority,
		intArg(ev.WaitDurationMinutes), intArg(ev.ServiceDurationMinutes), ev.OccurredAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "insert queue event")
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "event seq")
	}
	ev.Seq = seq
	return nil
}

// requireRow reports notFound when an UPDATE matched nothing. The DSN sets
// clientFoundRows, so unchanged rows still count.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
