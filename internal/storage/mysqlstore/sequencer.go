package mysqlstore

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Sequencer issues token numbers from the token_sequences table. It is used
// when Redis is not configured.
type Sequencer struct {
	db *sql.DB
}

func NewSequencer(db *sql.DB) *Sequencer {
	return &Sequencer{db: db}
}

// Next increments the day's row atomically; LAST_INSERT_ID(expr) hands the
// new value back on the same connection.
func (s *Sequencer) Next(ctx context.Context, businessDate string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO token_sequences (business_date, value) VALUES (?, LAST_INSERT_ID(1))
		ON DUPLICATE KEY UPDATE value = LAST_INSERT_ID(value + 1)`,
		businessDate,
	)
	if err != nil {
		return 0, mapError(errors.Wrap(err, "next token"))
	}
	n, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "read token")
	}
	return int(n), nil
}

func (s *Sequencer) Reset(ctx context.Context, businessDate string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM token_sequences WHERE business_date = ?`, businessDate)
	return errors.Wrap(err, "reset token sequence")
}
