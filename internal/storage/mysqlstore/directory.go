package mysqlstore

import (
	"context"
	"database/sql"

	"backend-loket/internal/models"
	"backend-loket/internal/queue"

	"github.com/pkg/errors"
)

// Directory reads customer display data from the customers table.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) Lookup(ctx context.Context, customerID string) (models.Customer, error) {
	var c models.Customer
	err := d.db.QueryRowContext(ctx,
		`SELECT id, name, phone FROM customers WHERE id = ?`, customerID,
	).Scan(&c.ID, &c.Name, &c.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Customer{}, errors.Wrapf(queue.ErrCustomerNotFound, "customer %q", customerID)
	}
	if err != nil {
		return models.Customer{}, errors.Wrap(err, "lookup customer")
	}
	return c, nil
}
