package queue

import (
	"context"

	"backend-loket/internal/models"

	"github.com/pkg/errors"
)

// ErrCustomerNotFound is returned by directories that do not know a customer.
var ErrCustomerNotFound = errors.New("customer not found")

// StaticDirectory is an in-memory Directory keyed by customer id.
type StaticDirectory map[string]models.Customer

func (d StaticDirectory) Lookup(_ context.Context, customerID string) (models.Customer, error) {
	c, ok := d[customerID]
	if !ok {
		return models.Customer{}, errors.Wrapf(ErrCustomerNotFound, "customer %q", customerID)
	}
	if c.ID == "" {
		c.ID = customerID
	}
	return c, nil
}
