package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Notification is the message a delivery worker turns into SMS/WhatsApp text.
type Notification struct {
	CustomerID string            `json:"customer_id"`
	Template   string            `json:"template"`
	Vars       map[string]string `json:"vars"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Dispatcher puts notifications on the durable notifications queue.
type Dispatcher struct {
	pub Publisher
	log *log.Entry
	now func() time.Time
}

func NewDispatcher(pub Publisher, logger *log.Logger) *Dispatcher {
	return &Dispatcher{pub: pub, log: logger.WithField("component", "notify"), now: time.Now}
}

func (d *Dispatcher) Notify(ctx context.Context, customerID, template string, vars map[string]string) error {
	n := Notification{CustomerID: customerID, Template: template, Vars: vars, CreatedAt: d.now()}
	body, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "marshal notification")
	}

	// default exchange, routed straight to the queue
	if err := d.pub.PublishWithContext(ctx, "", NotificationsQueue, false, false, persistentJSON(body, n.CreatedAt)); err != nil {
		return errors.Wrapf(err, "publish %s notification", template)
	}
	d.log.WithFields(log.Fields{"customer_id": customerID, "template": template}).Debug("notification queued")
	return nil
}
