package notify

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"backend-loket/internal/models"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// EventPublisher forwards committed queue events to the topic exchange,
// routing key "queue.<event_type>".
//
// Publish is called after commit from whichever request committed, so two
// transactions can reach the exchange in either order. Consumers order events
// by the "seq" header (the event log sequence), not by arrival.
type EventPublisher struct {
	pub Publisher
}

func NewEventPublisher(pub Publisher) *EventPublisher {
	return &EventPublisher{pub: pub}
}

// SeqHeader carries QueueEvent.Seq as a decimal string.
const SeqHeader = "seq"

func RoutingKey(t models.EventType) string {
	return "queue." + string(t)
}

// Publish sends one transaction's events in seq order and stops at the first
// failure.
func (p *EventPublisher) Publish(ctx context.Context, events []models.QueueEvent) error {
	for _, ev := range events {
		body, err := json.Marshal(ev)
		if err != nil {
			return errors.Wrap(err, "marshal event")
		}
		msg := persistentJSON(body, ev.OccurredAt)
		msg.MessageId = ev.ID.String()
		msg.Type = string(ev.EventType)
		msg.Headers = amqp.Table{SeqHeader: strconv.FormatInt(ev.Seq, 10)}

		if err := p.pub.PublishWithContext(ctx, EventsExchange, RoutingKey(ev.EventType), false, false, msg); err != nil {
			return errors.Wrapf(err, "publish event seq %d", ev.Seq)
		}
	}
	return nil
}

// EventSeq reads the event log sequence from a delivery's headers.
func EventSeq(headers amqp.Table) (int64, error) {
	raw, ok := headers[SeqHeader]
	if !ok {
		return 0, errors.New("missing seq header")
	}
	str, ok := raw.(string)
	if !ok {
		return 0, errors.Errorf("seq header is %T, want string", raw)
	}
	seq, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "seq header")
	}
	return seq, nil
}

// SortDeliveries orders a batch of consumed deliveries by seq. Deliveries
// without a readable seq header keep their place at the end.
func SortDeliveries(ds []amqp.Delivery) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, errA := EventSeq(ds[i].Headers)
		b, errB := EventSeq(ds[j].Headers)
		switch {
		case errA != nil:
			return false
		case errB != nil:
			return true
		}
		return a < b
	})
}
