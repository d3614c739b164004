// Package events publishes committed order changes to Kafka.
package events

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/kart-commerce/internal/domain/order"
)

const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ order.Publisher = (*Publisher)(nil)

// Publisher writes order events keyed by order id, so events of one order
// stay on one partition.
type Publisher struct {
	w   messageWriter
	now func() time.Time
}

// NewPublisher returns a Publisher writing to topic on brokers.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
		},
		now: time.Now,
	}
}

// OrderCreated implements order.Publisher.
func (p *Publisher) OrderCreated(ctx context.Context, o *order.Order) error {
	return p.write(ctx, TypeOrderCreated, o, "")
}

// OrderStatusChanged implements order.Publisher.
func (p *Publisher) OrderStatusChanged(ctx context.Context, o *order.Order, from order.Status) error {
	return p.write(ctx, TypeOrderStatusChanged, o, from)
}

func (p *Publisher) write(ctx context.Context, typ string, o *order.Order, from order.Status) error {
	msg := kafka.Message{
		Key:   strconv.AppendInt(nil, o.ID, 10),
		Value: encodeEvent(uuid.NewString(), typ, o, from, p.now()),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(typ)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write %s for order %d", typ, o.ID)
	}
	return nil
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	return p.w.Close()
}

// encodeEvent builds the envelope. Consumers dedupe redeliveries by event_id.
func encodeEvent(id, typ string, o *order.Order, from order.Status, at time.Time) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("event_id", func(e *jx.Encoder) { e.Str(id) })
		e.Field("type", func(e *jx.Encoder) { e.Str(typ) })
		e.Field("occurred_at", func(e *jx.Encoder) { e.Str(at.UTC().Format(time.RFC3339Nano)) })
		e.Field("order_id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("customer_id", func(e *jx.Encoder) { e.Int64(o.CustomerID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		if from != "" {
			e.Field("previous_status", func(e *jx.Encoder) { e.Str(string(from)) })
		}
		e.Field("subtotal", func(e *jx.Encoder) { e.Str(o.Subtotal.StringFixed(2)) })
		e.Field("discount_total", func(e *jx.Encoder) { e.Str(o.DiscountTotal.StringFixed(2)) })
		e.Field("total", func(e *jx.Encoder) { e.Str(o.Total.StringFixed(2)) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range o.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Int64(l.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						e.Field("unit_price", func(e *jx.Encoder) { e.Str(l.UnitPrice.StringFixed(2)) })
					})
				}
			})
		})
	})
	return e.Bytes()
}
