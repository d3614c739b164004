package events

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-commerce/internal/domain/order"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func testOrder() *order.Order {
	return &order.Order{
		ID:            7,
		CustomerID:    3,
		Status:        order.StatusShipped,
		Subtotal:      decimal.RequireFromString("200"),
		DiscountTotal: decimal.RequireFromString("20"),
		Total:         decimal.RequireFromString("180"),
		Lines: []order.Line{
			{ProductID: 10, Quantity: 2, UnitPrice: decimal.RequireFromString("100")},
		},
	}
}

func TestPublisher_OrderStatusChanged(t *testing.T) {
	w := &fakeWriter{}
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	p := &Publisher{w: w, now: func() time.Time { return at }}

	require.NoError(t, p.OrderStatusChanged(context.Background(), testOrder(), order.StatusPending))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "7", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, TypeOrderStatusChanged, string(msg.Headers[0].Value))

	fields := map[string]string{}
	var lines int
	err := jx.DecodeBytes(msg.Value).Obj(func(d *jx.Decoder, key string) error {
		switch d.Next() {
		case jx.String:
			v, err := d.Str()
			fields[key] = v
			return err
		case jx.Number:
			n, err := d.Num()
			fields[key] = n.String()
			return err
		case jx.Array:
			return d.Arr(func(d *jx.Decoder) error {
				lines++
				return d.Skip()
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)

	assert.Equal(t, TypeOrderStatusChanged, fields["type"])
	assert.Equal(t, "7", fields["order_id"])
	assert.Equal(t, "3", fields["customer_id"])
	assert.Equal(t, "SHIPPED", fields["status"])
	assert.Equal(t, "PENDING", fields["previous_status"])
	assert.Equal(t, "180.00", fields["total"])
	assert.Equal(t, "2025-06-15T12:00:00Z", fields["occurred_at"])
	assert.Equal(t, 1, lines)

	_, err = uuid.Parse(fields["event_id"])
	require.NoError(t, err)
}

func TestPublisher_OrderCreatedOmitsPreviousStatus(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{w: w, now: time.Now}

	require.NoError(t, p.OrderCreated(context.Background(), testOrder()))
	require.Len(t, w.msgs, 1)
	assert.NotContains(t, string(w.msgs[0].Value), "previous_status")
}

func TestPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("no brokers")}
	p := &Publisher{w: w, now: time.Now}

	err := p.OrderCreated(context.Background(), testOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order.created")
}
