package order

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/kart-commerce/internal/domain/customer"
	"github.com/xenking/kart-commerce/internal/domain/stock"
)

type serviceMetrics struct {
	createdTotal   metric.Int64Counter
	rejectedTotal  metric.Int64Counter
	discountsTotal metric.Int64Counter
	discountAmount metric.Float64Counter
}

func newServiceMetrics(mp metric.MeterProvider) (*serviceMetrics, error) {
	meter := mp.Meter("kart.order")

	var (
		m   serviceMetrics
		err error
	)
	if m.createdTotal, err = meter.Int64Counter("kart.orders.created",
		metric.WithDescription("Orders placed successfully"),
	); err != nil {
		return nil, err
	}
	if m.rejectedTotal, err = meter.Int64Counter("kart.orders.rejected",
		metric.WithDescription("Order placements rejected, by reason"),
	); err != nil {
		return nil, err
	}
	if m.discountsTotal, err = meter.Int64Counter("kart.orders.discounts",
		metric.WithDescription("Discount rules applied, by kind"),
	); err != nil {
		return nil, err
	}
	if m.discountAmount, err = meter.Float64Counter("kart.orders.discount_amount",
		metric.WithDescription("Sum of discount amounts, by kind"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *serviceMetrics) created(ctx context.Context, o *Order) {
	m.createdTotal.Add(ctx, 1)
	for _, d := range o.Discounts {
		kind := metric.WithAttributes(attribute.String("kind", string(d.Kind)))
		m.discountsTotal.Add(ctx, 1, kind)
		m.discountAmount.Add(ctx, d.Amount.InexactFloat64(), kind)
	}
}

func (m *serviceMetrics) rejected(ctx context.Context, err error) {
	m.rejectedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", rejectReason(err))))
}

func rejectReason(err error) string {
	var (
		qtyErr *InvalidQuantityError
		pidErr *InvalidProductIDError
		pnfErr *ProductNotFoundError
	)
	switch {
	case errors.Is(err, ErrEmptyLines), errors.As(err, &qtyErr), errors.As(err, &pidErr):
		return "invalid_input"
	case errors.Is(err, stock.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, customer.ErrNotFound), errors.As(err, &pnfErr), errors.Is(err, stock.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
