package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-commerce/internal/domain/customer"
	"github.com/xenking/kart-commerce/internal/domain/discount"
	"github.com/xenking/kart-commerce/internal/domain/product"
	"github.com/xenking/kart-commerce/internal/domain/stock"
)

// LineRequest is one requested product and quantity.
type LineRequest struct {
	ProductID int64
	Quantity  int
}

// CreateOrderRequest holds the input for placing an order.
type CreateOrderRequest struct {
	CustomerID          int64
	Lines               []LineRequest
	ApplyRandomDiscount bool
}

func (r CreateOrderRequest) validate() error {
	if len(r.Lines) == 0 {
		return ErrEmptyLines
	}
	for i, l := range r.Lines {
		if l.ProductID <= 0 {
			return &InvalidProductIDError{Line: i + 1}
		}
		if l.Quantity < 1 {
			return &InvalidQuantityError{ProductID: l.ProductID, Quantity: l.Quantity}
		}
	}
	return nil
}

// StockReserver reserves stock for a line.
type StockReserver interface {
	Reserve(ctx context.Context, productID int64, qty int) error
}

// FrequencyClassifier decides loyalty eligibility.
type FrequencyClassifier interface {
	IsFrequent(ctx context.Context, customerID int64, minOrders, windowDays int) (bool, error)
}

// Deps are the collaborators of Service. Publisher, TracerProvider and
// MeterProvider are optional.
type Deps struct {
	Customers  customer.Reader
	Products   product.Reader
	Stock      StockReserver
	Classifier FrequencyClassifier
	Discounts  *discount.Evaluator
	Orders     Repository
	Tx         Transactor
	Publisher  Publisher

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Service encapsulates order placement and order management.
type Service struct {
	customers  customer.Reader
	products   product.Reader
	stock      StockReserver
	classifier FrequencyClassifier
	discounts  *discount.Evaluator
	orders     Repository
	tx         Transactor
	publisher  Publisher
	now        func() time.Time

	tracer  trace.Tracer
	metrics *serviceMetrics
}

// NewService creates an order Service.
func NewService(d Deps) (*Service, error) {
	if d.TracerProvider == nil {
		d.TracerProvider = tracenoop.NewTracerProvider()
	}
	if d.MeterProvider == nil {
		d.MeterProvider = metricnoop.NewMeterProvider()
	}
	m, err := newServiceMetrics(d.MeterProvider)
	if err != nil {
		return nil, errors.Wrap(err, "order metrics")
	}
	return &Service{
		customers:  d.Customers,
		products:   d.Products,
		stock:      d.Stock,
		classifier: d.Classifier,
		discounts:  d.Discounts,
		orders:     d.Orders,
		tx:         d.Tx,
		publisher:  d.Publisher,
		now:        time.Now,
		tracer:     d.TracerProvider.Tracer("kart.order"),
		metrics:    m,
	}, nil
}

// CreateOrder validates the request, reserves stock for every line, applies
// the discount stack and persists the order, all in one transaction. Any
// failure leaves stock and orders untouched.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Create",
		trace.WithAttributes(
			attribute.Int64("customer.id", req.CustomerID),
			attribute.Int("order.lines", len(req.Lines)),
		),
	)
	defer span.End()

	if err := req.validate(); err != nil {
		s.metrics.rejected(ctx, err)
		return nil, err
	}

	var o *Order
	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.assemble(ctx, req)
		return err
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order")
		s.metrics.rejected(ctx, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", o.ID))
	s.metrics.created(ctx, o)

	if s.publisher != nil {
		if err := s.publisher.OrderCreated(ctx, o); err != nil {
			zctx.From(ctx).Warn("Publish order created failed",
				zap.Int64("order_id", o.ID),
				zap.Error(err),
			)
		}
	}
	return o, nil
}

// assemble runs inside the transaction.
func (s *Service) assemble(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	c, err := s.customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get customer %d", req.CustomerID)
	}

	lines := make([]Line, 0, len(req.Lines))
	subtotal := decimal.Zero
	for _, lr := range req.Lines {
		p, err := s.products.GetByID(ctx, lr.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, &ProductNotFoundError{ProductID: lr.ProductID}
			}
			return nil, errors.Wrapf(err, "get product %d", lr.ProductID)
		}

		if err := s.stock.Reserve(ctx, p.ID, lr.Quantity); err != nil {
			if errors.Is(err, stock.ErrNotFound) || errors.Is(err, stock.ErrInsufficientStock) {
				return nil, err
			}
			return nil, errors.Wrapf(err, "reserve product %d", p.ID)
		}

		lineSubtotal := p.Price.Mul(decimal.NewFromInt(int64(lr.Quantity)))
		lines = append(lines, Line{
			ProductID:   p.ID,
			ProductName: p.Name,
			ProductSKU:  p.SKU,
			Quantity:    lr.Quantity,
			UnitPrice:   p.Price,
			Subtotal:    lineSubtotal,
		})
		subtotal = subtotal.Add(lineSubtotal)
	}

	cfg := s.discounts.Config()
	frequent, err := s.classifier.IsFrequent(ctx, c.ID, cfg.FrequentMinOrders, cfg.FrequentWindowDays)
	if err != nil {
		return nil, errors.Wrap(err, "classify customer")
	}

	now := s.now()
	res := s.discounts.Apply(subtotal, discount.Context{
		Now:              now,
		OptInRandom:      req.ApplyRandomDiscount,
		FrequentCustomer: frequent,
	})

	o := &Order{
		CustomerID:    c.ID,
		CustomerName:  c.Username,
		Status:        StatusPending,
		Subtotal:      res.Subtotal,
		DiscountTotal: res.DiscountTotal,
		Total:         res.Total,
		Lines:         lines,
		Discounts:     res.Applied,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// GetOrder returns an order by id.
func (s *Service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// ListOrders returns all orders.
func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

// ListOrdersByCustomer returns the orders of an existing customer.
func (s *Service) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]Order, error) {
	if _, err := s.customers.GetByID(ctx, customerID); err != nil {
		return nil, err
	}
	return s.orders.ListByCustomer(ctx, customerID)
}

// UpdateOrderStatus sets the status of an order. Any valid status may follow
// any other.
func (s *Service) UpdateOrderStatus(ctx context.Context, id int64, status string) (*Order, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}

	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := o.Status
	now := s.now()
	if err := s.orders.UpdateStatus(ctx, id, st, now); err != nil {
		return nil, errors.Wrapf(err, "update status of order %d", id)
	}
	o.Status = st
	o.UpdatedAt = now

	if s.publisher != nil && from != st {
		if err := s.publisher.OrderStatusChanged(ctx, o, from); err != nil {
			zctx.From(ctx).Warn("Publish order status failed",
				zap.Int64("order_id", o.ID),
				zap.Error(err),
			)
		}
	}
	return o, nil
}

// DeleteOrder removes an order and its lines.
func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	return s.orders.Delete(ctx, id)
}
