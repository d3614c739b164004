package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-commerce/internal/domain/customer"
	"github.com/xenking/kart-commerce/internal/domain/discount"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
)

// Statuses lists every valid status.
var Statuses = []Status{StatusPending, StatusCompleted, StatusCancelled, StatusShipped, StatusDelivered}

// ParseStatus converts s, case-insensitively, into a Status.
func ParseStatus(s string) (Status, error) {
	want := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range Statuses {
		if st == want {
			return st, nil
		}
	}
	return "", &InvalidStatusError{Value: s}
}

// Order is a placed customer order. It owns its lines.
type Order struct {
	ID            int64
	CustomerID    int64
	CustomerName  string
	Status        Status
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	Total         decimal.Decimal
	Lines         []Line
	Discounts     []discount.Applied
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Line is one product entry of an order with the price captured at order time.
type Line struct {
	ProductID   int64
	ProductName string
	ProductSKU  string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// Repository defines persistence operations for orders. Create stores the
// order and its lines and assigns ID.
type Repository interface {
	customer.OrderCounter
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]Order, error)
	UpdateStatus(ctx context.Context, id int64, status Status, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

// Transactor runs fn in one unit of work. Repositories called with the ctx
// passed to fn take part in it. A non-nil error from fn rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Publisher announces committed order changes.
type Publisher interface {
	OrderCreated(ctx context.Context, o *Order) error
	OrderStatusChanged(ctx context.Context, o *Order, from Status) error
}
