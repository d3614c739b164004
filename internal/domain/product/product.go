package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateSKU is returned when another product already uses the SKU.
	ErrDuplicateSKU = errors.New("product sku already exists")
	// ErrInUse is returned when deleting a product that orders still reference.
	ErrInUse = errors.New("product is referenced by existing orders")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID          int64
	Name        string
	Description string
	Category    string
	SKU         string
	Price       decimal.Decimal
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter narrows List results. Zero value lists everything.
type Filter struct {
	// Name matches a case-insensitive substring of the product name.
	Name       string
	Category   string
	ActiveOnly bool
}

// Reader is the read side of the catalog used by order placement.
type Reader interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	Reader
	List(ctx context.Context, f Filter) ([]Product, error)
	ExistsBySKU(ctx context.Context, sku string) (bool, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
}
