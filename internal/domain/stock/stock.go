// Package stock holds per-product inventory records and the ledger that
// reserves stock for order lines.
package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when no stock record exists for a product or id.
	ErrNotFound = errors.New("stock record not found")
	// ErrInsufficientStock is matched by *InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrAlreadyExists is returned when a product already has a stock record.
	ErrAlreadyExists = errors.New("stock record already exists for product")
	// ErrNegativeQuantity is returned when a quantity field is below zero.
	ErrNegativeQuantity = errors.New("stock quantities must not be negative")
)

// Record is the one-to-one inventory state of a product.
type Record struct {
	ID        int64
	ProductID int64
	Available int
	Reserved  int
	Minimum   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLowStock reports whether available stock is at or below the minimum.
func (r Record) IsLowStock() bool {
	return r.Available <= r.Minimum
}

// Total is available plus reserved units.
func (r Record) Total() int {
	return r.Available + r.Reserved
}

// InsufficientStockError reports a line that asked for more than is available.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Is makes errors.Is(err, ErrInsufficientStock) match.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Store is the storage contract the Ledger needs.
type Store interface {
	GetByProductID(ctx context.Context, productID int64) (*Record, error)
	// Decrement subtracts qty from available only if at least qty units are
	// available at write time. It reports whether the row was updated.
	Decrement(ctx context.Context, productID int64, qty int) (bool, error)
}

// Repository is the full inventory persistence contract.
type Repository interface {
	Store
	GetByID(ctx context.Context, id int64) (*Record, error)
	List(ctx context.Context) ([]Record, error)
	Create(ctx context.Context, r *Record) error
	Update(ctx context.Context, r *Record) error
	Delete(ctx context.Context, id int64) error
}
