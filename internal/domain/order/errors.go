package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-commerce/internal/domain/product"
)

// ErrEmptyLines is returned when an order has no lines.
var ErrEmptyLines = errors.New("order lines required")

// InvalidQuantityError indicates a line with a quantity below 1.
type InvalidQuantityError struct {
	ProductID int64
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1 for product %d, got %d", e.ProductID, e.Quantity)
}

// InvalidProductIDError indicates a line without a usable product id.
type InvalidProductIDError struct {
	Line int
}

func (e *InvalidProductIDError) Error() string {
	return fmt.Sprintf("line %d: product id must be positive", e.Line)
}

// ProductNotFoundError indicates a line referencing an unknown product.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// Is makes errors.Is(err, product.ErrNotFound) match.
func (e *ProductNotFoundError) Is(target error) bool {
	return target == product.ErrNotFound
}

// InvalidStatusError indicates an unknown status value.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	allowed := make([]string, len(Statuses))
	for i, s := range Statuses {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("invalid order status %q, allowed: %s", e.Value, strings.Join(allowed, ", "))
}
