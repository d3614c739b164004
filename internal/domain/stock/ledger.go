package stock

import (
	"context"

	"github.com/go-faster/errors"
)

// Ledger reserves stock for order lines.
type Ledger struct {
	store Store
}

// NewLedger creates a Ledger backed by store.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Reserve decrements available stock of productID by qty.
//
// The decrement is conditional on the stored quantity, so two callers racing
// on the last units cannot both succeed: the loser gets
// *InsufficientStockError. Callers run Reserve inside the same transaction as
// the order so a later failure rolls the decrement back.
func (l *Ledger) Reserve(ctx context.Context, productID int64, qty int) error {
	rec, err := l.store.GetByProductID(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrapf(err, "get stock for product %d", productID)
	}

	if rec.Available < qty {
		return &InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: rec.Available,
		}
	}

	ok, err := l.store.Decrement(ctx, productID, qty)
	if err != nil {
		return errors.Wrapf(err, "decrement stock for product %d", productID)
	}
	if !ok {
		return &InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: rec.Available,
		}
	}
	return nil
}
