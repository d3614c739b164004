package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Classifier decides whether a customer qualifies as frequent.
type Classifier struct {
	orders OrderCounter
	now    func() time.Time
}

// NewClassifier creates a Classifier counting orders through orders.
func NewClassifier(orders OrderCounter) *Classifier {
	return &Classifier{orders: orders, now: time.Now}
}

// IsFrequent reports whether the customer placed at least minOrders orders
// in the last windowDays days.
func (c *Classifier) IsFrequent(ctx context.Context, customerID int64, minOrders, windowDays int) (bool, error) {
	since := c.now().AddDate(0, 0, -windowDays)
	count, err := c.orders.CountSince(ctx, customerID, since)
	if err != nil {
		return false, errors.Wrapf(err, "count orders of customer %d", customerID)
	}
	return count >= minOrders, nil
}
