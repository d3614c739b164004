// Package discount evaluates the order discount stack.
//
// Rules run in a fixed order against a running total: each rule takes its
// percentage of what is left after the previous rules, never of the
// original subtotal. Every amount is rounded to cents before it is
// subtracted, so Total + DiscountTotal always equals the subtotal.
package discount

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies a rule in the stack.
type Kind string

const (
	// KindTimeWindow is the 10% discount inside the configured window.
	KindTimeWindow Kind = "time_window"
	// KindRandom is the 50% opt-in lottery discount, only inside the window.
	KindRandom Kind = "random"
	// KindFrequentCustomer is the 5% loyalty discount.
	KindFrequentCustomer Kind = "frequent_customer"
)

var (
	rateTimeWindow = decimal.RequireFromString("0.10")
	rateRandom     = decimal.RequireFromString("0.50")
	rateFrequent   = decimal.RequireFromString("0.05")
)

// Config holds the evaluator's tunables.
type Config struct {
	// WindowStart and WindowEnd bound the promotional window (exclusive).
	WindowStart time.Time
	WindowEnd   time.Time
	// RandomProbability is the chance in [0,1] that an opted-in order inside
	// the window gets the random discount.
	RandomProbability float64
	// FrequentMinOrders and FrequentWindowDays define a frequent customer.
	FrequentMinOrders  int
	FrequentWindowDays int
}

// InWindow reports whether now lies strictly between WindowStart and WindowEnd.
func (c Config) InWindow(now time.Time) bool {
	return now.After(c.WindowStart) && now.Before(c.WindowEnd)
}

// Context carries the per-order inputs.
type Context struct {
	Now              time.Time
	OptInRandom      bool
	FrequentCustomer bool
}

// Applied records one rule that fired.
type Applied struct {
	Kind   Kind
	Rate   decimal.Decimal
	Base   decimal.Decimal
	Amount decimal.Decimal
}

// Result is the outcome of evaluating the stack.
type Result struct {
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	Total         decimal.Decimal
	Applied       []Applied
}
