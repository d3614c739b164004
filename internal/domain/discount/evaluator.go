package discount

import (
	"github.com/shopspring/decimal"
)

// Evaluator applies the discount stack.
type Evaluator struct {
	cfg  Config
	rand RandomSource
}

// NewEvaluator creates an Evaluator. A nil source falls back to GlobalSource.
func NewEvaluator(cfg Config, src RandomSource) *Evaluator {
	if src == nil {
		src = GlobalSource
	}
	return &Evaluator{cfg: cfg, rand: src}
}

// Config returns the evaluator's configuration.
func (e *Evaluator) Config() Config {
	return e.cfg
}

// Apply runs the stack over subtotal.
//
// The random rule draws exactly once when the window holds and the order
// opted in, and never otherwise.
func (e *Evaluator) Apply(subtotal decimal.Decimal, c Context) Result {
	res := Result{
		Subtotal:      subtotal,
		DiscountTotal: decimal.Zero,
		Total:         subtotal,
	}

	inWindow := e.cfg.InWindow(c.Now)
	if inWindow {
		res.apply(KindTimeWindow, rateTimeWindow)
	}
	if inWindow && c.OptInRandom && e.rand.Float64() < e.cfg.RandomProbability {
		res.apply(KindRandom, rateRandom)
	}
	if c.FrequentCustomer {
		res.apply(KindFrequentCustomer, rateFrequent)
	}
	return res
}

func (r *Result) apply(kind Kind, rate decimal.Decimal) {
	amount := r.Total.Mul(rate).Round(2)
	r.Applied = append(r.Applied, Applied{
		Kind:   kind,
		Rate:   rate,
		Base:   r.Total,
		Amount: amount,
	})
	r.Total = r.Total.Sub(amount)
	r.DiscountTotal = r.DiscountTotal.Add(amount)
}
