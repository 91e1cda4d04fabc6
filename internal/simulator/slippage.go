package simulator

import "github.com/marketbench/backsim/internal/types"

// SlippageFunc adjusts an execution price against the order's side: buy
// prices widen upward, sell prices downward. A nil SlippageFunc means no
// adjustment.
type SlippageFunc func(order types.Order, price float64) float64

// ConstantSlippage widens the execution price by a constant fraction of the
// raw price.
func ConstantSlippage(rate float64) SlippageFunc {
	return func(order types.Order, price float64) float64 {
		if order.Side == types.SideBuy {
			return price * (1 + rate)
		}

		return price * (1 - rate)
	}
}

// PartialFillConfig governs the simulated-liquidity truncation of fills.
// When a match occurs on an order that is not already partially filled, the
// fill quantity is, with the given probability, truncated to a sampled
// fraction of the remaining quantity within [MinRatio, MaxRatio].
type PartialFillConfig struct {
	Probability float64
	MinRatio    float64
	MaxRatio    float64
}

// Enabled reports whether truncation can ever occur.
func (c PartialFillConfig) Enabled() bool {
	return c.Probability > 0
}
