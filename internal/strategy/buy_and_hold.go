package strategy

import (
	"strconv"

	"github.com/marketbench/backsim/internal/types"
)

// BuyAndHold places a single market buy on the first bar it sees for each
// configured symbol and never trades again. The quantity defaults to 1 and
// can be overridden through the "quantity" run parameter.
type BuyAndHold struct {
	BaseStrategy

	bought map[string]bool
}

// NewBuyAndHold creates the example strategy.
func NewBuyAndHold() *BuyAndHold {
	return &BuyAndHold{
		bought: make(map[string]bool),
	}
}

// Name implements Strategy.
func (s *BuyAndHold) Name() string {
	return "buy_and_hold"
}

// OnStart implements Strategy.
func (s *BuyAndHold) OnStart(ctx Context) error {
	s.bought = make(map[string]bool)
	ctx.Log(types.LogLevelInfo, "buy-and-hold starting", nil)

	return nil
}

// OnBar implements Strategy.
func (s *BuyAndHold) OnBar(ctx Context, bar types.Bar) error {
	if s.bought[bar.Symbol] {
		return nil
	}

	quantity := 1.0
	if raw, ok := ctx.Param("quantity"); ok {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed > 0 {
			quantity = parsed
		}
	}

	order, err := ctx.PlaceOrder(types.Order{
		Symbol:   bar.Symbol,
		Side:     types.SideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: quantity,
	})
	if err != nil {
		return err
	}

	s.bought[bar.Symbol] = true
	ctx.Log(types.LogLevelInfo, "entered position", map[string]string{
		"symbol":   bar.Symbol,
		"order_id": order.ID,
	})

	return nil
}

// OnOrderFilled implements Strategy.
func (s *BuyAndHold) OnOrderFilled(ctx Context, order types.Order, fill types.Fill) error {
	ctx.Notify(types.NotificationLevelLow, "order filled", fill.Symbol)

	return nil
}
