// Package strategy defines the trading-decision boundary consumed by the
// simulation engine. Strategies are implemented externally and driven through
// lifecycle and per-event hooks.
package strategy

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/marketbench/backsim/internal/types"
)

// Context is the view of the simulation a strategy acts through. It exposes
// historical lookback queries, last-bar/last-price lookup, order placement
// and cancellation, ledger queries, the run's parameter bag, and log/notify
// sinks recorded on the simulated-time timeline.
type Context interface {
	// CurrentTime returns the current simulated time.
	CurrentTime() time.Time
	// GetBars returns up to count bars ending at the current simulated time,
	// computed from a timeframe-aware lookback window.
	GetBars(symbol string, interval types.Interval, count int) ([]types.Bar, error)
	// LastBar returns the most recent bar dispatched for the symbol.
	LastBar(symbol string) optional.Option[types.Bar]
	// LastPrice returns the last traded price seen for the symbol.
	LastPrice(symbol string) optional.Option[float64]
	// PlaceOrder submits an order to the market simulator.
	PlaceOrder(order types.Order) (types.Order, error)
	// CancelOrder cancels a non-terminal order; returns false for terminal or
	// unknown orders.
	CancelOrder(orderID string) bool
	// GetOrder returns an order by identity.
	GetOrder(orderID string) optional.Option[types.Order]
	// GetOrders returns orders matching the filter, in placement order.
	GetOrders(filter types.OrderFilter) []types.Order
	// GetOpenOrders returns non-terminal orders, optionally per symbol.
	GetOpenOrders(symbol string) []types.Order
	// GetPosition returns the symbol's position, if one was ever opened.
	GetPosition(symbol string) (types.Position, bool)
	// GetPositions returns every position sorted by symbol.
	GetPositions() []types.Position
	// GetCash returns the current cash balance.
	GetCash() float64
	// GetPortfolioValue returns cash plus mark-to-market positions.
	GetPortfolioValue() float64
	// GetAccountInfo returns a full ledger snapshot.
	GetAccountInfo() types.AccountInfo
	// Param reads a value from the run's free-form parameter bag.
	Param(key string) (string, bool)
	// Log records a severity-tagged entry on the simulated-time timeline.
	Log(level types.LogLevel, message string, fields map[string]string)
	// Notify records an urgency-tagged notification on the timeline.
	Notify(level types.NotificationLevel, title string, message string)
}

// Strategy receives lifecycle and per-event hooks from the engine. Hook
// errors abort the run. Embed BaseStrategy to implement only the hooks a
// strategy cares about.
type Strategy interface {
	Name() string
	OnStart(ctx Context) error
	OnEnd(ctx Context) error
	OnBar(ctx Context, bar types.Bar) error
	OnTick(ctx Context, tick types.Tick) error
	OnOrderBook(ctx Context, book types.OrderBook) error
	OnOrderPlaced(ctx Context, order types.Order) error
	OnOrderFilled(ctx Context, order types.Order, fill types.Fill) error
	OnOrderCancelled(ctx Context, order types.Order) error
	OnPositionChanged(ctx Context, position types.Position) error
	OnCashChanged(ctx Context, cash float64, delta float64) error
	OnCustomEvent(ctx Context, kind string, payload any) error
}

// BaseStrategy is a no-op implementation of every hook.
type BaseStrategy struct{}

func (BaseStrategy) OnStart(Context) error                          { return nil }
func (BaseStrategy) OnEnd(Context) error                            { return nil }
func (BaseStrategy) OnBar(Context, types.Bar) error                 { return nil }
func (BaseStrategy) OnTick(Context, types.Tick) error               { return nil }
func (BaseStrategy) OnOrderBook(Context, types.OrderBook) error     { return nil }
func (BaseStrategy) OnOrderPlaced(Context, types.Order) error       { return nil }
func (BaseStrategy) OnOrderFilled(Context, types.Order, types.Fill) error {
	return nil
}
func (BaseStrategy) OnOrderCancelled(Context, types.Order) error    { return nil }
func (BaseStrategy) OnPositionChanged(Context, types.Position) error {
	return nil
}
func (BaseStrategy) OnCashChanged(Context, float64, float64) error { return nil }
func (BaseStrategy) OnCustomEvent(Context, string, any) error      { return nil }
