package engine

import (
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/marketbench/backsim/internal/types"
)

// runContext is the strategy's view of a running simulation. One instance is
// created per run and rides the engine's mutable state.
type runContext struct {
	engine *SimulationEngineV1

	currentTime time.Time
	lastBars    map[string]types.Bar
}

func newRunContext(engine *SimulationEngineV1) *runContext {
	return &runContext{
		engine:      engine,
		currentTime: engine.config.StartTime,
		lastBars:    make(map[string]types.Bar),
	}
}

// CurrentTime implements strategy.Context.
func (c *runContext) CurrentTime() time.Time {
	return c.currentTime
}

// GetBars implements strategy.Context. The lookback window starts count
// interval-durations before the current simulated time; only the last count
// bars of the result are returned.
func (c *runContext) GetBars(symbol string, interval types.Interval, count int) ([]types.Bar, error) {
	duration, err := interval.Duration()
	if err != nil {
		return nil, err
	}

	start := c.currentTime.Add(-time.Duration(count) * duration)

	bars, err := c.engine.dataManager.GetBars(symbol, interval, start, c.currentTime)
	if err != nil {
		return nil, err
	}

	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}

	return bars, nil
}

// LastBar implements strategy.Context.
func (c *runContext) LastBar(symbol string) optional.Option[types.Bar] {
	bar, ok := c.lastBars[symbol]
	if !ok {
		return optional.None[types.Bar]()
	}

	return optional.Some(bar)
}

// LastPrice implements strategy.Context.
func (c *runContext) LastPrice(symbol string) optional.Option[float64] {
	return c.engine.sim.LastPrice(symbol)
}

// PlaceOrder implements strategy.Context. The accepted order is announced as
// an event and immediately evaluated against the symbol's last seen price, so
// marketable orders execute at placement time.
func (c *runContext) PlaceOrder(order types.Order) (types.Order, error) {
	placed, err := c.engine.sim.PlaceOrder(order, c.currentTime)
	if err != nil {
		return placed, err
	}

	c.engine.queue.Enqueue(types.OrderPlacedEvent{Order: placed})

	for _, result := range c.engine.sim.MatchOrder(placed.ID, c.currentTime) {
		c.engine.queue.Enqueue(types.OrderFilledEvent{Order: result.Order, Fill: result.Fill})
	}

	if updated := c.engine.sim.GetOrder(placed.ID); updated.IsSome() {
		placed = updated.Unwrap()
	}

	return placed, nil
}

// CancelOrder implements strategy.Context.
func (c *runContext) CancelOrder(orderID string) bool {
	cancelled, ok := c.engine.sim.CancelOrder(orderID, c.currentTime)
	if !ok {
		return false
	}

	c.engine.queue.Enqueue(types.OrderCancelledEvent{Order: cancelled})

	return true
}

// GetOrder implements strategy.Context.
func (c *runContext) GetOrder(orderID string) optional.Option[types.Order] {
	return c.engine.sim.GetOrder(orderID)
}

// GetOrders implements strategy.Context.
func (c *runContext) GetOrders(filter types.OrderFilter) []types.Order {
	return c.engine.sim.GetOrders(filter)
}

// GetOpenOrders implements strategy.Context.
func (c *runContext) GetOpenOrders(symbol string) []types.Order {
	return c.engine.sim.GetOpenOrders(symbol)
}

// GetPosition implements strategy.Context.
func (c *runContext) GetPosition(symbol string) (types.Position, bool) {
	return c.engine.ledger.GetPosition(symbol)
}

// GetPositions implements strategy.Context.
func (c *runContext) GetPositions() []types.Position {
	return c.engine.ledger.GetPositions()
}

// GetCash implements strategy.Context.
func (c *runContext) GetCash() float64 {
	return c.engine.ledger.GetCash()
}

// GetPortfolioValue implements strategy.Context.
func (c *runContext) GetPortfolioValue() float64 {
	return c.engine.ledger.GetPortfolioValue()
}

// GetAccountInfo implements strategy.Context.
func (c *runContext) GetAccountInfo() types.AccountInfo {
	return c.engine.ledger.GetAccountInfo()
}

// Param implements strategy.Context.
func (c *runContext) Param(key string) (string, bool) {
	value, ok := c.engine.config.Params[key]

	return value, ok
}

// Log implements strategy.Context. Entries land on the simulated-time
// timeline; a timeline write failure is logged and swallowed so commentary
// never aborts a run.
func (c *runContext) Log(level types.LogLevel, message string, fields map[string]string) {
	err := c.engine.timeline.AppendLog(LogRecord{
		Timestamp: c.currentTime,
		Level:     level,
		Message:   message,
		Fields:    fields,
	})
	if err != nil {
		c.engine.log.Warn("Failed to record strategy log", zap.Error(err))
	}
}

// Notify implements strategy.Context.
func (c *runContext) Notify(level types.NotificationLevel, title string, message string) {
	err := c.engine.timeline.AppendNotification(NotificationRecord{
		Timestamp: c.currentTime,
		Level:     level,
		Title:     title,
		Message:   message,
	})
	if err != nil {
		c.engine.log.Warn("Failed to record strategy notification", zap.Error(err))
	}
}
