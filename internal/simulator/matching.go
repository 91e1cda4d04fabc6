package simulator

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketbench/backsim/internal/types"
)

// ProcessBar sets the symbol's last price to the bar close, sweeps every open
// order on the symbol against the bar's OHLC range, and returns the fills
// whose execution delay has elapsed.
func (s *MarketSimulator) ProcessBar(bar types.Bar) []FillResult {
	s.lastPrice[bar.Symbol] = bar.Close

	for _, order := range s.openOrdersOn(bar.Symbol) {
		s.matchAgainstBar(order, bar)
	}

	return s.drain(bar.Timestamp)
}

// matchAgainstBar applies type-specific OHLC matching:
//   - market orders fill at the close;
//   - a buy limit at L fills when low <= L, at min(L, open); a sell limit
//     fills when high >= L, at max(L, open);
//   - a buy stop at S fills as a market order when high >= S, executing at
//     the high; a sell stop when low <= S, executing at the low;
//   - a stop-limit converts to a plain limit once its stop condition is met
//     within the bar, and may fill within that same bar if the now-active
//     limit condition also holds.
func (s *MarketSimulator) matchAgainstBar(order *types.Order, bar types.Bar) {
	switch order.Type {
	case types.OrderTypeMarket:
		s.fill(order, bar.Close, order.RemainingQuantity(), bar.Timestamp, true)

	case types.OrderTypeLimit:
		limit := order.LimitPrice.Unwrap()
		if order.Side == types.SideBuy && bar.Low <= limit {
			s.fill(order, math.Min(limit, bar.Open), order.RemainingQuantity(), bar.Timestamp, true)
		} else if order.Side == types.SideSell && bar.High >= limit {
			s.fill(order, math.Max(limit, bar.Open), order.RemainingQuantity(), bar.Timestamp, true)
		}

	case types.OrderTypeStop:
		stop := order.StopPrice.Unwrap()
		if order.Side == types.SideBuy && bar.High >= stop {
			s.fill(order, bar.High, order.RemainingQuantity(), bar.Timestamp, true)
		} else if order.Side == types.SideSell && bar.Low <= stop {
			s.fill(order, bar.Low, order.RemainingQuantity(), bar.Timestamp, true)
		}

	case types.OrderTypeStopLimit:
		if !order.StopTriggered {
			stop := order.StopPrice.Unwrap()
			if (order.Side == types.SideBuy && bar.High >= stop) ||
				(order.Side == types.SideSell && bar.Low <= stop) {
				order.StopTriggered = true
				order.UpdatedAt = bar.Timestamp
			}
		}

		if order.StopTriggered {
			limit := order.LimitPrice.Unwrap()
			if order.Side == types.SideBuy && bar.Low <= limit {
				s.fill(order, math.Min(limit, bar.Open), order.RemainingQuantity(), bar.Timestamp, true)
			} else if order.Side == types.SideSell && bar.High >= limit {
				s.fill(order, math.Max(limit, bar.Open), order.RemainingQuantity(), bar.Timestamp, true)
			}
		}
	}
}

// ProcessTick sets the symbol's last price and evaluates the same eligibility
// predicates at the single tick price, with no OHLC ambiguity.
func (s *MarketSimulator) ProcessTick(tick types.Tick) []FillResult {
	s.lastPrice[tick.Symbol] = tick.Price

	for _, order := range s.openOrdersOn(tick.Symbol) {
		s.matchAgainstTick(order, tick)
	}

	return s.drain(tick.Timestamp)
}

func (s *MarketSimulator) matchAgainstTick(order *types.Order, tick types.Tick) {
	price := tick.Price

	switch order.Type {
	case types.OrderTypeMarket:
		s.fill(order, price, order.RemainingQuantity(), tick.Timestamp, true)

	case types.OrderTypeLimit:
		limit := order.LimitPrice.Unwrap()
		if (order.Side == types.SideBuy && price <= limit) ||
			(order.Side == types.SideSell && price >= limit) {
			s.fill(order, price, order.RemainingQuantity(), tick.Timestamp, true)
		}

	case types.OrderTypeStop:
		stop := order.StopPrice.Unwrap()
		if (order.Side == types.SideBuy && price >= stop) ||
			(order.Side == types.SideSell && price <= stop) {
			s.fill(order, price, order.RemainingQuantity(), tick.Timestamp, true)
		}

	case types.OrderTypeStopLimit:
		if !order.StopTriggered {
			stop := order.StopPrice.Unwrap()
			if (order.Side == types.SideBuy && price >= stop) ||
				(order.Side == types.SideSell && price <= stop) {
				order.StopTriggered = true
				order.UpdatedAt = tick.Timestamp
			}
		}

		if order.StopTriggered {
			limit := order.LimitPrice.Unwrap()
			if (order.Side == types.SideBuy && price <= limit) ||
				(order.Side == types.SideSell && price >= limit) {
				s.fill(order, price, order.RemainingQuantity(), tick.Timestamp, true)
			}
		}
	}
}

// MatchOrder evaluates a single order against the symbol's last seen price so
// marketable orders can execute at placement time instead of waiting for the
// next market event. Returns the fills whose execution delay has elapsed.
func (s *MarketSimulator) MatchOrder(orderID string, now time.Time) []FillResult {
	order, exists := s.orders[orderID]
	if !exists || order.Status.IsTerminal() {
		return nil
	}

	price, ok := s.lastPrice[order.Symbol]
	if !ok {
		return nil
	}

	s.matchAgainstTick(order, types.Tick{
		Symbol:    order.Symbol,
		Price:     price,
		Timestamp: now,
	})

	return s.drain(now)
}

// ProcessOrderBook stores the snapshot and matches open orders against the
// book's resting liquidity. Book matches are liquidity-bounded by the
// consumed levels, so probabilistic partial-fill truncation does not apply.
func (s *MarketSimulator) ProcessOrderBook(book types.OrderBook) []FillResult {
	s.books[book.Symbol] = book

	for _, order := range s.openOrdersOn(book.Symbol) {
		s.matchAgainstBook(order, book)
	}

	return s.drain(book.Timestamp)
}

func (s *MarketSimulator) matchAgainstBook(order *types.Order, book types.OrderBook) {
	switch order.Type {
	case types.OrderTypeMarket:
		s.walkBook(order, book)

	case types.OrderTypeLimit:
		s.matchLimitAgainstBook(order, book)

	case types.OrderTypeStop:
		stop := order.StopPrice.Unwrap()
		if s.stopTriggeredByBook(order.Side, stop, book) {
			s.walkBook(order, book)
		}

	case types.OrderTypeStopLimit:
		if !order.StopTriggered && s.stopTriggeredByBook(order.Side, order.StopPrice.Unwrap(), book) {
			order.StopTriggered = true
			order.UpdatedAt = book.Timestamp
		}

		if order.StopTriggered {
			s.matchLimitAgainstBook(order, book)
		}
	}
}

// stopTriggeredByBook evaluates a stop trigger against the best opposing level.
func (s *MarketSimulator) stopTriggeredByBook(side types.Side, stop float64, book types.OrderBook) bool {
	if side == types.SideBuy {
		best := book.BestAsk()

		return best.IsSome() && best.Unwrap().Price >= stop
	}

	best := book.BestBid()

	return best.IsSome() && best.Unwrap().Price <= stop
}

// walkBook consumes the opposing side's levels in price priority until the
// order's remaining quantity is satisfied or the book is exhausted, executing
// at the volume-weighted average of the consumed levels. An exhausted book
// leaves the remainder open as a partial fill.
func (s *MarketSimulator) walkBook(order *types.Order, book types.OrderBook) {
	levels := book.Asks
	if order.Side == types.SideSell {
		levels = book.Bids
	}

	remaining := order.RemainingQuantity()
	consumed := decimal.Zero
	notional := decimal.Zero

	for _, level := range levels {
		if remaining <= 0 {
			break
		}

		take := math.Min(remaining, level.Volume)
		takeDec := decimal.NewFromFloat(take)
		consumed = consumed.Add(takeDec)
		notional = notional.Add(takeDec.Mul(decimal.NewFromFloat(level.Price)))
		remaining -= take
	}

	if consumed.IsZero() {
		return
	}

	vwap, _ := notional.Div(consumed).Float64()
	quantity, _ := consumed.Float64()

	s.fill(order, vwap, quantity, book.Timestamp, false)
}

// matchLimitAgainstBook fills against the best opposing level only, bounded
// by that level's available volume.
func (s *MarketSimulator) matchLimitAgainstBook(order *types.Order, book types.OrderBook) {
	limit := order.LimitPrice.Unwrap()

	if order.Side == types.SideBuy {
		best := book.BestAsk()
		if best.IsNone() || best.Unwrap().Price > limit {
			return
		}

		level := best.Unwrap()
		s.fill(order, level.Price, math.Min(order.RemainingQuantity(), level.Volume), book.Timestamp, false)

		return
	}

	best := book.BestBid()
	if best.IsNone() || best.Unwrap().Price < limit {
		return
	}

	level := best.Unwrap()
	s.fill(order, level.Price, math.Min(order.RemainingQuantity(), level.Volume), book.Timestamp, false)
}
