// Package simulator turns replayed price updates into simulated order fills.
// It owns every order from placement to terminal state and models slippage,
// commission, probabilistic partial fills, and execution latency.
package simulator

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/marketbench/backsim/internal/commission"
	"github.com/marketbench/backsim/internal/logger"
	"github.com/marketbench/backsim/internal/types"
	"github.com/marketbench/backsim/pkg/errors"
)

// Options configures execution realism.
type Options struct {
	// Commission is charged against price * quantity of every fill.
	Commission commission.Model
	// Slippage widens execution prices against the order's side. Nil means none.
	Slippage SlippageFunc
	// ExecutionDelay postpones the release of generated fills, modeling latency.
	ExecutionDelay time.Duration
	// PartialFill simulates imperfect liquidity on bar and tick matches.
	PartialFill PartialFillConfig
	// Rand drives partial-fill sampling. Injectable so runs are reproducible;
	// required when PartialFill is enabled.
	Rand *rand.Rand
}

// pendingFill is a generated fill waiting out the execution delay.
type pendingFill struct {
	fill        types.Fill
	order       types.Order
	availableAt time.Time
}

// MarketSimulator is the order book / state machine of the backtest. It is
// not safe for concurrent use; the simulation is single-threaded.
type MarketSimulator struct {
	log  *logger.Logger
	opts Options

	orders map[string]*types.Order
	// orderIDs preserves placement order so sweeps are deterministic.
	orderIDs  []string
	lastPrice map[string]float64
	books     map[string]types.OrderBook
	pending   []pendingFill
}

// NewMarketSimulator creates a simulator with the given execution options.
func NewMarketSimulator(log *logger.Logger, opts Options) *MarketSimulator {
	if opts.Commission == nil {
		opts.Commission = commission.NewZero()
	}

	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(0))
	}

	return &MarketSimulator{
		log:       log,
		opts:      opts,
		orders:    make(map[string]*types.Order),
		orderIDs:  nil,
		lastPrice: make(map[string]float64),
		books:     make(map[string]types.OrderBook),
		pending:   nil,
	}
}

// Reset clears all simulator state.
func (s *MarketSimulator) Reset() {
	s.orders = make(map[string]*types.Order)
	s.orderIDs = nil
	s.lastPrice = make(map[string]float64)
	s.books = make(map[string]types.OrderBook)
	s.pending = nil
}

// Reseed restores the partial-fill sampler to a fresh stream for the given
// seed. Called together with Reset so repeated runs over the same data sample
// identical truncations.
func (s *MarketSimulator) Reseed(seed int64) {
	s.opts.Rand = rand.New(rand.NewSource(seed))
}

// PlaceOrder validates and accepts an order, moving it created -> pending.
// A malformed order is rejected with ErrCodeOrderRejected and is not stored.
func (s *MarketSimulator) PlaceOrder(order types.Order, now time.Time) (types.Order, error) {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}

	order.Status = types.OrderStatusCreated
	order.FilledQuantity = 0
	order.StopTriggered = false
	order.CreatedAt = now
	order.UpdatedAt = now

	if err := order.Validate(); err != nil {
		order.Status = types.OrderStatusRejected

		return order, errors.Wrap(errors.ErrCodeOrderRejected, "order rejected", err)
	}

	order.Status = types.OrderStatusPending
	stored := order
	s.orders[order.ID] = &stored
	s.orderIDs = append(s.orderIDs, order.ID)

	s.log.Debug("Order placed",
		zap.String("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("type", string(order.Type)),
		zap.Float64("quantity", order.Quantity),
	)

	return order, nil
}

// CancelOrder cancels a non-terminal order. Canceling a terminal or unknown
// order returns false rather than raising.
func (s *MarketSimulator) CancelOrder(orderID string, now time.Time) (types.Order, bool) {
	order, exists := s.orders[orderID]
	if !exists || order.Status.IsTerminal() {
		return types.Order{}, false
	}

	order.Status = types.OrderStatusCancelled
	order.UpdatedAt = now

	return *order, true
}

// GetOrder returns the order with the given identity, if known.
func (s *MarketSimulator) GetOrder(orderID string) optional.Option[types.Order] {
	order, exists := s.orders[orderID]
	if !exists {
		return optional.None[types.Order]()
	}

	return optional.Some(*order)
}

// GetOrders returns every order matching the filter, in placement order.
func (s *MarketSimulator) GetOrders(filter types.OrderFilter) []types.Order {
	var matched []types.Order

	for _, id := range s.orderIDs {
		order := s.orders[id]
		if filter.Matches(*order) {
			matched = append(matched, *order)
		}
	}

	return matched
}

// GetOpenOrders returns non-terminal orders, optionally restricted to a symbol.
func (s *MarketSimulator) GetOpenOrders(symbol string) []types.Order {
	var open []types.Order

	for _, id := range s.orderIDs {
		order := s.orders[id]
		if order.Status.IsTerminal() {
			continue
		}

		if symbol != "" && order.Symbol != symbol {
			continue
		}

		open = append(open, *order)
	}

	return open
}

// LastPrice returns the last traded price seen for the symbol.
func (s *MarketSimulator) LastPrice(symbol string) optional.Option[float64] {
	price, ok := s.lastPrice[symbol]
	if !ok {
		return optional.None[float64]()
	}

	return optional.Some(price)
}

// LastBook returns the latest stored order book snapshot for the symbol.
func (s *MarketSimulator) LastBook(symbol string) optional.Option[types.OrderBook] {
	book, ok := s.books[symbol]
	if !ok {
		return optional.None[types.OrderBook]()
	}

	return optional.Some(book)
}

// openOrdersOn returns pointers to the symbol's non-terminal orders in
// placement order. Matching mutates orders through these pointers.
func (s *MarketSimulator) openOrdersOn(symbol string) []*types.Order {
	var open []*types.Order

	for _, id := range s.orderIDs {
		order := s.orders[id]
		if order.Symbol == symbol && !order.Status.IsTerminal() {
			open = append(open, order)
		}
	}

	return open
}

// fill applies an execution to the order and buffers the resulting Fill until
// the execution delay elapses. Terminal orders are a silent no-op. The raw
// price is widened by slippage before commission is charged.
func (s *MarketSimulator) fill(order *types.Order, rawPrice float64, quantity float64, now time.Time, allowTruncate bool) {
	if order.Status.IsTerminal() || quantity <= 0 {
		return
	}

	// Truncate to a sampled fraction of the remaining quantity to model
	// imperfect liquidity. Orders already partially filled re-match for their
	// full remainder; book matches are already liquidity-bounded.
	if allowTruncate && s.opts.PartialFill.Enabled() && order.Status != types.OrderStatusPartial {
		if s.opts.Rand.Float64() < s.opts.PartialFill.Probability {
			span := s.opts.PartialFill.MaxRatio - s.opts.PartialFill.MinRatio
			ratio := s.opts.PartialFill.MinRatio + s.opts.Rand.Float64()*span
			quantity *= ratio
		}
	}

	if remaining := order.RemainingQuantity(); quantity > remaining {
		quantity = remaining
	}

	if quantity <= 0 {
		return
	}

	price := rawPrice
	if s.opts.Slippage != nil {
		price = s.opts.Slippage(*order, rawPrice)
	}

	feeAmount := s.opts.Commission.Calculate(price, quantity)

	order.FilledQuantity += quantity
	order.UpdatedAt = now

	if order.RemainingQuantity() <= 0 {
		order.FilledQuantity = order.Quantity
		order.Status = types.OrderStatusFilled
	} else {
		order.Status = types.OrderStatusPartial
	}

	availableAt := now.Add(s.opts.ExecutionDelay)
	fill := types.Fill{
		OrderID:   order.ID,
		TradeID:   uuid.New().String(),
		Symbol:    order.Symbol,
		Side:      order.Side,
		Price:     price,
		Quantity:  quantity,
		Timestamp: availableAt,
		Fee: types.Fee{
			Asset:  "USD",
			Amount: feeAmount,
			Rate:   s.opts.Commission.Rate(),
		},
	}

	s.pending = append(s.pending, pendingFill{
		fill:        fill,
		order:       *order,
		availableAt: availableAt,
	})
}

// FillResult pairs a released fill with the order state at fill time.
type FillResult struct {
	Fill  types.Fill
	Order types.Order
}

// drain releases buffered fills whose execution delay has elapsed. Called
// once per processing pass.
func (s *MarketSimulator) drain(now time.Time) []FillResult {
	var (
		released []FillResult
		waiting  []pendingFill
	)

	for _, p := range s.pending {
		if !p.availableAt.After(now) {
			released = append(released, FillResult{Fill: p.fill, Order: p.order})
		} else {
			waiting = append(waiting, p)
		}
	}

	s.pending = waiting

	return released
}

// FlushPending releases every buffered fill regardless of remaining delay.
// Called when the replayed data runs out so accepted executions still reach
// the ledger.
func (s *MarketSimulator) FlushPending() []FillResult {
	var released []FillResult

	for _, p := range s.pending {
		released = append(released, FillResult{Fill: p.fill, Order: p.order})
	}

	s.pending = nil

	return released
}
