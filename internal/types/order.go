package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"

	"github.com/marketbench/backsim/pkg/errors"
)

type Side string

type OrderType string

type OrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPartial   OrderStatus = "PARTIAL"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusRejected
}

// Order is a request to trade a symbol. The simulator owns an order from
// placement until it reaches a terminal status; 0 <= FilledQuantity <= Quantity
// holds at all times.
type Order struct {
	ID             string      `yaml:"id" json:"id" csv:"id"`
	Symbol         string      `yaml:"symbol" json:"symbol" csv:"symbol" validate:"required"`
	Side           Side        `yaml:"side" json:"side" csv:"side" validate:"required,oneof=BUY SELL"`
	Type           OrderType   `yaml:"type" json:"type" csv:"type" validate:"required,oneof=MARKET LIMIT STOP STOP_LIMIT"`
	Quantity       float64     `yaml:"quantity" json:"quantity" csv:"quantity" validate:"required,gt=0"`
	FilledQuantity float64     `yaml:"filled_quantity" json:"filled_quantity" csv:"filled_quantity" validate:"gte=0"`
	Status         OrderStatus `yaml:"status" json:"status" csv:"status"`
	// LimitPrice is required for LIMIT and STOP_LIMIT orders.
	LimitPrice optional.Option[float64] `yaml:"limit_price" json:"limit_price" csv:"limit_price"`
	// StopPrice is required for STOP and STOP_LIMIT orders.
	StopPrice optional.Option[float64] `yaml:"stop_price" json:"stop_price" csv:"stop_price"`
	// StopTriggered is set once a STOP_LIMIT order's stop condition has been
	// met; from then on the order matches as a plain limit order.
	StopTriggered bool      `yaml:"stop_triggered" json:"stop_triggered" csv:"stop_triggered"`
	CreatedAt     time.Time `yaml:"created_at" json:"created_at" csv:"created_at"`
	UpdatedAt     time.Time `yaml:"updated_at" json:"updated_at" csv:"updated_at"`
}

// RemainingQuantity returns the unfilled portion of the order.
func (o *Order) RemainingQuantity() float64 {
	return o.Quantity - o.FilledQuantity
}

// Validate validates the order shape. A malformed order is rejected before it
// ever reaches the simulator's book.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	if o.FilledQuantity > o.Quantity {
		return errors.Newf(errors.ErrCodeInvalidOrder, "filled quantity %f exceeds quantity %f", o.FilledQuantity, o.Quantity)
	}

	switch o.Type {
	case OrderTypeLimit:
		if o.LimitPrice.IsNone() {
			return errors.New(errors.ErrCodeInvalidOrder, "limit order requires a limit price")
		}
	case OrderTypeStop:
		if o.StopPrice.IsNone() {
			return errors.New(errors.ErrCodeInvalidOrder, "stop order requires a stop price")
		}
	case OrderTypeStopLimit:
		if o.LimitPrice.IsNone() || o.StopPrice.IsNone() {
			return errors.New(errors.ErrCodeInvalidOrder, "stop-limit order requires both a stop price and a limit price")
		}
	case OrderTypeMarket:
	}

	for _, price := range []optional.Option[float64]{o.LimitPrice, o.StopPrice} {
		if price.IsSome() && price.Unwrap() <= 0 {
			return errors.New(errors.ErrCodeInvalidOrder, "order prices must be greater than zero")
		}
	}

	return nil
}

// Fee is the cost charged against a fill.
type Fee struct {
	Asset  string  `yaml:"asset" json:"asset" csv:"asset"`
	Amount float64 `yaml:"amount" json:"amount" csv:"amount"`
	Rate   float64 `yaml:"rate" json:"rate" csv:"rate"`
}

// Fill records a quantity executed against an order at a price. Fills are
// ephemeral: produced by the simulator, consumed once by the portfolio ledger.
type Fill struct {
	OrderID   string    `yaml:"order_id" json:"order_id" csv:"order_id"`
	TradeID   string    `yaml:"trade_id" json:"trade_id" csv:"trade_id"`
	Symbol    string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Side      Side      `yaml:"side" json:"side" csv:"side"`
	Price     float64   `yaml:"price" json:"price" csv:"price"`
	Quantity  float64   `yaml:"quantity" json:"quantity" csv:"quantity"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp" csv:"timestamp"`
	Fee       Fee       `yaml:"fee" json:"fee" csv:"fee"`
}

// Notional returns price * quantity before fees.
func (f *Fill) Notional() float64 {
	return f.Price * f.Quantity
}

// OrderFilter narrows GetOrders queries. Zero values mean no filter.
type OrderFilter struct {
	Symbol string                       `yaml:"symbol" json:"symbol"`
	Side   optional.Option[Side]        `yaml:"side" json:"side"`
	Type   optional.Option[OrderType]   `yaml:"type" json:"type"`
	Status optional.Option[OrderStatus] `yaml:"status" json:"status"`
}

// Matches reports whether the order satisfies every set filter field.
func (f *OrderFilter) Matches(o Order) bool {
	if f.Symbol != "" && o.Symbol != f.Symbol {
		return false
	}

	if f.Side.IsSome() && o.Side != f.Side.Unwrap() {
		return false
	}

	if f.Type.IsSome() && o.Type != f.Type.Unwrap() {
		return false
	}

	if f.Status.IsSome() && o.Status != f.Status.Unwrap() {
		return false
	}

	return true
}
