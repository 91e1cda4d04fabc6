package types

import "time"

// EventKind tags the variant of an Event.
type EventKind string

const (
	EventKindBar             EventKind = "BAR"
	EventKindTick            EventKind = "TICK"
	EventKindOrderBook       EventKind = "ORDER_BOOK"
	EventKindOrderPlaced     EventKind = "ORDER_PLACED"
	EventKindOrderFilled     EventKind = "ORDER_FILLED"
	EventKindOrderCancelled  EventKind = "ORDER_CANCELLED"
	EventKindPositionChanged EventKind = "POSITION_CHANGED"
	EventKindCashChanged     EventKind = "CASH_CHANGED"
	EventKindCustom          EventKind = "CUSTOM"
)

// Event is the tagged union dispatched by the simulation engine. Each variant
// carries its own timestamp and typed payload; events are transient - created,
// queued, dispatched, discarded. Dispatch sites type-switch over the concrete
// variants so a new kind cannot silently fall through unhandled.
type Event interface {
	Kind() EventKind
	Time() time.Time
	EventSymbol() string
}

type BarEvent struct {
	Bar Bar
	// Interval the bar was loaded at.
	Interval Interval
}

func (e BarEvent) Kind() EventKind     { return EventKindBar }
func (e BarEvent) Time() time.Time     { return e.Bar.Timestamp }
func (e BarEvent) EventSymbol() string { return e.Bar.Symbol }

type TickEvent struct {
	Tick Tick
}

func (e TickEvent) Kind() EventKind     { return EventKindTick }
func (e TickEvent) Time() time.Time     { return e.Tick.Timestamp }
func (e TickEvent) EventSymbol() string { return e.Tick.Symbol }

type OrderBookEvent struct {
	Book OrderBook
}

func (e OrderBookEvent) Kind() EventKind     { return EventKindOrderBook }
func (e OrderBookEvent) Time() time.Time     { return e.Book.Timestamp }
func (e OrderBookEvent) EventSymbol() string { return e.Book.Symbol }

type OrderPlacedEvent struct {
	Order Order
}

func (e OrderPlacedEvent) Kind() EventKind     { return EventKindOrderPlaced }
func (e OrderPlacedEvent) Time() time.Time     { return e.Order.CreatedAt }
func (e OrderPlacedEvent) EventSymbol() string { return e.Order.Symbol }

type OrderFilledEvent struct {
	// Order is the post-fill state of the order.
	Order Order
	Fill  Fill
}

func (e OrderFilledEvent) Kind() EventKind     { return EventKindOrderFilled }
func (e OrderFilledEvent) Time() time.Time     { return e.Fill.Timestamp }
func (e OrderFilledEvent) EventSymbol() string { return e.Fill.Symbol }

type OrderCancelledEvent struct {
	Order Order
}

func (e OrderCancelledEvent) Kind() EventKind     { return EventKindOrderCancelled }
func (e OrderCancelledEvent) Time() time.Time     { return e.Order.UpdatedAt }
func (e OrderCancelledEvent) EventSymbol() string { return e.Order.Symbol }

type PositionChangedEvent struct {
	Position  Position
	Timestamp time.Time
}

func (e PositionChangedEvent) Kind() EventKind     { return EventKindPositionChanged }
func (e PositionChangedEvent) Time() time.Time     { return e.Timestamp }
func (e PositionChangedEvent) EventSymbol() string { return e.Position.Symbol }

type CashChangedEvent struct {
	// Cash is the balance after the change, Delta the signed change amount.
	Cash      float64
	Delta     float64
	Timestamp time.Time
}

func (e CashChangedEvent) Kind() EventKind     { return EventKindCashChanged }
func (e CashChangedEvent) Time() time.Time     { return e.Timestamp }
func (e CashChangedEvent) EventSymbol() string { return "" }

type CustomEvent struct {
	CustomKind string
	Payload    any
	Symbol     string
	Timestamp  time.Time
}

func (e CustomEvent) Kind() EventKind     { return EventKindCustom }
func (e CustomEvent) Time() time.Time     { return e.Timestamp }
func (e CustomEvent) EventSymbol() string { return e.Symbol }
