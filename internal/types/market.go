package types

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/marketbench/backsim/pkg/errors"
)

// Interval is the aggregation period of a bar.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
)

// Duration returns the wall-clock length of one bar at this interval.
func (i Interval) Duration() (time.Duration, error) {
	switch i {
	case Interval1m:
		return time.Minute, nil
	case Interval5m:
		return 5 * time.Minute, nil
	case Interval15m:
		return 15 * time.Minute, nil
	case Interval30m:
		return 30 * time.Minute, nil
	case Interval1h:
		return time.Hour, nil
	case Interval4h:
		return 4 * time.Hour, nil
	case Interval6h:
		return 6 * time.Hour, nil
	case Interval8h:
		return 8 * time.Hour, nil
	case Interval12h:
		return 12 * time.Hour, nil
	case Interval1d:
		return 24 * time.Hour, nil
	case Interval1w:
		return 7 * 24 * time.Hour, nil
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidInterval, "unknown interval: %s", i)
	}
}

// Bar is an aggregated OHLCV record over a fixed interval.
// Bars are immutable once produced by a data source.
type Bar struct {
	Symbol    string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp" csv:"timestamp"`
	Open      float64   `yaml:"open" json:"open" csv:"open"`
	High      float64   `yaml:"high" json:"high" csv:"high"`
	Low       float64   `yaml:"low" json:"low" csv:"low"`
	Close     float64   `yaml:"close" json:"close" csv:"close"`
	Volume    float64   `yaml:"volume" json:"volume" csv:"volume"`
	// VWAP is the volume-weighted average price over the bar, when the source provides it.
	VWAP optional.Option[float64] `yaml:"vwap" json:"vwap" csv:"vwap"`
	// TradeCount is the number of trades aggregated into the bar, when the source provides it.
	TradeCount optional.Option[int64] `yaml:"trade_count" json:"trade_count" csv:"trade_count"`
}

// Tick is a single trade print.
type Tick struct {
	Symbol    string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp" csv:"timestamp"`
	Price     float64   `yaml:"price" json:"price" csv:"price"`
	Volume    float64   `yaml:"volume" json:"volume" csv:"volume"`
	// Side tags the aggressor side when the source provides it.
	Side optional.Option[Side] `yaml:"side" json:"side" csv:"side"`
	// Exchange tags the reporting venue when the source provides it.
	Exchange optional.Option[string] `yaml:"exchange" json:"exchange" csv:"exchange"`
}

// OrderBookLevel is a single (price, volume) level on one side of the book.
type OrderBookLevel struct {
	Price  float64 `yaml:"price" json:"price" csv:"price"`
	Volume float64 `yaml:"volume" json:"volume" csv:"volume"`
}

// OrderBook is an immutable snapshot of resting liquidity.
// Bids are ordered by descending price, asks by ascending price.
type OrderBook struct {
	Symbol    string           `yaml:"symbol" json:"symbol"`
	Timestamp time.Time        `yaml:"timestamp" json:"timestamp"`
	Bids      []OrderBookLevel `yaml:"bids" json:"bids"`
	Asks      []OrderBookLevel `yaml:"asks" json:"asks"`
}

// BestBid returns the highest bid level, if any.
func (b *OrderBook) BestBid() optional.Option[OrderBookLevel] {
	if len(b.Bids) == 0 {
		return optional.None[OrderBookLevel]()
	}

	return optional.Some(b.Bids[0])
}

// BestAsk returns the lowest ask level, if any.
func (b *OrderBook) BestAsk() optional.Option[OrderBookLevel] {
	if len(b.Asks) == 0 {
		return optional.None[OrderBookLevel]()
	}

	return optional.Some(b.Asks[0])
}
