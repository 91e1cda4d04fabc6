package datasource

import (
	"time"

	"github.com/marketbench/backsim/internal/types"
)

// DataKind identifies one of the historical record families a source can serve.
type DataKind string

const (
	DataKindBars       DataKind = "BARS"
	DataKindTicks      DataKind = "TICKS"
	DataKindOrderBooks DataKind = "ORDER_BOOKS"
)

// Capabilities declares, once at registration time, which data kinds a source
// supports. The manager indexes sources by kind from this descriptor and never
// interrogates a source again afterwards.
type Capabilities struct {
	Bars       bool `yaml:"bars" json:"bars"`
	Ticks      bool `yaml:"ticks" json:"ticks"`
	OrderBooks bool `yaml:"order_books" json:"order_books"`
}

// Supports reports whether the descriptor covers the given kind.
func (c Capabilities) Supports(kind DataKind) bool {
	switch kind {
	case DataKindBars:
		return c.Bars
	case DataKindTicks:
		return c.Ticks
	case DataKindOrderBooks:
		return c.OrderBooks
	default:
		return false
	}
}

// DataSource is the boundary contract for historical-data providers. All
// retrieval operations return sequences in ascending timestamp order for the
// requested symbol and closed time range.
type DataSource interface {
	// Name is the unique identity of the source within a manager.
	Name() string
	// Description is a human-readable summary of the source.
	Description() string
	// GetBars returns bars for the symbol at the given interval within [start, end].
	GetBars(symbol string, interval types.Interval, start time.Time, end time.Time) ([]types.Bar, error)
	// GetTicks returns ticks for the symbol within [start, end].
	GetTicks(symbol string, start time.Time, end time.Time) ([]types.Tick, error)
	// GetOrderBooks returns order book snapshots for the symbol within [start, end].
	GetOrderBooks(symbol string, start time.Time, end time.Time) ([]types.OrderBook, error)
	// GetAvailableSymbols returns every symbol the source can serve.
	GetAvailableSymbols() ([]string, error)
	// GetTimeRange returns the earliest and latest timestamps available for the symbol.
	GetTimeRange(symbol string) (time.Time, time.Time, error)
}
