package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents the current holdings of a symbol. Quantity is signed:
// positive for long exposure, negative for short. A position is created on a
// symbol's first fill and persists at zero quantity after it is closed.
type Position struct {
	Symbol string `yaml:"symbol" json:"symbol" csv:"symbol"`
	// Quantity is the signed open quantity.
	Quantity float64 `yaml:"quantity" json:"quantity" csv:"quantity"`
	// AvgEntryPrice is the volume-weighted average entry price of the open quantity.
	AvgEntryPrice float64 `yaml:"avg_entry_price" json:"avg_entry_price" csv:"avg_entry_price"`
	// CurrentPrice is the last-known mark price for the symbol.
	CurrentPrice float64 `yaml:"current_price" json:"current_price" csv:"current_price"`
	// RealizedPnL accumulates profit and loss realized by reducing or flipping exposure.
	RealizedPnL float64 `yaml:"realized_pnl" json:"realized_pnl" csv:"realized_pnl"`
	// TotalFees accumulates fees charged against the symbol's fills.
	TotalFees     float64   `yaml:"total_fees" json:"total_fees" csv:"total_fees"`
	OpenTimestamp time.Time `yaml:"open_timestamp" json:"open_timestamp" csv:"open_timestamp"`
	UpdatedAt     time.Time `yaml:"updated_at" json:"updated_at" csv:"updated_at"`
}

// MarketValue returns the signed mark-to-market value of the position.
func (p *Position) MarketValue() float64 {
	value, _ := decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromFloat(p.CurrentPrice)).Float64()

	return value
}

// UnrealizedPnL returns the profit or loss of the open quantity against the
// average entry price, valued at the current mark price.
func (p *Position) UnrealizedPnL() float64 {
	if p.Quantity == 0 {
		return 0
	}

	markDec := decimal.NewFromFloat(p.CurrentPrice).Sub(decimal.NewFromFloat(p.AvgEntryPrice))
	pnl, _ := markDec.Mul(decimal.NewFromFloat(p.Quantity)).Float64()

	return pnl
}

// AccountInfo is a point-in-time snapshot of the ledger.
type AccountInfo struct {
	// Cash is the current cash balance (excluding unrealized P&L)
	Cash float64 `json:"cash" yaml:"cash"`
	// Equity is the total account value (cash + mark-to-market positions)
	Equity float64 `json:"equity" yaml:"equity"`
	// RealizedPnL is the total realized profit/loss from reduced positions
	RealizedPnL float64 `json:"realized_pnl" yaml:"realized_pnl"`
	// UnrealizedPnL is the total unrealized profit/loss from open positions
	UnrealizedPnL float64 `json:"unrealized_pnl" yaml:"unrealized_pnl"`
	// TotalFees is the total fees paid
	TotalFees float64 `json:"total_fees" yaml:"total_fees"`
	// MaxLeverage is the configured leverage ceiling. Advisory only: the
	// ledger records it but does not block orders that would breach it.
	MaxLeverage float64 `json:"max_leverage" yaml:"max_leverage"`
}
