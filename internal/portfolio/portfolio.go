// Package portfolio keeps the cash and position ledger driven by simulated
// fills.
package portfolio

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marketbench/backsim/internal/logger"
	"github.com/marketbench/backsim/internal/types"
	"github.com/marketbench/backsim/pkg/errors"
)

// Manager is the cash + position ledger. Positions are created on a symbol's
// first fill and persist at zero quantity once closed. The configured
// MaxLeverage is advisory state only: enforcement belongs to the calling
// layer, not the ledger.
type Manager struct {
	log            *logger.Logger
	initialCapital float64
	maxLeverage    float64

	cash        float64
	positions   map[string]*types.Position
	realizedPnL float64
	totalFees   float64
}

// NewManager creates a ledger seeded with the given capital.
func NewManager(log *logger.Logger, initialCapital float64, maxLeverage float64) *Manager {
	return &Manager{
		log:            log,
		initialCapital: initialCapital,
		maxLeverage:    maxLeverage,
		cash:           initialCapital,
		positions:      make(map[string]*types.Position),
		realizedPnL:    0,
		totalFees:      0,
	}
}

// Reset restores the ledger to its initial capital with no positions.
func (m *Manager) Reset() {
	m.cash = m.initialCapital
	m.positions = make(map[string]*types.Position)
	m.realizedPnL = 0
	m.totalFees = 0
}

// ProcessFill applies a fill to the ledger: position quantity moves signed by
// side, the volume-weighted average entry price is recomputed when exposure
// grows in the same direction, profit/loss is realized against the prior
// average when exposure shrinks or flips, and cash moves by price * quantity
// adjusted for the fee. Returns the updated position.
func (m *Manager) ProcessFill(fill types.Fill) (types.Position, error) {
	if fill.Quantity <= 0 {
		return types.Position{}, errors.Newf(errors.ErrCodeInvalidFill, "fill quantity must be positive: %f", fill.Quantity)
	}

	if fill.Symbol == "" {
		return types.Position{}, errors.New(errors.ErrCodeInvalidFill, "fill has no symbol")
	}

	position, exists := m.positions[fill.Symbol]
	if !exists {
		position = &types.Position{
			Symbol:        fill.Symbol,
			OpenTimestamp: fill.Timestamp,
		}
		m.positions[fill.Symbol] = position
	}

	signed := fill.Quantity
	if fill.Side == types.SideSell {
		signed = -fill.Quantity
	}

	oldQty := position.Quantity
	newQty := oldQty + signed

	priceDec := decimal.NewFromFloat(fill.Price)
	avgDec := decimal.NewFromFloat(position.AvgEntryPrice)

	sameDirection := oldQty == 0 || math.Signbit(oldQty) == math.Signbit(signed)
	if sameDirection {
		// Growing exposure: recompute the volume-weighted average entry price.
		oldAbs := decimal.NewFromFloat(math.Abs(oldQty))
		addAbs := decimal.NewFromFloat(fill.Quantity)
		totalAbs := oldAbs.Add(addAbs)
		avg, _ := oldAbs.Mul(avgDec).Add(addAbs.Mul(priceDec)).Div(totalAbs).Float64()
		position.AvgEntryPrice = avg
	} else {
		// Reducing or flipping exposure: realize PnL on the closed quantity
		// against the prior average entry price.
		closedQty := math.Min(fill.Quantity, math.Abs(oldQty))
		direction := decimal.NewFromFloat(1)
		if oldQty < 0 {
			direction = decimal.NewFromFloat(-1)
		}

		realized, _ := priceDec.Sub(avgDec).
			Mul(decimal.NewFromFloat(closedQty)).
			Mul(direction).
			Float64()

		position.RealizedPnL += realized
		m.realizedPnL += realized

		if math.Abs(signed) > math.Abs(oldQty) {
			// Flip: the remainder opens a fresh position at the fill price.
			position.AvgEntryPrice = fill.Price
		} else if newQty == 0 {
			position.AvgEntryPrice = 0
		}
	}

	position.Quantity = newQty
	position.CurrentPrice = fill.Price
	position.TotalFees += fill.Fee.Amount
	position.UpdatedAt = fill.Timestamp

	// Cash moves by the fill notional adjusted for the fee.
	notional := priceDec.Mul(decimal.NewFromFloat(fill.Quantity))
	cashDec := decimal.NewFromFloat(m.cash)
	feeDec := decimal.NewFromFloat(fill.Fee.Amount)

	if fill.Side == types.SideBuy {
		m.cash, _ = cashDec.Sub(notional).Sub(feeDec).Float64()
	} else {
		m.cash, _ = cashDec.Add(notional).Sub(feeDec).Float64()
	}

	m.totalFees += fill.Fee.Amount

	m.log.Debug("Fill applied to ledger",
		zap.String("symbol", fill.Symbol),
		zap.String("side", string(fill.Side)),
		zap.Float64("price", fill.Price),
		zap.Float64("quantity", fill.Quantity),
		zap.Float64("cash", m.cash),
		zap.Float64("position", position.Quantity),
	)

	return *position, nil
}

// MarkPrice updates the last-known mark price for the symbol's position, if
// one exists.
func (m *Manager) MarkPrice(symbol string, price float64) {
	if position, exists := m.positions[symbol]; exists {
		position.CurrentPrice = price
	}
}

// GetPosition returns the position for the symbol, if one was ever opened.
func (m *Manager) GetPosition(symbol string) (types.Position, bool) {
	position, exists := m.positions[symbol]
	if !exists {
		return types.Position{}, false
	}

	return *position, true
}

// GetPositions returns every position, sorted by symbol.
func (m *Manager) GetPositions() []types.Position {
	positions := make([]types.Position, 0, len(m.positions))
	for _, position := range m.positions {
		positions = append(positions, *position)
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})

	return positions
}

// GetCash returns the current cash balance.
func (m *Manager) GetCash() float64 {
	return m.cash
}

// GetPortfolioValue returns cash plus the mark-to-market value of every
// position.
func (m *Manager) GetPortfolioValue() float64 {
	total := decimal.NewFromFloat(m.cash)
	for _, position := range m.positions {
		total = total.Add(decimal.NewFromFloat(position.MarketValue()))
	}

	value, _ := total.Float64()

	return value
}

// GetAccountInfo returns a point-in-time ledger snapshot.
func (m *Manager) GetAccountInfo() types.AccountInfo {
	unrealized := 0.0
	for _, position := range m.positions {
		unrealized += position.UnrealizedPnL()
	}

	return types.AccountInfo{
		Cash:          m.cash,
		Equity:        m.GetPortfolioValue(),
		RealizedPnL:   m.realizedPnL,
		UnrealizedPnL: unrealized,
		TotalFees:     m.totalFees,
		MaxLeverage:   m.maxLeverage,
	}
}
