package simulator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/marketbench/backsim/internal/commission"
	"github.com/marketbench/backsim/internal/logger"
	"github.com/marketbench/backsim/internal/types"
	"github.com/marketbench/backsim/pkg/errors"
)

type SimulatorTestSuite struct {
	suite.Suite
	sim *MarketSimulator
	now time.Time
}

func (suite *SimulatorTestSuite) SetupTest() {
	suite.sim = NewMarketSimulator(logger.NewNopLogger(), Options{})
	suite.now = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestSimulatorSuite(t *testing.T) {
	suite.Run(t, new(SimulatorTestSuite))
}

func marketBuy(symbol string, quantity float64) types.Order {
	return types.Order{
		Symbol:   symbol,
		Side:     types.SideBuy,
		Type:     types.OrderTypeMarket,
		Quantity: quantity,
	}
}

func dayBar(symbol string, day int, open, high, low, close float64) types.Bar {
	return types.Bar{
		Symbol:    symbol,
		Timestamp: time.Date(2023, 1, day, 0, 0, 0, 0, time.UTC),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    10000,
	}
}

func (suite *SimulatorTestSuite) TestPlaceOrderAssignsIDAndGoesPending() {
	order, err := suite.sim.PlaceOrder(marketBuy("AAPL", 10), suite.now)
	suite.Require().NoError(err)
	suite.NotEmpty(order.ID)
	suite.Equal(types.OrderStatusPending, order.Status)
	suite.Equal(suite.now, order.CreatedAt)
}

func (suite *SimulatorTestSuite) TestPlaceOrderRejectsMalformedOrders() {
	tests := []struct {
		name  string
		order types.Order
	}{
		{name: "zero quantity", order: marketBuy("AAPL", 0)},
		{name: "missing symbol", order: marketBuy("", 10)},
		{
			name: "limit without limit price",
			order: types.Order{
				Symbol:   "AAPL",
				Side:     types.SideBuy,
				Type:     types.OrderTypeLimit,
				Quantity: 10,
			},
		},
		{
			name: "stop without stop price",
			order: types.Order{
				Symbol:   "AAPL",
				Side:     types.SideSell,
				Type:     types.OrderTypeStop,
				Quantity: 10,
			},
		},
		{
			name: "negative limit price",
			order: types.Order{
				Symbol:     "AAPL",
				Side:       types.SideBuy,
				Type:       types.OrderTypeLimit,
				Quantity:   10,
				LimitPrice: optional.Some(-5.0),
			},
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			rejected, err := suite.sim.PlaceOrder(tc.order, suite.now)
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, errors.ErrCodeOrderRejected))
			suite.Equal(types.OrderStatusRejected, rejected.Status)

			// Rejected orders are not stored.
			suite.True(suite.sim.GetOrder(rejected.ID).IsNone())
		})
	}
}

func (suite *SimulatorTestSuite) TestCancelOrder() {
	order, err := suite.sim.PlaceOrder(marketBuy("AAPL", 10), suite.now)
	suite.Require().NoError(err)

	cancelled, ok := suite.sim.CancelOrder(order.ID, suite.now.Add(time.Minute))
	suite.True(ok)
	suite.Equal(types.OrderStatusCancelled, cancelled.Status)

	// Terminal orders cannot be cancelled again.
	_, ok = suite.sim.CancelOrder(order.ID, suite.now)
	suite.False(ok)

	_, ok = suite.sim.CancelOrder("unknown", suite.now)
	suite.False(ok)
}

func (suite *SimulatorTestSuite) TestCancelledOrderNeverFills() {
	order, err := suite.sim.PlaceOrder(marketBuy("AAPL", 10), suite.now)
	suite.Require().NoError(err)

	_, ok := suite.sim.CancelOrder(order.ID, suite.now)
	suite.True(ok)

	fills := suite.sim.ProcessBar(dayBar("AAPL", 2, 100, 105, 95, 102))
	suite.Empty(fills)
}

func (suite *SimulatorTestSuite) TestMarketOrderFillsAtBarClose() {
	order, err := suite.sim.PlaceOrder(marketBuy("AAPL", 10), suite.now)
	suite.Require().NoError(err)

	fills := suite.sim.ProcessBar(dayBar("AAPL", 2, 100, 105, 95, 102))
	suite.Require().Len(fills, 1)
	suite.Equal(order.ID, fills[0].Fill.OrderID)
	suite.Equal(102.0, fills[0].Fill.Price)
	suite.Equal(10.0, fills[0].Fill.Quantity)
	suite.Equal(types.OrderStatusFilled, fills[0].Order.Status)
}

func (suite *SimulatorTestSuite) TestGetOrdersAndOpenOrders() {
	first, err := suite.sim.PlaceOrder(marketBuy("AAPL", 10), suite.now)
	suite.Require().NoError(err)

	second, err := suite.sim.PlaceOrder(types.Order{
		Symbol:     "MSFT",
		Side:       types.SideSell,
		Type:       types.OrderTypeLimit,
		Quantity:   5,
		LimitPrice: optional.Some(300.0),
	}, suite.now)
	suite.Require().NoError(err)

	all := suite.sim.GetOrders(types.OrderFilter{})
	suite.Require().Len(all, 2)
	suite.Equal(first.ID, all[0].ID)
	suite.Equal(second.ID, all[1].ID)

	buys := suite.sim.GetOrders(types.OrderFilter{Side: optional.Some(types.SideBuy)})
	suite.Require().Len(buys, 1)
	suite.Equal(first.ID, buys[0].ID)

	suite.sim.ProcessBar(dayBar("AAPL", 2, 100, 105, 95, 102))

	open := suite.sim.GetOpenOrders("")
	suite.Require().Len(open, 1)
	suite.Equal(second.ID, open[0].ID)

	suite.Empty(suite.sim.GetOpenOrders("AAPL"))
}

func (suite *SimulatorTestSuite) TestSlippageWidensAgainstSide() {
	suite.sim = NewMarketSimulator(logger.NewNopLogger(), Options{
		Slippage: ConstantSlippage(0.01),
	})

	_, err := suite.sim.PlaceOrder(marketBuy("AAPL", 10), suite.now)
	suite.Require().NoError(err)

	fills := suite.sim.ProcessBar(dayBar("AAPL", 2, 100, 105, 95, 100))
	suite.Require().Len(fills, 1)
	suite.InDelta(101.0, fills[0].Fill.Price, 1e-9)

	_, err = suite.sim.PlaceOrder(types.Order{
		Symbol:   "AAPL",
		Side:     types.SideSell,
		Type:     types.OrderTypeMarket,
		Quantity: 10,
	}, suite.now)
	suite.Require().NoError(err)

	fills = suite.sim.ProcessBar(dayBar("AAPL", 3, 100, 105, 95, 100))
	suite.Require().Len(fills, 1)
	suite.InDelta(99.0, fills[0].Fill.Price, 1e-9)
}

func (suite *SimulatorTestSuite) TestCommissionChargedOnSlippedPrice() {
	suite.sim = NewMarketSimulator(logger.NewNopLogger(), Options{
		Commission: commission.NewFixedRate(0.001),
		Slippage:   ConstantSlippage(0.01),
	})

	_, err := suite.sim.PlaceOrder(marketBuy("AAPL", 10), suite.now)
	suite.Require().NoError(err)

	fills := suite.sim.ProcessBar(dayBar("AAPL", 2, 100, 105, 95, 100))
	suite.Require().Len(fills, 1)

	// 101 * 10 * 0.001
	suite.InDelta(1.01, fills[0].Fill.Fee.Amount, 1e-9)
	suite.Equal(0.001, fills[0].Fill.Fee.Rate)
	suite.Equal("USD", fills[0].Fill.Fee.Asset)
}

func (suite *SimulatorTestSuite) TestPartialFillIsSeededAndCompletesOnRematch() {
	suite.sim = NewMarketSimulator(logger.NewNopLogger(), Options{
		PartialFill: PartialFillConfig{
			Probability: 1.0,
			MinRatio:    0.5,
			MaxRatio:    0.5,
		},
		Rand: rand.New(rand.NewSource(42)),
	})

	order, err := suite.sim.PlaceOrder(marketBuy("AAPL", 10), suite.now)
	suite.Require().NoError(err)

	fills := suite.sim.ProcessBar(dayBar("AAPL", 2, 100, 105, 95, 102))
	suite.Require().Len(fills, 1)
	suite.InDelta(5.0, fills[0].Fill.Quantity, 1e-9)
	suite.Equal(types.OrderStatusPartial, fills[0].Order.Status)

	// A partially filled order re-matches for its full remainder.
	fills = suite.sim.ProcessBar(dayBar("AAPL", 3, 102, 106, 101, 104))
	suite.Require().Len(fills, 1)
	suite.InDelta(5.0, fills[0].Fill.Quantity, 1e-9)
	suite.Equal(types.OrderStatusFilled, fills[0].Order.Status)

	stored := suite.sim.GetOrder(order.ID)
	suite.Require().True(stored.IsSome())
	suite.InDelta(10.0, stored.Unwrap().FilledQuantity, 1e-9)
}

func (suite *SimulatorTestSuite) TestReseedRepeatsPartialFillSampling() {
	suite.sim = NewMarketSimulator(logger.NewNopLogger(), Options{
		PartialFill: PartialFillConfig{
			Probability: 0.5,
			MinRatio:    0.1,
			MaxRatio:    0.9,
		},
		Rand: rand.New(rand.NewSource(42)),
	})

	sample := func() []float64 {
		for i := 0; i < 5; i++ {
			_, err := suite.sim.PlaceOrder(marketBuy("AAPL", 10), suite.now)
			suite.Require().NoError(err)
		}

		var quantities []float64
		for _, result := range suite.sim.ProcessBar(dayBar("AAPL", 2, 100, 105, 95, 102)) {
			quantities = append(quantities, result.Fill.Quantity)
		}

		return quantities
	}

	first := sample()
	suite.NotEmpty(first)

	suite.sim.Reset()
	suite.sim.Reseed(42)

	suite.Equal(first, sample())
}

func (suite *SimulatorTestSuite) TestFlushPendingReleasesDelayedFills() {
	suite.sim = NewMarketSimulator(logger.NewNopLogger(), Options{
		ExecutionDelay: 24 * time.Hour,
	})

	_, err := suite.sim.PlaceOrder(marketBuy("AAPL", 10), suite.now)
	suite.Require().NoError(err)

	day2 := dayBar("AAPL", 2, 100, 105, 95, 102)
	suite.Empty(suite.sim.ProcessBar(day2))

	flushed := suite.sim.FlushPending()
	suite.Require().Len(flushed, 1)
	suite.Equal(102.0, flushed[0].Fill.Price)
	suite.Equal(day2.Timestamp.Add(24*time.Hour), flushed[0].Fill.Timestamp)

	// The buffer is empty afterwards.
	suite.Empty(suite.sim.FlushPending())
}

func (suite *SimulatorTestSuite) TestExecutionDelayPostponesFillRelease() {
	suite.sim = NewMarketSimulator(logger.NewNopLogger(), Options{
		ExecutionDelay: 24 * time.Hour,
	})

	order, err := suite.sim.PlaceOrder(marketBuy("AAPL", 10), suite.now)
	suite.Require().NoError(err)

	day2 := dayBar("AAPL", 2, 100, 105, 95, 102)
	fills := suite.sim.ProcessBar(day2)
	suite.Empty(fills)

	// The order's own state advances immediately even though the fill is held.
	stored := suite.sim.GetOrder(order.ID)
	suite.Require().True(stored.IsSome())
	suite.Equal(types.OrderStatusFilled, stored.Unwrap().Status)

	day3 := dayBar("AAPL", 3, 102, 106, 101, 104)
	fills = suite.sim.ProcessBar(day3)
	suite.Require().Len(fills, 1)
	suite.Equal(102.0, fills[0].Fill.Price)
	suite.Equal(day2.Timestamp.Add(24*time.Hour), fills[0].Fill.Timestamp)
}

func (suite *SimulatorTestSuite) TestMatchOrderExecutesAgainstLastPrice() {
	suite.sim.ProcessBar(dayBar("AAPL", 2, 100, 105, 95, 102))

	order, err := suite.sim.PlaceOrder(marketBuy("AAPL", 10), suite.now)
	suite.Require().NoError(err)

	fills := suite.sim.MatchOrder(order.ID, suite.now)
	suite.Require().Len(fills, 1)
	suite.Equal(102.0, fills[0].Fill.Price)
}

func (suite *SimulatorTestSuite) TestMatchOrderWithoutPriceDoesNothing() {
	order, err := suite.sim.PlaceOrder(marketBuy("AAPL", 10), suite.now)
	suite.Require().NoError(err)

	suite.Empty(suite.sim.MatchOrder(order.ID, suite.now))

	price := suite.sim.LastPrice("AAPL")
	suite.True(price.IsNone())
}

func (suite *SimulatorTestSuite) TestResetClearsState() {
	_, err := suite.sim.PlaceOrder(marketBuy("AAPL", 10), suite.now)
	suite.Require().NoError(err)

	suite.sim.ProcessBar(dayBar("AAPL", 2, 100, 105, 95, 102))
	suite.sim.Reset()

	suite.Empty(suite.sim.GetOrders(types.OrderFilter{}))
	suite.True(suite.sim.LastPrice("AAPL").IsNone())
}
