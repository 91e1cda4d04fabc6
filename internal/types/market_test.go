package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/marketbench/backsim/pkg/errors"
)

type MarketTestSuite struct {
	suite.Suite
}

func TestMarketSuite(t *testing.T) {
	suite.Run(t, new(MarketTestSuite))
}

func (suite *MarketTestSuite) TestIntervalDuration() {
	tests := []struct {
		interval Interval
		want     time.Duration
	}{
		{interval: Interval1m, want: time.Minute},
		{interval: Interval15m, want: 15 * time.Minute},
		{interval: Interval1h, want: time.Hour},
		{interval: Interval1d, want: 24 * time.Hour},
		{interval: Interval1w, want: 7 * 24 * time.Hour},
	}

	for _, tc := range tests {
		suite.Run(string(tc.interval), func() {
			got, err := tc.interval.Duration()
			suite.Require().NoError(err)
			suite.Equal(tc.want, got)
		})
	}
}

func (suite *MarketTestSuite) TestUnknownIntervalFails() {
	_, err := Interval("3d").Duration()
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidInterval))
}

func (suite *MarketTestSuite) TestOrderBookBestLevels() {
	book := OrderBook{
		Symbol: "AAPL",
		Bids: []OrderBookLevel{
			{Price: 99.5, Volume: 50},
			{Price: 99.0, Volume: 100},
		},
		Asks: []OrderBookLevel{
			{Price: 100.5, Volume: 50},
		},
	}

	bid := book.BestBid()
	suite.Require().True(bid.IsSome())
	suite.Equal(99.5, bid.Unwrap().Price)

	ask := book.BestAsk()
	suite.Require().True(ask.IsSome())
	suite.Equal(100.5, ask.Unwrap().Price)

	empty := OrderBook{Symbol: "AAPL"}
	suite.True(empty.BestBid().IsNone())
	suite.True(empty.BestAsk().IsNone())
}

func (suite *MarketTestSuite) TestPositionMath() {
	position := Position{
		Symbol:        "AAPL",
		Quantity:      10,
		AvgEntryPrice: 100,
		CurrentPrice:  110,
	}

	suite.InDelta(1100.0, position.MarketValue(), 1e-9)
	suite.InDelta(100.0, position.UnrealizedPnL(), 1e-9)

	short := Position{
		Symbol:        "AAPL",
		Quantity:      -10,
		AvgEntryPrice: 100,
		CurrentPrice:  110,
	}

	suite.InDelta(-1100.0, short.MarketValue(), 1e-9)
	suite.InDelta(-100.0, short.UnrealizedPnL(), 1e-9)

	flat := Position{Symbol: "AAPL", CurrentPrice: 110}
	suite.Equal(0.0, flat.UnrealizedPnL())
}
