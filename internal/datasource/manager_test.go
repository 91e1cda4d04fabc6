package datasource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/marketbench/backsim/internal/logger"
	"github.com/marketbench/backsim/internal/types"
	"github.com/marketbench/backsim/pkg/errors"
)

// stubSource is a call-counting in-memory data source.
type stubSource struct {
	name    string
	symbols []string
	start   time.Time
	end     time.Time
	bars    []types.Bar
	failAll bool

	barCalls    int
	tickCalls   int
	symbolCalls int
}

func (s *stubSource) Name() string        { return s.name }
func (s *stubSource) Description() string { return "stub" }

func (s *stubSource) GetBars(symbol string, interval types.Interval, start time.Time, end time.Time) ([]types.Bar, error) {
	s.barCalls++
	if s.failAll {
		return nil, errors.New(errors.ErrCodeSourceFailed, "stub failure")
	}

	return s.bars, nil
}

func (s *stubSource) GetTicks(symbol string, start time.Time, end time.Time) ([]types.Tick, error) {
	s.tickCalls++
	if s.failAll {
		return nil, errors.New(errors.ErrCodeSourceFailed, "stub failure")
	}

	return []types.Tick{{Symbol: symbol, Timestamp: start, Price: 100}}, nil
}

func (s *stubSource) GetOrderBooks(symbol string, start time.Time, end time.Time) ([]types.OrderBook, error) {
	if s.failAll {
		return nil, errors.New(errors.ErrCodeSourceFailed, "stub failure")
	}

	return []types.OrderBook{{Symbol: symbol, Timestamp: start}}, nil
}

func (s *stubSource) GetAvailableSymbols() ([]string, error) {
	s.symbolCalls++
	if s.failAll {
		return nil, errors.New(errors.ErrCodeSourceFailed, "stub failure")
	}

	return s.symbols, nil
}

func (s *stubSource) GetTimeRange(symbol string) (time.Time, time.Time, error) {
	if s.failAll {
		return time.Time{}, time.Time{}, errors.New(errors.ErrCodeSourceFailed, "stub failure")
	}

	return s.start, s.end, nil
}

type ManagerTestSuite struct {
	suite.Suite
	manager *Manager
}

func (suite *ManagerTestSuite) SetupTest() {
	suite.manager = NewDefaultManager(logger.NewNopLogger())
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func (suite *ManagerTestSuite) TestRegisterRejectsDuplicateName() {
	source := &stubSource{name: "primary"}

	suite.Require().NoError(suite.manager.RegisterDataSource(source, Capabilities{Bars: true}))

	err := suite.manager.RegisterDataSource(&stubSource{name: "primary"}, Capabilities{Bars: true})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeSourceAlreadyExists))
}

func (suite *ManagerTestSuite) TestRemoveUnknownSourceFails() {
	err := suite.manager.RemoveDataSource("nope")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeSourceNotFound))
}

func (suite *ManagerTestSuite) TestRoutesToFirstRegisteredSupportingSource() {
	barsOnly := &stubSource{name: "bars"}
	ticksOnly := &stubSource{name: "ticks"}

	suite.Require().NoError(suite.manager.RegisterDataSource(barsOnly, Capabilities{Bars: true}))
	suite.Require().NoError(suite.manager.RegisterDataSource(ticksOnly, Capabilities{Ticks: true}))

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := suite.manager.GetBars("AAPL", types.Interval1d, start, start.AddDate(0, 0, 1))
	suite.Require().NoError(err)
	suite.Equal(1, barsOnly.barCalls)
	suite.Equal(0, ticksOnly.barCalls)

	_, err = suite.manager.GetTicks("AAPL", start, start.AddDate(0, 0, 1))
	suite.Require().NoError(err)
	suite.Equal(1, ticksOnly.tickCalls)
	suite.Equal(0, barsOnly.tickCalls)
}

func (suite *ManagerTestSuite) TestUnsupportedKindFails() {
	source := &stubSource{name: "bars"}
	suite.Require().NoError(suite.manager.RegisterDataSource(source, Capabilities{Bars: true}))

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := suite.manager.GetOrderBooks("AAPL", start, start.AddDate(0, 0, 1))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDataUnavailable))
}

func (suite *ManagerTestSuite) TestRepeatedQueryServedFromCache() {
	source := &stubSource{
		name: "bars",
		bars: []types.Bar{{Symbol: "AAPL", Close: 100}},
	}
	suite.Require().NoError(suite.manager.RegisterDataSource(source, Capabilities{Bars: true}))

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 10)

	first, err := suite.manager.GetBars("AAPL", types.Interval1d, start, end)
	suite.Require().NoError(err)

	second, err := suite.manager.GetBars("AAPL", types.Interval1d, start, end)
	suite.Require().NoError(err)

	suite.Equal(first, second)
	suite.Equal(1, source.barCalls)

	suite.manager.ClearCache()

	_, err = suite.manager.GetBars("AAPL", types.Interval1d, start, end)
	suite.Require().NoError(err)
	suite.Equal(2, source.barCalls)
}

func (suite *ManagerTestSuite) TestSourceFailureIsWrapped() {
	source := &stubSource{name: "bars", failAll: true}
	suite.Require().NoError(suite.manager.RegisterDataSource(source, Capabilities{Bars: true}))

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := suite.manager.GetBars("AAPL", types.Interval1d, start, start.AddDate(0, 0, 1))
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeSourceFailed))
}

func (suite *ManagerTestSuite) TestAvailableSymbolsIsDeduplicatedUnion() {
	suite.Require().NoError(suite.manager.RegisterDataSource(
		&stubSource{name: "a", symbols: []string{"MSFT", "AAPL"}}, Capabilities{Bars: true}))
	suite.Require().NoError(suite.manager.RegisterDataSource(
		&stubSource{name: "b", symbols: []string{"AAPL", "GOOG"}}, Capabilities{Ticks: true}))
	suite.Require().NoError(suite.manager.RegisterDataSource(
		&stubSource{name: "broken", failAll: true}, Capabilities{Bars: true}))

	symbols := suite.manager.GetAvailableSymbols()
	suite.Equal([]string{"AAPL", "GOOG", "MSFT"}, symbols)
}

func (suite *ManagerTestSuite) TestTimeRangeIsWidestAcrossSources() {
	early := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	suite.Require().NoError(suite.manager.RegisterDataSource(
		&stubSource{name: "a", start: early, end: early.AddDate(1, 0, 0)}, Capabilities{Bars: true}))
	suite.Require().NoError(suite.manager.RegisterDataSource(
		&stubSource{name: "b", start: early.AddDate(2, 0, 0), end: late}, Capabilities{Bars: true}))

	start, end, err := suite.manager.GetTimeRange("AAPL")
	suite.Require().NoError(err)
	suite.Equal(early, start)
	suite.Equal(late, end)
}

func (suite *ManagerTestSuite) TestTimeRangeFailsWhenNoSourceKnowsSymbol() {
	suite.Require().NoError(suite.manager.RegisterDataSource(
		&stubSource{name: "broken", failAll: true}, Capabilities{Bars: true}))

	_, _, err := suite.manager.GetTimeRange("AAPL")
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeDataNotFound))
}
