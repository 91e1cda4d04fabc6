package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/marketbench/backsim/internal/commission"
	"github.com/marketbench/backsim/internal/types"
	"github.com/marketbench/backsim/pkg/errors"
)

const validConfigYAML = `
start_time: 2023-01-01T00:00:00Z
end_time: 2023-01-10T00:00:00Z
initial_capital: 10000
symbols:
  - AAPL
intervals:
  - 1d
commission: fixed_rate
commission_rate: 0.001
slippage_rate: 0.01
execution_delay: 500ms
partial_fill:
  probability: 0.5
  min_ratio: 0.2
  max_ratio: 0.8
random_seed: 42
max_leverage: 2
params:
  quantity: "1"
`

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) TestParseValidConfig() {
	config, err := ParseConfig(validConfigYAML)
	suite.Require().NoError(err)

	suite.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), config.StartTime)
	suite.Equal(time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC), config.EndTime)
	suite.Equal(10000.0, config.InitialCapital)
	suite.Equal([]string{"AAPL"}, config.Symbols)
	suite.Equal([]types.Interval{types.Interval1d}, config.Intervals)
	suite.Equal(commission.ModelNameFixedRate, config.Commission)
	suite.Equal(0.001, config.CommissionRate)
	suite.Equal(500*time.Millisecond, time.Duration(config.ExecutionDelay))
	suite.Equal(0.5, config.PartialFill.Probability)
	suite.Equal(int64(42), config.RandomSeed)
	suite.Equal("1", config.Params["quantity"])
}

func (suite *ConfigTestSuite) TestParseFailures() {
	tests := []struct {
		name     string
		yaml     string
		wantCode errors.ErrorCode
	}{
		{
			name:     "not yaml",
			yaml:     "{{{",
			wantCode: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "missing capital",
			yaml: `
start_time: 2023-01-01T00:00:00Z
end_time: 2023-01-10T00:00:00Z
symbols: [AAPL]
intervals: [1d]
`,
			wantCode: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "negative capital",
			yaml: `
start_time: 2023-01-01T00:00:00Z
end_time: 2023-01-10T00:00:00Z
initial_capital: -1
symbols: [AAPL]
intervals: [1d]
`,
			wantCode: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "no symbols",
			yaml: `
start_time: 2023-01-01T00:00:00Z
end_time: 2023-01-10T00:00:00Z
initial_capital: 10000
symbols: []
intervals: [1d]
`,
			wantCode: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "end before start",
			yaml: `
start_time: 2023-01-10T00:00:00Z
end_time: 2023-01-01T00:00:00Z
initial_capital: 10000
symbols: [AAPL]
intervals: [1d]
`,
			wantCode: errors.ErrCodeInvalidTimeRange,
		},
		{
			name: "unknown interval",
			yaml: `
start_time: 2023-01-01T00:00:00Z
end_time: 2023-01-10T00:00:00Z
initial_capital: 10000
symbols: [AAPL]
intervals: [3d]
`,
			wantCode: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "bad execution delay",
			yaml: `
start_time: 2023-01-01T00:00:00Z
end_time: 2023-01-10T00:00:00Z
initial_capital: 10000
symbols: [AAPL]
intervals: [1d]
execution_delay: soon
`,
			wantCode: errors.ErrCodeInvalidConfiguration,
		},
		{
			name: "partial fill ratios inverted",
			yaml: `
start_time: 2023-01-01T00:00:00Z
end_time: 2023-01-10T00:00:00Z
initial_capital: 10000
symbols: [AAPL]
intervals: [1d]
partial_fill:
  probability: 1
  min_ratio: 0.8
  max_ratio: 0.2
`,
			wantCode: errors.ErrCodeInvalidConfiguration,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := ParseConfig(tc.yaml)
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, tc.wantCode))
		})
	}
}

func (suite *ConfigTestSuite) TestGenerateSchemaJSON() {
	schema, err := GenerateSchemaJSON()
	suite.Require().NoError(err)
	suite.Contains(schema, "initial_capital")
	suite.Contains(schema, "partial_fill")
	suite.Contains(schema, "symbols")

	// The commission field enumerates the known models.
	suite.Contains(schema, "fixed_rate")
	suite.Contains(schema, "per_share")
}
