package engine

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/marketbench/backsim/internal/commission"
	"github.com/marketbench/backsim/internal/types"
	"github.com/marketbench/backsim/pkg/errors"
)

// Duration is a time.Duration that unmarshals from YAML strings like "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid duration: %s", raw)
	}

	*d = Duration(parsed)

	return nil
}

// JSONSchema renders Duration as a Go duration string.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Title:       "Duration",
		Description: "Go duration string, e.g. 500ms or 1h",
	}
}

// PartialFillSettings simulates imperfect liquidity on bar and tick matches.
type PartialFillSettings struct {
	// Probability that an eligible match is truncated, in [0, 1]. Zero disables
	// partial fills.
	Probability float64 `yaml:"probability" json:"probability" validate:"gte=0,lte=1" jsonschema:"description=Probability that an eligible match is truncated"`
	// MinRatio and MaxRatio bound the sampled fraction of the remaining quantity.
	MinRatio float64 `yaml:"min_ratio" json:"min_ratio" validate:"gte=0,lte=1" jsonschema:"description=Lower bound of the sampled fill fraction"`
	MaxRatio float64 `yaml:"max_ratio" json:"max_ratio" validate:"gte=0,lte=1" jsonschema:"description=Upper bound of the sampled fill fraction"`
}

// Config is the engine run configuration. It is parsed from YAML and validated
// eagerly during Initialize.
type Config struct {
	// StartTime and EndTime bound the simulated clock.
	StartTime time.Time `yaml:"start_time" json:"start_time" validate:"required" jsonschema:"description=Inclusive start of the simulated time range"`
	EndTime   time.Time `yaml:"end_time" json:"end_time" validate:"required" jsonschema:"description=Inclusive end of the simulated time range"`
	// InitialCapital seeds the ledger's cash balance.
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" validate:"required,gt=0" jsonschema:"description=Starting cash balance"`
	// Symbols and Intervals select which historical series are replayed.
	Symbols   []string         `yaml:"symbols" json:"symbols" validate:"required,min=1,dive,required" jsonschema:"description=Symbols to replay"`
	Intervals []types.Interval `yaml:"intervals" json:"intervals" validate:"required,min=1" jsonschema:"description=Bar intervals to replay"`
	// Commission selects the fee model, CommissionRate parameterizes fixed_rate.
	Commission     commission.ModelName `yaml:"commission" json:"commission" jsonschema:"description=Commission model: zero, fixed_rate or per_share"`
	CommissionRate float64              `yaml:"commission_rate" json:"commission_rate" validate:"gte=0" jsonschema:"description=Rate for the fixed_rate commission model"`
	// SlippageRate widens execution prices against the order's side.
	SlippageRate float64 `yaml:"slippage_rate" json:"slippage_rate" validate:"gte=0" jsonschema:"description=Constant slippage rate applied against the order side"`
	// ExecutionDelay postpones fill release after a match.
	ExecutionDelay Duration `yaml:"execution_delay" json:"execution_delay" jsonschema:"description=Latency between match and fill release"`
	// PartialFill configures probabilistic fill truncation.
	PartialFill PartialFillSettings `yaml:"partial_fill" json:"partial_fill"`
	// RandomSeed makes partial-fill sampling reproducible across runs.
	RandomSeed int64 `yaml:"random_seed" json:"random_seed" jsonschema:"description=Seed for the partial-fill sampler"`
	// MaxLeverage is advisory account state surfaced to strategies.
	MaxLeverage float64 `yaml:"max_leverage" json:"max_leverage" validate:"gte=0" jsonschema:"description=Advisory leverage limit surfaced on account info"`
	// Params is a free-form bag handed to the strategy.
	Params map[string]string `yaml:"params" json:"params" jsonschema:"description=Free-form strategy parameters"`
}

// ParseConfig unmarshals and validates a YAML configuration.
func ParseConfig(raw string) (Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(raw), &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate checks field constraints plus the cross-field rules the tags cannot
// express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if !c.EndTime.After(c.StartTime) {
		return errors.Newf(errors.ErrCodeInvalidTimeRange, "end_time %s must be after start_time %s", c.EndTime, c.StartTime)
	}

	for _, interval := range c.Intervals {
		if _, err := interval.Duration(); err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid interval: %s", interval)
		}
	}

	if c.PartialFill.MaxRatio < c.PartialFill.MinRatio {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "partial_fill.max_ratio %f is below min_ratio %f", c.PartialFill.MaxRatio, c.PartialFill.MinRatio)
	}

	return nil
}

// GenerateSchemaJSON returns the JSON schema for Config.
func GenerateSchemaJSON() (string, error) {
	schema := jsonschema.Reflect(&Config{})

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to marshal config schema", err)
	}

	return string(data), nil
}
