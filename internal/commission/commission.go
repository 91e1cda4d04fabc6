// Package commission provides the execution-cost models applied against
// simulated fills.
package commission

import "github.com/invopop/jsonschema"

// Model calculates the commission charged for executing quantity at price.
// The returned fee is in the quote asset.
type Model interface {
	Calculate(price float64, quantity float64) float64
	// Rate returns the nominal fee rate for reporting; zero for flat models.
	Rate() float64
}

type ModelName string

const (
	ModelNameZero      ModelName = "zero"
	ModelNameFixedRate ModelName = "fixed_rate"
	ModelNamePerShare  ModelName = "per_share"
)

var AllModelNames = []any{
	ModelNameZero,
	ModelNameFixedRate,
	ModelNamePerShare,
}

// JSONSchema constrains a configured model name to the known models.
func (ModelName) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "string",
		Enum: AllModelNames,
	}
}

// GetModel resolves a configured model name. Unknown names fall back to zero
// commission.
func GetModel(name ModelName, rate float64) Model {
	switch name {
	case ModelNameFixedRate:
		return NewFixedRate(rate)
	case ModelNamePerShare:
		return NewPerShare()
	case ModelNameZero:
		return NewZero()
	default:
		return NewZero()
	}
}
