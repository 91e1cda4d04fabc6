// Package engine defines the simulation engine contract.
package engine

import (
	"context"

	"github.com/moznion/go-optional"

	"github.com/marketbench/backsim/internal/datasource"
	"github.com/marketbench/backsim/internal/strategy"
)

// OnProgressCallback is invoked for each processed event with the number of
// events processed so far and the number initially loaded.
type OnProgressCallback func(current int, total int)

type Engine interface {
	// Initialize parses and eagerly validates the YAML configuration. A
	// validation failure is reported immediately and no simulation state is
	// touched.
	Initialize(config string) error
	// SetDataManager sets the historical-data facade for the engine.
	SetDataManager(manager *datasource.Manager) error
	// SetStrategy sets the trading-decision collaborator driven by the run.
	SetStrategy(s strategy.Strategy) error
	// Run replays the configured time range. The context is polled once per
	// drain iteration for cooperative cancellation. A re-entrant call while
	// already running fails immediately.
	Run(ctx context.Context, onProgress optional.Option[OnProgressCallback]) error
	// GetConfigSchema returns the JSON schema of the engine configuration.
	GetConfigSchema() (string, error)
}
