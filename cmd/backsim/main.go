package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/marketbench/backsim/internal/datasource"
	csvsource "github.com/marketbench/backsim/internal/datasource/csv"
	duckdbsource "github.com/marketbench/backsim/internal/datasource/duckdb"
	"github.com/marketbench/backsim/internal/engine"
	enginev1 "github.com/marketbench/backsim/internal/engine/engine_v1"
	"github.com/marketbench/backsim/internal/logger"
	"github.com/marketbench/backsim/internal/strategy"
	"github.com/marketbench/backsim/internal/types"
)

// runAction wires a data source, the buy-and-hold example strategy and the
// simulation engine together, then prints the resulting account summary.
func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	dataPath := cmd.String("data")
	interval := types.Interval(cmd.String("interval"))
	exportDir := cmd.String("export")

	configRaw, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	zlog, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer zlog.Sync()

	source, caps, err := openSource(dataPath, interval, zlog)
	if err != nil {
		return err
	}

	manager := datasource.NewDefaultManager(zlog)
	if err := manager.RegisterDataSource(source, caps); err != nil {
		return fmt.Errorf("failed to register data source: %w", err)
	}

	eng := enginev1.NewSimulationEngineV1()
	if err := eng.Initialize(string(configRaw)); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := eng.SetDataManager(manager); err != nil {
		return err
	}

	if err := eng.SetStrategy(strategy.NewBuyAndHold()); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	onProgress := engine.OnProgressCallback(func(current int, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Replaying"),
				progressbar.OptionShowCount(),
			)
		}

		_ = bar.Set(current)
	})

	if err := eng.Run(ctx, optional.Some(onProgress)); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	sim, ok := eng.(*enginev1.SimulationEngineV1)
	if !ok {
		return nil
	}

	printSummary(sim)

	if exportDir != "" {
		if err := sim.Timeline().Export(exportDir); err != nil {
			return fmt.Errorf("failed to export timeline: %w", err)
		}
	}

	return nil
}

// openSource picks a data source by the file extension: .csv is loaded in
// memory, .db/.duckdb/.parquet go through DuckDB.
func openSource(path string, interval types.Interval, log *logger.Logger) (datasource.DataSource, datasource.Capabilities, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		source, err := csvsource.NewBarSource("csv", path, interval, log)
		if err != nil {
			return nil, datasource.Capabilities{}, fmt.Errorf("failed to open CSV source: %w", err)
		}

		return source, source.Capabilities(), nil

	case ".db", ".duckdb":
		source, err := duckdbsource.NewBarSource("duckdb", path, log)
		if err != nil {
			return nil, datasource.Capabilities{}, fmt.Errorf("failed to open DuckDB source: %w", err)
		}

		return source, source.Capabilities(), nil

	case ".parquet":
		source, err := duckdbsource.NewBarSource("duckdb", ":memory:", log)
		if err != nil {
			return nil, datasource.Capabilities{}, fmt.Errorf("failed to open DuckDB source: %w", err)
		}

		if err := source.Attach(path); err != nil {
			return nil, datasource.Capabilities{}, err
		}

		return source, source.Capabilities(), nil

	default:
		return nil, datasource.Capabilities{}, fmt.Errorf("unsupported data file: %s", path)
	}
}

func printSummary(sim *enginev1.SimulationEngineV1) {
	account := sim.AccountInfo()

	fmt.Println("=== Account ===")
	fmt.Printf("Cash:           %.2f\n", account.Cash)
	fmt.Printf("Equity:         %.2f\n", account.Equity)
	fmt.Printf("Realized PnL:   %.2f\n", account.RealizedPnL)
	fmt.Printf("Unrealized PnL: %.2f\n", account.UnrealizedPnL)
	fmt.Printf("Total fees:     %.2f\n", account.TotalFees)

	positions := sim.Positions()
	if len(positions) > 0 {
		fmt.Println("=== Positions ===")

		for _, position := range positions {
			fmt.Printf("%-10s qty=%.4f avg=%.2f mark=%.2f realized=%.2f\n",
				position.Symbol,
				position.Quantity,
				position.AvgEntryPrice,
				position.CurrentPrice,
				position.RealizedPnL,
			)
		}
	}

	notifications, err := sim.Timeline().Notifications()
	if err == nil && len(notifications) > 0 {
		fmt.Println("=== Notifications ===")

		tail := notifications
		if len(tail) > 10 {
			tail = tail[len(tail)-10:]
		}

		for _, notification := range tail {
			fmt.Printf("%s [%s] %s: %s\n",
				notification.Timestamp.Format("2006-01-02 15:04:05"),
				notification.Level,
				notification.Title,
				notification.Message,
			)
		}
	}
}

// schemaAction prints the engine configuration JSON schema.
func schemaAction(ctx context.Context, cmd *cli.Command) error {
	schema, err := enginev1.NewSimulationEngineV1().GetConfigSchema()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backsim",
		Usage: "Replay historical market data through a trading strategy",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a simulation",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the YAML run configuration",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Path to the bar data file (.csv, .parquet, .db, .duckdb)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "interval",
						Aliases: []string{"i"},
						Usage:   "Bar interval of a CSV data file",
						Value:   string(types.Interval1d),
					},
					&cli.StringFlag{
						Name:    "export",
						Aliases: []string{"e"},
						Usage:   "Directory to export the run timeline to as Parquet",
					},
				},
				Action: runAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the run configuration JSON schema",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
