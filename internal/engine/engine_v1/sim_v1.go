package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/marketbench/backsim/internal/commission"
	"github.com/marketbench/backsim/internal/datasource"
	"github.com/marketbench/backsim/internal/engine"
	"github.com/marketbench/backsim/internal/eventqueue"
	"github.com/marketbench/backsim/internal/logger"
	"github.com/marketbench/backsim/internal/portfolio"
	"github.com/marketbench/backsim/internal/simulator"
	"github.com/marketbench/backsim/internal/strategy"
	"github.com/marketbench/backsim/internal/types"
	"github.com/marketbench/backsim/pkg/errors"
)

// SimulationEngineV1 implements engine.Engine. It owns the event queue, the
// market simulator and the ledger, and drives the strategy through its hooks
// on a simulated clock. Not safe for concurrent use.
type SimulationEngineV1 struct {
	log *logger.Logger

	config      Config
	initialized bool
	running     bool

	dataManager *datasource.Manager
	strat       strategy.Strategy

	queue    *eventqueue.Queue
	sim      *simulator.MarketSimulator
	ledger   *portfolio.Manager
	timeline *Timeline

	runCtx   *runContext
	lastCash float64
}

// NewSimulationEngineV1 creates an engine. Initialize must be called before Run.
func NewSimulationEngineV1() engine.Engine {
	log, err := logger.NewLogger()
	if err != nil {
		log = logger.NewNopLogger()
	}

	return &SimulationEngineV1{
		log: log,
	}
}

// Initialize implements engine.Engine. The configuration is parsed and
// validated into a local value first; on failure the engine's state is left
// untouched.
func (e *SimulationEngineV1) Initialize(config string) error {
	parsed, err := ParseConfig(config)
	if err != nil {
		return err
	}

	timeline, err := NewTimeline(e.log)
	if err != nil {
		return err
	}

	if e.timeline != nil {
		e.timeline.Close()
	}

	e.config = parsed
	e.timeline = timeline

	e.sim = simulator.NewMarketSimulator(e.log, simulator.Options{
		Commission:     commissionModel(parsed),
		Slippage:       slippageFunc(parsed),
		ExecutionDelay: time.Duration(parsed.ExecutionDelay),
		PartialFill: simulator.PartialFillConfig{
			Probability: parsed.PartialFill.Probability,
			MinRatio:    parsed.PartialFill.MinRatio,
			MaxRatio:    parsed.PartialFill.MaxRatio,
		},
		Rand: rand.New(rand.NewSource(parsed.RandomSeed)),
	})

	e.ledger = portfolio.NewManager(e.log, parsed.InitialCapital, parsed.MaxLeverage)
	e.queue = eventqueue.NewQueue()
	e.initialized = true

	e.log.Info("Engine initialized",
		zap.Time("start", parsed.StartTime),
		zap.Time("end", parsed.EndTime),
		zap.Float64("initial_capital", parsed.InitialCapital),
		zap.Strings("symbols", parsed.Symbols),
	)

	return nil
}

// SetDataManager implements engine.Engine.
func (e *SimulationEngineV1) SetDataManager(manager *datasource.Manager) error {
	if manager == nil {
		return errors.New(errors.ErrCodeInvalidParameter, "data manager is nil")
	}

	e.dataManager = manager

	return nil
}

// SetStrategy implements engine.Engine.
func (e *SimulationEngineV1) SetStrategy(s strategy.Strategy) error {
	if s == nil {
		return errors.New(errors.ErrCodeInvalidParameter, "strategy is nil")
	}

	e.strat = s

	return nil
}

// GetConfigSchema implements engine.Engine.
func (e *SimulationEngineV1) GetConfigSchema() (string, error) {
	return GenerateSchemaJSON()
}

// Timeline returns the run's simulated-time log and notification store.
func (e *SimulationEngineV1) Timeline() *Timeline {
	return e.timeline
}

// AccountInfo returns the ledger snapshot after (or during) a run.
func (e *SimulationEngineV1) AccountInfo() types.AccountInfo {
	if e.ledger == nil {
		return types.AccountInfo{}
	}

	return e.ledger.GetAccountInfo()
}

// Positions returns the ledger's positions after (or during) a run.
func (e *SimulationEngineV1) Positions() []types.Position {
	if e.ledger == nil {
		return nil
	}

	return e.ledger.GetPositions()
}

// Run implements engine.Engine. It resets the simulation state, bulk-loads
// bars for every configured symbol and interval, then drains the event queue
// in timestamp order until empty, cancelled, or past the configured end time.
func (e *SimulationEngineV1) Run(ctx context.Context, onProgress optional.Option[engine.OnProgressCallback]) error {
	if e.running {
		return errors.New(errors.ErrCodeEngineAlreadyRunning, "engine is already running")
	}

	if !e.initialized {
		return errors.New(errors.ErrCodeEngineNotInitialized, "engine is not initialized")
	}

	if e.dataManager == nil {
		return errors.New(errors.ErrCodeEngineNotInitialized, "no data manager set")
	}

	if e.strat == nil {
		return errors.New(errors.ErrCodeEngineNotInitialized, "no strategy set")
	}

	e.running = true
	defer func() { e.running = false }()

	e.queue.Clear()
	e.sim.Reset()
	e.sim.Reseed(e.config.RandomSeed)
	e.ledger.Reset()

	if err := e.timeline.Cleanup(); err != nil {
		return err
	}

	e.runCtx = newRunContext(e)
	e.lastCash = e.ledger.GetCash()

	e.loadMarketData()

	total := e.queue.Len()
	if total == 0 {
		return errors.New(errors.ErrCodeDataNotFound, "no market data loaded for the configured range")
	}

	if err := e.strat.OnStart(e.runCtx); err != nil {
		return errors.Wrapf(errors.ErrCodeStrategyHookFailed, err, "strategy %s failed in OnStart", e.strat.Name())
	}

	processed := 0

	for !e.queue.IsEmpty() {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.ErrCodeRunCancelled, "run cancelled", err)
		}

		event, err := e.queue.Dequeue()
		if err != nil {
			return err
		}

		if event.Time().After(e.config.EndTime) {
			break
		}

		e.runCtx.currentTime = event.Time()

		if err := e.dispatch(event); err != nil {
			return err
		}

		processed++

		if onProgress.IsSome() {
			onProgress.Unwrap()(processed, total)
		}
	}

	// Fills still waiting out the execution delay when the data runs out are
	// released now, so every accepted execution reaches the ledger before OnEnd.
	if e.queue.IsEmpty() {
		e.enqueueFills(e.sim.FlushPending())

		for !e.queue.IsEmpty() {
			event, err := e.queue.Dequeue()
			if err != nil {
				return err
			}

			e.runCtx.currentTime = event.Time()

			if err := e.dispatch(event); err != nil {
				return err
			}

			processed++

			if onProgress.IsSome() {
				onProgress.Unwrap()(processed, total)
			}
		}
	}

	if err := e.strat.OnEnd(e.runCtx); err != nil {
		return errors.Wrapf(errors.ErrCodeStrategyHookFailed, err, "strategy %s failed in OnEnd", e.strat.Name())
	}

	e.log.Info("Run finished",
		zap.Int("events", processed),
		zap.Float64("final_value", e.ledger.GetPortfolioValue()),
	)

	return nil
}

// loadMarketData bulk-loads bars for every configured symbol and interval and
// enqueues them as events. A failing series is logged and skipped so one bad
// symbol does not abort the run.
func (e *SimulationEngineV1) loadMarketData() {
	for _, symbol := range e.config.Symbols {
		for _, interval := range e.config.Intervals {
			bars, err := e.dataManager.GetBars(symbol, interval, e.config.StartTime, e.config.EndTime)
			if err != nil {
				e.log.Warn("Failed to load bars, skipping series",
					zap.String("symbol", symbol),
					zap.String("interval", string(interval)),
					zap.Error(err),
				)

				continue
			}

			for _, bar := range bars {
				e.queue.Enqueue(types.BarEvent{Bar: bar, Interval: interval})
			}
		}
	}
}

// dispatch routes one event through the simulator, ledger and strategy. A
// strategy hook error aborts the run.
func (e *SimulationEngineV1) dispatch(event types.Event) error {
	hookErr := func(err error) error {
		return errors.Wrapf(errors.ErrCodeStrategyHookFailed, err, "strategy %s failed on %s", e.strat.Name(), event.Kind())
	}

	switch ev := event.(type) {
	case types.BarEvent:
		e.runCtx.lastBars[ev.Bar.Symbol] = ev.Bar
		e.enqueueFills(e.sim.ProcessBar(ev.Bar))
		e.ledger.MarkPrice(ev.Bar.Symbol, ev.Bar.Close)

		if err := e.strat.OnBar(e.runCtx, ev.Bar); err != nil {
			return hookErr(err)
		}

	case types.TickEvent:
		e.enqueueFills(e.sim.ProcessTick(ev.Tick))
		e.ledger.MarkPrice(ev.Tick.Symbol, ev.Tick.Price)

		if err := e.strat.OnTick(e.runCtx, ev.Tick); err != nil {
			return hookErr(err)
		}

	case types.OrderBookEvent:
		e.enqueueFills(e.sim.ProcessOrderBook(ev.Book))

		if err := e.strat.OnOrderBook(e.runCtx, ev.Book); err != nil {
			return hookErr(err)
		}

	case types.OrderPlacedEvent:
		if err := e.strat.OnOrderPlaced(e.runCtx, ev.Order); err != nil {
			return hookErr(err)
		}

	case types.OrderFilledEvent:
		position, err := e.ledger.ProcessFill(ev.Fill)
		if err != nil {
			return err
		}

		cash := e.ledger.GetCash()
		e.queue.Enqueue(types.PositionChangedEvent{Position: position, Timestamp: ev.Fill.Timestamp})
		e.queue.Enqueue(types.CashChangedEvent{Cash: cash, Delta: cash - e.lastCash, Timestamp: ev.Fill.Timestamp})
		e.lastCash = cash

		if err := e.strat.OnOrderFilled(e.runCtx, ev.Order, ev.Fill); err != nil {
			return hookErr(err)
		}

	case types.OrderCancelledEvent:
		if err := e.strat.OnOrderCancelled(e.runCtx, ev.Order); err != nil {
			return hookErr(err)
		}

	case types.PositionChangedEvent:
		if err := e.strat.OnPositionChanged(e.runCtx, ev.Position); err != nil {
			return hookErr(err)
		}

	case types.CashChangedEvent:
		if err := e.strat.OnCashChanged(e.runCtx, ev.Cash, ev.Delta); err != nil {
			return hookErr(err)
		}

	case types.CustomEvent:
		if err := e.strat.OnCustomEvent(e.runCtx, ev.CustomKind, ev.Payload); err != nil {
			return hookErr(err)
		}

	default:
		return errors.Newf(errors.ErrCodeInvalidParameter, "unhandled event kind: %s", event.Kind())
	}

	return nil
}

func (e *SimulationEngineV1) enqueueFills(results []simulator.FillResult) {
	for _, result := range results {
		e.queue.Enqueue(types.OrderFilledEvent{Order: result.Order, Fill: result.Fill})
	}
}

func commissionModel(config Config) commission.Model {
	return commission.GetModel(config.Commission, config.CommissionRate)
}

func slippageFunc(config Config) simulator.SlippageFunc {
	if config.SlippageRate <= 0 {
		return nil
	}

	return simulator.ConstantSlippage(config.SlippageRate)
}
