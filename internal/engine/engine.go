// Package engine runs deterministic backtests: it replays a dataset bar by
// bar through a strategy, simulates the resulting orders against a ledger
// and records an equity trace plus summary metrics.
package engine

import (
	"context"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marktide/marktide/internal/dataset"
	"github.com/marktide/marktide/internal/logger"
	"github.com/marktide/marktide/internal/strategy"
	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

// Status is the lifecycle state of a backtest run.
type Status string

const (
	StatusInitialized Status = "INITIALIZED"
	StatusRunning     Status = "RUNNING"
	StatusCompleted   Status = "COMPLETED"
	StatusFailed      Status = "FAILED"
)

// ProgressFunc reports replay progress as (current bar, total bars).
type ProgressFunc func(current, total int)

// quantityPrecision is the number of decimal places order quantities are
// sized to.
const quantityPrecision = 12

// BacktestEngine replays one dataset through one strategy. An engine
// instance runs exactly once: INITIALIZED -> RUNNING -> COMPLETED or FAILED.
type BacktestEngine struct {
	config    Config
	dataset   *dataset.MarketDataset
	strategy  strategy.Strategy
	simulator *OrderSimulator
	ledger    *Ledger
	store     *RunStore
	log       *logger.Logger
	status    Status
	runID     string
	progress  optional.Option[ProgressFunc]
}

// NewBacktestEngine validates the config against the dataset and assembles a
// ready-to-run engine.
func NewBacktestEngine(config Config, ds *dataset.MarketDataset, strat strategy.Strategy, store *RunStore, log *logger.Logger) (*BacktestEngine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if ds.Symbol() != config.Symbol {
		return nil, errors.Newf(errors.ErrCodeBacktestNotRunnable,
			"dataset is for %s but config names %s", ds.Symbol(), config.Symbol)
	}

	fees, err := NewFeeModel(config.Fee.Model, config.Fee.Value)
	if err != nil {
		return nil, err
	}

	slippage, err := NewSlippageModel(config.Slippage.Model, config.Slippage.Value)
	if err != nil {
		return nil, err
	}

	return &BacktestEngine{
		config:    config,
		dataset:   ds,
		strategy:  strat,
		simulator: NewOrderSimulator(fees, slippage, config.AllowShort),
		ledger:    NewLedger(config.InitialCapital, config.AllowShort),
		store:     store,
		log:       log,
		status:    StatusInitialized,
		runID:     uuid.New().String(),
		progress:  optional.None[ProgressFunc](),
	}, nil
}

// RunID returns the unique identifier of this run.
func (e *BacktestEngine) RunID() string {
	return e.runID
}

// Status returns the current lifecycle state.
func (e *BacktestEngine) Status() Status {
	return e.status
}

// SetProgress installs a progress callback invoked once per replayed bar.
func (e *BacktestEngine) SetProgress(fn ProgressFunc) {
	e.progress = optional.Some(fn)
}

// Run replays the dataset. It may be called once; any further call fails
// with ErrCodeBacktestNotRunnable. Strategy errors are logged and treated as
// HOLD; ledger invariant violations abort the run.
func (e *BacktestEngine) Run(ctx context.Context) (types.Summary, error) {
	if e.status != StatusInitialized {
		return types.Summary{}, errors.Newf(errors.ErrCodeBacktestNotRunnable,
			"engine in state %s cannot run", e.status)
	}

	e.status = StatusRunning
	total := e.dataset.Len()

	// A bounded window must still be wide enough for the strategy to warm up.
	lookback := e.config.Lookback
	if lookback > 0 && lookback < e.strategy.WarmupPeriod() {
		lookback = e.strategy.WarmupPeriod()
	}

	e.log.Info("backtest started",
		zap.String("run_id", e.runID),
		zap.String("symbol", e.config.Symbol),
		zap.String("strategy", e.strategy.Name()),
		zap.Int("bars", total),
	)

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return e.fail(errors.Wrap(errors.ErrCodeBacktestFailed, "backtest canceled", err))
		}

		bar := e.dataset.Bar(i)
		window := e.dataset.Window(i, lookback)

		signal, err := e.generateSignal(window)
		if err != nil {
			// A failing step is an implicit HOLD, not a run failure.
			e.log.Warn("strategy step failed, holding",
				zap.String("run_id", e.runID),
				zap.Time("bar", bar.Time),
				zap.Error(err),
			)

			signal = types.HoldSignal(bar.Symbol, bar.Time)
		}

		e.ledger.NoteSignal(signal.Action)

		if signal.Action != types.SignalActionHold {
			if err := e.processSignal(signal, bar); err != nil {
				return e.fail(err)
			}
		}

		if _, err := e.ledger.MarkToMarket(bar.Time, map[string]float64{e.config.Symbol: bar.Close}); err != nil {
			return e.fail(err)
		}

		trace := e.ledger.Trace()
		if err := e.store.RecordEquity(e.runID, trace[len(trace)-1]); err != nil {
			return e.fail(err)
		}

		if e.progress.IsSome() {
			e.progress.Unwrap()(i+1, total)
		}
	}

	e.status = StatusCompleted

	fills, err := e.store.GetFills(e.runID)
	if err != nil {
		return types.Summary{}, err
	}

	summary := ComputeSummary(e.config, e.runID, e.ledger.Trace(), fills,
		e.dataset.First().Close, e.dataset.Last().Close)

	if e.config.ResultsFolder != "" {
		if err := e.store.ExportParquet(e.config.ResultsFolder); err != nil {
			return summary, err
		}

		summaryPath := filepath.Join(e.config.ResultsFolder, "summary.yaml")
		if err := types.WriteSummary(summaryPath, []types.Summary{summary}); err != nil {
			return summary, errors.Wrap(errors.ErrCodeStateStoreFailed, "failed to write summary", err)
		}
	}

	e.log.Info("backtest completed",
		zap.String("run_id", e.runID),
		zap.Float64("final_equity", summary.FinalEquity),
		zap.Float64("total_return", summary.TotalReturn),
		zap.Int("trades", summary.TradeResult.NumberOfTrades),
	)

	return summary, nil
}

// processSignal turns a non-HOLD signal into an order, simulates it, books
// the fill and reports it back to the strategy.
func (e *BacktestEngine) processSignal(signal types.Signal, bar types.Bar) error {
	account := e.ledger.AccountState(map[string]float64{e.config.Symbol: bar.Close})

	order, ok := e.orderFromSignal(signal, bar, account)
	if !ok {
		return nil
	}

	fill := e.simulator.Execute(order, bar, account)

	realized, err := e.ledger.Apply(fill)
	if err != nil {
		return err
	}

	fill.PnL = realized

	if err := e.store.RecordFill(e.runID, fill); err != nil {
		return err
	}

	e.notifyStrategy(fill, bar.Time)

	if fill.Rejected() {
		e.log.Debug("order rejected",
			zap.String("run_id", e.runID),
			zap.String("side", string(fill.Side)),
			zap.String("reason", fill.Reason),
			zap.Time("bar", bar.Time),
		)
	} else {
		e.log.Debug("order filled",
			zap.String("run_id", e.runID),
			zap.String("side", string(fill.Side)),
			zap.Float64("price", fill.Price),
			zap.Float64("quantity", fill.Quantity),
			zap.Float64("pnl", realized),
		)
	}

	return nil
}

// generateSignal calls the strategy with panics contained: a strategy bug
// must surface as a per-step error (and so an implicit HOLD), never crash
// the replay.
func (e *BacktestEngine) generateSignal(window dataset.Window) (signal types.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeStrategyStepFailed, "strategy panicked: %v", r)
		}
	}()

	return e.strategy.GenerateSignal(window)
}

// notifyStrategy delivers the fill to the strategy. The fill is already
// booked, so a panicking handler is logged and dropped rather than allowed
// to unwind past the ledger.
func (e *BacktestEngine) notifyStrategy(fill types.Fill, at time.Time) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("strategy fill handler panicked",
				zap.String("run_id", e.runID),
				zap.Time("bar", at),
				zap.Any("panic", r),
			)
		}
	}()

	e.strategy.HandleOrderResult(fill)
}

// orderFromSignal sizes an order from the signal strength. BUY invests a
// fraction of free cash, SELL releases a fraction of the open position. A
// size of zero produces no order.
func (e *BacktestEngine) orderFromSignal(signal types.Signal, bar types.Bar, account types.AccountState) (types.Order, bool) {
	fraction := signal.Strength
	if fraction <= 0 {
		fraction = e.config.OrderFraction
	}

	var quantity float64

	switch signal.Action {
	case types.SignalActionBuy:
		quantity = affordableQuantity(account.Cash*fraction, bar.Close)
	case types.SignalActionSell:
		position := account.Positions[signal.Symbol]
		quantity = position.Quantity * fraction

		if quantity <= 0 && e.config.AllowShort {
			quantity = affordableQuantity(account.Cash*fraction, bar.Close)
		}
	default:
		return types.Order{}, false
	}

	if quantity <= 0 {
		return types.Order{}, false
	}

	side := types.SideBuy
	if signal.Action == types.SignalActionSell {
		side = types.SideSell
	}

	return types.Order{
		ID:             uuid.New().String(),
		Symbol:         signal.Symbol,
		Side:           side,
		Type:           types.OrderTypeMarket,
		Quantity:       quantity,
		RequestedPrice: bar.Close,
		Time:           bar.Time,
		StrategyName:   signal.StrategyName,
	}, true
}

// affordableQuantity sizes a buy so its decimal notional never exceeds the
// cash budget. Plain float division can land a hair above the budget once
// the ledger re-multiplies in decimal, so the quotient is shaved downward
// until the exact product fits.
func affordableQuantity(budget, price float64) float64 {
	if budget <= 0 || price <= 0 {
		return 0
	}

	budgetDec := decimal.NewFromFloat(budget)
	priceDec := decimal.NewFromFloat(price)

	quantity, _ := budgetDec.DivRound(priceDec, quantityPrecision).Float64()
	for quantity > 0 && decimal.NewFromFloat(quantity).Mul(priceDec).GreaterThan(budgetDec) {
		quantity = math.Nextafter(quantity, 0)
	}

	return quantity
}

func (e *BacktestEngine) fail(err error) (types.Summary, error) {
	e.status = StatusFailed

	e.log.Error("backtest failed",
		zap.String("run_id", e.runID),
		zap.Error(err),
	)

	return types.Summary{}, err
}
