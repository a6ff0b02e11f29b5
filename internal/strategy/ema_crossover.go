package strategy

import (
	"fmt"

	"github.com/marktide/marktide/internal/dataset"
	"github.com/marktide/marktide/internal/indicator"
	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

const (
	defaultEMAShortPeriod = 8
	defaultEMALongPeriod  = 21
)

// EMACrossover buys when the short EMA crosses above the long EMA and sells
// an open position on the opposite cross, but only while in profit.
type EMACrossover struct {
	shortPeriod int
	longPeriod  int
	position    positionTracker
}

// NewEMACrossover constructs the strategy. Parameters: short_period (int),
// long_period (int).
func NewEMACrossover(params Params) (Strategy, error) {
	shortPeriod, err := params.Int("short_period", defaultEMAShortPeriod)
	if err != nil {
		return nil, err
	}

	longPeriod, err := params.Int("long_period", defaultEMALongPeriod)
	if err != nil {
		return nil, err
	}

	if shortPeriod < 1 || longPeriod < 1 {
		return nil, errors.New(errors.ErrCodeStrategyConfigError, "EMA periods must be at least 1")
	}

	if shortPeriod >= longPeriod {
		return nil, errors.Newf(errors.ErrCodeStrategyConfigError,
			"short period %d must be below long period %d", shortPeriod, longPeriod)
	}

	return &EMACrossover{
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
	}, nil
}

func (e *EMACrossover) Name() string {
	return "ema_crossover"
}

func (e *EMACrossover) WarmupPeriod() int {
	// One bar past the long period so the previous bar's EMAs exist.
	return e.longPeriod + 1
}

func (e *EMACrossover) GenerateSignal(window dataset.Window) (types.Signal, error) {
	bar := window.Last()
	if window.Len() < e.WarmupPeriod() {
		return types.HoldSignal(bar.Symbol, bar.Time), nil
	}

	closes := window.Closes()
	n := len(closes)

	shortNow, err := indicator.EMA(closes, e.shortPeriod)
	if err != nil {
		return types.Signal{}, err
	}

	longNow, err := indicator.EMA(closes, e.longPeriod)
	if err != nil {
		return types.Signal{}, err
	}

	shortPrev, err := indicator.EMA(closes[:n-1], e.shortPeriod)
	if err != nil {
		return types.Signal{}, err
	}

	longPrev, err := indicator.EMA(closes[:n-1], e.longPeriod)
	if err != nil {
		return types.Signal{}, err
	}

	goldenCross := shortNow > longNow && shortPrev <= longPrev
	if goldenCross && !e.position.holding() {
		return types.Signal{
			Time:         bar.Time,
			Symbol:       bar.Symbol,
			Action:       types.SignalActionBuy,
			Reason:       fmt.Sprintf("EMA(%d) %.4f crossed above EMA(%d) %.4f", e.shortPeriod, shortNow, e.longPeriod, longNow),
			StrategyName: e.Name(),
		}, nil
	}

	deathCross := shortNow < longNow && shortPrev >= longPrev
	if deathCross && e.position.holding() && e.position.profit(bar.Close) > 0 {
		return types.Signal{
			Time:         bar.Time,
			Symbol:       bar.Symbol,
			Action:       types.SignalActionSell,
			Strength:     1,
			Reason:       fmt.Sprintf("EMA(%d) %.4f crossed below EMA(%d) %.4f in profit", e.shortPeriod, shortNow, e.longPeriod, longNow),
			StrategyName: e.Name(),
		}, nil
	}

	return types.HoldSignal(bar.Symbol, bar.Time), nil
}

func (e *EMACrossover) HandleOrderResult(fill types.Fill) {
	e.position.apply(fill)
}
