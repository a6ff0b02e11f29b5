package strategy

import (
	"fmt"

	"github.com/marktide/marktide/internal/dataset"
	"github.com/marktide/marktide/internal/indicator"
	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

const (
	defaultDonchianEntryPeriod = 20
	defaultDonchianExitPeriod  = 10
	defaultDonchianTrendPeriod = 200
	defaultDonchianMomPeriod   = 50
)

// Donchian is a channel breakout strategy with trend and momentum filters.
// It buys when the close breaks above the trailing entry channel while
// trading above both filter averages, and exits when the close falls below
// the trailing exit channel. Channels are built from preceding bars only, so
// the bar being evaluated never sits inside its own channel.
type Donchian struct {
	entryPeriod int
	exitPeriod  int
	trendPeriod int
	momPeriod   int
	position    positionTracker
}

// NewDonchian constructs the strategy. Parameters: entry_period, exit_period,
// trend_period, momentum_period (all int).
func NewDonchian(params Params) (Strategy, error) {
	entryPeriod, err := params.Int("entry_period", defaultDonchianEntryPeriod)
	if err != nil {
		return nil, err
	}

	exitPeriod, err := params.Int("exit_period", defaultDonchianExitPeriod)
	if err != nil {
		return nil, err
	}

	trendPeriod, err := params.Int("trend_period", defaultDonchianTrendPeriod)
	if err != nil {
		return nil, err
	}

	momPeriod, err := params.Int("momentum_period", defaultDonchianMomPeriod)
	if err != nil {
		return nil, err
	}

	for _, period := range []int{entryPeriod, exitPeriod, trendPeriod, momPeriod} {
		if period < 1 {
			return nil, errors.New(errors.ErrCodeStrategyConfigError, "Donchian periods must be at least 1")
		}
	}

	return &Donchian{
		entryPeriod: entryPeriod,
		exitPeriod:  exitPeriod,
		trendPeriod: trendPeriod,
		momPeriod:   momPeriod,
	}, nil
}

func (d *Donchian) Name() string {
	return "donchian"
}

func (d *Donchian) WarmupPeriod() int {
	return d.entryPeriod + 1
}

func (d *Donchian) GenerateSignal(window dataset.Window) (types.Signal, error) {
	bar := window.Last()
	if window.Len() < d.WarmupPeriod() {
		return types.HoldSignal(bar.Symbol, bar.Time), nil
	}

	highs := window.Highs()
	lows := window.Lows()
	closes := window.Closes()

	if !d.position.holding() {
		entryUpper, _, err := indicator.Donchian(highs, lows, d.entryPeriod)
		if err != nil {
			return types.Signal{}, err
		}

		trendOK := bar.Close > trailingMean(closes, d.trendPeriod)
		momOK := bar.Close > trailingMean(closes, d.momPeriod)

		if bar.Close > entryUpper && trendOK && momOK {
			return types.Signal{
				Time:         bar.Time,
				Symbol:       bar.Symbol,
				Action:       types.SignalActionBuy,
				Reason:       fmt.Sprintf("close %.4f broke above %d-bar channel high %.4f", bar.Close, d.entryPeriod, entryUpper),
				StrategyName: d.Name(),
			}, nil
		}

		return types.HoldSignal(bar.Symbol, bar.Time), nil
	}

	_, exitLower, err := indicator.Donchian(highs, lows, d.exitPeriod)
	if err != nil {
		return types.Signal{}, err
	}

	if bar.Close < exitLower {
		return types.Signal{
			Time:         bar.Time,
			Symbol:       bar.Symbol,
			Action:       types.SignalActionSell,
			Strength:     1,
			Reason:       fmt.Sprintf("close %.4f fell below %d-bar channel low %.4f", bar.Close, d.exitPeriod, exitLower),
			StrategyName: d.Name(),
		}, nil
	}

	return types.HoldSignal(bar.Symbol, bar.Time), nil
}

func (d *Donchian) HandleOrderResult(fill types.Fill) {
	d.position.apply(fill)
}
