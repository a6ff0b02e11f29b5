package strategy

import (
	"fmt"

	"github.com/marktide/marktide/internal/dataset"
	"github.com/marktide/marktide/internal/indicator"
	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

const (
	defaultDonchianATREntryPeriod = 55
	defaultDonchianATRExitPeriod  = 20
	defaultDonchianATRPeriod      = 21
	defaultDonchianATRMultiple    = 1.0
	defaultDonchianATRTrendPeriod = 200
	defaultDonchianATRMomPeriod   = 10
)

// DonchianATR is a slow-channel breakout strategy gated by a volatility
// filter: entries require the breakout bar's range to exceed a multiple of
// the average true range, so quiet drift across the channel does not trigger
// a position. Exits use a faster channel, as in the plain Donchian strategy.
type DonchianATR struct {
	entryPeriod int
	exitPeriod  int
	atrPeriod   int
	atrMultiple float64
	trendPeriod int
	momPeriod   int
	position    positionTracker
}

// NewDonchianATR constructs the strategy. Parameters: entry_period,
// exit_period, atr_period, trend_period, momentum_period (int) and
// atr_multiple (float).
func NewDonchianATR(params Params) (Strategy, error) {
	entryPeriod, err := params.Int("entry_period", defaultDonchianATREntryPeriod)
	if err != nil {
		return nil, err
	}

	exitPeriod, err := params.Int("exit_period", defaultDonchianATRExitPeriod)
	if err != nil {
		return nil, err
	}

	atrPeriod, err := params.Int("atr_period", defaultDonchianATRPeriod)
	if err != nil {
		return nil, err
	}

	atrMultiple, err := params.Float("atr_multiple", defaultDonchianATRMultiple)
	if err != nil {
		return nil, err
	}

	trendPeriod, err := params.Int("trend_period", defaultDonchianATRTrendPeriod)
	if err != nil {
		return nil, err
	}

	momPeriod, err := params.Int("momentum_period", defaultDonchianATRMomPeriod)
	if err != nil {
		return nil, err
	}

	for _, period := range []int{entryPeriod, exitPeriod, atrPeriod, trendPeriod, momPeriod} {
		if period < 1 {
			return nil, errors.New(errors.ErrCodeStrategyConfigError, "DonchianATR periods must be at least 1")
		}
	}

	if atrMultiple <= 0 {
		return nil, errors.New(errors.ErrCodeStrategyConfigError, "DonchianATR atr_multiple must be positive")
	}

	return &DonchianATR{
		entryPeriod: entryPeriod,
		exitPeriod:  exitPeriod,
		atrPeriod:   atrPeriod,
		atrMultiple: atrMultiple,
		trendPeriod: trendPeriod,
		momPeriod:   momPeriod,
	}, nil
}

func (d *DonchianATR) Name() string {
	return "donchian_atr"
}

func (d *DonchianATR) WarmupPeriod() int {
	warmup := d.entryPeriod + 1
	if d.atrPeriod+2 > warmup {
		warmup = d.atrPeriod + 2
	}

	return warmup
}

func (d *DonchianATR) GenerateSignal(window dataset.Window) (types.Signal, error) {
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

		// ATR over the preceding bars only, so a wide breakout bar is
		// measured against the quiet range it broke out of.
		last := window.Len() - 1

		atr, err := indicator.ATR(highs[:last], lows[:last], closes[:last], d.atrPeriod)
		if err != nil {
			return types.Signal{}, err
		}

		volOK := bar.High-bar.Low > d.atrMultiple*atr
		trendOK := bar.Close > trailingMean(closes, d.trendPeriod)
		momOK := bar.Close > trailingMean(closes, d.momPeriod)

		if bar.Close > entryUpper && volOK && trendOK && momOK {
			return types.Signal{
				Time:         bar.Time,
				Symbol:       bar.Symbol,
				Action:       types.SignalActionBuy,
				Reason:       fmt.Sprintf("close %.4f broke above %d-bar channel high %.4f on range > %.2fx ATR %.4f", bar.Close, d.entryPeriod, entryUpper, d.atrMultiple, atr),
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

func (d *DonchianATR) HandleOrderResult(fill types.Fill) {
	d.position.apply(fill)
}
