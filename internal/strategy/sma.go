package strategy

import (
	"fmt"

	"github.com/marktide/marktide/internal/dataset"
	"github.com/marktide/marktide/internal/indicator"
	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

const (
	defaultSMAPeriod          = 200
	defaultSMAInvestFraction  = 0.80
	defaultSMAProfitThreshold = 0.20
)

// SMA buys when the bar's low crosses above the moving average and sells a
// profitable position once the high drops below it. While fewer bars than
// the period are available the average is taken over what exists.
type SMA struct {
	period          int
	investFraction  float64
	profitThreshold float64
	position        positionTracker
}

// NewSMA constructs the strategy. Parameters: period (int), invest_fraction
// (float in (0,1]), profit_threshold (float).
func NewSMA(params Params) (Strategy, error) {
	period, err := params.Int("period", defaultSMAPeriod)
	if err != nil {
		return nil, err
	}

	investFraction, err := params.Float("invest_fraction", defaultSMAInvestFraction)
	if err != nil {
		return nil, err
	}

	profitThreshold, err := params.Float("profit_threshold", defaultSMAProfitThreshold)
	if err != nil {
		return nil, err
	}

	if period < 1 {
		return nil, errors.Newf(errors.ErrCodeStrategyConfigError, "period must be at least 1, got %d", period)
	}

	if investFraction <= 0 || investFraction > 1 {
		return nil, errors.Newf(errors.ErrCodeStrategyConfigError, "invest_fraction must be in (0, 1], got %f", investFraction)
	}

	if profitThreshold < 0 {
		return nil, errors.Newf(errors.ErrCodeStrategyConfigError, "profit_threshold must not be negative, got %f", profitThreshold)
	}

	return &SMA{
		period:          period,
		investFraction:  investFraction,
		profitThreshold: profitThreshold,
	}, nil
}

func (s *SMA) Name() string {
	return "sma"
}

func (s *SMA) WarmupPeriod() int {
	// The crossover needs the preceding bar; the average itself tolerates a
	// partial window.
	return 2
}

func (s *SMA) GenerateSignal(window dataset.Window) (types.Signal, error) {
	bar := window.Last()
	if window.Len() < s.WarmupPeriod() {
		return types.HoldSignal(bar.Symbol, bar.Time), nil
	}

	closes := window.Closes()
	n := len(closes)

	sma := trailingMean(closes[:n], s.period)
	prevSMA := trailingMean(closes[:n-1], s.period)
	prevBar := window.Bar(n - 2)

	crossedAbove := bar.Low > sma && prevBar.Low < prevSMA
	if crossedAbove && !s.position.holding() {
		return types.Signal{
			Time:         bar.Time,
			Symbol:       bar.Symbol,
			Action:       types.SignalActionBuy,
			Strength:     s.investFraction,
			Reason:       fmt.Sprintf("low %.4f crossed above SMA(%d) %.4f", bar.Low, s.period, sma),
			StrategyName: s.Name(),
		}, nil
	}

	if bar.High < sma && s.position.holding() && s.position.profit(bar.Close) >= s.profitThreshold {
		return types.Signal{
			Time:         bar.Time,
			Symbol:       bar.Symbol,
			Action:       types.SignalActionSell,
			Strength:     1,
			Reason:       fmt.Sprintf("high %.4f below SMA(%d) %.4f with %.1f%% profit", bar.High, s.period, sma, s.position.profit(bar.Close)*100),
			StrategyName: s.Name(),
		}, nil
	}

	return types.HoldSignal(bar.Symbol, bar.Time), nil
}

func (s *SMA) HandleOrderResult(fill types.Fill) {
	s.position.apply(fill)
}

// trailingMean averages the last period values, or all values when fewer
// are available.
func trailingMean(series []float64, period int) float64 {
	if len(series) >= period {
		value, err := indicator.SMA(series, period)
		if err == nil {
			return value
		}
	}

	sum := 0.0
	for _, v := range series {
		sum += v
	}

	return sum / float64(len(series))
}
