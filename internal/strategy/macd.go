package strategy

import (
	"fmt"

	"github.com/marktide/marktide/internal/dataset"
	"github.com/marktide/marktide/internal/indicator"
	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

const (
	defaultMACDFastPeriod   = 12
	defaultMACDSlowPeriod   = 26
	defaultMACDSignalPeriod = 9
	defaultMACDFastMA       = 20
	defaultMACDSlowMA       = 50
)

// MACDTrend trades MACD line crossings confirmed by a moving-average trend
// stack: it buys when the MACD line sits above its signal line with the
// close above the fast average and the fast average above the slow one, and
// sells the position on the mirrored condition.
type MACDTrend struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
	fastMA       int
	slowMA       int
	position     positionTracker
}

// NewMACDTrend constructs the strategy. Parameters: fast_period, slow_period,
// signal_period, fast_ma, slow_ma (all int).
func NewMACDTrend(params Params) (Strategy, error) {
	fastPeriod, err := params.Int("fast_period", defaultMACDFastPeriod)
	if err != nil {
		return nil, err
	}

	slowPeriod, err := params.Int("slow_period", defaultMACDSlowPeriod)
	if err != nil {
		return nil, err
	}

	signalPeriod, err := params.Int("signal_period", defaultMACDSignalPeriod)
	if err != nil {
		return nil, err
	}

	fastMA, err := params.Int("fast_ma", defaultMACDFastMA)
	if err != nil {
		return nil, err
	}

	slowMA, err := params.Int("slow_ma", defaultMACDSlowMA)
	if err != nil {
		return nil, err
	}

	for _, period := range []int{fastPeriod, slowPeriod, signalPeriod, fastMA, slowMA} {
		if period < 1 {
			return nil, errors.New(errors.ErrCodeStrategyConfigError, "MACD periods must be at least 1")
		}
	}

	if fastPeriod >= slowPeriod {
		return nil, errors.New(errors.ErrCodeStrategyConfigError, "MACD fast_period must be shorter than slow_period")
	}

	return &MACDTrend{
		fastPeriod:   fastPeriod,
		slowPeriod:   slowPeriod,
		signalPeriod: signalPeriod,
		fastMA:       fastMA,
		slowMA:       slowMA,
	}, nil
}

func (m *MACDTrend) Name() string {
	return "macd"
}

func (m *MACDTrend) WarmupPeriod() int {
	warmup := m.slowPeriod + m.signalPeriod
	if m.slowMA > warmup {
		warmup = m.slowMA
	}

	return warmup
}

func (m *MACDTrend) GenerateSignal(window dataset.Window) (types.Signal, error) {
	bar := window.Last()
	if window.Len() < m.WarmupPeriod() {
		return types.HoldSignal(bar.Symbol, bar.Time), nil
	}

	closes := window.Closes()

	macd, signal, err := indicator.MACD(closes, m.fastPeriod, m.slowPeriod, m.signalPeriod)
	if err != nil {
		return types.Signal{}, err
	}

	fastMean := trailingMean(closes, m.fastMA)
	slowMean := trailingMean(closes, m.slowMA)

	if !m.position.holding() {
		if macd > signal && bar.Close > fastMean && fastMean > slowMean {
			return types.Signal{
				Time:         bar.Time,
				Symbol:       bar.Symbol,
				Action:       types.SignalActionBuy,
				Reason:       fmt.Sprintf("macd %.4f above signal %.4f in an uptrend", macd, signal),
				StrategyName: m.Name(),
			}, nil
		}

		return types.HoldSignal(bar.Symbol, bar.Time), nil
	}

	if macd < signal && bar.Close < fastMean && fastMean < slowMean {
		return types.Signal{
			Time:         bar.Time,
			Symbol:       bar.Symbol,
			Action:       types.SignalActionSell,
			Strength:     1,
			Reason:       fmt.Sprintf("macd %.4f below signal %.4f in a downtrend", macd, signal),
			StrategyName: m.Name(),
		}, nil
	}

	return types.HoldSignal(bar.Symbol, bar.Time), nil
}

func (m *MACDTrend) HandleOrderResult(fill types.Fill) {
	m.position.apply(fill)
}
