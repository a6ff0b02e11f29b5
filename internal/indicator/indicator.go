// Package indicator wraps the ta-lib bindings with length-checked helpers
// that return the latest value of each series. Strategies call these against
// the price window of the current step.
package indicator

import (
	"github.com/markcheno/go-talib"

	"github.com/marktide/marktide/pkg/errors"
)

// SMA returns the simple moving average of the last period closes.
func SMA(closes []float64, period int) (float64, error) {
	if err := checkSeries(closes, period, "SMA"); err != nil {
		return 0, err
	}

	series := talib.Sma(closes, period)

	return series[len(series)-1], nil
}

// EMA returns the exponential moving average of the last period closes.
func EMA(closes []float64, period int) (float64, error) {
	if err := checkSeries(closes, period, "EMA"); err != nil {
		return 0, err
	}

	series := talib.Ema(closes, period)

	return series[len(series)-1], nil
}

// ATR returns the average true range over the last period bars.
func ATR(highs, lows, closes []float64, period int) (float64, error) {
	// ATR needs one extra bar for the first true range.
	if err := checkSeries(closes, period+1, "ATR"); err != nil {
		return 0, err
	}

	if len(highs) != len(closes) || len(lows) != len(closes) {
		return 0, errors.New(errors.ErrCodeInvalidParameter, "ATR requires equal-length high, low and close series")
	}

	series := talib.Atr(highs, lows, closes, period)

	return series[len(series)-1], nil
}

// MACD returns the MACD line and its signal line at the current step.
func MACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) (macd, signal float64, err error) {
	if fastPeriod <= 0 || signalPeriod <= 0 || fastPeriod >= slowPeriod {
		return 0, 0, errors.New(errors.ErrCodeInvalidParameter, "MACD periods must be positive with fast shorter than slow")
	}

	if err := checkSeries(closes, slowPeriod+signalPeriod, "MACD"); err != nil {
		return 0, 0, err
	}

	macdSeries, signalSeries, _ := talib.Macd(closes, fastPeriod, slowPeriod, signalPeriod)

	return macdSeries[len(macdSeries)-1], signalSeries[len(signalSeries)-1], nil
}

// Donchian returns the highest high and lowest low over the trailing period
// bars, excluding the current bar. It is the breakout channel at the current
// step.
func Donchian(highs, lows []float64, period int) (upper, lower float64, err error) {
	if len(highs) != len(lows) {
		return 0, 0, errors.New(errors.ErrCodeInvalidParameter, "Donchian requires equal-length high and low series")
	}

	// One bar beyond the period so the channel never includes the bar being
	// evaluated.
	if err := checkSeries(highs, period+1, "Donchian"); err != nil {
		return 0, 0, err
	}

	end := len(highs) - 1
	upper = talib.Max(highs[:end], period)[end-1]
	lower = talib.Min(lows[:end], period)[end-1]

	return upper, lower, nil
}

func checkSeries(series []float64, need int, name string) error {
	if need <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "%s period must be positive", name)
	}

	if len(series) < need {
		return errors.Newf(errors.ErrCodeInsufficientData, "%s needs %d bars, have %d", name, need, len(series))
	}

	return nil
}
