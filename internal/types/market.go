package types

import (
	"time"

	"github.com/marktide/marktide/pkg/errors"
)

// Timeframe is the bar aggregation interval.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
	Timeframe1w  Timeframe = "1w"
)

// Duration returns the wall-clock length of one bar at this timeframe.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe1m:
		return time.Minute
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe30m:
		return 30 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	case Timeframe1w:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// Bar is a single OHLCV record for a fixed time interval.
type Bar struct {
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// Validate checks the OHLCV invariants:
// high >= max(open, close) >= min(open, close) >= low >= 0.
func (b *Bar) Validate() error {
	if b.Time.IsZero() {
		return errors.New(errors.ErrCodeMalformedBar, "bar has zero timestamp")
	}

	if b.Low < 0 {
		return errors.Newf(errors.ErrCodeMalformedBar, "bar low is negative: %f", b.Low)
	}

	if b.Volume < 0 {
		return errors.Newf(errors.ErrCodeMalformedBar, "bar volume is negative: %f", b.Volume)
	}

	bodyHigh := max(b.Open, b.Close)
	bodyLow := min(b.Open, b.Close)

	if b.High < bodyHigh {
		return errors.Newf(errors.ErrCodeMalformedBar, "bar high %f below body high %f", b.High, bodyHigh)
	}

	if b.Low > bodyLow {
		return errors.Newf(errors.ErrCodeMalformedBar, "bar low %f above body low %f", b.Low, bodyLow)
	}

	return nil
}
