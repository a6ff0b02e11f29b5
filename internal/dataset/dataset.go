// Package dataset provides the immutable, time-ordered bar sequence a
// backtest iterates over, and the cache-backed loader that materializes it.
package dataset

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

// MarketDataset is an immutable, strictly time-ordered sequence of bars for
// one (symbol, timeframe). It is owned by the caller that loaded it and lives
// for one backtest run.
type MarketDataset struct {
	symbol    string
	timeframe types.Timeframe
	bars      []types.Bar
}

// New validates bars and constructs a dataset. Every bar must satisfy the
// OHLCV invariants and timestamps must be strictly increasing.
func New(symbol string, timeframe types.Timeframe, bars []types.Bar) (*MarketDataset, error) {
	if len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeDataUnavailable, "no bars for %s", symbol)
	}

	for i := range bars {
		if err := bars[i].Validate(); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeMalformedBar, err, "bar %d of %s is malformed", i, symbol)
		}

		if i > 0 && !bars[i].Time.After(bars[i-1].Time) {
			return nil, errors.Newf(errors.ErrCodeMalformedBar,
				"bar %d of %s is out of order: %s does not follow %s",
				i, symbol, bars[i].Time, bars[i-1].Time)
		}
	}

	owned := make([]types.Bar, len(bars))
	copy(owned, bars)

	return &MarketDataset{
		symbol:    symbol,
		timeframe: timeframe,
		bars:      owned,
	}, nil
}

// Symbol returns the instrument symbol.
func (d *MarketDataset) Symbol() string {
	return d.symbol
}

// Timeframe returns the bar interval.
func (d *MarketDataset) Timeframe() types.Timeframe {
	return d.timeframe
}

// Len returns the number of bars.
func (d *MarketDataset) Len() int {
	return len(d.bars)
}

// Bar returns the bar at index i.
func (d *MarketDataset) Bar(i int) types.Bar {
	return d.bars[i]
}

// First returns the earliest bar.
func (d *MarketDataset) First() types.Bar {
	return d.bars[0]
}

// Last returns the latest bar.
func (d *MarketDataset) Last() types.Bar {
	return d.bars[len(d.bars)-1]
}

// Slice returns the bars within [start, end]. Either bound may be None for
// an open end. The returned slice shares no storage with the dataset.
func (d *MarketDataset) Slice(start, end optional.Option[time.Time]) []types.Bar {
	lo := 0
	if start.IsSome() {
		from := start.Unwrap()
		lo = d.searchTime(from)
	}

	hi := len(d.bars)
	if end.IsSome() {
		until := end.Unwrap()
		hi = d.searchTimeAfter(until)
	}

	if lo >= hi {
		return nil
	}

	out := make([]types.Bar, hi-lo)
	copy(out, d.bars[lo:hi])

	return out
}

// Window returns a look-back-only view ending at index i (inclusive) with at
// most lookback bars. A lookback of zero or less means all bars up to i.
func (d *MarketDataset) Window(i int, lookback int) Window {
	end := i + 1
	lo := 0

	if lookback > 0 && end-lookback > 0 {
		lo = end - lookback
	}

	return Window{bars: d.bars[lo:end]}
}

// searchTime returns the index of the first bar at or after t.
func (d *MarketDataset) searchTime(t time.Time) int {
	lo, hi := 0, len(d.bars)
	for lo < hi {
		mid := (lo + hi) / 2
		if d.bars[mid].Time.Before(t) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	return lo
}

// searchTimeAfter returns the index of the first bar strictly after t.
func (d *MarketDataset) searchTimeAfter(t time.Time) int {
	lo, hi := 0, len(d.bars)
	for lo < hi {
		mid := (lo + hi) / 2
		if d.bars[mid].Time.After(t) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}

	return lo
}

// Window is a bounded, read-only view of bars up to and including the
// current step. Strategies receive only a Window, never the full dataset,
// which rules out look-ahead.
type Window struct {
	bars []types.Bar
}

// Len returns the number of bars in the window.
func (w Window) Len() int {
	return len(w.bars)
}

// Bar returns the bar at index i within the window.
func (w Window) Bar(i int) types.Bar {
	return w.bars[i]
}

// Last returns the most recent bar, i.e. the current step's bar.
func (w Window) Last() types.Bar {
	return w.bars[len(w.bars)-1]
}

// Closes returns the close prices in window order.
func (w Window) Closes() []float64 {
	out := make([]float64, len(w.bars))
	for i := range w.bars {
		out[i] = w.bars[i].Close
	}

	return out
}

// Highs returns the high prices in window order.
func (w Window) Highs() []float64 {
	out := make([]float64, len(w.bars))
	for i := range w.bars {
		out[i] = w.bars[i].High
	}

	return out
}

// Lows returns the low prices in window order.
func (w Window) Lows() []float64 {
	out := make([]float64, len(w.bars))
	for i := range w.bars {
		out[i] = w.bars[i].Low
	}

	return out
}
