package dataset

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/marktide/marktide/internal/cache"
	"github.com/marktide/marktide/internal/fetch"
	"github.com/marktide/marktide/internal/logger"
	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

// Loader materializes datasets through a cache. A cache hit returns stored
// bars with no network I/O; a miss fetches, validates every bar, stores the
// result under its key, and returns it. Concurrent misses on the same key
// join a single fetch.
type Loader struct {
	fetcher fetch.Fetcher
	store   cache.Store
	log     *logger.Logger
	group   singleflight.Group
}

// NewLoader creates a Loader backed by the given fetcher and cache store.
func NewLoader(fetcher fetch.Fetcher, store cache.Store, log *logger.Logger) *Loader {
	return &Loader{
		fetcher: fetcher,
		store:   store,
		log:     log,
	}
}

// Load returns the dataset for (symbol, start, end, timeframe).
func (l *Loader) Load(ctx context.Context, symbol string, start, end time.Time, timeframe types.Timeframe) (*MarketDataset, error) {
	if !start.Before(end) {
		return nil, errors.Newf(errors.ErrCodeInvalidDateRange, "start %s is not before end %s", start, end)
	}

	key := cache.NewKey(symbol, start, end, timeframe)

	result, err, _ := l.group.Do(key.String(), func() (any, error) {
		return l.loadBars(ctx, key, symbol, start, end, timeframe)
	})
	if err != nil {
		return nil, err
	}

	bars, ok := result.([]types.Bar)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknown, "unexpected cache load result type")
	}

	return New(symbol, timeframe, bars)
}

func (l *Loader) loadBars(ctx context.Context, key cache.Key, symbol string, start, end time.Time, timeframe types.Timeframe) ([]types.Bar, error) {
	cached, hit, err := l.store.Get(key)
	if err != nil {
		return nil, err
	}

	if hit {
		l.log.Debug("dataset cache hit",
			zap.String("symbol", symbol),
			zap.String("key", key.String()),
			zap.Int("bars", len(cached)),
		)

		return cached, nil
	}

	l.log.Debug("dataset cache miss, fetching",
		zap.String("symbol", symbol),
		zap.String("source", l.fetcher.Name()),
		zap.Time("start", start),
		zap.Time("end", end),
	)

	fetched, err := l.fetcher.Fetch(ctx, symbol, start, end, timeframe)
	if err != nil {
		return nil, err
	}

	// Validate before the bars ever reach the cache; a malformed record is
	// rejected, not coerced.
	validated, err := New(symbol, timeframe, fetched)
	if err != nil {
		return nil, err
	}

	if err := l.store.Put(key, validated.bars); err != nil {
		return nil, err
	}

	l.log.Info("dataset cached",
		zap.String("symbol", symbol),
		zap.String("key", key.String()),
		zap.Int("bars", validated.Len()),
	)

	return validated.bars, nil
}
