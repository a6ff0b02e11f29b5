package fetch

import (
	"context"
	"net/http"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

// PolygonFetcher retrieves aggregates from the Polygon.io REST API.
type PolygonFetcher struct {
	client *polygon.Client
}

var _ Fetcher = (*PolygonFetcher)(nil)

// NewPolygonFetcher creates a polygon fetcher. An API key is required.
func NewPolygonFetcher(opts Options) (Fetcher, error) {
	if opts.APIKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "polygon api key is required")
	}

	return &PolygonFetcher{
		client: polygon.New(opts.APIKey),
	}, nil
}

// Name implements Fetcher.
func (f *PolygonFetcher) Name() string {
	return "polygon"
}

// Fetch implements Fetcher.
func (f *PolygonFetcher) Fetch(ctx context.Context, symbol string, start, end time.Time, timeframe types.Timeframe) ([]types.Bar, error) {
	multiplier, timespan, err := polygonTimespan(timeframe)
	if err != nil {
		return nil, err
	}

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithLimit(50000)

	iter := f.client.ListAggs(ctx, params)

	var bars []types.Bar

	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, types.Bar{
			Symbol: symbol,
			Time:   time.Time(agg.Timestamp),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}

	if err := iter.Err(); err != nil {
		return nil, classifyPolygonError(symbol, err)
	}

	if len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeDataUnavailable, "polygon returned no data for %s in range", symbol)
	}

	return bars, nil
}

// polygonTimespan maps a timeframe to polygon's (multiplier, timespan) pair.
func polygonTimespan(timeframe types.Timeframe) (int, models.Timespan, error) {
	switch timeframe {
	case types.Timeframe1m:
		return 1, models.Minute, nil
	case types.Timeframe5m:
		return 5, models.Minute, nil
	case types.Timeframe15m:
		return 15, models.Minute, nil
	case types.Timeframe30m:
		return 30, models.Minute, nil
	case types.Timeframe1h:
		return 1, models.Hour, nil
	case types.Timeframe4h:
		return 4, models.Hour, nil
	case types.Timeframe1d:
		return 1, models.Day, nil
	case types.Timeframe1w:
		return 1, models.Week, nil
	default:
		return 0, "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported timeframe: %s", timeframe)
	}
}

func classifyPolygonError(symbol string, err error) error {
	var respErr *models.ErrorResponse
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusTooManyRequests:
			return errors.Wrap(errors.ErrCodeRateLimited, "polygon rate limit exceeded", err)
		case http.StatusNotFound:
			return errors.Wrapf(errors.ErrCodeInvalidSymbol, err, "unknown symbol: %s", symbol)
		}
	}

	return errors.Wrap(errors.ErrCodeFetchFailed, "failed to fetch polygon aggregates", err)
}
