package fetch

import (
	"context"
	"strconv"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"

	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

// binancePageSize is the maximum number of klines binance returns per request.
const binancePageSize = 500

// BinanceFetcher retrieves klines from the Binance public API. No credentials
// are required for historical data.
type BinanceFetcher struct {
	client *binance.Client
}

var _ Fetcher = (*BinanceFetcher)(nil)

// NewBinanceFetcher creates a binance fetcher.
func NewBinanceFetcher(opts Options) (Fetcher, error) {
	return &BinanceFetcher{
		client: binance.NewClient(opts.APIKey, opts.APISecret),
	}, nil
}

// Name implements Fetcher.
func (f *BinanceFetcher) Name() string {
	return "binance"
}

// Fetch implements Fetcher. Binance symbols use no separator ("BTCUSDT");
// slashes in the requested symbol are stripped before the call.
func (f *BinanceFetcher) Fetch(ctx context.Context, symbol string, start, end time.Time, timeframe types.Timeframe) ([]types.Bar, error) {
	interval, err := binanceInterval(timeframe)
	if err != nil {
		return nil, err
	}

	ticker := strings.ReplaceAll(symbol, "/", "")
	endMillis := end.UnixMilli()
	currentStart := start.UnixMilli()

	var bars []types.Bar

	for {
		klines, err := f.client.NewKlinesService().
			Symbol(ticker).
			Interval(interval).
			StartTime(currentStart).
			EndTime(endMillis).
			Limit(binancePageSize).
			Do(ctx)
		if err != nil {
			return nil, classifyBinanceError(symbol, err)
		}

		for _, kline := range klines {
			bar, err := klineToBar(symbol, kline)
			if err != nil {
				return nil, err
			}

			bars = append(bars, bar)
		}

		// Last page.
		if len(klines) < binancePageSize {
			break
		}

		// Advance past the last kline's close time to avoid duplicates.
		currentStart = klines[len(klines)-1].CloseTime + 1
		if currentStart >= endMillis {
			break
		}
	}

	if len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeDataUnavailable, "binance returned no data for %s in range", symbol)
	}

	return bars, nil
}

func klineToBar(symbol string, kline *binance.Kline) (types.Bar, error) {
	open, err := strconv.ParseFloat(kline.Open, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeMalformedBar, "failed to parse kline open", err)
	}

	high, err := strconv.ParseFloat(kline.High, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeMalformedBar, "failed to parse kline high", err)
	}

	low, err := strconv.ParseFloat(kline.Low, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeMalformedBar, "failed to parse kline low", err)
	}

	closePrice, err := strconv.ParseFloat(kline.Close, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeMalformedBar, "failed to parse kline close", err)
	}

	volume, err := strconv.ParseFloat(kline.Volume, 64)
	if err != nil {
		return types.Bar{}, errors.Wrap(errors.ErrCodeMalformedBar, "failed to parse kline volume", err)
	}

	return types.Bar{
		Symbol: symbol,
		Time:   time.UnixMilli(kline.OpenTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}

func binanceInterval(timeframe types.Timeframe) (string, error) {
	switch timeframe {
	case types.Timeframe1m, types.Timeframe5m, types.Timeframe15m, types.Timeframe30m,
		types.Timeframe1h, types.Timeframe4h, types.Timeframe1d, types.Timeframe1w:
		return string(timeframe), nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported timeframe: %s", timeframe)
	}
}

func classifyBinanceError(symbol string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case -1003: // TOO_MANY_REQUESTS
			return errors.Wrap(errors.ErrCodeRateLimited, "binance rate limit exceeded", err)
		case -1121: // INVALID_SYMBOL
			return errors.Wrapf(errors.ErrCodeInvalidSymbol, err, "unknown symbol: %s", symbol)
		}
	}

	return errors.Wrap(errors.ErrCodeFetchFailed, "failed to fetch binance klines", err)
}
