package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marktide/marktide/internal/cache"
	"github.com/marktide/marktide/internal/dataset"
	"github.com/marktide/marktide/internal/fetch"
	"github.com/marktide/marktide/internal/logger"
	"github.com/marktide/marktide/internal/types"
)

// downloadAction fetches historical bars for each requested symbol into the
// on-disk cache, so later backtests run without network access.
func downloadAction(ctx context.Context, cmd *cli.Command) error {
	symbols := strings.Split(cmd.String("symbols"), ",")
	start := cmd.Timestamp("start")
	end := cmd.Timestamp("end")
	timeframe := types.Timeframe(cmd.String("timeframe"))
	source := cmd.String("source")
	cacheDir := cmd.String("cache")
	concurrency := int(cmd.Int("concurrency"))

	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	fetcher, err := fetch.NewDefaultRegistry().New(source, fetch.Options{
		APIKey:    os.Getenv("POLYGON_API_KEY"),
		APISecret: os.Getenv("BINANCE_API_SECRET"),
	})
	if err != nil {
		return fmt.Errorf("failed to create %s fetcher: %w", source, err)
	}

	store, err := cache.NewDuckDBStore(cacheDir)
	if err != nil {
		return fmt.Errorf("failed to open cache at %s: %w", cacheDir, err)
	}

	loader := dataset.NewLoader(fetcher, store, log)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for _, symbol := range symbols {
		symbol := strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}

		group.Go(func() error {
			ds, err := loader.Load(groupCtx, symbol, start, end, timeframe)
			if err != nil {
				return fmt.Errorf("download of %s failed: %w", symbol, err)
			}

			log.Info("symbol cached",
				zap.String("symbol", symbol),
				zap.Int("bars", ds.Len()),
				zap.Time("first", ds.First().Time),
				zap.Time("last", ds.Last().Time),
			)

			return nil
		})
	}

	return group.Wait()
}

func main() {
	cmd := &cli.Command{
		Name:  "download",
		Usage: "Download historical market data into the local cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "symbols",
				Aliases:  []string{"S"},
				Usage:    "Comma-separated symbols to download",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:     "start",
				Aliases:  []string{"s"},
				Usage:    "Start date in `YYYY-MM-DD` format",
				Required: true,
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02", time.RFC3339},
				},
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format. Defaults to today.",
				Value:   time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02", time.RFC3339},
				},
			},
			&cli.StringFlag{
				Name:    "timeframe",
				Aliases: []string{"t"},
				Usage:   "Bar interval (1m, 5m, 15m, 30m, 1h, 4h, 1d, 1w)",
				Value:   string(types.Timeframe1d),
			},
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"p"},
				Usage:   "Data source (polygon, binance)",
				Value:   "polygon",
			},
			&cli.StringFlag{
				Name:    "cache",
				Aliases: []string{"c"},
				Usage:   "Cache directory",
				Value:   "data/cache",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Maximum concurrent downloads",
				Value: 4,
			},
		},
		Action: downloadAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
