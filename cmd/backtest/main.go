package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marktide/marktide/internal/cache"
	"github.com/marktide/marktide/internal/dataset"
	"github.com/marktide/marktide/internal/engine"
	"github.com/marktide/marktide/internal/fetch"
	"github.com/marktide/marktide/internal/logger"
	"github.com/marktide/marktide/internal/strategy"
)

// runBacktest loads the dataset for one config, builds the strategy and the
// engine, and replays the run to completion.
func runBacktest(ctx context.Context, config engine.Config, loader *dataset.Loader, registry *strategy.Registry, log *logger.Logger, showProgress bool) error {
	ds, err := loader.Load(ctx, config.Symbol, config.StartTime, config.EndTime, config.Timeframe)
	if err != nil {
		return fmt.Errorf("failed to load dataset for %s: %w", config.Symbol, err)
	}

	strat, err := registry.New(config.Strategy, config.StrategyParams)
	if err != nil {
		return fmt.Errorf("failed to build strategy %s: %w", config.Strategy, err)
	}

	store, err := engine.NewRunStore(log)
	if err != nil {
		return err
	}
	defer store.Close()

	backtest, err := engine.NewBacktestEngine(config, ds, strat, store, log)
	if err != nil {
		return err
	}

	if showProgress {
		bar := progressbar.Default(int64(ds.Len()), fmt.Sprintf("%s/%s", config.Symbol, config.Strategy))
		backtest.SetProgress(func(current, total int) {
			_ = bar.Set(current)
		})
	}

	summary, err := backtest.Run(ctx)
	if err != nil {
		return fmt.Errorf("backtest of %s failed: %w", config.Symbol, err)
	}

	log.Info("run finished",
		zap.String("run_id", summary.ID),
		zap.String("symbol", summary.Symbol),
		zap.String("strategy", summary.StrategyName),
		zap.Float64("final_equity", summary.FinalEquity),
		zap.Float64("total_return", summary.TotalReturn),
		zap.Float64("max_drawdown", summary.MaxDrawdown),
		zap.Float64("sharpe", summary.Sharpe),
		zap.Float64("buy_and_hold", summary.BuyAndHoldReturn),
	)

	return nil
}

// backtestAction runs every config given on the command line. Independent
// runs execute concurrently; each owns its ledger and run store.
func backtestAction(ctx context.Context, cmd *cli.Command) error {
	configPaths := cmd.StringSlice("config")
	source := cmd.String("source")
	cacheDir := cmd.String("cache")
	concurrency := int(cmd.Int("concurrency"))

	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	configs := make([]engine.Config, 0, len(configPaths))

	for _, path := range configPaths {
		config, err := engine.ParseConfigFile(path)
		if err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}

		configs = append(configs, config)
	}

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
	registry := strategy.NewDefaultRegistry()
	showProgress := len(configs) == 1

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for _, config := range configs {
		config := config

		group.Go(func() error {
			return runBacktest(groupCtx, config, loader, registry, log, showProgress)
		})
	}

	return group.Wait()
}

// schemaAction prints the JSON schema of the backtest config, for editor
// completion against the YAML files.
func schemaAction(ctx context.Context, cmd *cli.Command) error {
	schema, err := engine.DefaultConfig().GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	fmt.Println(schema)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Replay strategies over historical market data",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Backtest config YAML file (repeatable)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"p"},
				Usage:   "Data source for cache misses (polygon, binance)",
				Value:   "polygon",
			},
			&cli.StringFlag{
				Name:  "cache",
				Usage: "Cache directory",
				Value: "data/cache",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Maximum concurrent runs",
				Value: 4,
			},
		},
		Action: backtestAction,
		Commands: []*cli.Command{
			{
				Name:   "schema",
				Usage:  "Print the JSON schema for backtest config files",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
