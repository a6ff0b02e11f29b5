package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TradeResult summarizes closed trades.
type TradeResult struct {
	// Count of all fills that closed quantity.
	NumberOfTrades int `yaml:"number_of_trades"`
	// Count of closing trades with positive pnl.
	NumberOfWinningTrades int `yaml:"number_of_winning_trades"`
	// Count of closing trades with negative pnl.
	NumberOfLosingTrades int `yaml:"number_of_losing_trades"`
	// Win rate over closing trades.
	WinRate float64 `yaml:"win_rate"`
}

// Summary holds the performance metrics of one backtest run. Every field is
// derivable from the recorded trace alone.
type Summary struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when this backtest run was executed.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// Symbol of the replayed instrument.
	Symbol string `yaml:"symbol"`
	// StrategyName is the strategy that produced the run.
	StrategyName string `yaml:"strategy_name"`
	// InitialCapital is the starting cash.
	InitialCapital float64 `yaml:"initial_capital"`
	// FinalEquity is the equity at the last trace point.
	FinalEquity float64 `yaml:"final_equity"`
	// TotalReturn is (final equity / initial capital) - 1.
	TotalReturn float64 `yaml:"total_return"`
	// CAGR is the compound annual growth rate over the replayed range.
	CAGR float64 `yaml:"cagr"`
	// Sharpe is the annualized sharpe ratio of per-bar returns.
	Sharpe float64 `yaml:"sharpe"`
	// Volatility is the annualized standard deviation of per-bar returns.
	Volatility float64 `yaml:"volatility"`
	// MaxDrawdown is the largest peak-to-trough equity decline, as a fraction.
	MaxDrawdown float64 `yaml:"max_drawdown"`
	// TradeResult summarizes win/loss counts.
	TradeResult TradeResult `yaml:"trade_result"`
	// RealizedPnL is the total realized profit and loss.
	RealizedPnL float64 `yaml:"realized_pnl"`
	// TotalFees is the total fees paid.
	TotalFees float64 `yaml:"total_fees"`
	// BuyAndHoldReturn is the benchmark return of holding one position for
	// the whole range.
	BuyAndHoldReturn float64 `yaml:"buy_and_hold_return"`
	// AvgTradesPerDay is the average number of fills per calendar day.
	AvgTradesPerDay float64 `yaml:"avg_trades_per_day"`
	// AvgTradesPerMonth is the average number of fills per 30-day month.
	AvgTradesPerMonth float64 `yaml:"avg_trades_per_month"`
}

// WriteSummary writes run summaries to path as YAML.
func WriteSummary(path string, summaries []Summary) error {
	data, err := yaml.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("failed to marshal summary to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summary to file: %w", err)
	}

	return nil
}
