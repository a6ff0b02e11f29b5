package engine

import (
	"math"
	"time"

	"github.com/marktide/marktide/internal/types"
)

// TraceRecord is one mark-to-market observation of the portfolio. The trace
// is append-only and strictly ordered by time; the summary metrics are pure
// functions over it.
type TraceRecord struct {
	Time          time.Time `yaml:"time" json:"time"`
	Equity        float64   `yaml:"equity" json:"equity"`
	Cash          float64   `yaml:"cash" json:"cash"`
	UnrealizedPnL float64   `yaml:"unrealized_pnl" json:"unrealized_pnl"`
	RealizedPnL   float64   `yaml:"realized_pnl" json:"realized_pnl"`
	// Positions maps symbol to held quantity at the time of the mark. Flat
	// symbols are absent.
	Positions map[string]float64 `yaml:"positions,omitempty" json:"positions,omitempty"`
	// LastSignal is the strategy's decision for the bar this mark closes.
	LastSignal types.SignalAction `yaml:"last_signal" json:"last_signal"`
}

const (
	riskFreeRate    = 0.02
	periodsPerYear  = 252
	daysPerYear     = 365.25
	avgDaysPerMonth = 30.44
)

// totalReturn is the fractional change from the initial capital to the last
// equity observation.
func totalReturn(trace []TraceRecord, initialCapital float64) float64 {
	if len(trace) == 0 || initialCapital == 0 {
		return 0
	}

	return (trace[len(trace)-1].Equity - initialCapital) / initialCapital
}

// maxDrawdown is the largest peak-to-trough equity loss, as a positive
// fraction.
func maxDrawdown(trace []TraceRecord) float64 {
	peak := math.Inf(-1)
	worst := 0.0

	for _, record := range trace {
		if record.Equity > peak {
			peak = record.Equity
		}

		if peak > 0 {
			drawdown := (peak - record.Equity) / peak
			if drawdown > worst {
				worst = drawdown
			}
		}
	}

	return worst
}

// cagr annualizes the total return over the trace's calendar span.
func cagr(trace []TraceRecord, initialCapital float64) float64 {
	if len(trace) < 2 || initialCapital <= 0 {
		return 0
	}

	last := trace[len(trace)-1].Equity
	if last <= 0 {
		return -1
	}

	years := trace[len(trace)-1].Time.Sub(trace[0].Time).Hours() / 24 / daysPerYear
	if years <= 0 {
		return 0
	}

	return math.Pow(last/initialCapital, 1/years) - 1
}

// periodReturns are the per-step fractional equity changes.
func periodReturns(trace []TraceRecord) []float64 {
	if len(trace) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(trace)-1)

	for i := 1; i < len(trace); i++ {
		prev := trace[i-1].Equity
		if prev == 0 {
			continue
		}

		returns = append(returns, (trace[i].Equity-prev)/prev)
	}

	return returns
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}

	for _, v := range values {
		mean += v
	}

	mean /= float64(len(values))

	for _, v := range values {
		std += (v - mean) * (v - mean)
	}

	std = math.Sqrt(std / float64(len(values)))

	return mean, std
}

// sharpe is the annualized Sharpe ratio of the per-step returns against the
// fixed risk-free rate.
func sharpe(trace []TraceRecord) float64 {
	returns := periodReturns(trace)
	if len(returns) == 0 {
		return 0
	}

	mean, std := meanStd(returns)

	return (mean - riskFreeRate/periodsPerYear) / (std + 1e-10) * math.Sqrt(periodsPerYear)
}

// volatility is the annualized standard deviation of the per-step returns.
func volatility(trace []TraceRecord) float64 {
	returns := periodReturns(trace)
	if len(returns) == 0 {
		return 0
	}

	_, std := meanStd(returns)

	return std * math.Sqrt(periodsPerYear)
}

// tradeStats counts executed fills and the win/loss split of the closing
// ones. Rejected fills never count as trades, and a close at exactly zero
// profit counts as neither a win nor a loss.
func tradeStats(fills []types.Fill) types.TradeResult {
	var result types.TradeResult

	for _, fill := range fills {
		if fill.Rejected() {
			continue
		}

		result.NumberOfTrades++

		if fill.Side != types.SideSell {
			continue
		}

		switch {
		case fill.PnL > 0:
			result.NumberOfWinningTrades++
		case fill.PnL < 0:
			result.NumberOfLosingTrades++
		}
	}

	closed := result.NumberOfWinningTrades + result.NumberOfLosingTrades
	if closed > 0 {
		result.WinRate = float64(result.NumberOfWinningTrades) / float64(closed)
	}

	return result
}

// tradeFrequency returns the average number of trades per day and per month
// over the trace span.
func tradeFrequency(trace []TraceRecord, trades int) (perDay, perMonth float64) {
	if len(trace) < 2 || trades == 0 {
		return 0, 0
	}

	days := trace[len(trace)-1].Time.Sub(trace[0].Time).Hours() / 24
	if days <= 0 {
		return 0, 0
	}

	return float64(trades) / days, float64(trades) / (days / avgDaysPerMonth)
}

// buyAndHoldReturn is the benchmark return of buying at the first close and
// holding until the last.
func buyAndHoldReturn(firstClose, lastClose float64) float64 {
	if firstClose == 0 {
		return 0
	}

	return (lastClose - firstClose) / firstClose
}

// ComputeSummary derives the run summary from the trace, the fills and the
// price endpoints.
func ComputeSummary(config Config, runID string, trace []TraceRecord, fills []types.Fill, firstClose, lastClose float64) types.Summary {
	finalEquity := config.InitialCapital
	if len(trace) > 0 {
		finalEquity = trace[len(trace)-1].Equity
	}

	realized := 0.0
	fees := 0.0

	if len(trace) > 0 {
		realized = trace[len(trace)-1].RealizedPnL
	}

	for _, fill := range fills {
		fees += fill.Fee
	}

	trades := tradeStats(fills)
	perDay, perMonth := tradeFrequency(trace, trades.NumberOfTrades)

	return types.Summary{
		ID:                runID,
		Timestamp:         time.Now().UTC(),
		Symbol:            config.Symbol,
		StrategyName:      config.Strategy,
		InitialCapital:    config.InitialCapital,
		FinalEquity:       finalEquity,
		TotalReturn:       totalReturn(trace, config.InitialCapital),
		CAGR:              cagr(trace, config.InitialCapital),
		Sharpe:            sharpe(trace),
		Volatility:        volatility(trace),
		MaxDrawdown:       maxDrawdown(trace),
		TradeResult:       trades,
		RealizedPnL:       realized,
		TotalFees:         fees,
		BuyAndHoldReturn:  buyAndHoldReturn(firstClose, lastClose),
		AvgTradesPerDay:   perDay,
		AvgTradesPerMonth: perMonth,
	}
}
