package engine

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

// Ledger tracks cash, positions at weighted-average cost, realized PnL and
// the equity trace of one backtest run. All money math runs on decimals so
// repeated small fills cannot drift.
type Ledger struct {
	cash       decimal.Decimal
	positions  map[string]position
	realized   decimal.Decimal
	fees       decimal.Decimal
	allowShort bool
	lastMark   time.Time
	lastSignal types.SignalAction
	trace      []TraceRecord
}

type position struct {
	quantity decimal.Decimal
	avgCost  decimal.Decimal
	openTime time.Time
}

// NewLedger creates a ledger holding only cash.
func NewLedger(initialCapital float64, allowShort bool) *Ledger {
	return &Ledger{
		cash:       decimal.NewFromFloat(initialCapital),
		positions:  make(map[string]position),
		allowShort: allowShort,
		lastSignal: types.SignalActionHold,
	}
}

// NoteSignal records the strategy decision for the current bar so the next
// mark-to-market trace record carries it.
func (l *Ledger) NoteSignal(action types.SignalAction) {
	l.lastSignal = action
}

// Cash returns the free cash balance. The reported float never exceeds the
// exact decimal balance, so a buy sized against it always books cleanly.
func (l *Ledger) Cash() float64 {
	return floatFloor(l.cash)
}

// RealizedPnL returns the cumulative realized profit net of fees.
func (l *Ledger) RealizedPnL() float64 {
	realized, _ := l.realized.Float64()

	return realized
}

// TotalFees returns the cumulative commissions paid.
func (l *Ledger) TotalFees() float64 {
	fees, _ := l.fees.Float64()

	return fees
}

// Position returns the position for a symbol. A flat symbol yields a zero
// position.
func (l *Ledger) Position(symbol string) types.Position {
	p, ok := l.positions[symbol]
	if !ok {
		return types.Position{Symbol: symbol}
	}

	avgCost, _ := p.avgCost.Float64()

	return types.Position{
		Symbol:   symbol,
		Quantity: floatTowardZero(p.quantity),
		AvgCost:  avgCost,
		OpenTime: p.openTime,
	}
}

// floatFloor converts d to the nearest float64 that does not exceed it.
func floatFloor(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	if decimal.NewFromFloat(f).GreaterThan(d) {
		f = math.Nextafter(f, math.Inf(-1))
	}

	return f
}

// floatTowardZero converts d to the nearest float64 whose magnitude does not
// exceed d's, keeping reported position quantities sellable in full.
func floatTowardZero(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	if decimal.NewFromFloat(f).Abs().GreaterThan(d.Abs()) {
		f = math.Nextafter(f, 0)
	}

	return f
}

// Apply books a fill into the ledger and returns the realized PnL of the
// execution. Rejected fills are a no-op.
func (l *Ledger) Apply(fill types.Fill) (float64, error) {
	if fill.Rejected() {
		return 0, nil
	}

	price := decimal.NewFromFloat(fill.Price)
	quantity := decimal.NewFromFloat(fill.Quantity)
	fee := decimal.NewFromFloat(fill.Fee)
	notional := price.Mul(quantity)

	p := l.positions[fill.Symbol]

	var realized decimal.Decimal

	switch fill.Side {
	case types.SideBuy:
		cost := notional.Add(fee)
		if cost.GreaterThan(l.cash) {
			return 0, errors.Newf(errors.ErrCodeInvariantViolation,
				"buy of %s for %s exceeds cash %s", fill.Symbol, cost, l.cash)
		}

		l.cash = l.cash.Sub(cost)

		if p.quantity.IsNegative() {
			// Covering a short realizes PnL on the covered quantity.
			covered := decimal.Min(quantity, p.quantity.Neg())
			realized = p.avgCost.Sub(price).Mul(covered).Sub(fee)
		}

		total := p.quantity.Add(quantity)
		switch {
		case total.IsZero():
			p = position{}
		case p.quantity.IsNegative() && total.IsPositive():
			p.avgCost = price
			p.quantity = total
		case p.quantity.IsNegative():
			p.quantity = total
		default:
			if p.quantity.IsZero() {
				p.openTime = fill.Time
			}

			p.avgCost = p.avgCost.Mul(p.quantity).Add(notional).Div(total)
			p.quantity = total
		}
	case types.SideSell:
		if !l.allowShort && quantity.GreaterThan(p.quantity) {
			return 0, errors.Newf(errors.ErrCodeInvariantViolation,
				"sell of %s for %s exceeds position %s with shorting disabled", fill.Symbol, quantity, p.quantity)
		}

		l.cash = l.cash.Add(notional).Sub(fee)

		if p.quantity.IsPositive() {
			closed := decimal.Min(quantity, p.quantity)
			realized = price.Sub(p.avgCost).Mul(closed).Sub(fee)
		}

		total := p.quantity.Sub(quantity)
		switch {
		case total.IsZero():
			p = position{}
		case p.quantity.IsPositive() && total.IsNegative():
			p.avgCost = price
			p.quantity = total
			p.openTime = fill.Time
		default:
			if p.quantity.IsZero() {
				p.avgCost = price
				p.openTime = fill.Time
			}

			p.quantity = total
		}
	default:
		return 0, errors.Newf(errors.ErrCodeInvariantViolation, "fill with unknown side %q", fill.Side)
	}

	if p.quantity.IsZero() {
		delete(l.positions, fill.Symbol)
	} else {
		l.positions[fill.Symbol] = p
	}

	l.realized = l.realized.Add(realized)
	l.fees = l.fees.Add(fee)

	out, _ := realized.Float64()

	return out, nil
}

// MarkToMarket values the portfolio at the given prices, appends a trace
// record and returns the equity. Timestamps must be strictly increasing
// across calls; a repeated or backwards mark is an invariant violation and
// fatal to the run.
func (l *Ledger) MarkToMarket(at time.Time, prices map[string]float64) (float64, error) {
	if !l.lastMark.IsZero() && !at.After(l.lastMark) {
		return 0, errors.Newf(errors.ErrCodeInvariantViolation,
			"mark at %s does not follow previous mark at %s", at, l.lastMark)
	}

	equity := l.cash
	unrealized := decimal.Zero
	snapshot := make(map[string]float64, len(l.positions))

	for symbol, p := range l.positions {
		price, ok := prices[symbol]
		if !ok {
			return 0, errors.Newf(errors.ErrCodeInvariantViolation, "no mark price for open position %s", symbol)
		}

		priceDec := decimal.NewFromFloat(price)
		equity = equity.Add(p.quantity.Mul(priceDec))
		unrealized = unrealized.Add(priceDec.Sub(p.avgCost).Mul(p.quantity))
		snapshot[symbol], _ = p.quantity.Float64()
	}

	l.lastMark = at

	equityF, _ := equity.Float64()
	cashF, _ := l.cash.Float64()
	unrealizedF, _ := unrealized.Float64()

	l.trace = append(l.trace, TraceRecord{
		Time:          at,
		Equity:        equityF,
		Cash:          cashF,
		UnrealizedPnL: unrealizedF,
		RealizedPnL:   l.RealizedPnL(),
		Positions:     snapshot,
		LastSignal:    l.lastSignal,
	})

	l.lastSignal = types.SignalActionHold

	return equityF, nil
}

// Trace returns the equity trace recorded so far.
func (l *Ledger) Trace() []TraceRecord {
	return l.trace
}

// AccountState snapshots the ledger at the given prices without recording
// a trace entry.
func (l *Ledger) AccountState(prices map[string]float64) types.AccountState {
	positions := make(map[string]types.Position, len(l.positions))
	equity := l.cash
	unrealized := decimal.Zero

	for symbol := range l.positions {
		p := l.Position(symbol)
		positions[symbol] = p

		if price, ok := prices[symbol]; ok {
			equity = equity.Add(decimal.NewFromFloat(p.MarketValue(price)))
			unrealized = unrealized.Add(decimal.NewFromFloat(p.UnrealizedPnL(price)))
		}
	}

	equityF, _ := equity.Float64()
	unrealizedF, _ := unrealized.Float64()

	return types.AccountState{
		Cash:          l.Cash(),
		Equity:        equityF,
		RealizedPnL:   l.RealizedPnL(),
		UnrealizedPnL: unrealizedF,
		TotalFees:     l.TotalFees(),
		Positions:     positions,
	}
}
