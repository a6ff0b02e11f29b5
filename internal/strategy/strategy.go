// Package strategy defines the signal-generation contract and the built-in
// strategies. A strategy sees only the look-back window for the current bar,
// emits at most one signal per bar, and learns about executions exclusively
// through HandleOrderResult.
package strategy

import (
	"github.com/marktide/marktide/internal/dataset"
	"github.com/marktide/marktide/internal/types"
)

// Strategy is the engine-facing contract. Implementations must be
// deterministic: the same window and the same fill history always produce
// the same signal.
type Strategy interface {
	// Name returns the registry name of the strategy.
	Name() string
	// WarmupPeriod returns the minimum number of bars the strategy needs
	// before it can emit a non-HOLD signal.
	WarmupPeriod() int
	// GenerateSignal inspects the look-back window and returns the decision
	// for the window's last bar.
	GenerateSignal(window dataset.Window) (types.Signal, error)
	// HandleOrderResult informs the strategy of the fill produced by its
	// previous signal, including zero-quantity rejections.
	HandleOrderResult(fill types.Fill)
}

// positionTracker maintains the entry price and open quantity a strategy
// derives from its own fills. Strategies embed it instead of querying the
// ledger, which keeps them pure over (window, fill history).
type positionTracker struct {
	quantity   float64
	entryPrice float64
}

func (p *positionTracker) apply(fill types.Fill) {
	if fill.Rejected() {
		return
	}

	switch fill.Side {
	case types.SideBuy:
		total := p.quantity + fill.Quantity
		if total > 0 {
			p.entryPrice = (p.entryPrice*p.quantity + fill.Price*fill.Quantity) / total
		}

		p.quantity = total
	case types.SideSell:
		p.quantity -= fill.Quantity
		if p.quantity <= 0 {
			p.quantity = 0
			p.entryPrice = 0
		}
	}
}

func (p *positionTracker) holding() bool {
	return p.quantity > 0
}

// profit returns the fractional gain over the entry price at the given
// price. It is zero when no position is open.
func (p *positionTracker) profit(price float64) float64 {
	if !p.holding() || p.entryPrice == 0 {
		return 0
	}

	return (price - p.entryPrice) / p.entryPrice
}
