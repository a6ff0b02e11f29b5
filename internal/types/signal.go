package types

import "time"

type SignalAction string

const (
	// SignalActionBuy tells the engine to open or extend a long position.
	SignalActionBuy SignalAction = "BUY"
	// SignalActionSell tells the engine to reduce or close a position.
	SignalActionSell SignalAction = "SELL"
	// SignalActionHold tells the engine to do nothing this bar.
	SignalActionHold SignalAction = "HOLD"
)

// Signal is a strategy's decision for a single bar. It is emitted at most
// once per bar and never mutated afterwards.
type Signal struct {
	// Time is the timestamp of the bar the signal was generated for.
	Time time.Time `yaml:"time" json:"time"`
	// Symbol is the instrument the signal applies to.
	Symbol string `yaml:"symbol" json:"symbol"`
	// Action is the trading decision.
	Action SignalAction `yaml:"action" json:"action"`
	// Strength is an optional sizing hint in (0, 1]. Zero means the engine
	// applies its configured default sizing.
	Strength float64 `yaml:"strength" json:"strength"`
	// Reason describes why the signal was emitted.
	Reason string `yaml:"reason" json:"reason"`
	// StrategyName is the name of the strategy that emitted the signal.
	StrategyName string `yaml:"strategy_name" json:"strategy_name"`
}

// HoldSignal returns the implicit no-action signal for a bar.
func HoldSignal(symbol string, at time.Time) Signal {
	return Signal{
		Time:     at,
		Symbol:   symbol,
		Action:   SignalActionHold,
		Strength: 0,
		Reason:   "",
	}
}
