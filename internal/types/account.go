package types

// AccountState is a snapshot of an account's financial state. It is used to
// reconcile live broker state against the ledger.
type AccountState struct {
	// Cash is the available cash balance (excluding unrealized P&L).
	Cash float64 `json:"cash" yaml:"cash"`
	// Equity is the total account value (cash + market value of positions).
	Equity float64 `json:"equity" yaml:"equity"`
	// RealizedPnL is the total realized profit/loss from closed quantity.
	RealizedPnL float64 `json:"realized_pnl" yaml:"realized_pnl"`
	// UnrealizedPnL is the total unrealized profit/loss from open positions.
	UnrealizedPnL float64 `json:"unrealized_pnl" yaml:"unrealized_pnl"`
	// TotalFees is the total fees paid.
	TotalFees float64 `json:"total_fees" yaml:"total_fees"`
	// Positions holds the open positions keyed by symbol.
	Positions map[string]Position `json:"positions" yaml:"positions"`
}
