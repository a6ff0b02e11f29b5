package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents current holdings of a single symbol. Quantity is
// negative for short positions.
type Position struct {
	Symbol string `yaml:"symbol" json:"symbol" csv:"symbol"`
	// Quantity is the signed number of units held.
	Quantity float64 `yaml:"quantity" json:"quantity" csv:"quantity"`
	// AvgCost is the weighted-average entry price of the open quantity,
	// including fees paid to acquire it.
	AvgCost float64 `yaml:"avg_cost" json:"avg_cost" csv:"avg_cost"`
	// OpenTime is the time the position was first opened.
	OpenTime time.Time `yaml:"open_time" json:"open_time" csv:"open_time"`
}

// IsFlat reports whether the position holds no quantity.
func (p Position) IsFlat() bool {
	return p.Quantity == 0
}

// MarketValue returns the signed value of the position at the given price.
func (p Position) MarketValue(price float64) float64 {
	value := decimal.NewFromFloat(p.Quantity).Mul(decimal.NewFromFloat(price))
	result, _ := value.Float64()

	return result
}

// UnrealizedPnL returns the profit and loss of the open quantity marked at
// the given price.
func (p Position) UnrealizedPnL(price float64) float64 {
	qty := decimal.NewFromFloat(p.Quantity)
	diff := decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(p.AvgCost))
	result, _ := qty.Mul(diff).Float64()

	return result
}
