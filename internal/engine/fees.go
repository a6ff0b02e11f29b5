package engine

import (
	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

// FeeModel computes the commission for an execution and returns the fee in
// the account currency.
type FeeModel interface {
	Calculate(price, quantity float64) float64
}

type FeeModelName string

const (
	FeeModelZero FeeModelName = "zero"
	FeeModelFlat FeeModelName = "flat"
	FeeModelBps  FeeModelName = "bps"
)

// ZeroFee charges nothing. It is the default model.
type ZeroFee struct{}

func (ZeroFee) Calculate(price, quantity float64) float64 {
	return 0
}

// FlatFee charges a fixed amount per executed order.
type FlatFee struct {
	Amount float64
}

func (f FlatFee) Calculate(price, quantity float64) float64 {
	return f.Amount
}

// BpsFee charges a fraction of the notional, expressed in basis points.
type BpsFee struct {
	Bps float64
}

func (f BpsFee) Calculate(price, quantity float64) float64 {
	return price * quantity * f.Bps / 10000
}

// NewFeeModel builds the fee model named by the config.
func NewFeeModel(name FeeModelName, value float64) (FeeModel, error) {
	switch name {
	case FeeModelZero, "":
		return ZeroFee{}, nil
	case FeeModelFlat:
		return FlatFee{Amount: value}, nil
	case FeeModelBps:
		return BpsFee{Bps: value}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown fee model %q", name)
	}
}

// SlippageModel adjusts the reference price against the trading side: buys
// pay up, sells receive less.
type SlippageModel interface {
	Adjust(price float64, side types.Side) float64
}

type SlippageModelName string

const (
	SlippageModelNone         SlippageModelName = "none"
	SlippageModelFixed        SlippageModelName = "fixed"
	SlippageModelProportional SlippageModelName = "proportional"
)

// NoSlippage fills at the reference price. It is the default model.
type NoSlippage struct{}

func (NoSlippage) Adjust(price float64, side types.Side) float64 {
	return price
}

// FixedSlippage moves the price by a fixed amount.
type FixedSlippage struct {
	Amount float64
}

func (s FixedSlippage) Adjust(price float64, side types.Side) float64 {
	if side == types.SideBuy {
		return price + s.Amount
	}

	return price - s.Amount
}

// ProportionalSlippage moves the price by a fraction of itself.
type ProportionalSlippage struct {
	Fraction float64
}

func (s ProportionalSlippage) Adjust(price float64, side types.Side) float64 {
	if side == types.SideBuy {
		return price * (1 + s.Fraction)
	}

	return price * (1 - s.Fraction)
}

// NewSlippageModel builds the slippage model named by the config.
func NewSlippageModel(name SlippageModelName, value float64) (SlippageModel, error) {
	switch name {
	case SlippageModelNone, "":
		return NoSlippage{}, nil
	case SlippageModelFixed:
		return FixedSlippage{Amount: value}, nil
	case SlippageModelProportional:
		return ProportionalSlippage{Fraction: value}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown slippage model %q", name)
	}
}
