package engine

import (
	"github.com/shopspring/decimal"

	"github.com/marktide/marktide/internal/types"
)

// OrderSimulator decides whether and at what price an order executes against
// a bar. Rejections are expressed as zero-quantity fills with a reason, never
// as errors: a strategy asking for more than the account can carry is a
// normal outcome of a backtest.
type OrderSimulator struct {
	fees       FeeModel
	slippage   SlippageModel
	allowShort bool
}

// NewOrderSimulator builds a simulator with the given fee and slippage
// models.
func NewOrderSimulator(fees FeeModel, slippage SlippageModel, allowShort bool) *OrderSimulator {
	return &OrderSimulator{
		fees:       fees,
		slippage:   slippage,
		allowShort: allowShort,
	}
}

// Execute simulates the order against the bar it was created on, using the
// account snapshot for affordability checks. The returned fill carries
// either the executed quantity or a rejection reason.
func (s *OrderSimulator) Execute(order types.Order, bar types.Bar, account types.AccountState) types.Fill {
	fill := types.Fill{
		OrderID: order.ID,
		Symbol:  order.Symbol,
		Side:    order.Side,
		Time:    bar.Time,
	}

	if order.Quantity <= 0 {
		fill.Reason = types.RejectReasonInvalidQuantity

		return fill
	}

	price, ok := s.executionPrice(order, bar)
	if !ok {
		fill.Reason = types.RejectReasonLimitNotReached

		return fill
	}

	fee := s.fees.Calculate(price, order.Quantity)

	switch order.Side {
	case types.SideBuy:
		// The cost check runs in decimal, the same arithmetic the ledger
		// books the fill with, so the two can never disagree about
		// affordability.
		cost := decimal.NewFromFloat(price).
			Mul(decimal.NewFromFloat(order.Quantity)).
			Add(decimal.NewFromFloat(fee))

		if cost.GreaterThan(decimal.NewFromFloat(account.Cash)) {
			fill.Reason = types.RejectReasonInsufficientCash

			return fill
		}
	case types.SideSell:
		if !s.allowShort && order.Quantity > account.Positions[order.Symbol].Quantity {
			fill.Reason = types.RejectReasonInsufficientPosition

			return fill
		}
	}

	fill.Price = price
	fill.Quantity = order.Quantity
	fill.Fee = fee
	fill.Reason = types.FillReasonStrategy

	return fill
}

// executionPrice returns the fill price for the order on this bar, or false
// when the bar never reaches a limit price. Market orders fill at the bar's
// close adjusted for slippage; limit orders fill at the limit when the bar's
// range touches it.
func (s *OrderSimulator) executionPrice(order types.Order, bar types.Bar) (float64, bool) {
	switch order.Type {
	case types.OrderTypeLimit:
		limit := order.RequestedPrice

		if order.Side == types.SideBuy && bar.Low <= limit {
			return limit, true
		}

		if order.Side == types.SideSell && bar.High >= limit {
			return limit, true
		}

		return 0, false
	default:
		return s.slippage.Adjust(bar.Close, order.Side), true
	}
}
