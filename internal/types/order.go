package types

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/marktide/marktide/pkg/errors"
)

type Side string

type OrderType string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

const (
	// FillReasonStrategy marks a fill produced from a strategy signal.
	FillReasonStrategy = "strategy"
	// RejectReasonInsufficientCash marks a buy that would exceed available cash.
	RejectReasonInsufficientCash = "insufficient_cash"
	// RejectReasonInsufficientPosition marks a sell that would exceed the held
	// quantity while shorting is disabled.
	RejectReasonInsufficientPosition = "insufficient_position"
	// RejectReasonInvalidQuantity marks an order whose quantity rounded to zero.
	RejectReasonInvalidQuantity = "invalid_quantity"
	// RejectReasonLimitNotReached marks a limit order the bar never touched.
	RejectReasonLimitNotReached = "limit_not_reached"
)

// Order is a request to trade, created by the engine from a non-HOLD signal.
// Orders are immutable and consumed exactly once by a simulator or broker.
type Order struct {
	ID       string    `yaml:"id" json:"id" csv:"id" validate:"required,uuid"`
	Symbol   string    `yaml:"symbol" json:"symbol" csv:"symbol" validate:"required"`
	Side     Side      `yaml:"side" json:"side" csv:"side" validate:"required,oneof=BUY SELL"`
	Type     OrderType `yaml:"order_type" json:"order_type" csv:"order_type" validate:"required,oneof=MARKET LIMIT"`
	Quantity float64   `yaml:"quantity" json:"quantity" csv:"quantity" validate:"required,gt=0"`
	// RequestedPrice is the limit price for LIMIT orders and the reference
	// price for MARKET orders.
	RequestedPrice float64   `yaml:"requested_price" json:"requested_price" csv:"requested_price" validate:"gte=0"`
	Time           time.Time `yaml:"time" json:"time" csv:"time" validate:"required"`
	StrategyName   string    `yaml:"strategy_name" json:"strategy_name" csv:"strategy_name" validate:"required"`
}

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	return nil
}

// Fill is the realized outcome of attempting to execute an Order. A zero
// quantity is a valid rejected/unfilled outcome, never an error.
type Fill struct {
	OrderID  string    `yaml:"order_id" json:"order_id" csv:"order_id"`
	Symbol   string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Side     Side      `yaml:"side" json:"side" csv:"side"`
	Price    float64   `yaml:"price" json:"price" csv:"price"`
	Quantity float64   `yaml:"quantity" json:"quantity" csv:"quantity"`
	Fee      float64   `yaml:"fee" json:"fee" csv:"fee"`
	Time     time.Time `yaml:"time" json:"time" csv:"time"`
	// Reason records why the order filled or was rejected.
	Reason string `yaml:"reason" json:"reason" csv:"reason"`
	// PnL is the realized profit and loss of this fill. Non-zero only for
	// fills that reduce an existing position.
	PnL float64 `yaml:"pnl" json:"pnl" csv:"pnl"`
}

// Rejected reports whether the fill represents a rejected or unfilled order.
func (f *Fill) Rejected() bool {
	return f.Quantity == 0
}

// Notional returns the cash value of the fill excluding fees.
func (f *Fill) Notional() float64 {
	return f.Price * f.Quantity
}
