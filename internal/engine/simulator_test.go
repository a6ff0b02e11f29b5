package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/marktide/marktide/internal/types"
)

type SimulatorTestSuite struct {
	suite.Suite
	bar types.Bar
}

func TestSimulatorSuite(t *testing.T) {
	suite.Run(t, new(SimulatorTestSuite))
}

func (suite *SimulatorTestSuite) SetupTest() {
	suite.bar = types.Bar{
		Symbol: "BTC/USD",
		Time:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:   100,
		High:   104,
		Low:    96,
		Close:  102,
		Volume: 1000,
	}
}

func (suite *SimulatorTestSuite) order(side types.Side, orderType types.OrderType, quantity, price float64) types.Order {
	return types.Order{
		ID:             uuid.New().String(),
		Symbol:         "BTC/USD",
		Side:           side,
		Type:           orderType,
		Quantity:       quantity,
		RequestedPrice: price,
		Time:           suite.bar.Time,
		StrategyName:   "test",
	}
}

func (suite *SimulatorTestSuite) account(cash, position float64) types.AccountState {
	return types.AccountState{
		Cash: cash,
		Positions: map[string]types.Position{
			"BTC/USD": {Symbol: "BTC/USD", Quantity: position, AvgCost: 100},
		},
	}
}

func (suite *SimulatorTestSuite) TestMarketBuyFillsAtClose() {
	simulator := NewOrderSimulator(ZeroFee{}, NoSlippage{}, false)

	fill := simulator.Execute(suite.order(types.SideBuy, types.OrderTypeMarket, 10, 102), suite.bar, suite.account(10000, 0))
	suite.False(fill.Rejected())
	suite.Equal(102.0, fill.Price)
	suite.Equal(10.0, fill.Quantity)
	suite.Zero(fill.Fee)
	suite.Equal(types.FillReasonStrategy, fill.Reason)
	suite.Equal(suite.bar.Time, fill.Time)
}

func (suite *SimulatorTestSuite) TestSlippageMovesAgainstTheSide() {
	simulator := NewOrderSimulator(ZeroFee{}, FixedSlippage{Amount: 1}, false)

	buy := simulator.Execute(suite.order(types.SideBuy, types.OrderTypeMarket, 10, 102), suite.bar, suite.account(10000, 0))
	suite.Equal(103.0, buy.Price)

	sell := simulator.Execute(suite.order(types.SideSell, types.OrderTypeMarket, 5, 102), suite.bar, suite.account(10000, 10))
	suite.Equal(101.0, sell.Price)
}

func (suite *SimulatorTestSuite) TestProportionalSlippage() {
	simulator := NewOrderSimulator(ZeroFee{}, ProportionalSlippage{Fraction: 0.01}, false)

	buy := simulator.Execute(suite.order(types.SideBuy, types.OrderTypeMarket, 1, 102), suite.bar, suite.account(10000, 0))
	suite.InDelta(103.02, buy.Price, 1e-9)
}

func (suite *SimulatorTestSuite) TestBpsFeeOnNotional() {
	simulator := NewOrderSimulator(BpsFee{Bps: 10}, NoSlippage{}, false)

	fill := simulator.Execute(suite.order(types.SideBuy, types.OrderTypeMarket, 10, 102), suite.bar, suite.account(10000, 0))
	suite.False(fill.Rejected())
	suite.InDelta(1.02, fill.Fee, 1e-9)
}

func (suite *SimulatorTestSuite) TestBuyExceedingCashIsRejected() {
	simulator := NewOrderSimulator(ZeroFee{}, NoSlippage{}, false)

	fill := simulator.Execute(suite.order(types.SideBuy, types.OrderTypeMarket, 100, 102), suite.bar, suite.account(1000, 0))
	suite.True(fill.Rejected())
	suite.Equal(types.RejectReasonInsufficientCash, fill.Reason)
	suite.Zero(fill.Quantity)
}

func (suite *SimulatorTestSuite) TestFeeCountsTowardAffordability() {
	simulator := NewOrderSimulator(FlatFee{Amount: 5}, NoSlippage{}, false)

	// Notional exactly equals cash, so the fee tips it over.
	fill := simulator.Execute(suite.order(types.SideBuy, types.OrderTypeMarket, 10, 102), suite.bar, suite.account(1020, 0))
	suite.True(fill.Rejected())
	suite.Equal(types.RejectReasonInsufficientCash, fill.Reason)
}

func (suite *SimulatorTestSuite) TestSellExceedingPositionIsRejected() {
	simulator := NewOrderSimulator(ZeroFee{}, NoSlippage{}, false)

	fill := simulator.Execute(suite.order(types.SideSell, types.OrderTypeMarket, 11, 102), suite.bar, suite.account(10000, 10))
	suite.True(fill.Rejected())
	suite.Equal(types.RejectReasonInsufficientPosition, fill.Reason)
}

func (suite *SimulatorTestSuite) TestShortingPermitsOversell() {
	simulator := NewOrderSimulator(ZeroFee{}, NoSlippage{}, true)

	fill := simulator.Execute(suite.order(types.SideSell, types.OrderTypeMarket, 11, 102), suite.bar, suite.account(10000, 10))
	suite.False(fill.Rejected())
	suite.Equal(11.0, fill.Quantity)
}

func (suite *SimulatorTestSuite) TestInvalidQuantityIsRejected() {
	simulator := NewOrderSimulator(ZeroFee{}, NoSlippage{}, false)

	order := suite.order(types.SideBuy, types.OrderTypeMarket, 0, 102)

	fill := simulator.Execute(order, suite.bar, suite.account(10000, 0))
	suite.True(fill.Rejected())
	suite.Equal(types.RejectReasonInvalidQuantity, fill.Reason)
}

func (suite *SimulatorTestSuite) TestLimitBuyFillsWhenBarTouchesLimit() {
	simulator := NewOrderSimulator(ZeroFee{}, NoSlippage{}, false)

	fill := simulator.Execute(suite.order(types.SideBuy, types.OrderTypeLimit, 10, 98), suite.bar, suite.account(10000, 0))
	suite.False(fill.Rejected())
	suite.Equal(98.0, fill.Price)
}

func (suite *SimulatorTestSuite) TestLimitBuyBelowBarRangeIsRejected() {
	simulator := NewOrderSimulator(ZeroFee{}, NoSlippage{}, false)

	fill := simulator.Execute(suite.order(types.SideBuy, types.OrderTypeLimit, 10, 90), suite.bar, suite.account(10000, 0))
	suite.True(fill.Rejected())
	suite.Equal(types.RejectReasonLimitNotReached, fill.Reason)
}

func (suite *SimulatorTestSuite) TestLimitSellFillsWhenBarTouchesLimit() {
	simulator := NewOrderSimulator(ZeroFee{}, NoSlippage{}, false)

	fill := simulator.Execute(suite.order(types.SideSell, types.OrderTypeLimit, 5, 103), suite.bar, suite.account(10000, 10))
	suite.False(fill.Rejected())
	suite.Equal(103.0, fill.Price)

	missed := simulator.Execute(suite.order(types.SideSell, types.OrderTypeLimit, 5, 105), suite.bar, suite.account(10000, 10))
	suite.True(missed.Rejected())
	suite.Equal(types.RejectReasonLimitNotReached, missed.Reason)
}
