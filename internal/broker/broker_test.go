package broker

import (
	"context"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/marktide/marktide/internal/logger"
	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

func testOrder(side types.Side) types.Order {
	return types.Order{
		ID:             uuid.New().String(),
		Symbol:         "AAPL",
		Side:           side,
		Type:           types.OrderTypeMarket,
		Quantity:       10,
		RequestedPrice: 100,
		Time:           time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		StrategyName:   "test",
	}
}

// flakyBroker fails a set number of calls before succeeding.
type flakyBroker struct {
	failures int
	calls    int
	fill     types.Fill
}

func (f *flakyBroker) Name() string {
	return "flaky"
}

func (f *flakyBroker) PlaceOrder(_ context.Context, _ types.Order) (types.Fill, error) {
	f.calls++
	if f.calls <= f.failures {
		return types.Fill{}, errors.New(errors.ErrCodeBrokerUnavailable, "connection reset")
	}

	return f.fill, nil
}

func (f *flakyBroker) GetAccountState(_ context.Context) (types.AccountState, error) {
	f.calls++
	if f.calls <= f.failures {
		return types.AccountState{}, errors.New(errors.ErrCodeBrokerUnavailable, "connection reset")
	}

	return types.AccountState{Cash: 1000}, nil
}

type RetryTestSuite struct {
	suite.Suite
}

func TestRetrySuite(t *testing.T) {
	suite.Run(t, new(RetryTestSuite))
}

func (suite *RetryTestSuite) options() RetryOptions {
	return RetryOptions{
		CallTimeout:     2 * time.Second,
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
	}
}

func (suite *RetryTestSuite) TestRetriesTransportFailures() {
	inner := &flakyBroker{
		failures: 2,
		fill:     types.Fill{OrderID: "order", Quantity: 10, Price: 100, Reason: types.FillReasonStrategy},
	}
	broker := NewRetryingBroker(inner, suite.options(), logger.NewNopLogger())

	fill, err := broker.PlaceOrder(context.Background(), testOrder(types.SideBuy))
	suite.NoError(err)
	suite.Equal(10.0, fill.Quantity)
	suite.Equal(3, inner.calls)
}

func (suite *RetryTestSuite) TestGivesUpAfterRetryBudget() {
	inner := &flakyBroker{failures: 10}
	broker := NewRetryingBroker(inner, suite.options(), logger.NewNopLogger())

	_, err := broker.PlaceOrder(context.Background(), testOrder(types.SideBuy))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeBrokerOrderFailed))
	suite.Equal(4, inner.calls, "one attempt plus three retries")
}

func (suite *RetryTestSuite) TestRejectionIsNotRetried() {
	inner := &flakyBroker{
		fill: types.Fill{OrderID: "order", Reason: "rejected"},
	}
	broker := NewRetryingBroker(inner, suite.options(), logger.NewNopLogger())

	fill, err := broker.PlaceOrder(context.Background(), testOrder(types.SideBuy))
	suite.NoError(err)
	suite.True(fill.Rejected())
	suite.Equal(1, inner.calls)
}

func (suite *RetryTestSuite) TestAccountStateRetries() {
	inner := &flakyBroker{failures: 1}
	broker := NewRetryingBroker(inner, suite.options(), logger.NewNopLogger())

	state, err := broker.GetAccountState(context.Background())
	suite.NoError(err)
	suite.Equal(1000.0, state.Cash)
	suite.Equal(2, inner.calls)
}

func (suite *RetryTestSuite) TestCanceledContextStopsRetrying() {
	inner := &flakyBroker{failures: 10}
	broker := NewRetryingBroker(inner, suite.options(), logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := broker.PlaceOrder(ctx, testOrder(types.SideBuy))
	suite.Error(err)
	suite.LessOrEqual(inner.calls, 1)
}

// fakeAlpacaClient stubs the SDK surface the broker touches.
type fakeAlpacaClient struct {
	placed    *alpaca.Order
	placeErr  error
	account   *alpaca.Account
	positions []alpaca.Position
	request   alpaca.PlaceOrderRequest
}

func (f *fakeAlpacaClient) PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error) {
	f.request = req

	return f.placed, f.placeErr
}

func (f *fakeAlpacaClient) GetAccount() (*alpaca.Account, error) {
	return f.account, nil
}

func (f *fakeAlpacaClient) GetPositions() ([]alpaca.Position, error) {
	return f.positions, nil
}

type AlpacaTestSuite struct {
	suite.Suite
}

func TestAlpacaSuite(t *testing.T) {
	suite.Run(t, new(AlpacaTestSuite))
}

func (suite *AlpacaTestSuite) TestRequiresCredentials() {
	_, err := NewAlpacaBroker(AlpacaOptions{}, logger.NewNopLogger())
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *AlpacaTestSuite) TestFilledOrderMapsToFill() {
	filledQty := decimal.NewFromInt(10)
	avgPrice := decimal.NewFromFloat(101.5)
	filledAt := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)

	client := &fakeAlpacaClient{
		placed: &alpaca.Order{
			ID:             "venue-1",
			Status:         "filled",
			FilledQty:      filledQty,
			FilledAvgPrice: &avgPrice,
			FilledAt:       &filledAt,
		},
	}
	broker := &AlpacaBroker{client: client, log: logger.NewNopLogger()}

	order := testOrder(types.SideBuy)

	fill, err := broker.PlaceOrder(context.Background(), order)
	suite.NoError(err)
	suite.False(fill.Rejected())
	suite.Equal(order.ID, fill.OrderID)
	suite.Equal(10.0, fill.Quantity)
	suite.InDelta(101.5, fill.Price, 1e-9)
	suite.True(filledAt.Equal(fill.Time))

	suite.Equal("AAPL", client.request.Symbol)
	suite.Equal(alpaca.Buy, client.request.Side)
	suite.Equal(alpaca.Market, client.request.Type)
}

func (suite *AlpacaTestSuite) TestUnfilledOrderIsRejectionNotError() {
	client := &fakeAlpacaClient{
		placed: &alpaca.Order{
			ID:     "venue-2",
			Status: "rejected",
		},
	}
	broker := &AlpacaBroker{client: client, log: logger.NewNopLogger()}

	fill, err := broker.PlaceOrder(context.Background(), testOrder(types.SideSell))
	suite.NoError(err)
	suite.True(fill.Rejected())
	suite.Equal("rejected", fill.Reason)
}

func (suite *AlpacaTestSuite) TestLimitOrderCarriesLimitPrice() {
	client := &fakeAlpacaClient{
		placed: &alpaca.Order{ID: "venue-3", Status: "accepted"},
	}
	broker := &AlpacaBroker{client: client, log: logger.NewNopLogger()}

	order := testOrder(types.SideBuy)
	order.Type = types.OrderTypeLimit
	order.RequestedPrice = 99.5

	_, err := broker.PlaceOrder(context.Background(), order)
	suite.NoError(err)
	suite.Require().NotNil(client.request.LimitPrice)
	suite.InDelta(99.5, client.request.LimitPrice.InexactFloat64(), 1e-9)
	suite.Equal(alpaca.Limit, client.request.Type)
}

func (suite *AlpacaTestSuite) TestTransportErrorSurfacesAsError() {
	client := &fakeAlpacaClient{
		placeErr: errors.New(errors.ErrCodeBrokerUnavailable, "boom"),
	}
	broker := &AlpacaBroker{client: client, log: logger.NewNopLogger()}

	_, err := broker.PlaceOrder(context.Background(), testOrder(types.SideBuy))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeBrokerOrderFailed))
}

func (suite *AlpacaTestSuite) TestAccountReconciliation() {
	unrealizedPL := decimal.NewFromInt(50)
	client := &fakeAlpacaClient{
		account: &alpaca.Account{
			Cash:   decimal.NewFromInt(5000),
			Equity: decimal.NewFromInt(6000),
		},
		positions: []alpaca.Position{
			{
				Symbol:        "AAPL",
				Qty:           decimal.NewFromInt(10),
				AvgEntryPrice: decimal.NewFromInt(95),
				UnrealizedPL:  &unrealizedPL,
			},
		},
	}
	broker := &AlpacaBroker{client: client, log: logger.NewNopLogger()}

	state, err := broker.GetAccountState(context.Background())
	suite.NoError(err)
	suite.Equal(5000.0, state.Cash)
	suite.Equal(6000.0, state.Equity)
	suite.InDelta(50.0, state.UnrealizedPnL, 1e-9)

	position := state.Positions["AAPL"]
	suite.Equal(10.0, position.Quantity)
	suite.Equal(95.0, position.AvgCost)
}
