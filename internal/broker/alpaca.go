package broker

import (
	"context"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marktide/marktide/internal/logger"
	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

// AlpacaBroker routes orders to Alpaca. Use the paper trading base URL for
// anything that is not production money.
type AlpacaBroker struct {
	client alpacaClient
	log    *logger.Logger
}

// alpacaClient is the slice of the Alpaca SDK the broker uses.
type alpacaClient interface {
	PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	GetAccount() (*alpaca.Account, error)
	GetPositions() ([]alpaca.Position, error)
}

// AlpacaOptions configures the Alpaca client.
type AlpacaOptions struct {
	APIKey    string
	APISecret string
	// BaseURL selects the paper or live endpoint. Empty uses the SDK
	// default.
	BaseURL string
}

// NewAlpacaBroker creates a broker backed by the Alpaca trading API.
func NewAlpacaBroker(opts AlpacaOptions, log *logger.Logger) (*AlpacaBroker, error) {
	if opts.APIKey == "" || opts.APISecret == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "alpaca broker requires api key and secret")
	}

	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
		BaseURL:   opts.BaseURL,
	})

	return &AlpacaBroker{
		client: client,
		log:    log,
	}, nil
}

func (b *AlpacaBroker) Name() string {
	return "alpaca"
}

// PlaceOrder submits the order and translates the venue's response into a
// Fill. A venue-side rejection comes back as a zero-quantity fill.
func (b *AlpacaBroker) PlaceOrder(ctx context.Context, order types.Order) (types.Fill, error) {
	if err := ctx.Err(); err != nil {
		return types.Fill{}, errors.Wrap(errors.ErrCodeBrokerUnavailable, "order placement canceled", err)
	}

	quantity := decimal.NewFromFloat(order.Quantity)

	request := alpaca.PlaceOrderRequest{
		Symbol:        order.Symbol,
		Qty:           &quantity,
		Side:          alpacaSide(order.Side),
		Type:          alpacaOrderType(order.Type),
		TimeInForce:   alpaca.Day,
		ClientOrderID: order.ID,
	}

	if order.Type == types.OrderTypeLimit {
		limit := decimal.NewFromFloat(order.RequestedPrice)
		request.LimitPrice = &limit
	}

	placed, err := b.client.PlaceOrder(request)
	if err != nil {
		return types.Fill{}, errors.Wrapf(errors.ErrCodeBrokerOrderFailed, err,
			"alpaca rejected order request %s", order.ID)
	}

	b.log.Info("order placed",
		zap.String("broker", b.Name()),
		zap.String("order_id", order.ID),
		zap.String("venue_order_id", placed.ID),
		zap.String("status", string(placed.Status)),
	)

	return alpacaFill(order, placed), nil
}

// GetAccountState reconciles cash, equity and open positions from Alpaca.
func (b *AlpacaBroker) GetAccountState(ctx context.Context) (types.AccountState, error) {
	if err := ctx.Err(); err != nil {
		return types.AccountState{}, errors.Wrap(errors.ErrCodeBrokerUnavailable, "account fetch canceled", err)
	}

	account, err := b.client.GetAccount()
	if err != nil {
		return types.AccountState{}, errors.Wrap(errors.ErrCodeBrokerUnavailable, "failed to fetch alpaca account", err)
	}

	positions, err := b.client.GetPositions()
	if err != nil {
		return types.AccountState{}, errors.Wrap(errors.ErrCodeBrokerUnavailable, "failed to fetch alpaca positions", err)
	}

	state := types.AccountState{
		Positions: make(map[string]types.Position, len(positions)),
	}
	state.Cash, _ = account.Cash.Float64()
	state.Equity, _ = account.Equity.Float64()

	for _, p := range positions {
		quantity, _ := p.Qty.Float64()
		avgCost, _ := p.AvgEntryPrice.Float64()
		unrealized, _ := p.UnrealizedPL.Float64()

		state.Positions[p.Symbol] = types.Position{
			Symbol:   p.Symbol,
			Quantity: quantity,
			AvgCost:  avgCost,
		}
		state.UnrealizedPnL += unrealized
	}

	return state, nil
}

// alpacaFill converts the venue order into the local fill shape. An order
// the venue did not execute keeps quantity zero and carries the venue
// status as the reason.
func alpacaFill(order types.Order, placed *alpaca.Order) types.Fill {
	fill := types.Fill{
		OrderID: order.ID,
		Symbol:  order.Symbol,
		Side:    order.Side,
		Time:    placed.CreatedAt,
		Reason:  string(placed.Status),
	}

	filledQty, _ := placed.FilledQty.Float64()
	if filledQty == 0 {
		return fill
	}

	fill.Quantity = filledQty
	fill.Reason = types.FillReasonStrategy

	if placed.FilledAvgPrice != nil {
		fill.Price, _ = placed.FilledAvgPrice.Float64()
	}

	if placed.FilledAt != nil {
		fill.Time = *placed.FilledAt
	}

	return fill
}

func alpacaSide(side types.Side) alpaca.Side {
	if side == types.SideSell {
		return alpaca.Sell
	}

	return alpaca.Buy
}

func alpacaOrderType(orderType types.OrderType) alpaca.OrderType {
	if orderType == types.OrderTypeLimit {
		return alpaca.Limit
	}

	return alpaca.Market
}
