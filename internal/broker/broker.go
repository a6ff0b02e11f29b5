// Package broker routes orders to a live trading venue. The contract is
// structurally identical to the in-process simulator path: an order goes in,
// a fill comes out, and a zero-quantity fill is a rejection rather than an
// error. Errors are reserved for transport and venue failures.
package broker

import (
	"context"

	"github.com/marktide/marktide/internal/types"
)

// Broker places orders with a live venue and reconciles account state.
type Broker interface {
	// Name returns the venue identifier.
	Name() string
	// PlaceOrder submits the order and reports its outcome as a Fill.
	PlaceOrder(ctx context.Context, order types.Order) (types.Fill, error)
	// GetAccountState fetches cash, equity and open positions from the
	// venue for reconciliation against a local ledger.
	GetAccountState(ctx context.Context) (types.AccountState, error)
}
