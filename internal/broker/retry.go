package broker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/marktide/marktide/internal/logger"
	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

const (
	defaultCallTimeout     = 10 * time.Second
	defaultMaxRetries      = 3
	defaultInitialInterval = 500 * time.Millisecond
)

// RetryOptions bound the retry decorator. Zero values fall back to the
// defaults.
type RetryOptions struct {
	// CallTimeout caps each attempt, including retries, per call.
	CallTimeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
	// InitialInterval seeds the exponential backoff.
	InitialInterval time.Duration
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.CallTimeout <= 0 {
		o.CallTimeout = defaultCallTimeout
	}

	if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetries
	}

	if o.InitialInterval <= 0 {
		o.InitialInterval = defaultInitialInterval
	}

	return o
}

// RetryingBroker decorates a Broker with per-call timeouts and bounded
// exponential backoff. Order rejections are terminal outcomes and are never
// retried; only transport errors are.
type RetryingBroker struct {
	inner Broker
	opts  RetryOptions
	log   *logger.Logger
}

// NewRetryingBroker wraps the broker with the given retry policy.
func NewRetryingBroker(inner Broker, opts RetryOptions, log *logger.Logger) *RetryingBroker {
	return &RetryingBroker{
		inner: inner,
		opts:  opts.withDefaults(),
		log:   log,
	}
}

func (r *RetryingBroker) Name() string {
	return r.inner.Name()
}

// PlaceOrder submits the order, retrying transport failures with backoff
// until the call timeout or retry budget is exhausted.
func (r *RetryingBroker) PlaceOrder(ctx context.Context, order types.Order) (types.Fill, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	defer cancel()

	var fill types.Fill

	operation := func() error {
		var err error

		fill, err = r.inner.PlaceOrder(ctx, order)
		if err != nil {
			r.log.Warn("order placement failed, will retry",
				zap.String("broker", r.inner.Name()),
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
		}

		return err
	}

	if err := backoff.Retry(operation, r.policy(ctx)); err != nil {
		return types.Fill{}, errors.Wrapf(errors.ErrCodeBrokerOrderFailed, err,
			"order %s failed after retries", order.ID)
	}

	return fill, nil
}

// GetAccountState fetches the account snapshot with the same retry policy.
func (r *RetryingBroker) GetAccountState(ctx context.Context) (types.AccountState, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	defer cancel()

	var state types.AccountState

	operation := func() error {
		var err error

		state, err = r.inner.GetAccountState(ctx)

		return err
	}

	if err := backoff.Retry(operation, r.policy(ctx)); err != nil {
		return types.AccountState{}, errors.Wrap(errors.ErrCodeBrokerUnavailable,
			"account reconciliation failed after retries", err)
	}

	return state, nil
}

func (r *RetryingBroker) policy(ctx context.Context) backoff.BackOffContext {
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = r.opts.InitialInterval

	return backoff.WithContext(backoff.WithMaxRetries(exponential, r.opts.MaxRetries), ctx)
}
