package broker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"github.com/tradepulse/paper-engine/internal/models"
	"github.com/tradepulse/paper-engine/internal/prices"
)

// SubmitWithRetry submits a market order with a bounded per-call timeout and
// exponential backoff on transient failures. Definitive rejections
// (OrderRejectedError) are returned immediately without retrying.
func SubmitWithRetry(ctx context.Context, a Adapter, symbol string, side models.SignalDirection, size decimal.Decimal, callTimeout time.Duration, maxRetries uint64) (*Fill, error) {
	var fill *Fill
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		f, err := a.SubmitMarketOrder(callCtx, symbol, side, size)
		if err != nil {
			if IsRejection(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		fill = f
		return nil
	}

	if err := backoff.Retry(op, newPolicy(ctx, maxRetries)); err != nil {
		return nil, err
	}
	return fill, nil
}

// FetchPriceWithRetry queries the oracle with the same timeout/backoff
// policy. A hard "no quote" answer is not retried; the caller skips the
// symbol for this cycle.
func FetchPriceWithRetry(ctx context.Context, o prices.Oracle, symbol string, callTimeout time.Duration, maxRetries uint64) (decimal.Decimal, error) {
	var price decimal.Decimal
	op := func() error {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		p, err := o.GetLatestPrice(callCtx, symbol)
		if err != nil {
			if prices.IsUnavailable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		price = p
		return nil
	}

	if err := backoff.Retry(op, newPolicy(ctx, maxRetries)); err != nil {
		return decimal.Zero, err
	}
	return price, nil
}

func newPolicy(ctx context.Context, maxRetries uint64) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 0 // bounded by retry count and context instead
	return backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx)
}
