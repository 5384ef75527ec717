// Package broker defines the market-order adapter consumed by the execution
// coordinator and the closed set of venue implementations behind it.
package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradepulse/paper-engine/internal/models"
)

// Fill is the synchronous acknowledgment returned for an accepted market
// order.
type Fill struct {
	Price     decimal.Decimal
	BrokerRef string
	Timestamp time.Time
}

// Adapter accepts a market order request and returns a fill acknowledgment.
// Implementations: EquityBroker and CryptoBroker, selected once per signal by
// Classify.
type Adapter interface {
	Name() string
	SubmitMarketOrder(ctx context.Context, symbol string, side models.SignalDirection, size decimal.Decimal) (*Fill, error)
}

// OrderRejectedError is a definitive broker rejection (invalid order, unknown
// symbol). It is never retried: the signal moves to the terminal failed
// status with this message.
type OrderRejectedError struct {
	Reason string
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("order rejected: %s", e.Reason)
}

// IsRejection reports whether err is a definitive rejection rather than a
// transient transport failure.
func IsRejection(err error) bool {
	var rej *OrderRejectedError
	return errors.As(err, &rej)
}

// Classify tags a symbol with its asset class. A symbol carrying one of the
// configured crypto quote suffixes routes to the crypto venue; everything
// else is an equity.
func Classify(symbol string, cryptoSuffixes []string) models.AssetClass {
	upper := strings.ToUpper(symbol)
	for _, suffix := range cryptoSuffixes {
		if strings.HasSuffix(upper, strings.ToUpper(suffix)) {
			return models.AssetCrypto
		}
	}
	return models.AssetEquity
}

// Router holds the closed set of venue adapters and picks one by asset class.
type Router struct {
	Equity Adapter
	Crypto Adapter
}

// ForAssetClass returns the adapter serving an asset class.
func (r *Router) ForAssetClass(class models.AssetClass) (Adapter, error) {
	switch class {
	case models.AssetCrypto:
		if r.Crypto == nil {
			return nil, fmt.Errorf("crypto broker not configured")
		}
		return r.Crypto, nil
	case models.AssetEquity:
		if r.Equity == nil {
			return nil, fmt.Errorf("equity broker not configured")
		}
		return r.Equity, nil
	default:
		return nil, fmt.Errorf("unknown asset class %q", class)
	}
}
