package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradepulse/paper-engine/internal/models"
	"github.com/tradepulse/paper-engine/internal/prices"
)

// PaperBroker simulates execution by filling market orders at the oracle
// price plus a configurable slippage. Orders never touch a real venue. One
// instance serves the equity venue and one the crypto venue; they differ only
// in name and in the oracle they consult.
type PaperBroker struct {
	name        string
	oracle      prices.Oracle
	slippageBps int64
}

// NewEquityPaper creates the paper broker standing in for the equity venue.
func NewEquityPaper(oracle prices.Oracle, slippageBps int64) *PaperBroker {
	return &PaperBroker{name: "alpaca-paper", oracle: oracle, slippageBps: slippageBps}
}

// NewCryptoPaper creates the paper broker standing in for the crypto venue.
func NewCryptoPaper(oracle prices.Oracle, slippageBps int64) *PaperBroker {
	return &PaperBroker{name: "binance-paper", oracle: oracle, slippageBps: slippageBps}
}

func (b *PaperBroker) Name() string { return b.name }

// SubmitMarketOrder fills immediately at the last-known price adjusted
// against the taker by slippageBps. A missing quote is a definitive
// rejection; an oracle transport error is returned as-is so the caller can
// retry.
func (b *PaperBroker) SubmitMarketOrder(ctx context.Context, symbol string, side models.SignalDirection, size decimal.Decimal) (*Fill, error) {
	if !size.IsPositive() {
		return nil, &OrderRejectedError{Reason: fmt.Sprintf("non-positive size %s", size)}
	}
	if side != models.DirectionBuy && side != models.DirectionSell {
		return nil, &OrderRejectedError{Reason: fmt.Sprintf("invalid side %q", side)}
	}

	price, err := b.oracle.GetLatestPrice(ctx, symbol)
	if err != nil {
		if prices.IsUnavailable(err) {
			return nil, &OrderRejectedError{Reason: fmt.Sprintf("no market for %s", symbol)}
		}
		return nil, fmt.Errorf("fetching fill price for %s: %w", symbol, err)
	}

	fillPrice := b.applySlippage(price, side)
	return &Fill{
		Price:     fillPrice,
		BrokerRef: uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}, nil
}

// applySlippage moves the fill price against the taker: buys fill a touch
// above the quote, sells a touch below.
func (b *PaperBroker) applySlippage(price decimal.Decimal, side models.SignalDirection) decimal.Decimal {
	if b.slippageBps == 0 {
		return price
	}
	bps := decimal.New(b.slippageBps, -4) // 1 bps = 0.0001
	if side == models.DirectionSell {
		return price.Mul(decimal.NewFromInt(1).Sub(bps))
	}
	return price.Mul(decimal.NewFromInt(1).Add(bps))
}
