// Package sizing computes trade sizes with a fractional Kelly criterion.
package sizing

import (
	"github.com/shopspring/decimal"

	"github.com/tradepulse/paper-engine/internal/config"
)

// PositionSize returns the number of units to buy for a signal.
//
//	b = take_profit_pct / stop_loss_pct   (payoff odds)
//	kelly = max(0, (b*p - (1-p)) / b)
//	kelly = min(kelly * kelly_fraction, max_position_size_pct)
//	size  = cash * kelly / price
//
// A zero result is a valid answer meaning "skip this signal"; the caller
// records it as a rejection, not an error. Sizing never returns a negative
// size.
func PositionSize(confidence float64, cfg config.RiskConfig, availableCash, currentPrice decimal.Decimal) decimal.Decimal {
	if cfg.DefaultStopLossPct == 0 {
		// odds are undefined without a stop distance
		return decimal.Zero
	}
	if !currentPrice.IsPositive() || !availableCash.IsPositive() {
		return decimal.Zero
	}

	p := confidence
	q := 1 - p
	b := cfg.DefaultTakeProfitPct / cfg.DefaultStopLossPct
	if b <= 0 {
		return decimal.Zero
	}

	kellyPct := (b*p - q) / b
	if kellyPct < 0 {
		kellyPct = 0
	}

	kellyPct *= cfg.KellyFraction
	maxPct := cfg.MaxPositionSizePct / 100
	if kellyPct > maxPct {
		kellyPct = maxPct
	}

	positionValue := availableCash.Mul(decimal.NewFromFloat(kellyPct))
	return positionValue.Div(currentPrice)
}
