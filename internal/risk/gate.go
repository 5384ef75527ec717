package risk

import (
	"time"

	"github.com/tradepulse/paper-engine/internal/config"
	"github.com/tradepulse/paper-engine/internal/models"
)

// Evaluate runs the venue's risk checks against a signal in fixed order and
// returns the reason code of the first failing check, or "" when the signal
// passes. Pure: no store access, no side effects; everything it needs is in
// the snapshot.
//
// Check order (short-circuit):
//  1. confidence threshold
//  2. signal age
//  3. trading hours (venues with a configured session)
//  4. portfolio risk exposure
//  5. duplicate position
//  6. daily loss circuit breaker
func Evaluate(sig *models.TradingSignal, state *PortfolioState, venue config.VenueConfig, now time.Time) string {
	cfg := venue.Risk

	if sig.Confidence < cfg.MinConfidence {
		return models.ReasonConfidenceTooLow
	}

	if now.Sub(sig.GeneratedAt) > cfg.MaxSignalAge {
		return models.ReasonSignalExpired
	}

	// Keyed off the venue, not the signal: a signal with an empty asset_class
	// still honors the hours of the venue it resolved to.
	if !marketOpen(venue.TradingHours, now) {
		return models.ReasonMarketClosed
	}

	if state.ExposurePct() >= cfg.MaxPortfolioRiskPct {
		return models.ReasonMaxRiskExceeded
	}

	if state.HasPosition(sig.Symbol) {
		return models.ReasonPositionExists
	}

	if state.DailyLossPct() > cfg.MaxDailyLossPct {
		return models.ReasonDailyLossLimitHit
	}

	return ""
}

// marketOpen checks the venue's daily window. A venue without configured
// hours trades around the clock.
func marketOpen(hours *config.TradingHours, now time.Time) bool {
	if hours == nil {
		return true
	}
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	return minute >= hours.OpenMinute && minute < hours.CloseMinute
}
