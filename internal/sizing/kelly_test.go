package sizing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/tradepulse/paper-engine/internal/config"
)

func baseRisk() config.RiskConfig {
	return config.RiskConfig{
		DefaultStopLossPct:   2.0,
		DefaultTakeProfitPct: 6.0,
		KellyFraction:        0.25,
		MaxPositionSizePct:   10.0,
	}
}

func TestPositionSize_CappedByMaxPosition(t *testing.T) {
	// b = 3, p = 0.8: raw kelly = (2.4 - 0.2) / 3 = 0.7333
	// quarter kelly = 0.1833, capped at 10% of cash
	// value = 10000 * 0.10 = 1000, size = 1000 / 50 = 20
	size := PositionSize(0.8, baseRisk(), decimal.NewFromInt(10000), decimal.NewFromInt(50))
	assert.True(t, size.Equal(decimal.NewFromInt(20)), "got %s", size)
}

func TestPositionSize_BelowCap(t *testing.T) {
	// b = 3, p = 0.4: raw kelly = (1.2 - 0.6) / 3 = 0.2
	// quarter kelly = 0.05, under the 10% cap
	// value = 10000 * 0.05 = 500, size = 500 / 50 = 10
	size := PositionSize(0.4, baseRisk(), decimal.NewFromInt(10000), decimal.NewFromInt(50))
	assert.True(t, size.Equal(decimal.NewFromInt(10)), "got %s", size)
}

func TestPositionSize_NegativeEdgeIsZero(t *testing.T) {
	// b = 3, p = 0.2: raw kelly = (0.6 - 0.8) / 3 < 0, clamped to zero
	size := PositionSize(0.2, baseRisk(), decimal.NewFromInt(10000), decimal.NewFromInt(50))
	assert.True(t, size.IsZero(), "got %s", size)
}

func TestPositionSize_ZeroStopLoss(t *testing.T) {
	cfg := baseRisk()
	cfg.DefaultStopLossPct = 0

	size := PositionSize(0.9, cfg, decimal.NewFromInt(10000), decimal.NewFromInt(50))
	assert.True(t, size.IsZero())
}

func TestPositionSize_NonPositiveInputs(t *testing.T) {
	cfg := baseRisk()

	assert.True(t, PositionSize(0.8, cfg, decimal.Zero, decimal.NewFromInt(50)).IsZero())
	assert.True(t, PositionSize(0.8, cfg, decimal.NewFromInt(10000), decimal.Zero).IsZero())
	assert.True(t, PositionSize(0.8, cfg, decimal.NewFromInt(-100), decimal.NewFromInt(50)).IsZero())
}

func TestPositionSize_FractionalShares(t *testing.T) {
	// value = 10000 * 0.10 = 1000, size = 1000 / 333 = 3.003...
	size := PositionSize(0.8, baseRisk(), decimal.NewFromInt(10000), decimal.NewFromInt(333))
	assert.True(t, size.GreaterThan(decimal.NewFromInt(3)))
	assert.True(t, size.LessThan(decimal.NewFromFloat(3.01)))
}
