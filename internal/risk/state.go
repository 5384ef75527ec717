// Package risk holds the pure signal-gating logic and the portfolio state
// snapshot it evaluates against.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/tradepulse/paper-engine/internal/models"
)

// OpenPosition is the slice of an open trade the gate cares about.
type OpenPosition struct {
	Symbol       string
	Size         decimal.Decimal
	EntryPrice   decimal.Decimal
	CurrentPrice decimal.Decimal
	Unrealized   decimal.Decimal
}

// Value returns |size * price| at the last mark, falling back to entry.
func (p OpenPosition) Value() decimal.Decimal {
	price := p.CurrentPrice
	if price.IsZero() {
		price = p.EntryPrice
	}
	return p.Size.Mul(price).Abs()
}

// PortfolioState is a value snapshot of one venue's book, rebuilt from the
// store at the start of each cycle and passed through the gate and sizer.
// Within a cycle every signal for the venue sees the same snapshot; the
// slight staleness is a deliberate trade-off for not holding locks across
// network calls.
type PortfolioState struct {
	Venue            string
	Cash             decimal.Decimal
	TotalValue       decimal.Decimal
	Positions        map[string]OpenPosition
	DailyRealizedPnL decimal.Decimal
}

// NewPortfolioState builds a snapshot from the venue's open trades and
// latest known totals.
func NewPortfolioState(venue string, cash, totalValue, dailyPnl decimal.Decimal, trades []*models.Trade) *PortfolioState {
	positions := make(map[string]OpenPosition, len(trades))
	for _, t := range trades {
		if t.Exchange != venue {
			continue
		}
		positions[t.Symbol] = OpenPosition{
			Symbol:       t.Symbol,
			Size:         t.Size,
			EntryPrice:   t.EntryPrice,
			CurrentPrice: t.CurrentPrice,
			Unrealized:   t.UnrealizedPnl,
		}
	}
	return &PortfolioState{
		Venue:            venue,
		Cash:             cash,
		TotalValue:       totalValue,
		Positions:        positions,
		DailyRealizedPnL: dailyPnl,
	}
}

// ExposurePct returns the venue's current risk exposure as a percentage:
// sum of absolute position values over total value.
func (s *PortfolioState) ExposurePct() float64 {
	if s.TotalValue.IsZero() {
		return 0
	}
	total := decimal.Zero
	for _, p := range s.Positions {
		total = total.Add(p.Value())
	}
	pct, _ := total.Div(s.TotalValue).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

// HasPosition reports whether the venue already holds the symbol.
func (s *PortfolioState) HasPosition(symbol string) bool {
	_, ok := s.Positions[symbol]
	return ok
}

// DailyLossPct returns today's realized loss as a positive percentage of
// portfolio value, or 0 when the venue is flat or up on the day.
func (s *PortfolioState) DailyLossPct() float64 {
	if !s.DailyRealizedPnL.IsNegative() {
		return 0
	}
	base := s.TotalValue
	if base.IsZero() {
		base = s.Cash
	}
	if base.IsZero() {
		return 0
	}
	pct, _ := s.DailyRealizedPnL.Div(base).Mul(decimal.NewFromInt(100)).Abs().Float64()
	return pct
}
