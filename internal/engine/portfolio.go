package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	metricspkg "github.com/tradepulse/paper-engine/internal/metrics"
	"github.com/tradepulse/paper-engine/internal/models"
)

// writeSnapshots appends the portfolio audit rows for this cycle: one row per
// surviving open position plus one TOTAL row per venue. Venues with no open
// positions still get a zeroed TOTAL row so downstream consumers see
// continuous history.
func (e *Engine) writeSnapshots(ctx context.Context, openTrades []*models.Trade) error {
	now := e.now()

	byVenue := make(map[string][]*models.Trade)
	for _, t := range openTrades {
		byVenue[t.Exchange] = append(byVenue[t.Exchange], t)
	}

	var rows []*models.PortfolioSnapshot
	for name, venue := range e.cfg.Venues {
		cash, _, found, err := e.store.LatestVenueTotals(ctx, name)
		if err != nil {
			return fmt.Errorf("loading totals for %s: %w", name, err)
		}
		if !found {
			cash = decimal.NewFromFloat(venue.InitialCash)
		}

		trades := byVenue[name]
		totalUnrealized := decimal.Zero
		totalPositionValue := decimal.Zero
		for _, t := range trades {
			totalUnrealized = totalUnrealized.Add(t.UnrealizedPnl)
			totalPositionValue = totalPositionValue.Add(t.PositionValue())
		}

		// Sums are complete before any row is built: every row of a venue
		// carries the same venue-wide totals.
		for _, t := range trades {
			rows = append(rows, &models.PortfolioSnapshot{
				Timestamp:     now,
				Exchange:      name,
				Symbol:        t.Symbol,
				PositionSize:  t.Size,
				AvgEntryPrice: t.EntryPrice,
				CurrentPrice:  t.CurrentPrice,
				UnrealizedPnl: t.UnrealizedPnl,
				TotalCash:     cash,
				TotalValue:    cash.Add(totalPositionValue),
			})
		}

		rows = append(rows, &models.PortfolioSnapshot{
			Timestamp:     now,
			Exchange:      name,
			Symbol:        models.TotalSymbol,
			PositionSize:  decimal.NewFromInt(int64(len(trades))),
			UnrealizedPnl: totalUnrealized,
			TotalCash:     cash,
			TotalValue:    cash.Add(totalPositionValue).Add(totalUnrealized),
		})

		unrealized, _ := totalUnrealized.Float64()
		metricspkg.OpenTrades.WithLabelValues(name).Set(float64(len(trades)))
		metricspkg.UnrealizedPnl.WithLabelValues(name).Set(unrealized)
	}

	if err := e.store.InsertSnapshots(ctx, rows); err != nil {
		return fmt.Errorf("writing portfolio snapshots: %w", err)
	}
	return nil
}
