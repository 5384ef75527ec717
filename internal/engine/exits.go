package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/tradepulse/paper-engine/internal/broker"
	"github.com/tradepulse/paper-engine/internal/metrics"
	"github.com/tradepulse/paper-engine/internal/models"
)

// RunExitCycle scans every open trade against the latest price, closes the
// ones whose stop or target is breached, refreshes the mark-to-market fields
// of the rest, writes the portfolio snapshot, and recomputes the rolling
// performance metrics. A price lookup failure skips that trade for this
// cycle; only a store failure is fatal. At most one exit cycle runs at a
// time.
func (e *Engine) RunExitCycle(ctx context.Context) (*models.CycleReport, error) {
	if !e.guard.tryAcquire(models.StageExit) {
		return nil, ErrCycleInProgress
	}
	defer e.guard.release(models.StageExit)

	report := &models.CycleReport{Stage: models.StageExit, StartedAt: e.now()}
	defer func() {
		report.FinishedAt = e.now()
		metrics.CycleDuration.WithLabelValues(models.StageExit).
			Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}()

	trades, err := e.store.GetOpenTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading open trades: %w", err)
	}
	if len(trades) > 0 {
		log.Printf("Exit cycle: monitoring %d open trades", len(trades))
	}

	// Trades surviving this cycle, with current prices, feed the snapshot.
	var stillOpen []*models.Trade

	for _, t := range trades {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		price, err := broker.FetchPriceWithRetry(ctx, e.oracle, t.Symbol,
			e.cfg.Engine.CallTimeout, e.cfg.Engine.MaxRetries)
		if err != nil {
			log.Printf("Skipping trade %s (%s): price lookup failed: %v", t.ID, t.Symbol, err)
			report.Skipped++
			continue
		}

		reason := t.ExitTrigger(price)
		if reason == "" {
			pnl, pnlPct := t.MarkToMarket(price)
			if err := e.store.RefreshTradeMark(ctx, t.ID, price, pnl, pnlPct); err != nil {
				return report, fmt.Errorf("refreshing trade %s: %w", t.ID, err)
			}
			t.CurrentPrice = price
			t.UnrealizedPnl = pnl
			t.UnrealizedPnlPct = pnlPct
			stillOpen = append(stillOpen, t)
			report.StillOpen++
			continue
		}

		if err := e.closeTrade(ctx, t, price, reason, report); err != nil {
			return report, err
		}
	}

	if err := e.writeSnapshots(ctx, stillOpen); err != nil {
		return report, err
	}

	if err := e.recomputeMetrics(ctx); err != nil {
		// Metrics are a read-aggregate; a failure here should not hide an
		// otherwise successful cycle.
		log.Printf("Warning: recomputing performance metrics: %v", err)
	}

	log.Printf("Exit cycle complete: %d closed, %d still open, %d skipped",
		report.Closed, report.StillOpen, report.Skipped)

	e.finishReport(ctx, report)
	return report, nil
}

// closeTrade writes the single open->closed transition for a breached trade.
func (e *Engine) closeTrade(ctx context.Context, t *models.Trade, price decimal.Decimal, reason models.ExitReason, report *models.CycleReport) error {
	pnl, pnlPct := t.MarkToMarket(price)
	exitTime := e.now()
	holdingHours := decimal.NewFromFloat(exitTime.Sub(t.EntryTime).Hours()).Round(2)

	applied, err := e.store.CloseTrade(ctx, t.ID, models.TradeExit{
		Price:        price,
		Time:         exitTime,
		Reason:       reason,
		Pnl:          pnl,
		PnlPct:       pnlPct,
		HoldingHours: holdingHours,
	})
	if err != nil {
		return fmt.Errorf("closing trade %s: %w", t.ID, err)
	}
	if !applied {
		// Already closed by a previous, interrupted cycle.
		report.Skipped++
		return nil
	}

	log.Printf("Closed trade %s: %s %s %s, pnl=%s (%s%%), reason=%s",
		t.ID, t.Exchange, t.Side, t.Symbol, pnl.StringFixed(2), pnlPct.StringFixed(2), reason)
	metrics.TradesClosed.WithLabelValues(t.Exchange, string(reason)).Inc()
	report.Closed++
	return nil
}
