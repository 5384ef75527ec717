package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/shopspring/decimal"

	metricspkg "github.com/tradepulse/paper-engine/internal/metrics"
	"github.com/tradepulse/paper-engine/internal/models"
)

// recomputeMetrics aggregates closed trades inside the rolling window per
// venue and refreshes the exported gauges. Pure read; no table is written.
func (e *Engine) recomputeMetrics(ctx context.Context) error {
	windowDays := e.cfg.Engine.MetricsWindowDays
	since := e.now().AddDate(0, 0, -windowDays)

	closed, err := e.store.GetClosedTradesSince(ctx, since)
	if err != nil {
		return fmt.Errorf("loading closed trades: %w", err)
	}
	if len(closed) == 0 {
		return nil
	}

	results := CalculatePerformance(closed, windowDays, e.now())
	for venue, m := range results {
		metricspkg.WinRate.WithLabelValues(venue).Set(m.WinRate)
		metricspkg.Sharpe.WithLabelValues(venue).Set(m.Sharpe)
		log.Printf("%s metrics (%dd): trades=%d win_rate=%.1f%% total_pnl=%s avg_pnl=%s sharpe=%.2f avg_holding=%.1fh",
			venue, windowDays, m.TotalTrades, m.WinRate,
			m.TotalPnl.StringFixed(2), m.AvgPnl.StringFixed(2), m.Sharpe, m.AvgHoldingHours)
	}
	e.storeMetrics(results)
	return nil
}

// CalculatePerformance computes per-venue rolling statistics over closed
// trades: win rate, total and average PnL, a Sharpe-like ratio over trade
// returns, and the average holding period.
func CalculatePerformance(closed []*models.Trade, windowDays int, now time.Time) map[string]*models.PerformanceMetrics {
	byVenue := make(map[string][]*models.Trade)
	for _, t := range closed {
		byVenue[t.Exchange] = append(byVenue[t.Exchange], t)
	}

	results := make(map[string]*models.PerformanceMetrics, len(byVenue))
	for venue, trades := range byVenue {
		m := &models.PerformanceMetrics{
			Exchange:     venue,
			WindowDays:   windowDays,
			TotalTrades:  len(trades),
			TotalPnl:     decimal.Zero,
			CalculatedAt: now,
		}

		returns := make([]float64, 0, len(trades))
		holdingSum := 0.0
		for _, t := range trades {
			if t.Pnl.IsPositive() {
				m.WinningTrades++
			}
			m.TotalPnl = m.TotalPnl.Add(t.Pnl)
			r, _ := t.PnlPct.Float64()
			returns = append(returns, r)
			h, _ := t.HoldingPeriodHours.Float64()
			holdingSum += h
		}

		n := len(trades)
		m.LosingTrades = n - m.WinningTrades
		m.WinRate = float64(m.WinningTrades) / float64(n) * 100
		m.AvgPnl = m.TotalPnl.Div(decimal.NewFromInt(int64(n))).Round(8)
		m.AvgHoldingHours = holdingSum / float64(n)
		m.Sharpe = sharpeRatio(returns)

		results[venue] = m
	}
	return results
}

// sharpeRatio is mean/stdev over the trade returns, 0 when the returns do
// not vary.
func sharpeRatio(returns []float64) float64 {
	n := float64(len(returns))
	if n == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= n

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= n

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std
}
