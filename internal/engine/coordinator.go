package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradepulse/paper-engine/internal/broker"
	"github.com/tradepulse/paper-engine/internal/config"
	"github.com/tradepulse/paper-engine/internal/database"
	"github.com/tradepulse/paper-engine/internal/metrics"
	"github.com/tradepulse/paper-engine/internal/models"
	"github.com/tradepulse/paper-engine/internal/risk"
	"github.com/tradepulse/paper-engine/internal/sizing"
)

// RunExecutionCycle processes every pending signal once: risk gate, sizing,
// broker submission, and the atomic open-trade/mark-executed write. Failure
// of one signal never aborts the rest of the cycle; only a store failure is
// fatal. At most one execution cycle runs at a time.
func (e *Engine) RunExecutionCycle(ctx context.Context) (*models.CycleReport, error) {
	if !e.guard.tryAcquire(models.StageExecution) {
		return nil, ErrCycleInProgress
	}
	defer e.guard.release(models.StageExecution)

	report := &models.CycleReport{Stage: models.StageExecution, StartedAt: e.now()}
	defer func() {
		report.FinishedAt = e.now()
		metrics.CycleDuration.WithLabelValues(models.StageExecution).
			Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}()

	signals, err := e.store.GetActiveSignals(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active signals: %w", err)
	}
	if len(signals) == 0 {
		e.finishReport(ctx, report)
		return report, nil
	}

	log.Printf("Execution cycle: processing %d active signals", len(signals))

	// One portfolio snapshot per venue for the whole cycle. Two signals for
	// the same venue see the same risk numbers even if the first one opens a
	// position in between; only the fields guarding hard invariants
	// (duplicate position, spent cash) are updated in memory after a fill.
	openTrades, err := e.store.GetOpenTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading open trades: %w", err)
	}
	states := make(map[string]*risk.PortfolioState, len(e.cfg.Venues))
	for name, venue := range e.cfg.Venues {
		state, err := e.venueState(ctx, venue, openTrades)
		if err != nil {
			return nil, fmt.Errorf("building portfolio state for %s: %w", name, err)
		}
		states[name] = state
	}

	for _, sig := range signals {
		if err := ctx.Err(); err != nil {
			// Cancelled mid-cycle: remaining signals stay active and are
			// picked up by the next invocation.
			return report, err
		}
		if err := e.executeSignal(ctx, sig, states, report); err != nil {
			return report, err
		}
	}

	log.Printf("Execution cycle complete: %d executed, %d rejected, %d failed, %d skipped",
		report.Executed, report.Rejected, report.Failed, report.Skipped)

	e.finishReport(ctx, report)
	return report, nil
}

// executeSignal runs one signal through the gate-size-submit-record pipeline.
// A returned error is fatal for the cycle (store unavailable); everything
// per-signal is absorbed into the report.
func (e *Engine) executeSignal(ctx context.Context, sig *models.TradingSignal, states map[string]*risk.PortfolioState, report *models.CycleReport) error {
	class := sig.AssetClass
	if class == "" {
		class = broker.Classify(sig.Symbol, e.cfg.Engine.CryptoSuffixes)
	}

	venue, ok := e.cfg.VenueForAssetClass(string(class))
	if !ok {
		return e.recordFailed(ctx, sig, "unknown", fmt.Sprintf("no venue for asset class %q", class), report)
	}
	state := states[venue.Name]

	if reason := risk.Evaluate(sig, state, venue, e.now()); reason != "" {
		return e.recordRejected(ctx, sig, venue.Name, reason, report)
	}

	price, err := broker.FetchPriceWithRetry(ctx, e.oracle, sig.Symbol,
		e.cfg.Engine.CallTimeout, e.cfg.Engine.MaxRetries)
	if err != nil {
		// Recoverable: the signal stays active and is retried next cycle.
		log.Printf("Skipping signal %s (%s): price lookup failed: %v", sig.ID, sig.Symbol, err)
		report.Skipped++
		return nil
	}

	size := sizing.PositionSize(sig.Confidence, venue.Risk, state.Cash, price)
	if !size.IsPositive() {
		return e.recordRejected(ctx, sig, venue.Name, models.ReasonPositionSizeTooSmall, report)
	}

	adapter, err := e.brokers.ForAssetClass(class)
	if err != nil {
		return e.recordFailed(ctx, sig, venue.Name, err.Error(), report)
	}

	fill, err := broker.SubmitWithRetry(ctx, adapter, sig.Symbol, sig.Direction, size,
		e.cfg.Engine.CallTimeout, e.cfg.Engine.MaxRetries)
	if err != nil {
		if broker.IsRejection(err) {
			return e.recordFailed(ctx, sig, venue.Name, err.Error(), report)
		}
		log.Printf("Skipping signal %s (%s): broker unreachable: %v", sig.ID, sig.Symbol, err)
		report.Skipped++
		return nil
	}

	trade := buildTrade(sig, venue, size, fill)
	if err := e.store.OpenTrade(ctx, trade); err != nil {
		if errors.Is(err, database.ErrSignalNotActive) {
			// Signal reached a terminal status between the scan and the
			// write (e.g. restart replay). Nothing to do.
			log.Printf("Signal %s already finalized, no trade opened", sig.ID)
			report.Skipped++
			return nil
		}
		return fmt.Errorf("opening trade for signal %s: %w", sig.ID, err)
	}

	// Keep the hard invariants current for the rest of the cycle.
	state.Positions[sig.Symbol] = risk.OpenPosition{
		Symbol:       sig.Symbol,
		Size:         trade.Size,
		EntryPrice:   trade.EntryPrice,
		CurrentPrice: trade.EntryPrice,
	}
	state.Cash = state.Cash.Sub(trade.EntryPrice.Mul(trade.Size))

	log.Printf("Signal %s executed: %s %s %s @ %s (ref %s)",
		sig.ID, venue.Name, trade.Side, sig.Symbol, fill.Price, fill.BrokerRef)
	metrics.SignalOutcomes.WithLabelValues(venue.Name, string(models.SignalExecuted)).Inc()
	report.Executed++
	return nil
}

func (e *Engine) recordRejected(ctx context.Context, sig *models.TradingSignal, venue, reason string, report *models.CycleReport) error {
	applied, err := e.store.MarkSignalRejected(ctx, sig.ID, reason)
	if err != nil {
		return fmt.Errorf("rejecting signal %s: %w", sig.ID, err)
	}
	if applied {
		log.Printf("Signal %s rejected: %s (%s)", sig.ID, reason, sig.Symbol)
		metrics.SignalOutcomes.WithLabelValues(venue, string(models.SignalRejected)).Inc()
		report.Rejected++
	} else {
		report.Skipped++
	}
	return nil
}

func (e *Engine) recordFailed(ctx context.Context, sig *models.TradingSignal, venue, message string, report *models.CycleReport) error {
	applied, err := e.store.MarkSignalFailed(ctx, sig.ID, message)
	if err != nil {
		return fmt.Errorf("failing signal %s: %w", sig.ID, err)
	}
	if applied {
		log.Printf("Signal %s failed: %s (%s)", sig.ID, message, sig.Symbol)
		metrics.SignalOutcomes.WithLabelValues(venue, string(models.SignalFailed)).Inc()
		report.Failed++
	} else {
		report.Skipped++
	}
	return nil
}

// buildTrade assembles the open trade for a filled signal, deriving stop and
// target from the venue defaults: long stop below entry and target above,
// short inverted.
func buildTrade(sig *models.TradingSignal, venue config.VenueConfig, size decimal.Decimal, fill *broker.Fill) *models.Trade {
	one := decimal.NewFromInt(1)
	slFrac := decimal.NewFromFloat(venue.Risk.DefaultStopLossPct / 100)
	tpFrac := decimal.NewFromFloat(venue.Risk.DefaultTakeProfitPct / 100)

	var stop, target decimal.Decimal
	if sig.Side() == models.SideShort {
		stop = fill.Price.Mul(one.Add(slFrac))
		target = fill.Price.Mul(one.Sub(tpFrac))
	} else {
		stop = fill.Price.Mul(one.Sub(slFrac))
		target = fill.Price.Mul(one.Add(tpFrac))
	}

	return &models.Trade{
		ID:                  uuid.NewString(),
		Exchange:            venue.Name,
		Symbol:              sig.Symbol,
		Side:                sig.Side(),
		EntryPrice:          fill.Price,
		Size:                size,
		StopLoss:            stop,
		TakeProfit:          target,
		EntryTime:           fill.Timestamp,
		Status:              models.TradeOpen,
		OriginatingSignalID: sig.ID,
		Confidence:          sig.Confidence,
		SentimentScore:      sig.SentimentScore,
	}
}

func (e *Engine) finishReport(ctx context.Context, report *models.CycleReport) {
	report.FinishedAt = e.now()
	e.storeReport(report)
	if e.publisher != nil {
		if err := e.publisher.PublishCycleReport(ctx, report); err != nil {
			log.Printf("Warning: publishing %s cycle report: %v", report.Stage, err)
		}
	}
}
