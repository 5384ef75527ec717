// Package engine turns risk-gated trading signals into paper positions and
// monitors those positions until an exit condition fires. It exposes one
// re-entrant entry point per stage: RunExecutionCycle and RunExitCycle.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradepulse/paper-engine/internal/broker"
	"github.com/tradepulse/paper-engine/internal/config"
	"github.com/tradepulse/paper-engine/internal/models"
	"github.com/tradepulse/paper-engine/internal/prices"
	"github.com/tradepulse/paper-engine/internal/risk"
)

// Store is the persistence surface the engine drives. Implemented by
// *database.DB; tests substitute an in-memory fake.
type Store interface {
	GetActiveSignals(ctx context.Context) ([]*models.TradingSignal, error)
	MarkSignalRejected(ctx context.Context, id, reason string) (bool, error)
	MarkSignalFailed(ctx context.Context, id, message string) (bool, error)
	OpenTrade(ctx context.Context, t *models.Trade) error
	GetOpenTrades(ctx context.Context) ([]*models.Trade, error)
	CloseTrade(ctx context.Context, id string, exit models.TradeExit) (bool, error)
	RefreshTradeMark(ctx context.Context, id string, price, pnl, pnlPct decimal.Decimal) error
	DailyRealizedPnL(ctx context.Context, exchange string, day time.Time) (decimal.Decimal, error)
	InsertSnapshots(ctx context.Context, snapshots []*models.PortfolioSnapshot) error
	LatestVenueTotals(ctx context.Context, exchange string) (cash, totalValue decimal.Decimal, found bool, err error)
	GetClosedTradesSince(ctx context.Context, since time.Time) ([]*models.Trade, error)
}

// ReportPublisher receives the summary of every completed cycle.
type ReportPublisher interface {
	PublishCycleReport(ctx context.Context, report *models.CycleReport) error
}

// Engine orchestrates the signal-to-position lifecycle for all venues.
type Engine struct {
	store     Store
	oracle    prices.Oracle
	brokers   *broker.Router
	cfg       *config.Config
	publisher ReportPublisher // optional

	guard *stageGuard
	now   func() time.Time

	mu          sync.RWMutex
	lastReports map[string]*models.CycleReport
	lastMetrics map[string]*models.PerformanceMetrics
}

// New creates an engine. publisher may be nil when cycle reports are only
// consumed through the ops API.
func New(store Store, oracle prices.Oracle, brokers *broker.Router, cfg *config.Config, publisher ReportPublisher) *Engine {
	return &Engine{
		store:       store,
		oracle:      oracle,
		brokers:     brokers,
		cfg:         cfg,
		publisher:   publisher,
		guard:       newStageGuard(),
		now:         time.Now,
		lastReports: make(map[string]*models.CycleReport),
		lastMetrics: make(map[string]*models.PerformanceMetrics),
	}
}

// LastReport returns the most recent report for a stage, or nil.
func (e *Engine) LastReport(stage string) *models.CycleReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastReports[stage]
}

// LastMetrics returns the most recent per-venue performance metrics.
func (e *Engine) LastMetrics() []*models.PerformanceMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*models.PerformanceMetrics, 0, len(e.lastMetrics))
	for _, m := range e.lastMetrics {
		out = append(out, m)
	}
	return out
}

func (e *Engine) storeReport(report *models.CycleReport) {
	e.mu.Lock()
	e.lastReports[report.Stage] = report
	e.mu.Unlock()
}

func (e *Engine) storeMetrics(metrics map[string]*models.PerformanceMetrics) {
	e.mu.Lock()
	for venue, m := range metrics {
		e.lastMetrics[venue] = m
	}
	e.mu.Unlock()
}

// venueState rebuilds one venue's portfolio snapshot from the store: open
// trades, latest totals (initial cash on a fresh database), and today's
// realized PnL for the circuit breaker.
func (e *Engine) venueState(ctx context.Context, venue config.VenueConfig, openTrades []*models.Trade) (*risk.PortfolioState, error) {
	cash, totalValue, found, err := e.store.LatestVenueTotals(ctx, venue.Name)
	if err != nil {
		return nil, err
	}
	if !found {
		cash = decimal.NewFromFloat(venue.InitialCash)
		totalValue = cash
	}

	dailyPnl, err := e.store.DailyRealizedPnL(ctx, venue.Name, e.now())
	if err != nil {
		return nil, err
	}

	return risk.NewPortfolioState(venue.Name, cash, totalValue, dailyPnl, openTrades), nil
}
