package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepulse/paper-engine/internal/broker"
	"github.com/tradepulse/paper-engine/internal/database"
	"github.com/tradepulse/paper-engine/internal/models"
	"github.com/tradepulse/paper-engine/internal/prices"
)

func TestRunExecutionCycle_ExecutesSignal(t *testing.T) {
	store := newFakeStore()
	store.addSignal(activeSignal("sig-1", "AAPL", models.AssetEquity))

	oracle := prices.NewStaticOracle()
	oracle.SetPrice("AAPL", decimal.NewFromInt(50))

	eng := testEngine(t, store, oracle)
	report, err := eng.RunExecutionCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Executed)
	assert.Zero(t, report.Rejected)
	assert.Zero(t, report.Failed)

	sig := store.signalByID("sig-1")
	assert.Equal(t, models.SignalExecuted, sig.Status)

	trades := store.openTrades()
	require.Len(t, trades, 1)
	tr := trades[0]
	assert.Equal(t, "alpaca", tr.Exchange)
	assert.Equal(t, models.SideLong, tr.Side)
	assert.True(t, tr.EntryPrice.Equal(decimal.NewFromInt(50)))
	// quarter kelly capped at 10% of 100k cash: 10000 / 50 = 200 units
	assert.True(t, tr.Size.Equal(decimal.NewFromInt(200)), "size %s", tr.Size)
	assert.True(t, tr.StopLoss.Equal(decimal.NewFromInt(49)), "stop %s", tr.StopLoss)
	assert.True(t, tr.TakeProfit.Equal(decimal.NewFromInt(53)), "target %s", tr.TakeProfit)
	assert.Equal(t, "sig-1", tr.OriginatingSignalID)
	assert.InDelta(t, 0.8, tr.Confidence, 1e-9)
}

func TestRunExecutionCycle_ShortSignalInvertsStops(t *testing.T) {
	store := newFakeStore()
	sig := activeSignal("sig-1", "BTCUSDT", models.AssetCrypto)
	sig.Direction = models.DirectionSell
	store.addSignal(sig)

	oracle := prices.NewStaticOracle()
	oracle.SetPrice("BTCUSDT", decimal.NewFromInt(50000))

	eng := testEngine(t, store, oracle)
	report, err := eng.RunExecutionCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Executed)

	tr := store.openTrades()[0]
	assert.Equal(t, "binance", tr.Exchange)
	assert.Equal(t, models.SideShort, tr.Side)
	assert.True(t, tr.StopLoss.Equal(decimal.NewFromInt(51000)), "stop %s", tr.StopLoss)
	assert.True(t, tr.TakeProfit.Equal(decimal.NewFromInt(47000)), "target %s", tr.TakeProfit)
}

func TestRunExecutionCycle_RejectedSignalOpensNoTrade(t *testing.T) {
	store := newFakeStore()
	sig := activeSignal("sig-1", "AAPL", models.AssetEquity)
	sig.Confidence = 0.3
	store.addSignal(sig)

	oracle := prices.NewStaticOracle()
	oracle.SetPrice("AAPL", decimal.NewFromInt(50))

	eng := testEngine(t, store, oracle)
	report, err := eng.RunExecutionCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Rejected)
	assert.Zero(t, report.Executed)
	assert.Empty(t, store.openTrades())

	rejected := store.signalByID("sig-1")
	assert.Equal(t, models.SignalRejected, rejected.Status)
	assert.Equal(t, models.ReasonConfidenceTooLow, rejected.RejectionReason)
}

func TestRunExecutionCycle_ClassifiesBysuffixWhenClassMissing(t *testing.T) {
	store := newFakeStore()
	sig := activeSignal("sig-1", "ETHUSDT", "")
	store.addSignal(sig)

	oracle := prices.NewStaticOracle()
	oracle.SetPrice("ETHUSDT", decimal.NewFromInt(2500))

	eng := testEngine(t, store, oracle)
	report, err := eng.RunExecutionCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Executed)
	assert.Equal(t, "binance", store.openTrades()[0].Exchange)
}

func TestRunExecutionCycle_UnclassifiedEquitySignalHonorsMarketHours(t *testing.T) {
	store := newFakeStore()
	sig := activeSignal("sig-1", "AAPL", "")
	store.addSignal(sig)

	oracle := prices.NewStaticOracle()
	oracle.SetPrice("AAPL", decimal.NewFromInt(50))

	eng := testEngine(t, store, oracle)
	saturday := time.Date(2025, 6, 14, 10, 30, 0, 0, time.UTC)
	eng.now = func() time.Time { return saturday }
	sig.GeneratedAt = saturday.Add(-5 * time.Minute)

	report, err := eng.RunExecutionCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Rejected)
	assert.Zero(t, report.Executed)
	assert.Empty(t, store.openTrades())
	assert.Equal(t, models.ReasonMarketClosed, store.signalByID("sig-1").RejectionReason)
}

func TestRunExecutionCycle_PriceUnavailableLeavesSignalActive(t *testing.T) {
	store := newFakeStore()
	store.addSignal(activeSignal("sig-1", "AAPL", models.AssetEquity))

	eng := testEngine(t, store, prices.NewStaticOracle()) // no quote seeded
	report, err := eng.RunExecutionCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, models.SignalActive, store.signalByID("sig-1").Status)
	assert.Empty(t, store.openTrades())
}

func TestRunExecutionCycle_DuplicateSymbolWithinCycle(t *testing.T) {
	store := newFakeStore()
	store.addSignal(activeSignal("sig-1", "AAPL", models.AssetEquity))
	store.addSignal(activeSignal("sig-2", "AAPL", models.AssetEquity))

	oracle := prices.NewStaticOracle()
	oracle.SetPrice("AAPL", decimal.NewFromInt(50))

	eng := testEngine(t, store, oracle)
	report, err := eng.RunExecutionCycle(context.Background())
	require.NoError(t, err)

	// The first fill updates the in-memory snapshot, so the second signal for
	// the same symbol hits the duplicate-position check.
	assert.Equal(t, 1, report.Executed)
	assert.Equal(t, 1, report.Rejected)
	require.Len(t, store.openTrades(), 1)
	assert.Equal(t, models.ReasonPositionExists, store.signalByID("sig-2").RejectionReason)
}

func TestRunExecutionCycle_ExistingPositionRejectsSignal(t *testing.T) {
	store := newFakeStore()
	store.addSignal(activeSignal("sig-1", "AAPL", models.AssetEquity))
	store.addTrade(&models.Trade{
		ID:         "t-0",
		Exchange:   "alpaca",
		Symbol:     "AAPL",
		Side:       models.SideLong,
		EntryPrice: decimal.NewFromInt(48),
		Size:       decimal.NewFromInt(10),
		Status:     models.TradeOpen,
	})

	oracle := prices.NewStaticOracle()
	oracle.SetPrice("AAPL", decimal.NewFromInt(50))

	eng := testEngine(t, store, oracle)
	report, err := eng.RunExecutionCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, models.ReasonPositionExists, store.signalByID("sig-1").RejectionReason)
	assert.Len(t, store.openTrades(), 1) // only the pre-existing trade
}

func TestRunExecutionCycle_DailyLossBreakerRejects(t *testing.T) {
	store := newFakeStore()
	store.addSignal(activeSignal("sig-1", "AAPL", models.AssetEquity))
	// 6% down on a 100k book against a 5% limit
	store.dailyPnl["alpaca"] = decimal.NewFromInt(-6000)

	oracle := prices.NewStaticOracle()
	oracle.SetPrice("AAPL", decimal.NewFromInt(50))

	eng := testEngine(t, store, oracle)
	report, err := eng.RunExecutionCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, models.ReasonDailyLossLimitHit, store.signalByID("sig-1").RejectionReason)
}

func TestRunExecutionCycle_BrokerRejectionFailsSignal(t *testing.T) {
	store := newFakeStore()
	store.addSignal(activeSignal("sig-1", "AAPL", models.AssetEquity))

	oracle := prices.NewStaticOracle()
	oracle.SetPrice("AAPL", decimal.NewFromInt(50))

	eng := testEngine(t, store, oracle)
	eng.brokers.Equity = &stubAdapter{err: &broker.OrderRejectedError{Reason: "symbol halted"}}

	report, err := eng.RunExecutionCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	sig := store.signalByID("sig-1")
	assert.Equal(t, models.SignalFailed, sig.Status)
	assert.Contains(t, sig.RejectionReason, "symbol halted")
	assert.Empty(t, store.openTrades())
}

func TestRunExecutionCycle_BrokerTransportErrorLeavesSignalActive(t *testing.T) {
	store := newFakeStore()
	store.addSignal(activeSignal("sig-1", "AAPL", models.AssetEquity))

	oracle := prices.NewStaticOracle()
	oracle.SetPrice("AAPL", decimal.NewFromInt(50))

	eng := testEngine(t, store, oracle)
	eng.brokers.Equity = &stubAdapter{err: errors.New("connection refused")}

	report, err := eng.RunExecutionCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, models.SignalActive, store.signalByID("sig-1").Status)
}

func TestRunExecutionCycle_ReplayedSignalOpensNothing(t *testing.T) {
	store := newFakeStore()
	store.addSignal(activeSignal("sig-1", "AAPL", models.AssetEquity))
	store.openTradeErr = database.ErrSignalNotActive

	oracle := prices.NewStaticOracle()
	oracle.SetPrice("AAPL", decimal.NewFromInt(50))

	eng := testEngine(t, store, oracle)
	report, err := eng.RunExecutionCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Executed)
	assert.Empty(t, store.openTrades())
}

func TestRunExecutionCycle_EmptyQueue(t *testing.T) {
	eng := testEngine(t, newFakeStore(), prices.NewStaticOracle())

	report, err := eng.RunExecutionCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Processed())
	assert.NotNil(t, eng.LastReport(models.StageExecution))
}

func TestRunExecutionCycle_CancelledContextStopsMidCycle(t *testing.T) {
	store := newFakeStore()
	store.addSignal(activeSignal("sig-1", "AAPL", models.AssetEquity))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := testEngine(t, store, prices.NewStaticOracle())
	_, err := eng.RunExecutionCycle(ctx)
	require.Error(t, err)
	assert.Equal(t, models.SignalActive, store.signalByID("sig-1").Status)
}

type stubAdapter struct {
	err  error
	fill *broker.Fill
}

func (a *stubAdapter) Name() string { return "stub" }

func (a *stubAdapter) SubmitMarketOrder(ctx context.Context, symbol string, side models.SignalDirection, size decimal.Decimal) (*broker.Fill, error) {
	if a.err != nil {
		return nil, a.err
	}
	if a.fill != nil {
		return a.fill, nil
	}
	return &broker.Fill{Price: decimal.NewFromInt(1), BrokerRef: "stub-ref", Timestamp: time.Now()}, nil
}
