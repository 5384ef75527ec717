package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepulse/paper-engine/internal/models"
)

func sampleTrade() *models.Trade {
	return &models.Trade{
		ID:                  "t-1",
		Exchange:            "alpaca",
		Symbol:              "AAPL",
		Side:                models.SideLong,
		EntryPrice:          decimal.NewFromInt(100),
		Size:                decimal.NewFromInt(10),
		StopLoss:            decimal.NewFromInt(98),
		TakeProfit:          decimal.NewFromInt(106),
		EntryTime:           time.Now(),
		OriginatingSignalID: "sig-1",
		Confidence:          0.8,
		SentimentScore:      0.3,
	}
}

func TestOpenTrade_CommitsSignalAndTradeTogether(t *testing.T) {
	db, mock := newMockDB(t)
	tr := sampleTrade()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE trading_signals`).
		WithArgs("sig-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO trades`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.OpenTrade(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, models.TradeOpen, tr.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenTrade_SignalAlreadyTerminal(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE trading_signals`).
		WithArgs("sig-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := db.OpenTrade(context.Background(), sampleTrade())
	require.ErrorIs(t, err, ErrSignalNotActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenTrade_InsertFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE trading_signals`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO trades`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := db.OpenTrade(context.Background(), sampleTrade())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func tradeRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "exchange", "symbol", "side", "entry_price", "size", "stop_loss", "take_profit",
		"entry_time", "status", "current_price", "unrealized_pnl", "unrealized_pnl_pct",
		"last_updated", "exit_price", "exit_time", "exit_reason", "pnl", "pnl_pct",
		"holding_period_hours", "originating_signal_id", "confidence", "sentiment_score",
	})
}

func TestGetOpenTrades_ScansNullableFields(t *testing.T) {
	db, mock := newMockDB(t)

	entry := time.Now().Add(-2 * time.Hour)
	marked := time.Now().Add(-time.Minute)
	rows := tradeRows().
		// never marked: nullable columns are NULL
		AddRow("t-1", "alpaca", "AAPL", "long", "100", "10", "98", "106",
			entry, "open", nil, nil, nil, nil, nil, nil, "", nil, nil, nil, "sig-1", 0.8, 0.3).
		// marked once
		AddRow("t-2", "binance", "BTCUSDT", "short", "50000", "0.1", "51000", "47000",
			entry, "open", "49500", "50", "1", marked, nil, nil, "", nil, nil, nil, "sig-2", 0.7, -0.1)

	mock.ExpectQuery(`SELECT .* FROM trades\s+WHERE status = 'open'`).
		WillReturnRows(rows)

	trades, err := db.GetOpenTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.True(t, trades[0].CurrentPrice.IsZero())
	assert.Nil(t, trades[0].LastUpdated)

	assert.True(t, trades[1].CurrentPrice.Equal(decimal.NewFromInt(49500)))
	assert.True(t, trades[1].UnrealizedPnl.Equal(decimal.NewFromInt(50)))
	assert.NotNil(t, trades[1].LastUpdated)
	assert.Equal(t, models.SideShort, trades[1].Side)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseTrade_Idempotent(t *testing.T) {
	db, mock := newMockDB(t)
	exit := models.TradeExit{
		Price:        decimal.NewFromFloat(97.5),
		Time:         time.Now(),
		Reason:       models.ExitStopLoss,
		Pnl:          decimal.NewFromInt(-25),
		PnlPct:       decimal.NewFromFloat(-2.5),
		HoldingHours: decimal.NewFromInt(30),
	}

	mock.ExpectExec(`UPDATE trades`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	applied, err := db.CloseTrade(context.Background(), "t-1", exit)
	require.NoError(t, err)
	assert.True(t, applied)

	// second close finds no open row
	mock.ExpectExec(`UPDATE trades`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	applied, err = db.CloseTrade(context.Background(), "t-1", exit)
	require.NoError(t, err)
	assert.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDailyRealizedPnL(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(pnl\), 0\)`).
		WithArgs("alpaca", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("-123.45"))

	pnl, err := db.DailyRealizedPnL(context.Background(), "alpaca", time.Now())
	require.NoError(t, err)
	assert.True(t, pnl.Equal(decimal.NewFromFloat(-123.45)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHasOpenTrade(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("alpaca", "AAPL").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := db.HasOpenTrade(context.Background(), "alpaca", "AAPL")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
