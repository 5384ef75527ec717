package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradepulse/paper-engine/internal/models"
)

// ErrSignalNotActive is returned by OpenTrade when the originating signal has
// already reached a terminal status. A rerun of the execution stage against an
// already-executed signal hits this instead of opening a duplicate trade.
var ErrSignalNotActive = errors.New("originating signal is not active")

const tradeColumns = `
	id, exchange, symbol, side, entry_price, size, stop_loss, take_profit,
	entry_time, status, current_price, unrealized_pnl, unrealized_pnl_pct,
	last_updated, exit_price, exit_time, COALESCE(exit_reason, ''), pnl, pnl_pct,
	holding_period_hours, originating_signal_id, confidence, sentiment_score`

// OpenTrade atomically creates an open trade and marks the originating signal
// executed. The two writes commit or roll back together: a trade row never
// exists for a signal that is not in the executed status.
func (db *DB) OpenTrade(ctx context.Context, t *models.Trade) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE trading_signals
		SET status = 'executed', executed_at = $2
		WHERE id = $1 AND status = 'active'
	`, t.OriginatingSignalID, t.EntryTime)
	if err != nil {
		return fmt.Errorf("failed to mark signal executed: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrSignalNotActive
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trades (
			id, exchange, symbol, side, entry_price, size, stop_loss, take_profit,
			entry_time, status, originating_signal_id, confidence, sentiment_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'open', $10, $11, $12)
	`,
		t.ID, t.Exchange, t.Symbol, t.Side, t.EntryPrice, t.Size, t.StopLoss, t.TakeProfit,
		t.EntryTime, t.OriginatingSignalID, t.Confidence, t.SentimentScore,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trade: %w", err)
	}
	t.Status = models.TradeOpen
	return nil
}

// GetOpenTrades returns every open trade, oldest entry first.
func (db *DB) GetOpenTrades(ctx context.Context) ([]*models.Trade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE status = 'open'
		ORDER BY entry_time ASC
	`
	return db.queryTrades(ctx, query)
}

// HasOpenTrade reports whether an open trade exists for (exchange, symbol).
func (db *DB) HasOpenTrade(ctx context.Context, exchange, symbol string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM trades WHERE exchange = $1 AND symbol = $2 AND status = 'open'
		)
	`, exchange, symbol).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check open trade: %w", err)
	}
	return exists, nil
}

// CloseTrade writes the exit fields and flips the trade to closed. The status
// pre-check keeps the transition idempotent; returns false when the trade was
// already closed (or unknown).
func (db *DB) CloseTrade(ctx context.Context, id string, exit models.TradeExit) (bool, error) {
	result, err := db.conn.ExecContext(ctx, `
		UPDATE trades
		SET status = 'closed',
		    exit_price = $2,
		    exit_time = $3,
		    exit_reason = $4,
		    pnl = $5,
		    pnl_pct = $6,
		    holding_period_hours = $7,
		    current_price = $2,
		    last_updated = $3
		WHERE id = $1 AND status = 'open'
	`, id, exit.Price, exit.Time, exit.Reason, exit.Pnl, exit.PnlPct, exit.HoldingHours)
	if err != nil {
		return false, fmt.Errorf("failed to close trade %s: %w", id, err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected > 0, nil
}

// RefreshTradeMark updates the mark-to-market fields of a still-open trade.
// This is a non-terminal update, not a status change.
func (db *DB) RefreshTradeMark(ctx context.Context, id string, price, pnl, pnlPct decimal.Decimal) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE trades
		SET current_price = $2,
		    unrealized_pnl = $3,
		    unrealized_pnl_pct = $4,
		    last_updated = $5
		WHERE id = $1 AND status = 'open'
	`, id, price, pnl, pnlPct, time.Now())
	if err != nil {
		return fmt.Errorf("failed to refresh trade %s: %w", id, err)
	}
	return nil
}

// DailyRealizedPnL sums the realized PnL of trades closed today for a venue.
// Feeds the daily-loss circuit breaker.
func (db *DB) DailyRealizedPnL(ctx context.Context, exchange string, day time.Time) (decimal.Decimal, error) {
	var pnl decimal.Decimal
	err := db.conn.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(pnl), 0)
		FROM trades
		WHERE exchange = $1 AND status = 'closed' AND exit_time::date = $2::date
	`, exchange, day).Scan(&pnl)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get daily pnl: %w", err)
	}
	return pnl, nil
}

// GetClosedTradesSince returns trades closed at or after the cutoff, across
// all venues. Used by the rolling performance metrics.
func (db *DB) GetClosedTradesSince(ctx context.Context, since time.Time) ([]*models.Trade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM trades
		WHERE status = 'closed' AND exit_time >= $1
		ORDER BY exit_time ASC
	`
	return db.queryTrades(ctx, query, since)
}

func (db *DB) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*models.Trade, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func scanTrade(rows *sql.Rows) (*models.Trade, error) {
	var t models.Trade
	var currentPrice, unrealizedPnl, unrealizedPnlPct decimal.NullDecimal
	var exitPrice, pnl, pnlPct, holdingHours decimal.NullDecimal
	var lastUpdated, exitTime sql.NullTime

	err := rows.Scan(
		&t.ID, &t.Exchange, &t.Symbol, &t.Side, &t.EntryPrice, &t.Size, &t.StopLoss, &t.TakeProfit,
		&t.EntryTime, &t.Status, &currentPrice, &unrealizedPnl, &unrealizedPnlPct,
		&lastUpdated, &exitPrice, &exitTime, &t.ExitReason, &pnl, &pnlPct,
		&holdingHours, &t.OriginatingSignalID, &t.Confidence, &t.SentimentScore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan trade: %w", err)
	}

	if currentPrice.Valid {
		t.CurrentPrice = currentPrice.Decimal
	}
	if unrealizedPnl.Valid {
		t.UnrealizedPnl = unrealizedPnl.Decimal
	}
	if unrealizedPnlPct.Valid {
		t.UnrealizedPnlPct = unrealizedPnlPct.Decimal
	}
	if lastUpdated.Valid {
		t.LastUpdated = &lastUpdated.Time
	}
	if exitPrice.Valid {
		t.ExitPrice = exitPrice.Decimal
	}
	if exitTime.Valid {
		t.ExitTime = &exitTime.Time
	}
	if pnl.Valid {
		t.Pnl = pnl.Decimal
	}
	if pnlPct.Valid {
		t.PnlPct = pnlPct.Decimal
	}
	if holdingHours.Valid {
		t.HoldingPeriodHours = holdingHours.Decimal
	}
	return &t, nil
}
