package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tradepulse/paper-engine/internal/models"
)

// InsertSnapshots appends a batch of portfolio snapshot rows in one
// transaction. The table is an append-only audit trail; rows are never
// updated or deleted.
func (db *DB) InsertSnapshots(ctx context.Context, snapshots []*models.PortfolioSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO portfolio_snapshots (
			timestamp, exchange, symbol, position_size, avg_entry_price,
			current_price, unrealized_pnl, total_cash, total_value
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, s := range snapshots {
		_, err := tx.ExecContext(ctx, query,
			s.Timestamp, s.Exchange, s.Symbol, s.PositionSize, s.AvgEntryPrice,
			s.CurrentPrice, s.UnrealizedPnl, s.TotalCash, s.TotalValue,
		)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot for %s/%s: %w", s.Exchange, s.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshots: %w", err)
	}
	return nil
}

// LatestVenueTotals returns the cash and total value from the most recent
// TOTAL snapshot row for a venue. found is false when the venue has no
// snapshot history yet (fresh database).
func (db *DB) LatestVenueTotals(ctx context.Context, exchange string) (cash, totalValue decimal.Decimal, found bool, err error) {
	query := `
		SELECT total_cash, total_value
		FROM portfolio_snapshots
		WHERE exchange = $1 AND symbol = $2
		ORDER BY timestamp DESC
		LIMIT 1
	`
	err = db.conn.QueryRowContext(ctx, query, exchange, models.TotalSymbol).Scan(&cash, &totalValue)
	if err == sql.ErrNoRows {
		return decimal.Zero, decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, decimal.Zero, false, fmt.Errorf("failed to get venue totals: %w", err)
	}
	return cash, totalValue, true, nil
}
