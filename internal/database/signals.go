package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tradepulse/paper-engine/internal/models"
)

// CreateSignal inserts a new trading signal. The insert is idempotent on the
// signal id so the intake consumer can safely reprocess a Kafka message.
// Returns false when the signal already existed.
func (db *DB) CreateSignal(ctx context.Context, s *models.TradingSignal) (bool, error) {
	query := `
		INSERT INTO trading_signals (
			id, symbol, asset_class, direction, confidence, sentiment_score,
			generated_at, status, rejection_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)
		ON CONFLICT (id) DO NOTHING
	`
	now := time.Now()
	result, err := db.conn.ExecContext(ctx, query,
		s.ID, s.Symbol, s.AssetClass, s.Direction, s.Confidence, s.SentimentScore,
		s.GeneratedAt, s.Status, s.RejectionReason, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create signal: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.CreatedAt = now
	}
	return rowsAffected > 0, nil
}

// GetActiveSignals returns all signals still awaiting execution, oldest first.
func (db *DB) GetActiveSignals(ctx context.Context) ([]*models.TradingSignal, error) {
	query := `
		SELECT id, symbol, asset_class, direction, confidence, sentiment_score,
		       generated_at, status, COALESCE(rejection_reason, ''), executed_at, created_at
		FROM trading_signals
		WHERE status = 'active'
		ORDER BY generated_at ASC
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active signals: %w", err)
	}
	defer rows.Close()

	var signals []*models.TradingSignal
	for rows.Next() {
		var s models.TradingSignal
		err := rows.Scan(
			&s.ID, &s.Symbol, &s.AssetClass, &s.Direction, &s.Confidence, &s.SentimentScore,
			&s.GeneratedAt, &s.Status, &s.RejectionReason, &s.ExecutedAt, &s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		signals = append(signals, &s)
	}

	return signals, rows.Err()
}

// MarkSignalRejected moves an active signal to the terminal rejected status
// with a reason code. The status pre-check in the WHERE clause makes the
// transition idempotent: a signal already in a terminal status is untouched
// and the call returns false.
func (db *DB) MarkSignalRejected(ctx context.Context, id, reason string) (bool, error) {
	return db.markSignalTerminal(ctx, id, models.SignalRejected, reason)
}

// MarkSignalFailed moves an active signal to the terminal failed status,
// recording the broker's error message.
func (db *DB) MarkSignalFailed(ctx context.Context, id, message string) (bool, error) {
	return db.markSignalTerminal(ctx, id, models.SignalFailed, message)
}

// MarkSignalExpired moves an active signal to the terminal expired status.
// Used by the intake consumer for signals already stale on arrival.
func (db *DB) MarkSignalExpired(ctx context.Context, id string) (bool, error) {
	return db.markSignalTerminal(ctx, id, models.SignalExpired, models.ReasonSignalExpired)
}

func (db *DB) markSignalTerminal(ctx context.Context, id string, status models.SignalStatus, reason string) (bool, error) {
	query := `
		UPDATE trading_signals
		SET status = $2, rejection_reason = NULLIF($3, '')
		WHERE id = $1 AND status = 'active'
	`
	result, err := db.conn.ExecContext(ctx, query, id, status, reason)
	if err != nil {
		return false, fmt.Errorf("failed to mark signal %s %s: %w", id, status, err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected > 0, nil
}
