package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TotalSymbol is the sentinel symbol used for per-venue aggregate rows in the
// portfolio snapshot table.
const TotalSymbol = "TOTAL"

// PortfolioSnapshot is one row of the append-only portfolio audit trail. Every
// exit cycle writes one row per open position plus one TOTAL row per venue.
type PortfolioSnapshot struct {
	Timestamp     time.Time       `json:"timestamp"`
	Exchange      string          `json:"exchange"`
	Symbol        string          `json:"symbol"`
	PositionSize  decimal.Decimal `json:"position_size"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	UnrealizedPnl decimal.Decimal `json:"unrealized_pnl"`
	TotalCash     decimal.Decimal `json:"total_cash"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// PerformanceMetrics holds rolling-window aggregates over closed trades for
// one venue.
type PerformanceMetrics struct {
	Exchange        string          `json:"exchange"`
	WindowDays      int             `json:"window_days"`
	TotalTrades     int             `json:"total_trades"`
	WinningTrades   int             `json:"winning_trades"`
	LosingTrades    int             `json:"losing_trades"`
	WinRate         float64         `json:"win_rate"`
	TotalPnl        decimal.Decimal `json:"total_pnl"`
	AvgPnl          decimal.Decimal `json:"avg_pnl"`
	Sharpe          float64         `json:"sharpe"`
	AvgHoldingHours float64         `json:"avg_holding_hours"`
	CalculatedAt    time.Time       `json:"calculated_at"`
}
