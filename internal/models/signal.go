package models

import (
	"time"
)

// AssetClass distinguishes which venue a symbol trades on
type AssetClass string

const (
	AssetEquity AssetClass = "equity"
	AssetCrypto AssetClass = "crypto"
)

// SignalDirection is the suggested trade direction
type SignalDirection string

const (
	DirectionBuy  SignalDirection = "buy"
	DirectionSell SignalDirection = "sell"
)

// SignalStatus tracks the lifecycle of a trading signal. A signal starts
// active and moves exactly once to one of the terminal statuses.
type SignalStatus string

const (
	SignalActive   SignalStatus = "active"
	SignalExecuted SignalStatus = "executed"
	SignalRejected SignalStatus = "rejected"
	SignalFailed   SignalStatus = "failed"
	SignalExpired  SignalStatus = "expired"
)

// Rejection reason codes recorded on signals that never become trades
const (
	ReasonConfidenceTooLow     = "confidence_too_low"
	ReasonSignalExpired        = "signal_expired"
	ReasonMarketClosed         = "market_closed"
	ReasonMaxRiskExceeded      = "max_risk_exceeded"
	ReasonPositionExists       = "position_already_exists"
	ReasonDailyLossLimitHit    = "daily_loss_limit_hit"
	ReasonPositionSizeTooSmall = "position_size_too_small"
)

// TradingSignal represents a directional trading suggestion produced by an
// external analysis process and consumed by the execution engine.
type TradingSignal struct {
	ID              string          `json:"id"`
	Symbol          string          `json:"symbol"`
	AssetClass      AssetClass      `json:"asset_class"`
	Direction       SignalDirection `json:"direction"`
	Confidence      float64         `json:"confidence"`      // [0, 1]
	SentimentScore  float64         `json:"sentiment_score"` // [-1, 1]
	GeneratedAt     time.Time       `json:"generated_at"`
	Status          SignalStatus    `json:"status"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	ExecutedAt      *time.Time      `json:"executed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Side returns the position side this signal opens.
func (s *TradingSignal) Side() TradeSide {
	if s.Direction == DirectionSell {
		return SideShort
	}
	return SideLong
}
