package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide is the direction of an open position
type TradeSide string

const (
	SideLong  TradeSide = "long"
	SideShort TradeSide = "short"
)

// TradeStatus tracks the open/closed lifecycle of a paper trade
type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeClosed TradeStatus = "closed"
)

// ExitReason records why a trade was closed
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitManual     ExitReason = "manual"
)

// Trade represents a paper position opened from an executed signal. Opened by
// the execution coordinator, closed exactly once by the exit monitor, never
// deleted.
type Trade struct {
	ID         string          `json:"id"`
	Exchange   string          `json:"exchange"`
	Symbol     string          `json:"symbol"`
	Side       TradeSide       `json:"side"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Size       decimal.Decimal `json:"size"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	EntryTime  time.Time       `json:"entry_time"`
	Status     TradeStatus     `json:"status"`

	// Mark-to-market fields refreshed while the trade is open
	CurrentPrice     decimal.Decimal `json:"current_price,omitempty"`
	UnrealizedPnl    decimal.Decimal `json:"unrealized_pnl,omitempty"`
	UnrealizedPnlPct decimal.Decimal `json:"unrealized_pnl_pct,omitempty"`
	LastUpdated      *time.Time      `json:"last_updated,omitempty"`

	// Exit fields, set once on close
	ExitPrice          decimal.Decimal `json:"exit_price,omitempty"`
	ExitTime           *time.Time      `json:"exit_time,omitempty"`
	ExitReason         ExitReason      `json:"exit_reason,omitempty"`
	Pnl                decimal.Decimal `json:"pnl,omitempty"`
	PnlPct             decimal.Decimal `json:"pnl_pct,omitempty"`
	HoldingPeriodHours decimal.Decimal `json:"holding_period_hours,omitempty"`

	// Provenance carried over from the originating signal
	OriginatingSignalID string  `json:"originating_signal_id"`
	Confidence          float64 `json:"confidence"`
	SentimentScore      float64 `json:"sentiment_score"`
}

// TradeExit carries the terminal fields written when a trade closes.
type TradeExit struct {
	Price        decimal.Decimal
	Time         time.Time
	Reason       ExitReason
	Pnl          decimal.Decimal
	PnlPct       decimal.Decimal
	HoldingHours decimal.Decimal
}

// MarkToMarket computes the unrealized PnL of the trade at price, sign-adjusted
// for side. Returns (pnl, pnlPct).
func (t *Trade) MarkToMarket(price decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	var diff decimal.Decimal
	if t.Side == SideShort {
		diff = t.EntryPrice.Sub(price)
	} else {
		diff = price.Sub(t.EntryPrice)
	}
	pnl := diff.Mul(t.Size)
	if t.EntryPrice.IsZero() {
		return pnl, decimal.Zero
	}
	pnlPct := diff.Div(t.EntryPrice).Mul(decimal.NewFromInt(100))
	return pnl, pnlPct
}

// ExitTrigger returns the exit reason fired by price, or "" if the trade
// should stay open. Comparisons are side-aware: a short's stop sits above its
// entry, so the inequalities invert.
func (t *Trade) ExitTrigger(price decimal.Decimal) ExitReason {
	if t.Side == SideShort {
		if price.GreaterThanOrEqual(t.StopLoss) {
			return ExitStopLoss
		}
		if price.LessThanOrEqual(t.TakeProfit) {
			return ExitTakeProfit
		}
		return ""
	}
	if price.LessThanOrEqual(t.StopLoss) {
		return ExitStopLoss
	}
	if price.GreaterThanOrEqual(t.TakeProfit) {
		return ExitTakeProfit
	}
	return ""
}

// PositionValue returns |size * price| using the last marked price, falling
// back to the entry price when the trade has never been marked.
func (t *Trade) PositionValue() decimal.Decimal {
	price := t.CurrentPrice
	if price.IsZero() {
		price = t.EntryPrice
	}
	return t.Size.Mul(price).Abs()
}
