// Package metrics exposes Prometheus instrumentation for the engine:
//
//   - engine_signals_total{venue,outcome}      – signals by terminal outcome per cycle
//   - engine_trades_closed_total{venue,reason} – closed trades by exit reason
//   - engine_open_trades{venue}                – open positions (gauge)
//   - engine_unrealized_pnl{venue}             – unrealized PnL snapshot (gauge)
//   - engine_win_rate_pct{venue}               – rolling-window win rate (gauge)
//   - engine_sharpe_ratio{venue}               – rolling-window Sharpe (gauge)
//   - engine_cycle_duration_seconds{stage}     – cycle wall time
//
// Registered in init() and served at /metrics by the ops HTTP server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SignalOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_signals_total",
			Help: "Signals processed by terminal outcome",
		},
		[]string{"venue", "outcome"},
	)

	TradesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_trades_closed_total",
			Help: "Trades closed by exit reason",
		},
		[]string{"venue", "reason"},
	)

	OpenTrades = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_open_trades",
			Help: "Currently open paper positions",
		},
		[]string{"venue"},
	)

	UnrealizedPnl = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_unrealized_pnl",
			Help: "Unrealized PnL across open positions",
		},
		[]string{"venue"},
	)

	WinRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_win_rate_pct",
			Help: "Rolling-window win rate percentage",
		},
		[]string{"venue"},
	)

	Sharpe = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_sharpe_ratio",
			Help: "Rolling-window Sharpe ratio over trade returns",
		},
		[]string{"venue"},
	)

	CycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_cycle_duration_seconds",
			Help:    "Wall time per engine cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(
		SignalOutcomes,
		TradesClosed,
		OpenTrades,
		UnrealizedPnl,
		WinRate,
		Sharpe,
		CycleDuration,
	)
}
