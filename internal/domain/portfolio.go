package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is a point-in-time aggregate of the simulated portfolio.
// TotalValue sums every balance at face value; non-quote currencies are not
// marked to market (known simplification, see analytics package docs).
type PortfolioSnapshot struct {
	Timestamp      time.Time
	TotalValue     decimal.Decimal
	RealizedPnL    decimal.Decimal
	DailyPnL       decimal.Decimal
	NumPositions   int
	ExchangeValues map[string]decimal.Decimal
}

// Summary holds the final performance statistics for a run. Ratio fields use
// sentinel values (0 or +Inf) instead of failing on empty or one-sided
// inputs.
type Summary struct {
	StartTime           time.Time `json:"start_time"`
	EndTime             time.Time `json:"end_time"`
	InitialValue        float64   `json:"initial_value"`
	FinalValue          float64   `json:"final_value"`
	TotalReturnPct      float64   `json:"total_return_pct"`
	AnnualizedReturnPct float64   `json:"annualized_return_pct"`
	VolatilityPct       float64   `json:"volatility_pct"`
	SharpeRatio         float64   `json:"sharpe_ratio"`
	MaxDrawdownPct      float64   `json:"max_drawdown_pct"`
	VaR95Pct            float64   `json:"var_95_pct"`
	RealizedPnL         float64   `json:"realized_pnl"`
	TotalFees           float64   `json:"total_fees"`
	AvgSlippage         float64   `json:"avg_slippage"`
	NumSignals          int       `json:"num_signals"`
	NumOrders           int       `json:"num_orders"`
	NumTrades           int       `json:"num_trades"`
	FillRate            float64   `json:"fill_rate"`
	WinRate             float64   `json:"win_rate"`
	ProfitFactor        float64   `json:"profit_factor"`
}

// Result is the full output of a backtest run: the summary statistics plus
// the complete snapshot and trade histories for the reporting collaborator.
type Result struct {
	RunID     string
	Summary   Summary
	Snapshots []PortfolioSnapshot
	Trades    []Trade
	Orders    []*Order // terminal and still-open orders at run end
}
