// Package analytics converts a run's snapshot and trade histories into
// return, risk, and trade-quality statistics.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsim/internal/domain"
)

// periodsPerYear annualizes per-period return statistics.
const periodsPerYear = 252

// Input bundles everything the aggregator needs from a finished run.
type Input struct {
	Start        time.Time
	End          time.Time
	InitialValue float64
	Snapshots    []domain.PortfolioSnapshot
	Trades       []domain.Trade
	Orders       []*domain.Order
	NumSignals   int
}

// ComputeSummary derives the final performance statistics. Every ratio
// guards its denominator: an empty or one-sided input yields a sentinel
// (0 or +Inf) instead of a panic or NaN.
func ComputeSummary(in Input) domain.Summary {
	s := domain.Summary{
		StartTime:    in.Start,
		EndTime:      in.End,
		InitialValue: in.InitialValue,
		NumSignals:   in.NumSignals,
		NumOrders:    len(in.Orders),
		NumTrades:    len(in.Trades),
	}

	values := make([]float64, 0, len(in.Snapshots))
	for _, snap := range in.Snapshots {
		v, _ := snap.TotalValue.Float64()
		values = append(values, v)
	}
	if len(values) > 0 {
		s.FinalValue = values[len(values)-1]
	} else {
		s.FinalValue = in.InitialValue
	}

	if in.InitialValue != 0 {
		s.TotalReturnPct = (s.FinalValue - in.InitialValue) / in.InitialValue * 100
	}
	if days := in.End.Sub(in.Start).Hours() / 24; days > 0 {
		s.AnnualizedReturnPct = s.TotalReturnPct * 365.25 / days
	}

	returns := periodReturns(values)
	mean, stdev := meanStdev(returns)
	s.VolatilityPct = stdev * math.Sqrt(periodsPerYear) * 100
	// Annualized Sharpe. The denominator guard makes a flat equity curve
	// score 0 rather than NaN.
	if stdev > 0 {
		s.SharpeRatio = mean / stdev * math.Sqrt(periodsPerYear)
	}
	s.MaxDrawdownPct = maxDrawdown(values) * 100
	s.VaR95Pct = percentile(returns, 0.05) * 100

	s.RealizedPnL, s.TotalFees, s.AvgSlippage = tradeTotals(in.Trades)
	s.FillRate = fillRate(in.Orders)
	s.WinRate, s.ProfitFactor = signalQuality(in.Trades)

	return s
}

// periodReturns computes snapshot-to-snapshot returns, skipping periods
// that start from a zero value.
func periodReturns(values []float64) []float64 {
	var returns []float64
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns = append(returns, (values[i]-values[i-1])/values[i-1])
	}
	return returns
}

// meanStdev returns the mean and sample standard deviation.
func meanStdev(xs []float64) (mean, stdev float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}

// maxDrawdown returns the largest peak-to-trough decline as a fraction of
// the peak.
func maxDrawdown(values []float64) float64 {
	var peak, worst float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// percentile returns the p-th percentile (0 ≤ p ≤ 1) of xs using the
// nearest-rank method, or 0 for empty input.
func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	idx := int(math.Floor(p * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// tradeTotals computes naive realized P&L (signed notionals minus fees, no
// per-position netting), total fees, and mean per-unit slippage.
func tradeTotals(trades []domain.Trade) (realized, fees, avgSlippage float64) {
	pnl := decimal.Zero
	feeSum := decimal.Zero
	slipSum := decimal.Zero
	for _, t := range trades {
		if t.Side == domain.OrderSideSell {
			pnl = pnl.Add(t.Notional())
		} else {
			pnl = pnl.Sub(t.Notional())
		}
		pnl = pnl.Sub(t.Fee)
		feeSum = feeSum.Add(t.Fee)
		slipSum = slipSum.Add(t.Slippage)
	}
	realized, _ = pnl.Float64()
	fees, _ = feeSum.Float64()
	if len(trades) > 0 {
		avg := slipSum.Div(decimal.NewFromInt(int64(len(trades))))
		avgSlippage, _ = avg.Float64()
	}
	return realized, fees, avgSlippage
}

// fillRate is the fraction of orders that reached Filled. Zero orders yield
// a rate of 0 rather than dividing by zero.
func fillRate(orders []*domain.Order) float64 {
	if len(orders) == 0 {
		return 0
	}
	filled := 0
	for _, o := range orders {
		if o.Status == domain.OrderStatusFilled {
			filled++
		}
	}
	return float64(filled) / float64(len(orders))
}

// signalQuality groups trades by signal and scores each group's naive P&L.
// WinRate is the fraction of profitable groups; ProfitFactor is gross
// profit over gross loss, +Inf when there are profits but no losses.
func signalQuality(trades []domain.Trade) (winRate, profitFactor float64) {
	bySignal := make(map[string]decimal.Decimal)
	for _, t := range trades {
		pnl := bySignal[t.SignalID]
		if t.Side == domain.OrderSideSell {
			pnl = pnl.Add(t.Notional())
		} else {
			pnl = pnl.Sub(t.Notional())
		}
		bySignal[t.SignalID] = pnl.Sub(t.Fee)
	}
	if len(bySignal) == 0 {
		return 0, 0
	}

	var wins int
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	for _, pnl := range bySignal {
		if pnl.IsPositive() {
			wins++
			grossProfit = grossProfit.Add(pnl)
		} else {
			grossLoss = grossLoss.Add(pnl.Neg())
		}
	}

	winRate = float64(wins) / float64(len(bySignal))
	switch {
	case grossLoss.IsPositive():
		ratio := grossProfit.DivRound(grossLoss, 12)
		profitFactor, _ = ratio.Float64()
	case grossProfit.IsPositive():
		profitFactor = math.Inf(1)
	default:
		profitFactor = 0
	}
	return winRate, profitFactor
}
