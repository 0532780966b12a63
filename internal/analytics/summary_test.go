package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsim/internal/domain"
)

var (
	sumStart = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	sumEnd   = time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)
)

func snapshotSeries(values ...int64) []domain.PortfolioSnapshot {
	snaps := make([]domain.PortfolioSnapshot, len(values))
	for i, v := range values {
		snaps[i] = domain.PortfolioSnapshot{
			Timestamp:  sumStart.Add(time.Duration(i) * time.Hour),
			TotalValue: decimal.NewFromInt(v),
		}
	}
	return snaps
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %g, want %g", name, got, want)
	}
}

func TestComputeSummaryEmptyInput(t *testing.T) {
	s := ComputeSummary(Input{Start: sumStart, End: sumEnd, InitialValue: 20_000})

	if s.FinalValue != 20_000 {
		t.Errorf("FinalValue = %g, want initial value", s.FinalValue)
	}
	approx(t, "TotalReturnPct", s.TotalReturnPct, 0)
	approx(t, "SharpeRatio", s.SharpeRatio, 0)
	approx(t, "MaxDrawdownPct", s.MaxDrawdownPct, 0)
	approx(t, "FillRate", s.FillRate, 0)
	approx(t, "WinRate", s.WinRate, 0)
	approx(t, "ProfitFactor", s.ProfitFactor, 0)
}

func TestComputeSummaryKnownSeries(t *testing.T) {
	s := ComputeSummary(Input{
		Start:        sumStart,
		End:          sumEnd,
		InitialValue: 1000,
		Snapshots:    snapshotSeries(1000, 1100, 990),
	})

	approx(t, "TotalReturnPct", s.TotalReturnPct, -1.0)
	// Peak 1100 to trough 990.
	approx(t, "MaxDrawdownPct", s.MaxDrawdownPct, 10.0)
	// Returns are +10% then -10%: zero mean, so zero Sharpe despite
	// nonzero volatility.
	approx(t, "SharpeRatio", s.SharpeRatio, 0)
	if s.VolatilityPct <= 0 {
		t.Errorf("VolatilityPct = %g, want > 0", s.VolatilityPct)
	}
	// Nearest-rank 5th percentile of {-0.1, +0.1} is the worse return.
	approx(t, "VaR95Pct", s.VaR95Pct, -10.0)
	// -1% over 7 days.
	approx(t, "AnnualizedReturnPct", s.AnnualizedReturnPct, -1.0*365.25/7)
}

func TestComputeSummaryFlatSeriesHasZeroSharpe(t *testing.T) {
	s := ComputeSummary(Input{
		Start:        sumStart,
		End:          sumEnd,
		InitialValue: 1000,
		Snapshots:    snapshotSeries(1000, 1000, 1000),
	})
	approx(t, "SharpeRatio", s.SharpeRatio, 0)
	approx(t, "VolatilityPct", s.VolatilityPct, 0)
}

func TestComputeSummaryRisingSeries(t *testing.T) {
	s := ComputeSummary(Input{
		Start:        sumStart,
		End:          sumEnd,
		InitialValue: 1000,
		Snapshots:    snapshotSeries(1000, 1020, 1030),
	})
	approx(t, "MaxDrawdownPct", s.MaxDrawdownPct, 0)
	if s.SharpeRatio <= 0 {
		t.Errorf("SharpeRatio = %g, want > 0 for a rising curve", s.SharpeRatio)
	}
}

func trade(side domain.OrderSide, signalID string, qty, price, fee, slippage float64) domain.Trade {
	return domain.Trade{
		Side:     side,
		SignalID: signalID,
		Quantity: decimal.NewFromFloat(qty),
		Price:    decimal.NewFromFloat(price),
		Fee:      decimal.NewFromFloat(fee),
		Slippage: decimal.NewFromFloat(slippage),
	}
}

func TestTradeTotals(t *testing.T) {
	realized, fees, avgSlip := tradeTotals([]domain.Trade{
		trade(domain.OrderSideBuy, "s1", 1, 100, 1, 0.5),
		trade(domain.OrderSideSell, "s1", 1, 110, 1, 1.5),
	})
	approx(t, "realized", realized, 8) // 110 - 100 - 2 fees
	approx(t, "fees", fees, 2)
	approx(t, "avgSlippage", avgSlip, 1.0)
}

func TestFillRate(t *testing.T) {
	orders := []*domain.Order{
		{Status: domain.OrderStatusFilled},
		{Status: domain.OrderStatusFilled},
		{Status: domain.OrderStatusPartiallyFilled},
		{Status: domain.OrderStatusPending},
	}
	approx(t, "fillRate", fillRate(orders), 0.5)
	approx(t, "fillRate empty", fillRate(nil), 0)
}

func TestSignalQuality(t *testing.T) {
	trades := []domain.Trade{
		// Signal A: +10.
		trade(domain.OrderSideBuy, "a", 1, 100, 0, 0),
		trade(domain.OrderSideSell, "a", 1, 110, 0, 0),
		// Signal B: -5.
		trade(domain.OrderSideBuy, "b", 1, 100, 0, 0),
		trade(domain.OrderSideSell, "b", 1, 95, 0, 0),
	}
	winRate, profitFactor := signalQuality(trades)
	approx(t, "winRate", winRate, 0.5)
	approx(t, "profitFactor", profitFactor, 2.0)
}

func TestSignalQualityAllWinsIsInfinite(t *testing.T) {
	trades := []domain.Trade{
		trade(domain.OrderSideBuy, "a", 1, 100, 0, 0),
		trade(domain.OrderSideSell, "a", 1, 110, 0, 0),
	}
	winRate, profitFactor := signalQuality(trades)
	approx(t, "winRate", winRate, 1.0)
	if !math.IsInf(profitFactor, 1) {
		t.Errorf("profitFactor = %g, want +Inf with no losing signals", profitFactor)
	}
}

func TestPercentileNearestRank(t *testing.T) {
	xs := []float64{0.3, -0.2, 0.1, -0.4, 0.0}
	approx(t, "p05", percentile(xs, 0.05), -0.4)
	approx(t, "p50", percentile(xs, 0.5), 0.0)
	approx(t, "p100", percentile(xs, 1.0), 0.3)
	approx(t, "empty", percentile(nil, 0.05), 0)
}
