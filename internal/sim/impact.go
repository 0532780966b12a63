package sim

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsim/internal/config"
	"github.com/alanyoungcy/arbsim/internal/domain"
)

// oppositeSideOffset is the fraction by which recent opposite-side flow
// offsets same-side impact.
const oppositeSideOffset = 0.3

// ImpactLedger computes the effective fill price for an order given its size
// and the recent order flow on the same venue, and records every computed
// impact so later fills feel it. One ledger is owned per engine instance.
type ImpactLedger struct {
	cfg     config.SlippageConfig
	entries map[domain.VenueKey][]domain.MarketImpact
}

// NewImpactLedger creates an empty ledger.
func NewImpactLedger(cfg config.SlippageConfig) *ImpactLedger {
	return &ImpactLedger{
		cfg:     cfg,
		entries: make(map[domain.VenueKey][]domain.MarketImpact),
	}
}

// EffectivePrice returns the fill price for quantity units at the quoted
// price after market impact, the absolute per-unit slippage, and the total
// impact in bps. The computed impact is appended to the ledger and expired
// entries for the venue are pruned. A disabled ledger returns the quoted
// price unchanged.
//
// A buy always pays at least the quoted price; a sell always receives at
// most the quoted price.
func (l *ImpactLedger) EffectivePrice(
	now time.Time,
	exchange, symbol string,
	side domain.OrderSide,
	quantity, price decimal.Decimal,
) (effective, slippage decimal.Decimal, totalBps float64) {
	if !l.cfg.Enabled {
		return price, decimal.Zero, 0
	}

	notional, _ := quantity.Mul(price).Float64()
	sizeBps := l.cfg.LinearFactor * notional / 10_000
	histBps := l.historicalBps(now, exchange, symbol, side)
	totalBps = sizeBps + histBps

	factor := decimal.NewFromFloat(1 + totalBps/10_000)
	if side == domain.OrderSideBuy {
		effective = price.Mul(factor)
	} else {
		effective = price.DivRound(factor, 12)
	}
	slippage = effective.Sub(price).Abs()

	l.record(now, exchange, symbol, side, totalBps)
	return effective, slippage, totalBps
}

// historicalBps sums the decayed impact of unexpired ledger entries for the
// venue. Same-side entries add, opposite-side entries partially offset, and
// the sum is floored at zero.
func (l *ImpactLedger) historicalBps(now time.Time, exchange, symbol string, side domain.OrderSide) float64 {
	halfLife := l.cfg.DecayHalfLife.Duration
	if halfLife <= 0 {
		return 0
	}

	var sum float64
	for _, e := range l.entries[domain.VenueKey{Exchange: exchange, Symbol: symbol}] {
		age := now.Sub(e.Timestamp)
		if age < 0 || age > halfLife {
			continue
		}
		decay := math.Pow(0.5, float64(age)/float64(halfLife))
		if e.Side == side {
			sum += e.ImpactBps * decay
		} else {
			sum -= e.ImpactBps * decay * oppositeSideOffset
		}
	}
	if sum < 0 {
		return 0
	}
	return sum
}

// record appends a ledger entry and prunes entries older than twice the
// decay half-life.
func (l *ImpactLedger) record(now time.Time, exchange, symbol string, side domain.OrderSide, bps float64) {
	key := domain.VenueKey{Exchange: exchange, Symbol: symbol}
	cutoff := now.Add(-2 * l.cfg.DecayHalfLife.Duration)

	kept := l.entries[key][:0]
	for _, e := range l.entries[key] {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	l.entries[key] = append(kept, domain.MarketImpact{
		Exchange:  exchange,
		Symbol:    symbol,
		Side:      side,
		ImpactBps: bps,
		Timestamp: now,
	})
}

// Len returns the number of live entries for a venue. Used by tests and the
// engine's debug logging.
func (l *ImpactLedger) Len(exchange, symbol string) int {
	return len(l.entries[domain.VenueKey{Exchange: exchange, Symbol: symbol}])
}
