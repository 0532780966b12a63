package sim

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsim/internal/config"
	"github.com/alanyoungcy/arbsim/internal/domain"
)

var impactBase = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func slippageConfig(enabled bool) config.SlippageConfig {
	cfg := config.Defaults().Slippage
	cfg.Enabled = enabled
	cfg.LinearFactor = 1.0
	cfg.DecayHalfLife.Duration = 5 * time.Minute
	return cfg
}

// one unit at 10 000 gives a notional of 10 000, i.e. exactly 1 bps of
// size impact at linear_factor 1.
var (
	oneUnit  = decimal.NewFromInt(1)
	price10k = decimal.NewFromInt(10_000)
)

func TestImpactDisabledPassesPriceThrough(t *testing.T) {
	l := NewImpactLedger(slippageConfig(false))
	eff, slip, bps := l.EffectivePrice(impactBase, "binance", "BTC/USDT", domain.OrderSideBuy, oneUnit, price10k)
	if !eff.Equal(price10k) || !slip.IsZero() || bps != 0 {
		t.Fatalf("disabled ledger = (%s, %s, %g), want passthrough", eff, slip, bps)
	}
}

func TestImpactBuyPaysMoreSellReceivesLess(t *testing.T) {
	l := NewImpactLedger(slippageConfig(true))

	buyEff, buySlip, _ := l.EffectivePrice(impactBase, "binance", "BTC/USDT", domain.OrderSideBuy, oneUnit, price10k)
	if !buyEff.GreaterThan(price10k) {
		t.Fatalf("buy effective %s, want > %s", buyEff, price10k)
	}
	if !buySlip.Equal(buyEff.Sub(price10k)) {
		t.Fatalf("buy slippage %s, want %s", buySlip, buyEff.Sub(price10k))
	}

	sellEff, sellSlip, _ := l.EffectivePrice(impactBase, "kraken", "BTC/USDT", domain.OrderSideSell, oneUnit, price10k)
	if !sellEff.LessThan(price10k) {
		t.Fatalf("sell effective %s, want < %s", sellEff, price10k)
	}
	if !sellSlip.Equal(price10k.Sub(sellEff)) {
		t.Fatalf("sell slippage %s, want %s", sellSlip, price10k.Sub(sellEff))
	}
}

func TestImpactSameSideFlowCompounds(t *testing.T) {
	l := NewImpactLedger(slippageConfig(true))

	_, _, first := l.EffectivePrice(impactBase, "binance", "BTC/USDT", domain.OrderSideBuy, oneUnit, price10k)
	if first != 1.0 {
		t.Fatalf("first buy impact = %g bps, want 1", first)
	}
	// An identical immediate buy feels the full undecayed impact of the
	// first on top of its own size impact.
	_, _, second := l.EffectivePrice(impactBase, "binance", "BTC/USDT", domain.OrderSideBuy, oneUnit, price10k)
	if second != 2.0 {
		t.Fatalf("second buy impact = %g bps, want 2", second)
	}
}

func TestImpactDecaysWithHalfLife(t *testing.T) {
	l := NewImpactLedger(slippageConfig(true))

	l.EffectivePrice(impactBase, "binance", "BTC/USDT", domain.OrderSideBuy, oneUnit, price10k)
	_, _, bps := l.EffectivePrice(impactBase.Add(5*time.Minute), "binance", "BTC/USDT", domain.OrderSideBuy, oneUnit, price10k)
	// 1 bps size impact + 1 bps decayed by one full half-life.
	if math.Abs(bps-1.5) > 1e-12 {
		t.Fatalf("impact after one half-life = %g bps, want 1.5", bps)
	}
}

func TestImpactExpiresBeyondHalfLife(t *testing.T) {
	l := NewImpactLedger(slippageConfig(true))

	l.EffectivePrice(impactBase, "binance", "BTC/USDT", domain.OrderSideBuy, oneUnit, price10k)
	_, _, bps := l.EffectivePrice(impactBase.Add(6*time.Minute), "binance", "BTC/USDT", domain.OrderSideBuy, oneUnit, price10k)
	if bps != 1.0 {
		t.Fatalf("impact past the half-life window = %g bps, want size impact only", bps)
	}
}

func TestImpactOppositeSideOffsetsAndFloorsAtZero(t *testing.T) {
	l := NewImpactLedger(slippageConfig(true))

	l.EffectivePrice(impactBase, "binance", "BTC/USDT", domain.OrderSideBuy, oneUnit, price10k)
	// The sell's historical term is -0.3 bps, floored to zero; only its own
	// size impact remains.
	_, _, bps := l.EffectivePrice(impactBase, "binance", "BTC/USDT", domain.OrderSideSell, oneUnit, price10k)
	if bps != 1.0 {
		t.Fatalf("opposite-side impact = %g bps, want 1 (floored history)", bps)
	}
}

func TestImpactVenuesAreIsolated(t *testing.T) {
	l := NewImpactLedger(slippageConfig(true))

	l.EffectivePrice(impactBase, "binance", "BTC/USDT", domain.OrderSideBuy, oneUnit, price10k)
	_, _, bps := l.EffectivePrice(impactBase, "kraken", "BTC/USDT", domain.OrderSideBuy, oneUnit, price10k)
	if bps != 1.0 {
		t.Fatalf("cross-venue impact = %g bps, want 1 (no bleed-through)", bps)
	}
}

func TestImpactPrunesEntriesPastTwiceHalfLife(t *testing.T) {
	l := NewImpactLedger(slippageConfig(true))

	l.EffectivePrice(impactBase, "binance", "BTC/USDT", domain.OrderSideBuy, oneUnit, price10k)
	if got := l.Len("binance", "BTC/USDT"); got != 1 {
		t.Fatalf("ledger size = %d, want 1", got)
	}

	l.EffectivePrice(impactBase.Add(11*time.Minute), "binance", "BTC/USDT", domain.OrderSideBuy, oneUnit, price10k)
	if got := l.Len("binance", "BTC/USDT"); got != 1 {
		t.Fatalf("ledger size after prune = %d, want 1", got)
	}
}
