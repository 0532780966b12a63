// Package sim implements the stochastic models used by the backtesting
// engine: log-normal network latency and decaying market impact. Both draw
// from a caller-supplied RNG so runs with a fixed seed are reproducible.
package sim

import (
	"math"
	"math/rand"
	"time"

	"github.com/alanyoungcy/arbsim/internal/config"
)

// LatencyModel samples a synthetic network delay per exchange for each
// submitted order. Delays follow a log-normal distribution parameterized by
// a per-exchange base (ms) and variance, scaled by an hour-of-day congestion
// multiplier.
type LatencyModel struct {
	cfg config.LatencyConfig
	rng *rand.Rand
}

// NewLatencyModel creates a latency model drawing from rng.
func NewLatencyModel(cfg config.LatencyConfig, rng *rand.Rand) *LatencyModel {
	return &LatencyModel{cfg: cfg, rng: rng}
}

// Sample returns the submission delay for an order sent to exchange at the
// given simulation time. Unknown exchanges fall back to the default
// parameters. A disabled model returns zero delay.
func (m *LatencyModel) Sample(exchange string, at time.Time) time.Duration {
	if !m.cfg.Enabled {
		return 0
	}
	params, ok := m.cfg.Exchanges[exchange]
	if !ok {
		params = m.cfg.Default
	}
	if params.BaseMs <= 0 {
		return 0
	}

	mu := math.Log(params.BaseMs)
	sigma := params.Variance / params.BaseMs
	ms := math.Exp(mu + sigma*m.rng.NormFloat64())
	ms *= CongestionMultiplier(at)

	rounded := math.Round(ms)
	if rounded < 1 {
		rounded = 1
	}
	return time.Duration(rounded) * time.Millisecond
}

// CongestionMultiplier returns the hour-of-day latency multiplier: busier
// during US market hours and the late-UTC evening, quieter in the Asian
// morning.
func CongestionMultiplier(at time.Time) float64 {
	switch hour := at.UTC().Hour(); {
	case hour >= 14 && hour < 16:
		return 1.5
	case hour >= 21 && hour < 22:
		return 1.3
	case hour >= 6 && hour < 12:
		return 0.8
	default:
		return 1.0
	}
}
