// Package strategy provides selectable arbitrage detectors and a registry so
// alternative strategies can be substituted without touching the scheduler
// or the fill engine.
package strategy

import (
	"time"

	"github.com/alanyoungcy/arbsim/internal/domain"
)

// Strategy inspects the current order-book state after every market-data
// update and emits zero or more trading signals. Implementations must be
// deterministic: the same book state and time always produce the same
// signals, and venue iteration happens in a stable order.
type Strategy interface {
	Name() string
	Detect(now time.Time, books *domain.BookSet) []domain.ArbSignal
}
