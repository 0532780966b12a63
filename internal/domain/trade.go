package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an immutable record of a single simulated fill. The trade history
// is append-only and is the source of truth for realized P&L and the
// trade-quality statistics.
type Trade struct {
	ID        string
	Timestamp time.Time
	Exchange  string
	Symbol    string
	Side      OrderSide
	Quantity  decimal.Decimal
	Price     decimal.Decimal // effective price after market impact
	Fee       decimal.Decimal
	Slippage  decimal.Decimal // |effective - limit| per unit
	SignalID  string
	OrderID   string
}

// Notional returns quantity × price.
func (t Trade) Notional() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// MarketImpact is one ledger entry recording how much a past fill moved a
// venue's book, in basis points. Entries decay with a half-life and are
// pruned once older than twice the half-life.
type MarketImpact struct {
	Exchange  string
	Symbol    string
	Side      OrderSide
	ImpactBps float64
	Timestamp time.Time
}
