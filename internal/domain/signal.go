package domain

import "time"

// ArbSignal is emitted by a strategy when it finds a cross-exchange
// opportunity: buy on BuyExchange at BuyPrice, sell on SellExchange at
// SellPrice, for Size units of the symbol's base currency.
type ArbSignal struct {
	ID           string
	Symbol       string
	BuyExchange  string
	BuyPrice     float64
	SellExchange string
	SellPrice    float64
	Size         float64
	ProfitPct    float64
	DetectedAt   time.Time
}
