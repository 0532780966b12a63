// Package domain holds the core types of the backtester: market-data
// events, order books, orders, trades, signals, and portfolio aggregates,
// plus the interfaces collaborating adapters implement.
package domain

import (
	"sort"
	"strings"
	"time"
)

// BookLevel is one price level of an order book side. Levels use float64;
// money that accumulates (order quantities, fees, balances) uses decimal.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// VenueKey identifies one order book: a symbol on an exchange.
type VenueKey struct {
	Exchange string
	Symbol   string
}

// MarketEvent is a full order-book snapshot for one venue at one instant.
// Events are the only input that advances simulation time.
type MarketEvent struct {
	Timestamp time.Time
	Exchange  string
	Symbol    string
	Bids      []BookLevel // descending by price
	Asks      []BookLevel // ascending by price
}

// Venue returns the event's venue key.
func (e MarketEvent) Venue() VenueKey {
	return VenueKey{Exchange: e.Exchange, Symbol: e.Symbol}
}

// BookSnapshot is the current state of one venue's order book. Each event
// replaces the venue's snapshot wholesale.
type BookSnapshot struct {
	Timestamp time.Time
	Exchange  string
	Symbol    string
	Bids      []BookLevel
	Asks      []BookLevel
}

// BestBid returns the top bid level, if any.
func (b *BookSnapshot) BestBid() (BookLevel, bool) {
	if b == nil || len(b.Bids) == 0 {
		return BookLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask level, if any.
func (b *BookSnapshot) BestAsk() (BookLevel, bool) {
	if b == nil || len(b.Asks) == 0 {
		return BookLevel{}, false
	}
	return b.Asks[0], true
}

// BookSet caches the latest snapshot per venue. Iteration helpers return
// sorted slices so callers walking the set behave identically run to run.
type BookSet struct {
	books map[VenueKey]*BookSnapshot
}

// NewBookSet creates an empty book cache.
func NewBookSet() *BookSet {
	return &BookSet{books: make(map[VenueKey]*BookSnapshot)}
}

// Apply replaces the venue's snapshot with the event's book.
func (s *BookSet) Apply(e MarketEvent) {
	s.books[e.Venue()] = &BookSnapshot{
		Timestamp: e.Timestamp,
		Exchange:  e.Exchange,
		Symbol:    e.Symbol,
		Bids:      e.Bids,
		Asks:      e.Asks,
	}
}

// Get returns the current snapshot for the venue, or nil if none has been
// applied yet.
func (s *BookSet) Get(key VenueKey) *BookSnapshot {
	return s.books[key]
}

// Symbols returns every symbol with at least one snapshot, sorted.
func (s *BookSet) Symbols() []string {
	seen := make(map[string]bool)
	var symbols []string
	for key := range s.books {
		if !seen[key.Symbol] {
			seen[key.Symbol] = true
			symbols = append(symbols, key.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols
}

// Exchanges returns every exchange holding a snapshot for the symbol, sorted.
func (s *BookSet) Exchanges(symbol string) []string {
	var exchanges []string
	for key := range s.books {
		if key.Symbol == symbol {
			exchanges = append(exchanges, key.Exchange)
		}
	}
	sort.Strings(exchanges)
	return exchanges
}

// SplitSymbol splits a BASE/QUOTE pair. ok is false when the symbol does not
// contain exactly one separator or either part is empty.
func SplitSymbol(symbol string) (base, quote string, ok bool) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
