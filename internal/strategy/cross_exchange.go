package strategy

import (
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbsim/internal/domain"
)

// CrossExchangeConfig configures the cross-exchange detector.
type CrossExchangeConfig struct {
	// MinSpreadPct is the minimum bid-over-ask spread, in percent, required
	// to emit a signal.
	MinSpreadPct float64
}

// CrossExchange is the default detector: for each symbol it scans every
// exchange holding a current snapshot, finds the highest best bid and the
// lowest best ask, and emits a signal when the book is crossed between two
// different venues by at least the configured spread. Signal size is the
// smaller of the two top-of-book sizes.
type CrossExchange struct {
	cfg    CrossExchangeConfig
	idRand io.Reader
	logger *slog.Logger
}

// NewCrossExchange creates the detector. idRand seeds signal IDs; passing
// the engine's seeded RNG keeps IDs reproducible across runs.
func NewCrossExchange(cfg CrossExchangeConfig, idRand io.Reader, logger *slog.Logger) *CrossExchange {
	return &CrossExchange{
		cfg:    cfg,
		idRand: idRand,
		logger: logger.With(slog.String("strategy", "cross_exchange")),
	}
}

// Name returns the strategy identifier.
func (s *CrossExchange) Name() string { return "cross_exchange" }

// Detect scans each symbol's venues for a crossed book.
func (s *CrossExchange) Detect(now time.Time, books *domain.BookSet) []domain.ArbSignal {
	var signals []domain.ArbSignal

	for _, symbol := range books.Symbols() {
		var (
			bestBid  domain.BookLevel
			bestAsk  domain.BookLevel
			bidVenue string
			askVenue string
			haveBid  bool
			haveAsk  bool
		)

		for _, exchange := range books.Exchanges(symbol) {
			snap := books.Get(domain.VenueKey{Exchange: exchange, Symbol: symbol})
			if bid, ok := snap.BestBid(); ok {
				if !haveBid || bid.Price > bestBid.Price {
					bestBid, bidVenue, haveBid = bid, exchange, true
				}
			}
			if ask, ok := snap.BestAsk(); ok {
				if !haveAsk || ask.Price < bestAsk.Price {
					bestAsk, askVenue, haveAsk = ask, exchange, true
				}
			}
		}

		if !haveBid || !haveAsk || bidVenue == askVenue {
			continue
		}
		if bestBid.Price <= bestAsk.Price {
			continue
		}

		profitPct := (bestBid.Price - bestAsk.Price) / bestAsk.Price * 100
		if profitPct < s.cfg.MinSpreadPct {
			continue
		}

		size := bestAsk.Size
		if bestBid.Size < size {
			size = bestBid.Size
		}
		if size <= 0 {
			continue
		}

		sig := domain.ArbSignal{
			ID:           uuid.Must(uuid.NewRandomFromReader(s.idRand)).String(),
			Symbol:       symbol,
			BuyExchange:  askVenue,
			BuyPrice:     bestAsk.Price,
			SellExchange: bidVenue,
			SellPrice:    bestBid.Price,
			Size:         size,
			ProfitPct:    profitPct,
			DetectedAt:   now,
		}
		s.logger.Debug("arbitrage opportunity",
			slog.String("symbol", symbol),
			slog.String("buy", askVenue),
			slog.String("sell", bidVenue),
			slog.Float64("profit_pct", profitPct),
			slog.Float64("size", size),
		)
		signals = append(signals, sig)
	}

	return signals
}
