package backtest

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsim/internal/domain"
)

// quantityPlaces bounds the precision of sampled partial-fill quantities.
const quantityPlaces = 8

// attemptFills tries every pending order for the venue against its freshly
// replaced snapshot, in submission order, then retires orders that reached a
// terminal state.
func (e *Engine) attemptFills(key domain.VenueKey, at time.Time) {
	retired := false
	for _, o := range e.pendingOrders {
		if o.Exchange != key.Exchange || o.Symbol != key.Symbol {
			continue
		}
		e.tryFill(o, at)
		if o.Terminal() {
			retired = true
		}
	}
	if retired {
		e.retireTerminal()
	}
}

// tryFill attempts one fill of the order against the current book. A buy is
// marketable when its limit price reaches the best ask (and fills at the
// ask); a sell when its limit reaches the best bid (and fills at the bid).
// Marketable orders fill with the configured probability, partially with
// probability partialFillProbability, at the impact-adjusted effective
// price.
func (e *Engine) tryFill(o *domain.Order, at time.Time) {
	if o.Terminal() {
		return
	}
	snap := e.books.Get(domain.VenueKey{Exchange: o.Exchange, Symbol: o.Symbol})
	if snap == nil {
		return
	}

	var quoted decimal.Decimal
	switch o.Side {
	case domain.OrderSideBuy:
		ask, ok := snap.BestAsk()
		if !ok {
			return
		}
		quoted = decimal.NewFromFloat(ask.Price)
		if o.Price.LessThan(quoted) {
			return
		}
	case domain.OrderSideSell:
		bid, ok := snap.BestBid()
		if !ok {
			return
		}
		quoted = decimal.NewFromFloat(bid.Price)
		if o.Price.GreaterThan(quoted) {
			return
		}
	default:
		return
	}

	if e.rng.Float64() >= e.cfg.Fill.Probability {
		return
	}

	qty := o.Remaining()
	if e.rng.Float64() < partialFillProbability {
		frac := e.cfg.Fill.MinPartialPct + e.rng.Float64()*(1-e.cfg.Fill.MinPartialPct)
		qty = o.Remaining().Mul(decimal.NewFromFloat(frac)).Round(quantityPlaces)
		if qty.IsZero() || qty.GreaterThan(o.Remaining()) {
			qty = o.Remaining()
		}
	}

	effective, slippage, _ := e.impact.EffectivePrice(at, o.Exchange, o.Symbol, o.Side, qty, quoted)

	rate := e.takerRate
	if effective.Equal(o.Price) {
		rate = e.makerRate
	}
	fee := qty.Mul(effective).Mul(rate)

	e.applyFill(o, qty, effective, fee, at)

	trade := domain.Trade{
		ID:        uuid.Must(uuid.NewRandomFromReader(e.rng)).String(),
		Timestamp: at,
		Exchange:  o.Exchange,
		Symbol:    o.Symbol,
		Side:      o.Side,
		Quantity:  qty,
		Price:     effective,
		Fee:       fee,
		Slippage:  slippage,
		SignalID:  o.SignalID,
		OrderID:   o.ID,
	}
	e.trades = append(e.trades, trade)

	e.logger.Debug("fill",
		slog.String("order_id", o.ID),
		slog.String("exchange", o.Exchange),
		slog.String("side", string(o.Side)),
		slog.String("qty", qty.String()),
		slog.String("price", effective.String()),
		slog.String("status", string(o.Status)),
	)
}

// applyFill mutates the order, balances, and positions for one fill under
// the double-entry rule: the quote balance moves by ∓(qty × price) − fee
// and the base balance by ±qty, exactly, in decimal arithmetic.
func (e *Engine) applyFill(o *domain.Order, qty, price, fee decimal.Decimal, at time.Time) {
	base, quote, ok := domain.SplitSymbol(o.Symbol)
	if !ok {
		// Screened at signal acceptance; kept as a hard guard.
		e.logger.Error("fill dropped: unparseable symbol", slog.String("symbol", o.Symbol))
		return
	}

	o.RecordFill(qty, price, at)

	notional := qty.Mul(price)
	bal := e.balances[o.Exchange]
	if bal == nil {
		bal = make(map[string]decimal.Decimal)
		e.balances[o.Exchange] = bal
	}
	pos := e.positions[o.Exchange]
	if pos == nil {
		pos = make(map[string]decimal.Decimal)
		e.positions[o.Exchange] = pos
	}

	if o.Side == domain.OrderSideBuy {
		bal[base] = bal[base].Add(qty)
		bal[quote] = bal[quote].Sub(notional).Sub(fee)
		pos[base] = pos[base].Add(qty)
	} else {
		bal[base] = bal[base].Sub(qty)
		bal[quote] = bal[quote].Add(notional).Sub(fee)
		pos[base] = pos[base].Sub(qty)
	}
}

// retireTerminal moves terminal orders from the pending list to the
// completed list, preserving submission order.
func (e *Engine) retireTerminal() {
	kept := e.pendingOrders[:0]
	for _, o := range e.pendingOrders {
		if o.Terminal() {
			e.completedOrders = append(e.completedOrders, o)
		} else {
			kept = append(kept, o)
		}
	}
	e.pendingOrders = kept
}
