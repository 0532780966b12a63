package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbsim/internal/analytics"
	"github.com/alanyoungcy/arbsim/internal/config"
	"github.com/alanyoungcy/arbsim/internal/domain"
	"github.com/alanyoungcy/arbsim/internal/sim"
	"github.com/alanyoungcy/arbsim/internal/strategy"
)

// partialFillProbability is the chance a marketable order fills only
// partially on a given book update.
const partialFillProbability = 0.10

// Engine is the deterministic simulation core. It owns every piece of
// mutable run state: the order-book cache, the impact ledger, pending and
// completed orders, balances, positions, and the trade/snapshot histories.
// The run loop is strictly single-threaded; all stochastic draws come from
// one seeded RNG consumed in event order, so a fixed seed and fixed input
// reproduce the run bit for bit.
type Engine struct {
	cfg      *config.Config
	strategy strategy.Strategy
	sched    *Scheduler
	books    *domain.BookSet
	latency  *sim.LatencyModel
	impact   *sim.ImpactLedger
	rng      *rand.Rand
	logger   *slog.Logger

	// exchange → currency → amount. Mutated only by the fill engine.
	balances  map[string]map[string]decimal.Decimal
	positions map[string]map[string]decimal.Decimal

	pendingOrders   []*domain.Order
	completedOrders []*domain.Order
	trades          []domain.Trade
	snapshots       []domain.PortfolioSnapshot

	makerRate decimal.Decimal
	takerRate decimal.Decimal

	numSignals int
	numOrders  int
	eventCount int
}

// NewEngine builds an engine over a chronologically sorted event stream.
// The RNG seeds every stochastic component (latency draws, fill and
// partial-fill sampling, IDs) so runs are reproducible. A strategy must be
// attached via SetStrategy before Run.
func NewEngine(cfg *config.Config, events []domain.MarketEvent, logger *slog.Logger) *Engine {
	rng := rand.New(rand.NewSource(cfg.Backtest.Seed))

	balances := make(map[string]map[string]decimal.Decimal, len(cfg.Universe.Exchanges))
	positions := make(map[string]map[string]decimal.Decimal, len(cfg.Universe.Exchanges))
	for _, ex := range cfg.Universe.Exchanges {
		balances[ex] = make(map[string]decimal.Decimal, len(cfg.Backtest.InitialBalances))
		positions[ex] = make(map[string]decimal.Decimal)
		for ccy, amt := range cfg.Backtest.InitialBalances {
			balances[ex][ccy] = decimal.NewFromFloat(amt)
		}
	}

	return &Engine{
		cfg:       cfg,
		sched:     NewScheduler(events),
		books:     domain.NewBookSet(),
		latency:   sim.NewLatencyModel(cfg.Latency, rng),
		impact:    sim.NewImpactLedger(cfg.Slippage),
		rng:       rng,
		logger:    logger.With(slog.String("component", "engine")),
		balances:  balances,
		positions: positions,
		makerRate: decimal.NewFromFloat(cfg.Fees.MakerPct).Shift(-2),
		takerRate: decimal.NewFromFloat(cfg.Fees.TakerPct).Shift(-2),
	}
}

// Rand exposes the engine's seeded RNG so collaborating components (e.g.
// the default strategy's ID generation) share the deterministic stream.
func (e *Engine) Rand() *rand.Rand { return e.rng }

// SetStrategy attaches the detector to run after every book update.
func (e *Engine) SetStrategy(s strategy.Strategy) { e.strategy = s }

// Run drives the simulation to completion and returns the full result. The
// loop checks ctx between steps: cancellation is cooperative and never
// leaves an event half-applied. Errors while processing a single event are
// logged and skipped; scheduler ordering violations are fatal.
func (e *Engine) Run(ctx context.Context) (*domain.Result, error) {
	if e.strategy == nil {
		return nil, fmt.Errorf("engine: no strategy attached: %w", domain.ErrInvalidConfig)
	}
	start, end, err := e.cfg.Backtest.Window()
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			e.logger.Warn("run stopped", slog.String("sim_time", e.sched.Now().Format(time.RFC3339)))
			return e.finalize(start, end), ctx.Err()
		default:
		}

		st, ok, err := e.sched.Next()
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		if !ok {
			break
		}

		if st.order != nil {
			e.submitOrder(st.order, st.at)
			continue
		}
		e.processMarketEvent(*st.event)
	}

	return e.finalize(start, end), nil
}

// processMarketEvent applies one book update and everything downstream of
// it. A panic while handling the event is recovered and logged with event
// context so one bad event cannot abort the whole backtest.
func (e *Engine) processMarketEvent(ev domain.MarketEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event processing failed",
				slog.String("exchange", ev.Exchange),
				slog.String("symbol", ev.Symbol),
				slog.Time("timestamp", ev.Timestamp),
				slog.Any("panic", r),
			)
		}
	}()

	e.books.Apply(ev)
	e.attemptFills(ev.Venue(), ev.Timestamp)

	for _, sig := range e.strategy.Detect(ev.Timestamp, e.books) {
		e.numSignals++
		if err := e.riskCheck(sig, ev.Timestamp); err != nil {
			e.logger.Debug("signal rejected",
				slog.String("signal_id", sig.ID),
				slog.String("symbol", sig.Symbol),
				slog.String("reason", err.Error()),
			)
			continue
		}
		e.placeSignalOrders(sig, ev.Timestamp)
	}

	e.eventCount++
	if e.eventCount%e.cfg.Backtest.SnapshotInterval == 0 {
		e.takeSnapshot(ev.Timestamp)
	}
}

// placeSignalOrders builds the buy and sell legs for an accepted signal and
// pushes each through the latency model into the scheduler.
func (e *Engine) placeSignalOrders(sig domain.ArbSignal, now time.Time) {
	if _, _, ok := domain.SplitSymbol(sig.Symbol); !ok {
		e.logger.Error("signal skipped: unparseable symbol",
			slog.String("signal_id", sig.ID),
			slog.String("symbol", sig.Symbol),
		)
		return
	}

	legs := []struct {
		exchange string
		side     domain.OrderSide
		price    float64
	}{
		{sig.BuyExchange, domain.OrderSideBuy, sig.BuyPrice},
		{sig.SellExchange, domain.OrderSideSell, sig.SellPrice},
	}
	for _, leg := range legs {
		order := &domain.Order{
			ID:       uuid.Must(uuid.NewRandomFromReader(e.rng)).String(),
			Exchange: leg.exchange,
			Symbol:   sig.Symbol,
			Side:     leg.side,
			Kind:     domain.OrderKindLimit,
			Quantity: decimal.NewFromFloat(sig.Size),
			Price:    decimal.NewFromFloat(leg.price),
			Status:   domain.OrderStatusPending,
			SignalID: sig.ID,
		}
		delay := e.latency.Sample(leg.exchange, now)
		e.sched.Schedule(now.Add(delay), order)
		e.numOrders++

		e.logger.Debug("order scheduled",
			slog.String("order_id", order.ID),
			slog.String("exchange", leg.exchange),
			slog.String("side", string(leg.side)),
			slog.Duration("latency", delay),
		)
	}
}

// submitOrder activates a scheduled order once its simulated latency has
// elapsed, then immediately tries it against the current book.
func (e *Engine) submitOrder(order *domain.Order, at time.Time) {
	order.SubmittedAt = at
	e.pendingOrders = append(e.pendingOrders, order)

	e.tryFill(order, at)
	if order.Terminal() {
		e.retireTerminal()
	}
}

// riskCheck is the all-or-nothing pre-trade gate: a signal is rejected
// outright when its notional exceeds the max position limit or when the
// running day's naive P&L has already breached the daily loss limit.
func (e *Engine) riskCheck(sig domain.ArbSignal, now time.Time) error {
	notional := sig.Size * sig.BuyPrice
	if notional > e.cfg.Risk.MaxPositionNotional {
		return fmt.Errorf("notional %.2f exceeds max position %.2f: %w",
			notional, e.cfg.Risk.MaxPositionNotional, domain.ErrRiskRejected)
	}

	dayPnL := e.dayPnL(now)
	maxLoss := decimal.NewFromFloat(e.cfg.Risk.MaxDailyLoss)
	if dayPnL.IsNegative() && dayPnL.Neg().GreaterThan(maxLoss) {
		return fmt.Errorf("daily loss %s exceeds max %s: %w",
			dayPnL.Neg().StringFixed(2), maxLoss.StringFixed(2), domain.ErrRiskRejected)
	}
	return nil
}

// dayPnL naively sums sell proceeds minus buy cost minus fees over the
// current UTC day's trades.
func (e *Engine) dayPnL(now time.Time) decimal.Decimal {
	y, m, d := now.UTC().Date()
	pnl := decimal.Zero
	for _, t := range e.trades {
		ty, tm, td := t.Timestamp.UTC().Date()
		if ty != y || tm != m || td != d {
			continue
		}
		if t.Side == domain.OrderSideSell {
			pnl = pnl.Add(t.Notional())
		} else {
			pnl = pnl.Sub(t.Notional())
		}
		pnl = pnl.Sub(t.Fee)
	}
	return pnl
}

// takeSnapshot records a point-in-time portfolio aggregate. Balances are
// summed at face value; non-quote currencies are not marked to market.
func (e *Engine) takeSnapshot(now time.Time) {
	total := decimal.Zero
	exchangeValues := make(map[string]decimal.Decimal, len(e.balances))
	for _, ex := range sortedKeys(e.balances) {
		exTotal := decimal.Zero
		for _, ccy := range sortedKeys(e.balances[ex]) {
			exTotal = exTotal.Add(e.balances[ex][ccy])
		}
		exchangeValues[ex] = exTotal
		total = total.Add(exTotal)
	}

	numPositions := 0
	for _, ex := range sortedKeys(e.positions) {
		for _, ccy := range sortedKeys(e.positions[ex]) {
			if !e.positions[ex][ccy].IsZero() {
				numPositions++
			}
		}
	}

	e.snapshots = append(e.snapshots, domain.PortfolioSnapshot{
		Timestamp:      now,
		TotalValue:     total,
		RealizedPnL:    e.realizedPnL(),
		DailyPnL:       e.dayPnL(now),
		NumPositions:   numPositions,
		ExchangeValues: exchangeValues,
	})
}

// realizedPnL naively sums signed trade notionals minus fees across the
// whole run. No FIFO/LIFO per-position netting is applied.
func (e *Engine) realizedPnL() decimal.Decimal {
	pnl := decimal.Zero
	for _, t := range e.trades {
		if t.Side == domain.OrderSideSell {
			pnl = pnl.Add(t.Notional())
		} else {
			pnl = pnl.Sub(t.Notional())
		}
		pnl = pnl.Sub(t.Fee)
	}
	return pnl
}

// finalize takes the closing snapshot and assembles the run result.
func (e *Engine) finalize(start, end time.Time) *domain.Result {
	at := e.sched.Now()
	if at.IsZero() {
		at = start
	}
	e.takeSnapshot(at)

	exchanges := decimal.NewFromInt(int64(len(e.cfg.Universe.Exchanges)))
	initial := decimal.Zero
	for _, amt := range e.cfg.Backtest.InitialBalances {
		initial = initial.Add(decimal.NewFromFloat(amt).Mul(exchanges))
	}

	orders := make([]*domain.Order, 0, len(e.completedOrders)+len(e.pendingOrders))
	orders = append(orders, e.completedOrders...)
	orders = append(orders, e.pendingOrders...)

	initialF, _ := initial.Float64()
	summary := analytics.ComputeSummary(analytics.Input{
		Start:        start,
		End:          end,
		InitialValue: initialF,
		Snapshots:    e.snapshots,
		Trades:       e.trades,
		Orders:       orders,
		NumSignals:   e.numSignals,
	})

	e.logger.Info("run complete",
		slog.Int("events", e.eventCount),
		slog.Int("signals", e.numSignals),
		slog.Int("orders", e.numOrders),
		slog.Int("trades", len(e.trades)),
		slog.Float64("total_return_pct", summary.TotalReturnPct),
	)

	return &domain.Result{
		RunID:     uuid.Must(uuid.NewRandomFromReader(e.rng)).String(),
		Summary:   summary,
		Snapshots: e.snapshots,
		Trades:    e.trades,
		Orders:    orders,
	}
}

// Snapshots returns the snapshot history taken so far. Used by tests.
func (e *Engine) Snapshots() []domain.PortfolioSnapshot { return e.snapshots }

// Trades returns the trade history so far. Used by tests.
func (e *Engine) Trades() []domain.Trade { return e.trades }

// Balance returns the current balance for (exchange, currency).
func (e *Engine) Balance(exchange, currency string) decimal.Decimal {
	return e.balances[exchange][currency]
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
