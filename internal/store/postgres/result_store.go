package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbsim/internal/domain"
)

// ResultStore implements domain.ResultStore using PostgreSQL.
type ResultStore struct {
	pool *pgxpool.Pool
}

// NewResultStore creates a store backed by the given connection pool.
func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// SaveResult persists the run row, then batch-inserts the trade and
// snapshot histories.
func (s *ResultStore) SaveResult(ctx context.Context, res *domain.Result) error {
	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return fmt.Errorf("postgres: marshal summary: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `
		INSERT INTO backtest_runs (run_id, started_at, finished_at, summary)
		VALUES ($1, $2, $3, $4)`,
		res.RunID, res.Summary.StartTime, res.Summary.EndTime, summary,
	); err != nil {
		return fmt.Errorf("postgres: insert run %s: %w", res.RunID, err)
	}

	if err := s.insertTrades(ctx, res.RunID, res.Trades); err != nil {
		return err
	}
	return s.insertSnapshots(ctx, res.RunID, res.Snapshots)
}

func (s *ResultStore) insertTrades(ctx context.Context, runID string, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO backtest_trades (
			run_id, trade_id, ts, exchange, symbol, side,
			quantity, price, fee, slippage, signal_id, order_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, t := range trades {
		batch.Queue(query,
			runID, t.ID, t.Timestamp, t.Exchange, t.Symbol, string(t.Side),
			t.Quantity, t.Price, t.Fee, t.Slippage, t.SignalID, t.OrderID,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert trade batch item %d: %w", i, err)
		}
	}
	return nil
}

func (s *ResultStore) insertSnapshots(ctx context.Context, runID string, snapshots []domain.PortfolioSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO backtest_snapshots (
			run_id, ts, total_value, realized_pnl, daily_pnl,
			num_positions, exchange_values
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, snap := range snapshots {
		values, err := json.Marshal(snap.ExchangeValues)
		if err != nil {
			return fmt.Errorf("postgres: marshal exchange values: %w", err)
		}
		batch.Queue(query,
			runID, snap.Timestamp, snap.TotalValue, snap.RealizedPnL,
			snap.DailyPnL, snap.NumPositions, values,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range snapshots {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert snapshot batch item %d: %w", i, err)
		}
	}
	return nil
}

// Compile-time interface check.
var _ domain.ResultStore = (*ResultStore)(nil)
