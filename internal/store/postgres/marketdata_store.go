package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbsim/internal/domain"
)

// MarketDataStore implements domain.MarketDataSource using PostgreSQL.
type MarketDataStore struct {
	pool *pgxpool.Pool
}

// NewMarketDataStore creates a store backed by the given connection pool.
func NewMarketDataStore(pool *pgxpool.Pool) *MarketDataStore {
	return &MarketDataStore{pool: pool}
}

// jsonLevel is the JSONB shape of one book level.
type jsonLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Load returns the venue's events within [start, end), sorted by timestamp.
func (s *MarketDataStore) Load(ctx context.Context, exchange, symbol string, start, end time.Time) ([]domain.MarketEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ts, bids, asks
		FROM market_events
		WHERE exchange = $1 AND symbol = $2 AND ts >= $3 AND ts < $4
		ORDER BY ts, id`,
		exchange, symbol, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: load events %s %s: %w", exchange, symbol, err)
	}
	defer rows.Close()

	var events []domain.MarketEvent
	for rows.Next() {
		var (
			ts         time.Time
			bids, asks []byte
		)
		if err := rows.Scan(&ts, &bids, &asks); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}

		ev := domain.MarketEvent{Timestamp: ts.UTC(), Exchange: exchange, Symbol: symbol}
		if ev.Bids, err = decodeLevels(bids); err != nil {
			return nil, fmt.Errorf("postgres: decode bids at %s: %w", ts, err)
		}
		if ev.Asks, err = decodeLevels(asks); err != nil {
			return nil, fmt.Errorf("postgres: decode asks at %s: %w", ts, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load events %s %s: %w", exchange, symbol, err)
	}
	return events, nil
}

func decodeLevels(data []byte) ([]domain.BookLevel, error) {
	var raw []jsonLevel
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	levels := make([]domain.BookLevel, len(raw))
	for i, l := range raw {
		levels[i] = domain.BookLevel{Price: l.Price, Size: l.Size}
	}
	return levels, nil
}

// Compile-time interface check.
var _ domain.MarketDataSource = (*MarketDataStore)(nil)
