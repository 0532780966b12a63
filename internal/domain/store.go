package domain

import (
	"context"
	"time"
)

// MarketDataSource supplies the chronologically sorted market-data events for
// one venue. Implementations: the PostgreSQL store, the S3 archive reader,
// and the synthetic generator.
type MarketDataSource interface {
	// Load returns events for (exchange, symbol) within [start, end),
	// sorted by timestamp ascending.
	Load(ctx context.Context, exchange, symbol string, start, end time.Time) ([]MarketEvent, error)
}

// ResultStore persists the output of a completed backtest run.
type ResultStore interface {
	SaveResult(ctx context.Context, res *Result) error
}

// ResultPublisher hands a completed run's summary to the reporting
// collaborator (e.g. a dashboard listening on a Redis channel).
type ResultPublisher interface {
	PublishSummary(ctx context.Context, runID string, summary Summary) error
}
