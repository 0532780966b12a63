// Package app wires the configured data source, the simulation engine, and
// the optional result sinks into a single backtest run.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbsim/internal/backtest"
	s3blob "github.com/alanyoungcy/arbsim/internal/blob/s3"
	redisc "github.com/alanyoungcy/arbsim/internal/cache/redis"
	"github.com/alanyoungcy/arbsim/internal/config"
	"github.com/alanyoungcy/arbsim/internal/domain"
	"github.com/alanyoungcy/arbsim/internal/feed"
	"github.com/alanyoungcy/arbsim/internal/store/postgres"
	"github.com/alanyoungcy/arbsim/internal/strategy"
)

// App owns the external clients and runs one backtest end to end.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pg  *postgres.Client
	rdb *redisc.Client
}

// New creates the application. External clients are connected lazily in Run
// so a synthetic-only configuration needs no infrastructure at all.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger.With(slog.String("component", "app"))}
}

// Run loads historical events, executes the backtest, and hands the result
// to the configured sinks. It returns the run result so the caller can
// print the summary.
func (a *App) Run(ctx context.Context) (*domain.Result, error) {
	source, err := a.buildSource(ctx)
	if err != nil {
		return nil, err
	}

	events, err := a.loadEvents(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("app: no events in window: %w", domain.ErrNoMarketData)
	}

	engine := backtest.NewEngine(a.cfg, events, a.logger)

	reg := strategy.NewRegistry()
	reg.Register("cross_exchange", strategy.NewCrossExchange(
		strategy.CrossExchangeConfig{MinSpreadPct: a.cfg.Backtest.MinSpreadPct},
		engine.Rand(),
		a.logger,
	))
	strat, err := reg.Get(a.cfg.Backtest.Strategy)
	if err != nil {
		return nil, fmt.Errorf("app: %w (registered: %s)", err, strings.Join(reg.List(), ", "))
	}
	engine.SetStrategy(strat)

	a.logger.Info("starting backtest",
		slog.String("strategy", strat.Name()),
		slog.Int("events", len(events)),
		slog.Any("exchanges", a.cfg.Universe.Exchanges),
		slog.Any("symbols", a.cfg.Universe.Symbols),
	)

	result, runErr := engine.Run(ctx)
	if result != nil {
		a.deliver(result)
	}
	return result, runErr
}

// buildSource connects the configured market-data source.
func (a *App) buildSource(ctx context.Context) (domain.MarketDataSource, error) {
	switch strings.ToLower(a.cfg.Source.Kind) {
	case "synthetic":
		return feed.NewSynthetic(a.cfg.Synthetic, a.cfg.Backtest.Seed), nil

	case "postgres":
		if err := a.connectPostgres(ctx); err != nil {
			return nil, err
		}
		return postgres.NewMarketDataStore(a.pg.Pool()), nil

	case "s3":
		client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       a.cfg.S3.Endpoint,
			Region:         a.cfg.S3.Region,
			Bucket:         a.cfg.S3.Bucket,
			AccessKey:      a.cfg.S3.AccessKey,
			SecretKey:      a.cfg.S3.SecretKey,
			UseSSL:         a.cfg.S3.UseSSL,
			ForcePathStyle: a.cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("app: s3 source: %w", err)
		}
		return s3blob.NewArchiveSource(client, a.cfg.S3.Prefix), nil

	default:
		return nil, fmt.Errorf("app: unknown source kind %q: %w", a.cfg.Source.Kind, domain.ErrInvalidConfig)
	}
}

func (a *App) connectPostgres(ctx context.Context) error {
	if a.pg != nil {
		return nil
	}
	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      a.cfg.Postgres.DSN,
		Host:     a.cfg.Postgres.Host,
		Port:     a.cfg.Postgres.Port,
		Database: a.cfg.Postgres.Database,
		User:     a.cfg.Postgres.User,
		Password: a.cfg.Postgres.Password,
		SSLMode:  a.cfg.Postgres.SSLMode,
		MaxConns: a.cfg.Postgres.PoolMaxConns,
		MinConns: a.cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return fmt.Errorf("app: postgres: %w", err)
	}
	if a.cfg.Postgres.RunMigrations {
		if err := pg.RunMigrations(ctx); err != nil {
			pg.Close()
			return fmt.Errorf("app: %w", err)
		}
	}
	a.pg = pg
	return nil
}

// loadEvents fetches every (exchange, symbol) stream concurrently — the
// only concurrency in the program is around this I/O — and merges them into
// one chronologically sorted stream. A venue that fails to load is logged
// and skipped; the run continues with the remaining venues.
func (a *App) loadEvents(ctx context.Context, source domain.MarketDataSource) ([]domain.MarketEvent, error) {
	start, end, err := a.cfg.Backtest.Window()
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	type venue struct{ exchange, symbol string }
	var venues []venue
	for _, ex := range a.cfg.Universe.Exchanges {
		for _, sym := range a.cfg.Universe.Symbols {
			venues = append(venues, venue{ex, sym})
		}
	}

	perVenue := make([][]domain.MarketEvent, len(venues))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, v := range venues {
		i, v := i, v
		g.Go(func() error {
			events, err := source.Load(gctx, v.exchange, v.symbol, start, end)
			if err != nil {
				a.logger.Warn("venue load failed, skipping",
					slog.String("exchange", v.exchange),
					slog.String("symbol", v.symbol),
					slog.String("error", err.Error()),
				)
				return nil
			}
			perVenue[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("app: load events: %w", err)
	}

	var merged []domain.MarketEvent
	for _, events := range perVenue {
		merged = append(merged, events...)
	}
	// Stable sort over the deterministic venue order keeps equal-timestamp
	// events in a reproducible sequence.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged, nil
}

// deliver hands a finished result to the configured sinks. Sink failures
// are logged, not fatal: the in-memory result is already complete.
func (a *App) deliver(result *domain.Result) {
	// Sinks get their own context so delivery still happens when the run
	// itself was cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.cfg.Source.SaveResults {
		if err := a.connectPostgres(ctx); err != nil {
			a.logger.Error("result save skipped", slog.String("error", err.Error()))
		} else if err := postgres.NewResultStore(a.pg.Pool()).SaveResult(ctx, result); err != nil {
			a.logger.Error("result save failed", slog.String("error", err.Error()))
		}
	}

	if a.cfg.Source.PublishSummary {
		if a.rdb == nil {
			rdb, err := redisc.New(ctx, redisc.ClientConfig{
				Addr:       a.cfg.Redis.Addr,
				Password:   a.cfg.Redis.Password,
				DB:         a.cfg.Redis.DB,
				PoolSize:   a.cfg.Redis.PoolSize,
				MaxRetries: a.cfg.Redis.MaxRetries,
				TLSEnabled: a.cfg.Redis.TLSEnabled,
			})
			if err != nil {
				a.logger.Error("summary publish skipped", slog.String("error", err.Error()))
				return
			}
			a.rdb = rdb
		}
		pub := redisc.NewResultPublisher(a.rdb, a.cfg.Redis.Channel)
		if err := pub.PublishSummary(ctx, result.RunID, result.Summary); err != nil {
			a.logger.Error("summary publish failed", slog.String("error", err.Error()))
		}
	}
}

// Close releases external clients.
func (a *App) Close() {
	if a.pg != nil {
		a.pg.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
