// Package config defines the top-level configuration for the arbitrage
// backtester and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBSIM_* environment variables.
type Config struct {
	Backtest  BacktestConfig  `toml:"backtest"`
	Universe  UniverseConfig  `toml:"universe"`
	Latency   LatencyConfig   `toml:"latency"`
	Slippage  SlippageConfig  `toml:"slippage"`
	Fees      FeeConfig       `toml:"fees"`
	Fill      FillConfig      `toml:"fill"`
	Risk      RiskConfig      `toml:"risk"`
	Source    SourceConfig    `toml:"source"`
	Synthetic SyntheticConfig `toml:"synthetic"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	LogLevel  string          `toml:"log_level"`
}

// BacktestConfig holds the simulation window and engine parameters.
type BacktestConfig struct {
	StartDate        string             `toml:"start_date"` // RFC3339 or YYYY-MM-DD, UTC
	EndDate          string             `toml:"end_date"`
	InitialBalances  map[string]float64 `toml:"initial_balances"` // currency → amount, applied per exchange
	Strategy         string             `toml:"strategy"`
	MinSpreadPct     float64            `toml:"min_spread_pct"` // detector threshold, percent
	SnapshotInterval int                `toml:"snapshot_interval"` // events between portfolio snapshots
	Seed             int64              `toml:"seed"`
}

// Window parses the configured start/end dates. Both "2024-01-02" and full
// RFC3339 timestamps are accepted; bare dates are midnight UTC.
func (b BacktestConfig) Window() (start, end time.Time, err error) {
	start, err = parseDate(b.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date: %w", err)
	}
	end, err = parseDate(b.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date: %w", err)
	}
	return start, end, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	return t.UTC(), nil
}

// UniverseConfig lists the exchanges and symbols to simulate.
type UniverseConfig struct {
	Exchanges []string `toml:"exchanges"`
	Symbols   []string `toml:"symbols"`
}

// ExchangeLatency holds the log-normal latency parameters for one exchange.
type ExchangeLatency struct {
	BaseMs   float64 `toml:"base_ms"`
	Variance float64 `toml:"variance"`
}

// LatencyConfig holds the network-latency simulation parameters.
type LatencyConfig struct {
	Enabled   bool                       `toml:"enabled"`
	Default   ExchangeLatency            `toml:"default"`
	Exchanges map[string]ExchangeLatency `toml:"exchanges"`
}

// SlippageConfig holds the market-impact simulation parameters.
type SlippageConfig struct {
	Enabled       bool     `toml:"enabled"`
	LinearFactor  float64  `toml:"linear_factor"` // bps per 10k of notional
	DecayHalfLife duration `toml:"decay_half_life"`
}

// FeeConfig holds maker/taker fee rates in percent.
type FeeConfig struct {
	MakerPct float64 `toml:"maker_pct"`
	TakerPct float64 `toml:"taker_pct"`
}

// FillConfig holds the probabilistic fill model parameters.
type FillConfig struct {
	Probability   float64 `toml:"probability"`     // chance a marketable order fills on a book update
	MinPartialPct float64 `toml:"min_partial_pct"` // lower bound of a partial fill, fraction of remaining
}

// RiskConfig holds the pre-trade risk limits, in quote-currency notional.
type RiskConfig struct {
	MaxPositionNotional float64 `toml:"max_position_notional"`
	MaxDailyLoss        float64 `toml:"max_daily_loss"`
}

// SourceConfig selects where historical market data comes from.
type SourceConfig struct {
	// Kind is one of "synthetic", "postgres", "s3".
	Kind string `toml:"kind"`
	// SaveResults enables persisting the run to Postgres when configured.
	SaveResults bool `toml:"save_results"`
	// PublishSummary enables publishing the run summary to Redis.
	PublishSummary bool `toml:"publish_summary"`
}

// SyntheticConfig parameterizes the geometric random-walk generator used
// when no historical data exists.
type SyntheticConfig struct {
	TickInterval duration `toml:"tick_interval"`
	StartPrice   float64  `toml:"start_price"`
	Volatility   float64  `toml:"volatility"` // per-tick stdev, fraction of price
	SpreadPct    float64  `toml:"spread_pct"` // fixed half-spread, percent
	Depth        int      `toml:"depth"`      // levels per side
	LevelSize    float64  `toml:"level_size"` // base units per level
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for summary publishing.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	Channel    string `toml:"channel"`
}

// S3Config holds S3-compatible object storage parameters for the archive
// reader.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	Prefix         string `toml:"prefix"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Backtest: BacktestConfig{
			StartDate:        "2024-01-01",
			EndDate:          "2024-01-08",
			InitialBalances:  map[string]float64{"USDT": 10_000},
			Strategy:         "cross_exchange",
			MinSpreadPct:     0.1,
			SnapshotInterval: 100,
			Seed:             42,
		},
		Universe: UniverseConfig{
			Exchanges: []string{"binance", "kraken"},
			Symbols:   []string{"BTC/USDT"},
		},
		Latency: LatencyConfig{
			Enabled: true,
			Default: ExchangeLatency{BaseMs: 50, Variance: 10},
			Exchanges: map[string]ExchangeLatency{
				"binance": {BaseMs: 40, Variance: 8},
				"kraken":  {BaseMs: 70, Variance: 15},
			},
		},
		Slippage: SlippageConfig{
			Enabled:       true,
			LinearFactor:  1.0,
			DecayHalfLife: duration{5 * time.Minute},
		},
		Fees: FeeConfig{
			MakerPct: 0.02,
			TakerPct: 0.05,
		},
		Fill: FillConfig{
			Probability:   0.95,
			MinPartialPct: 0.3,
		},
		Risk: RiskConfig{
			MaxPositionNotional: 5_000,
			MaxDailyLoss:        500,
		},
		Source: SourceConfig{
			Kind: "synthetic",
		},
		Synthetic: SyntheticConfig{
			TickInterval: duration{time.Second},
			StartPrice:   50_000,
			Volatility:   0.0005,
			SpreadPct:    0.02,
			Depth:        5,
			LevelSize:    0.5,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbsim",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			Channel:    "arbsim:results",
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbsim-data",
			Prefix:         "marketdata",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSourceKinds enumerates the accepted values for Source.Kind.
var validSourceKinds = map[string]bool{
	"synthetic": true,
	"postgres":  true,
	"s3":        true,
}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found. A run must not start on a Config
// that fails validation.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Backtest window.
	start, end, err := c.Backtest.Window()
	if err != nil {
		errs = append(errs, "backtest: "+err.Error())
	} else if !end.After(start) {
		errs = append(errs, fmt.Sprintf("backtest: end_date %s must be after start_date %s", c.Backtest.EndDate, c.Backtest.StartDate))
	}
	if len(c.Backtest.InitialBalances) == 0 {
		errs = append(errs, "backtest: initial_balances must not be empty")
	}
	for ccy, amt := range c.Backtest.InitialBalances {
		if amt < 0 {
			errs = append(errs, fmt.Sprintf("backtest: initial balance for %s must not be negative", ccy))
		}
	}
	if c.Backtest.Strategy == "" {
		errs = append(errs, "backtest: strategy must not be empty")
	}
	if c.Backtest.MinSpreadPct < 0 {
		errs = append(errs, "backtest: min_spread_pct must not be negative")
	}
	if c.Backtest.SnapshotInterval < 1 {
		errs = append(errs, "backtest: snapshot_interval must be >= 1")
	}

	// Universe.
	if len(c.Universe.Exchanges) == 0 {
		errs = append(errs, "universe: exchanges must not be empty")
	}
	if len(c.Universe.Symbols) == 0 {
		errs = append(errs, "universe: symbols must not be empty")
	}
	for _, s := range c.Universe.Symbols {
		if !strings.Contains(s, "/") {
			errs = append(errs, fmt.Sprintf("universe: symbol %q must be BASE/QUOTE", s))
		}
	}

	// Latency.
	if c.Latency.Enabled {
		if c.Latency.Default.BaseMs <= 0 {
			errs = append(errs, "latency: default.base_ms must be > 0 when enabled")
		}
		if c.Latency.Default.Variance < 0 {
			errs = append(errs, "latency: default.variance must not be negative")
		}
		for ex, l := range c.Latency.Exchanges {
			if l.BaseMs <= 0 {
				errs = append(errs, fmt.Sprintf("latency: exchanges.%s.base_ms must be > 0", ex))
			}
		}
	}

	// Slippage.
	if c.Slippage.Enabled {
		if c.Slippage.LinearFactor < 0 {
			errs = append(errs, "slippage: linear_factor must not be negative")
		}
		if c.Slippage.DecayHalfLife.Duration <= 0 {
			errs = append(errs, "slippage: decay_half_life must be > 0 when enabled")
		}
	}

	// Fees.
	if c.Fees.MakerPct < 0 || c.Fees.TakerPct < 0 {
		errs = append(errs, "fees: maker_pct and taker_pct must not be negative")
	}

	// Fill model.
	if c.Fill.Probability < 0 || c.Fill.Probability > 1 {
		errs = append(errs, fmt.Sprintf("fill: probability must be in [0, 1], got %g", c.Fill.Probability))
	}
	if c.Fill.MinPartialPct <= 0 || c.Fill.MinPartialPct > 1 {
		errs = append(errs, fmt.Sprintf("fill: min_partial_pct must be in (0, 1], got %g", c.Fill.MinPartialPct))
	}

	// Risk.
	if c.Risk.MaxPositionNotional <= 0 {
		errs = append(errs, "risk: max_position_notional must be > 0")
	}
	if c.Risk.MaxDailyLoss <= 0 {
		errs = append(errs, "risk: max_daily_loss must be > 0")
	}

	// Source.
	if !validSourceKinds[strings.ToLower(c.Source.Kind)] {
		errs = append(errs, fmt.Sprintf("source: unknown kind %q (valid: synthetic, postgres, s3)", c.Source.Kind))
	}
	if c.Source.Kind == "synthetic" {
		if c.Synthetic.TickInterval.Duration <= 0 {
			errs = append(errs, "synthetic: tick_interval must be > 0")
		}
		if c.Synthetic.StartPrice <= 0 {
			errs = append(errs, "synthetic: start_price must be > 0")
		}
		if c.Synthetic.Depth < 1 {
			errs = append(errs, "synthetic: depth must be >= 1")
		}
	}
	if c.Source.Kind == "postgres" || c.Source.SaveResults {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
	}
	if c.Source.PublishSummary {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when publish_summary is set")
		}
		if c.Redis.Channel == "" {
			errs = append(errs, "redis: channel must not be empty when publish_summary is set")
		}
	}
	if c.Source.Kind == "s3" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
