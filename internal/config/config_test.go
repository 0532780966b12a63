package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantMsg: "log_level",
		},
		{
			name: "end before start",
			mutate: func(c *Config) {
				c.Backtest.StartDate = "2024-02-01"
				c.Backtest.EndDate = "2024-01-01"
			},
			wantMsg: "end_date",
		},
		{
			name:    "unparseable date",
			mutate:  func(c *Config) { c.Backtest.StartDate = "01/02/2024" },
			wantMsg: "start_date",
		},
		{
			name:    "no initial balances",
			mutate:  func(c *Config) { c.Backtest.InitialBalances = nil },
			wantMsg: "initial_balances",
		},
		{
			name:    "negative balance",
			mutate:  func(c *Config) { c.Backtest.InitialBalances = map[string]float64{"USDT": -1} },
			wantMsg: "must not be negative",
		},
		{
			name:    "no exchanges",
			mutate:  func(c *Config) { c.Universe.Exchanges = nil },
			wantMsg: "exchanges",
		},
		{
			name:    "no symbols",
			mutate:  func(c *Config) { c.Universe.Symbols = nil },
			wantMsg: "symbols",
		},
		{
			name:    "symbol without separator",
			mutate:  func(c *Config) { c.Universe.Symbols = []string{"BTCUSDT"} },
			wantMsg: "BASE/QUOTE",
		},
		{
			name:    "fill probability above one",
			mutate:  func(c *Config) { c.Fill.Probability = 1.5 },
			wantMsg: "probability",
		},
		{
			name:    "zero min partial",
			mutate:  func(c *Config) { c.Fill.MinPartialPct = 0 },
			wantMsg: "min_partial_pct",
		},
		{
			name:    "zero snapshot interval",
			mutate:  func(c *Config) { c.Backtest.SnapshotInterval = 0 },
			wantMsg: "snapshot_interval",
		},
		{
			name:    "zero position limit",
			mutate:  func(c *Config) { c.Risk.MaxPositionNotional = 0 },
			wantMsg: "max_position_notional",
		},
		{
			name:    "latency enabled without base",
			mutate:  func(c *Config) { c.Latency.Default.BaseMs = 0 },
			wantMsg: "base_ms",
		},
		{
			name: "slippage enabled without half-life",
			mutate: func(c *Config) {
				c.Slippage.DecayHalfLife.Duration = 0
			},
			wantMsg: "decay_half_life",
		},
		{
			name:    "unknown source kind",
			mutate:  func(c *Config) { c.Source.Kind = "csv" },
			wantMsg: "kind",
		},
		{
			name: "publish without channel",
			mutate: func(c *Config) {
				c.Source.PublishSummary = true
				c.Redis.Channel = ""
			},
			wantMsg: "channel",
		},
		{
			name: "s3 source without bucket",
			mutate: func(c *Config) {
				c.Source.Kind = "s3"
				c.S3.Bucket = ""
			},
			wantMsg: "bucket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "verbose"
	cfg.Universe.Exchanges = nil
	cfg.Fill.Probability = 2

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"log_level", "exchanges", "probability"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("combined error missing %q: %v", want, err)
		}
	}
}

func TestWindowAcceptsBothDateForms(t *testing.T) {
	b := BacktestConfig{StartDate: "2024-01-02", EndDate: "2024-01-03T06:30:00Z"}
	start, end, err := b.Window()
	if err != nil {
		t.Fatal(err)
	}
	if !start.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2024, 1, 3, 6, 30, 0, 0, time.UTC)) {
		t.Errorf("end = %v", end)
	}
}

func TestDurationText(t *testing.T) {
	var d duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatal(err)
	}
	if d.Duration != 90*time.Second {
		t.Fatalf("duration = %v, want 90s", d.Duration)
	}
	if err := d.UnmarshalText([]byte("ninety")); err == nil {
		t.Fatal("invalid duration must fail to parse")
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
log_level = "debug"

[backtest]
start_date = "2024-03-01"
end_date = "2024-03-08"
seed = 7
min_spread_pct = 0.25

[universe]
exchanges = ["binance", "kraken", "coinbase"]
symbols = ["ETH/USDT"]

[slippage]
decay_half_life = "2m"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" || cfg.Backtest.Seed != 7 {
		t.Fatalf("file values not applied: %+v", cfg.Backtest)
	}
	if cfg.Backtest.MinSpreadPct != 0.25 {
		t.Fatalf("min_spread_pct = %g", cfg.Backtest.MinSpreadPct)
	}
	if len(cfg.Universe.Exchanges) != 3 {
		t.Fatalf("exchanges = %v", cfg.Universe.Exchanges)
	}
	if cfg.Slippage.DecayHalfLife.Duration != 2*time.Minute {
		t.Fatalf("decay_half_life = %v", cfg.Slippage.DecayHalfLife.Duration)
	}
	// Untouched sections keep their defaults.
	if cfg.Fill.Probability != 0.95 {
		t.Fatalf("fill defaults lost: %+v", cfg.Fill)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("ARBSIM_BACKTEST_SEED", "99")
	t.Setenv("ARBSIM_UNIVERSE_EXCHANGES", "okx, bybit")
	t.Setenv("ARBSIM_SOURCE_KIND", "postgres")
	t.Setenv("ARBSIM_POSTGRES_PASSWORD", "sekrit")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backtest.Seed != 99 {
		t.Errorf("seed = %d, want 99", cfg.Backtest.Seed)
	}
	if len(cfg.Universe.Exchanges) != 2 || cfg.Universe.Exchanges[0] != "okx" || cfg.Universe.Exchanges[1] != "bybit" {
		t.Errorf("exchanges = %v", cfg.Universe.Exchanges)
	}
	if cfg.Source.Kind != "postgres" || cfg.Postgres.Password != "sekrit" {
		t.Errorf("source overrides not applied: %+v %+v", cfg.Source, cfg.Postgres)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("loading a missing file must fail")
	}
}
