package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBSIM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBSIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject connection secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Backtest ──
	setStr(&cfg.Backtest.StartDate, "ARBSIM_BACKTEST_START_DATE")
	setStr(&cfg.Backtest.EndDate, "ARBSIM_BACKTEST_END_DATE")
	setStr(&cfg.Backtest.Strategy, "ARBSIM_BACKTEST_STRATEGY")
	setFloat64(&cfg.Backtest.MinSpreadPct, "ARBSIM_BACKTEST_MIN_SPREAD_PCT")
	setInt(&cfg.Backtest.SnapshotInterval, "ARBSIM_BACKTEST_SNAPSHOT_INTERVAL")
	setInt64(&cfg.Backtest.Seed, "ARBSIM_BACKTEST_SEED")

	// ── Universe ──
	setStringSlice(&cfg.Universe.Exchanges, "ARBSIM_UNIVERSE_EXCHANGES")
	setStringSlice(&cfg.Universe.Symbols, "ARBSIM_UNIVERSE_SYMBOLS")

	// ── Models ──
	setBool(&cfg.Latency.Enabled, "ARBSIM_LATENCY_ENABLED")
	setBool(&cfg.Slippage.Enabled, "ARBSIM_SLIPPAGE_ENABLED")
	setFloat64(&cfg.Fill.Probability, "ARBSIM_FILL_PROBABILITY")
	setFloat64(&cfg.Fill.MinPartialPct, "ARBSIM_FILL_MIN_PARTIAL_PCT")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxPositionNotional, "ARBSIM_RISK_MAX_POSITION_NOTIONAL")
	setFloat64(&cfg.Risk.MaxDailyLoss, "ARBSIM_RISK_MAX_DAILY_LOSS")

	// ── Source ──
	setStr(&cfg.Source.Kind, "ARBSIM_SOURCE_KIND")
	setBool(&cfg.Source.SaveResults, "ARBSIM_SOURCE_SAVE_RESULTS")
	setBool(&cfg.Source.PublishSummary, "ARBSIM_SOURCE_PUBLISH_SUMMARY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARBSIM_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBSIM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBSIM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBSIM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBSIM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBSIM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBSIM_POSTGRES_SSLMODE")
	setBool(&cfg.Postgres.RunMigrations, "ARBSIM_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBSIM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBSIM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBSIM_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "ARBSIM_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Channel, "ARBSIM_REDIS_CHANNEL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBSIM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBSIM_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBSIM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBSIM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBSIM_S3_SECRET_KEY")
	setStr(&cfg.S3.Prefix, "ARBSIM_S3_PREFIX")
	setBool(&cfg.S3.UseSSL, "ARBSIM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBSIM_S3_FORCE_PATH_STYLE")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ARBSIM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
