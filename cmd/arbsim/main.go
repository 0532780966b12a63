// Command arbsim replays historical cross-exchange market data through the
// arbitrage backtesting engine. It loads configuration, validates it, wires
// dependencies, sets up signal handling, and prints the run summary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/arbsim/internal/app"
	"github.com/alanyoungcy/arbsim/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// A run must not start on an invalid configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("arbsim starting",
		slog.String("config", *configPath),
		slog.String("source", cfg.Source.Kind),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := application.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("backtest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if result != nil {
		s := result.Summary
		fmt.Printf("run %s\n", result.RunID)
		fmt.Printf("  window          %s → %s\n", s.StartTime.Format("2006-01-02"), s.EndTime.Format("2006-01-02"))
		fmt.Printf("  total return    %+.4f%%\n", s.TotalReturnPct)
		fmt.Printf("  annualized      %+.4f%%\n", s.AnnualizedReturnPct)
		fmt.Printf("  volatility      %.4f%%\n", s.VolatilityPct)
		fmt.Printf("  sharpe          %.4f\n", s.SharpeRatio)
		fmt.Printf("  max drawdown    %.4f%%\n", s.MaxDrawdownPct)
		fmt.Printf("  VaR(95)         %.4f%%\n", s.VaR95Pct)
		fmt.Printf("  realized pnl    %+.2f\n", s.RealizedPnL)
		fmt.Printf("  fees paid       %.2f\n", s.TotalFees)
		fmt.Printf("  signals/orders  %d / %d\n", s.NumSignals, s.NumOrders)
		fmt.Printf("  trades          %d (fill rate %.1f%%, win rate %.1f%%)\n",
			s.NumTrades, s.FillRate*100, s.WinRate*100)
	}

	if errors.Is(err, context.Canceled) {
		logger.Info("backtest cancelled, partial results reported")
	}
}
