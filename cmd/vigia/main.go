package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/opsdesk/vigia/internal/config"
	"github.com/opsdesk/vigia/internal/db"
	"github.com/opsdesk/vigia/internal/history"
	"github.com/opsdesk/vigia/internal/schedule"
)

func main() {
	configFile := flag.String("config", "", "Path to configuration file (TOML)")
	flag.Parse()

	// Bootstrap logger; replaced once the config says what level/format to use.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	slog.Info("starting vigia reporting bot")

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger = newLogger(cfg.Logging)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("failed to load timezone", "error", err, "timezone", cfg.Timezone)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"timezone", cfg.Timezone,
		"tick_interval", cfg.Runner.TickInterval,
		"gate_target", cfg.Gate.Host,
		"jobs", len(cfg.Jobs))

	sched := schedule.New(logger)

	if cfg.History.Enabled {
		store, err := history.Open(db.Config{
			Driver: "sqlite3",
			DSN:    cfg.History.DSN,
		}, cfg.History.BufferSize, logger)
		if err != nil {
			slog.Error("failed to open run history", "error", err, "dsn", cfg.History.DSN)
			os.Exit(1)
		}
		defer store.Close()

		sched.SetRecorder(store.Record)
		slog.Info("run history enabled", "dsn", cfg.History.DSN)
	}

	if err := registerJobs(cfg, loc, sched, logger); err != nil {
		slog.Error("failed to build jobs", "error", err)
		os.Exit(1)
	}

	// SIGINT/SIGTERM cancel the context, which interrupts any in-progress
	// connectivity wait and stops the runner between jobs.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := schedule.NewRunner(sched, cfg.Runner.TickInterval, logger)
	runner.Run(ctx)

	slog.Info("vigia stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
