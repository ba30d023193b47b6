package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/pthm-cable/sph/config"
	"github.com/pthm-cable/sph/game"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "Spawn jitter seed (0 = use config)")
	maxTicks := flag.Int("max-ticks", 2000, "Stop after N ticks (0 = until interrupted)")
	probe := flag.Bool("probe", false, "Enable the orbiting probe sphere")
	debug := flag.Bool("debug", false, "Enable debug logging")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	g, err := game.NewGameWithOptions(game.Options{
		Config:         cfg,
		Seed:           *seed,
		LogStats:       *logStats,
		StatsWindowSec: *statsWindow,
		OutputDir:      *outputDir,
		Probe:          *probe,
	})
	if err != nil {
		slog.Error("failed to create simulation", "error", err)
		os.Exit(1)
	}
	defer g.Unload()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	slog.Info("starting headless simulation",
		"run_id", g.RunID(),
		"max_ticks", *maxTicks,
	)

	for {
		if err := g.UpdateHeadless(ctx); err != nil {
			if ctx.Err() != nil {
				slog.Info("interrupted", "tick", g.Tick())
				return
			}
			slog.Error("tick failed", "tick", g.Tick(), "error", err)
			return
		}

		if *maxTicks > 0 && g.Tick() >= int64(*maxTicks) {
			slog.Info("max ticks reached", "tick", g.Tick(), "final", g.LastStats())
			return
		}
	}
}
