// Package game drives a fluid run: it owns the scene, steps the simulation
// and routes per-window telemetry to logs, callbacks and CSV output.
package game

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pthm-cable/sph/components"
	"github.com/pthm-cable/sph/config"
	"github.com/pthm-cable/sph/scene"
	"github.com/pthm-cable/sph/sim"
	"github.com/pthm-cable/sph/telemetry"
)

// Options configures a run.
type Options struct {
	Config         *config.Config // nil = embedded defaults; copied, never modified
	Seed           int64          // 0 = keep the config's spawn seed
	RunID          string         // empty = random UUID
	LogStats       bool
	StatsWindowSec float64 // 0 = use config
	OutputDir      string  // empty = no CSV output
	Probe          bool    // force the probe on regardless of config
	StatsCallback  func(telemetry.WindowStats)
}

// Game holds the complete run state.
type Game struct {
	cfg   *config.Config
	runID string

	sim   *sim.Simulation
	scene *scene.Scene
	dt    float32
	tick  int64

	// Telemetry
	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	bookmarkDetector *telemetry.BookmarkDetector
	outputManager    *telemetry.OutputManager
	statsCallback    func(telemetry.WindowStats)
	logStats         bool

	lastStats telemetry.WindowStats
}

// NewGameWithOptions builds the scene and simulation for a run.
func NewGameWithOptions(opts Options) (*Game, error) {
	cfg := config.Default()
	if opts.Config != nil {
		c := *opts.Config
		cfg = &c
	}
	if opts.Seed != 0 {
		cfg.Spawn.Seed = opts.Seed
	}
	if opts.Probe {
		cfg.Probe.Enabled = true
	}
	cfg.Refresh()

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	statsWindow := cfg.Telemetry.StatsWindow
	if opts.StatsWindowSec > 0 {
		statsWindow = opts.StatsWindowSec
	}

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)
	logger := slog.Default().With("run_id", runID)

	s, err := sim.New(cfg, sim.WithLogger(logger), sim.WithPerfCollector(perf))
	if err != nil {
		return nil, fmt.Errorf("creating simulation: %w", err)
	}

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		s.Close()
		return nil, err
	}
	if err := om.WriteConfig(cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}

	g := &Game{
		cfg:              cfg,
		runID:            runID,
		sim:              s,
		scene:            scene.New(cfg),
		dt:               cfg.Derived.DT32,
		collector:        telemetry.NewCollector(runID, statsWindow, cfg.Derived.DT32, cfg.Fluid.ParticleMass, cfg.Fluid.RestDensity),
		perfCollector:    perf,
		bookmarkDetector: telemetry.NewBookmarkDetector(10),
		outputManager:    om,
		statsCallback:    opts.StatsCallback,
		logStats:         opts.LogStats,
	}

	logger.Info("run created",
		"particles", s.Len(),
		"padded", cfg.Derived.PaddedCount,
		"dt", g.dt,
		"stats_window", statsWindow,
		"probe", cfg.Probe.Enabled,
		"output_dir", om.Dir(),
	)
	return g, nil
}

// UpdateHeadless advances the scene and the fluid by one tick.
func (g *Game) UpdateHeadless(ctx context.Context) error {
	g.scene.Update(g.dt)

	if err := g.sim.RunTick(ctx, g.dt, g.scene.Boundary(), g.scene.Obstacle()); err != nil {
		return err
	}
	g.tick++
	g.collector.RecordDegenerate(g.sim.LastTick().Degenerate)

	return g.flushTelemetry()
}

// Scene exposes the host scene so callers can resize the box or steer the probe.
func (g *Game) Scene() *scene.Scene {
	return g.scene
}

// Snapshot returns a copy of the particle state.
func (g *Game) Snapshot() ([]components.Particle, error) {
	return g.sim.Snapshot()
}

// LastStats returns the most recently flushed window.
func (g *Game) LastStats() telemetry.WindowStats {
	return g.lastStats
}

// RunID returns the identifier stamped on this run's telemetry.
func (g *Game) RunID() string {
	return g.runID
}

// Tick returns the number of completed ticks.
func (g *Game) Tick() int64 {
	return g.tick
}

// Unload releases the simulation and closes output files.
func (g *Game) Unload() {
	if err := g.sim.Close(); err != nil {
		slog.Error("failed to close simulation", "error", err)
	}
	if err := g.outputManager.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
}
