// Package sim owns the particle store and runs the SPH pipeline over it one
// tick at a time.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sph/components"
	"github.com/pthm-cable/sph/config"
	"github.com/pthm-cable/sph/systems"
	"github.com/pthm-cable/sph/telemetry"
)

var (
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("simulation closed")
	// ErrInvalidTimeStep is returned by RunTick for a non-positive or non-finite step.
	ErrInvalidTimeStep = errors.New("invalid time step")
	// ErrInvalidBoundary is returned by RunTick for a box with negative or non-finite extents.
	ErrInvalidBoundary = errors.New("invalid boundary")
	// ErrInvalidObstacle is returned by RunTick for an obstacle with a non-finite
	// center or velocity, or a radius that is not positive.
	ErrInvalidObstacle = errors.New("invalid obstacle")
)

// Option configures a Simulation.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	perf          *telemetry.PerfCollector
	workers       int
	workGroupSize int
}

// WithLogger sets the logger used for diagnostics. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithPerfCollector records per-phase timings of every tick into pc.
func WithPerfCollector(pc *telemetry.PerfCollector) Option {
	return func(o *options) { o.perf = pc }
}

// WithWorkers sets the worker count. 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithWorkGroupSize sets the granularity the sort array is padded to.
func WithWorkGroupSize(n int) Option {
	return func(o *options) { o.workGroupSize = n }
}

// TickResult summarizes one tick.
type TickResult struct {
	Tick       int64
	// Degenerate counts stage results reset after a non-finite value. The
	// pressure, viscosity and external stages count separately, so a particle
	// reset by more than one of them in a tick is counted once per stage.
	Degenerate int
}

// Simulation is a fixed-size particle fluid. RunTick, Snapshot and Close may
// be called from any goroutine; ticks are serialized.
type Simulation struct {
	mu     sync.Mutex
	closed bool

	fluid     systems.Fluid
	particles []components.Particle
	grid      *systems.SpatialGrid
	passes    []systems.SortPass
	prevVel   []mgl32.Vec3 // viscosity double buffer
	lastDT    float32

	pool   *workerPool
	logger *slog.Logger
	perf   *telemetry.PerfCollector

	tick int64
	last TickResult
}

// New validates cfg, spawns its particle lattice and prepares the pipeline.
func New(cfg *config.Config, opts ...Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Spawn.Seed))
	particles := SpawnLattice(cfg.Spawn, cfg.Fluid.ParticleRadius, rng)

	opts = append([]Option{
		WithWorkers(cfg.Parallel.Workers),
		WithWorkGroupSize(cfg.Parallel.WorkGroupSize),
	}, opts...)
	return NewWithParticles(cfg.Fluid, particles, opts...)
}

// NewWithParticles builds a simulation over an explicit initial state. The
// slice is copied.
func NewWithParticles(fluid config.FluidConfig, particles []components.Particle, opts ...Option) (*Simulation, error) {
	o := options{workGroupSize: 64}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if err := fluid.Validate(); err != nil {
		return nil, err
	}
	if err := config.ValidateSizing(len(particles), o.workGroupSize); err != nil {
		return nil, err
	}
	for i := range particles {
		if !finiteVec(particles[i].Position) || !finiteVec(particles[i].Velocity) {
			return nil, fmt.Errorf("%w: particle %d has a non-finite position or velocity", config.ErrInvalidConfig, i)
		}
	}

	n := len(particles)
	padded := config.PaddedLength(n, o.workGroupSize)
	store := make([]components.Particle, n)
	copy(store, particles)

	f := systems.NewFluid(fluid)
	s := &Simulation{
		fluid:     f,
		particles: store,
		grid:      systems.NewSpatialGrid(f.Kernels.Radius(), n, padded),
		passes:    systems.BitonicPasses(padded),
		prevVel:   make([]mgl32.Vec3, n),
		pool:      newWorkerPool(o.workers),
		logger:    o.logger,
		perf:      o.perf,
	}

	s.logger.Debug("simulation created",
		"particles", n,
		"padded", padded,
		"sort_passes", len(s.passes),
		"workers", s.pool.numWorkers,
	)
	return s, nil
}

// RunTick advances the fluid by dt. The context is only checked before the
// first stage; once started, a tick always runs to completion.
func (s *Simulation) RunTick(ctx context.Context, dt float32, boundary components.Boundary, obstacle *components.Obstacle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !(dt > 0) || math.IsInf(float64(dt), 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTimeStep, dt)
	}
	if !finiteVec(boundary.Center) || !finiteVec(boundary.HalfExtents) ||
		boundary.HalfExtents[0] < 0 || boundary.HalfExtents[1] < 0 || boundary.HalfExtents[2] < 0 {
		return fmt.Errorf("%w: center %v half extents %v", ErrInvalidBoundary, boundary.Center, boundary.HalfExtents)
	}

	var obs *components.Obstacle
	if obstacle != nil {
		o := *obstacle
		if !finiteVec(o.Center) || !finiteVec(o.Velocity) ||
			!(o.Radius > 0) || math.IsInf(float64(o.Radius), 0) {
			return fmt.Errorf("%w: center %v velocity %v radius %v", ErrInvalidObstacle, o.Center, o.Velocity, o.Radius)
		}
		obs = &o
	}

	degenerate := s.step(dt, boundary, obs)

	s.tick++
	s.last = TickResult{Tick: s.tick, Degenerate: degenerate}
	if degenerate > 0 {
		s.logger.Debug("degenerate particles reset", "tick", s.tick, "count", degenerate)
	}
	return nil
}

// Snapshot returns a copy of the particle store as of the last completed tick.
func (s *Simulation) Snapshot() ([]components.Particle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	out := make([]components.Particle, len(s.particles))
	copy(out, s.particles)
	return out, nil
}

// Positions returns a copy of the committed particle positions.
func (s *Simulation) Positions() ([]mgl32.Vec3, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	out := make([]mgl32.Vec3, len(s.particles))
	for i := range s.particles {
		out[i] = s.particles[i].Position
	}
	return out, nil
}

// Len returns the number of particles.
func (s *Simulation) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.particles)
}

// LastTick reports the result of the most recent tick.
func (s *Simulation) LastTick() TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Close stops the workers and releases the store. Calling it twice is a no-op.
func (s *Simulation) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.pool.stop()
	s.closed = true
	s.particles = nil
	s.prevVel = nil
	s.grid = nil
	return nil
}

func finiteVec(v mgl32.Vec3) bool {
	for _, c := range v {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
