package sim

import (
	"context"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/sph/components"
	"github.com/pthm-cable/sph/config"
)

// weightless returns the default material with gravity switched off.
func weightless() config.FluidConfig {
	f := config.Default().Fluid
	f.Gravity = 0
	return f
}

func nan32() float32 { return float32(math.NaN()) }

func inf32() float32 { return float32(math.Inf(1)) }

func wideBox() components.Boundary {
	return components.Boundary{HalfExtents: mgl32.Vec3{5, 5, 5}}
}

func cube(center mgl32.Vec3, half float32) []components.Particle {
	var out []components.Particle
	for _, x := range []float32{-half, half} {
		for _, y := range []float32{-half, half} {
			for _, z := range []float32{-half, half} {
				p := center.Add(mgl32.Vec3{x, y, z})
				out = append(out, components.Particle{Position: p, PredictedPosition: p})
			}
		}
	}
	return out
}

func TestNew_DefaultConfig(t *testing.T) {
	s, err := New(config.Default())
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 1000, s.Len())
	assert.Equal(t, TickResult{}, s.LastTick())
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Fluid.SmoothingRadius = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewWithParticles_RejectsBadInput(t *testing.T) {
	_, err := NewWithParticles(weightless(), nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig, "empty store")

	nan := float32(math.NaN())
	bad := []components.Particle{{Position: mgl32.Vec3{0, nan, 0}}}
	_, err = NewWithParticles(weightless(), bad)
	assert.ErrorIs(t, err, config.ErrInvalidConfig, "non-finite position")

	tiny := weightless()
	tiny.SmoothingRadius = 1e-46
	tiny.ParticleRadius = 1e-47
	_, err = NewWithParticles(tiny, cube(mgl32.Vec3{}, 0.05))
	assert.ErrorIs(t, err, config.ErrInvalidConfig, "smoothing radius zero in float32")

	_, err = NewWithParticles(weightless(), cube(mgl32.Vec3{}, 0.05), WithWorkGroupSize(48))
	assert.ErrorIs(t, err, config.ErrInvalidConfig, "work group not a power of two")
}

func TestNewWithParticles_CopiesInput(t *testing.T) {
	in := cube(mgl32.Vec3{}, 0.05)
	s, err := NewWithParticles(weightless(), in)
	require.NoError(t, err)
	defer s.Close()

	in[0].Position = mgl32.Vec3{100, 100, 100}
	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.NotEqual(t, in[0].Position, snap[0].Position)
}

func TestRunTick_ValidatesArguments(t *testing.T) {
	s, err := NewWithParticles(weightless(), cube(mgl32.Vec3{}, 0.05))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	for _, dt := range []float32{0, -0.01, float32(math.NaN()), float32(math.Inf(1))} {
		assert.ErrorIs(t, s.RunTick(ctx, dt, wideBox(), nil), ErrInvalidTimeStep, "dt=%v", dt)
	}

	negative := components.Boundary{HalfExtents: mgl32.Vec3{1, -1, 1}}
	assert.ErrorIs(t, s.RunTick(ctx, 0.01, negative, nil), ErrInvalidBoundary)

	obstacles := []struct {
		name string
		obs  components.Obstacle
	}{
		{"NaN center", components.Obstacle{Center: mgl32.Vec3{nan32(), 0, 0}, Radius: 0.2}},
		{"infinite velocity", components.Obstacle{Velocity: mgl32.Vec3{0, inf32(), 0}, Radius: 0.2}},
		{"negative radius", components.Obstacle{Radius: -0.3}},
		{"zero radius", components.Obstacle{}},
		{"NaN radius", components.Obstacle{Radius: nan32()}},
		{"infinite radius", components.Obstacle{Radius: inf32()}},
	}
	for _, tt := range obstacles {
		assert.ErrorIs(t, s.RunTick(ctx, 0.01, wideBox(), &tt.obs), ErrInvalidObstacle, tt.name)
	}

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, cube(mgl32.Vec3{}, 0.05)[0].Position, snap[0].Position, "rejected obstacle must not move particles")

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.RunTick(canceled, 0.01, wideBox(), nil), context.Canceled)

	assert.Equal(t, int64(0), s.LastTick().Tick, "rejected calls must not advance the tick")
}

func TestRunTick_ParticleCountUnchanged(t *testing.T) {
	cfg := config.Default()
	cfg.Spawn.Counts = [3]int{6, 6, 6}
	cfg.Parallel.WorkGroupSize = 64
	cfg.Refresh()

	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	box := components.BoundaryFromSize(mgl32.Vec3{0, 1.5, 0}, mgl32.Vec3{2, 3, 2})
	for i := 0; i < 10; i++ {
		require.NoError(t, s.RunTick(context.Background(), 0.005, box, nil))
	}

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap, 216)
	assert.Equal(t, int64(10), s.LastTick().Tick)
}

func TestRunTick_BoxClampDampsVelocity(t *testing.T) {
	p := mgl32.Vec3{4.95, 0, 0}
	s, err := NewWithParticles(weightless(), []components.Particle{{
		Position:          p,
		PredictedPosition: p,
		Velocity:          mgl32.Vec3{10, 0, 0},
	}})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RunTick(context.Background(), 0.1, wideBox(), nil))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.InDelta(t, 5, snap[0].Position[0], 1e-6)
	assert.InDelta(t, -5, snap[0].Velocity[0], 1e-5)
	assert.InDelta(t, 4.5, snap[0].PredictedPosition[0], 1e-5)
}

func TestRunTick_ObstaclePushesParticleOut(t *testing.T) {
	p := mgl32.Vec3{0, 0, 0}
	s, err := NewWithParticles(weightless(), []components.Particle{{Position: p, PredictedPosition: p}})
	require.NoError(t, err)
	defer s.Close()

	obs := &components.Obstacle{Center: mgl32.Vec3{0, -0.05, 0}, Radius: 0.2}
	require.NoError(t, s.RunTick(context.Background(), 0.01, wideBox(), obs))

	pos, err := s.Positions()
	require.NoError(t, err)
	assert.InDelta(t, 0.15, pos[0][1], 1e-5)
	assert.InDelta(t, 0, pos[0][0], 1e-6)
}

func TestRunTick_SymmetricClusterConservesMomentum(t *testing.T) {
	s, err := NewWithParticles(weightless(), cube(mgl32.Vec3{}, 0.05))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RunTick(context.Background(), 0.005, wideBox(), nil))

	snap, err := s.Snapshot()
	require.NoError(t, err)

	var total mgl32.Vec3
	var speeds float32
	for _, p := range snap {
		total = total.Add(p.Velocity)
		speeds += p.Velocity.Len()
		// Compressed well above rest density, so every particle moves outward.
		assert.Greater(t, p.Velocity.Dot(p.Position), float32(0))
	}
	require.Greater(t, speeds, float32(0))
	assert.Less(t, total.Len(), 1e-3*speeds+1e-6, "net momentum %v", total)
}

func TestRunTick_WorkerCountDoesNotChangeResult(t *testing.T) {
	run := func(workers int) []components.Particle {
		cfg := config.Default()
		cfg.Spawn.Counts = [3]int{8, 8, 8}
		cfg.Parallel.WorkGroupSize = 64
		cfg.Parallel.Workers = workers
		cfg.Refresh()

		s, err := New(cfg)
		require.NoError(t, err)
		defer s.Close()

		box := components.BoundaryFromSize(mgl32.Vec3{0, 1.5, 0}, mgl32.Vec3{2, 3, 2})
		obs := &components.Obstacle{Center: mgl32.Vec3{0, 1.2, 0}, Velocity: mgl32.Vec3{1, 0, 0}, Radius: 0.2}
		for i := 0; i < 25; i++ {
			require.NoError(t, s.RunTick(context.Background(), 0.005, box, obs))
		}
		snap, err := s.Snapshot()
		require.NoError(t, err)
		return snap
	}

	assert.Equal(t, run(1), run(4))
}

func TestRunTick_FluidSettlesInsideBox(t *testing.T) {
	if testing.Short() {
		t.Skip("long-running settle test")
	}

	const (
		ticks       = 2000
		sampleEvery = 200
		heightSlack = 0.02  // allowed rise between samples while sloshing
		settledKE   = 0.005 // kinetic energy per particle once settled
	)

	cfg := config.Default()
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	box := components.BoundaryFromSize(mgl32.Vec3{0, 1.5, 0}, mgl32.Vec3{2, 3, 2})
	dt := cfg.Derived.DT32
	mass := cfg.Fluid.ParticleMass

	var heights, energies []float64
	sample := func() {
		snap, err := s.Snapshot()
		require.NoError(t, err)
		require.Len(t, snap, 1000)

		var sumY, ke float64
		for i, p := range snap {
			for a := 0; a < 3; a++ {
				require.False(t, math.IsNaN(float64(p.Position[a])) || math.IsInf(float64(p.Position[a]), 0), "particle %d not finite", i)
			}
			require.True(t, box.Contains(p.Position), "particle %d escaped: %v", i, p.Position)
			sumY += float64(p.Position[1])
			v := float64(p.Velocity.Len())
			ke += 0.5 * mass * v * v
		}
		heights = append(heights, sumY/float64(len(snap)))
		energies = append(energies, ke/float64(len(snap)))
	}

	sample()
	for i := 1; i <= ticks; i++ {
		require.NoError(t, s.RunTick(context.Background(), dt, box, nil))
		assert.Zero(t, s.LastTick().Degenerate, "tick %d", i)
		if i%sampleEvery == 0 {
			sample()
		}
	}

	// Mean height only falls, up to small sloshing, and ends near the floor.
	for i := 1; i < len(heights); i++ {
		assert.LessOrEqual(t, heights[i], heights[i-1]+heightSlack,
			"mean height rose between samples %d and %d: %v", i-1, i, heights)
	}
	assert.Less(t, heights[len(heights)-1], heights[0]/2, "heights %v", heights)

	// Kinetic energy peaks around impact, never exceeds that peak again and
	// decays to a small residual.
	peak := 0
	for i, e := range energies {
		if e > energies[peak] {
			peak = i
		}
	}
	require.Greater(t, energies[peak], 0.0)
	for i := peak + 1; i < len(energies); i++ {
		assert.LessOrEqual(t, energies[i], energies[peak], "energy %d above peak: %v", i, energies)
	}
	for _, e := range energies[len(energies)-3:] {
		assert.Less(t, e, settledKE, "fluid still moving: %v", energies)
		assert.Less(t, e, 0.05*energies[peak], "energy did not decay: %v", energies)
	}
}

// A particle whose velocity is already non-finite is reset by the pressure
// stage and reported; the rest of the cluster is unaffected.
func TestRunTick_ReportsStageResets(t *testing.T) {
	s, err := NewWithParticles(weightless(), cube(mgl32.Vec3{}, 0.05))
	require.NoError(t, err)
	defer s.Close()

	s.particles[0].Velocity = mgl32.Vec3{nan32(), 0, 0}

	require.NoError(t, s.RunTick(context.Background(), 0.005, wideBox(), nil))
	assert.Equal(t, 1, s.LastTick().Degenerate)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	for i, p := range snap {
		assert.True(t, finiteVec(p.Position) && finiteVec(p.Velocity) && finiteVec(p.PredictedPosition),
			"particle %d not finite: %+v", i, p)
	}

	require.NoError(t, s.RunTick(context.Background(), 0.005, wideBox(), nil))
	assert.Zero(t, s.LastTick().Degenerate, "reset particle recovers on the next tick")
}

func TestClose(t *testing.T) {
	s, err := NewWithParticles(weightless(), cube(mgl32.Vec3{}, 0.05))
	require.NoError(t, err)

	require.NoError(t, s.RunTick(context.Background(), 0.01, wideBox(), nil))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	assert.ErrorIs(t, s.RunTick(context.Background(), 0.01, wideBox(), nil), ErrClosed)
	_, err = s.Snapshot()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Positions()
	assert.ErrorIs(t, err, ErrClosed)
}
