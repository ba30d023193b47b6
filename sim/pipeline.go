package sim

import (
	"sync/atomic"

	"github.com/pthm-cable/sph/components"
	"github.com/pthm-cable/sph/systems"
	"github.com/pthm-cable/sph/telemetry"
)

// step runs every stage of one tick in order. Each pool.Run returns only
// after the whole range is done, so no stage sees another's partial writes.
// Returns the number of stage results reset for non-finite values; a
// particle reset by several stages counts once per stage.
func (s *Simulation) step(dt float32, box components.Boundary, obs *components.Obstacle) int {
	particles := s.particles
	grid := s.grid
	fluid := &s.fluid
	n := len(particles)
	padded := len(grid.Entries)

	var degenerate atomic.Int64
	count := func(k int) {
		if k > 0 {
			degenerate.Add(int64(k))
		}
	}

	if s.perf != nil {
		s.perf.StartTick()
		defer s.perf.EndTick()
	}

	// The look-ahead left by the previous tick was taken with its dt.
	// Refresh it so hashing and density agree on cell membership.
	if dt != s.lastDT {
		s.phase(telemetry.PhasePredict)
		s.pool.Run(n, func(i0, i1 int) {
			systems.PredictRange(particles, dt, i0, i1)
		})
		s.lastDT = dt
	}

	s.phase(telemetry.PhaseHash)
	s.pool.Run(padded, func(i0, i1 int) {
		grid.Hasher.HashRange(particles, grid.Entries, i0, i1)
	})

	s.phase(telemetry.PhaseSort)
	for _, pass := range s.passes {
		s.pool.Run(padded, func(i0, i1 int) {
			systems.BitonicStep(grid.Entries, pass, i0, i1)
		})
	}

	s.phase(telemetry.PhaseOffsets)
	s.pool.Run(grid.Offsets.Len(), grid.Offsets.ClearRange)
	s.pool.Run(padded, func(i0, i1 int) {
		grid.Offsets.BuildRange(grid.Entries, i0, i1)
	})

	s.phase(telemetry.PhasePredict)
	s.pool.Run(n, func(i0, i1 int) {
		systems.PredictRange(particles, dt, i0, i1)
	})

	s.phase(telemetry.PhaseDensity)
	s.pool.Run(n, func(i0, i1 int) {
		systems.DensityRange(particles, grid, fluid, i0, i1)
	})

	s.phase(telemetry.PhasePressure)
	s.pool.Run(n, func(i0, i1 int) {
		count(systems.PressureRange(particles, grid, fluid, dt, i0, i1))
	})

	s.phase(telemetry.PhaseViscosity)
	prev := s.prevVel
	s.pool.Run(n, func(i0, i1 int) {
		systems.CopyVelocities(particles, prev, i0, i1)
	})
	s.pool.Run(n, func(i0, i1 int) {
		count(systems.ViscosityRange(particles, prev, grid, fluid, dt, i0, i1))
	})

	s.phase(telemetry.PhaseExternal)
	s.pool.Run(n, func(i0, i1 int) {
		count(systems.ExternalRange(particles, fluid, dt, box, obs, i0, i1))
	})

	return int(degenerate.Load())
}

func (s *Simulation) phase(name string) {
	if s.perf != nil {
		s.perf.StartPhase(name)
	}
}
