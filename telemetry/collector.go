package telemetry

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/sph/components"
)

// Collector accumulates per-tick counters within time windows and produces
// WindowStats.
type Collector struct {
	runID               string
	windowDurationSec   float64
	windowDurationTicks int64
	dt                  float32

	// Material constants for energy and density error
	mass        float64
	restDensity float64

	// Current window tracking
	windowStartTick int64

	// Event counters for current window
	degenerate int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(runID string, windowDurationSec float64, dt float32, mass, restDensity float64) *Collector {
	ticksPerWindow := int64(math.Round(windowDurationSec / float64(dt)))
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		runID:               runID,
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
		mass:                mass,
		restDensity:         restDensity,
	}
}

// RecordDegenerate adds the stage resets reported for a tick.
func (c *Collector) RecordDegenerate(n int) {
	c.degenerate += n
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats from a snapshot taken at currentTick and
// resets counters for the next window.
func (c *Collector) Flush(currentTick int64, particles []components.Particle, box components.Boundary) WindowStats {
	sample := SampleParticles(particles, box)

	heightMean, _, _, _ := ComputeDistribution(sample.Heights)
	densityMean, densityStd, _, _ := ComputeDistribution(sample.Densities)
	speedMean, _, speedP50, speedP90 := ComputeDistribution(sample.Speeds)

	stats := WindowStats{
		RunID:           c.runID,
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * float64(c.dt),

		Particles: len(particles),

		MeanHeight: heightMean,

		DensityMean:  densityMean,
		DensityStd:   densityStd,
		DensityError: DensityError(sample.Densities, c.restDensity),

		SpeedMean: speedMean,
		SpeedP50:  speedP50,
		SpeedP90:  speedP90,

		KineticEnergy: KineticEnergy(sample.Speeds, c.mass),

		Degenerate: c.degenerate,
		Escaped:    sample.Escaped,
	}
	if len(particles) > 0 {
		stats.MinHeight = floats.Min(sample.Heights)
		stats.MaxHeight = floats.Max(sample.Heights)
		stats.SpeedMax = floats.Max(sample.Speeds)
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.degenerate = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int64 {
	return c.windowDurationTicks
}
