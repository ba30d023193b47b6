package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/sph/components"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	RunID           string  `csv:"run_id"`
	WindowStartTick int64   `csv:"-"`
	WindowEndTick   int64   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	Particles int `csv:"particles"`

	// Height distribution (sampled at window end)
	MeanHeight float64 `csv:"mean_height"`
	MinHeight  float64 `csv:"min_height"`
	MaxHeight  float64 `csv:"max_height"`

	// Density distribution
	DensityMean  float64 `csv:"density_mean"`
	DensityStd   float64 `csv:"density_std"`
	DensityError float64 `csv:"density_error"` // mean |density - rest| / rest

	// Speed distribution
	SpeedMean float64 `csv:"speed_mean"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`
	SpeedMax  float64 `csv:"speed_max"`

	KineticEnergy float64 `csv:"kinetic_energy"`

	// Health during window
	Degenerate int `csv:"degenerate"` // stage resets for non-finite results, summed over ticks
	Escaped    int `csv:"escaped"`    // particles found outside the box at window end
}

// FluidSample is the per-particle data a window summary is computed from.
type FluidSample struct {
	Heights   []float64
	Densities []float64
	Speeds    []float64
	Escaped   int
}

// SampleParticles extracts heights, densities and speeds from a snapshot and
// counts particles outside box.
func SampleParticles(particles []components.Particle, box components.Boundary) FluidSample {
	n := len(particles)
	s := FluidSample{
		Heights:   make([]float64, n),
		Densities: make([]float64, n),
		Speeds:    make([]float64, n),
	}
	for i := range particles {
		p := &particles[i]
		s.Heights[i] = float64(p.Position[1])
		s.Densities[i] = float64(p.Density)
		s.Speeds[i] = float64(p.Velocity.Len())
		if !box.Contains(p.Position) {
			s.Escaped++
		}
	}
	return s
}

// ComputeDistribution returns mean, standard deviation, median and 90th
// percentile of values. Returns zeros for an empty slice.
func ComputeDistribution(values []float64) (mean, std, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	mean, std = stat.PopMeanStdDev(values, nil)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	p50 = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.9, stat.Empirical, sorted, nil)
	return mean, std, p50, p90
}

// KineticEnergy returns sum(0.5 * m * |v|^2) for the given speeds.
func KineticEnergy(speeds []float64, mass float64) float64 {
	if len(speeds) == 0 {
		return 0
	}
	sq := make([]float64, len(speeds))
	floats.MulTo(sq, speeds, speeds)
	return 0.5 * mass * floats.Sum(sq)
}

// DensityError returns the mean relative deviation from the rest density.
func DensityError(densities []float64, restDensity float64) float64 {
	if len(densities) == 0 || restDensity <= 0 {
		return 0
	}
	var sum float64
	for _, d := range densities {
		sum += math.Abs(d - restDensity)
	}
	return sum / float64(len(densities)) / restDensity
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("run_id", s.RunID),
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("particles", s.Particles),
		slog.Float64("mean_height", s.MeanHeight),
		slog.Float64("min_height", s.MinHeight),
		slog.Float64("max_height", s.MaxHeight),
		slog.Float64("density_mean", s.DensityMean),
		slog.Float64("density_std", s.DensityStd),
		slog.Float64("density_error", s.DensityError),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("speed_max", s.SpeedMax),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Int("degenerate", s.Degenerate),
		slog.Int("escaped", s.Escaped),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}
