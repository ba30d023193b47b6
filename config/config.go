// Package config provides configuration loading and validation for the fluid simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all simulation configuration parameters.
type Config struct {
	Fluid     FluidConfig     `yaml:"fluid"`
	Spawn     SpawnConfig     `yaml:"spawn"`
	Boundary  BoundaryConfig  `yaml:"boundary"`
	Probe     ProbeConfig     `yaml:"probe"`
	Parallel  ParallelConfig  `yaml:"parallel"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// FluidConfig holds the SPH material constants.
type FluidConfig struct {
	ParticleRadius    float64 `yaml:"particle_radius"`    // Spawn spacing is twice this
	SmoothingRadius   float64 `yaml:"smoothing_radius"`   // Kernel support and hash cell size
	ParticleMass      float64 `yaml:"particle_mass"`
	RestDensity       float64 `yaml:"rest_density"`
	Stiffness         float64 `yaml:"stiffness"`          // Pressure multiplier
	NearStiffness     float64 `yaml:"near_stiffness"`     // Near-pressure multiplier
	ViscosityStrength float64 `yaml:"viscosity_strength"`
	Gravity           float64 `yaml:"gravity"`            // Magnitude, applied along -Y
	BoundaryDamping   float64 `yaml:"boundary_damping"`   // In (-1, 0]; multiplies the velocity component on contact
	TimeStep          float64 `yaml:"time_step"`
}

// SpawnConfig describes the initial particle lattice.
type SpawnConfig struct {
	Counts [3]int     `yaml:"counts"` // Particles per axis; total = x*y*z
	Center [3]float64 `yaml:"center"`
	Jitter float64    `yaml:"jitter"` // Fraction of particle radius used for random offset
	Seed   int64      `yaml:"seed"`
}

// BoundaryConfig holds the initial bounding box.
type BoundaryConfig struct {
	Center [3]float64 `yaml:"center"`
	Size   [3]float64 `yaml:"size"` // Full extents, not half extents
}

// ProbeConfig holds the moving obstacle sphere.
type ProbeConfig struct {
	Enabled    bool       `yaml:"enabled"`
	Position   [3]float64 `yaml:"position"`
	Radius     float64    `yaml:"radius"`
	MoveSpeed  float64    `yaml:"move_speed"` // Horizontal speed (XZ)
	VertSpeed  float64    `yaml:"vert_speed"` // Vertical speed (Y)
	OrbitRange float64    `yaml:"orbit_range"`
}

// ParallelConfig holds worker pool settings.
type ParallelConfig struct {
	WorkGroupSize int `yaml:"work_group_size"` // Sort array is padded to a multiple of this (power of two)
	Workers       int `yaml:"workers"`         // 0 = GOMAXPROCS
}

// TelemetryConfig holds stats collection parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"` // Seconds of simulation time per stats window
	PerfWindow  int     `yaml:"perf_window"`  // Ticks averaged by the perf collector
}

// DerivedConfig holds precomputed values derived from other config.
type DerivedConfig struct {
	ParticleCount int     // Spawn counts multiplied out
	PaddedCount   int     // Sort array length
	DT32          float32 // time step as float32
	H32           float32 // smoothing radius as float32
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the embedded defaults. Panics if they fail to parse,
// which can only happen if defaults.yaml is broken.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.ParticleCount = c.Spawn.Counts[0] * c.Spawn.Counts[1] * c.Spawn.Counts[2]
	c.Derived.PaddedCount = PaddedLength(c.Derived.ParticleCount, c.Parallel.WorkGroupSize)
	c.Derived.DT32 = float32(c.Fluid.TimeStep)
	c.Derived.H32 = float32(c.Fluid.SmoothingRadius)
}

// Refresh recomputes derived values after fields were changed in code.
func (c *Config) Refresh() {
	c.computeDerived()
}

// Validate reports the first configuration error found. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	for i, n := range c.Spawn.Counts {
		if n <= 0 {
			return fmt.Errorf("%w: spawn.counts[%d] must be positive, got %d", ErrInvalidConfig, i, n)
		}
	}
	if err := c.Fluid.Validate(); err != nil {
		return err
	}
	return ValidateSizing(c.Derived.ParticleCount, c.Parallel.WorkGroupSize)
}

// Validate checks the material constants. The pipeline runs in float32, so
// every value is checked after conversion.
func (f *FluidConfig) Validate() error {
	switch {
	case !positive32(f.SmoothingRadius):
		return fmt.Errorf("%w: fluid.smoothing_radius must be a positive float32, got %v", ErrInvalidConfig, f.SmoothingRadius)
	case !positive32(f.TimeStep):
		return fmt.Errorf("%w: fluid.time_step must be a positive float32, got %v", ErrInvalidConfig, f.TimeStep)
	case !positive32(f.ParticleRadius):
		return fmt.Errorf("%w: fluid.particle_radius must be a positive float32, got %v", ErrInvalidConfig, f.ParticleRadius)
	case float32(f.SmoothingRadius) < float32(f.ParticleRadius):
		return fmt.Errorf("%w: fluid.smoothing_radius (%v) must not be smaller than particle_radius (%v)",
			ErrInvalidConfig, f.SmoothingRadius, f.ParticleRadius)
	case !kernelsFit32(float32(f.SmoothingRadius)):
		return fmt.Errorf("%w: fluid.smoothing_radius %v is too small for float32 kernels", ErrInvalidConfig, f.SmoothingRadius)
	case !positive32(f.ParticleMass):
		return fmt.Errorf("%w: fluid.particle_mass must be a positive float32, got %v", ErrInvalidConfig, f.ParticleMass)
	case !positive32(f.RestDensity):
		return fmt.Errorf("%w: fluid.rest_density must be a positive float32, got %v", ErrInvalidConfig, f.RestDensity)
	case !nonNegative32(f.Stiffness) || !nonNegative32(f.NearStiffness) || !nonNegative32(f.ViscosityStrength):
		return fmt.Errorf("%w: fluid stiffness and viscosity constants must be finite and not negative", ErrInvalidConfig)
	case !finite32(f.Gravity):
		return fmt.Errorf("%w: fluid.gravity must be finite, got %v", ErrInvalidConfig, f.Gravity)
	case !(f.BoundaryDamping > -1 && f.BoundaryDamping <= 0):
		return fmt.Errorf("%w: fluid.boundary_damping must be in (-1, 0], got %v", ErrInvalidConfig, f.BoundaryDamping)
	}
	return nil
}

// finite32 reports whether v is finite after conversion to float32.
func finite32(v float64) bool {
	f := float64(float32(v))
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// kernelsFit32 reports whether the largest kernel normalization, 45/(pi h^6),
// is finite when computed in float32 the way the kernels compute it.
func kernelsFit32(h float32) bool {
	h6 := h * h * h * h * h * h
	return h6 > 0 && finite32(float64(45/(float32(math.Pi)*h6)))
}

func positive32(v float64) bool {
	return finite32(v) && float32(v) > 0
}

func nonNegative32(v float64) bool {
	return finite32(v) && !math.IsNaN(v) && v >= 0
}

// ValidateSizing checks that count particles can be laid out for the bitonic sorter.
func ValidateSizing(count, workGroupSize int) error {
	if count <= 0 {
		return fmt.Errorf("%w: particle count must be positive, got %d", ErrInvalidConfig, count)
	}
	if workGroupSize <= 0 || workGroupSize&(workGroupSize-1) != 0 {
		return fmt.Errorf("%w: parallel.work_group_size must be a power of two, got %d", ErrInvalidConfig, workGroupSize)
	}
	// Padding ids and the sentinel hash must stay representable as uint32.
	if padded := PaddedLength(count, workGroupSize); padded <= 0 || uint64(padded) > math.MaxUint32 {
		return fmt.Errorf("%w: %d particles cannot be padded for the sorter", ErrInvalidConfig, count)
	}
	return nil
}

// PaddedLength returns the smallest power of two that is >= count and a
// multiple of workGroupSize. Returns 0 for invalid input.
func PaddedLength(count, workGroupSize int) int {
	if count <= 0 || workGroupSize <= 0 {
		return 0
	}
	n := workGroupSize
	for n < count {
		n <<= 1
		if n <= 0 {
			return 0
		}
	}
	return n
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
