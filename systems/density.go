package systems

import (
	"github.com/pthm-cable/sph/components"
	"github.com/pthm-cable/sph/config"
)

// Fluid holds the material constants used inside the per-particle loops,
// converted once to float32.
type Fluid struct {
	Kernels       Kernels
	Mass          float32
	RestDensity   float32
	Stiffness     float32
	NearStiffness float32
	Viscosity     float32
	Gravity       float32
	Damping       float32
}

// NewFluid converts validated fluid config into stage constants.
func NewFluid(cfg config.FluidConfig) Fluid {
	return Fluid{
		Kernels:       NewKernels(float32(cfg.SmoothingRadius)),
		Mass:          float32(cfg.ParticleMass),
		RestDensity:   float32(cfg.RestDensity),
		Stiffness:     float32(cfg.Stiffness),
		NearStiffness: float32(cfg.NearStiffness),
		Viscosity:     float32(cfg.ViscosityStrength),
		Gravity:       float32(cfg.Gravity),
		Damping:       float32(cfg.BoundaryDamping),
	}
}

// PredictRange sets the look-ahead position of particles [i0, i1).
func PredictRange(particles []components.Particle, dt float32, i0, i1 int) {
	for i := i0; i < i1; i++ {
		p := &particles[i]
		next := p.Position.Add(p.Velocity.Mul(dt))
		if !finiteVec(next) {
			next = p.Position
		}
		p.PredictedPosition = next
	}
}

// DensityRange accumulates density and near density for particles [i0, i1)
// from their predicted positions and derives both pressures.
func DensityRange(particles []components.Particle, grid *SpatialGrid, fluid *Fluid, i0, i1 int) {
	k := &fluid.Kernels
	h := k.Radius()
	hSq := h * h

	for i := i0; i < i1; i++ {
		p := &particles[i]
		pos := p.PredictedPosition

		var density, near float32
		grid.ForEachNeighbor(pos, func(j int) {
			offset := particles[j].PredictedPosition.Sub(pos)
			distSq := offset.Dot(offset)
			if distSq > hSq {
				return
			}
			dist := sqrt32(distSq)
			density += fluid.Mass * k.Density(dist)
			near += fluid.Mass * k.NearDensity(dist)
		})

		p.Density = density
		p.NearDensity = near
		p.Pressure = max(0, fluid.Stiffness*(density-fluid.RestDensity))
		p.NearPressure = max(0, fluid.NearStiffness*near)
		if !finite(p.Pressure) || !finite(p.NearPressure) {
			p.Pressure, p.NearPressure = 0, 0
		}
	}
}
