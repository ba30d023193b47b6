package systems

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sph/components"
)

// PressureRange applies the pressure and near-pressure gradient to the
// velocity of particles [i0, i1). Neighbor state is only read, so ranges can
// run concurrently. Returns the number of particles whose result was not
// finite and had to be reset.
func PressureRange(particles []components.Particle, grid *SpatialGrid, fluid *Fluid, dt float32, i0, i1 int) int {
	k := &fluid.Kernels
	h := k.Radius()
	hSq := h * h
	scale := dt / fluid.Mass
	degenerate := 0

	for i := i0; i < i1; i++ {
		p := &particles[i]
		pos := p.PredictedPosition

		var force mgl32.Vec3
		grid.ForEachNeighbor(pos, func(j int) {
			if j == i {
				return
			}
			n := &particles[j]
			if n.Density < densityFloor || n.NearDensity < densityFloor {
				return
			}
			offset := n.PredictedPosition.Sub(pos)
			distSq := offset.Dot(offset)
			if distSq > hSq {
				return
			}
			dist := sqrt32(distSq)
			dir := pairDirection(offset, dist, i, j)

			shared := (p.Pressure + n.Pressure) * 0.5
			sharedNear := (p.NearPressure + n.NearPressure) * 0.5
			mag := k.DensityDerivative(dist)*shared/n.Density +
				k.NearDensityDerivative(dist)*sharedNear/n.NearDensity
			if !finite(mag) {
				return
			}
			force = force.Add(dir.Mul(mag))
		})

		v := p.Velocity.Add(force.Mul(scale))
		if !finiteVec(v) {
			v = mgl32.Vec3{}
			degenerate++
		}
		p.Velocity = v
	}
	return degenerate
}

// ViscosityRange smooths velocity differences for particles [i0, i1).
// Neighbor velocities come from prev, a copy taken before the stage started,
// so the result does not depend on scheduling order.
func ViscosityRange(particles []components.Particle, prev []mgl32.Vec3, grid *SpatialGrid, fluid *Fluid, dt float32, i0, i1 int) int {
	k := &fluid.Kernels
	h := k.Radius()
	hSq := h * h
	scale := dt / fluid.Mass * fluid.Viscosity
	degenerate := 0

	for i := i0; i < i1; i++ {
		p := &particles[i]
		pos := p.PredictedPosition
		own := prev[i]

		var force mgl32.Vec3
		grid.ForEachNeighbor(pos, func(j int) {
			if j == i {
				return
			}
			n := &particles[j]
			if n.Density < densityFloor {
				return
			}
			offset := n.PredictedPosition.Sub(pos)
			distSq := offset.Dot(offset)
			if distSq > hSq {
				return
			}
			w := fluid.Mass / n.Density * k.ViscosityLaplacian(sqrt32(distSq))
			if !finite(w) {
				return
			}
			force = force.Add(prev[j].Sub(own).Mul(w))
		})

		v := own.Add(force.Mul(scale))
		if !finiteVec(v) {
			v = mgl32.Vec3{}
			degenerate++
		}
		p.Velocity = v
	}
	return degenerate
}

// CopyVelocities stores the velocity of particles [i0, i1) into dst.
func CopyVelocities(particles []components.Particle, dst []mgl32.Vec3, i0, i1 int) {
	for i := i0; i < i1; i++ {
		dst[i] = particles[i].Velocity
	}
}
