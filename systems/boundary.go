package systems

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sph/components"
)

// ResolveObstacle pushes pos out of the sphere and scales the approaching
// radial velocity, measured relative to the sphere, by damping. Reports
// whether the particle was inside.
func ResolveObstacle(pos, vel *mgl32.Vec3, obs *components.Obstacle, damping float32) bool {
	d := pos.Sub(obs.Center)
	distSq := d.Dot(d)
	if distSq >= obs.Radius*obs.Radius {
		return false
	}

	dist := sqrt32(distSq)
	normal := mgl32.Vec3{0, 1, 0}
	if dist > coincidentDist {
		normal = d.Mul(1 / dist)
	}
	*pos = obs.Center.Add(normal.Mul(obs.Radius))

	rel := vel.Sub(obs.Velocity)
	if vr := rel.Dot(normal); vr < 0 {
		rel = rel.Add(normal.Mul(vr*damping - vr))
		*vel = rel.Add(obs.Velocity)
	}
	return true
}

// ResolveBoundary clamps pos into the box. On each axis where pos left the
// box, the velocity component pointing outward is multiplied by damping.
// Reports whether any axis was clamped.
func ResolveBoundary(pos, vel *mgl32.Vec3, box components.Boundary, damping float32) bool {
	lo, hi := box.Min(), box.Max()
	hit := false
	for a := 0; a < 3; a++ {
		switch {
		case pos[a] < lo[a]:
			pos[a] = lo[a]
			if vel[a] < 0 {
				vel[a] *= damping
			}
			hit = true
		case pos[a] > hi[a]:
			pos[a] = hi[a]
			if vel[a] > 0 {
				vel[a] *= damping
			}
			hit = true
		}
	}
	return hit
}

// ExternalRange applies gravity, resolves collisions against the optional
// obstacle and the box, commits positions and refreshes the look-ahead for
// particles [i0, i1). Returns the number of particles reset because their
// result was not finite.
func ExternalRange(particles []components.Particle, fluid *Fluid, dt float32, box components.Boundary, obs *components.Obstacle, i0, i1 int) int {
	degenerate := 0
	for i := i0; i < i1; i++ {
		p := &particles[i]

		v := p.Velocity
		v[1] -= fluid.Gravity * dt
		next := p.Position.Add(v.Mul(dt))

		if obs != nil {
			ResolveObstacle(&next, &v, obs, fluid.Damping)
		}
		ResolveBoundary(&next, &v, box, fluid.Damping)

		if !finiteVec(next) || !finiteVec(v) {
			p.Velocity = mgl32.Vec3{}
			p.PredictedPosition = p.Position
			degenerate++
			continue
		}
		p.Position = next
		p.Velocity = v
		p.PredictedPosition = next.Add(v.Mul(dt))
	}
	return degenerate
}
