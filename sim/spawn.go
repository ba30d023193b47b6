package sim

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sph/components"
	"github.com/pthm-cable/sph/config"
)

// SpawnLattice places counts.x*y*z particles on a regular grid of spacing
// 2*radius centered on the spawn center. Each particle is nudged by a random
// direction scaled by jitter*radius. Velocities start at zero.
func SpawnLattice(cfg config.SpawnConfig, radius float64, rng *rand.Rand) []components.Particle {
	nx, ny, nz := cfg.Counts[0], cfg.Counts[1], cfg.Counts[2]
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil
	}

	spacing := float32(2 * radius)
	jitter := float32(cfg.Jitter * radius)
	center := mgl32.Vec3{float32(cfg.Center[0]), float32(cfg.Center[1]), float32(cfg.Center[2])}
	// Offset of the first lattice point from the center.
	origin := center.Sub(mgl32.Vec3{
		float32(nx-1) * spacing / 2,
		float32(ny-1) * spacing / 2,
		float32(nz-1) * spacing / 2,
	})

	particles := make([]components.Particle, 0, nx*ny*nz)
	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			for z := 0; z < nz; z++ {
				p := origin.Add(mgl32.Vec3{float32(x) * spacing, float32(y) * spacing, float32(z) * spacing})
				if jitter > 0 && rng != nil {
					p = p.Add(randomDirection(rng).Mul(jitter))
				}
				particles = append(particles, components.Particle{
					Position:          p,
					PredictedPosition: p,
				})
			}
		}
	}
	return particles
}

// randomDirection returns a uniformly distributed unit vector.
func randomDirection(rng *rand.Rand) mgl32.Vec3 {
	for {
		v := mgl32.Vec3{
			float32(rng.NormFloat64()),
			float32(rng.NormFloat64()),
			float32(rng.NormFloat64()),
		}
		if l := v.Len(); l > 1e-6 {
			return v.Mul(1 / l)
		}
	}
}
