// Package components holds the plain data types shared by the simulation, its
// systems and the host scene.
package components

import "github.com/go-gl/mathgl/mgl32"

// Particle is one element of the particle store. The layout is 13 packed
// float32 values so a slice of particles can be handed to a device buffer as is.
type Particle struct {
	Position          mgl32.Vec3
	PredictedPosition mgl32.Vec3 // look-ahead used for hashing and density
	Velocity          mgl32.Vec3
	Density           float32
	NearDensity       float32
	Pressure          float32
	NearPressure      float32
}

// ParticleStride is the byte size of one packed Particle.
const ParticleStride = 13 * 4

// NeighborEntry pairs a particle with the hash of the cell it occupies.
type NeighborEntry struct {
	ParticleID uint32
	CellHash   uint32
}

// Less orders entries by cell hash, then particle id.
func (e NeighborEntry) Less(o NeighborEntry) bool {
	if e.CellHash != o.CellHash {
		return e.CellHash < o.CellHash
	}
	return e.ParticleID < o.ParticleID
}
