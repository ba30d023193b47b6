// Package systems implements the SPH pipeline stages. Every stage function
// works on a half-open index range so the caller can split it across workers;
// a stage must finish over the full range before the next one starts.
package systems

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sph/components"
)

// SentinelHash marks padding entries in the sort array. It is never produced
// for a real particle because real keys are reduced below the table size.
const SentinelHash = math.MaxUint32

// large primes for mixing
const (
	hashPrimeX = 73856093
	hashPrimeY = 19349663
	hashPrimeZ = 83492791
)

// Cell is an integer grid coordinate.
type Cell [3]int32

// CellOf returns the grid cell containing p for the given cell size.
func CellOf(p mgl32.Vec3, cellSize float32) Cell {
	return Cell{floorDiv(p[0], cellSize), floorDiv(p[1], cellSize), floorDiv(p[2], cellSize)}
}

// Add offsets a cell.
func (c Cell) Add(o Cell) Cell {
	return Cell{c[0] + o[0], c[1] + o[1], c[2] + o[2]}
}

// HashCell folds a cell coordinate into a 32-bit hash.
func HashCell(c Cell) uint32 {
	return uint32(c[0])*hashPrimeX ^ uint32(c[1])*hashPrimeY ^ uint32(c[2])*hashPrimeZ
}

// SpatialHasher maps positions to table keys. TableSize must be a power of two.
type SpatialHasher struct {
	CellSize  float32
	TableSize int
}

// NewSpatialHasher creates a hasher. cellSize is the smoothing radius.
func NewSpatialHasher(cellSize float32, tableSize int) SpatialHasher {
	return SpatialHasher{CellSize: cellSize, TableSize: tableSize}
}

// CellKey reduces the hash of c to the table domain.
func (h SpatialHasher) CellKey(c Cell) uint32 {
	return HashCell(c) & uint32(h.TableSize-1)
}

// Key returns the table key of the cell containing p.
func (h SpatialHasher) Key(p mgl32.Vec3) uint32 {
	return h.CellKey(CellOf(p, h.CellSize))
}

// HashRange writes one entry per slot in [i0, i1). Slots at or beyond
// len(particles) become padding that sorts to the end.
func (h SpatialHasher) HashRange(particles []components.Particle, entries []components.NeighborEntry, i0, i1 int) {
	n := len(particles)
	for i := i0; i < i1; i++ {
		if i >= n {
			entries[i] = components.NeighborEntry{ParticleID: uint32(i), CellHash: SentinelHash}
			continue
		}
		p := particles[i].PredictedPosition
		if !finiteVec(p) {
			p = particles[i].Position
		}
		entries[i] = components.NeighborEntry{ParticleID: uint32(i), CellHash: h.Key(p)}
	}
}
