package systems

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sph/components"
)

// neighborCells are the 27 offsets of a 3x3x3 block.
var neighborCells = func() [27]Cell {
	var cells [27]Cell
	n := 0
	for dx := int32(-1); dx <= 1; dx++ {
		for dy := int32(-1); dy <= 1; dy++ {
			for dz := int32(-1); dz <= 1; dz++ {
				cells[n] = Cell{dx, dy, dz}
				n++
			}
		}
	}
	return cells
}()

// SpatialGrid is the per-tick neighbor structure: hashed entries sorted by
// key plus the offset table over them. It is read-only once built.
type SpatialGrid struct {
	Hasher  SpatialHasher
	Entries []components.NeighborEntry // sorted, padded
	Offsets *CellOffsets
	Count   int // real particles; entries at or past this id are padding
}

// NewSpatialGrid allocates a grid for count particles padded to padded slots.
func NewSpatialGrid(cellSize float32, count, padded int) *SpatialGrid {
	return &SpatialGrid{
		Hasher:  NewSpatialHasher(cellSize, padded),
		Entries: make([]components.NeighborEntry, padded),
		Offsets: NewCellOffsets(padded),
		Count:   count,
	}
}

// Build hashes, sorts and indexes particles on the calling goroutine.
func (g *SpatialGrid) Build(particles []components.Particle) {
	n := len(g.Entries)
	g.Count = len(particles)
	g.Hasher.HashRange(particles, g.Entries, 0, n)
	BitonicSort(g.Entries)
	g.Offsets.ClearRange(0, g.Offsets.Len())
	g.Offsets.BuildRange(g.Entries, 0, n)
}

// ForEachNeighbor calls fn with the store index of every particle filed in
// the 27 cells around p. Keys shared by several of those cells are visited
// once. Candidates are not distance filtered.
func (g *SpatialGrid) ForEachNeighbor(p mgl32.Vec3, fn func(j int)) {
	base := CellOf(p, g.Hasher.CellSize)

	var seen [27]uint32
	visited := 0

next:
	for _, off := range neighborCells {
		key := g.Hasher.CellKey(base.Add(off))
		for _, k := range seen[:visited] {
			if k == key {
				continue next
			}
		}
		seen[visited] = key
		visited++

		start, end := g.Offsets.Range(key)
		for s := start; s < end; s++ {
			j := int(g.Entries[s].ParticleID)
			if j >= g.Count {
				continue
			}
			fn(j)
		}
	}
}
