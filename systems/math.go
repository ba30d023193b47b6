package systems

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// densityFloor is the smallest density a neighbor may have and still
// contribute to pressure or viscosity.
const densityFloor = 1e-6

// coincidentDist is the distance below which two particles are treated as
// sitting on top of each other.
const coincidentDist = 1e-6

// finite reports whether v is neither NaN nor infinite.
func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// finiteVec reports whether every component of v is finite.
func finiteVec(v mgl32.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

// floorDiv returns floor(v / size) as an int32 cell coordinate.
func floorDiv(v, size float32) int32 {
	return int32(math.Floor(float64(v / size)))
}

// pairDirection returns the unit vector from particle i toward neighbor j.
// Coincident particles get an arbitrary but antisymmetric axis so pair
// forces still cancel.
func pairDirection(offset mgl32.Vec3, dist float32, i, j int) mgl32.Vec3 {
	if dist > coincidentDist {
		return offset.Mul(1 / dist)
	}
	if i < j {
		return mgl32.Vec3{0, 1, 0}
	}
	return mgl32.Vec3{0, -1, 0}
}
