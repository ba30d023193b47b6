package components

import "github.com/go-gl/mathgl/mgl32"

// Boundary is the axis-aligned box particles are confined to.
type Boundary struct {
	Center      mgl32.Vec3
	HalfExtents mgl32.Vec3
}

// BoundaryFromSize builds a box from its center and full size.
func BoundaryFromSize(center, size mgl32.Vec3) Boundary {
	return Boundary{Center: center, HalfExtents: size.Mul(0.5)}
}

// Min returns the lower corner.
func (b Boundary) Min() mgl32.Vec3 { return b.Center.Sub(b.HalfExtents) }

// Max returns the upper corner.
func (b Boundary) Max() mgl32.Vec3 { return b.Center.Add(b.HalfExtents) }

// Size returns the full extents.
func (b Boundary) Size() mgl32.Vec3 { return b.HalfExtents.Mul(2) }

// Contains reports whether p lies inside or on the box.
func (b Boundary) Contains(p mgl32.Vec3) bool {
	lo, hi := b.Min(), b.Max()
	for i := 0; i < 3; i++ {
		if p[i] < lo[i] || p[i] > hi[i] {
			return false
		}
	}
	return true
}

// Obstacle is a moving sphere injected as a collider for one tick.
type Obstacle struct {
	Center   mgl32.Vec3
	Velocity mgl32.Vec3
	Radius   float32
}

// Position is a host-side entity position.
type Position struct {
	X, Y, Z float32
}

// Vec returns the position as a vector.
func (p Position) Vec() mgl32.Vec3 { return mgl32.Vec3{p.X, p.Y, p.Z} }

// Velocity is a host-side entity velocity.
type Velocity struct {
	X, Y, Z float32
}

// Vec returns the velocity as a vector.
func (v Velocity) Vec() mgl32.Vec3 { return mgl32.Vec3{v.X, v.Y, v.Z} }

// Probe marks the interactive ball that pushes fluid around.
type Probe struct {
	Enabled   bool
	Radius    float32
	MoveSpeed float32 // horizontal speed (units/s)
	VertSpeed float32 // vertical speed (units/s)
	Range     float32 // orbit radius for scripted motion
	Phase     float32 // radians along the scripted orbit
}
