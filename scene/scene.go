// Package scene holds the host-side objects that feed the fluid each tick:
// the bounding box and the probe ball used as a moving obstacle.
package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/sph/components"
	"github.com/pthm-cable/sph/config"
)

// Scene is an ECS world with one boundary entity and any number of probes.
// It is not safe for concurrent use.
type Scene struct {
	world *ecs.World

	boundary    ecs.Entity
	boundaryMap *ecs.Map1[components.Boundary]

	probeMapper *ecs.Map3[components.Position, components.Velocity, components.Probe]
	probeFilter *ecs.Filter3[components.Position, components.Velocity, components.Probe]
}

// New builds a scene from the boundary and probe sections of cfg.
func New(cfg *config.Config) *Scene {
	world := ecs.NewWorld()

	s := &Scene{
		world:       world,
		boundaryMap: ecs.NewMap1[components.Boundary](world),
		probeMapper: ecs.NewMap3[components.Position, components.Velocity, components.Probe](world),
		probeFilter: ecs.NewFilter3[components.Position, components.Velocity, components.Probe](world),
	}

	box := components.BoundaryFromSize(vec(cfg.Boundary.Center), absVec(vec(cfg.Boundary.Size)))
	s.boundary = s.boundaryMap.NewEntity(&box)

	p := cfg.Probe
	s.AddProbe(vec(p.Position), components.Probe{
		Enabled:   p.Enabled,
		Radius:    float32(p.Radius),
		MoveSpeed: float32(p.MoveSpeed),
		VertSpeed: float32(p.VertSpeed),
		Range:     float32(p.OrbitRange),
	})
	return s
}

// AddProbe creates a probe entity at pos.
func (s *Scene) AddProbe(pos mgl32.Vec3, probe components.Probe) ecs.Entity {
	position := components.Position{X: pos[0], Y: pos[1], Z: pos[2]}
	velocity := components.Velocity{}
	return s.probeMapper.NewEntity(&position, &velocity, &probe)
}

// Boundary returns the current box.
func (s *Scene) Boundary() components.Boundary {
	return *s.boundaryMap.Get(s.boundary)
}

// ResizeBoundary sets the full box size. Negative values are taken as their
// magnitude; the center is kept.
func (s *Scene) ResizeBoundary(size mgl32.Vec3) {
	b := s.boundaryMap.Get(s.boundary)
	*b = components.BoundaryFromSize(b.Center, absVec(size))
}

// SetBoundaryAxis changes the size of one axis (0=x, 1=y, 2=z).
func (s *Scene) SetBoundaryAxis(axis int, size float32) {
	if axis < 0 || axis > 2 {
		return
	}
	b := s.boundaryMap.Get(s.boundary)
	full := b.Size()
	full[axis] = size
	*b = components.BoundaryFromSize(b.Center, absVec(full))
}

// ToggleProbes flips the enabled flag of every probe.
func (s *Scene) ToggleProbes() {
	query := s.probeFilter.Query()
	for query.Next() {
		_, vel, probe := query.Get()
		probe.Enabled = !probe.Enabled
		*vel = components.Velocity{}
	}
}

// Steer moves every enabled probe by an input axis vector in [-1, 1]: x and
// z scale the horizontal speed, y the vertical speed.
func (s *Scene) Steer(input mgl32.Vec3, dt float32) {
	query := s.probeFilter.Query()
	for query.Next() {
		pos, vel, probe := query.Get()
		if !probe.Enabled {
			continue
		}
		steer(pos, vel, probe, input, dt)
	}
}

// Update advances the scripted probe motion: each enabled probe circles at
// its move speed with a radius of Range while bobbing vertically.
func (s *Scene) Update(dt float32) {
	query := s.probeFilter.Query()
	for query.Next() {
		pos, vel, probe := query.Get()
		if !probe.Enabled {
			continue
		}
		if probe.Range <= 0 || probe.MoveSpeed <= 0 {
			*vel = components.Velocity{}
			continue
		}
		probe.Phase += probe.MoveSpeed / probe.Range * dt
		if probe.Phase > 2*math.Pi {
			probe.Phase -= 2 * math.Pi
		}
		sin, cos := math.Sincos(float64(probe.Phase))
		input := mgl32.Vec3{-float32(sin), float32(cos), float32(cos)}
		steer(pos, vel, probe, input, dt)
	}
}

func steer(pos *components.Position, vel *components.Velocity, probe *components.Probe, input mgl32.Vec3, dt float32) {
	for i := range input {
		input[i] = mgl32.Clamp(input[i], -1, 1)
	}
	v := mgl32.Vec3{input[0] * probe.MoveSpeed, input[1] * probe.VertSpeed, input[2] * probe.MoveSpeed}
	*vel = components.Velocity{X: v[0], Y: v[1], Z: v[2]}
	pos.X += v[0] * dt
	pos.Y += v[1] * dt
	pos.Z += v[2] * dt
}

// Obstacle returns the first enabled probe as a collider, or nil if none is
// enabled.
func (s *Scene) Obstacle() *components.Obstacle {
	var obs *components.Obstacle
	query := s.probeFilter.Query()
	for query.Next() {
		pos, vel, probe := query.Get()
		if obs != nil || !probe.Enabled || probe.Radius <= 0 {
			continue
		}
		obs = &components.Obstacle{
			Center:   pos.Vec(),
			Velocity: vel.Vec(),
			Radius:   probe.Radius,
		}
	}
	return obs
}

func vec(v [3]float64) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

func absVec(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{mgl32.Abs(v[0]), mgl32.Abs(v[1]), mgl32.Abs(v[2])}
}
