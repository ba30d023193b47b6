package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/sph/components"
	"github.com/pthm-cable/sph/config"
)

func testConfig(probe bool) *config.Config {
	cfg := config.Default()
	cfg.Boundary.Center = [3]float64{0, 1, 0}
	cfg.Boundary.Size = [3]float64{2, -4, 6}
	cfg.Probe.Enabled = probe
	cfg.Probe.Position = [3]float64{0, 0.5, 0}
	cfg.Probe.Radius = 0.25
	cfg.Probe.MoveSpeed = 1
	cfg.Probe.VertSpeed = 0.5
	cfg.Probe.OrbitRange = 0.5
	return cfg
}

func TestNew_BoundaryUsesAbsoluteSize(t *testing.T) {
	s := New(testConfig(false))
	b := s.Boundary()
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, b.Center)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, b.HalfExtents)
}

func TestResizeBoundary(t *testing.T) {
	s := New(testConfig(false))

	s.ResizeBoundary(mgl32.Vec3{-10, 4, 2})
	b := s.Boundary()
	assert.Equal(t, mgl32.Vec3{5, 2, 1}, b.HalfExtents)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, b.Center, "center is kept")

	s.SetBoundaryAxis(1, -8)
	assert.Equal(t, mgl32.Vec3{5, 4, 1}, s.Boundary().HalfExtents)

	s.SetBoundaryAxis(7, 100)
	assert.Equal(t, mgl32.Vec3{5, 4, 1}, s.Boundary().HalfExtents, "bad axis ignored")
}

func TestObstacle_NilWhenDisabled(t *testing.T) {
	s := New(testConfig(false))
	assert.Nil(t, s.Obstacle())

	s.ToggleProbes()
	obs := s.Obstacle()
	require.NotNil(t, obs)
	assert.Equal(t, mgl32.Vec3{0, 0.5, 0}, obs.Center)
	assert.Equal(t, float32(0.25), obs.Radius)
}

func TestSteer_MovesEnabledProbe(t *testing.T) {
	s := New(testConfig(true))

	s.Steer(mgl32.Vec3{1, -1, 3}, 0.5)

	obs := s.Obstacle()
	require.NotNil(t, obs)
	// Input is clamped to [-1, 1] per axis.
	assert.Equal(t, mgl32.Vec3{1, -0.5, 1}, obs.Velocity)
	assert.InDelta(t, 0.5, obs.Center[0], 1e-6)
	assert.InDelta(t, 0.25, obs.Center[1], 1e-6)
	assert.InDelta(t, 0.5, obs.Center[2], 1e-6)
}

func TestUpdate_OrbitStaysBounded(t *testing.T) {
	s := New(testConfig(true))
	start := s.Obstacle().Center

	dt := float32(0.01)
	maxDist := float32(0)
	for i := 0; i < 2000; i++ {
		s.Update(dt)
		obs := s.Obstacle()
		require.NotNil(t, obs)
		horizontal := mgl32.Vec2{obs.Velocity[0], obs.Velocity[2]}
		assert.InDelta(t, 1, horizontal.Len(), 1e-5)
		d := obs.Center.Sub(start)
		maxDist = max(maxDist, mgl32.Vec2{d[0], d[2]}.Len())
	}
	// Circle of radius 0.5 started on its rim: never farther than the diameter.
	assert.LessOrEqual(t, maxDist, float32(1.05))
	assert.Greater(t, maxDist, float32(0.5))
}

func TestAddProbe_FirstEnabledWins(t *testing.T) {
	s := New(testConfig(false))
	s.AddProbe(mgl32.Vec3{1, 1, 1}, components.Probe{Enabled: true, Radius: 0.1})

	obs := s.Obstacle()
	require.NotNil(t, obs)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, obs.Center)
	assert.Equal(t, float32(0.1), obs.Radius)
}
