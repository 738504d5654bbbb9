package rigid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/chaoscache/internal/core/adapter"
	"github.com/zeusync/chaoscache/internal/core/cache"
	"github.com/zeusync/chaoscache/internal/core/physics"
	"github.com/zeusync/chaoscache/internal/core/solver"
)

func TestSupportsComponentClass(t *testing.T) {
	a := New(nil)
	assert.Equal(t, adapter.SupportDirect, a.SupportsComponentClass(StaticMeshClass))
	assert.Equal(t, adapter.SupportDerived, a.SupportsComponentClass(adapter.NewClass("Capsule", adapter.PrimitiveClass)))
	assert.Equal(t, adapter.SupportNone, a.SupportsComponentClass(adapter.SceneClass))
}

func TestRecordAndPlayback(t *testing.T) {
	start := physics.FromTranslation(physics.Vec3{X: 5})

	s := solver.NewLocal("record")
	h := s.AddParticle(solver.Particle{
		Transform:      start,
		LinearVelocity: physics.Vec3{X: 2},
		State:          solver.StateDynamic,
	})
	comp := NewComponent("crate", s, start, h)
	a := New(nil)
	c := cache.New("crate")

	require.NoError(t, a.InitializeForRecord(comp, c))
	token := c.BeginRecord(a.GUID(), cache.RecordOptions{Channels: a.Schema()})
	root := comp.WorldTransform()
	s.AddPostAdvanceCallback(func(float64) {
		frame := cache.NewPendingFrame(s.Time())
		a.RecordPostSolve(comp, root, frame, s.Time())
		c.AddFrameConcurrent(frame)
	})
	s.RaiseCollision(solver.CollisionData{Particle: h, Other: 99, Impulse: physics.Vec3{Y: 1}})
	for range 4 {
		require.NoError(t, s.Advance(0.5))
	}
	c.EndRecord(token)

	track, ok := c.ParticleTrack(0)
	require.True(t, ok)
	assert.Equal(t, []float64{0.5, 1, 1.5, 2}, track.Times)
	assert.InDelta(t, 1, track.Transforms[0].Translation.X, 1e-9, "root relative")
	collisions, ok := c.EventTrack(adapter.TrackCollision)
	require.True(t, ok)
	assert.Equal(t, adapter.NoIndex, collisions.Entries[0].Payload.(adapter.CollisionEvent).Other)

	// Replay somewhere else.
	target := physics.FromTranslation(physics.Vec3{Y: 10})
	ps := solver.NewLocal("playback")
	ph := ps.AddParticle(solver.Particle{Transform: target, State: solver.StateDynamic})
	pcomp := NewComponent("crate", ps, target, ph)

	require.True(t, a.ValidForPlayback(pcomp, c))
	require.NoError(t, a.InitializeForPlayback(pcomp, c, 0))
	play := c.BeginPlayback()
	defer c.EndPlayback(play)

	tick := cache.NewPlaybackTickRecord(pcomp.WorldTransform())
	tick.Advance(0.75)
	updated := a.PlaybackPreSolve(pcomp, c, tick.Time(), tick, nil)
	assert.Equal(t, []solver.ParticleHandle{ph}, updated)

	p, _ := ps.Particle(ph)
	assert.InDelta(t, 1.5, p.Transform.Translation.X, 1e-9)
	assert.InDelta(t, 10, p.Transform.Translation.Y, 1e-9)
	assert.InDelta(t, 2, p.LinearVelocity.X, 1e-9)
	assert.InDelta(t, 1.5, pcomp.WorldTransform().Translation.X, 1e-9)

	pending := ps.EventManager().Pending(solver.EventCollision)
	require.Len(t, pending.Collisions, 1)
	assert.Equal(t, ph, pending.Collisions[0].Particle)
	assert.Equal(t, solver.NoParent, pending.Collisions[0].Other)
}

func TestPlaybackBacksOffWhenNotKinematic(t *testing.T) {
	c := cache.New("crate")
	token := c.BeginRecord(GUID, cache.RecordOptions{})
	f := cache.NewPendingFrame(0)
	f.AddParticle(cache.PendingParticleWrite{Index: 0, Transform: physics.FromTranslation(physics.Vec3{X: 3})})
	c.AddFrameConcurrent(f)
	c.EndRecord(token)

	s := solver.NewLocal("playback")
	h := s.AddParticle(solver.Particle{State: solver.StateStatic})
	comp := NewComponent("crate", s, physics.Identity(), h)

	tick := cache.NewPlaybackTickRecord(physics.Identity())
	assert.Empty(t, New(nil).PlaybackPreSolve(comp, c, 0, tick, nil))
	p, _ := s.Particle(h)
	assert.Equal(t, 0.0, p.Transform.Translation.X)
}

func TestValidForPlaybackRejectsMultiParticleCaches(t *testing.T) {
	c := cache.New("many")
	token := c.BeginRecord(GUID, cache.RecordOptions{})
	f := cache.NewPendingFrame(0)
	f.AddParticle(cache.PendingParticleWrite{Index: 0, Transform: physics.Identity()})
	f.AddParticle(cache.PendingParticleWrite{Index: 1, Transform: physics.Identity()})
	c.AddFrameConcurrent(f)
	c.EndRecord(token)

	comp := NewComponent("crate", solver.NewLocal("s"), physics.Identity(), 0)
	assert.False(t, New(nil).ValidForPlayback(comp, c))
}

// capsule is a primitive from another package that only implements
// adapter.Component. The rigid adapter claims it by class derivation.
type capsule struct {
	s solver.Solver
	t physics.Transform
}

func (c *capsule) Name() string                          { return "capsule" }
func (c *capsule) Class() *adapter.Class                 { return capsuleClass }
func (c *capsule) WorldTransform() physics.Transform     { return c.t }
func (c *capsule) SetWorldTransform(t physics.Transform) { c.t = t }
func (c *capsule) Solver() solver.Solver                 { return c.s }

var capsuleClass = adapter.NewClass("CapsuleComponent", adapter.PrimitiveClass)

func TestForeignPrimitiveIsRejectedWithoutPanic(t *testing.T) {
	a := New(nil)
	s := solver.NewLocal("s")
	comp := &capsule{s: s, t: physics.Identity()}
	require.Equal(t, adapter.SupportDerived, a.SupportsComponentClass(comp.Class()))

	c := cache.New("capsule")
	assert.ErrorIs(t, a.InitializeForRecord(comp, c), adapter.ErrUnsupportedComponent)
	assert.ErrorIs(t, a.InitializeForPlayback(comp, c, 0), adapter.ErrUnsupportedComponent)
	assert.False(t, a.ValidForPlayback(comp, c))

	assert.NotPanics(t, func() {
		frame := cache.NewPendingFrame(0)
		a.RecordPostSolve(comp, physics.Identity(), frame, 0)
		assert.Empty(t, frame.Particles)

		tick := cache.NewPlaybackTickRecord(physics.Identity())
		assert.Empty(t, a.PlaybackPreSolve(comp, c, 0, tick, nil))
	})
}
