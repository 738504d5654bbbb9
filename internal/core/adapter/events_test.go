package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/chaoscache/internal/core/cache"
	"github.com/zeusync/chaoscache/internal/core/events/bus"
	"github.com/zeusync/chaoscache/internal/core/physics"
	"github.com/zeusync/chaoscache/internal/core/solver"
)

type handleMap []solver.ParticleHandle

func (m handleMap) IndexOf(h solver.ParticleHandle) (int, bool) {
	for i, x := range m {
		if x == h {
			return i, true
		}
	}
	return 0, false
}

func (m handleMap) HandleOf(i int) (solver.ParticleHandle, bool) {
	if i < 0 || i >= len(m) {
		return 0, false
	}
	return m[i], true
}

func TestRecordEventsTranslatesHandles(t *testing.T) {
	s := solver.NewLocal("record")
	a := s.AddParticle(solver.Particle{State: solver.StateDynamic})
	b := s.AddParticle(solver.Particle{State: solver.StateDynamic})
	stranger := s.AddParticle(solver.Particle{State: solver.StateDynamic})
	EnableEvents(s)

	m := handleMap{b, a}
	root := physics.FromTranslation(physics.Vec3{X: 10})

	var frame *cache.PendingFrame
	s.AddPostAdvanceCallback(func(float64) {
		frame = cache.NewPendingFrame(s.Time())
		RecordEvents(s, s.Time(), m, root, frame)
	})

	s.RaiseCollision(solver.CollisionData{Particle: a, Other: stranger, Location: physics.Vec3{X: 12}})
	s.RaiseCollision(solver.CollisionData{Particle: stranger, Other: a})
	s.RaiseTrailing(solver.TrailingData{Particle: b})
	require.NoError(t, s.Advance(0.1))

	require.NotNil(t, frame)
	collisions := frame.Events[TrackCollision]
	require.Len(t, collisions, 1)
	ev := collisions[0].Payload.(CollisionEvent)
	assert.Equal(t, 1, ev.Index)
	assert.Equal(t, NoIndex, ev.Other)
	assert.InDelta(t, 2, ev.Location.X, 1e-9)

	trailings := frame.Events[TrackTrailing]
	require.Len(t, trailings, 1)
	assert.Equal(t, 0, trailings[0].Payload.(TrailingEvent).Index)
}

func TestReplayEventsRespectsKinematicGuard(t *testing.T) {
	b := bus.New()
	s := solver.NewLocal("replay", solver.WithBus(b))
	kin := s.AddParticle(solver.Particle{State: solver.StateKinematic})
	dyn := s.AddParticle(solver.Particle{State: solver.StateDynamic})
	m := handleMap{kin, dyn}

	events := map[string][]cache.EventEntry{
		TrackBreaking: {
			{Time: 1, Payload: BreakingEvent{Index: 0, Mass: 2}},
			{Time: 1, Payload: BreakingEvent{Index: 1, Mass: 3}},
		},
		TrackEnableState: {
			{Time: 1, Payload: EnableStateEvent{Index: 0, Enabled: false}},
		},
	}
	require.NoError(t, ReplayEvents(s, 0.5, events, m, physics.Identity()))

	pending := s.EventManager().Pending(solver.EventBreaking)
	require.Len(t, pending.Breakings, 1)
	assert.Equal(t, kin, pending.Breakings[0].Particle)
	assert.Equal(t, 0.5, pending.Time)

	p, _ := s.Particle(kin)
	assert.True(t, p.Disabled)
	assert.Len(t, s.EventManager().Pending(solver.EventEnableState).EnableStates, 1)
}
