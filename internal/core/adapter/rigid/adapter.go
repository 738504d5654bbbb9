package rigid

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/zeusync/chaoscache/internal/core/adapter"
	"github.com/zeusync/chaoscache/internal/core/cache"
	"github.com/zeusync/chaoscache/internal/core/observability/log"
	"github.com/zeusync/chaoscache/internal/core/physics"
	"github.com/zeusync/chaoscache/internal/core/solver"
)

// GUID identifies caches recorded by this adapter revision.
var GUID = uuid.MustParse("7a3e90b4-51c2-4f6d-9e18-b2d04c6a8f35")

const Priority = 100

// Channel names written per frame.
const (
	ChannelLinearVelocity  = "linear_velocity"
	ChannelAngularVelocity = "angular_velocity"
	ChannelObjectState     = "object_state"
)

var schema = []cache.ChannelSpec{
	{Name: ChannelLinearVelocity, Kind: cache.KindVector, Interpolate: true},
	{Name: ChannelAngularVelocity, Kind: cache.KindVector, Interpolate: true},
	{Name: ChannelObjectState, Kind: cache.KindInt},
}

var _ adapter.Adapter = (*Adapter)(nil)

type Adapter struct {
	logger log.Log
}

// New creates the adapter. A nil logger discards replay errors.
func New(logger log.Log) *Adapter {
	if logger == nil {
		logger = log.Nop()
	}
	return &Adapter{logger: logger.With(log.String("adapter", "rigid"))}
}

// SupportsComponentClass matches static meshes directly and any other
// primitive as a fallback.
func (a *Adapter) SupportsComponentClass(class *adapter.Class) adapter.SupportType {
	if s := adapter.Classify(class, StaticMeshClass); s != adapter.SupportNone {
		return s
	}
	if adapter.Classify(class, adapter.PrimitiveClass) != adapter.SupportNone {
		return adapter.SupportDerived
	}
	return adapter.SupportNone
}

func (a *Adapter) Priority() int               { return Priority }
func (a *Adapter) GUID() uuid.UUID             { return GUID }
func (a *Adapter) Schema() []cache.ChannelSpec { return append([]cache.ChannelSpec(nil), schema...) }

func (a *Adapter) ComponentSolver(c adapter.Component) solver.Solver {
	return adapter.SolverFor(c)
}

// Body is what the adapter needs from a component: one solver particle
// mapped to index 0. Any primitive exposing it can be cached.
type Body interface {
	adapter.Component
	adapter.ParticleMap
	Handle() solver.ParticleHandle
}

var _ Body = (*Component)(nil)

func body(c adapter.Component) (Body, bool) {
	b, ok := c.(Body)
	return b, ok
}

// ValidForPlayback accepts caches holding at most the single particle 0,
// for components that expose a Body.
func (a *Adapter) ValidForPlayback(c adapter.Component, ch *cache.Cache) bool {
	if _, ok := body(c); !ok {
		return false
	}
	for _, index := range ch.TrackToParticle() {
		if index != 0 {
			return false
		}
	}
	return true
}

func (a *Adapter) InitializeForRecord(c adapter.Component, _ *cache.Cache) error {
	if _, ok := body(c); !ok {
		return fmt.Errorf("%w: rigid cannot record %T", adapter.ErrUnsupportedComponent, c)
	}
	s := a.ComponentSolver(c)
	if s == nil {
		return adapter.ErrNoSolver
	}
	s.EventManager().SetEnabled(solver.EventCollision, true)
	s.EventManager().SetEnabled(solver.EventTrailing, true)
	return nil
}

func (a *Adapter) InitializeForPlayback(c adapter.Component, _ *cache.Cache, _ float64) error {
	b, ok := body(c)
	if !ok {
		return fmt.Errorf("%w: rigid cannot play back %T", adapter.ErrUnsupportedComponent, c)
	}
	s := a.ComponentSolver(c)
	if s == nil {
		return adapter.ErrNoSolver
	}
	if !s.SetObjectState(b.Handle(), solver.StateKinematic) {
		return fmt.Errorf("rigid: particle %d not found in solver %q", b.Handle(), s.Name())
	}
	return nil
}

func (a *Adapter) RecordPostSolve(c adapter.Component, root physics.Transform, frame *cache.PendingFrame, _ float64) {
	rc, ok := body(c)
	s := a.ComponentSolver(c)
	if !ok || s == nil {
		return
	}
	p, ok := s.Particle(rc.Handle())
	if !ok || p.Disabled {
		return
	}

	inv := root.Inverse()
	frame.AddParticle(cache.PendingParticleWrite{
		Index:     0,
		Transform: p.Transform.RelativeTo(root),
		Channels: map[string]cache.Value{
			ChannelLinearVelocity:  cache.VectorValue(inv.TransformVector(p.LinearVelocity)),
			ChannelAngularVelocity: cache.VectorValue(inv.TransformVector(p.AngularVelocity)),
			ChannelObjectState:     cache.IntValue(int64(p.State)),
		},
	})
	adapter.RecordEvents(s, s.Time(), rc, root, frame)
}

// PlaybackPreSolve drives the particle and the component from the cache
// while the particle stays kinematic.
func (a *Adapter) PlaybackPreSolve(c adapter.Component, ch *cache.Cache, time float64, tick *cache.PlaybackTickRecord, updated []solver.ParticleHandle) []solver.ParticleHandle {
	rc, ok := body(c)
	s := a.ComponentSolver(c)
	if !ok || s == nil {
		return updated
	}

	tick.SetTime(time)
	res := ch.Evaluate(cache.EvaluationContext{
		Tick:    tick,
		Flags:   cache.EvaluateTransforms | cache.EvaluateChannels | cache.EvaluateEvents,
		Indices: []int{0},
	})

	p, ok := s.Particle(rc.Handle())
	if !ok || p.State != solver.StateKinematic {
		return updated
	}

	if ep, ok := res.Particle(0); ok && ep.HasTransform {
		s.SetParticleTransform(rc.Handle(), ep.Transform)
		space := tick.SpaceTransform()
		linear := space.TransformVector(ep.Channels[ChannelLinearVelocity].Vector)
		angular := space.TransformVector(ep.Channels[ChannelAngularVelocity].Vector)
		s.SetParticleVelocity(rc.Handle(), linear, angular)
		rc.SetWorldTransform(ep.Transform)
		updated = append(updated, rc.Handle())
	}

	if err := adapter.ReplayEvents(s, s.Time()+tick.LastDt(), res.Events, rc, tick.SpaceTransform()); err != nil {
		a.logger.Warn("event replay failed", log.String("component", rc.Name()), log.Error(err))
	}
	return updated
}
