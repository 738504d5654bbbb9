package geometry

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
var GUID = uuid.MustParse("0f5d6c1e-8b0a-4d8e-a2f4-3c5b1e9d7a61")

const Priority = 10

var _ adapter.Adapter = (*Adapter)(nil)

type Adapter struct {
	logger log.Log
}

// New creates the adapter. A nil logger discards replay errors.
func New(logger log.Log) *Adapter {
	if logger == nil {
		logger = log.Nop()
	}
	return &Adapter{logger: logger.With(log.String("adapter", "geometry"))}
}

func (a *Adapter) SupportsComponentClass(class *adapter.Class) adapter.SupportType {
	return adapter.Classify(class, Class)
}

func (a *Adapter) Priority() int               { return Priority }
func (a *Adapter) GUID() uuid.UUID             { return GUID }
func (a *Adapter) Schema() []cache.ChannelSpec { return nil }

func (a *Adapter) ComponentSolver(c adapter.Component) solver.Solver {
	return adapter.SolverFor(c)
}

// Collection is what the adapter needs from a component: an ordered set of
// solver particles addressed by collection index.
type Collection interface {
	adapter.Component
	adapter.ParticleMap
	Handles() []solver.ParticleHandle
	NumParticles() int
}

var _ Collection = (*Component)(nil)

func collection(c adapter.Component) (Collection, bool) {
	gc, ok := c.(Collection)
	return gc, ok
}

// ValidForPlayback accepts the cache when every recorded particle index
// exists in the component's current layout.
func (a *Adapter) ValidForPlayback(c adapter.Component, ch *cache.Cache) bool {
	gc, ok := collection(c)
	if !ok {
		return false
	}
	n := gc.NumParticles()
	for _, index := range ch.TrackToParticle() {
		if index < 0 || index >= n {
			return false
		}
	}
	return true
}

func (a *Adapter) InitializeForRecord(c adapter.Component, _ *cache.Cache) error {
	if _, ok := collection(c); !ok {
		return fmt.Errorf("%w: geometry cannot record %T", adapter.ErrUnsupportedComponent, c)
	}
	s := a.ComponentSolver(c)
	if s == nil {
		return adapter.ErrNoSolver
	}
	adapter.EnableEvents(s)
	return nil
}

// InitializeForPlayback hands every particle of the collection to the
// cache by making it kinematic.
func (a *Adapter) InitializeForPlayback(c adapter.Component, _ *cache.Cache, _ float64) error {
	gc, ok := collection(c)
	if !ok {
		return fmt.Errorf("%w: geometry cannot play back %T", adapter.ErrUnsupportedComponent, c)
	}
	s := a.ComponentSolver(c)
	if s == nil {
		return adapter.ErrNoSolver
	}
	for _, h := range gc.Handles() {
		s.SetObjectState(h, solver.StateKinematic)
	}
	return nil
}

// RecordPostSolve writes every enabled particle. Disabled particles are
// cluster children that have not broken off yet, or parents that have.
func (a *Adapter) RecordPostSolve(c adapter.Component, root physics.Transform, frame *cache.PendingFrame, _ float64) {
	gc, ok := collection(c)
	s := a.ComponentSolver(c)
	if !ok || s == nil {
		return
	}

	for i, h := range gc.Handles() {
		p, ok := s.Particle(h)
		if !ok || p.Disabled {
			continue
		}
		frame.AddParticle(cache.PendingParticleWrite{
			Index:     i,
			Transform: p.Transform.RelativeTo(root),
		})
	}
	adapter.RecordEvents(s, s.Time(), gc, root, frame)
}

// PlaybackPreSolve moves kinematic particles to their cached transforms.
// Particles another system made dynamic or static are left alone, as are
// disabled particles whose track has not started yet.
func (a *Adapter) PlaybackPreSolve(c adapter.Component, ch *cache.Cache, time float64, tick *cache.PlaybackTickRecord, updated []solver.ParticleHandle) []solver.ParticleHandle {
	gc, ok := collection(c)
	s := a.ComponentSolver(c)
	if !ok || s == nil {
		return updated
	}

	tick.SetTime(time)
	res := ch.Evaluate(cache.EvaluationContext{
		Tick:  tick,
		Flags: cache.EvaluateTransforms | cache.EvaluateEvents,
	})

	for _, ep := range res.Particles {
		if !ep.HasTransform {
			continue
		}
		h, ok := gc.HandleOf(ep.Index)
		if !ok {
			continue
		}
		p, ok := s.Particle(h)
		if !ok || p.State != solver.StateKinematic {
			continue
		}
		if ep.BeforeStart && p.Disabled {
			continue
		}
		s.SetParticleTransform(h, ep.Transform)
		updated = append(updated, h)
	}

	// Replayed events belong to the advance that is about to run.
	if err := adapter.ReplayEvents(s, s.Time()+tick.LastDt(), res.Events, gc, tick.SpaceTransform()); err != nil {
		a.logger.Warn("event replay failed", log.String("component", gc.Name()), log.Error(err))
	}
	return updated
}
