package adapter

import (
	"sort"

	"github.com/zeusync/chaoscache/internal/core/cache"
	"github.com/zeusync/chaoscache/internal/core/physics"
	"github.com/zeusync/chaoscache/internal/core/solver"
)

// Event track names, one per solver event stream.
var (
	TrackBreaking    = solver.EventBreaking.String()
	TrackCollision   = solver.EventCollision.String()
	TrackTrailing    = solver.EventTrailing.String()
	TrackEnableState = solver.EventEnableState.String()
)

// NoIndex marks a collision partner outside the recorded component.
const NoIndex = -1

// Recorded event payloads. Index is the component-local particle index;
// positions and vectors are relative to the record root.

type BreakingEvent struct {
	Index           int
	Location        physics.Vec3
	Velocity        physics.Vec3
	AngularVelocity physics.Vec3
	Mass            float64
}

type CollisionEvent struct {
	Index         int
	Other         int
	Location      physics.Vec3
	Normal        physics.Vec3
	Velocity      physics.Vec3
	OtherVelocity physics.Vec3
	Impulse       physics.Vec3
	Mass          float64
	OtherMass     float64
}

type TrailingEvent struct {
	Index           int
	Location        physics.Vec3
	Velocity        physics.Vec3
	AngularVelocity physics.Vec3
	Mass            float64
}

type EnableStateEvent struct {
	Index   int
	Enabled bool
}

func init() {
	cache.RegisterPayload(BreakingEvent{})
	cache.RegisterPayload(CollisionEvent{})
	cache.RegisterPayload(TrailingEvent{})
	cache.RegisterPayload(EnableStateEvent{})
}

// ParticleMap translates between solver handles and component-local
// particle indices.
type ParticleMap interface {
	IndexOf(h solver.ParticleHandle) (int, bool)
	HandleOf(index int) (solver.ParticleHandle, bool)
}

// EnableEvents switches on live generation of every event stream.
func EnableEvents(s solver.Solver) {
	em := s.EventManager()
	for _, t := range solver.EventTypes {
		em.SetEnabled(t, true)
	}
}

// RecordEvents copies the events s raised during the tick that ended at
// now and that belong to particles in m into frame.
func RecordEvents(s solver.Solver, now float64, m ParticleMap, root physics.Transform, frame *cache.PendingFrame) {
	em := s.EventManager()
	inv := root.Inverse()

	batch := em.Pending(solver.EventBreaking)
	if physics.NearlyEqual(batch.Time, now, physics.SmallNumber) {
		for _, b := range batch.Breakings {
			if i, ok := m.IndexOf(b.Particle); ok {
				frame.PushEvent(TrackBreaking, frame.Time, BreakingEvent{
					Index:           i,
					Location:        inv.TransformPosition(b.Location),
					Velocity:        inv.TransformVector(b.Velocity),
					AngularVelocity: inv.TransformVector(b.AngularVelocity),
					Mass:            b.Mass,
				})
			}
		}
	}

	batch = em.Pending(solver.EventCollision)
	if physics.NearlyEqual(batch.Time, now, physics.SmallNumber) {
		for _, c := range batch.Collisions {
			i, ok := m.IndexOf(c.Particle)
			if !ok {
				continue
			}
			other, ok := m.IndexOf(c.Other)
			if !ok {
				other = NoIndex
			}
			frame.PushEvent(TrackCollision, frame.Time, CollisionEvent{
				Index:         i,
				Other:         other,
				Location:      inv.TransformPosition(c.Location),
				Normal:        inv.TransformVector(c.Normal),
				Velocity:      inv.TransformVector(c.Velocity),
				OtherVelocity: inv.TransformVector(c.OtherVelocity),
				Impulse:       inv.TransformVector(c.Impulse),
				Mass:          c.Mass,
				OtherMass:     c.OtherMass,
			})
		}
	}

	batch = em.Pending(solver.EventTrailing)
	if physics.NearlyEqual(batch.Time, now, physics.SmallNumber) {
		for _, tr := range batch.Trailings {
			if i, ok := m.IndexOf(tr.Particle); ok {
				frame.PushEvent(TrackTrailing, frame.Time, TrailingEvent{
					Index:           i,
					Location:        inv.TransformPosition(tr.Location),
					Velocity:        inv.TransformVector(tr.Velocity),
					AngularVelocity: inv.TransformVector(tr.AngularVelocity),
					Mass:            tr.Mass,
				})
			}
		}
	}

	batch = em.Pending(solver.EventEnableState)
	if physics.NearlyEqual(batch.Time, now, physics.SmallNumber) {
		for _, e := range batch.EnableStates {
			if i, ok := m.IndexOf(e.Particle); ok {
				frame.PushEvent(TrackEnableState, frame.Time, EnableStateEvent{Index: i, Enabled: e.Enabled})
			}
		}
	}
}

// ReplayEvents feeds delivered cache events back through s's event manager
// at time, as if s had raised them. Events for particles that are not
// kinematic are dropped. Enable-state events also toggle the particle.
func ReplayEvents(s solver.Solver, time float64, events map[string][]cache.EventEntry, m ParticleMap, space physics.Transform) error {
	if len(events) == 0 {
		return nil
	}
	em := s.EventManager()

	kinematic := func(index int) (solver.ParticleHandle, bool) {
		h, ok := m.HandleOf(index)
		if !ok {
			return 0, false
		}
		p, ok := s.Particle(h)
		return h, ok && p.State == solver.StateKinematic
	}
	handleOrNone := func(index int) solver.ParticleHandle {
		if h, ok := m.HandleOf(index); ok {
			return h
		}
		return solver.NoParent
	}

	names := make([]string, 0, len(events))
	for name := range events {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, entry := range events[name] {
			var err error
			switch e := entry.Payload.(type) {
			case BreakingEvent:
				h, ok := kinematic(e.Index)
				if !ok {
					continue
				}
				err = em.AddEvent(solver.EventBreaking, time, func(b *solver.EventBatch) {
					b.Breakings = append(b.Breakings, solver.BreakingData{
						Particle:        h,
						Location:        space.TransformPosition(e.Location),
						Velocity:        space.TransformVector(e.Velocity),
						AngularVelocity: space.TransformVector(e.AngularVelocity),
						Mass:            e.Mass,
					})
				})
			case CollisionEvent:
				h, ok := kinematic(e.Index)
				if !ok {
					continue
				}
				other := handleOrNone(e.Other)
				err = em.AddEvent(solver.EventCollision, time, func(b *solver.EventBatch) {
					b.Collisions = append(b.Collisions, solver.CollisionData{
						Particle:      h,
						Other:         other,
						Location:      space.TransformPosition(e.Location),
						Normal:        space.TransformVector(e.Normal),
						Velocity:      space.TransformVector(e.Velocity),
						OtherVelocity: space.TransformVector(e.OtherVelocity),
						Impulse:       space.TransformVector(e.Impulse),
						Mass:          e.Mass,
						OtherMass:     e.OtherMass,
					})
				})
			case TrailingEvent:
				h, ok := kinematic(e.Index)
				if !ok {
					continue
				}
				err = em.AddEvent(solver.EventTrailing, time, func(b *solver.EventBatch) {
					b.Trailings = append(b.Trailings, solver.TrailingData{
						Particle:        h,
						Location:        space.TransformPosition(e.Location),
						Velocity:        space.TransformVector(e.Velocity),
						AngularVelocity: space.TransformVector(e.AngularVelocity),
						Mass:            e.Mass,
					})
				})
			case EnableStateEvent:
				h, ok := kinematic(e.Index)
				if !ok {
					continue
				}
				s.SetDisabled(h, !e.Enabled)
				err = em.AddEvent(solver.EventEnableState, time, func(b *solver.EventBatch) {
					b.EnableStates = append(b.EnableStates, solver.EnableStateData{Particle: h, Enabled: e.Enabled})
				})
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}
