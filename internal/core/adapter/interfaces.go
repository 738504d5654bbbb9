// Package adapter maps scene components onto the cache protocol. An
// Adapter knows how to record one kind of component into a cache and how
// to drive it back from one; the Registry picks the best adapter for a
// component's class.
package adapter

import (
	"github.com/google/uuid"
	"github.com/zeusync/chaoscache/internal/core/cache"
	"github.com/zeusync/chaoscache/internal/core/physics"
	"github.com/zeusync/chaoscache/internal/core/solver"
)

// SupportType classifies how well an adapter matches a component class.
type SupportType uint8

const (
	SupportNone SupportType = iota
	SupportDerived
	SupportDirect
)

func (s SupportType) String() string {
	switch s {
	case SupportDirect:
		return "direct"
	case SupportDerived:
		return "derived"
	default:
		return "none"
	}
}

// Component is a scene object that owns one or more solver particles.
type Component interface {
	Name() string
	Class() *Class
	WorldTransform() physics.Transform
	SetWorldTransform(physics.Transform)
	// Solver returns the solver the component opted into, or nil for the
	// default solver.
	Solver() solver.Solver
}

// Adapter records and replays one kind of component.
type Adapter interface {
	SupportsComponentClass(class *Class) SupportType
	// Priority breaks ties between matches of the same support type; lower
	// wins.
	Priority() int
	// GUID is stamped into caches at record time and checked at playback.
	GUID() uuid.UUID
	// Schema declares the per-particle channels RecordPostSolve writes.
	Schema() []cache.ChannelSpec

	ComponentSolver(c Component) solver.Solver
	ValidForPlayback(c Component, ch *cache.Cache) bool

	InitializeForRecord(c Component, ch *cache.Cache) error
	InitializeForPlayback(c Component, ch *cache.Cache, time float64) error

	// RecordPostSolve appends the component's live particles, relative to
	// root, and the events they raised this tick to frame.
	RecordPostSolve(c Component, root physics.Transform, frame *cache.PendingFrame, time float64)
	// PlaybackPreSolve drives the component's kinematic particles from the
	// cache at time and returns updated extended with every particle it
	// wrote.
	PlaybackPreSolve(c Component, ch *cache.Cache, time float64, tick *cache.PlaybackTickRecord, updated []solver.ParticleHandle) []solver.ParticleHandle
}

// SolverFor resolves the solver a component runs in.
func SolverFor(c Component) solver.Solver {
	if s := c.Solver(); s != nil {
		return s
	}
	return solver.Default()
}
