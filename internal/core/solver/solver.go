// Package solver defines the physics solver as seen by the cache engine:
// three-phase advance callbacks with removable handles, particle access and
// dirty marking, and an event manager through which discrete events reach
// the rest of the engine.
//
// Local is a small deterministic implementation used by tests, the demo
// command and hosts that do not bring their own solver.
package solver

import (
	"sync"

	"github.com/zeusync/chaoscache/internal/core/physics"
)

// ObjectState is the simulation state of a particle. Only kinematic
// particles are driven by cache playback.
type ObjectState uint8

const (
	StateUninitialized ObjectState = iota
	StateSleeping
	StateKinematic
	StateStatic
	StateDynamic
)

func (s ObjectState) String() string {
	switch s {
	case StateSleeping:
		return "sleeping"
	case StateKinematic:
		return "kinematic"
	case StateStatic:
		return "static"
	case StateDynamic:
		return "dynamic"
	default:
		return "uninitialized"
	}
}

// ParticleHandle identifies a particle inside one solver.
type ParticleHandle int32

// NoParent marks a particle that is not owned by a cluster.
const NoParent ParticleHandle = -1

// Particle is a snapshot of a rigid particle.
type Particle struct {
	Handle          ParticleHandle
	Transform       physics.Transform
	LinearVelocity  physics.Vec3
	AngularVelocity physics.Vec3
	Mass            float64
	State           ObjectState
	Disabled        bool
	Parent          ParticleHandle
}

// Callback runs once per solver advance with the step delta in seconds.
type Callback func(dt float64)

// CallbackHandle identifies a registered callback for later removal.
type CallbackHandle uint64

// Solver is the subset of a rigid-body solver the cache engine consumes.
// Per advance, callbacks fire strictly in the order pre-advance, pre-buffer,
// post-advance.
type Solver interface {
	Name() string
	// Time is the simulated time reached by the last completed advance.
	Time() float64

	AddPreAdvanceCallback(Callback) CallbackHandle
	AddPreBufferCallback(Callback) CallbackHandle
	AddPostAdvanceCallback(Callback) CallbackHandle
	RemovePreAdvanceCallback(CallbackHandle) bool
	RemovePreBufferCallback(CallbackHandle) bool
	RemovePostAdvanceCallback(CallbackHandle) bool

	Particle(ParticleHandle) (Particle, bool)
	SetParticleTransform(ParticleHandle, physics.Transform) bool
	SetParticleVelocity(h ParticleHandle, linear, angular physics.Vec3) bool
	SetObjectState(ParticleHandle, ObjectState) bool
	SetDisabled(ParticleHandle, bool) bool
	// MarkDirty flags particles whose state was written from outside the
	// solver so the solver's internal bookkeeping picks them up.
	MarkDirty(handles ...ParticleHandle)

	EventManager() *EventManager
}

var (
	defaultMu     sync.RWMutex
	defaultSolver Solver
)

// SetDefault installs the solver used by components that do not name one.
func SetDefault(s Solver) {
	defaultMu.Lock()
	defaultSolver = s
	defaultMu.Unlock()
}

// Default returns the default solver, or nil.
func Default() Solver {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultSolver
}
