package manager

import (
	"sync"

	"github.com/zeusync/chaoscache/internal/core/adapter"
	"github.com/zeusync/chaoscache/internal/core/cache"
	"github.com/zeusync/chaoscache/internal/core/physics"
	"github.com/zeusync/chaoscache/internal/core/solver"
)

// ComponentRef is a weak reference to a scene component, resolved on every
// tick.
type ComponentRef interface {
	Resolve() (adapter.Component, bool)
	Name() string
}

type directRef struct{ c adapter.Component }

func (r directRef) Resolve() (adapter.Component, bool) { return r.c, r.c != nil }
func (r directRef) Name() string                       { return r.c.Name() }

// Ref references a component the caller keeps alive.
func Ref(c adapter.Component) ComponentRef { return directRef{c: c} }

type namedRef struct {
	name     string
	resolver Resolver
}

func (r namedRef) Resolve() (adapter.Component, bool) { return r.resolver.Resolve(r.name) }
func (r namedRef) Name() string                       { return r.name }

// RefByName references a component by name through resolver.
func RefByName(name string, resolver Resolver) ComponentRef {
	return namedRef{name: name, resolver: resolver}
}

// Observation registers a component with the manager.
type Observation struct {
	Component ComponentRef
	// Cache names the cache to play or record. Record mode generates a
	// name when empty.
	Cache string
	Mode  CacheMode
	Start StartMode
	// TimedDuration delays activation by this many seconds of tick time.
	TimedDuration float64
}

// ObservedStatus is a snapshot of one observed component.
type ObservedStatus struct {
	Observation
	Active           bool
	Triggered        bool
	CacheName        string
	TimeSinceTrigger float64
}

// binding is an observed component's session: the adapter, solver and cache
// it was bound to by BeginPlay. Its fields are set before any solver
// callback can reach it and never reassigned; tick is only stepped from
// the owning solver's callbacks.
type binding struct {
	o       *observed
	adapter adapter.Adapter
	solver  solver.Solver
	cache   *cache.Cache
	token   *cache.UserToken
	root    physics.Transform
	tick    *cache.PlaybackTickRecord
}

// close ends the cache session if it is still open.
func (b *binding) close() bool {
	if !b.token.IsOpen() {
		return false
	}
	switch b.token.Kind() {
	case cache.SessionRecord:
		b.cache.EndRecord(b.token)
	case cache.SessionPlayback:
		b.cache.EndPlayback(b.token)
	}
	return true
}

// observed is the manager's per-component entry. bound is guarded by the
// manager's mutex; mu guards the clocks touched from solver callbacks.
type observed struct {
	Observation

	bound *binding

	mu               sync.Mutex
	triggered        bool
	triggeredAt      float64
	absoluteTime     float64
	timeSinceTrigger float64
	lastRecorded     float64
	recordedAny      bool
}

func (o *observed) reset() {
	o.bound = nil

	o.mu.Lock()
	o.triggered = o.Start == StartTimed
	o.triggeredAt = 0
	o.absoluteTime = 0
	o.timeSinceTrigger = 0
	o.lastRecorded = 0
	o.recordedAny = false
	o.mu.Unlock()
}

// advance moves the entry's clocks by dt and reports whether it is active
// this tick along with its time since activation. The timed delay counts
// from session start for both start modes, so a trigger fired after the
// delay has elapsed activates on the next tick.
func (o *observed) advance(dt float64) (float64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.absoluteTime += dt
	if !o.triggered {
		return 0, false
	}
	start := max(o.triggeredAt, o.TimedDuration)
	if o.absoluteTime < start {
		return 0, false
	}
	o.timeSinceTrigger = o.absoluteTime - start
	return o.timeSinceTrigger, true
}

// shouldRecord enforces the record cadence.
func (o *observed) shouldRecord(now, interval float64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.recordedAny && now-o.lastRecorded < interval-physics.SmallNumber {
		return false
	}
	o.recordedAny = true
	o.lastRecorded = now
	return true
}

func (o *observed) trigger() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.triggered {
		return false
	}
	o.triggered = true
	o.triggeredAt = o.absoluteTime
	return true
}

func (o *observed) status() ObservedStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := ObservedStatus{
		Observation:      o.Observation,
		Active:           o.bound != nil,
		Triggered:        o.triggered,
		TimeSinceTrigger: o.timeSinceTrigger,
		CacheName:        o.Cache,
	}
	if o.bound != nil {
		st.CacheName = o.bound.cache.Name()
	}
	return st
}

// Failure explains why an observed component is inactive this session.
type Failure struct {
	Component string
	Cache     string
	Mode      CacheMode
	Err       error
}

func (f Failure) String() string {
	return f.Component + " (" + f.Mode.String() + " " + f.Cache + "): " + f.Err.Error()
}
