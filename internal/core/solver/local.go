package solver

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/zeusync/chaoscache/internal/core/events/bus"
	"github.com/zeusync/chaoscache/internal/core/physics"
)

var _ Solver = (*Local)(nil)

type callbackList struct {
	order []CallbackHandle
	fns   map[CallbackHandle]Callback
}

func (l *callbackList) add(h CallbackHandle, fn Callback) {
	if l.fns == nil {
		l.fns = make(map[CallbackHandle]Callback)
	}
	l.fns[h] = fn
	l.order = append(l.order, h)
}

func (l *callbackList) remove(h CallbackHandle) bool {
	if _, ok := l.fns[h]; !ok {
		return false
	}
	delete(l.fns, h)
	for i, o := range l.order {
		if o == h {
			l.order = append(l.order[:i:i], l.order[i+1:]...)
			break
		}
	}
	return true
}

func (l *callbackList) snapshot() []Callback {
	out := make([]Callback, 0, len(l.order))
	for _, h := range l.order {
		out = append(out, l.fns[h])
	}
	return out
}

// Local is a deterministic in-process solver. Dynamic particles move with
// their linear and angular velocity plus gravity; kinematic and static
// particles only move when written from outside.
type Local struct {
	mu        sync.Mutex
	name      string
	time      float64
	gravity   physics.Vec3
	particles []Particle
	dirty     []ParticleHandle

	nextHandle CallbackHandle
	pre        callbackList
	preBuffer  callbackList
	post       callbackList

	raised []raisedEvent
	events *EventManager
}

type raisedEvent struct {
	kind   EventType
	mutate func(*EventBatch)
}

// LocalOption configures a Local solver.
type LocalOption func(*Local)

// WithGravity sets a constant acceleration applied to dynamic particles.
func WithGravity(g physics.Vec3) LocalOption {
	return func(l *Local) { l.gravity = g }
}

// WithBus publishes completed event batches to b.
func WithBus(b bus.EventBus) LocalOption {
	return func(l *Local) { l.events = NewEventManager(l.name, b) }
}

// NewLocal creates an empty solver.
func NewLocal(name string, opts ...LocalOption) *Local {
	l := &Local{name: name}
	for _, opt := range opts {
		opt(l)
	}
	if l.events == nil {
		l.events = NewEventManager(name, bus.New())
	}
	return l
}

func (l *Local) Name() string { return l.name }

func (l *Local) Time() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.time
}

func (l *Local) EventManager() *EventManager { return l.events }

// AddParticle inserts an unparented particle and returns its handle.
func (l *Local) AddParticle(p Particle) ParticleHandle {
	return l.insert(p, NoParent)
}

// AddChild inserts a particle held by the cluster parent. Children start
// disabled until the cluster breaks.
func (l *Local) AddChild(parent ParticleHandle, p Particle) ParticleHandle {
	p.Disabled = true
	return l.insert(p, parent)
}

func (l *Local) insert(p Particle, parent ParticleHandle) ParticleHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	p.Handle = ParticleHandle(len(l.particles))
	p.Parent = parent
	if p.Transform.Scale == (physics.Vec3{}) {
		p.Transform.Scale = physics.One
	}
	if p.Transform.Rotation == (physics.Quat{}) {
		p.Transform.Rotation = physics.IdentityQuat()
	}
	l.particles = append(l.particles, p)
	return p.Handle
}

func (l *Local) ParticleCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.particles)
}

func (l *Local) AddPreAdvanceCallback(fn Callback) CallbackHandle {
	return l.addCallback(&l.pre, fn)
}

func (l *Local) AddPreBufferCallback(fn Callback) CallbackHandle {
	return l.addCallback(&l.preBuffer, fn)
}

func (l *Local) AddPostAdvanceCallback(fn Callback) CallbackHandle {
	return l.addCallback(&l.post, fn)
}

func (l *Local) RemovePreAdvanceCallback(h CallbackHandle) bool {
	return l.removeCallback(&l.pre, h)
}

func (l *Local) RemovePreBufferCallback(h CallbackHandle) bool {
	return l.removeCallback(&l.preBuffer, h)
}

func (l *Local) RemovePostAdvanceCallback(h CallbackHandle) bool {
	return l.removeCallback(&l.post, h)
}

// CallbackCount returns the number of registered callbacks across all phases.
func (l *Local) CallbackCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pre.fns) + len(l.preBuffer.fns) + len(l.post.fns)
}

func (l *Local) addCallback(list *callbackList, fn Callback) CallbackHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextHandle++
	list.add(l.nextHandle, fn)
	return l.nextHandle
}

func (l *Local) removeCallback(list *callbackList, h CallbackHandle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return list.remove(h)
}

func (l *Local) Particle(h ParticleHandle) (Particle, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.valid(h) {
		return Particle{}, false
	}
	return l.particles[h], true
}

func (l *Local) SetParticleTransform(h ParticleHandle, t physics.Transform) bool {
	return l.update(h, func(p *Particle) { p.Transform = t })
}

func (l *Local) SetParticleVelocity(h ParticleHandle, linear, angular physics.Vec3) bool {
	return l.update(h, func(p *Particle) {
		p.LinearVelocity = linear
		p.AngularVelocity = angular
	})
}

func (l *Local) SetObjectState(h ParticleHandle, s ObjectState) bool {
	return l.update(h, func(p *Particle) { p.State = s })
}

func (l *Local) SetDisabled(h ParticleHandle, disabled bool) bool {
	return l.update(h, func(p *Particle) { p.Disabled = disabled })
}

func (l *Local) MarkDirty(handles ...ParticleHandle) {
	l.mu.Lock()
	l.dirty = append(l.dirty, handles...)
	l.mu.Unlock()
}

// Dirty returns the particles marked dirty during the current advance.
func (l *Local) Dirty() []ParticleHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ParticleHandle(nil), l.dirty...)
}

// RaiseCollision queues a collision to be reported during the next advance
// if collision generation is enabled.
func (l *Local) RaiseCollision(c CollisionData) {
	l.raise(EventCollision, func(b *EventBatch) { b.Collisions = append(b.Collisions, c) })
}

// RaiseTrailing queues a trailing report for the next advance.
func (l *Local) RaiseTrailing(tr TrailingData) {
	l.raise(EventTrailing, func(b *EventBatch) { b.Trailings = append(b.Trailings, tr) })
}

// BreakCluster releases every child of parent: the parent is disabled, its
// children are enabled and made dynamic. Breaking and enable-state events are
// reported during the next advance.
func (l *Local) BreakCluster(parent ParticleHandle) []ParticleHandle {
	l.mu.Lock()
	if !l.valid(parent) {
		l.mu.Unlock()
		return nil
	}
	l.particles[parent].Disabled = true
	var children []ParticleHandle
	var breaks []BreakingData
	for i := range l.particles {
		p := &l.particles[i]
		if p.Parent != parent {
			continue
		}
		p.Disabled = false
		p.Parent = NoParent
		if p.State != StateKinematic {
			p.State = StateDynamic
		}
		children = append(children, p.Handle)
		breaks = append(breaks, BreakingData{
			Particle:        p.Handle,
			Location:        p.Transform.Translation,
			Velocity:        p.LinearVelocity,
			AngularVelocity: p.AngularVelocity,
			Mass:            p.Mass,
		})
	}
	l.mu.Unlock()

	l.raise(EventBreaking, func(b *EventBatch) { b.Breakings = append(b.Breakings, breaks...) })
	l.raise(EventEnableState, func(b *EventBatch) {
		b.EnableStates = append(b.EnableStates, EnableStateData{Particle: parent, Enabled: false})
		for _, c := range children {
			b.EnableStates = append(b.EnableStates, EnableStateData{Particle: c, Enabled: true})
		}
	})
	return children
}

func (l *Local) raise(kind EventType, mutate func(*EventBatch)) {
	l.mu.Lock()
	l.raised = append(l.raised, raisedEvent{kind: kind, mutate: mutate})
	l.mu.Unlock()
}

// Advance steps the simulation by dt, firing pre-advance, pre-buffer and
// post-advance callbacks in that order, then publishes the tick's events.
func (l *Local) Advance(dt float64) error {
	l.mu.Lock()
	l.dirty = l.dirty[:0]
	pre, preBuffer, post := l.pre.snapshot(), l.preBuffer.snapshot(), l.post.snapshot()
	l.mu.Unlock()

	for _, fn := range pre {
		fn(dt)
	}
	for _, fn := range preBuffer {
		fn(dt)
	}

	l.mu.Lock()
	l.time += dt
	now := l.time
	l.integrate(dt)
	raised := l.raised
	l.raised = nil
	l.mu.Unlock()

	for _, r := range raised {
		if !l.events.IsEnabled(r.kind) {
			continue
		}
		if err := l.events.AddEvent(r.kind, now, r.mutate); err != nil {
			return err
		}
	}

	for _, fn := range post {
		fn(dt)
	}

	return l.events.Dispatch()
}

func (l *Local) integrate(dt float64) {
	for i := range l.particles {
		p := &l.particles[i]
		if p.Disabled || p.State != StateDynamic {
			continue
		}
		p.LinearVelocity = r3.Add(p.LinearVelocity, r3.Scale(dt, l.gravity))
		p.Transform.Translation = r3.Add(p.Transform.Translation, r3.Scale(dt, p.LinearVelocity))
		if w := r3.Norm(p.AngularVelocity); w > physics.SmallNumber {
			spin := physics.FromAxisAngle(p.AngularVelocity, w*dt)
			p.Transform.Rotation = spin.Mul(p.Transform.Rotation).Normalize()
		}
	}
}

func (l *Local) valid(h ParticleHandle) bool {
	return h >= 0 && int(h) < len(l.particles)
}

func (l *Local) update(h ParticleHandle, fn func(*Particle)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.valid(h) {
		return false
	}
	fn(&l.particles[h])
	return true
}
