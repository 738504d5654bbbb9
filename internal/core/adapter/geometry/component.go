// Package geometry records and replays clustered geometry collections: a
// component owning many particles, some of them cluster parents whose
// children stay disabled until the cluster breaks.
package geometry

import (
	"sync"

	"github.com/zeusync/chaoscache/internal/core/adapter"
	"github.com/zeusync/chaoscache/internal/core/physics"
	"github.com/zeusync/chaoscache/internal/core/solver"
)

// Class is the geometry collection component class.
var Class = adapter.NewClass("GeometryCollectionComponent", adapter.PrimitiveClass)

// Component is a geometry collection. Particle i of the collection is the
// solver particle Handles()[i].
type Component struct {
	name   string
	solver solver.Solver

	mu        sync.RWMutex
	transform physics.Transform
	handles   []solver.ParticleHandle
	index     map[solver.ParticleHandle]int
}

// NewComponent creates a collection over handles. A nil solver means the
// default solver.
func NewComponent(name string, s solver.Solver, transform physics.Transform, handles []solver.ParticleHandle) *Component {
	c := &Component{
		name:      name,
		solver:    s,
		transform: transform,
	}
	c.SetHandles(handles)
	return c
}

func (c *Component) Name() string          { return c.name }
func (c *Component) Class() *adapter.Class { return Class }
func (c *Component) Solver() solver.Solver { return c.solver }

func (c *Component) WorldTransform() physics.Transform {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transform
}

func (c *Component) SetWorldTransform(t physics.Transform) {
	c.mu.Lock()
	c.transform = t
	c.mu.Unlock()
}

// SetHandles replaces the particle layout.
func (c *Component) SetHandles(handles []solver.ParticleHandle) {
	index := make(map[solver.ParticleHandle]int, len(handles))
	for i, h := range handles {
		index[h] = i
	}
	c.mu.Lock()
	c.handles = append([]solver.ParticleHandle(nil), handles...)
	c.index = index
	c.mu.Unlock()
}

func (c *Component) Handles() []solver.ParticleHandle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]solver.ParticleHandle(nil), c.handles...)
}

func (c *Component) NumParticles() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handles)
}

func (c *Component) IndexOf(h solver.ParticleHandle) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[h]
	return i, ok
}

func (c *Component) HandleOf(i int) (solver.ParticleHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.handles) {
		return 0, false
	}
	return c.handles[i], true
}
