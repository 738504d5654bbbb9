// Package rigid records and replays components backed by a single rigid
// particle, such as static meshes simulating physics.
package rigid

import (
	"sync"

	"github.com/zeusync/chaoscache/internal/core/adapter"
	"github.com/zeusync/chaoscache/internal/core/physics"
	"github.com/zeusync/chaoscache/internal/core/solver"
)

// StaticMeshClass is the static mesh component class.
var StaticMeshClass = adapter.NewClass("StaticMeshComponent", adapter.PrimitiveClass)

// Component is a primitive driven by one solver particle. The particle is
// recorded as index 0.
type Component struct {
	name   string
	class  *adapter.Class
	solver solver.Solver
	handle solver.ParticleHandle

	mu        sync.RWMutex
	transform physics.Transform
}

// NewComponent creates a static mesh component bound to handle.
func NewComponent(name string, s solver.Solver, transform physics.Transform, handle solver.ParticleHandle) *Component {
	return &Component{
		name:      name,
		class:     StaticMeshClass,
		solver:    s,
		handle:    handle,
		transform: transform,
	}
}

// WithClass returns c reporting class instead, for primitives of other
// kinds that carry a single particle.
func (c *Component) WithClass(class *adapter.Class) *Component {
	c.class = class
	return c
}

func (c *Component) Name() string                  { return c.name }
func (c *Component) Class() *adapter.Class         { return c.class }
func (c *Component) Solver() solver.Solver         { return c.solver }
func (c *Component) Handle() solver.ParticleHandle { return c.handle }

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

func (c *Component) IndexOf(h solver.ParticleHandle) (int, bool) {
	return 0, h == c.handle
}

func (c *Component) HandleOf(i int) (solver.ParticleHandle, bool) {
	return c.handle, i == 0
}
