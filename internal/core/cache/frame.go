package cache

import (
	"github.com/zeusync/chaoscache/internal/core/physics"
	"github.com/zeusync/chaoscache/pkg/generic"
)

// PendingParticleWrite is one particle's contribution to a frame.
type PendingParticleWrite struct {
	Index     int
	Transform physics.Transform
	Curves    map[string]float64
	Channels  map[string]Value
}

// PendingFrame is the snapshot a recording adapter builds for one solver
// tick. Ownership passes to the cache on AddFrameConcurrent; the frame must
// not be touched afterwards.
type PendingFrame struct {
	Time      float64
	Particles []PendingParticleWrite
	Curves    map[string]float64
	Events    map[string][]EventEntry
}

var framePool = generic.NewPool(
	func() *PendingFrame { return &PendingFrame{} },
	func(f *PendingFrame) { f.reset() },
)

// NewPendingFrame returns an empty frame for time, reusing pooled storage.
func NewPendingFrame(time float64) *PendingFrame {
	f := framePool.Get()
	f.Time = time
	return f
}

// AddParticle appends a particle write.
func (f *PendingFrame) AddParticle(w PendingParticleWrite) {
	f.Particles = append(f.Particles, w)
}

// SetCurve records a cache-global curve key for this frame.
func (f *PendingFrame) SetCurve(name string, value float64) {
	if f.Curves == nil {
		f.Curves = make(map[string]float64)
	}
	f.Curves[name] = value
}

// PushEvent queues an event on the named track.
func (f *PendingFrame) PushEvent(track string, time float64, payload any) {
	if f.Events == nil {
		f.Events = make(map[string][]EventEntry)
	}
	f.Events[track] = append(f.Events[track], EventEntry{Time: time, Payload: payload})
}

// EventCount returns the number of queued events across all tracks.
func (f *PendingFrame) EventCount() int {
	n := 0
	for _, entries := range f.Events {
		n += len(entries)
	}
	return n
}

func (f *PendingFrame) release() {
	framePool.Put(f)
}

func (f *PendingFrame) reset() {
	f.Time = 0
	clear(f.Particles)
	f.Particles = f.Particles[:0]
	clear(f.Curves)
	clear(f.Events)
}
