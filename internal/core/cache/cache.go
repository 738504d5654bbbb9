package cache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zeusync/chaoscache/internal/core/observability/log"
	"github.com/zeusync/chaoscache/internal/core/observability/metrics"
	"github.com/zeusync/chaoscache/internal/core/physics"
	"github.com/zeusync/chaoscache/pkg/sequence"
)

// DefaultCompressTolerance is used when RecordOptions.Compress is set
// without a tolerance.
const DefaultCompressTolerance = 1e-4

// Spawnable is the template a playback host instantiates to replay a cache.
type Spawnable struct {
	Template         string
	InitialTransform physics.Transform
}

// RecordOptions configure a record session.
type RecordOptions struct {
	Spawnable Spawnable
	// Channels declares the per-particle channels the adapter will write.
	// Undeclared channels are recorded as metadata.
	Channels []ChannelSpec
	// Compress drops redundant transform keys at EndRecord.
	Compress          bool
	CompressTolerance float64
}

type Option func(*Cache)

func WithLogger(l log.Log) Option {
	return func(c *Cache) { c.logger = l }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Cache) { c.metrics = m }
}

// Cache stores recorded per-particle tracks, curves and event tracks.
//
// sessions is -1 while a record session is open, otherwise the number of
// open playback sessions. Frames posted with AddFrameConcurrent are merged
// into the tracks by FlushPendingFrames; flush and Evaluate are mutually
// excluded by mu.
type Cache struct {
	name    string
	logger  log.Log
	metrics *metrics.Collector

	sessions atomic.Int64
	pending  *sequence.SPSCQueue[*PendingFrame]

	mu              sync.RWMutex
	particles       []*ParticleData
	trackToParticle []int
	particleToTrack map[int]int
	curves          map[string]*Curve
	eventTracks     map[string]*EventTrack
	channels        map[string]ChannelSpec

	spawnable   Spawnable
	adapterGUID uuid.UUID
	duration    float64
	frameCount  int
	maxTime     float64
	record      RecordOptions
}

// New creates an empty cache.
func New(name string, opts ...Option) *Cache {
	c := &Cache{
		name:    name,
		logger:  log.Nop(),
		pending: sequence.NewSPSCQueue[*PendingFrame](),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(log.String("cache", name))
	c.resetData()
	return c
}

func (c *Cache) resetData() {
	c.particles = nil
	c.trackToParticle = nil
	c.particleToTrack = make(map[int]int)
	c.curves = make(map[string]*Curve)
	c.eventTracks = make(map[string]*EventTrack)
	c.channels = make(map[string]ChannelSpec)
	c.duration = 0
	c.frameCount = 0
	c.maxTime = 0
}

// BeginRecord opens the exclusive record session. The returned token is
// closed when any other session is open; existing data is left untouched in
// that case. On success all previous recorded data is discarded.
func (c *Cache) BeginRecord(adapterGUID uuid.UUID, opts RecordOptions) *UserToken {
	if !c.sessions.CompareAndSwap(0, -1) {
		c.metrics.SessionRejected(c.name, metrics.ModeRecord)
		c.logger.Debug("record session rejected", log.Int64("sessions", c.sessions.Load()))
		return newToken(c, SessionRecord, false)
	}

	c.pending.Drain(func(f *PendingFrame) { f.release() })

	c.mu.Lock()
	c.resetData()
	c.adapterGUID = adapterGUID
	c.spawnable = opts.Spawnable
	c.record = opts
	for _, spec := range opts.Channels {
		c.channels[spec.Name] = spec
	}
	c.mu.Unlock()

	c.metrics.SessionOpened(c.name, metrics.ModeRecord)
	c.logger.Debug("record session opened", log.String("adapter", adapterGUID.String()))
	return newToken(c, SessionRecord, true)
}

// EndRecord flushes outstanding frames, finalises duration and frame count
// and closes the record session.
func (c *Cache) EndRecord(token *UserToken) {
	token.close(c, SessionRecord)

	c.FlushPendingFrames()

	c.mu.Lock()
	c.duration = c.maxTime
	removed := 0
	if c.record.Compress {
		tol := c.record.CompressTolerance
		if tol <= 0 {
			tol = DefaultCompressTolerance
		}
		for _, p := range c.particles {
			removed += p.Track.RemoveRedundantKeys(tol)
		}
	}
	duration, frames := c.duration, c.frameCount
	c.mu.Unlock()

	if !c.sessions.CompareAndSwap(-1, 0) {
		panic("cache: record session counter out of sync")
	}
	c.metrics.SessionClosed(metrics.ModeRecord)
	c.logger.Debug("record session closed",
		log.Float64("duration", duration),
		log.Int("frames", frames),
		log.Int("keys_removed", removed),
	)
}

// BeginPlayback opens a shared playback session. The returned token is
// closed while a record session is open.
func (c *Cache) BeginPlayback() *UserToken {
	for {
		n := c.sessions.Load()
		if n < 0 {
			c.metrics.SessionRejected(c.name, metrics.ModePlayback)
			c.logger.Debug("playback session rejected")
			return newToken(c, SessionPlayback, false)
		}
		if c.sessions.CompareAndSwap(n, n+1) {
			c.metrics.SessionOpened(c.name, metrics.ModePlayback)
			return newToken(c, SessionPlayback, true)
		}
	}
}

// EndPlayback closes a playback session.
func (c *Cache) EndPlayback(token *UserToken) {
	token.close(c, SessionPlayback)
	if c.sessions.Add(-1) < 0 {
		panic("cache: playback session counter out of sync")
	}
	c.metrics.SessionClosed(metrics.ModePlayback)
}

// AddFrameConcurrent hands frame to the cache without blocking. Only one
// goroutine may post frames to a cache at a time, in increasing time order.
func (c *Cache) AddFrameConcurrent(frame *PendingFrame) {
	c.pending.Enqueue(frame)
	c.metrics.FrameEnqueued(c.name)
}

// FlushPendingFrames merges every queued frame into the persistent tracks
// and returns how many frames were merged. Only one goroutine may flush a
// cache at a time.
func (c *Cache) FlushPendingFrames() int {
	if c.pending.IsEmpty() {
		return 0
	}
	start := time.Now()

	c.mu.Lock()
	n := c.pending.Drain(func(f *PendingFrame) {
		c.applyFrame(f)
		f.release()
	})
	c.mu.Unlock()

	c.metrics.FramesFlushed(c.name, n, time.Since(start))
	return n
}

func (c *Cache) applyFrame(f *PendingFrame) {
	for _, w := range f.Particles {
		p := c.particle(w.Index)
		p.Track.Append(f.Time, w.Transform)
		for name, v := range w.Curves {
			p.curve(name).AddKey(f.Time, v)
		}
		for name, v := range w.Channels {
			c.channel(p, name, v.Kind).AddKey(f.Time, v)
		}
	}

	for name, v := range f.Curves {
		c.globalCurve(name).AddKey(f.Time, v)
	}

	for name, entries := range f.Events {
		if len(entries) == 0 {
			continue
		}
		track := c.eventTrack(name, entries[0].Payload)
		for _, e := range entries {
			track.Push(e)
			c.maxTime = max(c.maxTime, e.Time)
		}
		c.metrics.EventsRecorded(c.name, name, len(entries))
	}

	c.maxTime = max(c.maxTime, f.Time)
	c.frameCount++
}

func (c *Cache) particle(index int) *ParticleData {
	if track, ok := c.particleToTrack[index]; ok {
		return c.particles[track]
	}
	p := newParticleData()
	c.particleToTrack[index] = len(c.particles)
	c.particles = append(c.particles, p)
	c.trackToParticle = append(c.trackToParticle, index)
	return p
}

func (c *Cache) channel(p *ParticleData, name string, kind ChannelKind) *ChannelTrack {
	ch, ok := p.Channels[name]
	if !ok {
		spec, declared := c.channels[name]
		if !declared {
			spec = ChannelSpec{Name: name, Kind: kind}
			c.channels[name] = spec
		}
		ch = &ChannelTrack{Spec: spec}
		p.Channels[name] = ch
	}
	return ch
}

func (c *Cache) globalCurve(name string) *Curve {
	cv, ok := c.curves[name]
	if !ok {
		cv = &Curve{}
		c.curves[name] = cv
	}
	return cv
}

func (c *Cache) eventTrack(name string, sample any) *EventTrack {
	t, ok := c.eventTracks[name]
	if !ok {
		t = &EventTrack{Name: name, Type: payloadType(sample)}
		c.eventTracks[name] = t
	}
	return t
}

func (c *Cache) Name() string { return c.name }

// AdapterGUID identifies the adapter that recorded the cache.
func (c *Cache) AdapterGUID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.adapterGUID
}

// Duration returns the recorded duration in seconds.
func (c *Cache) Duration() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.duration
}

func (c *Cache) FrameCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frameCount
}

func (c *Cache) Spawnable() Spawnable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.spawnable
}

func (c *Cache) NumTracks() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.particles)
}

// TrackToParticle returns a copy of the track index to particle index map.
func (c *Cache) TrackToParticle() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]int(nil), c.trackToParticle...)
}

// ParticleTrack returns a copy of the transform track recorded for the
// particle index.
func (c *Cache) ParticleTrack(index int) (TransformTrack, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	track, ok := c.particleToTrack[index]
	if !ok {
		return TransformTrack{}, false
	}
	return c.particles[track].Track.clone(), true
}

// ParticleCurve returns a copy of a per-particle curve.
func (c *Cache) ParticleCurve(index int, name string) (*Curve, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	track, ok := c.particleToTrack[index]
	if !ok {
		return nil, false
	}
	cv, ok := c.particles[track].Curves[name]
	if !ok {
		return nil, false
	}
	return cv.clone(), true
}

// Curve returns a copy of a cache-global curve.
func (c *Cache) Curve(name string) (*Curve, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cv, ok := c.curves[name]
	if !ok {
		return nil, false
	}
	return cv.clone(), true
}

// EventTrack returns a copy of the named event track.
func (c *Cache) EventTrack(name string) (*EventTrack, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.eventTracks[name]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

// EventTrackNames returns the event track names in sorted order.
func (c *Cache) EventTrackNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.eventTracks)
}

// Channels returns the declared and observed channel specs, sorted by name.
func (c *Cache) Channels() []ChannelSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	specs := make([]ChannelSpec, 0, len(c.channels))
	for _, name := range sortedKeys(c.channels) {
		specs = append(specs, c.channels[name])
	}
	return specs
}

func (c *Cache) IsRecording() bool { return c.sessions.Load() < 0 }

func (c *Cache) PlaybackSessions() int {
	n := c.sessions.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// PendingFrames returns the number of frames awaiting flush.
func (c *Cache) PendingFrames() int { return c.pending.Len() }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
