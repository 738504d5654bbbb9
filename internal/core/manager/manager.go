// Package manager binds observed scene components to caches and adapters
// and drives recording and playback from the solvers' advance callbacks.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zeusync/chaoscache/internal/core/adapter"
	"github.com/zeusync/chaoscache/internal/core/cache"
	"github.com/zeusync/chaoscache/internal/core/observability/log"
	"github.com/zeusync/chaoscache/internal/core/observability/metrics"
	"github.com/zeusync/chaoscache/internal/core/solver"
)

type Option func(*Manager)

func WithLogger(l log.Log) Option {
	return func(m *Manager) { m.logger = l }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

func WithRegistry(r *adapter.Registry) Option {
	return func(m *Manager) { m.registry = r }
}

func WithCollection(c *cache.Collection) Option {
	return func(m *Manager) { m.collection = c }
}

// WithRecordInterval sets the minimum time between recorded frames.
func WithRecordInterval(seconds float64) Option {
	return func(m *Manager) { m.recordInterval = seconds }
}

// WithCompression drops redundant transform keys when recordings end.
func WithCompression(on bool) Option {
	return func(m *Manager) { m.compress = on }
}

// solverData is the per-solver bookkeeping. The playback and record lists
// are complete before the callbacks are registered and fixed for the
// session; pending is written by the solver's own callbacks only.
type solverData struct {
	solver solver.Solver

	pre, preBuffer, post solver.CallbackHandle

	playback []*binding
	record   []*binding

	mu      sync.Mutex
	pending []solver.ParticleHandle
	scratch []solver.ParticleHandle
}

// Manager orchestrates record and playback sessions for observed
// components.
type Manager struct {
	logger         log.Log
	metrics        *metrics.Collector
	registry       *adapter.Registry
	collection     *cache.Collection
	recordInterval float64
	compress       bool
	collectionName string
	parallelFlush  int

	mu        sync.Mutex
	observed  []*observed
	solvers   map[solver.Solver]*solverData
	failures  []Failure
	running   bool
	needsTick bool
}

func New(opts ...Option) *Manager {
	m := &Manager{
		logger:         log.Nop(),
		registry:       adapter.Default,
		solvers:        make(map[solver.Solver]*solverData),
		collectionName: "default",
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.collection == nil {
		m.collection = cache.NewCollection(m.collectionName,
			cache.WithCollectionLogger(m.logger),
			cache.WithCollectionMetrics(m.metrics),
			cache.WithParallelFlush(m.parallelFlush),
		)
	}
	return m
}

// FromConfig builds a manager from cfg, resolving components through r.
func FromConfig(cfg *Config, r Resolver, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := []Option{
		WithRecordInterval(float64(cfg.RecordInterval)),
		WithCompression(cfg.Compress),
		func(m *Manager) {
			m.collectionName = cfg.Collection
			m.parallelFlush = cfg.ParallelFlush
		},
	}
	m := New(append(base, opts...)...)
	for _, o := range cfg.Observed {
		m.Observe(Observation{
			Component:     RefByName(o.Component, r),
			Cache:         o.Cache,
			Mode:          o.Mode,
			Start:         o.Start,
			TimedDuration: float64(o.TimedDuration),
		})
	}
	return m, nil
}

func (m *Manager) Collection() *cache.Collection { return m.collection }

// Observe registers a component and returns its index. Observations added
// while a session runs take effect at the next BeginPlay.
func (m *Manager) Observe(o Observation) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed = append(m.observed, &observed{Observation: o})
	return len(m.observed) - 1
}

// Observed returns a snapshot of every observed component.
func (m *Manager) Observed() []ObservedStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ObservedStatus, len(m.observed))
	for i, o := range m.observed {
		out[i] = o.status()
	}
	return out
}

// Failures returns the components that could not start in the last
// session.
func (m *Manager) Failures() []Failure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Failure(nil), m.failures...)
}

// NeedsTick reports whether Update has recorded frames to flush.
func (m *Manager) NeedsTick() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.needsTick
}

func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// BeginPlay starts a session: every observed component is bound to an
// adapter and a cache, then solver callbacks are registered once per
// solver. Components that cannot start are skipped and reported through
// Failures; only a running session or a cancelled context is an error.
func (m *Manager) BeginPlay(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrRunning
	}
	m.running = true
	m.failures = nil
	m.needsTick = false

	adapters := m.registry.Adapters()
	solvers := make(map[solver.Solver]*solverData)
	for _, o := range m.observed {
		if err := ctx.Err(); err != nil {
			m.endPlayLocked()
			return err
		}
		o.reset()
		b, err := m.bind(o, adapters)
		if err != nil {
			m.failures = append(m.failures, Failure{
				Component: o.Component.Name(),
				Cache:     o.Cache,
				Mode:      o.Mode,
				Err:       err,
			})
			continue
		}
		o.bound = b

		sd, ok := solvers[b.solver]
		if !ok {
			sd = &solverData{solver: b.solver}
			solvers[b.solver] = sd
		}
		if b.token.Kind() == cache.SessionRecord {
			sd.record = append(sd.record, b)
			m.needsTick = true
		} else {
			sd.playback = append(sd.playback, b)
		}
	}

	// Solvers may already be advancing on other goroutines; they only see
	// fully bound entries.
	for _, sd := range solvers {
		m.register(sd)
	}
	m.solvers = solvers

	m.logger.Info("cache session started",
		log.Int("observed", len(m.observed)),
		log.Int("solvers", len(m.solvers)),
		log.Int("failed", len(m.failures)),
		log.Bool("needs_tick", m.needsTick),
	)
	m.reportFailures("cache components inactive")
	return nil
}

// bind resolves o's component, adapter and cache and opens the cache
// session. Nothing is published to the solver.
func (m *Manager) bind(o *observed, adapters []adapter.Adapter) (*binding, error) {
	comp, ok := o.Component.Resolve()
	if !ok {
		return nil, ErrComponentNotFound
	}
	a, _ := adapter.Select(adapters, comp.Class())
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoAdapter, comp.Class().Name())
	}
	s := a.ComponentSolver(comp)
	if s == nil {
		return nil, adapter.ErrNoSolver
	}

	switch o.Mode {
	case ModePlay:
		c := m.collection.FindCache(o.Cache)
		if c == nil {
			return nil, fmt.Errorf("%w: %q", ErrCacheNotFound, o.Cache)
		}
		if c.AdapterGUID() != a.GUID() {
			return nil, fmt.Errorf("%w: recorded by adapter %s", ErrIncompatibleCache, c.AdapterGUID())
		}
		token := c.BeginPlayback()
		if !token.IsOpen() {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, cache.ErrSessionOpen)
		}
		if !a.ValidForPlayback(comp, c) {
			c.EndPlayback(token)
			return nil, fmt.Errorf("%w: particle layout mismatch", ErrIncompatibleCache)
		}
		if err := a.InitializeForPlayback(comp, c, 0); err != nil {
			c.EndPlayback(token)
			return nil, err
		}
		return &binding{
			o:       o,
			adapter: a,
			solver:  s,
			cache:   c,
			token:   token,
			tick:    cache.NewPlaybackTickRecord(comp.WorldTransform()),
		}, nil

	case ModeRecord:
		c := m.collection.FindOrAddCache(o.Cache)
		token := c.BeginRecord(a.GUID(), cache.RecordOptions{
			Spawnable: cache.Spawnable{Template: comp.Name(), InitialTransform: comp.WorldTransform()},
			Channels:  a.Schema(),
			Compress:  m.compress,
		})
		if !token.IsOpen() {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, cache.ErrSessionOpen)
		}
		if err := a.InitializeForRecord(comp, c); err != nil {
			c.EndRecord(token)
			return nil, err
		}
		root := comp.WorldTransform()
		return &binding{
			o:       o,
			adapter: a,
			solver:  s,
			cache:   c,
			token:   token,
			root:    root,
			tick:    cache.NewPlaybackTickRecord(root),
		}, nil
	}
	return nil, fmt.Errorf("manager: unknown cache mode %d", o.Mode)
}

// register installs the three solver callbacks for sd.
func (m *Manager) register(sd *solverData) {
	s := sd.solver
	sd.pre = s.AddPreAdvanceCallback(func(dt float64) { m.preSolve(sd, dt) })
	sd.preBuffer = s.AddPreBufferCallback(func(dt float64) { m.preBuffer(sd, dt) })
	sd.post = s.AddPostAdvanceCallback(func(dt float64) { m.postSolve(sd, dt) })
	m.logger.Debug("solver callbacks registered", log.String("solver", s.Name()))
}

func (m *Manager) preSolve(sd *solverData, dt float64) {
	updated := sd.scratch[:0]
	for _, b := range sd.playback {
		comp, ok := b.o.Component.Resolve()
		if !ok {
			continue
		}
		now, active := b.o.advance(dt)
		if !active {
			continue
		}
		b.tick.Step(now, dt)
		updated = b.adapter.PlaybackPreSolve(comp, b.cache, now, b.tick, updated)
	}
	sd.scratch = updated[:0]

	if len(updated) == 0 {
		return
	}
	sd.mu.Lock()
	sd.pending = append(sd.pending, updated...)
	sd.mu.Unlock()
}

func (m *Manager) preBuffer(sd *solverData, _ float64) {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	if len(sd.pending) == 0 {
		return
	}
	sd.solver.MarkDirty(sd.pending...)
	sd.pending = sd.pending[:0]
}

func (m *Manager) postSolve(sd *solverData, dt float64) {
	for _, b := range sd.record {
		comp, ok := b.o.Component.Resolve()
		if !ok {
			continue
		}
		now, active := b.o.advance(dt)
		if !active || !b.o.shouldRecord(now, m.recordInterval) {
			continue
		}
		frame := cache.NewPendingFrame(now)
		b.adapter.RecordPostSolve(comp, b.root, frame, now)
		b.cache.AddFrameConcurrent(frame)
	}
}

// Update is the consuming-side tick: it flushes recorded frames into
// their caches and returns how many frames were merged.
func (m *Manager) Update(_ float64) int {
	if !m.NeedsTick() {
		return 0
	}
	return m.collection.FlushAllCacheWrites()
}

// EndPlay stops the session: solver callbacks are removed and every open
// record or playback session is closed, flushing recordings. A callback
// that cannot be removed means it was lost while registered and panics.
func (m *Manager) EndPlay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.endPlayLocked()
	m.reportFailures("cache components were inactive this session")
}

func (m *Manager) endPlayLocked() {
	for s, sd := range m.solvers {
		if !s.RemovePreAdvanceCallback(sd.pre) ||
			!s.RemovePreBufferCallback(sd.preBuffer) ||
			!s.RemovePostAdvanceCallback(sd.post) {
			panic(fmt.Sprintf("manager: solver %q lost a registered callback", s.Name()))
		}
	}
	m.solvers = make(map[solver.Solver]*solverData)

	closed := 0
	for _, o := range m.observed {
		if o.bound != nil && o.bound.close() {
			closed++
		}
	}

	m.running = false
	m.needsTick = false
	m.logger.Info("cache session ended", log.Int("sessions_closed", closed))
}

func (m *Manager) reportFailures(msg string) {
	if len(m.failures) == 0 {
		return
	}
	details := make([]string, len(m.failures))
	for i, f := range m.failures {
		details[i] = f.String()
	}
	m.logger.Warn(msg, log.Int("count", len(m.failures)), log.Strings("components", details))
}

// TriggerComponent starts every triggered-mode observation of c and
// returns how many were started.
func (m *Manager) TriggerComponent(c adapter.Component) int {
	return m.triggerWhere(func(o *observed) bool {
		got, ok := o.Component.Resolve()
		return ok && got == c
	})
}

// TriggerComponentByCache starts every triggered-mode observation using
// the named cache.
func (m *Manager) TriggerComponentByCache(name string) int {
	return m.triggerWhere(func(o *observed) bool {
		if o.bound != nil {
			return o.bound.cache.Name() == name
		}
		return o.Cache == name
	})
}

// TriggerAll starts every triggered-mode observation.
func (m *Manager) TriggerAll() int {
	return m.triggerWhere(func(*observed) bool { return true })
}

func (m *Manager) triggerWhere(match func(*observed) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.observed {
		if o.Start != StartTriggered || !match(o) {
			continue
		}
		if o.trigger() {
			n++
		}
	}
	if n > 0 {
		m.logger.Debug("observed components triggered", log.Int("count", n))
	}
	return n
}

// SetAllMode switches every observation to mode. It fails while a session
// runs.
func (m *Manager) SetAllMode(mode CacheMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrRunning
	}
	for _, o := range m.observed {
		o.Mode = mode
	}
	return nil
}

// ResetAllComponentTransforms moves every playback component back to the
// initial transform stored in its cache.
func (m *Manager) ResetAllComponentTransforms() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, o := range m.observed {
		if o.Mode != ModePlay {
			continue
		}
		comp, ok := o.Component.Resolve()
		if !ok {
			continue
		}
		c := m.collection.FindCache(o.Cache)
		if c == nil {
			errs = append(errs, fmt.Errorf("%w: %q", ErrCacheNotFound, o.Cache))
			continue
		}
		comp.SetWorldTransform(c.Spawnable().InitialTransform)
	}
	return errors.Join(errs...)
}
