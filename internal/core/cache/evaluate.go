package cache

import "github.com/zeusync/chaoscache/internal/core/physics"

// EvaluateFlags select which channel kinds Evaluate computes.
type EvaluateFlags uint8

const (
	EvaluateTransforms EvaluateFlags = 1 << iota
	EvaluateCurves
	EvaluateChannels
	EvaluateEvents

	EvaluateAll = EvaluateTransforms | EvaluateCurves | EvaluateChannels | EvaluateEvents
)

func (f EvaluateFlags) Has(o EvaluateFlags) bool { return f&o != 0 }

// EvaluationContext describes one Evaluate call. Indices restricts the
// evaluation to the given particle indices; nil means every track. A nil
// Tick samples time zero in identity space and delivers no events, since
// there is no session to hold the event cursors.
type EvaluationContext struct {
	Tick    *PlaybackTickRecord
	Flags   EvaluateFlags
	Indices []int
}

// EvaluatedParticle is the sampled state of one particle. Transform is in
// the space of the tick record.
type EvaluatedParticle struct {
	Index        int
	Transform    physics.Transform
	HasTransform bool
	// BeforeStart is set when the query preceded the particle's first sample.
	BeforeStart bool
	Curves      map[string]float64
	Channels    map[string]Value
}

// EvaluatedResult holds everything one Evaluate call produced.
type EvaluatedResult struct {
	Time      float64
	Particles []EvaluatedParticle
	Curves    map[string]float64
	Events    map[string][]EventEntry

	byIndex map[int]int
}

// Particle looks up the evaluated state by particle index.
func (r *EvaluatedResult) Particle(index int) (EvaluatedParticle, bool) {
	i, ok := r.byIndex[index]
	if !ok {
		return EvaluatedParticle{}, false
	}
	return r.Particles[i], true
}

// EventCount returns the number of delivered events across all tracks.
func (r *EvaluatedResult) EventCount() int {
	n := 0
	for _, entries := range r.Events {
		n += len(entries)
	}
	return n
}

// Evaluate samples the cache at the tick record's current time. Each event
// is delivered once per tick record, by the first call whose time reaches
// it. A query earlier than the previous one rewinds each cursor to the
// first event after the new time and delivers nothing.
func (c *Cache) Evaluate(ctx EvaluationContext) *EvaluatedResult {
	if ctx.Tick == nil {
		ctx.Tick = NewPlaybackTickRecord(physics.Identity())
		ctx.Flags &^= EvaluateEvents
	}
	tick := ctx.Tick
	q := tick.Time()

	res := &EvaluatedResult{
		Time:    q,
		byIndex: make(map[int]int),
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if ctx.Flags.Has(EvaluateTransforms | EvaluateCurves | EvaluateChannels) {
		if ctx.Indices == nil {
			for track := range c.particles {
				c.evaluateParticle(res, ctx, track, q)
			}
		} else {
			for _, index := range ctx.Indices {
				if track, ok := c.particleToTrack[index]; ok {
					c.evaluateParticle(res, ctx, track, q)
				}
			}
		}
	}

	if ctx.Flags.Has(EvaluateCurves) && len(c.curves) > 0 {
		res.Curves = make(map[string]float64, len(c.curves))
		for name, cv := range c.curves {
			if v, ok := cv.Evaluate(q); ok {
				res.Curves[name] = v
			}
		}
	}

	if ctx.Flags.Has(EvaluateEvents) {
		c.deliverEvents(res, tick, q)
	}
	return res
}

func (c *Cache) evaluateParticle(res *EvaluatedResult, ctx EvaluationContext, track int, q float64) {
	p := c.particles[track]
	out := EvaluatedParticle{Index: c.trackToParticle[track]}

	if ctx.Flags.Has(EvaluateTransforms) {
		if local, s, ok := p.Track.Evaluate(q); ok {
			out.Transform = ctx.Tick.SpaceTransform().Compose(local)
			out.HasTransform = true
			out.BeforeStart = s.BeforeStart
		}
	}
	if ctx.Flags.Has(EvaluateCurves) && len(p.Curves) > 0 {
		out.Curves = make(map[string]float64, len(p.Curves))
		for name, cv := range p.Curves {
			if v, ok := cv.Evaluate(q); ok {
				out.Curves[name] = v
			}
		}
	}
	if ctx.Flags.Has(EvaluateChannels) && len(p.Channels) > 0 {
		out.Channels = make(map[string]Value, len(p.Channels))
		for name, ch := range p.Channels {
			if v, ok := ch.Evaluate(q); ok {
				out.Channels[name] = v
			}
		}
	}

	res.byIndex[out.Index] = len(res.Particles)
	res.Particles = append(res.Particles, out)
}

func (c *Cache) deliverEvents(res *EvaluatedResult, tick *PlaybackTickRecord, q float64) {
	rewind := tick.queried && q < tick.lastQuery
	tick.lastQuery = q
	tick.queried = true

	for name, track := range c.eventTracks {
		end := track.firstAfter(q)
		if rewind {
			tick.cursors[name] = end
			continue
		}
		cur := tick.cursors[name]
		if end <= cur {
			continue
		}
		if res.Events == nil {
			res.Events = make(map[string][]EventEntry)
		}
		res.Events[name] = append([]EventEntry(nil), track.Entries[cur:end]...)
		tick.cursors[name] = end
		c.metrics.EventsDelivered(c.name, name, end-cur)
	}
}
