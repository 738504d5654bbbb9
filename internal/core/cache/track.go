package cache

import (
	"math"
	"sort"

	"github.com/zeusync/chaoscache/internal/core/physics"
)

// span describes where a query time falls in a timestamp list. A == B means
// a single sample is used verbatim.
type span struct {
	A, B  int
	Alpha float64
	// BeforeStart is set when the query preceded the first sample and was
	// clamped to it.
	BeforeStart bool
}

// bracket returns the last index a with times[a] <= q and b = a+1, or
// a == b == last when q is at or beyond the final sample. ok is false when
// times is empty or q precedes the first sample.
func bracket(times []float64, q float64) (a, b int, ok bool) {
	n := len(times)
	if n == 0 || q < times[0] {
		return 0, 0, false
	}
	a = sort.Search(n, func(i int) bool { return times[i] > q }) - 1
	if a >= n-1 {
		return n - 1, n - 1, true
	}
	return a, a + 1, true
}

// locate resolves q to a span, clamping to the first sample when q is early.
func locate(times []float64, q float64) (span, bool) {
	if len(times) == 0 {
		return span{}, false
	}
	a, b, ok := bracket(times, q)
	if !ok {
		return span{BeforeStart: true}, true
	}
	if a == b {
		return span{A: a, B: b}, true
	}

	alpha := (q - times[a]) / (times[b] - times[a])
	switch {
	case math.Abs(alpha) <= physics.SmallNumber:
		return span{A: a, B: a}, true
	case math.Abs(1-alpha) <= physics.SmallNumber:
		return span{A: b, B: b}, true
	}
	return span{A: a, B: b, Alpha: alpha}, true
}

// TransformTrack is the per-particle transform sample buffer. Times are in
// track-local time; BeginOffset shifts them into cache time.
type TransformTrack struct {
	BeginOffset float64
	Times       []float64
	Transforms  []physics.Transform
}

func (t *TransformTrack) Len() int { return len(t.Times) }

// Append adds a sample. Callers append in non-decreasing time order.
func (t *TransformTrack) Append(time float64, tr physics.Transform) {
	t.Times = append(t.Times, time-t.BeginOffset)
	t.Transforms = append(t.Transforms, tr)
}

// BeginTime is the cache time of the first sample.
func (t *TransformTrack) BeginTime() float64 {
	if len(t.Times) == 0 {
		return 0
	}
	return t.Times[0] + t.BeginOffset
}

// EndTime is the cache time of the last sample.
func (t *TransformTrack) EndTime() float64 {
	if len(t.Times) == 0 {
		return 0
	}
	return t.Times[len(t.Times)-1] + t.BeginOffset
}

// Evaluate samples the track at cache time q.
func (t *TransformTrack) Evaluate(q float64) (physics.Transform, span, bool) {
	s, ok := locate(t.Times, q-t.BeginOffset)
	if !ok {
		return physics.Transform{}, s, false
	}
	if s.A == s.B {
		return t.Transforms[s.A], s, true
	}
	return physics.Blend(t.Transforms[s.A], t.Transforms[s.B], s.Alpha), s, true
}

// RemoveRedundantKeys drops interior keys equal to both neighbours within
// tolerance and returns how many were removed.
func (t *TransformTrack) RemoveRedundantKeys(tolerance float64) int {
	n := len(t.Times)
	if n < 3 {
		return 0
	}
	times := t.Times[:1]
	transforms := t.Transforms[:1]
	for i := 1; i < n-1; i++ {
		prev := transforms[len(transforms)-1]
		if prev.Equal(t.Transforms[i], tolerance) && t.Transforms[i].Equal(t.Transforms[i+1], tolerance) {
			continue
		}
		times = append(times, t.Times[i])
		transforms = append(transforms, t.Transforms[i])
	}
	times = append(times, t.Times[n-1])
	transforms = append(transforms, t.Transforms[n-1])
	removed := n - len(times)
	t.Times, t.Transforms = times, transforms
	return removed
}

func (t *TransformTrack) clone() TransformTrack {
	return TransformTrack{
		BeginOffset: t.BeginOffset,
		Times:       append([]float64(nil), t.Times...),
		Transforms:  append([]physics.Transform(nil), t.Transforms...),
	}
}

// Curve is a sparse scalar channel with its own key times.
type Curve struct {
	Times  []float64
	Values []float64
}

func (c *Curve) Len() int { return len(c.Times) }

func (c *Curve) AddKey(time, value float64) {
	c.Times = append(c.Times, time)
	c.Values = append(c.Values, value)
}

// Evaluate interpolates linearly, clamping outside the key range.
func (c *Curve) Evaluate(q float64) (float64, bool) {
	s, ok := locate(c.Times, q)
	if !ok {
		return 0, false
	}
	if s.A == s.B {
		return c.Values[s.A], true
	}
	return physics.Lerp(c.Values[s.A], c.Values[s.B], s.Alpha), true
}

func (c *Curve) clone() *Curve {
	return &Curve{
		Times:  append([]float64(nil), c.Times...),
		Values: append([]float64(nil), c.Values...),
	}
}

// ParticleData is everything recorded for one particle.
type ParticleData struct {
	Track    TransformTrack
	Curves   map[string]*Curve
	Channels map[string]*ChannelTrack
}

func newParticleData() *ParticleData {
	return &ParticleData{
		Curves:   make(map[string]*Curve),
		Channels: make(map[string]*ChannelTrack),
	}
}

func (p *ParticleData) curve(name string) *Curve {
	c, ok := p.Curves[name]
	if !ok {
		c = &Curve{}
		p.Curves[name] = c
	}
	return c
}
