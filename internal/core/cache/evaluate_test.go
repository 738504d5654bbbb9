package cache

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/chaoscache/internal/core/physics"
)

func evalX(t *testing.T, c *Cache, tick *PlaybackTickRecord, q float64) float64 {
	t.Helper()
	tick.SetTime(q)
	p, ok := c.Evaluate(EvaluationContext{Tick: tick, Flags: EvaluateTransforms}).Particle(0)
	require.True(t, ok)
	require.True(t, p.HasTransform)
	return p.Transform.Translation.X
}

func TestEvaluateInterpolatesAndIsRepeatable(t *testing.T) {
	c := New("interp")
	record(t, c, []float64{0, 1, 2, 3}, []float64{0, 10, 20, 40}, RecordOptions{})

	tick := NewPlaybackTickRecord(physics.Identity())
	for range 3 {
		assert.InDelta(t, 15, evalX(t, c, tick, 1.5), 1e-12)
	}
	assert.InDelta(t, 30, evalX(t, c, tick, 2.5), 1e-12)
	assert.Equal(t, 10.0, evalX(t, c, tick, 1))
}

func TestEvaluateClampsAtBoundaries(t *testing.T) {
	c := New("clamp")
	record(t, c, []float64{1, 2}, []float64{3, 7}, RecordOptions{})

	tick := NewPlaybackTickRecord(physics.Identity())
	tick.SetTime(0.25)
	p, ok := c.Evaluate(EvaluationContext{Tick: tick, Flags: EvaluateTransforms}).Particle(0)
	require.True(t, ok)
	assert.Equal(t, 3.0, p.Transform.Translation.X)
	assert.True(t, p.BeforeStart)

	assert.Equal(t, 7.0, evalX(t, c, tick, 2))
	assert.Equal(t, 7.0, evalX(t, c, tick, 100))
}

func TestEvaluateSingleSample(t *testing.T) {
	c := New("single")
	record(t, c, []float64{0.5}, []float64{42}, RecordOptions{})

	tick := NewPlaybackTickRecord(physics.Identity())
	for _, q := range []float64{-1, 0, 0.5, 3, math.MaxFloat64} {
		assert.Equal(t, 42.0, evalX(t, c, tick, q), "q=%v", q)
	}
}

func TestEvaluateAppliesSpaceTransform(t *testing.T) {
	c := New("space")
	record(t, c, []float64{0, 1}, []float64{0, 2}, RecordOptions{})

	space := physics.NewTransform(physics.Vec3{Y: 5}, physics.FromAxisAngle(physics.Vec3{Z: 1}, math.Pi/2))
	tick := NewPlaybackTickRecord(space)
	tick.SetTime(1)
	p, _ := c.Evaluate(EvaluationContext{Tick: tick, Flags: EvaluateTransforms}).Particle(0)
	assert.InDelta(t, 0, p.Transform.Translation.X, 1e-9)
	assert.InDelta(t, 7, p.Transform.Translation.Y, 1e-9)
}

func TestEvaluateIndexFilter(t *testing.T) {
	c := New("filter")
	token := c.BeginRecord(testGUID, RecordOptions{})
	f := NewPendingFrame(0)
	for _, idx := range []int{4, 9, 11} {
		f.AddParticle(PendingParticleWrite{Index: idx, Transform: at(float64(idx))})
	}
	c.AddFrameConcurrent(f)
	c.EndRecord(token)

	tick := NewPlaybackTickRecord(physics.Identity())
	res := c.Evaluate(EvaluationContext{Tick: tick, Flags: EvaluateTransforms, Indices: []int{9, 10}})
	require.Len(t, res.Particles, 1)
	assert.Equal(t, 9, res.Particles[0].Index)
	_, ok := res.Particle(4)
	assert.False(t, ok)

	all := c.Evaluate(EvaluationContext{Tick: tick, Flags: EvaluateTransforms})
	assert.Len(t, all.Particles, 3)
}

func recordEvents(t *testing.T, c *Cache, times ...float64) {
	t.Helper()
	token := c.BeginRecord(testGUID, RecordOptions{})
	for i, tm := range times {
		f := NewPendingFrame(tm)
		f.PushEvent("collision", tm, hitPayload{Index: i})
		c.AddFrameConcurrent(f)
	}
	c.EndRecord(token)
}

func deliver(c *Cache, tick *PlaybackTickRecord, q float64) []float64 {
	tick.SetTime(q)
	res := c.Evaluate(EvaluationContext{Tick: tick, Flags: EvaluateEvents})
	var times []float64
	for _, e := range res.Events["collision"] {
		times = append(times, e.Time)
	}
	return times
}

func TestEventsDeliveredExactlyOnce(t *testing.T) {
	c := New("events")
	recordEvents(t, c, 0.5, 1.5, 2.5)

	tick := NewPlaybackTickRecord(physics.Identity())
	assert.Equal(t, []float64{0.5}, deliver(c, tick, 1.0))
	assert.Empty(t, deliver(c, tick, 1.0))
	assert.Equal(t, []float64{1.5}, deliver(c, tick, 2.0))
	assert.Equal(t, []float64{2.5}, deliver(c, tick, 3.0))
	assert.Empty(t, deliver(c, tick, 10.0))
	assert.Equal(t, 3, tick.Cursor("collision"))
}

func TestEventCursorsArePerTickRecord(t *testing.T) {
	c := New("sessions")
	recordEvents(t, c, 0.5, 1.5)

	a := NewPlaybackTickRecord(physics.Identity())
	b := NewPlaybackTickRecord(physics.Identity())
	assert.Equal(t, []float64{0.5, 1.5}, deliver(c, a, 2))
	assert.Equal(t, []float64{0.5}, deliver(c, b, 1))
}

func TestEventCursorRewindsOnScrubBack(t *testing.T) {
	c := New("scrub")
	recordEvents(t, c, 0.5, 1.5, 2.5)

	tick := NewPlaybackTickRecord(physics.Identity())
	assert.Equal(t, []float64{0.5, 1.5, 2.5}, deliver(c, tick, 3))

	assert.Empty(t, deliver(c, tick, 1.0))
	assert.Equal(t, 1, tick.Cursor("collision"))
	assert.Equal(t, []float64{1.5}, deliver(c, tick, 2.0))

	tick.Reset()
	assert.Equal(t, []float64{0.5}, deliver(c, tick, 0.5))
}

func TestEvaluateWithoutTickRecord(t *testing.T) {
	c := New("no_tick")
	record(t, c, []float64{0, 1}, []float64{2, 4}, RecordOptions{})

	res := c.Evaluate(EvaluationContext{Flags: EvaluateAll})
	p, ok := res.Particle(0)
	require.True(t, ok)
	assert.Equal(t, 2.0, p.Transform.Translation.X)
	assert.Equal(t, 0.0, res.Time)

	ev := New("no_tick_events")
	recordEvents(t, ev, 0, 0.5)
	res = ev.Evaluate(EvaluationContext{Flags: EvaluateEvents})
	assert.Zero(t, res.EventCount())
}

func TestEvaluateCurvesAndChannels(t *testing.T) {
	c := New("channels")
	token := c.BeginRecord(testGUID, RecordOptions{
		Channels: []ChannelSpec{{Name: "speed", Kind: KindFloat, Interpolate: true}},
	})
	for i, tm := range []float64{0, 1} {
		f := NewPendingFrame(tm)
		f.AddParticle(PendingParticleWrite{
			Index:     0,
			Transform: at(0),
			Curves:    map[string]float64{"heat": float64(i) * 4},
			Channels: map[string]Value{
				"speed": FloatValue(float64(i) * 2),
				"state": IntValue(int64(i + 1)),
			},
		})
		f.SetCurve("wind", float64(i)*10)
		c.AddFrameConcurrent(f)
	}
	c.EndRecord(token)

	tick := NewPlaybackTickRecord(physics.Identity())
	tick.SetTime(0.25)
	res := c.Evaluate(EvaluationContext{Tick: tick, Flags: EvaluateAll})
	p, ok := res.Particle(0)
	require.True(t, ok)
	assert.InDelta(t, 1.0, p.Curves["heat"], 1e-12)
	assert.InDelta(t, 0.5, p.Channels["speed"].Float, 1e-12)
	assert.Equal(t, int64(1), p.Channels["state"].Int)
	assert.InDelta(t, 2.5, res.Curves["wind"], 1e-12)

	tick.SetTime(0.75)
	p, _ = c.Evaluate(EvaluationContext{Tick: tick, Flags: EvaluateChannels}).Particle(0)
	assert.Equal(t, int64(2), p.Channels["state"].Int)
	assert.False(t, p.HasTransform)
	assert.Nil(t, p.Curves)
}

func TestEndToEndLinearMotion(t *testing.T) {
	c := New("e2e")
	record(t, c,
		[]float64{0, 0.5, 1, 1.5, 2},
		[]float64{0, 2.5, 5, 7.5, 10},
		RecordOptions{},
	)
	assert.Equal(t, 2.0, c.Duration())
	assert.Equal(t, 5, c.FrameCount())

	token := c.BeginPlayback()
	require.True(t, token.IsOpen())
	defer c.EndPlayback(token)

	tick := NewPlaybackTickRecord(physics.Identity())
	assert.InDelta(t, 3.75, evalX(t, c, tick, 0.75), 1e-9)
	assert.Equal(t, 10.0, evalX(t, c, tick, 3.0))
}
