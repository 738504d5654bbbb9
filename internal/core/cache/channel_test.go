package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zeusync/chaoscache/internal/core/physics"
)

func TestBlendKinds(t *testing.T) {
	assert.InDelta(t, 2.5, Blend(FloatValue(0), FloatValue(10), 0.25).Float, 1e-12)
	assert.Equal(t, int64(3), Blend(IntValue(0), IntValue(7), 0.5).Int, "truncated lerp")
	assert.Equal(t, int64(-3), Blend(IntValue(0), IntValue(-7), 0.5).Int)

	v := Blend(VectorValue(physics.Vec3{X: 1}), VectorValue(physics.Vec3{X: 3, Z: 2}), 0.5).Vector
	assert.Equal(t, physics.Vec3{X: 2, Z: 1}, v)

	c := Blend(ColorValue(Color{R: 1, A: 1}), ColorValue(Color{B: 1, A: 1}), 0.5).Color
	assert.Equal(t, Color{R: 0.5, B: 0.5, A: 1}, c)

	tr := Blend(TransformValue(at(0)), TransformValue(at(4)), 0.25).Transform
	assert.InDelta(t, 1, tr.Translation.X, 1e-12)
}

func TestBlendStructRecurses(t *testing.T) {
	a := StructValue(FloatValue(0), StructValue(IntValue(10)))
	b := StructValue(FloatValue(1), StructValue(IntValue(20)))

	got := Blend(a, b, 0.5)
	assert.Equal(t, KindStruct, got.Kind)
	assert.InDelta(t, 0.5, got.Fields[0].Float, 1e-12)
	assert.Equal(t, int64(15), got.Fields[1].Fields[0].Int)
}

func TestBlendMismatchFallsBackToClosest(t *testing.T) {
	a, b := FloatValue(1), IntValue(2)
	assert.Equal(t, a, Blend(a, b, 0.4))
	assert.Equal(t, b, Blend(a, b, 0.6))

	short := StructValue(FloatValue(1))
	long := StructValue(FloatValue(1), FloatValue(2))
	assert.Equal(t, long, Blend(short, long, 0.9))
}

func TestPickClosestTieGoesToFirst(t *testing.T) {
	a, b := IntValue(1), IntValue(2)
	assert.Equal(t, a, PickClosest(a, b, 0.5))
	assert.Equal(t, b, PickClosest(a, b, 0.51))
}

func TestChannelTrackPolicies(t *testing.T) {
	lerped := &ChannelTrack{Spec: ChannelSpec{Name: "v", Kind: KindFloat, Interpolate: true}}
	stepped := &ChannelTrack{Spec: ChannelSpec{Name: "s", Kind: KindFloat}}
	for _, ch := range []*ChannelTrack{lerped, stepped} {
		ch.AddKey(0, FloatValue(0))
		ch.AddKey(1, FloatValue(1))
	}

	v, ok := lerped.Evaluate(0.3)
	assert.True(t, ok)
	assert.InDelta(t, 0.3, v.Float, 1e-12)

	v, _ = stepped.Evaluate(0.3)
	assert.Equal(t, 0.0, v.Float)
	v, _ = stepped.Evaluate(0.7)
	assert.Equal(t, 1.0, v.Float)

	_, ok = (&ChannelTrack{}).Evaluate(0)
	assert.False(t, ok)
}

func TestEventTrackPushKeepsOrder(t *testing.T) {
	var track EventTrack
	for _, tm := range []float64{1, 3, 2, 3, 0} {
		track.Push(EventEntry{Time: tm})
	}
	var times []float64
	for _, e := range track.Entries {
		times = append(times, e.Time)
	}
	assert.Equal(t, []float64{0, 1, 2, 3, 3}, times)
	assert.Equal(t, 3, track.firstAfter(2))
	assert.Equal(t, 5, track.firstAfter(3))
}

func TestCurveClamps(t *testing.T) {
	var c Curve
	_, ok := c.Evaluate(1)
	assert.False(t, ok)

	c.AddKey(1, 10)
	c.AddKey(3, 30)
	v, _ := c.Evaluate(0)
	assert.Equal(t, 10.0, v)
	v, _ = c.Evaluate(2)
	assert.InDelta(t, 20, v, 1e-12)
	v, _ = c.Evaluate(5)
	assert.Equal(t, 30.0, v)
}
