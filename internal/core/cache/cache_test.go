package cache

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/chaoscache/internal/core/physics"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type hitPayload struct {
	Index   int
	Impulse float64
}

func init() {
	RegisterPayload(hitPayload{})
}

var testGUID = uuid.MustParse("6f1c1f3e-3a55-4f43-9a43-0c7f3c1b2a10")

func at(x float64) physics.Transform {
	return physics.FromTranslation(physics.Vec3{X: x})
}

// record writes one frame per sample for particle 0 and closes the session.
func record(t *testing.T, c *Cache, times, xs []float64, opts RecordOptions) {
	t.Helper()
	token := c.BeginRecord(testGUID, opts)
	require.True(t, token.IsOpen())
	for i := range times {
		f := NewPendingFrame(times[i])
		f.AddParticle(PendingParticleWrite{Index: 0, Transform: at(xs[i])})
		c.AddFrameConcurrent(f)
	}
	c.EndRecord(token)
}

func TestBeginRecordRejectedWhilePlaying(t *testing.T) {
	c := New("exclusive")
	record(t, c, []float64{0, 1}, []float64{0, 1}, RecordOptions{})

	play := c.BeginPlayback()
	require.True(t, play.IsOpen())

	rec := c.BeginRecord(testGUID, RecordOptions{})
	assert.False(t, rec.IsOpen())
	assert.Equal(t, 1, c.NumTracks(), "rejected record must not clear data")
	assert.Equal(t, 2, c.FrameCount())

	c.EndPlayback(play)
	assert.Equal(t, 0, c.PlaybackSessions())
}

func TestBeginPlaybackRejectedWhileRecording(t *testing.T) {
	c := New("exclusive")
	rec := c.BeginRecord(testGUID, RecordOptions{})
	require.True(t, rec.IsOpen())
	assert.True(t, c.IsRecording())

	assert.False(t, c.BeginPlayback().IsOpen())
	assert.False(t, c.BeginRecord(testGUID, RecordOptions{}).IsOpen())

	c.EndRecord(rec)
	assert.False(t, c.IsRecording())

	a, b := c.BeginPlayback(), c.BeginPlayback()
	assert.True(t, a.IsOpen())
	assert.True(t, b.IsOpen())
	assert.Equal(t, 2, c.PlaybackSessions())
	c.EndPlayback(a)
	c.EndPlayback(b)
}

func TestTokenMisuse(t *testing.T) {
	c := New("a")
	other := New("b")

	rec := c.BeginRecord(testGUID, RecordOptions{})
	assert.Panics(t, func() { other.EndRecord(rec) }, "foreign token")
	assert.Panics(t, func() { c.EndPlayback(rec) }, "wrong kind")
	c.EndRecord(rec)
	assert.Panics(t, func() { c.EndRecord(rec) }, "double close")

	rejected := other.BeginRecord(testGUID, RecordOptions{})
	require.True(t, rejected.IsOpen())
	closed := other.BeginPlayback()
	assert.False(t, closed.IsOpen())
	assert.Panics(t, func() { other.EndPlayback(closed) }, "closed token")
	other.EndRecord(rejected)

	assert.Panics(t, func() { c.EndPlayback(nil) })
}

func TestFlushRoundTrip(t *testing.T) {
	c := New("flush")
	token := c.BeginRecord(testGUID, RecordOptions{})

	frames := []struct {
		time    float64
		touched []int
	}{
		{0.0, []int{0, 1, 2}},
		{0.1, []int{1}},
		{0.2, []int{0, 2}},
		{0.3, []int{2, 7}},
	}
	for _, fr := range frames {
		f := NewPendingFrame(fr.time)
		for _, idx := range fr.touched {
			f.AddParticle(PendingParticleWrite{Index: idx, Transform: at(float64(idx))})
		}
		c.AddFrameConcurrent(f)
	}
	assert.Equal(t, 4, c.PendingFrames())
	assert.Equal(t, 4, c.FlushPendingFrames())
	assert.Equal(t, 0, c.PendingFrames())

	want := map[int][]float64{
		0: {0.0, 0.2},
		1: {0.0, 0.1},
		2: {0.0, 0.2, 0.3},
		7: {0.3},
	}
	for idx, times := range want {
		track, ok := c.ParticleTrack(idx)
		require.True(t, ok, "particle %d", idx)
		assert.Equal(t, times, track.Times, "particle %d", idx)
		assert.Len(t, track.Transforms, len(times))
	}
	_, ok := c.ParticleTrack(3)
	assert.False(t, ok)
	assert.Equal(t, []int{0, 1, 2, 7}, c.TrackToParticle())

	c.EndRecord(token)
	assert.InDelta(t, 0.3, c.Duration(), 1e-12)
	assert.Equal(t, 4, c.FrameCount())
	assert.Equal(t, testGUID, c.AdapterGUID())
}

func TestBeginRecordClearsPreviousData(t *testing.T) {
	c := New("rerecord")
	record(t, c, []float64{0, 1, 2}, []float64{0, 1, 2}, RecordOptions{})
	require.Equal(t, 3, c.FrameCount())

	record(t, c, []float64{0}, []float64{5}, RecordOptions{Spawnable: Spawnable{Template: "crate"}})
	assert.Equal(t, 1, c.FrameCount())
	track, _ := c.ParticleTrack(0)
	assert.Equal(t, []float64{0}, track.Times)
	assert.Equal(t, "crate", c.Spawnable().Template)
}

func TestCurvesChannelsAndEventsAreMerged(t *testing.T) {
	c := New("merge")
	token := c.BeginRecord(testGUID, RecordOptions{
		Channels: []ChannelSpec{{Name: "velocity", Kind: KindVector, Interpolate: true}},
	})

	for i, tm := range []float64{0, 1} {
		f := NewPendingFrame(tm)
		f.AddParticle(PendingParticleWrite{
			Index:     3,
			Transform: at(tm),
			Curves:    map[string]float64{"heat": float64(i * 10)},
			Channels: map[string]Value{
				"velocity": VectorValue(physics.Vec3{Y: float64(i)}),
				"state":    IntValue(int64(i)),
			},
		})
		f.SetCurve("wind", float64(i))
		f.PushEvent("collision", tm, hitPayload{Index: 3, Impulse: tm})
		c.AddFrameConcurrent(f)
	}
	c.EndRecord(token)

	heat, ok := c.ParticleCurve(3, "heat")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 10}, heat.Values)

	wind, ok := c.Curve("wind")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1}, wind.Times)

	events, ok := c.EventTrack("collision")
	require.True(t, ok)
	assert.Equal(t, 2, events.Len())
	assert.Equal(t, "cache.hitPayload", events.Type)
	assert.Equal(t, []string{"collision"}, c.EventTrackNames())

	specs := c.Channels()
	require.Len(t, specs, 2)
	assert.Equal(t, ChannelSpec{Name: "state", Kind: KindInt}, specs[0])
	assert.True(t, specs[1].Interpolate)
}

func TestCompressDropsRedundantKeys(t *testing.T) {
	c := New("compress")
	times := []float64{0, 1, 2, 3, 4}
	xs := []float64{0, 0, 0, 5, 5}
	record(t, c, times, xs, RecordOptions{Compress: true})

	track, _ := c.ParticleTrack(0)
	assert.Equal(t, []float64{0, 2, 3, 4}, track.Times)

	tick := NewPlaybackTickRecord(physics.Identity())
	for _, q := range []float64{0.5, 1.5, 2.5, 3.5} {
		tick.SetTime(q)
		p, ok := c.Evaluate(EvaluationContext{Tick: tick, Flags: EvaluateTransforms}).Particle(0)
		require.True(t, ok)
		want := 0.0
		if q > 2 {
			want = min(5, (q-2)*5)
		}
		assert.InDelta(t, want, p.Transform.Translation.X, 1e-9, "q=%v", q)
	}
}

func TestConcurrentProducerAndFlush(t *testing.T) {
	c := New("spsc")
	token := c.BeginRecord(testGUID, RecordOptions{})

	const frames = 500
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range frames {
			f := NewPendingFrame(float64(i))
			f.AddParticle(PendingParticleWrite{Index: 0, Transform: at(float64(i))})
			c.AddFrameConcurrent(f)
		}
	}()

	flushed := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		flushed += c.FlushPendingFrames()
	}
	flushed += c.FlushPendingFrames()
	c.EndRecord(token)

	assert.Equal(t, frames, flushed)
	track, _ := c.ParticleTrack(0)
	require.Len(t, track.Times, frames)
	for i, tm := range track.Times {
		assert.Equal(t, float64(i), tm)
	}
}
