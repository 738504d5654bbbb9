package cache

import "github.com/zeusync/chaoscache/internal/core/physics"

// PlaybackTickRecord is the per-observer playback state: the current query
// time, the space transform that maps recorded root-relative samples into
// world space, and one event cursor per event track.
type PlaybackTickRecord struct {
	time   float64
	lastDt float64
	space  physics.Transform

	cursors   map[string]int
	lastQuery float64
	queried   bool
}

func NewPlaybackTickRecord(space physics.Transform) *PlaybackTickRecord {
	return &PlaybackTickRecord{
		space:   space,
		cursors: make(map[string]int),
	}
}

func (r *PlaybackTickRecord) Time() float64 { return r.time }

func (r *PlaybackTickRecord) SetTime(t float64) { r.time = t }

// Advance moves the playback time forward by dt.
func (r *PlaybackTickRecord) Advance(dt float64) {
	r.time += dt
	r.lastDt = dt
}

// Step sets the playback time reached by a tick of length dt.
func (r *PlaybackTickRecord) Step(time, dt float64) {
	r.time = time
	r.lastDt = dt
}

func (r *PlaybackTickRecord) LastDt() float64 { return r.lastDt }

func (r *PlaybackTickRecord) SpaceTransform() physics.Transform { return r.space }

func (r *PlaybackTickRecord) SetSpaceTransform(t physics.Transform) { r.space = t }

// Cursor returns the index of the next undelivered event on track.
func (r *PlaybackTickRecord) Cursor(track string) int { return r.cursors[track] }

// Reset rewinds time and all event cursors.
func (r *PlaybackTickRecord) Reset() {
	r.time = 0
	r.lastDt = 0
	r.lastQuery = 0
	r.queried = false
	clear(r.cursors)
}
