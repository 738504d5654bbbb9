package cache

import (
	"encoding/gob"
	"fmt"
	"sort"
)

// EventEntry is one timestamped discrete event. Payload types must be
// registered with RegisterPayload to be persisted.
type EventEntry struct {
	Time    float64
	Payload any
}

// EventTrack is a named, time-ordered sequence of events of one payload type.
type EventTrack struct {
	Name    string
	Type    string
	Entries []EventEntry
}

// RegisterPayload makes a payload type known to the asset codec.
func RegisterPayload(v any) {
	gob.Register(v)
}

func payloadType(v any) string {
	return fmt.Sprintf("%T", v)
}

func (t *EventTrack) Len() int { return len(t.Entries) }

// Push appends e, inserting it after any entries with the same or earlier
// time so the track stays ordered.
func (t *EventTrack) Push(e EventEntry) {
	n := len(t.Entries)
	if n == 0 || t.Entries[n-1].Time <= e.Time {
		t.Entries = append(t.Entries, e)
		return
	}
	i := t.firstAfter(e.Time)
	t.Entries = append(t.Entries, EventEntry{})
	copy(t.Entries[i+1:], t.Entries[i:])
	t.Entries[i] = e
}

// firstAfter returns the index of the first entry with Time > q.
func (t *EventTrack) firstAfter(q float64) int {
	return sort.Search(len(t.Entries), func(i int) bool { return t.Entries[i].Time > q })
}

func (t *EventTrack) clone() *EventTrack {
	return &EventTrack{
		Name:    t.Name,
		Type:    t.Type,
		Entries: append([]EventEntry(nil), t.Entries...),
	}
}
