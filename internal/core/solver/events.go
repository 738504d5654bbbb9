package solver

import (
	"sync"

	"github.com/zeusync/chaoscache/internal/core/events/bus"
	"github.com/zeusync/chaoscache/internal/core/physics"
)

// EventType selects one of the solver's discrete event streams.
type EventType uint8

const (
	EventBreaking EventType = iota
	EventCollision
	EventTrailing
	EventEnableState

	eventTypeCount
)

// EventTypes lists every event stream.
var EventTypes = []EventType{EventBreaking, EventCollision, EventTrailing, EventEnableState}

func (t EventType) String() string {
	switch t {
	case EventBreaking:
		return "breaking"
	case EventCollision:
		return "collision"
	case EventTrailing:
		return "trailing"
	case EventEnableState:
		return "enable_state"
	default:
		return "unknown"
	}
}

type BreakingData struct {
	Particle        ParticleHandle
	Location        physics.Vec3
	Velocity        physics.Vec3
	AngularVelocity physics.Vec3
	Mass            float64
}

type CollisionData struct {
	Particle      ParticleHandle
	Other         ParticleHandle
	Location      physics.Vec3
	Normal        physics.Vec3
	Velocity      physics.Vec3
	OtherVelocity physics.Vec3
	Impulse       physics.Vec3
	Mass          float64
	OtherMass     float64
}

type TrailingData struct {
	Particle        ParticleHandle
	Location        physics.Vec3
	Velocity        physics.Vec3
	AngularVelocity physics.Vec3
	Mass            float64
}

type EnableStateData struct {
	Particle ParticleHandle
	Enabled  bool
}

// EventBatch collects the events raised at one timestamp.
type EventBatch struct {
	Time         float64
	Breakings    []BreakingData
	Collisions   []CollisionData
	Trailings    []TrailingData
	EnableStates []EnableStateData
}

func (b *EventBatch) empty() bool {
	return len(b.Breakings) == 0 && len(b.Collisions) == 0 &&
		len(b.Trailings) == 0 && len(b.EnableStates) == 0
}

func (b *EventBatch) clone() EventBatch {
	return EventBatch{
		Time:         b.Time,
		Breakings:    append([]BreakingData(nil), b.Breakings...),
		Collisions:   append([]CollisionData(nil), b.Collisions...),
		Trailings:    append([]TrailingData(nil), b.Trailings...),
		EnableStates: append([]EnableStateData(nil), b.EnableStates...),
	}
}

// EventManager batches events per type and timestamp. A batch is published
// on the bus when a newer timestamp arrives for the same type or when
// Dispatch is called.
type EventManager struct {
	mu      sync.Mutex
	source  string
	bus     bus.EventBus
	enabled [eventTypeCount]bool
	pending [eventTypeCount]*EventBatch
}

// NewEventManager creates a manager publishing to b. A nil bus drops
// completed batches.
func NewEventManager(source string, b bus.EventBus) *EventManager {
	return &EventManager{source: source, bus: b}
}

// Bus returns the bus completed batches are published on.
func (m *EventManager) Bus() bus.EventBus { return m.bus }

// SetEnabled toggles live generation of an event type.
func (m *EventManager) SetEnabled(t EventType, on bool) {
	m.mu.Lock()
	m.enabled[t] = on
	m.mu.Unlock()
}

func (m *EventManager) IsEnabled(t EventType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[t]
}

// AddEvent merges new data into the pending batch for t. When time is
// later than the pending batch's time, the pending batch is published first
// and a new generation begins.
func (m *EventManager) AddEvent(t EventType, time float64, mutate func(*EventBatch)) error {
	m.mu.Lock()
	var completed *EventBatch
	batch := m.pending[t]
	if batch != nil && time > batch.Time {
		completed = batch
		batch = nil
	}
	if batch == nil {
		batch = &EventBatch{Time: time}
		m.pending[t] = batch
	}
	mutate(batch)
	m.mu.Unlock()

	return m.publish(t, completed)
}

// Pending returns a copy of the batch currently being assembled for t.
func (m *EventManager) Pending(t EventType) EventBatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b := m.pending[t]; b != nil {
		return b.clone()
	}
	return EventBatch{}
}

// Dispatch publishes and clears every pending batch.
func (m *EventManager) Dispatch() error {
	m.mu.Lock()
	batches := m.pending
	m.pending = [eventTypeCount]*EventBatch{}
	m.mu.Unlock()

	var events []bus.Event
	for t, b := range batches {
		if b == nil || b.empty() {
			continue
		}
		events = append(events, bus.NewEvent(EventType(t).String(), m.source, b.Time, *b))
	}
	if m.bus == nil || len(events) == 0 {
		return nil
	}
	return m.bus.PublishBatch(events...)
}

func (m *EventManager) publish(t EventType, b *EventBatch) error {
	if m.bus == nil || b == nil || b.empty() {
		return nil
	}
	return m.bus.Publish(bus.NewEvent(t.String(), m.source, b.Time, *b))
}
