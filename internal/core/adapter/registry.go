package adapter

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/zeusync/chaoscache/pkg/sequence"
)

// Registry is the set of adapters available to managers. Registration is
// expected at startup; managers take a snapshot when a session begins.
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Default is the process-wide registry.
var Default = NewRegistry()

// Register adds a, rejecting a second adapter with the same GUID.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.adapters {
		if existing.GUID() == a.GUID() {
			return fmt.Errorf("%w: %s", ErrDuplicateAdapter, a.GUID())
		}
	}
	r.adapters = append(r.adapters, a)
	return nil
}

func (r *Registry) Unregister(guid uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.adapters {
		if a.GUID() == guid {
			r.adapters = append(r.adapters[:i], r.adapters[i+1:]...)
			return true
		}
	}
	return false
}

// Adapters returns the registered adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Adapter(nil), r.adapters...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

// Select picks the adapter for class from adapters: the lowest priority
// direct match if there is one, otherwise the lowest priority derived
// match. Equal priorities keep registration order.
func Select(adapters []Adapter, class *Class) (Adapter, SupportType) {
	byPriority := func(a, b Adapter) bool { return a.Priority() < b.Priority() }

	for _, want := range []SupportType{SupportDirect, SupportDerived} {
		best, ok := sequence.From(adapters).
			Filter(func(a Adapter) bool { return a.SupportsComponentClass(class) == want }).
			SortStable(byPriority).
			First()
		if ok {
			return best, want
		}
	}
	return nil, SupportNone
}

// Select picks from the registry's current adapters.
func (r *Registry) Select(class *Class) (Adapter, SupportType) {
	return Select(r.Adapters(), class)
}
