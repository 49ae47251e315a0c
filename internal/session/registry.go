package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/confab-dev/confab-go/internal/models"
)

// Listener is a callback invoked with a copy of each matching event.
type Listener func(models.Event)

// Handle identifies one registration. The same function can be registered
// more than once; each registration gets its own handle and its own delivery.
type Handle string

// Registry maps event types (plus the wildcard key) to listener sets.
// All methods are safe for concurrent use, including removal from within
// a listener that is currently being dispatched to.
type Registry struct {
	mu        sync.RWMutex
	listeners map[string]map[Handle]Listener
}

// NewRegistry creates an empty listener registry.
func NewRegistry() *Registry {
	return &Registry{listeners: make(map[string]map[Handle]Listener)}
}

// On registers fn for the given event type. Use models.Wildcard to receive
// every event. Returns the handle needed to remove the registration.
func (r *Registry) On(eventType string, fn Listener) Handle {
	h := Handle(uuid.New().String())

	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.listeners[eventType]
	if !ok {
		set = make(map[Handle]Listener)
		r.listeners[eventType] = set
	}
	set[h] = fn
	return h
}

// Off removes a registration. Removing an unknown handle is a no-op.
func (r *Registry) Off(eventType string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.listeners[eventType]; ok {
		delete(set, h)
		if len(set) == 0 {
			delete(r.listeners, eventType)
		}
	}
}

// Len returns the number of registrations for an event type.
func (r *Registry) Len(eventType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[eventType])
}

// Dispatch delivers ev to every listener registered for its type, then to
// every wildcard listener, each exactly once. The listener set is snapshotted
// under the lock before any callback runs, so listeners may add or remove
// registrations without affecting the in-progress delivery.
func (r *Registry) Dispatch(ev models.Event) int {
	r.mu.RLock()
	fns := make([]Listener, 0, len(r.listeners[string(ev.Type)])+len(r.listeners[models.Wildcard]))
	for _, fn := range r.listeners[string(ev.Type)] {
		fns = append(fns, fn)
	}
	for _, fn := range r.listeners[models.Wildcard] {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
	return len(fns)
}
