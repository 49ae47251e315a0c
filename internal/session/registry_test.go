package session

import (
	"testing"

	"github.com/confab-dev/confab-go/internal/models"
)

func event(t models.EventType) models.Event {
	return models.Event{Type: t, DiscussionID: "disc-1"}
}

func TestRegistry_DispatchTypedAndWildcard(t *testing.T) {
	r := NewRegistry()

	var typed, wildcard, other int
	r.On(string(models.EventMessageReceived), func(models.Event) { typed++ })
	r.On(models.Wildcard, func(models.Event) { wildcard++ })
	r.On(string(models.EventTurnStarted), func(models.Event) { other++ })

	n := r.Dispatch(event(models.EventMessageReceived))

	if n != 2 {
		t.Errorf("Dispatch() delivered to %d listeners, want 2", n)
	}
	if typed != 1 {
		t.Errorf("typed listener invoked %d times, want 1", typed)
	}
	if wildcard != 1 {
		t.Errorf("wildcard listener invoked %d times, want 1", wildcard)
	}
	if other != 0 {
		t.Errorf("unrelated listener invoked %d times, want 0", other)
	}
}

func TestRegistry_SameFunctionTwoRegistrations(t *testing.T) {
	r := NewRegistry()

	count := 0
	fn := func(models.Event) { count++ }
	h1 := r.On(string(models.EventMessageReceived), fn)
	h2 := r.On(string(models.EventMessageReceived), fn)

	if h1 == h2 {
		t.Fatalf("expected distinct handles, got %q twice", h1)
	}

	r.Dispatch(event(models.EventMessageReceived))
	if count != 2 {
		t.Errorf("listener invoked %d times, want 2 (one per registration)", count)
	}
}

func TestRegistry_Off(t *testing.T) {
	r := NewRegistry()

	count := 0
	h := r.On(string(models.EventMessageReceived), func(models.Event) { count++ })
	r.Off(string(models.EventMessageReceived), h)

	r.Dispatch(event(models.EventMessageReceived))
	if count != 0 {
		t.Errorf("removed listener invoked %d times, want 0", count)
	}

	// Removing again (or removing an unknown handle) must not panic.
	r.Off(string(models.EventMessageReceived), h)
	r.Off("never-registered", Handle("bogus"))
}

func TestRegistry_RemoveDuringDispatch(t *testing.T) {
	r := NewRegistry()

	var selfCalls, peerCalls int
	var selfHandle Handle
	selfHandle = r.On(string(models.EventMessageReceived), func(models.Event) {
		selfCalls++
		r.Off(string(models.EventMessageReceived), selfHandle)
	})
	r.On(string(models.EventMessageReceived), func(models.Event) { peerCalls++ })

	// First dispatch: both run; the first one removes itself mid-dispatch.
	r.Dispatch(event(models.EventMessageReceived))
	if selfCalls != 1 || peerCalls != 1 {
		t.Fatalf("first dispatch: self=%d peer=%d, want 1/1", selfCalls, peerCalls)
	}

	// Second dispatch: only the remaining listener runs.
	r.Dispatch(event(models.EventMessageReceived))
	if selfCalls != 1 {
		t.Errorf("removed listener invoked again: %d calls", selfCalls)
	}
	if peerCalls != 2 {
		t.Errorf("surviving listener invoked %d times, want 2", peerCalls)
	}
}

func TestRegistry_Len(t *testing.T) {
	r := NewRegistry()
	if got := r.Len("x"); got != 0 {
		t.Errorf("Len() = %d for empty registry, want 0", got)
	}
	h := r.On("x", func(models.Event) {})
	r.On("x", func(models.Event) {})
	if got := r.Len("x"); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
	r.Off("x", h)
	if got := r.Len("x"); got != 1 {
		t.Errorf("Len() = %d after Off, want 1", got)
	}
}
