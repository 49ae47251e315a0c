package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/confab-dev/confab-go/internal/models"
)

// fakeTransport is a controllable Transport for manager tests.
type fakeTransport struct {
	mu     sync.Mutex
	joins  []string
	leaves []string
	sent   []string

	events chan *models.Event
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events: make(chan *models.Event, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (t *fakeTransport) Join(roomID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.joins = append(t.joins, roomID)
	return nil
}

func (t *fakeTransport) Leave(roomID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaves = append(t.leaves, roomID)
	return nil
}

func (t *fakeTransport) Send(roomID, body string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, roomID+":"+body)
	return nil
}

func (t *fakeTransport) Receive() (*models.Event, error) {
	select {
	case ev := <-t.events:
		return ev, nil
	case err := <-t.errs:
		return nil, err
	case <-t.closed:
		return nil, errors.New("transport closed")
	}
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

// fail simulates an unrequested transport drop.
func (t *fakeTransport) fail(err error) {
	t.errs <- err
}

func (t *fakeTransport) joinedRooms() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := append([]string(nil), t.joins...)
	sort.Strings(out)
	return out
}

// fakeDialer hands out fakeTransports, optionally failing some dials.
type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	dials      int
	failNext   int  // fail this many upcoming dials with a transport error
	failAll    bool // fail every dial
	authFail   bool // fail every dial with an auth error
}

func (d *fakeDialer) factory() TransportFactory {
	return func(ctx context.Context, creds Credentials) (Transport, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.dials++
		if d.authFail {
			return nil, &AuthError{Reason: "rejected"}
		}
		if d.failAll {
			return nil, fmt.Errorf("dial refused")
		}
		if d.failNext > 0 {
			d.failNext--
			return nil, fmt.Errorf("dial refused")
		}
		t := newFakeTransport()
		d.transports = append(d.transports, t)
		return t, nil
	}
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) transport(i int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.transports) {
		return nil
	}
	return d.transports[i]
}

func testManager(t *testing.T, d *fakeDialer, creds Credentials) *Manager {
	t.Helper()
	cfg := Config{ReconnectAttempts: 3, ReconnectDelay: time.Millisecond}
	return NewManager(cfg, StaticCredentials(creds), d.factory(), NewRegistry(),
		slog.New(slog.DiscardHandler))
}

func validCreds() Credentials {
	return Credentials{Token: "tok", Identity: "alice"}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestManager_ConnectWithoutCredentials(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{"empty token", Credentials{Identity: "alice"}},
		{"empty identity", Credentials{Token: "tok"}},
		{"both empty", Credentials{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDialer{}
			m := testManager(t, d, tt.creds)

			err := m.Connect(context.Background())

			var authErr *AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("Connect() error = %v, want *AuthError", err)
			}
			if d.dialCount() != 0 {
				t.Errorf("dial attempted %d times, want 0 (fail-fast)", d.dialCount())
			}
			if m.State() != StateDisconnected {
				t.Errorf("state = %s, want disconnected", m.State())
			}
		})
	}
}

func TestManager_ConnectReplaysRoomsJoinedWhileDisconnected(t *testing.T) {
	d := &fakeDialer{}
	m := testManager(t, d, validCreds())

	// Joins before connect are remembered, not sent.
	if err := m.JoinRoom("r1"); err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}
	if err := m.JoinRoom("r2"); err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if m.State() != StateConnected {
		t.Fatalf("state = %s, want connected", m.State())
	}

	got := d.transport(0).joinedRooms()
	want := []string{"r1", "r2"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("joins after connect = %v, want %v", got, want)
	}
}

func TestManager_JoinRoomIdempotent(t *testing.T) {
	d := &fakeDialer{}
	m := testManager(t, d, validCreds())
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	m.JoinRoom("r1")
	m.JoinRoom("r1")

	if got := d.transport(0).joinedRooms(); len(got) != 1 {
		t.Errorf("join requests = %v, want exactly one", got)
	}
}

func TestManager_DispatchInboundEvents(t *testing.T) {
	d := &fakeDialer{}
	m := testManager(t, d, validCreds())

	got := make(chan models.Event, 1)
	m.On(string(models.EventMessageReceived), func(ev models.Event) { got <- ev })

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	d.transport(0).events <- &models.Event{
		Type:         models.EventMessageReceived,
		DiscussionID: "disc-1",
		Payload:      models.MessagePayload{Sender: "bob", Body: "hi"},
	}

	select {
	case ev := <-got:
		if ev.DiscussionID != "disc-1" {
			t.Errorf("DiscussionID = %q, want disc-1", ev.DiscussionID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not dispatched")
	}
}

func TestManager_ReconnectReplaysRoomSet(t *testing.T) {
	d := &fakeDialer{}
	m := testManager(t, d, validCreds())
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.JoinRoom("r1")
	m.JoinRoom("r2")

	// Drop the transport; first reconnect attempt fails, second succeeds.
	d.mu.Lock()
	d.failNext = 1
	d.mu.Unlock()
	d.transport(0).fail(errors.New("broken pipe"))

	waitFor(t, "reconnect", func() bool {
		return d.transport(1) != nil && m.State() == StateConnected
	})

	got := d.transport(1).joinedRooms()
	want := []string{"r1", "r2"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("joins after reconnect = %v, want %v (exactly one each)", got, want)
	}
}

func TestManager_ReconnectExhaustedSurfacesError(t *testing.T) {
	d := &fakeDialer{}
	m := testManager(t, d, validCreds())

	lost := make(chan models.Event, 1)
	m.On(string(models.EventConnectionLost), func(ev models.Event) { lost <- ev })

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	d.mu.Lock()
	d.failAll = true
	d.mu.Unlock()
	d.transport(0).fail(errors.New("broken pipe"))

	waitFor(t, "disconnect after exhausted attempts", func() bool {
		return m.State() == StateDisconnected
	})

	var transportErr *TransportError
	if err := m.LastError(); !errors.As(err, &transportErr) {
		t.Fatalf("LastError() = %v, want *TransportError", err)
	} else if transportErr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", transportErr.Attempts)
	}

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("terminal connection error was not surfaced as an event")
	}

	// 1 initial + 3 failed reconnect attempts.
	if got := d.dialCount(); got != 4 {
		t.Errorf("dial count = %d, want 4", got)
	}
}

func TestManager_DisconnectClearsRooms(t *testing.T) {
	d := &fakeDialer{}
	m := testManager(t, d, validCreds())
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.JoinRoom("r1")

	m.Disconnect()
	if m.State() != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", m.State())
	}
	if rooms := m.Rooms(); len(rooms) != 0 {
		t.Fatalf("rooms after disconnect = %v, want none", rooms)
	}

	// A fresh connect starts from a clean desired-membership set.
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if got := d.transport(1).joinedRooms(); len(got) != 0 {
		t.Errorf("joins after fresh connect = %v, want none", got)
	}
}

func TestManager_ExplicitDisconnectDoesNotReconnect(t *testing.T) {
	d := &fakeDialer{}
	m := testManager(t, d, validCreds())
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	m.Disconnect()

	// The read loop sees the closed transport; give it time to (wrongly)
	// start a reconnect.
	time.Sleep(20 * time.Millisecond)
	if got := d.dialCount(); got != 1 {
		t.Errorf("dial count = %d after explicit disconnect, want 1", got)
	}
	if m.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", m.State())
	}
}

func TestManager_SendRequiresConnection(t *testing.T) {
	d := &fakeDialer{}
	m := testManager(t, d, validCreds())

	if err := m.Send("r1", "hello"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send() error = %v, want ErrNotConnected", err)
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := m.Send("r1", "hello"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}

func TestManager_AuthFailureDuringConnectDoesNotRetry(t *testing.T) {
	d := &fakeDialer{authFail: true}
	m := testManager(t, d, validCreds())

	err := m.Connect(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Connect() error = %v, want *AuthError", err)
	}
	if d.dialCount() != 1 {
		t.Errorf("dial count = %d, want 1 (no retry on auth failure)", d.dialCount())
	}
	if m.State() != StateDisconnected {
		t.Errorf("state = %s, want disconnected", m.State())
	}
}

func TestManager_LeaveRoom(t *testing.T) {
	d := &fakeDialer{}
	m := testManager(t, d, validCreds())
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	m.JoinRoom("r1")
	m.LeaveRoom("r1")

	tr := d.transport(0)
	tr.mu.Lock()
	leaves := append([]string(nil), tr.leaves...)
	tr.mu.Unlock()
	if len(leaves) != 1 || leaves[0] != "r1" {
		t.Errorf("leaves = %v, want [r1]", leaves)
	}
	if rooms := m.Rooms(); len(rooms) != 0 {
		t.Errorf("rooms = %v, want none", rooms)
	}

	// Leaving an unknown room sends nothing.
	m.LeaveRoom("r9")
	tr.mu.Lock()
	n := len(tr.leaves)
	tr.mu.Unlock()
	if n != 1 {
		t.Errorf("leave requests = %d, want 1", n)
	}
}
