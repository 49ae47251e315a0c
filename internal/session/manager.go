// Package session maintains the single logical connection to the Confab
// event source: connection lifecycle, room membership replay across
// reconnects, and fanout of inbound events to registered listeners.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/confab-dev/confab-go/internal/models"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Config controls the reconnection policy.
type Config struct {
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// DefaultConfig returns the stock reconnection policy.
func DefaultConfig() Config {
	return Config{
		ReconnectAttempts: 5,
		ReconnectDelay:    time.Second,
	}
}

// Manager owns one logical session. The desired room set is authoritative:
// after every successful connect or reconnect the remote membership is
// brought back into agreement with it by re-issuing joins.
//
// All methods are safe for concurrent use.
type Manager struct {
	cfg      Config
	creds    CredentialSource
	dial     TransportFactory
	registry *Registry
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	rooms     map[string]struct{}
	transport Transport
	gen       int // bumped on every adopted transport and on Disconnect
	lastErr   error
}

// NewManager creates a disconnected session manager. The registry may be
// shared with other components; listeners can be registered before any
// connection exists.
func NewManager(cfg Config, creds CredentialSource, dial TransportFactory, reg *Registry, logger *slog.Logger) *Manager {
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = DefaultConfig().ReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultConfig().ReconnectDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		creds:    creds,
		dial:     dial,
		registry: reg,
		logger:   logger,
		rooms:    make(map[string]struct{}),
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the most recent terminal connection error, if any.
// It is cleared by Disconnect and by a successful Connect.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Rooms returns the desired room membership, sorted.
func (m *Manager) Rooms() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// On registers a listener for an event type (models.Wildcard for all).
func (m *Manager) On(eventType string, fn Listener) Handle {
	return m.registry.On(eventType, fn)
}

// Off removes a listener registration.
func (m *Manager) Off(eventType string, h Handle) {
	m.registry.Off(eventType, h)
}

// Connect establishes the connection. Missing credentials fail immediately
// with an *AuthError and no network attempt. Calling Connect while the
// session is already live (or mid-reconnect) is a no-op.
//
// On success every room in the desired set is re-joined before Connect
// returns; the remote treats joining an already-joined room as a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	creds, err := m.creds.Credentials()
	if err != nil {
		m.mu.Unlock()
		return &AuthError{Reason: err.Error()}
	}
	if !creds.Valid() {
		m.mu.Unlock()
		return &AuthError{Reason: "missing token or identity"}
	}
	m.state = StateConnecting
	gen := m.gen
	m.mu.Unlock()

	t, err := m.dial(ctx, creds)
	if err != nil {
		m.mu.Lock()
		if m.state == StateConnecting {
			m.state = StateDisconnected
		}
		m.lastErr = err
		m.mu.Unlock()

		var authErr *AuthError
		if errors.As(err, &authErr) {
			return err
		}
		return &TransportError{Err: err}
	}

	newGen, ok := m.adopt(gen, t)
	if !ok {
		// Disconnect raced the handshake; the session is closed.
		t.Close()
		return nil
	}
	m.replayRooms(t)
	go m.readLoop(newGen, t)
	return nil
}

// Disconnect tears down the transport, clears the desired room set, and
// resets the session to Disconnected. A later Connect starts clean.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	t := m.transport
	m.transport = nil
	m.state = StateDisconnected
	m.rooms = make(map[string]struct{})
	m.lastErr = nil
	m.mu.Unlock()

	if t != nil {
		t.Close()
	}
}

// JoinRoom adds a room to the desired set. If connected, the join request
// is sent immediately; otherwise it is applied on the next successful
// connect. Joining a room twice is a no-op.
func (m *Manager) JoinRoom(id string) error {
	m.mu.Lock()
	if _, ok := m.rooms[id]; ok {
		m.mu.Unlock()
		return nil
	}
	m.rooms[id] = struct{}{}
	t := m.transport
	connected := m.state == StateConnected
	m.mu.Unlock()

	if connected && t != nil {
		return t.Join(id)
	}
	return nil
}

// LeaveRoom removes a room from the desired set, sending the leave request
// if connected.
func (m *Manager) LeaveRoom(id string) error {
	m.mu.Lock()
	if _, ok := m.rooms[id]; !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.rooms, id)
	t := m.transport
	connected := m.state == StateConnected
	m.mu.Unlock()

	if connected && t != nil {
		return t.Leave(id)
	}
	return nil
}

// Send posts a message to a room. The session must be connected.
func (m *Manager) Send(roomID, body string) error {
	m.mu.Lock()
	t := m.transport
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || t == nil {
		return ErrNotConnected
	}
	return t.Send(roomID, body)
}

// adopt installs t as the live transport if gen is still current.
// Returns the new generation to hand to the read loop.
func (m *Manager) adopt(gen int, t Transport) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return 0, false
	}
	m.gen++
	m.transport = t
	m.state = StateConnected
	m.lastErr = nil
	return m.gen, true
}

func (m *Manager) replayRooms(t Transport) {
	for _, id := range m.Rooms() {
		if err := t.Join(id); err != nil {
			m.logger.Warn("room rejoin failed", "room", id, "error", err)
		}
	}
}

func (m *Manager) readLoop(gen int, t Transport) {
	for {
		ev, err := t.Receive()
		if err != nil {
			m.handleDrop(gen, err)
			return
		}
		m.registry.Dispatch(*ev)
	}
}

// handleDrop runs the bounded reconnection loop after an unrequested
// transport failure. An explicit Disconnect (or a newer transport) makes
// this drop stale, in which case nothing happens.
func (m *Manager) handleDrop(gen int, cause error) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.state = StateReconnecting
	m.transport = nil
	m.mu.Unlock()

	m.logger.Warn("connection lost", "error", cause,
		"max_attempts", m.cfg.ReconnectAttempts)

	creds, err := m.creds.Credentials()
	if err != nil {
		m.giveUp(gen, &AuthError{Reason: err.Error()})
		return
	}

	for attempt := 1; attempt <= m.cfg.ReconnectAttempts; attempt++ {
		time.Sleep(m.cfg.ReconnectDelay)

		m.mu.Lock()
		stale := gen != m.gen || m.state != StateReconnecting
		m.mu.Unlock()
		if stale {
			return
		}

		t, err := m.dial(context.Background(), creds)
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				m.giveUp(gen, err)
				return
			}
			m.logger.Warn("reconnect attempt failed",
				"attempt", attempt, "error", err)
			continue
		}

		newGen, ok := m.adopt(gen, t)
		if !ok {
			t.Close()
			return
		}
		m.logger.Info("reconnected", "attempt", attempt, "rooms", len(m.Rooms()))
		m.replayRooms(t)
		go m.readLoop(newGen, t)
		return
	}

	m.giveUp(gen, &TransportError{Attempts: m.cfg.ReconnectAttempts, Err: cause})
}

// giveUp transitions to Disconnected and surfaces the terminal error as a
// connection-lost event so the UI layer cannot miss it.
func (m *Manager) giveUp(gen int, terminal error) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	m.lastErr = terminal
	m.mu.Unlock()

	m.logger.Error("reconnection exhausted", "error", terminal)
	m.registry.Dispatch(models.Event{
		Type:      models.EventConnectionLost,
		Timestamp: time.Now().UTC(),
		Payload:   models.ConnectionPayload{Reason: terminal.Error()},
	})
}
