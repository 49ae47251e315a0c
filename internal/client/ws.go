package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/confab-dev/confab-go/internal/models"
	"github.com/confab-dev/confab-go/internal/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	handshakeTimeout = 10 * time.Second
)

// outboundFrame is a client→server request on the event socket.
type outboundFrame struct {
	Type         string `json:"type"`
	DiscussionID string `json:"discussionId,omitempty"`
	Token        string `json:"token,omitempty"`
	Identity     string `json:"identity,omitempty"`
	Body         string `json:"body,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// wsTransport is one live WebSocket connection to the event source.
type wsTransport struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex // serialises all conn writes (requests, pings)

	// first holds the connection-established event consumed during the
	// auth handshake, delivered on the first Receive.
	first *models.Event

	closeOnce sync.Once
	done      chan struct{}
}

// NewTransportFactory returns a session.TransportFactory dialing the
// server's /ws endpoint. The factory authenticates with an auth frame and
// waits for the server's connection-established event before returning.
func NewTransportFactory(baseURL string, logger *slog.Logger) session.TransportFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, creds session.Credentials) (session.Transport, error) {
		return dial(ctx, baseURL, creds, logger)
	}
}

func dial(ctx context.Context, baseURL string, creds session.Credentials, logger *slog.Logger) (session.Transport, error) {
	// Convert HTTP endpoint to WebSocket endpoint
	wsEndpoint := baseURL
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	u.Path = "/ws"

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			return nil, &session.AuthError{Reason: "server rejected handshake: " + resp.Status}
		}
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	t := &wsTransport{
		conn:   conn,
		logger: logger,
		done:   make(chan struct{}),
	}

	if err := t.authenticate(creds); err != nil {
		conn.Close()
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go t.pingLoop()

	return t, nil
}

// authenticate sends the auth frame and waits for connection-established.
// A close or error frame in response means the credentials were rejected.
func (t *wsTransport) authenticate(creds session.Credentials) error {
	if err := t.writeFrame(outboundFrame{
		Type:     "auth",
		Token:    creds.Token,
		Identity: creds.Identity,
	}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	t.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			return &session.AuthError{Reason: "server rejected credentials"}
		}
		return fmt.Errorf("read auth response: %w", err)
	}

	ev, err := models.ParseEvent(data)
	if err != nil {
		return fmt.Errorf("auth response: %w", err)
	}
	if ev.Type != models.EventConnectionEstablished {
		return &session.AuthError{Reason: fmt.Sprintf("expected connection-established, got %s", ev.Type)}
	}
	t.first = ev
	return nil
}

// Receive returns the next inbound event. Malformed frames are logged and
// dropped; they never fail the connection or reach listeners.
func (t *wsTransport) Receive() (*models.Event, error) {
	if ev := t.first; ev != nil {
		t.first = nil
		return ev, nil
	}

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		ev, err := models.ParseEvent(data)
		if err != nil {
			t.logger.Warn("dropping malformed event", "error", err)
			continue
		}
		return ev, nil
	}
}

// Join requests membership in a discussion room.
func (t *wsTransport) Join(roomID string) error {
	return t.writeFrame(outboundFrame{Type: "join", DiscussionID: roomID})
}

// Leave requests removal from a discussion room.
func (t *wsTransport) Leave(roomID string) error {
	return t.writeFrame(outboundFrame{Type: "leave", DiscussionID: roomID})
}

// Send posts a message to a discussion room.
func (t *wsTransport) Send(roomID, body string) error {
	return t.writeFrame(outboundFrame{Type: "message", DiscussionID: roomID, Body: body})
}

// Close tears down the connection. Safe to call more than once.
func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.conn.Close()
	})
	return err
}

func (t *wsTransport) writeFrame(f outboundFrame) error {
	f.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", f.Type, err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// pingLoop keeps the connection alive until Close.
func (t *wsTransport) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := t.conn.WriteMessage(websocket.PingMessage, nil)
			t.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
