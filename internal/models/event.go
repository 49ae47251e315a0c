// Package models defines the wire types shared between the Confab sync core
// and the remote server: realtime session events and async job snapshots.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies a realtime event variant. The set is closed: the
// server only emits these types, and ParseEvent rejects anything else.
type EventType string

const (
	EventConnectionEstablished EventType = "connection-established"
	EventConnectionLost        EventType = "connection-lost"
	EventMessageReceived       EventType = "message-received"
	EventTurnStarted           EventType = "turn-started"
	EventTurnEnded             EventType = "turn-ended"
	EventParticipantJoined     EventType = "participant-joined"
	EventParticipantLeft       EventType = "participant-left"
	EventRoomJoined            EventType = "room-joined-ack"
	EventRoomLeft              EventType = "room-left-ack"
)

// Wildcard is the reserved listener key matching every event type.
const Wildcard = "*"

// knownTypes is the closed set accepted from the wire.
var knownTypes = map[EventType]bool{
	EventConnectionEstablished: true,
	EventConnectionLost:        true,
	EventMessageReceived:       true,
	EventTurnStarted:           true,
	EventTurnEnded:             true,
	EventParticipantJoined:     true,
	EventParticipantLeft:       true,
	EventRoomJoined:            true,
	EventRoomLeft:              true,
}

// Event is a single inbound realtime event. Payload holds the decoded
// variant for the event's type; Data keeps the raw JSON for listeners
// that want it verbatim.
type Event struct {
	Type         EventType       `json:"type"`
	DiscussionID string          `json:"discussionId"`
	Data         json.RawMessage `json:"data,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`

	Payload any `json:"-"`
}

// MessagePayload is the data carried by message-received events.
type MessagePayload struct {
	MessageID string `json:"messageId"`
	Sender    string `json:"sender"`
	Body      string `json:"body"`
}

// TurnPayload is the data carried by turn-started and turn-ended events.
type TurnPayload struct {
	TurnID      string `json:"turnId"`
	Participant string `json:"participant"`
}

// ParticipantPayload is the data carried by participant-joined and
// participant-left events.
type ParticipantPayload struct {
	Participant string `json:"participant"`
}

// RoomAckPayload is the data carried by room-joined-ack and room-left-ack.
type RoomAckPayload struct {
	RoomID string `json:"roomId"`
}

// ConnectionPayload is the data carried by connection-established and
// connection-lost events. Reason is set on lost events only.
type ConnectionPayload struct {
	SessionID string `json:"sessionId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ParseEvent decodes a raw wire frame into an Event with its typed payload.
// Unknown types and frames missing a type are rejected; the caller decides
// whether that is a protocol error worth logging.
func ParseEvent(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode event frame: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("event frame missing type")
	}
	if !knownTypes[ev.Type] {
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}

	payload, err := decodePayload(ev.Type, ev.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", ev.Type, err)
	}
	ev.Payload = payload
	return &ev, nil
}

func decodePayload(t EventType, data json.RawMessage) (any, error) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	switch t {
	case EventMessageReceived:
		var p MessagePayload
		return p, json.Unmarshal(data, &p)
	case EventTurnStarted, EventTurnEnded:
		var p TurnPayload
		return p, json.Unmarshal(data, &p)
	case EventParticipantJoined, EventParticipantLeft:
		var p ParticipantPayload
		return p, json.Unmarshal(data, &p)
	case EventRoomJoined, EventRoomLeft:
		var p RoomAckPayload
		return p, json.Unmarshal(data, &p)
	case EventConnectionEstablished, EventConnectionLost:
		var p ConnectionPayload
		return p, json.Unmarshal(data, &p)
	}
	return nil, fmt.Errorf("no payload variant for type %q", t)
}
