package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types - Client → Server
const (
	EventJoinUserChannel   = "join-user-channel"
	EventJoinRoom          = "join-room"
	EventLeaveRoom         = "leave-room"
	EventSendDirectMessage = "send-direct-message"
	EventSendRoomMessage   = "send-room-message"
	EventTypingStart       = "typing-start"
	EventTypingStop        = "typing-stop"
	EventUpdateStatus      = "update-status"
)

// Event types - Server → Client
const (
	EventNewDirectMessage  = "new-direct-message"
	EventNewRoomMessage    = "new-room-message"
	EventUserTyping        = "user-typing"
	EventUserStoppedTyping = "user-stopped-typing"
	EventUserStatusUpdated = "user-status-updated"
	EventMessageError      = "message-error"
)

// Event is the envelope for every frame in both directions.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Server → Client payloads ---

type TypingPayload struct {
	UserID uuid.UUID  `json:"user_id"`
	RoomID *uuid.UUID `json:"room_id,omitempty"`
}

type StatusPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	Status   *string   `json:"status,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Encode builds an event and marshals it into a ready-to-send frame.
func Encode(eventType string, payload any) ([]byte, error) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(evt)
}
