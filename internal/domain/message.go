package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	MessageKindUser   MessageKind = "user"
	MessageKindSystem MessageKind = "system"
)

// Message is addressed to exactly one of RoomID or RecipientID. Build it
// with NewMessage so the two can never both be set.
type Message struct {
	ID          uuid.UUID   `json:"id"`
	Kind        MessageKind `json:"kind"`
	Content     string      `json:"content"`
	SenderID    uuid.UUID   `json:"sender_id"`
	RoomID      *uuid.UUID  `json:"room_id,omitempty"`
	RecipientID *uuid.UUID  `json:"recipient_id,omitempty"`
	MediaURL    *string     `json:"media_url,omitempty"`
	MediaType   *string     `json:"media_type,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Seq         int64       `json:"-"`
	// Joined fields
	SenderUsername    string `json:"sender_username,omitempty"`
	SenderDisplayName string `json:"sender_display_name,omitempty"`
}

func NewMessage(kind MessageKind, senderID uuid.UUID, to Target, content string) *Message {
	msg := &Message{
		ID:        uuid.New(),
		Kind:      kind,
		Content:   content,
		SenderID:  senderID,
		CreatedAt: time.Now().UTC(),
	}
	id := to.ID()
	switch to.Kind() {
	case TargetRoom:
		msg.RoomID = &id
	case TargetUser:
		msg.RecipientID = &id
	}
	return msg
}

func (m *Message) Target() Target {
	switch {
	case m.RoomID != nil:
		return RoomTarget(*m.RoomID)
	case m.RecipientID != nil:
		return UserTarget(*m.RecipientID)
	default:
		return Target{}
	}
}

func (m *Message) Conversation() Conversation {
	if m.RoomID != nil {
		return RoomConversation(*m.RoomID)
	}
	var recipient uuid.UUID
	if m.RecipientID != nil {
		recipient = *m.RecipientID
	}
	return DirectConversation(m.SenderID, recipient)
}

func (m *Message) IsSystem() bool {
	return m.Kind == MessageKindSystem
}
