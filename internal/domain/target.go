package domain

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

type TargetKind uint8

const (
	TargetRoom TargetKind = iota + 1
	TargetUser
)

func (k TargetKind) String() string {
	switch k {
	case TargetRoom:
		return "room"
	case TargetUser:
		return "user"
	default:
		return "unknown"
	}
}

// Target addresses either a room or a single user. The zero value addresses
// nothing and is rejected by every consumer.
type Target struct {
	kind TargetKind
	id   uuid.UUID
}

func RoomTarget(roomID uuid.UUID) Target { return Target{kind: TargetRoom, id: roomID} }
func UserTarget(userID uuid.UUID) Target { return Target{kind: TargetUser, id: userID} }

func (t Target) Kind() TargetKind { return t.kind }
func (t Target) ID() uuid.UUID    { return t.id }
func (t Target) IsZero() bool     { return t.kind == 0 }

func (t Target) RoomID() (uuid.UUID, bool) {
	return t.id, t.kind == TargetRoom
}

func (t Target) UserID() (uuid.UUID, bool) {
	return t.id, t.kind == TargetUser
}

func (t Target) String() string {
	return fmt.Sprintf("%s:%s", t.kind, t.id)
}

// Conversation identifies a message history: one room, or one unordered
// pair of users.
type Conversation struct {
	room   uuid.UUID
	a, b   uuid.UUID
	direct bool
}

func RoomConversation(roomID uuid.UUID) Conversation {
	return Conversation{room: roomID}
}

func DirectConversation(u1, u2 uuid.UUID) Conversation {
	if bytes.Compare(u1[:], u2[:]) > 0 {
		u1, u2 = u2, u1
	}
	return Conversation{a: u1, b: u2, direct: true}
}

func (c Conversation) Room() (uuid.UUID, bool) {
	return c.room, !c.direct
}

func (c Conversation) Pair() (uuid.UUID, uuid.UUID, bool) {
	return c.a, c.b, c.direct
}

// Key is stable for both orderings of a direct pair.
func (c Conversation) Key() string {
	if c.direct {
		return "dm:" + c.a.String() + ":" + c.b.String()
	}
	return "room:" + c.room.String()
}
