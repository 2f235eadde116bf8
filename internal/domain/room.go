package domain

import (
	"time"

	"github.com/google/uuid"
)

const DefaultRoomCategory = "OFFICIAL ROOM"

type Room struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Category    string    `json:"category"`
	IsPrivate   bool      `json:"is_private"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type RoomMembership struct {
	RoomID   uuid.UUID `json:"room_id"`
	UserID   uuid.UUID `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// RoomMember is a membership row joined with the member's profile.
type RoomMember struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	IsOnline    bool      `json:"is_online"`
	Status      *string   `json:"status,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}
