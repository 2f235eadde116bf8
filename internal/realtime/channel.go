package realtime

import (
	"github.com/google/uuid"
	"github.com/vedran77/lounge/internal/domain"
)

// ChannelKey names a broadcast target in the Registry.
type ChannelKey string

// PresenceChannel is joined by every registered connection.
const PresenceChannel ChannelKey = "presence"

func UserChannel(userID uuid.UUID) ChannelKey {
	return ChannelKey("user:" + userID.String())
}

func RoomChannel(roomID uuid.UUID) ChannelKey {
	return ChannelKey("room:" + roomID.String())
}

// TargetChannel maps a message or typing target onto its channel.
func TargetChannel(t domain.Target) (ChannelKey, bool) {
	switch t.Kind() {
	case domain.TargetRoom:
		return RoomChannel(t.ID()), true
	case domain.TargetUser:
		return UserChannel(t.ID()), true
	default:
		return "", false
	}
}
