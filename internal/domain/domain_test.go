package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewMessage_SetsExactlyOneTarget(t *testing.T) {
	req := require.New(t)
	sender, room, peer := uuid.New(), uuid.New(), uuid.New()

	roomMsg := NewMessage(MessageKindUser, sender, RoomTarget(room), "hi")
	req.NotNil(roomMsg.RoomID)
	req.Nil(roomMsg.RecipientID)
	req.Equal(room, *roomMsg.RoomID)

	dm := NewMessage(MessageKindUser, sender, UserTarget(peer), "hi")
	req.Nil(dm.RoomID)
	req.NotNil(dm.RecipientID)
	req.Equal(peer, *dm.RecipientID)
}

func TestMessage_TargetRoundTrip(t *testing.T) {
	req := require.New(t)
	room := uuid.New()

	msg := NewMessage(MessageKindSystem, uuid.New(), RoomTarget(room), "Ana has entered")

	got, ok := msg.Target().RoomID()
	req.True(ok)
	req.Equal(room, got)
	_, ok = msg.Target().UserID()
	req.False(ok)
	req.True(msg.IsSystem())
}

func TestMessage_JSONOmitsInternalSeq(t *testing.T) {
	req := require.New(t)

	msg := NewMessage(MessageKindUser, uuid.New(), UserTarget(uuid.New()), "hello")
	msg.Seq = 42

	raw, err := json.Marshal(msg)
	req.NoError(err)
	req.NotContains(string(raw), "seq")
	req.NotContains(string(raw), "room_id")
	req.Contains(string(raw), `"kind":"user"`)
}

func TestDirectConversation_IsOrderIndependent(t *testing.T) {
	req := require.New(t)
	a, b := uuid.New(), uuid.New()

	req.Equal(DirectConversation(a, b), DirectConversation(b, a))
	req.Equal(DirectConversation(a, b).Key(), DirectConversation(b, a).Key())

	msgAB := NewMessage(MessageKindUser, a, UserTarget(b), "x")
	msgBA := NewMessage(MessageKindUser, b, UserTarget(a), "y")
	req.Equal(msgAB.Conversation().Key(), msgBA.Conversation().Key())
}

func TestConversation_RoomKey(t *testing.T) {
	room := uuid.New()
	conv := RoomConversation(room)

	got, ok := conv.Room()
	require.True(t, ok)
	require.Equal(t, room, got)
	require.Equal(t, "room:"+room.String(), conv.Key())
}

func TestTarget_ZeroValue(t *testing.T) {
	var target Target
	require.True(t, target.IsZero())
	require.Equal(t, "unknown", target.Kind().String())
}

func TestUser_Label(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"display name", User{DisplayName: "Ana K", Username: "ana", Email: "ana@x.io"}, "Ana K"},
		{"username fallback", User{Username: "ana", Email: "ana@x.io"}, "ana"},
		{"email fallback", User{Email: "ana.k@x.io"}, "ana.k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.user.Label())
		})
	}
}
