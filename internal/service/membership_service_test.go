package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/lounge/internal/realtime"
)

func TestJoin_SubscribesEveryConnectionAndAnnounces(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	// Given a room and a user with two open tabs
	owner := h.user(t, "owner")
	ownerTab := h.connect(owner.ID)
	room := h.room(t, owner.ID, "general")

	bob := h.user(t, "bob")
	bobTab1 := h.connect(bob.ID)
	bobTab2 := h.connect(bob.ID)

	// When bob joins
	m, err := h.membership.Join(ctx, bob.ID, room.ID)

	// Then both tabs are subscribed and the room hears about it
	req.NoError(err)
	req.Equal(room.ID, m.RoomID)
	req.True(h.registry.IsSubscribed(bobTab1.ID(), realtime.RoomChannel(room.ID)))
	req.True(h.registry.IsSubscribed(bobTab2.ID(), realtime.RoomChannel(room.ID)))

	notices := ownerTab.messages(t, realtime.EventNewRoomMessage)
	req.Len(notices, 1)
	req.True(notices[0].IsSystem())
	req.Equal("bob has entered", notices[0].Content)
	req.Equal(bob.ID, notices[0].SenderID)
}

func TestJoin_IsIdempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	owner := h.user(t, "owner")
	ownerTab := h.connect(owner.ID)
	room := h.room(t, owner.ID, "general")
	bob := h.user(t, "bob")

	first, err := h.membership.Join(ctx, bob.ID, room.ID)
	req.NoError(err)
	second, err := h.membership.Join(ctx, bob.ID, room.ID)
	req.NoError(err)

	req.Equal(first.JoinedAt, second.JoinedAt)
	req.Equal(1, h.store.MembershipCount(room.ID, bob.ID))
	req.Len(ownerTab.messages(t, realtime.EventNewRoomMessage), 1)
}

func TestJoinLeaveJoin_LeavesOneMembership(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	// Given a room and a connected user
	owner := h.user(t, "owner")
	ownerTab := h.connect(owner.ID)
	room := h.room(t, owner.ID, "general")
	bob := h.user(t, "bob")
	bobTab := h.connect(bob.ID)

	// When bob joins, leaves and joins again
	_, err := h.membership.Join(ctx, bob.ID, room.ID)
	req.NoError(err)
	req.NoError(h.membership.Leave(ctx, bob.ID, room.ID))
	req.False(h.registry.IsSubscribed(bobTab.ID(), realtime.RoomChannel(room.ID)))
	_, err = h.membership.Join(ctx, bob.ID, room.ID)
	req.NoError(err)

	// Then exactly one membership row exists and the room saw all three notices
	req.Equal(1, h.store.MembershipCount(room.ID, bob.ID))
	req.True(h.registry.IsSubscribed(bobTab.ID(), realtime.RoomChannel(room.ID)))

	contents := make([]string, 0, 3)
	for _, m := range ownerTab.messages(t, realtime.EventNewRoomMessage) {
		contents = append(contents, m.Content)
	}
	req.Equal([]string{"bob has entered", "bob has left", "bob has entered"}, contents)
}

func TestLeave_StopsRoomDelivery(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	owner := h.user(t, "owner")
	room := h.room(t, owner.ID, "general")
	bob := h.user(t, "bob")
	bobTab := h.connect(bob.ID)
	_, err := h.membership.Join(ctx, bob.ID, room.ID)
	req.NoError(err)

	req.NoError(h.membership.Leave(ctx, bob.ID, room.ID))
	before := len(bobTab.ofType(realtime.EventNewRoomMessage))

	_, err = h.messages.SendRoom(ctx, owner.ID, room.ID, SendMessageInput{Content: "bye bob"})
	req.NoError(err)
	req.Len(bobTab.ofType(realtime.EventNewRoomMessage), before)
}

func TestLeave_WithoutMembership(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	owner := h.user(t, "owner")
	room := h.room(t, owner.ID, "general")
	bob := h.user(t, "bob")

	err := h.membership.Leave(context.Background(), bob.ID, room.ID)

	req.ErrorIs(err, ErrMembershipNotFound)
	req.ErrorIs(err, ErrNotFound)
}

func TestJoin_UnknownRoom(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	bob := h.user(t, "bob")

	_, err := h.membership.Join(context.Background(), bob.ID, uuid.New())

	req.ErrorIs(err, ErrRoomNotFound)
}

func TestAttach_RequiresMembership(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	owner := h.user(t, "owner")
	room := h.room(t, owner.ID, "general")
	eve := h.user(t, "eve")
	eveTab := h.connect(eve.ID)

	err := h.membership.Attach(ctx, eve.ID, eveTab.ID(), room.ID)
	req.ErrorIs(err, ErrNotRoomMember)
	req.False(h.registry.IsSubscribed(eveTab.ID(), realtime.RoomChannel(room.ID)))

	err = h.membership.Attach(ctx, eve.ID, eveTab.ID(), uuid.New())
	req.ErrorIs(err, ErrRoomNotFound)

	ownerTab := h.connect(owner.ID)
	req.NoError(h.membership.Attach(ctx, owner.ID, ownerTab.ID(), room.ID))
	req.True(h.registry.IsSubscribed(ownerTab.ID(), realtime.RoomChannel(room.ID)))
}

func TestReconcile_SubscribesNewConnectionToAllRooms(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	// Given a user who belongs to two rooms but has no connection yet
	alice := h.user(t, "alice")
	first := h.room(t, alice.ID, "first")
	second := h.room(t, alice.ID, "second")

	// When a new connection is reconciled
	tab := h.connect(alice.ID)
	n, err := h.membership.Reconcile(ctx, alice.ID, tab.ID())

	// Then it is subscribed to both
	req.NoError(err)
	req.Equal(2, n)
	req.True(h.registry.IsSubscribed(tab.ID(), realtime.RoomChannel(first.ID)))
	req.True(h.registry.IsSubscribed(tab.ID(), realtime.RoomChannel(second.ID)))
}

func TestListMembers_InJoinOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	owner := h.user(t, "owner")
	room := h.room(t, owner.ID, "general")
	bob := h.user(t, "bob")
	_, err := h.membership.Join(ctx, bob.ID, room.ID)
	req.NoError(err)

	members, err := h.membership.ListMembers(ctx, room.ID)
	req.NoError(err)
	req.Len(members, 2)
	req.Equal(owner.ID, members[0].UserID)
	req.Equal(bob.ID, members[1].UserID)

	_, err = h.membership.ListMembers(ctx, uuid.New())
	req.ErrorIs(err, ErrRoomNotFound)
}

func TestCreateRoom_DefaultsAndOwnerMembership(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	alice := h.user(t, "alice")
	tab := h.connect(alice.ID)

	room, err := h.rooms.Create(ctx, alice.ID, CreateRoomInput{Name: "  lobby  "})
	req.NoError(err)
	req.Equal("lobby", room.Name)
	req.Equal("OFFICIAL ROOM", room.Category)
	req.Equal(1, h.store.MembershipCount(room.ID, alice.ID))
	req.True(h.registry.IsSubscribed(tab.ID(), realtime.RoomChannel(room.ID)))

	rooms, err := h.membership.ListRoomsForUser(ctx, alice.ID)
	req.NoError(err)
	req.Len(rooms, 1)

	public, err := h.membership.ListPublicRooms(ctx)
	req.NoError(err)
	req.Len(public, 1)
}
