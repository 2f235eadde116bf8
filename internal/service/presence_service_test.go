package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/lounge/internal/realtime"
)

func statusEvents(t *testing.T, c *recordingConn) []realtime.StatusPayload {
	t.Helper()
	var out []realtime.StatusPayload
	for _, e := range c.ofType(realtime.EventUserStatusUpdated) {
		var p realtime.StatusPayload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		out = append(out, p)
	}
	return out
}

func TestPresence_OnlineUntilLastConnectionCloses(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	// Given an observer and alice
	observer := h.connect(h.user(t, "observer").ID)
	alice := h.user(t, "alice")

	// When alice opens two tabs
	req.NoError(h.presence.Connected(ctx, alice.ID))
	req.NoError(h.presence.Connected(ctx, alice.ID))

	// Then she is online and only one transition was announced
	req.True(h.presence.Online(alice.ID))
	events := statusEvents(t, observer)
	req.Len(events, 1)
	req.Equal(alice.ID, events[0].UserID)
	req.True(events[0].IsOnline)

	// When one tab closes she stays online
	req.NoError(h.presence.Disconnected(ctx, alice.ID))
	req.True(h.presence.Online(alice.ID))
	req.Len(statusEvents(t, observer), 1)

	// When the last tab closes she goes offline
	req.NoError(h.presence.Disconnected(ctx, alice.ID))
	req.False(h.presence.Online(alice.ID))
	events = statusEvents(t, observer)
	req.Len(events, 2)
	req.False(events[1].IsOnline)

	stored, err := h.store.Users().GetByID(ctx, alice.ID)
	req.NoError(err)
	req.False(stored.IsOnline)
}

func TestPresence_RetriesOnlineAfterFailedWrite(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	observer := h.connect(h.user(t, "observer").ID)
	alice := h.user(t, "alice")

	// Given the first connection could not persist the online flag
	h.store.FailWith(errors.New("connection reset"))
	req.ErrorIs(h.presence.Connected(ctx, alice.ID), ErrStorage)
	h.store.FailWith(nil)
	req.Empty(statusEvents(t, observer))

	// When a second tab connects
	req.NoError(h.presence.Connected(ctx, alice.ID))

	// Then the flag is written and announced once
	stored, err := h.store.Users().GetByID(ctx, alice.ID)
	req.NoError(err)
	req.True(stored.IsOnline)
	events := statusEvents(t, observer)
	req.Len(events, 1)
	req.True(events[0].IsOnline)

	// And a third tab does not write again
	req.NoError(h.presence.Connected(ctx, alice.ID))
	req.Len(statusEvents(t, observer), 1)

	// When every tab closes she goes offline
	for i := 0; i < 3; i++ {
		req.NoError(h.presence.Disconnected(ctx, alice.ID))
	}
	req.False(h.presence.Online(alice.ID))
	stored, err = h.store.Users().GetByID(ctx, alice.ID)
	req.NoError(err)
	req.False(stored.IsOnline)
}

func TestPresence_DisconnectWithoutConnectIsNoop(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	observer := h.connect(h.user(t, "observer").ID)

	req.NoError(h.presence.Disconnected(context.Background(), uuid.New()))
	req.Empty(statusEvents(t, observer))
}

func TestPresence_ConcurrentFlapsEndConsistent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)
	alice := h.user(t, "alice")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.presence.Connected(ctx, alice.ID)
			_ = h.presence.Disconnected(ctx, alice.ID)
		}()
	}
	wg.Wait()

	req.False(h.presence.Online(alice.ID))
	stored, err := h.store.Users().GetByID(ctx, alice.ID)
	req.NoError(err)
	req.False(stored.IsOnline)
	req.Equal(0, h.presence.userLocks.size())
}

func TestSetStatus_PersistsAndBroadcasts(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	h := newHarness(t)

	observer := h.connect(h.user(t, "observer").ID)
	alice := h.user(t, "alice")
	status := "in a meeting"

	user, err := h.presence.SetStatus(ctx, alice.ID, true, &status)
	req.NoError(err)
	req.Equal(status, *user.Status)

	events := statusEvents(t, observer)
	req.Len(events, 1)
	req.Equal(status, *events[0].Status)
	req.True(events[0].IsOnline)
}

func TestSetStatus_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("too long", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)
		observer := h.connect(h.user(t, "observer").ID)
		alice := h.user(t, "alice")
		status := strings.Repeat("z", maxStatusLength+1)

		_, err := h.presence.SetStatus(ctx, alice.ID, true, &status)

		req.ErrorIs(err, ErrValidation)
		req.Empty(statusEvents(t, observer))
	})

	t.Run("unknown user", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)

		_, err := h.presence.SetStatus(ctx, uuid.New(), true, nil)

		req.ErrorIs(err, ErrUserNotFound)
	})

	t.Run("storage down", func(t *testing.T) {
		req := require.New(t)
		h := newHarness(t)
		observer := h.connect(h.user(t, "observer").ID)
		alice := h.user(t, "alice")
		h.store.FailWith(errors.New("connection reset"))

		_, err := h.presence.SetStatus(ctx, alice.ID, false, nil)

		req.ErrorIs(err, ErrStorage)
		req.Empty(statusEvents(t, observer))
	})
}
