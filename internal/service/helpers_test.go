package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/lounge/internal/domain"
	"github.com/vedran77/lounge/internal/realtime"
	"github.com/vedran77/lounge/internal/repository/memory"
)

// recordingConn captures every frame published to it.
type recordingConn struct {
	id     string
	userID uuid.UUID

	mu     sync.Mutex
	events []realtime.Event
}

func newRecordingConn(userID uuid.UUID) *recordingConn {
	return &recordingConn{id: uuid.NewString(), userID: userID}
}

func (c *recordingConn) ID() string        { return c.id }
func (c *recordingConn) UserID() uuid.UUID { return c.userID }
func (c *recordingConn) Close(string)      {}

func (c *recordingConn) Send(payload []byte) error {
	var evt realtime.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

// ofType returns the received events of the given type, in arrival order.
func (c *recordingConn) ofType(eventType string) []realtime.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []realtime.Event
	for _, e := range c.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (c *recordingConn) messages(t *testing.T, eventType string) []domain.Message {
	t.Helper()
	var out []domain.Message
	for _, e := range c.ofType(eventType) {
		var m domain.Message
		require.NoError(t, json.Unmarshal(e.Payload, &m))
		out = append(out, m)
	}
	return out
}

type harness struct {
	store      *memory.Store
	registry   *realtime.Registry
	presence   *PresenceService
	messages   *MessageService
	membership *MembershipService
	rooms      *RoomService
	typing     *TypingService
	auth       *AuthService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := discardLogger()
	store := memory.New()
	registry := realtime.NewRegistry(logger, realtime.Options{MaxSendFailures: 3})

	messages := NewMessageService(store.Messages(), store.Rooms(), store.Users(), registry,
		MessageOptions{MaxContentLength: 50, HistoryPageSize: 50}, logger)

	return &harness{
		store:      store,
		registry:   registry,
		presence:   NewPresenceService(store.Users(), registry, logger),
		messages:   messages,
		membership: NewMembershipService(store.Rooms(), store.Users(), messages, registry, logger),
		rooms:      NewRoomService(store.Rooms(), store.Users(), registry),
		typing:     NewTypingService(store.Rooms(), store.Users(), registry, logger),
		auth:       NewAuthService(store.Users(), "test-secret", time.Hour),
	}
}

func (h *harness) user(t *testing.T, username string) domain.User {
	t.Helper()
	now := time.Now().UTC()
	u := domain.User{ID: uuid.New(), Email: username + "@example.com", Username: username, DisplayName: username, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, h.store.Users().Create(context.Background(), &u))
	return u
}

func (h *harness) connect(userID uuid.UUID) *recordingConn {
	c := newRecordingConn(userID)
	h.registry.Register(c)
	return c
}

func (h *harness) room(t *testing.T, owner uuid.UUID, name string) *domain.Room {
	t.Helper()
	room, err := h.rooms.Create(context.Background(), owner, CreateRoomInput{Name: name})
	require.NoError(t, err)
	return room
}
