package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vedran77/lounge/internal/domain"
	"github.com/vedran77/lounge/internal/realtime"
	"github.com/vedran77/lounge/internal/repository"
)

const maxStatusLength = 140

// PresenceService owns the online flag and free-text status of users.
type PresenceService struct {
	userRepo  repository.UserRepository
	publisher Publisher
	log       *slog.Logger

	// userLocks orders transitions of one user; other users never wait.
	userLocks *keyedMutex
	mu        sync.Mutex
	sessions  map[uuid.UUID]*presence
}

// presence is the live state of one user. stored is set once the online
// flag has been written for the current run of connections.
type presence struct {
	conns  int
	stored bool
}

func NewPresenceService(userRepo repository.UserRepository, publisher Publisher, logger *slog.Logger) *PresenceService {
	return &PresenceService{
		userRepo:  userRepo,
		publisher: publisher,
		log:       logger.With("component", "presence"),
		userLocks: newKeyedMutex(),
		sessions:  make(map[uuid.UUID]*presence),
	}
}

// SetStatus persists the flag and status, then announces the change on the
// presence channel. Nothing is published if the write fails.
func (s *PresenceService) SetStatus(ctx context.Context, userID uuid.UUID, isOnline bool, status *string) (*domain.User, error) {
	if status != nil && utf8.RuneCountInString(*status) > maxStatusLength {
		return nil, fmt.Errorf("%w (max %d)", ErrStatusTooLong, maxStatusLength)
	}

	unlock := s.userLocks.lock(userID.String())
	defer unlock()
	return s.setStatus(ctx, userID, isOnline, status)
}

func (s *PresenceService) setStatus(ctx context.Context, userID uuid.UUID, isOnline bool, status *string) (*domain.User, error) {
	user, err := s.userRepo.UpdatePresence(ctx, userID, isOnline, status)
	if err != nil {
		return nil, storageErr("updating presence", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	frame, err := realtime.Encode(realtime.EventUserStatusUpdated, realtime.StatusPayload{
		UserID:   user.ID,
		IsOnline: user.IsOnline,
		Status:   user.Status,
	})
	if err != nil {
		s.log.Error("encoding status event", "user_id", userID, "error", err)
		return user, nil
	}

	n := s.publisher.Publish(realtime.PresenceChannel, frame)
	s.log.Debug("status published", "user_id", userID, "online", user.IsOnline, "delivered", n)
	return user, nil
}

// Connected counts a new live connection and marks the user online if that
// has not been stored yet. A failed write is retried by the next connection.
func (s *PresenceService) Connected(ctx context.Context, userID uuid.UUID) error {
	unlock := s.userLocks.lock(userID.String())
	defer unlock()

	s.mu.Lock()
	p := s.sessions[userID]
	if p == nil {
		p = &presence{}
		s.sessions[userID] = p
	}
	p.conns++
	stored := p.stored
	s.mu.Unlock()

	if stored {
		return nil
	}
	if _, err := s.setStatus(ctx, userID, true, nil); err != nil {
		return err
	}

	s.mu.Lock()
	p.stored = true
	s.mu.Unlock()
	return nil
}

// Disconnected forgets one live connection and marks the user offline when
// it was the last.
func (s *PresenceService) Disconnected(ctx context.Context, userID uuid.UUID) error {
	unlock := s.userLocks.lock(userID.String())
	defer unlock()

	s.mu.Lock()
	p, ok := s.sessions[userID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	p.conns--
	last := p.conns <= 0
	if last {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()

	if !last {
		return nil
	}
	_, err := s.setStatus(ctx, userID, false, nil)
	return err
}

// Online reports whether the user has at least one live connection.
func (s *PresenceService) Online(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.sessions[userID]
	return p != nil && p.conns > 0
}
