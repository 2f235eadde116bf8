package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vedran77/lounge/internal/domain"
	"github.com/vedran77/lounge/internal/realtime"
	"github.com/vedran77/lounge/internal/repository"
)

// Origin identifies the connection a typing event came from.
type Origin struct {
	UserID uuid.UUID
	ConnID string
}

// TypingService relays typing indicators. Nothing is persisted.
type TypingService struct {
	roomRepo  repository.RoomRepository
	userRepo  repository.UserRepository
	publisher Publisher
	log       *slog.Logger
}

func NewTypingService(roomRepo repository.RoomRepository, userRepo repository.UserRepository, publisher Publisher, logger *slog.Logger) *TypingService {
	return &TypingService{
		roomRepo:  roomRepo,
		userRepo:  userRepo,
		publisher: publisher,
		log:       logger.With("component", "typing"),
	}
}

func (s *TypingService) Start(ctx context.Context, from Origin, to domain.Target) error {
	return s.relay(ctx, from, to, realtime.EventUserTyping)
}

func (s *TypingService) Stop(ctx context.Context, from Origin, to domain.Target) error {
	return s.relay(ctx, from, to, realtime.EventUserStoppedTyping)
}

func (s *TypingService) relay(ctx context.Context, from Origin, to domain.Target, eventType string) error {
	payload := realtime.TypingPayload{UserID: from.UserID}

	switch to.Kind() {
	case domain.TargetRoom:
		roomID := to.ID()
		room, err := s.roomRepo.GetByID(ctx, roomID)
		if err != nil {
			return storageErr("loading room", err)
		}
		if room == nil {
			return ErrRoomNotFound
		}
		payload.RoomID = &roomID

	case domain.TargetUser:
		if to.ID() == from.UserID {
			return nil
		}
		user, err := s.userRepo.GetByID(ctx, to.ID())
		if err != nil {
			return storageErr("loading user", err)
		}
		if user == nil {
			return ErrRecipientNotFound
		}

	default:
		return ErrInvalidTarget
	}

	frame, err := realtime.Encode(eventType, payload)
	if err != nil {
		s.log.Error("encoding typing event", "error", err)
		return nil
	}

	key, _ := realtime.TargetChannel(to)
	if to.Kind() == domain.TargetRoom {
		s.publisher.PublishExcept(key, frame, from.ConnID)
	} else {
		s.publisher.Publish(key, frame)
	}
	return nil
}
