package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/lounge/internal/domain"
	"github.com/vedran77/lounge/internal/realtime"
	"github.com/vedran77/lounge/internal/repository"
)

type RoomService struct {
	roomRepo repository.RoomRepository
	userRepo repository.UserRepository
	subs     Subscriptions
}

func NewRoomService(roomRepo repository.RoomRepository, userRepo repository.UserRepository, subs Subscriptions) *RoomService {
	return &RoomService{
		roomRepo: roomRepo,
		userRepo: userRepo,
		subs:     subs,
	}
}

type CreateRoomInput struct {
	Name        string  `json:"name" validate:"required,min=2,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	Category    string  `json:"category" validate:"omitempty,max=50"`
	IsPrivate   bool    `json:"is_private"`
}

// Create stores the room together with the creator's membership and
// subscribes the creator's live connections.
func (s *RoomService) Create(ctx context.Context, creatorID uuid.UUID, input CreateRoomInput) (*domain.Room, error) {
	creator, err := s.userRepo.GetByID(ctx, creatorID)
	if err != nil {
		return nil, storageErr("loading user", err)
	}
	if creator == nil {
		return nil, ErrUserNotFound
	}

	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = domain.DefaultRoomCategory
	}

	var desc *string
	if input.Description != nil && strings.TrimSpace(*input.Description) != "" {
		d := strings.TrimSpace(*input.Description)
		desc = &d
	}

	now := time.Now().UTC()
	room := &domain.Room{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(input.Name),
		Description: desc,
		Category:    category,
		IsPrivate:   input.IsPrivate,
		CreatedBy:   creatorID,
		CreatedAt:   now,
	}
	owner := &domain.RoomMembership{
		RoomID:   room.ID,
		UserID:   creatorID,
		JoinedAt: now,
	}

	if err := s.roomRepo.CreateWithOwner(ctx, room, owner); err != nil {
		return nil, storageErr("creating room", err)
	}

	s.subs.SubscribeUser(creatorID, realtime.RoomChannel(room.ID))
	return room, nil
}

func (s *RoomService) Get(ctx context.Context, roomID uuid.UUID) (*domain.Room, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, storageErr("loading room", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}
