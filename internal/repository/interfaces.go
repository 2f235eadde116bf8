package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vedran77/lounge/internal/domain"
)

// ErrDuplicate is returned by Create when a unique key is already taken.
var ErrDuplicate = errors.New("duplicate key")

// Lookups return (nil, nil) when the row does not exist.

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// UpdatePresence keeps the stored status when status is nil.
	UpdatePresence(ctx context.Context, id uuid.UUID, isOnline bool, status *string) (*domain.User, error)
}

type RoomRepository interface {
	// CreateWithOwner stores the room and its creator's membership atomically.
	CreateWithOwner(ctx context.Context, room *domain.Room, owner *domain.RoomMembership) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	ListPublic(ctx context.Context) ([]domain.Room, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Room, error)
	// AddMember reports false when the membership already existed.
	AddMember(ctx context.Context, member *domain.RoomMembership) (bool, error)
	// RemoveMember reports false when there was nothing to remove.
	RemoveMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	GetMember(ctx context.Context, roomID, userID uuid.UUID) (*domain.RoomMembership, error)
	ListMembers(ctx context.Context, roomID uuid.UUID) ([]domain.RoomMember, error)
}

type MessageRepository interface {
	// Create assigns msg.Seq.
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error)
	ListDirect(ctx context.Context, userA, userB uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error)
}
