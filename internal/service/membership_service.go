package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/lounge/internal/domain"
	"github.com/vedran77/lounge/internal/realtime"
	"github.com/vedran77/lounge/internal/repository"
)

// MembershipService keeps persisted room membership and the registry's room
// subscriptions in step. Membership decides who may be in a room; the
// registry decides who receives the next broadcast.
type MembershipService struct {
	roomRepo       repository.RoomRepository
	userRepo       repository.UserRepository
	messageService *MessageService
	subs           Subscriptions
	log            *slog.Logger
}

func NewMembershipService(
	roomRepo repository.RoomRepository,
	userRepo repository.UserRepository,
	messageService *MessageService,
	subs Subscriptions,
	logger *slog.Logger,
) *MembershipService {
	return &MembershipService{
		roomRepo:       roomRepo,
		userRepo:       userRepo,
		messageService: messageService,
		subs:           subs,
		log:            logger.With("component", "membership"),
	}
}

// Join is idempotent: joining a room twice returns the existing membership
// and announces nothing the second time.
func (s *MembershipService) Join(ctx context.Context, userID, roomID uuid.UUID) (*domain.RoomMembership, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, storageErr("loading room", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, storageErr("loading user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	membership := &domain.RoomMembership{
		RoomID:   roomID,
		UserID:   userID,
		JoinedAt: time.Now().UTC(),
	}
	added, err := s.roomRepo.AddMember(ctx, membership)
	if err != nil {
		return nil, storageErr("adding member", err)
	}

	n := s.subs.SubscribeUser(userID, realtime.RoomChannel(roomID))

	if !added {
		existing, err := s.roomRepo.GetMember(ctx, roomID, userID)
		if err != nil {
			return nil, storageErr("loading membership", err)
		}
		if existing != nil {
			return existing, nil
		}
		// Removed between the insert and the read; report what we tried.
		return membership, nil
	}

	s.log.Info("user joined room", "user_id", userID, "room_id", roomID, "live_conns", n)
	s.announce(ctx, roomID, user, "has entered")
	return membership, nil
}

func (s *MembershipService) Leave(ctx context.Context, userID, roomID uuid.UUID) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return storageErr("loading user", err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	removed, err := s.roomRepo.RemoveMember(ctx, roomID, userID)
	if err != nil {
		return storageErr("removing member", err)
	}
	if !removed {
		return ErrMembershipNotFound
	}

	s.subs.UnsubscribeUser(userID, realtime.RoomChannel(roomID))

	s.log.Info("user left room", "user_id", userID, "room_id", roomID)
	s.announce(ctx, roomID, user, "has left")
	return nil
}

// Attach subscribes one connection to a room its user already belongs to.
func (s *MembershipService) Attach(ctx context.Context, userID uuid.UUID, connID string, roomID uuid.UUID) error {
	ok, err := s.IsMember(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if !ok {
		room, err := s.roomRepo.GetByID(ctx, roomID)
		if err != nil {
			return storageErr("loading room", err)
		}
		if room == nil {
			return ErrRoomNotFound
		}
		return ErrNotRoomMember
	}

	s.subs.Subscribe(connID, realtime.RoomChannel(roomID))
	return nil
}

// Reconcile subscribes a freshly registered connection to every room the
// user belongs to and returns how many rooms that was.
func (s *MembershipService) Reconcile(ctx context.Context, userID uuid.UUID, connID string) (int, error) {
	rooms, err := s.roomRepo.ListByUser(ctx, userID)
	if err != nil {
		return 0, storageErr("listing rooms", err)
	}
	for _, room := range rooms {
		s.subs.Subscribe(connID, realtime.RoomChannel(room.ID))
	}
	return len(rooms), nil
}

func (s *MembershipService) IsMember(ctx context.Context, userID, roomID uuid.UUID) (bool, error) {
	m, err := s.roomRepo.GetMember(ctx, roomID, userID)
	if err != nil {
		return false, storageErr("loading membership", err)
	}
	return m != nil, nil
}

// ListMembers returns members in join order.
func (s *MembershipService) ListMembers(ctx context.Context, roomID uuid.UUID) ([]domain.RoomMember, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, storageErr("loading room", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	members, err := s.roomRepo.ListMembers(ctx, roomID)
	if err != nil {
		return nil, storageErr("listing members", err)
	}
	if members == nil {
		members = []domain.RoomMember{}
	}
	return members, nil
}

func (s *MembershipService) ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]domain.Room, error) {
	rooms, err := s.roomRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, storageErr("listing rooms", err)
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	return rooms, nil
}

func (s *MembershipService) ListPublicRooms(ctx context.Context) ([]domain.Room, error) {
	rooms, err := s.roomRepo.ListPublic(ctx)
	if err != nil {
		return nil, storageErr("listing rooms", err)
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	return rooms, nil
}

// announce posts a join/leave notice. The membership change has already been
// committed, so a failed notice is logged and not returned.
func (s *MembershipService) announce(ctx context.Context, roomID uuid.UUID, user *domain.User, verb string) {
	content := user.Label() + " " + verb
	if _, err := s.messageService.SendSystem(ctx, roomID, user.ID, content); err != nil {
		s.log.Warn("room notice failed", "room_id", roomID, "user_id", user.ID, "error", err)
	}
}
