// Package memory is a process-local implementation of the repository
// interfaces. It backs STORE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/vedran77/lounge/internal/domain"
	"github.com/vedran77/lounge/internal/repository"
)

type memberKey struct {
	roomID uuid.UUID
	userID uuid.UUID
}

// Store holds every table behind a single lock.
type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]domain.User
	rooms    map[uuid.UUID]domain.Room
	members  map[memberKey]domain.RoomMembership
	messages []domain.Message
	seq      int64

	// failWith, when set, is returned by every call.
	failWith error
}

func New() *Store {
	return &Store{
		users:   make(map[uuid.UUID]domain.User),
		rooms:   make(map[uuid.UUID]domain.Room),
		members: make(map[memberKey]domain.RoomMembership),
	}
}

func (s *Store) Users() *UserRepo       { return &UserRepo{s: s} }
func (s *Store) Rooms() *RoomRepo       { return &RoomRepo{s: s} }
func (s *Store) Messages() *MessageRepo { return &MessageRepo{s: s} }

// FailWith makes every subsequent call return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// MessageCount is the number of stored messages.
func (s *Store) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// MembershipCount is the number of membership rows for the pair.
func (s *Store) MembershipCount(roomID, userID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.members[memberKey{roomID, userID}]; ok {
		return 1
	}
	return 0
}

// --- users ---

type UserRepo struct{ s *Store }

func (r *UserRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}

	for _, u := range r.s.users {
		if u.ID == user.ID || strings.EqualFold(u.Email, user.Email) || u.Username == user.Username {
			return fmt.Errorf("%w: users", repository.ErrDuplicate)
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == id })
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *UserRepo) find(match func(domain.User) bool) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}

	u, ok := lo.Find(lo.Values(r.s.users), match)
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) UpdatePresence(_ context.Context, id uuid.UUID, isOnline bool, status *string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}

	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	u.IsOnline = isOnline
	if status != nil {
		u.Status = lo.ToPtr(*status)
	}
	u.UpdatedAt = time.Now().UTC()
	r.s.users[id] = u
	return &u, nil
}

// --- rooms ---

type RoomRepo struct{ s *Store }

func (r *RoomRepo) CreateWithOwner(_ context.Context, room *domain.Room, owner *domain.RoomMembership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}

	if _, ok := r.s.rooms[room.ID]; ok {
		return fmt.Errorf("%w: rooms", repository.ErrDuplicate)
	}
	r.s.rooms[room.ID] = *room
	r.s.members[memberKey{owner.RoomID, owner.UserID}] = *owner
	return nil
}

func (r *RoomRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}

	room, ok := r.s.rooms[id]
	if !ok {
		return nil, nil
	}
	return &room, nil
}

func (r *RoomRepo) ListPublic(_ context.Context) ([]domain.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}

	rooms := lo.Filter(lo.Values(r.s.rooms), func(room domain.Room, _ int) bool { return !room.IsPrivate })
	sort.SliceStable(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })
	return rooms, nil
}

func (r *RoomRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}

	memberships := lo.Filter(lo.Values(r.s.members), func(m domain.RoomMembership, _ int) bool { return m.UserID == userID })
	sortMemberships(memberships)
	return lo.Map(memberships, func(m domain.RoomMembership, _ int) domain.Room { return r.s.rooms[m.RoomID] }), nil
}

func (r *RoomRepo) AddMember(_ context.Context, m *domain.RoomMembership) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return false, r.s.failWith
	}

	key := memberKey{m.RoomID, m.UserID}
	if _, ok := r.s.members[key]; ok {
		return false, nil
	}
	r.s.members[key] = *m
	return true, nil
}

func (r *RoomRepo) RemoveMember(_ context.Context, roomID, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return false, r.s.failWith
	}

	key := memberKey{roomID, userID}
	if _, ok := r.s.members[key]; !ok {
		return false, nil
	}
	delete(r.s.members, key)
	return true, nil
}

func (r *RoomRepo) GetMember(_ context.Context, roomID, userID uuid.UUID) (*domain.RoomMembership, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}

	m, ok := r.s.members[memberKey{roomID, userID}]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *RoomRepo) ListMembers(_ context.Context, roomID uuid.UUID) ([]domain.RoomMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}

	memberships := lo.Filter(lo.Values(r.s.members), func(m domain.RoomMembership, _ int) bool { return m.RoomID == roomID })
	sortMemberships(memberships)
	return lo.Map(memberships, func(m domain.RoomMembership, _ int) domain.RoomMember {
		u := r.s.users[m.UserID]
		return domain.RoomMember{
			UserID:      u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			IsOnline:    u.IsOnline,
			Status:      u.Status,
			JoinedAt:    m.JoinedAt,
		}
	}), nil
}

func sortMemberships(ms []domain.RoomMembership) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].JoinedAt.Equal(ms[j].JoinedAt) {
			return ms[i].JoinedAt.Before(ms[j].JoinedAt)
		}
		return ms[i].UserID.String() < ms[j].UserID.String()
	})
}

// --- messages ---

type MessageRepo struct{ s *Store }

func (r *MessageRepo) Create(_ context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failWith != nil {
		return r.s.failWith
	}

	r.s.seq++
	msg.Seq = r.s.seq
	r.s.messages = append(r.s.messages, *msg)
	return nil
}

func (r *MessageRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}

	msg, ok := lo.Find(r.s.messages, func(m domain.Message) bool { return m.ID == id })
	if !ok {
		return nil, nil
	}
	r.s.withSender(&msg)
	return &msg, nil
}

func (r *MessageRepo) ListByRoom(_ context.Context, roomID uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	return r.list(before, limit, func(m domain.Message) bool {
		return m.RoomID != nil && *m.RoomID == roomID
	})
}

func (r *MessageRepo) ListDirect(_ context.Context, userA, userB uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	return r.list(before, limit, func(m domain.Message) bool {
		if m.RoomID != nil || m.RecipientID == nil {
			return false
		}
		return (m.SenderID == userA && *m.RecipientID == userB) ||
			(m.SenderID == userB && *m.RecipientID == userA)
	})
}

// list returns the newest limit matches older than before, oldest first.
func (r *MessageRepo) list(before *uuid.UUID, limit int, match func(domain.Message) bool) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.failWith != nil {
		return nil, r.s.failWith
	}

	upper := r.s.seq + 1
	if before != nil {
		cursor, ok := lo.Find(r.s.messages, func(m domain.Message) bool { return m.ID == *before })
		if !ok {
			return nil, nil
		}
		upper = cursor.Seq
	}

	matched := lo.Filter(r.s.messages, func(m domain.Message, _ int) bool {
		return m.Seq < upper && match(m)
	})
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	for i := range matched {
		r.s.withSender(&matched[i])
	}
	return matched, nil
}

func (s *Store) withSender(msg *domain.Message) {
	if u, ok := s.users[msg.SenderID]; ok {
		msg.SenderUsername = u.Username
		msg.SenderDisplayName = u.DisplayName
	}
}
