package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/vedran77/lounge/internal/domain"
	"github.com/vedran77/lounge/internal/realtime"
	"github.com/vedran77/lounge/internal/repository"
)

const (
	defaultMaxContentLength = 2000
	defaultHistoryPageSize  = 50
	maxHistoryPageSize      = 100
)

type MessageOptions struct {
	MaxContentLength int
	HistoryPageSize  int
}

// MessageService validates, persists and fans out messages. A message is
// always committed before it is published, and publishes within one
// conversation happen in commit order.
type MessageService struct {
	messageRepo repository.MessageRepository
	roomRepo    repository.RoomRepository
	userRepo    repository.UserRepository
	publisher   Publisher
	opts        MessageOptions
	log         *slog.Logger

	conversations *keyedMutex
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	roomRepo repository.RoomRepository,
	userRepo repository.UserRepository,
	publisher Publisher,
	opts MessageOptions,
	logger *slog.Logger,
) *MessageService {
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = defaultMaxContentLength
	}
	if opts.HistoryPageSize <= 0 || opts.HistoryPageSize > maxHistoryPageSize {
		opts.HistoryPageSize = defaultHistoryPageSize
	}
	return &MessageService{
		messageRepo:   messageRepo,
		roomRepo:      roomRepo,
		userRepo:      userRepo,
		publisher:     publisher,
		opts:          opts,
		log:           logger.With("component", "router"),
		conversations: newKeyedMutex(),
	}
}

type SendMessageInput struct {
	Content   string  `json:"content"`
	MediaURL  *string `json:"media_url,omitempty"`
	MediaType *string `json:"media_type,omitempty"`
}

type HistoryPage struct {
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

func (s *MessageService) SendDirect(ctx context.Context, senderID, recipientID uuid.UUID, input SendMessageInput) (*domain.Message, error) {
	msg, err := s.build(senderID, domain.UserTarget(recipientID), input)
	if err != nil {
		return nil, err
	}
	if senderID == recipientID {
		return nil, ErrSelfMessage
	}

	recipient, err := s.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		return nil, storageErr("loading recipient", err)
	}
	if recipient == nil {
		return nil, ErrRecipientNotFound
	}

	return s.deliver(ctx, msg, realtime.EventNewDirectMessage,
		realtime.UserChannel(senderID),
		realtime.UserChannel(recipientID),
	)
}

func (s *MessageService) SendRoom(ctx context.Context, senderID, roomID uuid.UUID, input SendMessageInput) (*domain.Message, error) {
	msg, err := s.build(senderID, domain.RoomTarget(roomID), input)
	if err != nil {
		return nil, err
	}

	if err := s.checkRoomMember(ctx, senderID, roomID); err != nil {
		return nil, err
	}

	// Only the room channel: members already receive it once per connection.
	return s.deliver(ctx, msg, realtime.EventNewRoomMessage, realtime.RoomChannel(roomID))
}

// SendSystem posts a notice about subjectID into the room.
func (s *MessageService) SendSystem(ctx context.Context, roomID, subjectID uuid.UUID, content string) (*domain.Message, error) {
	msg := domain.NewMessage(domain.MessageKindSystem, subjectID, domain.RoomTarget(roomID), content)
	return s.deliver(ctx, msg, realtime.EventNewRoomMessage, realtime.RoomChannel(roomID))
}

// History returns one page of a conversation, oldest first. before is the id
// of the oldest message the caller already has.
func (s *MessageService) History(ctx context.Context, conv domain.Conversation, before *uuid.UUID, limit int) (*HistoryPage, error) {
	switch {
	case limit <= 0:
		limit = s.opts.HistoryPageSize
	case limit > maxHistoryPageSize:
		limit = maxHistoryPageSize
	}

	var (
		messages []domain.Message
		err      error
	)
	if roomID, ok := conv.Room(); ok {
		messages, err = s.messageRepo.ListByRoom(ctx, roomID, before, limit+1)
	} else {
		a, b, _ := conv.Pair()
		messages, err = s.messageRepo.ListDirect(ctx, a, b, before, limit+1)
	}
	if err != nil {
		return nil, storageErr("listing messages", err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[len(messages)-limit:]
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return &HistoryPage{Messages: messages, HasMore: hasMore}, nil
}

// RoomHistory is History for a room. Private rooms are readable by members only.
func (s *MessageService) RoomHistory(ctx context.Context, viewerID, roomID uuid.UUID, before *uuid.UUID, limit int) (*HistoryPage, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, storageErr("loading room", err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if room.IsPrivate {
		if err := s.checkRoomMember(ctx, viewerID, roomID); err != nil {
			return nil, err
		}
	}
	return s.History(ctx, domain.RoomConversation(roomID), before, limit)
}

func (s *MessageService) DirectHistory(ctx context.Context, viewerID, peerID uuid.UUID, before *uuid.UUID, limit int) (*HistoryPage, error) {
	peer, err := s.userRepo.GetByID(ctx, peerID)
	if err != nil {
		return nil, storageErr("loading user", err)
	}
	if peer == nil {
		return nil, ErrUserNotFound
	}
	return s.History(ctx, domain.DirectConversation(viewerID, peerID), before, limit)
}

func (s *MessageService) build(senderID uuid.UUID, to domain.Target, input SendMessageInput) (*domain.Message, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrContentEmpty
	}
	if utf8.RuneCountInString(content) > s.opts.MaxContentLength {
		return nil, fmt.Errorf("%w (max %d characters)", ErrContentTooLong, s.opts.MaxContentLength)
	}

	msg := domain.NewMessage(domain.MessageKindUser, senderID, to, content)

	if input.MediaURL != nil && *input.MediaURL != "" {
		u, err := url.Parse(*input.MediaURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, ErrInvalidMediaURL
		}
		msg.MediaURL = input.MediaURL
	}
	if input.MediaType != nil && *input.MediaType != "" {
		if mimetype.Lookup(*input.MediaType) == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMediaType, *input.MediaType)
		}
		msg.MediaType = input.MediaType
	}

	return msg, nil
}

func (s *MessageService) checkRoomMember(ctx context.Context, userID, roomID uuid.UUID) error {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return storageErr("loading room", err)
	}
	if room == nil {
		return ErrRoomNotFound
	}

	member, err := s.roomRepo.GetMember(ctx, roomID, userID)
	if err != nil {
		return storageErr("loading membership", err)
	}
	if member == nil {
		return ErrNotRoomMember
	}
	return nil
}

// deliver persists msg and then publishes it to keys, holding the
// conversation lock across both steps.
func (s *MessageService) deliver(ctx context.Context, msg *domain.Message, eventType string, keys ...realtime.ChannelKey) (*domain.Message, error) {
	unlock := s.conversations.lock(msg.Conversation().Key())
	defer unlock()

	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, storageErr("creating message", err)
	}

	// Re-read for the joined sender fields; the insert already succeeded, so
	// a failed read falls back to what was written.
	full, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err != nil || full == nil {
		if err != nil {
			s.log.Warn("reloading message", "message_id", msg.ID, "error", err)
		}
		full = msg
	}

	frame, err := realtime.Encode(eventType, full)
	if err != nil {
		s.log.Error("encoding message event", "message_id", full.ID, "error", err)
		return full, nil
	}

	for _, key := range keys {
		n := s.publisher.Publish(key, frame)
		s.log.Debug("message published", "message_id", full.ID, "channel", key, "delivered", n)
	}
	return full, nil
}
