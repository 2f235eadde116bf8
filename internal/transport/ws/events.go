package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vedran77/lounge/internal/domain"
	"github.com/vedran77/lounge/internal/realtime"
	"github.com/vedran77/lounge/internal/service"
)

var (
	ErrInvalidPayload = fmt.Errorf("%w: invalid event payload", service.ErrValidation)
	ErrUnknownEvent   = fmt.Errorf("%w: unknown event type", service.ErrValidation)
)

// --- Client → Server payloads ---

type UserChannelPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

type RoomPayload struct {
	RoomID uuid.UUID `json:"room_id"`
}

type DirectMessagePayload struct {
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Content    string    `json:"content"`
	MediaURL   *string   `json:"media_url,omitempty"`
	MediaType  *string   `json:"media_type,omitempty"`
}

type RoomMessagePayload struct {
	SenderID  uuid.UUID `json:"sender_id"`
	RoomID    uuid.UUID `json:"room_id"`
	Content   string    `json:"content"`
	MediaURL  *string   `json:"media_url,omitempty"`
	MediaType *string   `json:"media_type,omitempty"`
}

// TypingPayload names exactly one of RoomID and ReceiverID.
type TypingPayload struct {
	UserID     uuid.UUID  `json:"user_id"`
	RoomID     *uuid.UUID `json:"room_id,omitempty"`
	ReceiverID *uuid.UUID `json:"receiver_id,omitempty"`
}

func (p TypingPayload) target() (domain.Target, error) {
	switch {
	case p.RoomID != nil && p.ReceiverID == nil:
		return domain.RoomTarget(*p.RoomID), nil
	case p.ReceiverID != nil && p.RoomID == nil:
		return domain.UserTarget(*p.ReceiverID), nil
	default:
		return domain.Target{}, service.ErrInvalidTarget
	}
}

type StatusPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	Status   *string   `json:"status,omitempty"`
}

// dispatch handles one inbound frame. Any failure is reported to the
// originating session only.
func (g *Gateway) dispatch(ctx context.Context, s *Session, data []byte) {
	var evt realtime.Event
	if data == nil || json.Unmarshal(data, &evt) != nil {
		g.reply(s, "", ErrInvalidPayload)
		return
	}

	if err := g.handle(ctx, s, evt); err != nil {
		g.reply(s, evt.Type, err)
	}
}

func (g *Gateway) handle(ctx context.Context, s *Session, evt realtime.Event) error {
	switch evt.Type {
	case realtime.EventJoinUserChannel:
		var p UserChannelPayload
		if err := decode(evt.Payload, &p); err != nil {
			return err
		}
		if err := requireSelf(s, p.UserID); err != nil {
			return err
		}
		g.registry.Subscribe(s.id, realtime.UserChannel(s.userID))
		return nil

	case realtime.EventJoinRoom:
		var p RoomPayload
		if err := decode(evt.Payload, &p); err != nil {
			return err
		}
		return g.membership.Attach(ctx, s.userID, s.id, p.RoomID)

	case realtime.EventLeaveRoom:
		var p RoomPayload
		if err := decode(evt.Payload, &p); err != nil {
			return err
		}
		// Leave unsubscribes every connection of the user once the row is
		// gone. A failed delete keeps this one subscribed.
		err := g.membership.Leave(ctx, s.userID, p.RoomID)
		if errors.Is(err, service.ErrMembershipNotFound) {
			g.registry.Unsubscribe(s.id, realtime.RoomChannel(p.RoomID))
		}
		return err

	case realtime.EventSendDirectMessage:
		var p DirectMessagePayload
		if err := decode(evt.Payload, &p); err != nil {
			return err
		}
		if err := requireSelf(s, p.SenderID); err != nil {
			return err
		}
		_, err := g.messages.SendDirect(ctx, s.userID, p.ReceiverID, service.SendMessageInput{
			Content:   p.Content,
			MediaURL:  p.MediaURL,
			MediaType: p.MediaType,
		})
		return err

	case realtime.EventSendRoomMessage:
		var p RoomMessagePayload
		if err := decode(evt.Payload, &p); err != nil {
			return err
		}
		if err := requireSelf(s, p.SenderID); err != nil {
			return err
		}
		_, err := g.messages.SendRoom(ctx, s.userID, p.RoomID, service.SendMessageInput{
			Content:   p.Content,
			MediaURL:  p.MediaURL,
			MediaType: p.MediaType,
		})
		return err

	case realtime.EventTypingStart, realtime.EventTypingStop:
		var p TypingPayload
		if err := decode(evt.Payload, &p); err != nil {
			return err
		}
		if err := requireSelf(s, p.UserID); err != nil {
			return err
		}
		target, err := p.target()
		if err != nil {
			return err
		}
		origin := service.Origin{UserID: s.userID, ConnID: s.id}
		if evt.Type == realtime.EventTypingStart {
			return g.typing.Start(ctx, origin, target)
		}
		return g.typing.Stop(ctx, origin, target)

	case realtime.EventUpdateStatus:
		var p StatusPayload
		if err := decode(evt.Payload, &p); err != nil {
			return err
		}
		if err := requireSelf(s, p.UserID); err != nil {
			return err
		}
		_, err := g.presence.SetStatus(ctx, s.userID, p.IsOnline, p.Status)
		return err

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, evt.Type)
	}
}

// reply sends message-error to s. Client mistakes are logged at debug level,
// everything else as an error.
func (g *Gateway) reply(s *Session, eventType string, err error) {
	code := service.ErrorCode(err)
	log := g.log.With("conn_id", s.id, "user_id", s.userID, "event", eventType, "code", code)

	switch {
	case errors.Is(err, service.ErrStorage), code == "INTERNAL":
		log.Error("event failed", "error", err)
	default:
		log.Debug("event rejected", "error", err)
	}

	frame, encErr := realtime.Encode(realtime.EventMessageError, realtime.ErrorPayload{
		Error: service.PublicMessage(err),
		Code:  code,
	})
	if encErr != nil {
		log.Error("encoding error event", "error", encErr)
		return
	}
	if sendErr := s.Send(frame); sendErr != nil {
		log.Warn("delivering error event", "error", sendErr)
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return ErrInvalidPayload
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPayload, err.Error())
	}
	return nil
}

// requireSelf rejects payloads that act on behalf of another user. A zero id
// means the session user.
func requireSelf(s *Session, userID uuid.UUID) error {
	if userID != uuid.Nil && userID != s.userID {
		return service.ErrNotSelf
	}
	return nil
}
