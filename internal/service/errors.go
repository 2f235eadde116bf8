package service

import (
	"errors"
	"fmt"

	"github.com/vedran77/lounge/internal/realtime"
)

// Error categories. Every error returned by this package matches exactly one
// of them with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrStorage      = errors.New("storage error")
	ErrTransport    = realtime.ErrTransport
)

var (
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrRecipientNotFound  = fmt.Errorf("recipient %w", ErrNotFound)
	ErrRoomNotFound       = fmt.Errorf("room %w", ErrNotFound)
	ErrMembershipNotFound = fmt.Errorf("membership %w", ErrNotFound)

	ErrNotRoomMember = fmt.Errorf("%w: user is not a member of this room", ErrForbidden)
	ErrNotSelf       = fmt.Errorf("%w: acting on behalf of another user", ErrForbidden)

	ErrContentEmpty     = fmt.Errorf("%w: message content is required", ErrValidation)
	ErrContentTooLong   = fmt.Errorf("%w: message content is too long", ErrValidation)
	ErrInvalidMediaType = fmt.Errorf("%w: unsupported media type", ErrValidation)
	ErrInvalidMediaURL  = fmt.Errorf("%w: media url must be an absolute http(s) url", ErrValidation)
	ErrSelfMessage      = fmt.Errorf("%w: cannot send a direct message to yourself", ErrValidation)
	ErrInvalidTarget    = fmt.Errorf("%w: target must be a room or a user", ErrValidation)
	ErrStatusTooLong    = fmt.Errorf("%w: status is too long", ErrValidation)
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// ErrorCode maps err onto the stable code reported to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrStorage):
		return "STORAGE_ERROR"
	case errors.Is(err, ErrTransport):
		return "TRANSPORT_ERROR"
	default:
		return "INTERNAL"
	}
}

// PublicMessage is err's text, unless it may carry infrastructure details.
func PublicMessage(err error) string {
	switch ErrorCode(err) {
	case "STORAGE_ERROR", "TRANSPORT_ERROR", "INTERNAL":
		return "Something went wrong, please try again"
	default:
		return err.Error()
	}
}
