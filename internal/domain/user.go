package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	IsOnline     bool      `json:"is_online"`
	Status       *string   `json:"status,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Label is the name used in system notices: display name, then username,
// then the local part of the email address.
func (u *User) Label() string {
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}
