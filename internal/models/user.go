package models

import (
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleClient Role = "client"
	RoleReader Role = "reader"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleReader, RoleAdmin:
		return true
	}
	return false
}

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

// User matches the users table. Balance is kept in cents and can never go
// negative (enforced by a check constraint).
type User struct {
	ID           uuid.UUID  `json:"id"`
	FirebaseUID  string     `json:"firebase_uid"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	AvatarURL    *string    `json:"avatar_url,omitempty"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	BalanceCents int64      `json:"balance_cents"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

func (u *User) Prepare() {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = html.EscapeString(strings.ToLower(strings.TrimSpace(u.Email)))
	u.DisplayName = html.EscapeString(strings.TrimSpace(u.DisplayName))
	if u.Role == "" {
		u.Role = RoleClient
	}
	if u.Status == "" {
		u.Status = UserActive
	}
}

func (u *User) IsActive() bool {
	return u.Status == UserActive && u.DeletedAt == nil
}

func (u *User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

type UserFilter struct {
	Role   Role
	Status UserStatus
	Query  string
	Page
}
