package models

import "time"

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Confirmed    bool
	Avatar       string
	Role         UserRole
	CreatedAt    time.Time
}

func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// UserSnapshot is the cached projection of a User. It never carries the
// password hash and may be stale.
type UserSnapshot struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Avatar   string   `json:"avatar"`
	Role     UserRole `json:"role"`
}

func (u User) Snapshot() UserSnapshot {
	return UserSnapshot{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Avatar:   u.Avatar,
		Role:     u.Role,
	}
}

func (s UserSnapshot) Valid() bool {
	return s.ID != "" && s.Username != "" && s.Email != ""
}

// User rebuilds a partial User from the snapshot. Only confirmed users are
// ever cached, so Confirmed is set.
func (s UserSnapshot) User() User {
	role := s.Role
	if role == "" {
		role = UserRoleUser
	}
	return User{
		ID:        s.ID,
		Username:  s.Username,
		Email:     s.Email,
		Avatar:    s.Avatar,
		Role:      role,
		Confirmed: true,
	}
}
