// Package model defines domain entities for the application.
package model

import (
	"slices"
	"time"
)

// Role constants for user authorization.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleUser, RoleAdmin}

// User represents a registered account.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name,omitempty"`
	PasswordHash string     `json:"-"` // Never serialize
	Roles        []string   `json:"roles"`
	Active       bool       `json:"active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasRole checks if the user holds a specific role.
// Admin implies every other role.
func (u *User) HasRole(role string) bool {
	if slices.Contains(u.Roles, RoleAdmin) {
		return true
	}
	return slices.Contains(u.Roles, role)
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return slices.Contains(u.Roles, RoleAdmin)
}

// AuthContext holds authenticated request context.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	UserID    string
	SessionID string
	Email     string
	Roles     []string
}

// HasRole checks if the auth context carries a specific role.
func (a *AuthContext) HasRole(role string) bool {
	if slices.Contains(a.Roles, RoleAdmin) {
		return true
	}
	return slices.Contains(a.Roles, role)
}

// IsAdmin reports whether the auth context carries the admin role.
func (a *AuthContext) IsAdmin() bool {
	return slices.Contains(a.Roles, RoleAdmin)
}

// Session is the server-side record backing an issued token.
// Stored in Redis under the session ID; deleting it revokes the token.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}
