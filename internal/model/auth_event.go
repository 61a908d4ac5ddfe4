package model

import "time"

// Auth event kinds recorded in the audit trail.
const (
	EventLoginSucceeded = "login_succeeded"
	EventLoginFailed    = "login_failed"
	EventUserRegistered = "user_registered"
	EventLogout         = "logout"
)

// AuthEvent is a single audit trail entry for an authentication action.
// UserID is empty for failed logins against unknown emails.
type AuthEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	Email      string    `json:"email"`
	Kind       string    `json:"kind"`
	IPHash     string    `json:"ip_hash,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
