// Package session manages cloud mode users and their sessions: opaque
// bearer tokens mapped to encrypted Touchstone API keys, persisted in redis
// with a bounded lifetime.
package session

import "time"

// Session binds an opaque bearer token to a user and an encrypted API key.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Token      string    `json:"sessionToken"`
	APIKeyEnc  string    `json:"apiKeyEnc"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}

// Expired reports whether the session lifetime has elapsed.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// User is a cloud account keyed by the Touchstone username.
type User struct {
	ID             string     `json:"id"`
	TouchstoneUser string     `json:"touchstoneUser"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastLoginAt    *time.Time `json:"lastLoginAt,omitempty"`
}
