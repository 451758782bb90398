package models

import "time"

// Role identifies the level of access a session or profile grants.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one this service understands.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Session represents an authenticated session. Token is the signed JWT
// handed to the client; ID is the jti claim used for server-side revocation.
type Session struct {
	ID        string            `json:"id"`
	Token     string            `json:"token"`
	Role      Role              `json:"role"`
	IssuedAt  time.Time         `json:"issuedAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Payload   map[string]string `json:"payload,omitempty"` // opaque to guards
}

// IsExpired returns true if the session has expired.
func (s Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
