package auth

import (
	"net/http"

	"leadgate/models"
)

// ContextKey is the type used for context keys
type ContextKey string

const (
	// ContextKeyRole is the key for the session role in the context
	ContextKeyRole ContextKey = "role"
	// ContextKeySession is the key for the session in the context
	ContextKeySession ContextKey = "session"
)

// GetRole retrieves the authenticated role from the request context.
func GetRole(r *http.Request) models.Role {
	if role, ok := r.Context().Value(ContextKeyRole).(models.Role); ok {
		return role
	}
	return ""
}

// GetSession retrieves the validated session from the request context.
func GetSession(r *http.Request) (models.Session, bool) {
	session, ok := r.Context().Value(ContextKeySession).(models.Session)
	return session, ok
}

// IsAdmin checks if the request carries an admin session.
func IsAdmin(r *http.Request) bool {
	return GetRole(r) == models.RoleAdmin
}
