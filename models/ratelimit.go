package models

import "time"

// RateLimitEntry tracks failed login attempts for a single identifier
// (client IP, or a fixed key when no address is derivable).
type RateLimitEntry struct {
	Identifier   string     `json:"identifier"`
	FailureCount int        `json:"failureCount"`
	WindowStart  time.Time  `json:"windowStart"`
	LockedUntil  *time.Time `json:"lockedUntil,omitempty"`
}

// IsLocked reports whether the identifier is locked out at the given time.
func (e RateLimitEntry) IsLocked(now time.Time) bool {
	return e.LockedUntil != nil && now.Before(*e.LockedUntil)
}

// WindowExpired reports whether the rolling attempt window has elapsed.
func (e RateLimitEntry) WindowExpired(now time.Time, window time.Duration) bool {
	return now.Sub(e.WindowStart) > window
}

// Stale reports whether the entry carries no useful state anymore and can
// be evicted: not locked and outside its attempt window.
func (e RateLimitEntry) Stale(now time.Time, window time.Duration) bool {
	return !e.IsLocked(now) && e.WindowExpired(now, window)
}
