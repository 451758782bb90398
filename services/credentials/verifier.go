// Package credentials verifies submitted secrets against stored bcrypt
// hashes. Verification failures are deliberately indistinguishable from
// internal errors so callers can only surface a generic message.
package credentials

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
)

// MinPasswordLength is the minimum accepted admin password length.
const MinPasswordLength = 8

// Verifier compares secrets against bcrypt hashes.
type Verifier struct{}

// NewVerifier creates a credential verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify reports whether secret matches the stored bcrypt hash. Any
// internal error (malformed hash, empty input) is treated as a plain
// verification failure, never propagated.
func (v *Verifier) Verify(secret, storedHash string) bool {
	if secret == "" || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(secret)) == nil
}

// Hash derives a bcrypt hash for a new password, enforcing the minimum
// length policy.
func (v *Verifier) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrPasswordRequired
	}
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
