// Package adminauth drives the dashboard login flow: a small state
// machine composing the login rate limiter, the credential verifier, and
// the session store. The rate-limit check always runs before credential
// verification, and every failed verification counts against the limiter.
package adminauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"leadgate/models"
	"leadgate/services/sessions"
)

var (
	// ErrInvalidCredentials is deliberately generic: it never reveals
	// whether the identifier or the secret was wrong.
	ErrInvalidCredentials = errors.New("invalid password")

	ErrSessionUnavailable = errors.New("failed to create session")
)

// DefaultIdentifier is the rate-limit key used when no client address is
// derivable from the request.
const DefaultIdentifier = "admin"

// tickInterval is how often lockout countdowns are recomputed for
// subscribers while Run is active.
const tickInterval = 1 * time.Second

// State is the login state machine position.
type State int

const (
	StateLoggedOut State = iota
	StateAuthenticating
	StateLoggedIn
	StateLockedOut
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateAuthenticating:
		return "authenticating"
	case StateLoggedIn:
		return "logged_in"
	case StateLockedOut:
		return "locked_out"
	default:
		return "unknown"
	}
}

// LockoutError reports a login attempt rejected by the rate limiter
// before credential verification ran.
type LockoutError struct {
	Remaining time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("too many failed attempts, try again in %s", e.Remaining.Round(time.Second))
}

// Status is a snapshot of the state machine pushed to subscribers.
type Status struct {
	State            State
	LockoutRemaining time.Duration
}

// AttemptLimiter is the login lockout limiter consumed by the flow.
type AttemptLimiter interface {
	IsAllowed(identifier string) bool
	RemainingTime(identifier string) time.Duration
	RecordFailure(identifier string) error
	Reset(identifier string)
}

// SecretVerifier compares a submitted secret against a stored hash.
type SecretVerifier interface {
	Verify(secret, storedHash string) bool
}

// SessionStore issues and revokes admin sessions.
type SessionStore interface {
	Create(role models.Role, payload map[string]string) (models.Session, error)
	Revoke(token string) error
}

// PasswordSource provides the stored admin password hash.
type PasswordSource interface {
	PasswordHash() string
}

// Service is the admin login/logout state machine.
type Service struct {
	limiter  AttemptLimiter
	verifier SecretVerifier
	sessions SessionStore
	accounts PasswordSource

	mu         sync.Mutex
	state      State
	identifier string
	subs       map[int]chan Status
	nextSub    int
}

// NewService wires the login flow from its collaborators.
func NewService(limiter AttemptLimiter, verifier SecretVerifier, sessionStore SessionStore, accounts PasswordSource) *Service {
	return &Service{
		limiter:  limiter,
		verifier: verifier,
		sessions: sessionStore,
		accounts: accounts,
		state:    StateLoggedOut,
		subs:     make(map[int]chan Status),
	}
}

// Login attempts to authenticate the shared admin role. identifier keys
// the rate limiter (client IP where available). The limiter check runs
// strictly before credential verification; a rejected attempt returns a
// LockoutError carrying the remaining wait and never touches the verifier.
func (s *Service) Login(ctx context.Context, identifier, password string) (models.Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		identifier = DefaultIdentifier
	}

	s.mu.Lock()
	if !s.limiter.IsAllowed(identifier) {
		s.state = StateLockedOut
		s.identifier = identifier
		remaining := s.limiter.RemainingTime(identifier)
		s.notifyLocked()
		s.mu.Unlock()
		return models.Session{}, &LockoutError{Remaining: remaining}
	}
	s.state = StateAuthenticating
	s.identifier = identifier
	s.notifyLocked()
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		s.transition(StateLoggedOut)
		return models.Session{}, err
	}

	// bcrypt comparison is intentionally slow; run it outside the lock.
	ok := s.verifier.Verify(password, s.accounts.PasswordHash())
	if !ok {
		_ = s.limiter.RecordFailure(identifier)
		if s.limiter.IsAllowed(identifier) {
			s.transition(StateLoggedOut)
		} else {
			s.transition(StateLockedOut)
		}
		return models.Session{}, ErrInvalidCredentials
	}

	s.limiter.Reset(identifier)

	session, err := s.sessions.Create(models.RoleAdmin, map[string]string{
		"loginTime": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.transition(StateLoggedOut)
		return models.Session{}, ErrSessionUnavailable
	}

	s.transition(StateLoggedIn)
	return session, nil
}

// Logout revokes the session and returns to LoggedOut. It is idempotent:
// logging out with no active session is a no-op, not an error.
func (s *Service) Logout(token string) error {
	if strings.TrimSpace(token) != "" {
		if err := s.sessions.Revoke(token); err != nil &&
			!errors.Is(err, sessions.ErrSessionNotFound) &&
			!errors.Is(err, sessions.ErrInvalidToken) {
			s.transition(StateLoggedOut)
			return err
		}
	}
	s.transition(StateLoggedOut)
	return nil
}

// Status returns the current state and, when locked out, the remaining
// lockout time.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Subscribe registers for state updates. The returned cancel func must be
// called to release the subscription.
func (s *Service) Subscribe() (<-chan Status, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Status, 8)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Run recomputes the lockout countdown every second and pushes updates to
// subscribers. It blocks until ctx is cancelled; the ticker is always
// torn down with it.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick advances the lockout countdown, moving back to LoggedOut once the
// window has elapsed.
func (s *Service) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLockedOut {
		return
	}

	if s.limiter.RemainingTime(s.identifier) <= 0 {
		s.state = StateLoggedOut
	}
	s.notifyLocked()
}

func (s *Service) transition(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.notifyLocked()
}

// statusLocked builds a Status snapshot. Must be called with mu held.
func (s *Service) statusLocked() Status {
	st := Status{State: s.state}
	if s.state == StateLockedOut && s.identifier != "" {
		st.LockoutRemaining = s.limiter.RemainingTime(s.identifier)
	}
	return st
}

// notifyLocked pushes the current status to subscribers without blocking.
// Must be called with mu held.
func (s *Service) notifyLocked() {
	st := s.statusLocked()
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
		}
	}
}
