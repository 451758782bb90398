// Package identity exposes the end-user authentication state sourced
// from an external identity provider (the site's backend-as-a-service).
// The provider is consulted exactly once at startup; afterwards changes
// arrive through the provider's subscription, never by polling.
package identity

import (
	"context"
	"errors"
	"sync"

	"leadgate/models"
)

// ErrNotStarted is returned by SignOut before Start has been called.
var ErrNotStarted = errors.New("identity context not started")

// Provider is the external identity service contract.
type Provider interface {
	// CurrentSession resolves the current user and profile, if any.
	// A nil user with a nil error means no active session.
	CurrentSession(ctx context.Context) (*models.User, *models.UserProfile, error)

	// OnChange registers a callback invoked whenever the user or
	// profile changes. The returned func cancels the registration.
	OnChange(fn func(user *models.User, profile *models.UserProfile)) (cancel func())

	// SignOut terminates the provider-side session.
	SignOut(ctx context.Context) error
}

// State is the auth snapshot guards evaluate. Loading is true until the
// initial provider resolve completes; guards must not redirect while it
// is set.
type State struct {
	User    *models.User
	Profile *models.UserProfile
	Loading bool
}

// Role returns the current role, defaulting to user when no profile is
// cached yet.
func (s State) Role() models.Role {
	if s.Profile != nil {
		return s.Profile.Role
	}
	return models.RoleUser
}

// Context holds the end-user auth state for the whole service. It is an
// explicit dependency: whatever needs auth state receives a *Context,
// nothing reads ambient globals.
type Context struct {
	provider Provider

	mu       sync.Mutex
	started  bool
	state    State
	cancelFn func()
	subs     map[int]chan State
	nextSub  int
}

// NewContext creates an identity context over the given provider.
func NewContext(provider Provider) *Context {
	return &Context{
		provider: provider,
		state:    State{Loading: true},
		subs:     make(map[int]chan State),
	}
}

// Start performs the one-time initial session resolve and registers for
// provider change notifications. A provider error degrades to the
// logged-out state; it never propagates as a failure.
func (c *Context) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	user, profile, err := c.provider.CurrentSession(ctx)
	if err != nil {
		user, profile = nil, nil
	}

	c.mu.Lock()
	c.state = State{User: user, Profile: profile, Loading: false}
	c.notifyLocked()
	c.mu.Unlock()

	cancel := c.provider.OnChange(func(user *models.User, profile *models.UserProfile) {
		c.mu.Lock()
		c.state = State{User: user, Profile: profile, Loading: false}
		c.notifyLocked()
		c.mu.Unlock()
	})

	c.mu.Lock()
	c.cancelFn = cancel
	c.mu.Unlock()
}

// Stop cancels the provider subscription.
func (c *Context) Stop() {
	c.mu.Lock()
	cancel := c.cancelFn
	c.cancelFn = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// State returns the current auth snapshot.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers for state updates. The returned cancel func must be
// called to release the subscription.
func (c *Context) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan State, 8)
	c.subs[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if s, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(s)
		}
	}
	return ch, cancel
}

// SignOut terminates the current session. It is idempotent: signing out
// with no active session is a no-op.
func (c *Context) SignOut(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	hasUser := c.state.User != nil
	c.mu.Unlock()

	if !hasUser {
		return nil
	}

	if err := c.provider.SignOut(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = State{Loading: false}
	c.notifyLocked()
	c.mu.Unlock()
	return nil
}

// notifyLocked pushes the current state to subscribers without blocking.
// Must be called with mu held.
func (c *Context) notifyLocked() {
	for _, ch := range c.subs {
		select {
		case ch <- c.state:
		default:
		}
	}
}
