package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"leadgate/models"
)

const (
	providerTimeout = 10 * time.Second

	// refreshInterval is how often the provider re-checks the upstream
	// session. Consumers are only notified when the identity changed.
	refreshInterval = 5 * time.Minute
)

// HTTPProvider implements Provider against the backend-as-a-service
// session API.
type HTTPProvider struct {
	client  *http.Client
	baseURL string

	mu       sync.Mutex
	lastUser *models.User
	lastProf *models.UserProfile
	subs     map[int]func(*models.User, *models.UserProfile)
	nextSub  int
	stopOnce sync.Once
	stop     chan struct{}
}

// NewHTTPProvider creates a provider backed by the given base URL.
func NewHTTPProvider(baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: providerTimeout}
	}
	p := &HTTPProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		subs:    make(map[int]func(*models.User, *models.UserProfile)),
		stop:    make(chan struct{}),
	}
	go p.refreshLoop()
	return p
}

// sessionResponse is the upstream session payload.
type sessionResponse struct {
	User    *models.User        `json:"user"`
	Profile *models.UserProfile `json:"profile"`
}

// CurrentSession resolves the current user and profile from upstream.
func (p *HTTPProvider) CurrentSession(ctx context.Context) (*models.User, *models.UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/session", nil)
	if err != nil {
		return nil, nil, err
	}

	res, err := p.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusNotFound {
		p.remember(nil, nil)
		return nil, nil, nil
	}
	if res.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("identity provider status %d", res.StatusCode)
	}

	var body sessionResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, nil, fmt.Errorf("decode session: %w", err)
	}

	p.remember(body.User, body.Profile)
	return body.User, body.Profile, nil
}

// OnChange registers a callback invoked when the upstream identity
// changes. The returned func cancels the registration.
func (p *HTTPProvider) OnChange(fn func(user *models.User, profile *models.UserProfile)) (cancel func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// SignOut terminates the upstream session.
func (p *HTTPProvider) SignOut(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/signout", nil)
	if err != nil {
		return err
	}

	res, err := p.client.Do(req)
	if err != nil {
		return err
	}
	res.Body.Close()

	p.remember(nil, nil)
	return nil
}

// Close stops the background refresh loop.
func (p *HTTPProvider) Close() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// refreshLoop re-checks the upstream session periodically so registered
// callbacks see provider-side changes without consumers polling.
func (p *HTTPProvider) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), providerTimeout)
			_, _, _ = p.CurrentSession(ctx)
			cancel()
		}
	}
}

// remember records the latest identity and notifies subscribers when it
// changed.
func (p *HTTPProvider) remember(user *models.User, profile *models.UserProfile) {
	p.mu.Lock()

	changed := !sameUser(p.lastUser, user) || !sameProfile(p.lastProf, profile)
	p.lastUser = user
	p.lastProf = profile

	var fns []func(*models.User, *models.UserProfile)
	if changed {
		fns = make([]func(*models.User, *models.UserProfile), 0, len(p.subs))
		for _, fn := range p.subs {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(user, profile)
	}
}

func sameUser(a, b *models.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Email == b.Email
}

func sameProfile(a, b *models.UserProfile) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
