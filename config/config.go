// Package config is the single configuration provider for the service.
// Values come from the environment with non-secret development fallbacks,
// plus a small set of JSON-persisted runtime overrides (webhook URLs
// patched from the dashboard). Consumers hold a *Provider reference and
// read snapshots; nothing mutates ambient globals.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

var ErrUnknownWebhookSource = errors.New("unknown webhook source")

// Config holds all environment-provided values. Defaults are development
// fallbacks only; production deployments override them via environment.
type Config struct {
	ListenAddr string `env:"LEADGATE_LISTEN_ADDR" envDefault:":8080"`
	StorageDir string `env:"LEADGATE_STORAGE_DIR" envDefault:"./data"`

	LogFile  string `env:"LEADGATE_LOG_FILE"`
	LogLevel string `env:"LEADGATE_LOG_LEVEL" envDefault:"info"`

	SiteOrigins []string `env:"LEADGATE_SITE_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	BackendBaseURL string `env:"LEADGATE_BACKEND_BASE_URL" envDefault:"http://localhost:9000"`

	AdminPasswordHash string        `env:"LEADGATE_ADMIN_PASSWORD_HASH"`
	SessionSigningKey string        `env:"LEADGATE_SESSION_SIGNING_KEY" envDefault:"dev-signing-key-not-for-production"`
	SessionDuration   time.Duration `env:"LEADGATE_SESSION_DURATION" envDefault:"24h"`

	LoginMaxAttempts int           `env:"LEADGATE_LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginWindow      time.Duration `env:"LEADGATE_LOGIN_WINDOW" envDefault:"15m"`
	LoginLockout     time.Duration `env:"LEADGATE_LOGIN_LOCKOUT" envDefault:"15m"`

	ContactWebhookURL    string `env:"LEADGATE_CONTACT_WEBHOOK_URL" envDefault:"http://localhost:9001/hooks/contact"`
	BookingWebhookURL    string `env:"LEADGATE_BOOKING_WEBHOOK_URL" envDefault:"http://localhost:9001/hooks/booking"`
	NewsletterWebhookURL string `env:"LEADGATE_NEWSLETTER_WEBHOOK_URL" envDefault:"http://localhost:9001/hooks/newsletter"`
}

// Provider loads configuration at startup and hands out snapshots.
// Reload re-reads both the environment and the persisted overrides.
type Provider struct {
	mu            sync.RWMutex
	cfg           Config
	overrides     map[string]string
	overridesPath string
}

// NewProvider parses the environment and applies persisted overrides.
func NewProvider() (*Provider, error) {
	p := &Provider{overrides: make(map[string]string)}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns a snapshot of the current configuration with overrides
// applied.
func (p *Provider) Get() Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.applyOverrides(p.cfg)
}

// Reload re-parses the environment and re-reads persisted overrides.
func (p *Provider) Reload() error {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	overridesPath := filepath.Join(cfg.StorageDir, "config_overrides.json")
	overrides, err := loadOverrides(overridesPath)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.cfg = cfg
	p.overrides = overrides
	p.overridesPath = overridesPath
	p.mu.Unlock()
	return nil
}

// WebhookURL returns the webhook URL for a form source, with any runtime
// override applied.
func (p *Provider) WebhookURL(source string) (string, error) {
	cfg := p.Get()
	switch source {
	case "contact":
		return cfg.ContactWebhookURL, nil
	case "booking":
		return cfg.BookingWebhookURL, nil
	case "newsletter":
		return cfg.NewsletterWebhookURL, nil
	default:
		return "", ErrUnknownWebhookSource
	}
}

// WebhookURLs returns all distinct configured webhook URLs, for
// broadcast delivery.
func (p *Provider) WebhookURLs() []string {
	cfg := p.Get()
	seen := make(map[string]bool, 3)
	var urls []string
	for _, u := range []string{cfg.ContactWebhookURL, cfg.BookingWebhookURL, cfg.NewsletterWebhookURL} {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

// SetWebhookOverride patches a webhook URL at runtime and persists the
// override so it survives restarts.
func (p *Provider) SetWebhookOverride(source, url string) error {
	source = strings.TrimSpace(source)
	switch source {
	case "contact", "booking", "newsletter":
	default:
		return ErrUnknownWebhookSource
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prev, had := p.overrides[source]
	if strings.TrimSpace(url) == "" {
		delete(p.overrides, source)
	} else {
		p.overrides[source] = url
	}

	if err := p.saveOverridesLocked(); err != nil {
		if had {
			p.overrides[source] = prev
		} else {
			delete(p.overrides, source)
		}
		return err
	}
	return nil
}

// applyOverrides returns cfg with runtime overrides folded in. Must be
// called with mu held (read or write).
func (p *Provider) applyOverrides(cfg Config) Config {
	if u, ok := p.overrides["contact"]; ok {
		cfg.ContactWebhookURL = u
	}
	if u, ok := p.overrides["booking"]; ok {
		cfg.BookingWebhookURL = u
	}
	if u, ok := p.overrides["newsletter"]; ok {
		cfg.NewsletterWebhookURL = u
	}
	return cfg
}

// loadOverrides reads persisted overrides; a missing file is fine.
func loadOverrides(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config overrides: %w", err)
	}
	defer file.Close()

	overrides := make(map[string]string)
	if err := json.NewDecoder(file).Decode(&overrides); err != nil {
		return nil, fmt.Errorf("decode config overrides: %w", err)
	}
	return overrides, nil
}

// saveOverridesLocked persists overrides. Must be called with mu held.
func (p *Provider) saveOverridesLocked() error {
	if err := os.MkdirAll(filepath.Dir(p.overridesPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp := p.overridesPath + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create overrides temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p.overrides); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode overrides: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close overrides temp file: %w", err)
	}

	if err := os.Rename(tmp, p.overridesPath); err != nil {
		return fmt.Errorf("replace overrides file: %w", err)
	}

	return nil
}
