package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"leadgate/models"
)

var (
	ErrIdentifierRequired = errors.New("identifier is required")
)

const (
	// DefaultMaxAttempts is the number of failed attempts allowed inside
	// the rolling window before the identifier is locked out.
	DefaultMaxAttempts = 5

	// DefaultWindow is the rolling window over which failures accumulate.
	DefaultWindow = 15 * time.Minute

	// DefaultLockout is how long an identifier stays locked once the
	// attempt budget is exhausted.
	DefaultLockout = 15 * time.Minute

	// cleanupInterval is how often stale entries are evicted.
	cleanupInterval = 1 * time.Minute
)

// Service enforces a lockout policy on repeated login failures, keyed by
// identifier. Entries are persisted to disk so attempt counts survive a
// process restart; they only reset on a verified success or once the
// lockout window elapses.
type Service struct {
	mu          sync.Mutex
	path        string
	entries     map[string]models.RateLimitEntry
	maxAttempts int
	window      time.Duration
	lockout     time.Duration
	now         func() time.Time
}

// NewService creates a rate limiter storing state inside the provided
// directory. If storageDir is empty, state is kept in memory only.
func NewService(storageDir string, maxAttempts int, window, lockout time.Duration) (*Service, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if lockout <= 0 {
		lockout = DefaultLockout
	}

	svc := &Service{
		entries:     make(map[string]models.RateLimitEntry),
		maxAttempts: maxAttempts,
		window:      window,
		lockout:     lockout,
		now:         time.Now,
	}

	if strings.TrimSpace(storageDir) != "" {
		if err := os.MkdirAll(storageDir, 0o755); err != nil {
			return nil, fmt.Errorf("create ratelimit dir: %w", err)
		}
		svc.path = filepath.Join(storageDir, "login_attempts.json")

		if err := svc.load(); err != nil {
			return nil, err
		}
	}

	go svc.cleanupLoop()

	return svc, nil
}

// IsAllowed reports whether the identifier may attempt a login right now.
func (s *Service) IsAllowed(identifier string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[identifier]
	if !ok {
		return true
	}

	now := s.now()
	if entry.IsLocked(now) {
		return false
	}

	// Lockout elapsed or window rolled over: forget the old failures.
	if entry.LockedUntil != nil || entry.WindowExpired(now, s.window) {
		delete(s.entries, identifier)
		_ = s.saveLocked()
		return true
	}

	return entry.FailureCount < s.maxAttempts
}

// RemainingTime returns how long the identifier must wait before another
// attempt is allowed. Zero means the identifier is not locked out.
func (s *Service) RemainingTime(identifier string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[identifier]
	if !ok || entry.LockedUntil == nil {
		return 0
	}

	remaining := entry.LockedUntil.Sub(s.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RecordFailure counts a failed login attempt against the identifier,
// locking it out once the attempt budget inside the window is exhausted.
func (s *Service) RecordFailure(identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ErrIdentifierRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[identifier]
	if !ok || entry.WindowExpired(now, s.window) {
		entry = models.RateLimitEntry{
			Identifier:  identifier,
			WindowStart: now,
		}
	}

	entry.FailureCount++
	if entry.FailureCount >= s.maxAttempts {
		lockedUntil := now.Add(s.lockout)
		entry.LockedUntil = &lockedUntil
	}

	s.entries[identifier] = entry
	return s.saveLocked()
}

// Reset clears all recorded failures for the identifier. Called on a
// verified successful login; never called on page loads or restarts.
func (s *Service) Reset(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[identifier]; !ok {
		return
	}
	delete(s.entries, identifier)
	_ = s.saveLocked()
}

// Cleanup evicts entries that are neither locked nor inside their attempt
// window, returning how many were removed.
func (s *Service) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for id, entry := range s.entries {
		if entry.Stale(now, s.window) {
			delete(s.entries, id)
			count++
		}
	}
	if count > 0 {
		_ = s.saveLocked()
	}
	return count
}

// cleanupLoop periodically evicts stale entries.
func (s *Service) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		s.Cleanup()
	}
}

// load reads persisted entries, dropping ones that are already stale.
func (s *Service) load() error {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open ratelimit file: %w", err)
	}
	defer file.Close()

	var stored []models.RateLimitEntry
	if err := json.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("decode ratelimit entries: %w", err)
	}

	now := time.Now()
	s.entries = make(map[string]models.RateLimitEntry, len(stored))
	for _, entry := range stored {
		if strings.TrimSpace(entry.Identifier) == "" {
			continue
		}
		if entry.Stale(now, s.window) {
			continue
		}
		s.entries[entry.Identifier] = entry
	}

	return nil
}

// saveLocked writes entries to disk. Must be called with mu held.
func (s *Service) saveLocked() error {
	if s.path == "" {
		return nil
	}

	entries := make([]models.RateLimitEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}

	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create ratelimit temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode ratelimit entries: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close ratelimit temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace ratelimit file: %w", err)
	}

	return nil
}
