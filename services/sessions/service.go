package sessions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"leadgate/models"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSigningKeyRequired = errors.New("signing key not provided")
)

const (
	// DefaultSessionDuration is the default lifetime of an admin session.
	DefaultSessionDuration = 24 * time.Hour
)

// sessionClaims is the JWT claims shape for issued tokens. Role and the
// opaque payload ride alongside the registered claims; guards interpret
// only the role and timestamps.
type sessionClaims struct {
	jwt.RegisteredClaims
	Role    string            `json:"role"`
	Payload map[string]string `json:"payload,omitempty"`
}

// Service issues and validates signed session tokens. Tokens are HS256
// JWTs; the jti claim is tracked in a persisted server-side store so a
// session can be revoked before its expiry. A token whose signature does
// not verify, or whose jti is unknown, is treated exactly like no session.
type Service struct {
	mu              sync.RWMutex
	path            string
	signingKey      []byte
	active          map[string]models.Session
	sessionDuration time.Duration
}

// NewService creates a sessions service with persistence. storageDir is
// the directory where sessions.json will be stored; if empty, sessions
// are kept in memory only.
func NewService(storageDir string, signingKey []byte, sessionDuration time.Duration) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, ErrSigningKeyRequired
	}
	if sessionDuration <= 0 {
		sessionDuration = DefaultSessionDuration
	}

	svc := &Service{
		signingKey:      signingKey,
		active:          make(map[string]models.Session),
		sessionDuration: sessionDuration,
	}

	if strings.TrimSpace(storageDir) != "" {
		if err := os.MkdirAll(storageDir, 0o755); err != nil {
			return nil, fmt.Errorf("create sessions dir: %w", err)
		}
		svc.path = filepath.Join(storageDir, "sessions.json")

		if err := svc.load(); err != nil {
			return nil, err
		}
	}

	go svc.cleanupLoop()

	return svc, nil
}

// Create issues a new signed session for the given role.
func (s *Service) Create(role models.Role, payload map[string]string) (models.Session, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	expiresAt := now.Add(s.sessionDuration)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:    string(role),
		Payload: payload,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return models.Session{}, fmt.Errorf("sign session token: %w", err)
	}

	session := models.Session{
		ID:        id,
		Token:     token,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
		Payload:   payload,
	}

	s.mu.Lock()
	s.active[id] = session
	if err := s.saveLocked(); err != nil {
		delete(s.active, id)
		s.mu.Unlock()
		return models.Session{}, err
	}
	s.mu.Unlock()

	return session, nil
}

// Validate checks the token's signature, expiry, and revocation status,
// returning the associated session. An expired session is proactively
// cleared so a subsequent check behaves identically to no session.
func (s *Service) Validate(token string) (models.Session, error) {
	claims, err := s.parseClaims(token)
	if err != nil {
		return models.Session{}, err
	}

	s.mu.RLock()
	session, ok := s.active[claims.ID]
	s.mu.RUnlock()

	if !ok {
		return models.Session{}, ErrSessionNotFound
	}

	if session.IsExpired() {
		s.mu.Lock()
		delete(s.active, claims.ID)
		_ = s.saveLocked()
		s.mu.Unlock()
		return models.Session{}, ErrSessionExpired
	}

	return session, nil
}

// Revoke invalidates a session by its token. The token's signature must
// still verify, but an already-expired token can be revoked.
func (s *Service) Revoke(token string) error {
	claims, err := s.parseClaims(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[claims.ID]; !ok {
		return ErrSessionNotFound
	}

	delete(s.active, claims.ID)
	return s.saveLocked()
}

// Refresh replaces a valid session with a new one carrying a fresh
// expiry. The old token is revoked; callers must switch to the returned
// session's token.
func (s *Service) Refresh(token string) (models.Session, error) {
	session, err := s.Validate(token)
	if err != nil {
		return models.Session{}, err
	}

	replacement, err := s.Create(session.Role, session.Payload)
	if err != nil {
		return models.Session{}, err
	}

	s.mu.Lock()
	delete(s.active, session.ID)
	_ = s.saveLocked()
	s.mu.Unlock()

	return replacement, nil
}

// Count returns the number of active sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

// Cleanup removes all expired sessions, returning how many were removed.
func (s *Service) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	now := time.Now()
	for id, session := range s.active {
		if now.After(session.ExpiresAt) {
			delete(s.active, id)
			count++
		}
	}
	if count > 0 {
		_ = s.saveLocked()
	}
	return count
}

// cleanupLoop periodically removes expired sessions.
func (s *Service) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		s.Cleanup()
	}
}

// parseClaims verifies the token signature and extracts its claims.
// Expiry is intentionally not validated here; Validate and Revoke handle
// expiry against the server-side store.
func (s *Service) parseClaims(token string) (*sessionClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" {
		return nil, ErrInvalidToken
	}

	return &claims, nil
}

// load reads sessions from the JSON file on disk, dropping expired ones.
func (s *Service) load() error {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open sessions file: %w", err)
	}
	defer file.Close()

	var stored []models.Session
	if err := json.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("decode sessions: %w", err)
	}

	now := time.Now()
	s.active = make(map[string]models.Session, len(stored))
	for _, session := range stored {
		if strings.TrimSpace(session.ID) == "" {
			continue
		}
		if now.After(session.ExpiresAt) {
			continue
		}
		s.active[session.ID] = session
	}

	return nil
}

// saveLocked writes sessions to the JSON file. Must be called with mu held.
func (s *Service) saveLocked() error {
	if s.path == "" {
		return nil
	}

	sessions := make([]models.Session, 0, len(s.active))
	for _, session := range s.active {
		sessions = append(sessions, session)
	}

	// Write to temp file first, then rename (atomic write)
	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create sessions temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sessions); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode sessions: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync sessions: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close sessions temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace sessions file: %w", err)
	}

	return nil
}
