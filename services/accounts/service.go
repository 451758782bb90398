package accounts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-password/password"

	"leadgate/models"
	"leadgate/services/credentials"
)

var (
	ErrStorageDirRequired = errors.New("storage directory not provided")
	ErrAccountNotFound    = errors.New("account not found")
)

// generatedPasswordLength is the length of the bootstrap admin password.
const generatedPasswordLength = 20

// Service manages the shared admin account backing the dashboard login.
// The password hash comes from configuration when provided; otherwise a
// random password is generated at first start and logged once.
type Service struct {
	mu       sync.RWMutex
	path     string
	verifier *credentials.Verifier
	account  models.Account
}

// NewService creates an accounts service storing data inside the provided
// directory. configuredHash, when non-empty, is the environment-provided
// bcrypt hash for the admin password and takes precedence over any
// persisted account state.
func NewService(storageDir, configuredHash string, verifier *credentials.Verifier, logger *slog.Logger) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}
	if verifier == nil {
		verifier = credentials.NewVerifier()
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create accounts dir: %w", err)
	}

	svc := &Service{
		path:     filepath.Join(storageDir, "account.json"),
		verifier: verifier,
	}

	if err := svc.load(); err != nil {
		return nil, err
	}

	if err := svc.ensureAdminAccount(configuredHash, logger); err != nil {
		return nil, err
	}

	return svc, nil
}

// Get returns the admin account.
func (s *Service) Get() models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// PasswordHash returns the stored bcrypt hash for the admin password.
func (s *Service) PasswordHash() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account.PasswordHash
}

// HasGeneratedPassword reports whether the account still uses the
// bootstrap-generated password. The dashboard nags until it is changed.
func (s *Service) HasGeneratedPassword() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account.Generated
}

// UpdatePassword replaces the admin password. The new password must meet
// the minimum length policy; length and hashing are enforced by the
// credential verifier.
func (s *Service) UpdatePassword(newPassword string) error {
	hash, err := s.verifier.Hash(strings.TrimSpace(newPassword))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.account
	s.account.PasswordHash = hash
	s.account.Generated = false
	s.account.UpdatedAt = time.Now().UTC()

	if err := s.saveLocked(); err != nil {
		s.account = prev
		return err
	}
	return nil
}

// ensureAdminAccount makes sure an admin account exists. Precedence:
// configured hash > persisted account > freshly generated password.
func (s *Service) ensureAdminAccount(configuredHash string, logger *slog.Logger) error {
	configuredHash = strings.TrimSpace(configuredHash)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	if s.account.ID == "" {
		s.account = models.Account{
			ID:        uuid.NewString(),
			Username:  models.AdminUsername,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	switch {
	case configuredHash != "":
		if s.account.PasswordHash == configuredHash {
			return nil
		}
		s.account.PasswordHash = configuredHash
		s.account.Generated = false
		s.account.UpdatedAt = now

	case s.account.PasswordHash != "":
		return nil

	default:
		plaintext, err := password.Generate(generatedPasswordLength, 4, 0, false, false)
		if err != nil {
			return fmt.Errorf("generate admin password: %w", err)
		}
		hash, err := s.verifier.Hash(plaintext)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		s.account.PasswordHash = hash
		s.account.Generated = true
		s.account.UpdatedAt = now

		// Logged exactly once at bootstrap; change it from the dashboard.
		logger.Warn("no admin password configured, generated one",
			"username", s.account.Username,
			"password", plaintext)
	}

	return s.saveLocked()
}

// load reads the persisted account from disk.
func (s *Service) load() error {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open account file: %w", err)
	}
	defer file.Close()

	var stored models.AccountStorage
	if err := json.NewDecoder(file).Decode(&stored); err != nil {
		return fmt.Errorf("decode account: %w", err)
	}

	s.account = stored.ToAccount()
	return nil
}

// saveLocked writes the account to disk. Must be called with mu held.
func (s *Service) saveLocked() error {
	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create account temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.account.ToStorage()); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode account: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close account temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace account file: %w", err)
	}

	return nil
}
