package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/memorymatch/internal/dependencies/clock"
	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/protocol"
	"github.com/mcoot/memorymatch/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameExists     = errors.New("username already exists")
	ErrUsernameRequired   = errors.New("username is required")
	ErrUsernameTooLong    = fmt.Errorf("username must be at most %d characters", model.MaxUsernameLength)
	ErrUsernameReserved   = errors.New("username is reserved")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", model.MinPasswordLength)
	ErrPasswordTooLong    = fmt.Errorf("password must be at most %d bytes", model.MaxPasswordBytes)
)

// Service registers and authenticates accounts
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
	cost    int

	dummyOnce sync.Once
	dummyHash []byte
}

// Config holds configuration for the auth service
type Config struct {
	// BcryptCost is the work factor for new password hashes
	BcryptCost int `yaml:"bcrypt_cost"`
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		BcryptCost: bcrypt.DefaultCost,
	}
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultConfig().BcryptCost
	}
	return &Service{
		storage: storage,
		clock:   clock,
		logger:  logger.With(slog.String("component", "auth")),
		cost:    cfg.BcryptCost,
	}
}

// NormalizeUsername trims surrounding whitespace from a username
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// Register creates a new account. It does not log the account in.
func (s *Service) Register(ctx context.Context, username, password string) (*model.Account, error) {
	username = NormalizeUsername(username)
	switch {
	case username == "":
		return nil, ErrUsernameRequired
	case utf8.RuneCountInString(username) > model.MaxUsernameLength:
		return nil, ErrUsernameTooLong
	case strings.EqualFold(username, protocol.Draw):
		// GAME_END uses it as the winner of a tied match
		return nil, ErrUsernameReserved
	case len(password) < model.MinPasswordLength:
		return nil, ErrPasswordTooShort
	case len(password) > model.MaxPasswordBytes:
		return nil, ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	account := &model.Account{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
		LastLogin:    now,
	}
	if err := s.storage.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, model.ErrUsernameTaken) {
			return nil, ErrUsernameExists
		}
		return nil, err
	}

	s.logger.Info("account registered",
		slog.String("username", username),
		slog.Int64("account_id", int64(account.ID)))
	return account, nil
}

// Login verifies credentials and returns the account snapshot.
// Unknown usernames, wrong passwords and banned accounts all wrap ErrInvalidCredentials;
// a banned account additionally wraps model.ErrAccountBanned.
func (s *Service) Login(ctx context.Context, username, password string) (*model.Account, error) {
	username = NormalizeUsername(username)

	account, err := s.storage.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			// Spend the same bcrypt work as a real check
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if account.Banned {
		s.logger.Warn("banned account attempted login", slog.String("username", username))
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, model.ErrAccountBanned)
	}

	now := s.clock.Now()
	if err := s.storage.TouchLastLogin(ctx, account.ID, now); err != nil {
		s.logger.Warn("failed to record last login",
			slog.String("username", username),
			slog.String("error", err.Error()))
	} else {
		account.LastLogin = now
	}

	return account, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("memorymatch"), s.cost)
	})
	return s.dummyHash
}
