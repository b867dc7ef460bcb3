package storage

import (
	"context"
	"time"

	"github.com/mcoot/memorymatch/internal/model"
)

// Storage defines the interface for durable account and match persistence.
// Every method is individually atomic; callers never rely on transactions
// spanning more than one call.
type Storage interface {
	// Account operations
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	TouchLastLogin(ctx context.Context, id model.AccountID, at time.Time) error

	// Statistics operations
	UpdateScore(ctx context.Context, id model.AccountID, delta int, outcome model.Outcome) error
	IncrementQuitCount(ctx context.Context, id model.AccountID) (int, error)
	BanAccount(ctx context.Context, id model.AccountID) error
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)

	// Match history operations
	SaveMatch(ctx context.Context, record *model.MatchRecord) error
	MatchHistory(ctx context.Context, id model.AccountID, limit int) ([]model.MatchHistoryEntry, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
