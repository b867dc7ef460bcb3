package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	accounts      map[model.AccountID]*model.Account
	usernameIndex map[string]model.AccountID
	matches       []*model.MatchRecord

	nextAccountID model.AccountID
	nextMatchID   int64
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		accounts:      make(map[model.AccountID]*model.Account),
		usernameIndex: make(map[string]model.AccountID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usernameIndex[account.Username]; exists {
		return model.ErrUsernameTaken
	}
	s.nextAccountID++
	account.ID = s.nextAccountID
	stored := *account
	s.accounts[stored.ID] = &stored
	s.usernameIndex[stored.Username] = stored.ID
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	s.mu.RLock()
	id, ok := s.usernameIndex[username]
	s.mu.RUnlock()
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return s.GetAccount(ctx, id)
}

func (s *Storage) TouchLastLogin(ctx context.Context, id model.AccountID, at time.Time) error {
	return s.mutate(id, func(a *model.Account) {
		a.LastLogin = at
	})
}

// Statistics operations

func (s *Storage) UpdateScore(ctx context.Context, id model.AccountID, delta int, outcome model.Outcome) error {
	return s.mutate(id, func(a *model.Account) {
		a.TotalScore += delta
		switch outcome {
		case model.OutcomeWin:
			a.Wins++
		case model.OutcomeLoss:
			a.Losses++
		}
	})
}

func (s *Storage) IncrementQuitCount(ctx context.Context, id model.AccountID) (int, error) {
	var count int
	err := s.mutate(id, func(a *model.Account) {
		a.QuitCount++
		count = a.QuitCount
	})
	return count, err
}

func (s *Storage) BanAccount(ctx context.Context, id model.AccountID) error {
	return s.mutate(id, func(a *model.Account) {
		a.Banned = true
	})
}

func (s *Storage) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]model.LeaderboardEntry, 0, len(s.accounts))
	for _, a := range s.accounts {
		if a.Banned {
			continue
		}
		entries = append(entries, model.NewLeaderboardEntry(a))
	}
	slices.SortFunc(entries, model.CompareLeaderboard)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Match history operations

func (s *Storage) SaveMatch(ctx context.Context, record *model.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMatchID++
	record.ID = s.nextMatchID
	stored := *record
	s.matches = append(s.matches, &stored)
	return nil
}

func (s *Storage) MatchHistory(ctx context.Context, id model.AccountID, limit int) ([]model.MatchHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var history []model.MatchHistoryEntry
	// Newest first: later saves have higher ids and never earlier timestamps
	for i := len(s.matches) - 1; i >= 0; i-- {
		m := s.matches[i]
		if m.Player1ID != id && m.Player2ID != id {
			continue
		}
		history = append(history, m.HistoryFor(id))
		if limit > 0 && len(history) == limit {
			break
		}
	}
	return history, nil
}

// Lifecycle

func (s *Storage) Ping(ctx context.Context) error {
	return nil
}

func (s *Storage) Close() error {
	return nil
}

func (s *Storage) mutate(id model.AccountID, fn func(a *model.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	fn(account)
	return nil
}
