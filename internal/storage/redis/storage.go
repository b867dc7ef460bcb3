package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/storage"
)

// leaderboardScale packs wins beneath total_score in a single sorted-set score
const leaderboardScale = 1_000_000

// accountHash is the HASH layout of an account
type accountHash struct {
	Username     string `redis:"username"`
	PasswordHash string `redis:"password_hash"`
	TotalScore   int    `redis:"total_score"`
	Wins         int    `redis:"wins"`
	Losses       int    `redis:"losses"`
	QuitCount    int    `redis:"quit_count"`
	Banned       bool   `redis:"banned"`
	CreatedAt    string `redis:"created_at"`
	LastLogin    string `redis:"last_login"`
}

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	seq, err := s.client.Incr(ctx, accountSeqKey()).Result()
	if err != nil {
		return err
	}
	id := model.AccountID(seq)

	claimed, err := s.client.SetNX(ctx, usernameIndexKey(account.Username), seq, 0).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return model.ErrUsernameTaken
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, accountKey(id), map[string]any{
			"username":      account.Username,
			"password_hash": account.PasswordHash,
			"total_score":   account.TotalScore,
			"wins":          account.Wins,
			"losses":        account.Losses,
			"quit_count":    account.QuitCount,
			"banned":        boolField(account.Banned),
			"created_at":    formatTime(account.CreatedAt),
			"last_login":    formatTime(account.LastLogin),
		})
		if !account.Banned {
			pipe.ZAdd(ctx, leaderboardKey(), redis.Z{
				Score:  leaderboardScore(account.TotalScore, account.Wins),
				Member: member(id),
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	account.ID = id
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	cmd := s.client.HGetAll(ctx, accountKey(id))
	if err := cmd.Err(); err != nil {
		return nil, err
	}
	return decodeAccount(id, cmd)
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	// Look up account ID from username index
	idStr, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt username index for %q: %w", username, err)
	}
	return s.GetAccount(ctx, model.AccountID(id))
}

func (s *Storage) TouchLastLogin(ctx context.Context, id model.AccountID, at time.Time) error {
	if err := s.requireAccount(ctx, id); err != nil {
		return err
	}
	return s.client.HSet(ctx, accountKey(id), "last_login", formatTime(at)).Err()
}

// Statistics operations

func (s *Storage) UpdateScore(ctx context.Context, id model.AccountID, delta int, outcome model.Outcome) error {
	banned, err := s.client.HGet(ctx, accountKey(id), "banned").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.ErrAccountNotFound
		}
		return err
	}

	key := accountKey(id)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, "total_score", int64(delta))
		wins := 0
		switch outcome {
		case model.OutcomeWin:
			pipe.HIncrBy(ctx, key, "wins", 1)
			wins = 1
		case model.OutcomeLoss:
			pipe.HIncrBy(ctx, key, "losses", 1)
		}
		// Banned accounts stay off the ranking
		if banned != boolField(true) {
			pipe.ZIncrBy(ctx, leaderboardKey(), leaderboardScore(delta, wins), member(id))
		}
		return nil
	})
	return err
}

func (s *Storage) IncrementQuitCount(ctx context.Context, id model.AccountID) (int, error) {
	if err := s.requireAccount(ctx, id); err != nil {
		return 0, err
	}
	count, err := s.client.HIncrBy(ctx, accountKey(id), "quit_count", 1).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *Storage) BanAccount(ctx context.Context, id model.AccountID) error {
	if err := s.requireAccount(ctx, id); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, accountKey(id), "banned", boolField(true))
		pipe.ZRem(ctx, leaderboardKey(), member(id))
		return nil
	})
	return err
}

func (s *Storage) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ranked, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey(), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	members := make([]string, 0, len(ranked))
	seen := make(map[string]bool, len(ranked))
	for _, z := range ranked {
		m := fmt.Sprint(z.Member)
		members = append(members, m)
		seen[m] = true
	}

	// Pull in members tied with the last row so the username tie-break is exact
	if limit > 0 && len(ranked) == limit {
		last := strconv.FormatFloat(ranked[len(ranked)-1].Score, 'f', -1, 64)
		ties, err := s.client.ZRangeByScore(ctx, leaderboardKey(), &redis.ZRangeBy{Min: last, Max: last}).Result()
		if err != nil {
			return nil, err
		}
		for _, m := range ties {
			if !seen[m] {
				members = append(members, m)
				seen[m] = true
			}
		}
	}

	accounts, err := s.loadAccounts(ctx, members)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LeaderboardEntry, 0, len(accounts))
	for _, a := range accounts {
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
	id, err := s.client.Incr(ctx, matchSeqKey()).Result()
	if err != nil {
		return err
	}
	record.ID = id

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, matchKey(id), data, 0)
		for _, player := range []model.AccountID{record.Player1ID, record.Player2ID} {
			listKey := matchesForAccountKey(player)
			pipe.LPush(ctx, listKey, id)
			if s.cfg.HistoryLength > 0 {
				pipe.LTrim(ctx, listKey, 0, int64(s.cfg.HistoryLength-1))
			}
		}
		return nil
	})
	return err
}

func (s *Storage) MatchHistory(ctx context.Context, id model.AccountID, limit int) ([]model.MatchHistoryEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	matchIDs, err := s.client.LRange(ctx, matchesForAccountKey(id), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(matchIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, len(matchIDs))
	for i, raw := range matchIDs {
		matchID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt match index for account %d: %w", id, err)
		}
		keys[i] = matchKey(matchID)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	history := make([]model.MatchHistoryEntry, 0, len(values))
	for _, v := range values {
		data, ok := v.(string)
		if !ok {
			continue
		}
		var record model.MatchRecord
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, err
		}
		history = append(history, record.HistoryFor(id))
	}
	return history, nil
}

// Lifecycle

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) requireAccount(ctx context.Context, id model.AccountID) error {
	n, err := s.client.Exists(ctx, accountKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

func (s *Storage) loadAccounts(ctx context.Context, members []string) ([]*model.Account, error) {
	if len(members) == 0 {
		return nil, nil
	}

	ids := make([]model.AccountID, len(members))
	cmds := make([]*redis.MapStringStringCmd, len(members))
	pipe := s.client.Pipeline()
	for i, m := range members {
		raw, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt leaderboard member %q: %w", m, err)
		}
		ids[i] = model.AccountID(raw)
		cmds[i] = pipe.HGetAll(ctx, accountKey(ids[i]))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	accounts := make([]*model.Account, 0, len(members))
	for i, cmd := range cmds {
		account, err := decodeAccount(ids[i], cmd)
		if errors.Is(err, model.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func decodeAccount(id model.AccountID, cmd *redis.MapStringStringCmd) (*model.Account, error) {
	if len(cmd.Val()) == 0 {
		return nil, model.ErrAccountNotFound
	}

	var h accountHash
	if err := cmd.Scan(&h); err != nil {
		return nil, err
	}

	createdAt, err := parseTime(h.CreatedAt)
	if err != nil {
		return nil, err
	}
	lastLogin, err := parseTime(h.LastLogin)
	if err != nil {
		return nil, err
	}

	return &model.Account{
		ID:           id,
		Username:     h.Username,
		PasswordHash: h.PasswordHash,
		TotalScore:   h.TotalScore,
		Wins:         h.Wins,
		Losses:       h.Losses,
		QuitCount:    h.QuitCount,
		Banned:       h.Banned,
		CreatedAt:    createdAt,
		LastLogin:    lastLogin,
	}, nil
}

func member(id model.AccountID) string {
	return strconv.FormatInt(int64(id), 10)
}

func leaderboardScore(totalScore, wins int) float64 {
	return float64(totalScore)*leaderboardScale + float64(wins)
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
