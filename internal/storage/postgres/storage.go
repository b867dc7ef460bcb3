package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/storage"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

const accountColumns = `id, username, password_hash, total_score, wins, losses, quit_count, is_banned, created_at, last_login`

// Storage is a PostgreSQL-backed implementation of the storage interface
type Storage struct {
	pool *pgxpool.Pool
}

// New connects a pool using cfg and verifies it with a ping
func New(ctx context.Context, cfg Config) (*Storage, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Storage{pool: pool}, nil
}

// NewWithPool wraps an existing pool (for testing)
func NewWithPool(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Account operations

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	const q = `
		INSERT INTO players (username, password_hash, total_score, wins, losses, quit_count, is_banned, created_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, q,
		account.Username,
		account.PasswordHash,
		account.TotalScore,
		account.Wins,
		account.Losses,
		account.QuitCount,
		account.Banned,
		account.CreatedAt,
		account.LastLogin,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.ErrUsernameTaken
		}
		return err
	}

	account.ID = model.AccountID(id)
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM players WHERE id = $1`, int64(id))
	return scanAccount(row)
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM players WHERE username = $1`, username)
	return scanAccount(row)
}

func (s *Storage) TouchLastLogin(ctx context.Context, id model.AccountID, at time.Time) error {
	return s.exec(ctx, `UPDATE players SET last_login = $2 WHERE id = $1`, int64(id), at)
}

// Statistics operations

func (s *Storage) UpdateScore(ctx context.Context, id model.AccountID, delta int, outcome model.Outcome) error {
	wins, losses := 0, 0
	switch outcome {
	case model.OutcomeWin:
		wins = 1
	case model.OutcomeLoss:
		losses = 1
	}
	return s.exec(ctx, `
		UPDATE players
		SET total_score = total_score + $2, wins = wins + $3, losses = losses + $4
		WHERE id = $1`,
		int64(id), delta, wins, losses)
}

func (s *Storage) IncrementQuitCount(ctx context.Context, id model.AccountID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`UPDATE players SET quit_count = quit_count + 1 WHERE id = $1 RETURNING quit_count`,
		int64(id)).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, model.ErrAccountNotFound
	}
	return count, err
}

func (s *Storage) BanAccount(ctx context.Context, id model.AccountID) error {
	return s.exec(ctx, `UPDATE players SET is_banned = TRUE WHERE id = $1`, int64(id))
}

func (s *Storage) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	// LIMIT NULL returns every row
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT username, total_score, wins, losses
		FROM players
		WHERE NOT is_banned
		ORDER BY total_score DESC, wins DESC, username ASC
		LIMIT $1`, limitArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.Username, &a.TotalScore, &a.Wins, &a.Losses); err != nil {
			return nil, err
		}
		entries = append(entries, model.NewLeaderboardEntry(&a))
	}
	return entries, rows.Err()
}

// Match history operations

func (s *Storage) SaveMatch(ctx context.Context, record *model.MatchRecord) error {
	var winner *int64
	if record.WinnerID != nil {
		w := int64(*record.WinnerID)
		winner = &w
	}

	return s.pool.QueryRow(ctx, `
		INSERT INTO match_history (player1_id, player2_id, winner_id, difficulty, player1_score, player2_score, duration, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		int64(record.Player1ID),
		int64(record.Player2ID),
		winner,
		string(record.Difficulty),
		record.Player1Score,
		record.Player2Score,
		record.Duration,
		record.CreatedAt,
	).Scan(&record.ID)
}

func (s *Storage) MatchHistory(ctx context.Context, id model.AccountID, limit int) ([]model.MatchHistoryEntry, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
			CASE WHEN m.player1_id = $1 THEN p2.username ELSE p1.username END,
			CASE
				WHEN m.winner_id IS NULL THEN 'DRAW'
				WHEN m.winner_id = $1 THEN 'WIN'
				ELSE 'LOSS'
			END,
			m.difficulty,
			CASE WHEN m.player1_id = $1 THEN m.player1_score ELSE m.player2_score END,
			CASE WHEN m.player1_id = $1 THEN m.player2_score ELSE m.player1_score END,
			m.duration,
			m.created_at
		FROM match_history m
		JOIN players p1 ON m.player1_id = p1.id
		JOIN players p2 ON m.player2_id = p2.id
		WHERE m.player1_id = $1 OR m.player2_id = $1
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $2`, int64(id), limitArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []model.MatchHistoryEntry
	for rows.Next() {
		var (
			e          model.MatchHistoryEntry
			difficulty string
		)
		if err := rows.Scan(&e.Opponent, &e.Result, &difficulty, &e.MyScore, &e.OpponentScore, &e.Duration, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Difficulty = model.Difficulty(difficulty)
		history = append(history, e)
	}
	return history, rows.Err()
}

// Lifecycle

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases every pooled connection
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// exec runs a single-row update and maps "no rows" to ErrAccountNotFound
func (s *Storage) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var (
		a  model.Account
		id int64
	)
	err := row.Scan(&id, &a.Username, &a.PasswordHash, &a.TotalScore, &a.Wins, &a.Losses,
		&a.QuitCount, &a.Banned, &a.CreatedAt, &a.LastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}
	a.ID = model.AccountID(id)
	return &a, nil
}
