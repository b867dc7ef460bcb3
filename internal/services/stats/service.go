package stats

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/memorymatch/internal/events"
	"github.com/mcoot/memorymatch/internal/model"
	"github.com/mcoot/memorymatch/internal/storage"
)

const (
	// LeaderboardSize is the number of rows returned by Leaderboard
	LeaderboardSize = 10
	// HistorySize is the number of rows returned by MatchHistory
	HistorySize = 20
)

// MatchResult is a finished room as reported by the game engine
type MatchResult struct {
	RoomID string
	Reason string
	Record model.MatchRecord
}

// Config holds configuration for the stats service
type Config struct {
	// WriteTimeout bounds the store writes made for one finished match
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DefaultConfig returns default stats configuration
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 5 * time.Second,
	}
}

// Service records match outcomes and serves the derived statistics.
// Writes are best-effort: failures are logged and never returned to the game flow.
type Service struct {
	storage   storage.Storage
	publisher events.Publisher
	cfg       Config
	logger    *slog.Logger
}

// New creates a new stats Service
func New(storage storage.Storage, publisher events.Publisher, cfg Config, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Service{
		storage:   storage,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "stats")),
	}
}

// RecordResult applies a completed or timed-out match: scores and win/loss
// counters for both players, the match record and the finished event
func (s *Service) RecordResult(ctx context.Context, result MatchResult) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	s.applyScores(ctx, result)
	s.saveAndPublish(ctx, result)
}

// RecordQuit applies a forfeited match. The record must already carry the
// awarded scores with the opponent as winner. The quitter's quit counter is
// incremented and the account is banned once it reaches the limit.
func (s *Service) RecordQuit(ctx context.Context, result MatchResult, quitter model.AccountID) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	s.applyScores(ctx, result)

	logger := s.logger.With(
		slog.String("room_id", result.RoomID),
		slog.Int64("account_id", int64(quitter)))

	count, err := s.storage.IncrementQuitCount(ctx, quitter)
	if err != nil {
		logger.Error("failed to increment quit count", slog.String("error", err.Error()))
	} else {
		logger.Info("quit recorded", slog.Int("quit_count", count))
		if count >= model.MaxQuitsBeforeBan {
			if err := s.storage.BanAccount(ctx, quitter); err != nil {
				logger.Error("failed to ban account", slog.String("error", err.Error()))
			} else {
				logger.Warn("account banned", slog.Int("quit_count", count))
			}
		}
	}

	s.saveAndPublish(ctx, result)
}

// Leaderboard returns the top players
func (s *Service) Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	entries, err := s.storage.Leaderboard(ctx, LeaderboardSize)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	return entries, nil
}

// MatchHistory returns the most recent matches for an account, newest first
func (s *Service) MatchHistory(ctx context.Context, id model.AccountID) ([]model.MatchHistoryEntry, error) {
	history, err := s.storage.MatchHistory(ctx, id, HistorySize)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []model.MatchHistoryEntry{}
	}
	return history, nil
}

func (s *Service) applyScores(ctx context.Context, result MatchResult) {
	r := &result.Record
	s.updateScore(ctx, result.RoomID, r.Player1ID, r.Player1Score, r.ResultFor(r.Player1ID))
	s.updateScore(ctx, result.RoomID, r.Player2ID, r.Player2Score, r.ResultFor(r.Player2ID))
}

func (s *Service) updateScore(ctx context.Context, roomID string, id model.AccountID, delta int, outcome model.Outcome) {
	if err := s.storage.UpdateScore(ctx, id, delta, outcome); err != nil {
		s.logger.Error("failed to update score",
			slog.String("room_id", roomID),
			slog.Int64("account_id", int64(id)),
			slog.String("outcome", outcome.String()),
			slog.String("error", err.Error()))
	}
}

func (s *Service) saveAndPublish(ctx context.Context, result MatchResult) {
	record := result.Record
	if err := s.storage.SaveMatch(ctx, &record); err != nil {
		s.logger.Error("failed to save match",
			slog.String("room_id", result.RoomID),
			slog.String("error", err.Error()))
	}

	if err := s.publisher.PublishMatchFinished(ctx, finishedEvent(result)); err != nil {
		s.logger.Warn("failed to publish match event",
			slog.String("room_id", result.RoomID),
			slog.String("error", err.Error()))
	}
}

func finishedEvent(result MatchResult) events.MatchFinished {
	r := result.Record
	winner := "DRAW"
	if r.WinnerID != nil {
		if *r.WinnerID == r.Player1ID {
			winner = r.Player1Name
		} else {
			winner = r.Player2Name
		}
	}
	return events.MatchFinished{
		RoomID:       result.RoomID,
		Reason:       result.Reason,
		Difficulty:   r.Difficulty,
		Player1:      r.Player1Name,
		Player2:      r.Player2Name,
		Winner:       winner,
		Player1Score: r.Player1Score,
		Player2Score: r.Player2Score,
		Duration:     r.Duration,
		FinishedAt:   r.CreatedAt,
	}
}
