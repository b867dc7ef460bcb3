package events

import (
	"context"
	"time"

	"github.com/mcoot/memorymatch/internal/model"
)

// Reasons a match can finish
const (
	ReasonCompleted = "completed"
	ReasonTimeout   = "timeout"
	ReasonQuit      = "quit"
)

// MatchFinished is published once for every room that ends
type MatchFinished struct {
	RoomID       string           `json:"room_id"`
	Reason       string           `json:"reason"`
	Difficulty   model.Difficulty `json:"difficulty"`
	Player1      string           `json:"player1"`
	Player2      string           `json:"player2"`
	Winner       string           `json:"winner"`
	Player1Score int              `json:"player1_score"`
	Player2Score int              `json:"player2_score"`
	Duration     int              `json:"duration"`
	FinishedAt   time.Time        `json:"finished_at"`
}

// Publisher delivers match events to an external feed
type Publisher interface {
	PublishMatchFinished(ctx context.Context, event MatchFinished) error
	Close() error
}

// Nop discards every event
type Nop struct{}

// PublishMatchFinished implements Publisher
func (Nop) PublishMatchFinished(context.Context, MatchFinished) error { return nil }

// Close implements Publisher
func (Nop) Close() error { return nil }
