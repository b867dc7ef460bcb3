package model

import "time"

// AccountID uniquely identifies a registered account
type AccountID int64

// Account is a registered player as held by the store
type Account struct {
	ID           AccountID
	Username     string
	PasswordHash string // bcrypt hash
	TotalScore   int
	Wins         int
	Losses       int
	QuitCount    int
	Banned       bool
	CreatedAt    time.Time
	LastLogin    time.Time
}

// Outcome is the result of a finished match from one player's side
type Outcome int

const (
	OutcomeLoss Outcome = iota
	OutcomeWin
	OutcomeDraw
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWin:
		return "WIN"
	case OutcomeDraw:
		return "DRAW"
	default:
		return "LOSS"
	}
}

// MaxQuitsBeforeBan is the quit count at which an account is banned
const MaxQuitsBeforeBan = 3

// MaxUsernameLength bounds registered usernames
const MaxUsernameLength = 50

// MinPasswordLength bounds registered passwords
const MinPasswordLength = 4

// MaxPasswordBytes is the longest password bcrypt accepts
const MaxPasswordBytes = 72
