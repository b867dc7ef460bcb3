package model

import (
	"math"
	"strings"
	"time"
)

// Difficulty selects the card count and time limit of a match
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// ParseDifficulty is case-insensitive and falls back to MEDIUM
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToUpper(strings.TrimSpace(s))) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// CardCount returns the number of cards on the board (always even)
func (d Difficulty) CardCount() int {
	switch d {
	case DifficultyEasy:
		return 12
	case DifficultyHard:
		return 30
	default:
		return 20
	}
}

// TimeLimit returns how long a match may run before it times out
func (d Difficulty) TimeLimit() time.Duration {
	switch d {
	case DifficultyEasy:
		return 180 * time.Second
	case DifficultyHard:
		return 300 * time.Second
	default:
		return 240 * time.Second
	}
}

// GridShape returns rows and cols for laying out n cards
func GridShape(n int) (rows, cols int) {
	if n <= 0 {
		return 0, 0
	}
	cols = int(math.Ceil(math.Sqrt(float64(n))))
	rows = (n + cols - 1) / cols
	return rows, cols
}
