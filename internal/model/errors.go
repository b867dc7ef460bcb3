package model

import "errors"

// Common errors used across the application
var (
	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrAccountBanned   = errors.New("account is banned")

	// Presence errors
	ErrAlreadyOnline = errors.New("account already online")

	// Room errors
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomEnded      = errors.New("room has already ended")
	ErrInvalidFlip    = errors.New("invalid card flip")
	ErrNotParticipant = errors.New("player is not in this room")
)
