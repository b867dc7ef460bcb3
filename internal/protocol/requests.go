package protocol

import "strings"

// Request is a decoded client message that can check its own required fields
type Request interface {
	Validate() error
}

// Credentials is the body of LOGIN and REGISTER. Empty values are left to
// the auth rules; only absent keys are rejected here.
type Credentials struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
}

func (r *Credentials) Validate() error {
	if r.Username == nil {
		return &MissingFieldError{Field: "username"}
	}
	if r.Password == nil {
		return &MissingFieldError{Field: "password"}
	}
	return nil
}

// ChallengeRequest is the body of CHALLENGE
type ChallengeRequest struct {
	Target     string `json:"target"`
	Difficulty string `json:"difficulty"`
}

func (r *ChallengeRequest) Validate() error {
	return require("target", r.Target)
}

// AcceptChallengeRequest is the body of ACCEPT_CHALLENGE
type AcceptChallengeRequest struct {
	Challenger string `json:"challenger"`
	Difficulty string `json:"difficulty"`
}

func (r *AcceptChallengeRequest) Validate() error {
	return require("challenger", r.Challenger)
}

// DeclineChallengeRequest is the body of DECLINE_CHALLENGE
type DeclineChallengeRequest struct {
	Challenger string `json:"challenger"`
}

func (r *DeclineChallengeRequest) Validate() error {
	return require("challenger", r.Challenger)
}

// CardFlipRequest is the body of CARD_FLIP
type CardFlipRequest struct {
	Card1 *int `json:"card1"`
	Card2 *int `json:"card2"`
}

func (r *CardFlipRequest) Validate() error {
	if r.Card1 == nil {
		return &MissingFieldError{Field: "card1"}
	}
	if r.Card2 == nil {
		return &MissingFieldError{Field: "card2"}
	}
	return nil
}

// RematchRequest is the body of REMATCH. IsRequest marks an offer;
// otherwise the message answers an offer from Target.
type RematchRequest struct {
	Target     string `json:"target"`
	Difficulty string `json:"difficulty"`
	IsRequest  bool   `json:"isRequest"`
	Accept     bool   `json:"accept"`
}

func (r *RematchRequest) Validate() error {
	return require("target", r.Target)
}

// LeftLobbyRequest is the body of OPPONENT_LEFT_LOBBY
type LeftLobbyRequest struct {
	Opponent string `json:"opponent"`
}

func (r *LeftLobbyRequest) Validate() error {
	return require("opponent", r.Opponent)
}

func require(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &MissingFieldError{Field: field}
	}
	return nil
}
