package protocol

import "github.com/mcoot/memorymatch/internal/model"

// Text carries a single human-readable message (ERROR, LOGIN_FAILED, REGISTER_*)
type Text struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// NewError builds an ERROR message
func NewError(message string) Text {
	return Text{Type: TypeError, Message: message}
}

// NewText builds a message-only reply of the given type
func NewText(t MessageType, message string) Text {
	return Text{Type: t, Message: message}
}

// LoginSuccess is the reply to a successful LOGIN
type LoginSuccess struct {
	Type       MessageType `json:"type"`
	ID         int64       `json:"id"`
	Username   string      `json:"username"`
	TotalScore int         `json:"total_score"`
	Wins       int         `json:"wins"`
	Losses     int         `json:"losses"`
	QuitCount  int         `json:"quit_count"`
}

// NewLoginSuccess builds LOGIN_SUCCESS from the account snapshot
func NewLoginSuccess(a *model.Account) LoginSuccess {
	return LoginSuccess{
		Type:       TypeLoginSuccess,
		ID:         int64(a.ID),
		Username:   a.Username,
		TotalScore: a.TotalScore,
		Wins:       a.Wins,
		Losses:     a.Losses,
		QuitCount:  a.QuitCount,
	}
}

// PlayerInfo is one row of PLAYER_LIST
type PlayerInfo struct {
	Username string `json:"username"`
	InGame   bool   `json:"inGame"`
}

// PlayerList lists every online player
type PlayerList struct {
	Type    MessageType  `json:"type"`
	Players []PlayerInfo `json:"players"`
}

// NewPlayerList builds PLAYER_LIST
func NewPlayerList(players []PlayerInfo) PlayerList {
	if players == nil {
		players = []PlayerInfo{}
	}
	return PlayerList{Type: TypePlayerList, Players: players}
}

// ChallengeReceived notifies a player of an incoming challenge
type ChallengeReceived struct {
	Type       MessageType      `json:"type"`
	From       string           `json:"from"`
	Difficulty model.Difficulty `json:"difficulty"`
}

// NewChallengeReceived builds CHALLENGE_RECEIVED
func NewChallengeReceived(from string, d model.Difficulty) ChallengeReceived {
	return ChallengeReceived{Type: TypeChallengeReceived, From: from, Difficulty: d}
}

// ChallengeDeclined tells the challenger who declined
type ChallengeDeclined struct {
	Type     MessageType `json:"type"`
	Decliner string      `json:"decliner"`
}

// NewChallengeDeclined builds CHALLENGE_DECLINED
func NewChallengeDeclined(decliner string) ChallengeDeclined {
	return ChallengeDeclined{Type: TypeChallengeDeclined, Decliner: decliner}
}

// GameStart opens a match. TimeLimit is in seconds.
type GameStart struct {
	Type       MessageType      `json:"type"`
	RoomID     string           `json:"roomId"`
	Difficulty model.Difficulty `json:"difficulty"`
	CardCount  int              `json:"cardCount"`
	TimeLimit  int              `json:"timeLimit"`
	Opponent   string           `json:"opponent"`
	CardValues []int            `json:"cardValues"`
	Rows       int              `json:"rows"`
	Cols       int              `json:"cols"`
}

// GameUpdate reports the outcome of a flip to the flipping player
type GameUpdate struct {
	Type    MessageType `json:"type"`
	Player  string      `json:"player"`
	Card1   int         `json:"card1"`
	Card2   int         `json:"card2"`
	Value1  int         `json:"value1"`
	Value2  int         `json:"value2"`
	Matched bool        `json:"matched"`
}

// NewScoreUpdate builds SCORE_UPDATE, keyed by username
func NewScoreUpdate(player1 string, score1 int, player2 string, score2 int) map[string]any {
	return map[string]any{
		player1: score1,
		player2: score2,
		"type":  TypeScoreUpdate,
	}
}

// GameEnd closes a match. Winner is a username or Draw.
type GameEnd struct {
	Type         MessageType `json:"type"`
	Winner       string      `json:"winner"`
	Player1      string      `json:"player1"`
	Player2      string      `json:"player2"`
	Player1Score int         `json:"player1Score"`
	Player2Score int         `json:"player2Score"`
	Duration     int         `json:"duration"`
}

// OpponentQuit tells the remaining player who forfeited
type OpponentQuit struct {
	Type    MessageType `json:"type"`
	Quitter string      `json:"quitter"`
}

// NewOpponentQuit builds OPPONENT_QUIT
func NewOpponentQuit(quitter string) OpponentQuit {
	return OpponentQuit{Type: TypeOpponentQuit, Quitter: quitter}
}

// RematchOffer is an incoming rematch request
type RematchOffer struct {
	Type       MessageType      `json:"type"`
	From       string           `json:"from"`
	Difficulty model.Difficulty `json:"difficulty"`
}

// NewRematchOffer builds REMATCH_REQUEST
func NewRematchOffer(from string, d model.Difficulty) RematchOffer {
	return RematchOffer{Type: TypeRematchRequest, From: from, Difficulty: d}
}

// RematchAnswer is REMATCH_ACCEPTED or REMATCH_DECLINED
type RematchAnswer struct {
	Type MessageType `json:"type"`
	From string      `json:"from"`
}

// NewRematchAnswer builds the answer to a rematch offer
func NewRematchAnswer(from string, accepted bool) RematchAnswer {
	t := TypeRematchDeclined
	if accepted {
		t = TypeRematchAccepted
	}
	return RematchAnswer{Type: t, From: from}
}

// Leaderboard carries the top players
type Leaderboard struct {
	Type MessageType              `json:"type"`
	Data []model.LeaderboardEntry `json:"data"`
}

// NewLeaderboard builds LEADERBOARD
func NewLeaderboard(data []model.LeaderboardEntry) Leaderboard {
	if data == nil {
		data = []model.LeaderboardEntry{}
	}
	return Leaderboard{Type: TypeLeaderboard, Data: data}
}

// MatchHistory carries the caller's recent matches
type MatchHistory struct {
	Type MessageType               `json:"type"`
	Data []model.MatchHistoryEntry `json:"data"`
}

// NewMatchHistory builds MATCH_HISTORY
func NewMatchHistory(data []model.MatchHistoryEntry) MatchHistory {
	if data == nil {
		data = []model.MatchHistoryEntry{}
	}
	return MatchHistory{Type: TypeMatchHistory, Data: data}
}

// OpponentLeftLobby tells a former opponent this player left the result screen
type OpponentLeftLobby struct {
	Type     MessageType `json:"type"`
	Opponent string      `json:"opponent"`
}

// NewOpponentLeftLobby builds OPPONENT_LEFT_LOBBY
func NewOpponentLeftLobby(opponent string) OpponentLeftLobby {
	return OpponentLeftLobby{Type: TypeOpponentLeftLobby, Opponent: opponent}
}
