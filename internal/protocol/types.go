package protocol

// MessageType identifies a wire message
type MessageType string

// Client to server
const (
	TypeLogin             MessageType = "LOGIN"
	TypeRegister          MessageType = "REGISTER"
	TypeLogout            MessageType = "LOGOUT"
	TypeGetPlayers        MessageType = "GET_PLAYERS"
	TypeChallenge         MessageType = "CHALLENGE"
	TypeAcceptChallenge   MessageType = "ACCEPT_CHALLENGE"
	TypeDeclineChallenge  MessageType = "DECLINE_CHALLENGE"
	TypeCardFlip          MessageType = "CARD_FLIP"
	TypeQuitGame          MessageType = "QUIT_GAME"
	TypeRematch           MessageType = "REMATCH"
	TypeGetLeaderboard    MessageType = "GET_LEADERBOARD"
	TypeGetMatchHistory   MessageType = "GET_MATCH_HISTORY"
	TypeOpponentLeftLobby MessageType = "OPPONENT_LEFT_LOBBY"
)

// Server to client
const (
	TypeLoginSuccess      MessageType = "LOGIN_SUCCESS"
	TypeLoginFailed       MessageType = "LOGIN_FAILED"
	TypeRegisterSuccess   MessageType = "REGISTER_SUCCESS"
	TypeRegisterFailed    MessageType = "REGISTER_FAILED"
	TypePlayerList        MessageType = "PLAYER_LIST"
	TypeChallengeReceived MessageType = "CHALLENGE_RECEIVED"
	TypeChallengeDeclined MessageType = "CHALLENGE_DECLINED"
	TypeGameStart         MessageType = "GAME_START"
	TypeGameUpdate        MessageType = "GAME_UPDATE"
	TypeScoreUpdate       MessageType = "SCORE_UPDATE"
	TypeGameEnd           MessageType = "GAME_END"
	TypeOpponentQuit      MessageType = "OPPONENT_QUIT"
	TypeRematchRequest    MessageType = "REMATCH_REQUEST"
	TypeRematchAccepted   MessageType = "REMATCH_ACCEPTED"
	TypeRematchDeclined   MessageType = "REMATCH_DECLINED"
	TypeLeaderboard       MessageType = "LEADERBOARD"
	TypeMatchHistory      MessageType = "MATCH_HISTORY"
	TypeError             MessageType = "ERROR"
)

// Reply texts shared by the server and its tests
const (
	MsgInvalidFormat      = "Invalid message format"
	MsgInvalidCredentials = "Invalid credentials or account banned"
	MsgAccountLoggedIn    = "Account already logged in"
	MsgAlreadyLoggedIn    = "Already logged in"
	MsgRegistered         = "Registration successful"
	MsgUsernameExists     = "Username already exists"
	MsgLoginRequired      = "Please login first"
	MsgPlayerNotAvailable = "Player not available"
	MsgAlreadyInGame      = "Already in a game"
	MsgCannotStartGame    = "Cannot start game"
	MsgPlayerNotFound     = "Player not found"
	MsgRematchPlayerBusy  = "Cannot start rematch - player busy"
	MsgInvalidMove        = "Invalid move"
	MsgInternalError      = "Internal server error"
	MsgServiceUnavailable = "Service temporarily unavailable"
)

// Draw is the winner value of a tied match
const Draw = "DRAW"
