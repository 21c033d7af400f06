package wagerdto

import "encoding/json"

// Event names exchanged over the realtime transport. Inbound events arrive
// inside an Envelope; outbound events are written with the same framing.
const (
	EvtJoinMatchmaking    = "join_matchmaking"
	EvtLeaveMatchmaking   = "leave_matchmaking"
	EvtMakeMove           = "make_move"
	EvtResign             = "resign"
	EvtMatchmakingJoined  = "matchmaking_joined"
	EvtMatchmakingLeft    = "matchmaking_left"
	EvtMatchFound         = "match_found"
	EvtMoveMade           = "move_made"
	EvtMoveError          = "move_error"
	EvtGameEnded          = "game_ended"
	EvtPlayerDisconnected = "player_disconnected"
	EvtError              = "error"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound payloads. Each event name has exactly one schema, validated at the
// gateway boundary before any session logic runs.

type JoinMatchmaking struct {
	GameType    string `json:"game_type"`
	StakeAmount int64  `json:"stake_amount"`
	StakeType   string `json:"stake_type"`
}

type LeaveMatchmaking struct{}

type MakeMove struct {
	SessionID string `json:"session_id"`
	Move      string `json:"move"`
}

type Resign struct {
	SessionID string `json:"session_id"`
}

// Outbound payloads.

type Opponent struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Rating      int    `json:"rating"`
}

type MatchmakingJoined struct {
	Position             int `json:"position"`
	EstimatedWaitSeconds int `json:"estimated_wait_seconds"`
}

type MatchmakingLeft struct{}

type MatchFound struct {
	SessionID   string   `json:"session_id"`
	Opponent    Opponent `json:"opponent"`
	Color       string   `json:"color"`
	GameType    string   `json:"game_type"`
	StakeAmount int64    `json:"stake_amount"`
	StakeType   string   `json:"stake_type"`
}

type MoveMade struct {
	SessionID string   `json:"session_id"`
	Move      string   `json:"move"`
	Position  string   `json:"position"`
	Turn      string   `json:"turn"`
	Status    string   `json:"status"`
	Moves     []string `json:"moves"`
}

type MoveError struct {
	SessionID string `json:"session_id,omitempty"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
}

type GameEnded struct {
	SessionID string `json:"session_id"`
	Result    string `json:"result"`
	Winner    string `json:"winner,omitempty"`
}

type PlayerDisconnected struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type ErrorEvent struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}
