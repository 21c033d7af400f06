package session

import (
	"errors"
	"time"

	"wagerchess/internal/rules"
)

// Status is the lifecycle state of a session. Transitions are monotonic:
// CREATED -> ACTIVE -> FINISHED | ABANDONED. Terminal states absorb.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusActive    Status = "ACTIVE"
	StatusFinished  Status = "FINISHED"
	StatusAbandoned Status = "ABANDONED"
)

func (s Status) Terminal() bool { return s == StatusFinished || s == StatusAbandoned }

// Result records how a session ended.
type Result string

const (
	ResultCheckmate   Result = "checkmate"
	ResultDraw        Result = "draw"
	ResultResignation Result = "resignation"
	ResultAbandoned   Result = "abandoned"
)

var (
	ErrNotParticipant = errors.New("user is not a participant")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrTerminal       = errors.New("session already ended")
	ErrNotActive      = errors.New("session is not active")
)

// Player is one side of a session, as supplied by the identity boundary.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`
}

// Snapshot is an immutable copy of session state taken under the session
// lock, safe to hand to transports and settlement without further locking.
type Snapshot struct {
	ID          string
	White       Player
	Black       Player
	GameType    string
	StakeAmount int64
	StakeType   string
	FEN         string
	MovesUCI    []string
	MovesSAN    []string
	LastUCI     string
	LastSAN     string
	Turn        rules.Color
	Status      Status
	Result      Result
	WinnerID    string
	CreatedAt   time.Time
	LastMoveAt  time.Time
}

// Participant returns the player record for userID, or false.
func (s Snapshot) Participant(userID string) (Player, bool) {
	switch userID {
	case s.White.ID:
		return s.White, true
	case s.Black.ID:
		return s.Black, true
	}
	return Player{}, false
}

// OpponentOf returns the other side's player record.
func (s Snapshot) OpponentOf(userID string) (Player, bool) {
	switch userID {
	case s.White.ID:
		return s.Black, true
	case s.Black.ID:
		return s.White, true
	}
	return Player{}, false
}
