package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wagerchess/internal/rules"
	"wagerchess/internal/store"
)

// Session is the authoritative state machine for one active game. All
// mutation happens under s.mu, held across the full validate -> apply ->
// persist sequence so interleaved requests for the same session can never
// observe a stale turn.
type Session struct {
	mu sync.Mutex

	id          string
	white       Player
	black       Player
	gameType    string
	stakeAmount int64
	stakeType   string

	fen      string
	movesUCI []string
	movesSAN []string
	turn     rules.Color

	status   Status
	result   Result
	winnerID string
	settled  bool

	createdAt  time.Time
	lastMoveAt time.Time

	engine rules.Engine
	store  store.Store
}

// Params configures a new session. Colors are assigned by the caller before
// construction.
type Params struct {
	ID          string
	White       Player
	Black       Player
	GameType    string
	StakeAmount int64
	StakeType   string
	Engine      rules.Engine
	Store       store.Store
}

func New(p Params) (*Session, error) {
	if p.White.ID == "" || p.Black.ID == "" || p.White.ID == p.Black.ID {
		return nil, fmt.Errorf("invalid participants: %q vs %q", p.White.ID, p.Black.ID)
	}
	if p.Engine == nil || p.Store == nil {
		return nil, fmt.Errorf("session requires engine and store")
	}
	now := time.Now()
	return &Session{
		id:          p.ID,
		white:       p.White,
		black:       p.Black,
		gameType:    p.GameType,
		stakeAmount: p.StakeAmount,
		stakeType:   p.StakeType,
		fen:         p.Engine.StartFEN(),
		movesUCI:    []string{},
		movesSAN:    []string{},
		turn:        rules.White,
		status:      StatusCreated,
		createdAt:   now,
		lastMoveAt:  now,
		engine:      p.Engine,
		store:       p.Store,
	}, nil
}

func (s *Session) ID() string { return s.id }

// Activate moves the session out of its escrow window. The session only
// becomes observable as active after both stakes are held.
func (s *Session) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusCreated {
		return fmt.Errorf("activate from %s", s.status)
	}
	s.status = StatusActive
	return nil
}

// ApplyMove validates and applies one move for userID. The lock is held
// across the engine call and the durable state write; moves for a session
// are therefore applied strictly in arrival order.
func (s *Session) ApplyMove(ctx context.Context, userID, move string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return s.snapshotLocked(), ErrTerminal
	}
	if s.status != StatusActive {
		return s.snapshotLocked(), ErrNotActive
	}
	color, ok := s.colorOfLocked(userID)
	if !ok {
		return s.snapshotLocked(), ErrNotParticipant
	}
	if color != s.turn {
		return s.snapshotLocked(), ErrNotYourTurn
	}

	res, err := s.engine.Apply(s.movesUCI, move)
	if err != nil {
		return s.snapshotLocked(), err
	}

	prevFEN, prevTurn, prevMove := s.fen, s.turn, s.lastMoveAt
	s.movesUCI = append(s.movesUCI, res.UCI)
	s.movesSAN = append(s.movesSAN, res.SAN)
	s.fen = res.FEN
	s.turn = res.Turn
	s.lastMoveAt = time.Now()

	if err := s.store.UpdateGameState(ctx, s.id, s.fen, s.movesUCI, s.movesSAN); err != nil {
		// Revert so memory never runs ahead of the durable record.
		s.movesUCI = s.movesUCI[:len(s.movesUCI)-1]
		s.movesSAN = s.movesSAN[:len(s.movesSAN)-1]
		s.fen, s.turn, s.lastMoveAt = prevFEN, prevTurn, prevMove
		return s.snapshotLocked(), fmt.Errorf("persist move: %w", err)
	}

	switch res.Outcome {
	case rules.OutcomeCheckmate:
		s.status = StatusFinished
		s.result = ResultCheckmate
		if res.Winner == rules.White {
			s.winnerID = s.white.ID
		} else {
			s.winnerID = s.black.ID
		}
	case rules.OutcomeDraw:
		s.status = StatusFinished
		s.result = ResultDraw
	}

	return s.snapshotLocked(), nil
}

// Resign ends the session in favor of userID's opponent.
func (s *Session) Resign(userID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return s.snapshotLocked(), ErrTerminal
	}
	if s.status != StatusActive {
		return s.snapshotLocked(), ErrNotActive
	}
	color, ok := s.colorOfLocked(userID)
	if !ok {
		return s.snapshotLocked(), ErrNotParticipant
	}
	s.status = StatusFinished
	s.result = ResultResignation
	if color == rules.White {
		s.winnerID = s.black.ID
	} else {
		s.winnerID = s.white.ID
	}
	return s.snapshotLocked(), nil
}

// Abandon ends the session immediately after a participant disconnect.
// There is no reconnection grace window.
func (s *Session) Abandon(userID string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return s.snapshotLocked(), ErrTerminal
	}
	if _, ok := s.colorOfLocked(userID); !ok {
		return s.snapshotLocked(), ErrNotParticipant
	}
	s.status = StatusAbandoned
	s.result = ResultAbandoned
	return s.snapshotLocked(), nil
}

// MarkSettled flips the settlement guard; it returns true exactly once per
// session, no matter how many terminal-detection events arrive.
func (s *Session) MarkSettled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled || !s.status.Terminal() {
		return false
	}
	s.settled = true
	return true
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:          s.id,
		White:       s.white,
		Black:       s.black,
		GameType:    s.gameType,
		StakeAmount: s.stakeAmount,
		StakeType:   s.stakeType,
		FEN:         s.fen,
		MovesUCI:    append([]string(nil), s.movesUCI...),
		MovesSAN:    append([]string(nil), s.movesSAN...),
		Turn:        s.turn,
		Status:      s.status,
		Result:      s.result,
		WinnerID:    s.winnerID,
		CreatedAt:   s.createdAt,
		LastMoveAt:  s.lastMoveAt,
	}
	if n := len(snap.MovesUCI); n > 0 {
		snap.LastUCI = snap.MovesUCI[n-1]
		snap.LastSAN = snap.MovesSAN[n-1]
	}
	return snap
}

func (s *Session) colorOfLocked(userID string) (rules.Color, bool) {
	switch userID {
	case s.white.ID:
		return rules.White, true
	case s.black.ID:
		return rules.Black, true
	}
	return "", false
}
