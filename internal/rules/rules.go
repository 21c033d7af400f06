package rules

import "errors"

// Color identifies a side of the board.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// Outcome reports the terminal condition of a position, if any.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeCheckmate
	OutcomeDraw
)

// ErrIllegalMove is returned when a move notation cannot be applied to the
// current position.
var ErrIllegalMove = errors.New("illegal move")

// MoveResult describes the position after a successfully applied move.
type MoveResult struct {
	UCI     string
	SAN     string
	FEN     string
	Turn    Color // side to move after the move
	Outcome Outcome
	Winner  Color // set only for OutcomeCheckmate
}

// Engine validates and applies moves and detects terminal conditions. The
// position encoding is owned by the engine; callers treat FEN as opaque and
// keep the UCI move list as the authoritative history.
type Engine interface {
	// Apply replays movesUCI from the starting position and applies move
	// (UCI preferred, SAN fallback). Returns ErrIllegalMove for notations
	// the position rejects.
	Apply(movesUCI []string, move string) (*MoveResult, error)

	// StartFEN returns the encoding of the initial position.
	StartFEN() string
}
