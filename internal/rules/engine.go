package rules

import (
	"errors"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// ChessEngine implements Engine on top of corentings/chess.
type ChessEngine struct{}

func NewChessEngine() *ChessEngine { return &ChessEngine{} }

func (e *ChessEngine) StartFEN() string {
	return nchess.NewGame().FEN()
}

func (e *ChessEngine) Apply(movesUCI []string, move string) (*MoveResult, error) {
	game := reconstruct(movesUCI)
	if game == nil {
		return nil, errors.New("corrupt move history")
	}
	pos := game.Position()

	raw := strings.TrimSpace(move)
	if raw == "" {
		return nil, ErrIllegalMove
	}

	res := &MoveResult{}
	uci := strings.ToLower(raw)
	if mv, derr := (nchess.UCINotation{}).Decode(pos, uci); derr == nil {
		// Decode only parses the notation; legality is checked by Move.
		if err := game.Move(mv, nil); err != nil {
			return nil, ErrIllegalMove
		}
		res.UCI = uci
		res.SAN = nchess.AlgebraicNotation{}.Encode(pos, mv)
	} else {
		if err := game.PushNotationMove(raw, nchess.AlgebraicNotation{}, nil); err != nil {
			return nil, ErrIllegalMove
		}
		last := lastMove(game)
		if last == nil {
			return nil, ErrIllegalMove
		}
		res.SAN = nchess.AlgebraicNotation{}.Encode(pos, last)
		res.UCI = last.String()
	}

	res.FEN = game.FEN()
	res.Turn = colorFrom(game.Position().Turn())

	switch game.Outcome() {
	case nchess.WhiteWon:
		res.Outcome = OutcomeCheckmate
		res.Winner = White
	case nchess.BlackWon:
		res.Outcome = OutcomeCheckmate
		res.Winner = Black
	case nchess.Draw:
		res.Outcome = OutcomeDraw
	}
	return res, nil
}

// reconstruct replays the stored UCI moves from the start position. The FEN
// kept on a session is presentational; replaying it here could double-apply
// moves.
func reconstruct(moves []string) *nchess.Game {
	game := nchess.NewGame()
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil
		}
	}
	return game
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}
