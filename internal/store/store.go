package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("game record not found")

// GameRecord is the durable record of a game: identity, participants, stake,
// serialized position, move list, and result.
type GameRecord struct {
	ID          string
	WhiteID     string
	WhiteName   string
	BlackID     string
	BlackName   string
	GameType    string
	StakeAmount int64
	StakeType   string
	FEN         string
	MovesUCI    []string
	MovesSAN    []string
	Result      string
	WinnerID    string
	StartedAt   time.Time
	EndedAt     time.Time
}

// Store is the persistence boundary for game records. One durable
// UpdateGameState write happens per accepted move.
type Store interface {
	CreateGameRecord(ctx context.Context, rec *GameRecord) error
	UpdateGameState(ctx context.Context, id, fen string, movesUCI, movesSAN []string) error
	UpdateGameResult(ctx context.Context, id, result, winnerID string) error
}
