package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore persists game records in the wager_games table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) CreateGameRecord(ctx context.Context, rec *GameRecord) error {
	if rec == nil {
		return fmt.Errorf("nil game record")
	}
	movesUCI, err := json.Marshal(rec.MovesUCI)
	if err != nil {
		return fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(rec.MovesSAN)
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}

	const q = `INSERT INTO wager_games (
			game_id, white_id, white_name, black_id, black_name,
			game_type, stake_amount, stake_type,
			fen, moves_uci, moves_san, result, winner_id,
			started_at, ended_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10::jsonb,$11::jsonb,$12,$13,$14,$15
		) ON CONFLICT (game_id) DO NOTHING`

	_, err = s.db.ExecContext(ctx, q,
		rec.ID,
		rec.WhiteID, rec.WhiteName,
		rec.BlackID, rec.BlackName,
		rec.GameType, rec.StakeAmount, rec.StakeType,
		rec.FEN, movesUCI, movesSAN,
		rec.Result, nullable(rec.WinnerID),
		rec.StartedAt, nullTime(rec.EndedAt),
	)
	return err
}

func (s *PostgresStore) UpdateGameState(ctx context.Context, id, fen string, movesUCI, movesSAN []string) error {
	rawUCI, err := json.Marshal(movesUCI)
	if err != nil {
		return fmt.Errorf("marshal moves_uci: %w", err)
	}
	rawSAN, err := json.Marshal(movesSAN)
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}
	const q = `UPDATE wager_games
		SET fen=$2, moves_uci=$3::jsonb, moves_san=$4::jsonb, updated_at=now()
		WHERE game_id=$1`
	res, err := s.db.ExecContext(ctx, q, id, fen, rawUCI, rawSAN)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateGameResult(ctx context.Context, id, result, winnerID string) error {
	const q = `UPDATE wager_games
		SET result=$2, winner_id=$3, ended_at=now(), updated_at=now(),
		    pgn=$4
		WHERE game_id=$1`
	pgn, err := s.buildFinalPGN(ctx, id, result, winnerID)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, q, id, result, nullable(winnerID), pgn)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// buildFinalPGN reads the stored record back and renders movetext so the
// result row carries a self-contained game transcript.
func (s *PostgresStore) buildFinalPGN(ctx context.Context, id, result, winnerID string) (string, error) {
	const q = `SELECT white_id, white_name, black_id, black_name, moves_san, started_at
		FROM wager_games WHERE game_id=$1`
	var rec GameRecord
	var rawSAN []byte
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&rec.WhiteID, &rec.WhiteName, &rec.BlackID, &rec.BlackName, &rawSAN, &rec.StartedAt,
	)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if len(rawSAN) > 0 {
		if jerr := json.Unmarshal(rawSAN, &rec.MovesSAN); jerr != nil {
			return "", fmt.Errorf("corrupt moves_san for %s: %w", id, jerr)
		}
	}
	rec.ID = id
	rec.Result = result
	rec.WinnerID = winnerID
	return BuildPGN(&rec), nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
