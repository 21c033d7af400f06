package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"wagerchess/internal/rules"
	"wagerchess/internal/store"
)

func newTestSession(t *testing.T) (*Session, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	s, err := New(Params{
		ID:          "game-1",
		White:       Player{ID: "w", Name: "White", Rating: 1500},
		Black:       Player{ID: "b", Name: "Black", Rating: 1550},
		GameType:    "ladder",
		StakeAmount: 50,
		StakeType:   "coins",
		Engine:      rules.NewChessEngine(),
		Store:       st,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	snap := s.Snapshot()
	err = st.CreateGameRecord(context.Background(), &store.GameRecord{
		ID: snap.ID, WhiteID: "w", BlackID: "b", FEN: snap.FEN,
	})
	if err != nil {
		t.Fatalf("CreateGameRecord: %v", err)
	}
	if err := s.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	return s, st
}

func TestNewRejectsInvalidParticipants(t *testing.T) {
	_, err := New(Params{
		White:  Player{ID: "u"},
		Black:  Player{ID: "u"},
		Engine: rules.NewChessEngine(),
		Store:  store.NewMemoryStore(),
	})
	if err == nil {
		t.Fatalf("same user on both sides must be rejected")
	}
}

func TestApplyMoveAlternatesTurn(t *testing.T) {
	s, st := newTestSession(t)
	ctx := context.Background()

	snap, err := s.ApplyMove(ctx, "w", "e2e4")
	if err != nil {
		t.Fatalf("white move: %v", err)
	}
	if snap.Turn != rules.Black || len(snap.MovesUCI) != 1 {
		t.Fatalf("after white move: turn=%s len=%d", snap.Turn, len(snap.MovesUCI))
	}

	snap, err = s.ApplyMove(ctx, "b", "e7e5")
	if err != nil {
		t.Fatalf("black move: %v", err)
	}
	if snap.Turn != rules.White || len(snap.MovesUCI) != 2 {
		t.Fatalf("after black move: turn=%s len=%d", snap.Turn, len(snap.MovesUCI))
	}

	rec, ok := st.Get("game-1")
	if !ok || len(rec.MovesUCI) != 2 {
		t.Fatalf("expected 2 persisted moves, got %d", len(rec.MovesUCI))
	}
}

func TestOutOfTurnMoveRejected(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()

	snap, err := s.ApplyMove(ctx, "b", "e7e5")
	if !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if len(snap.MovesUCI) != 0 {
		t.Fatalf("rejected move mutated history")
	}
}

func TestNonParticipantRejected(t *testing.T) {
	s, _ := newTestSession(t)
	if _, err := s.ApplyMove(context.Background(), "stranger", "e2e4"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestIllegalMoveRejected(t *testing.T) {
	s, _ := newTestSession(t)
	snap, err := s.ApplyMove(context.Background(), "w", "e2e5")
	if !errors.Is(err, rules.ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if len(snap.MovesUCI) != 0 {
		t.Fatalf("illegal move mutated history")
	}
}

func TestCheckmateFinishesSession(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()

	moves := []struct{ user, uci string }{
		{"w", "f2f3"}, {"b", "e7e5"}, {"w", "g2g4"}, {"b", "d8h4"},
	}
	var snap Snapshot
	var err error
	for _, m := range moves {
		if snap, err = s.ApplyMove(ctx, m.user, m.uci); err != nil {
			t.Fatalf("move %s: %v", m.uci, err)
		}
	}
	if snap.Status != StatusFinished || snap.Result != ResultCheckmate {
		t.Fatalf("expected finished by checkmate, got %s/%s", snap.Status, snap.Result)
	}
	if snap.WinnerID != "b" {
		t.Fatalf("black should win, got %q", snap.WinnerID)
	}

	if _, err := s.ApplyMove(ctx, "w", "a2a3"); !errors.Is(err, ErrTerminal) {
		t.Fatalf("terminal session accepted a move: %v", err)
	}
}

func TestResign(t *testing.T) {
	s, _ := newTestSession(t)
	snap, err := s.Resign("w")
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if snap.Status != StatusFinished || snap.Result != ResultResignation || snap.WinnerID != "b" {
		t.Fatalf("unexpected resignation outcome: %+v", snap)
	}
	if _, err := s.Resign("b"); !errors.Is(err, ErrTerminal) {
		t.Fatalf("double resign should fail with ErrTerminal, got %v", err)
	}
}

func TestAbandon(t *testing.T) {
	s, _ := newTestSession(t)
	snap, err := s.Abandon("b")
	if err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if snap.Status != StatusAbandoned || snap.Result != ResultAbandoned || snap.WinnerID != "" {
		t.Fatalf("unexpected abandon outcome: %+v", snap)
	}
}

func TestMarkSettledOnce(t *testing.T) {
	s, _ := newTestSession(t)
	if s.MarkSettled() {
		t.Fatalf("non-terminal session must not settle")
	}
	if _, err := s.Resign("w"); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if !s.MarkSettled() {
		t.Fatalf("first settle mark should succeed")
	}
	if s.MarkSettled() {
		t.Fatalf("second settle mark should fail")
	}
}

type failStore struct{ store.Store }

func (f failStore) UpdateGameState(ctx context.Context, id, fen string, movesUCI, movesSAN []string) error {
	return fmt.Errorf("store down")
}

func TestPersistFailureRevertsMove(t *testing.T) {
	st := store.NewMemoryStore()
	s, err := New(Params{
		ID:     "game-2",
		White:  Player{ID: "w"},
		Black:  Player{ID: "b"},
		Engine: rules.NewChessEngine(),
		Store:  failStore{st},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if _, err := s.ApplyMove(context.Background(), "w", "e2e4"); err == nil {
		t.Fatalf("expected persist failure")
	}
	snap := s.Snapshot()
	if len(snap.MovesUCI) != 0 || snap.Turn != rules.White {
		t.Fatalf("failed persist left session mutated: %+v", snap)
	}
}
