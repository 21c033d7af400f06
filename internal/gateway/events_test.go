package gateway

import (
	"encoding/json"
	"errors"
	"testing"

	"wagerchess/internal/session"
	"wagerchess/pkg/wagerdto"
)

func mustValidationErr(t *testing.T, err error) {
	t.Helper()
	var derr wagerdto.DomainError
	if !errors.As(err, &derr) || derr.Code != wagerdto.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJoinMatchmaking(t *testing.T) {
	env := wagerdto.Envelope{
		Type:    wagerdto.EvtJoinMatchmaking,
		Payload: json.RawMessage(`{"game_type":"ladder","stake_amount":50,"stake_type":"coins"}`),
	}
	got, err := decodeEnvelope(env)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	p, ok := got.(wagerdto.JoinMatchmaking)
	if !ok {
		t.Fatalf("wrong payload type %T", got)
	}
	if p.GameType != "ladder" || p.StakeAmount != 50 || p.StakeType != "coins" {
		t.Fatalf("payload mismatch: %+v", p)
	}
}

func TestDecodeJoinMatchmakingRejectsZeroStake(t *testing.T) {
	env := wagerdto.Envelope{
		Type:    wagerdto.EvtJoinMatchmaking,
		Payload: json.RawMessage(`{"game_type":"ladder","stake_amount":0,"stake_type":"coins"}`),
	}
	_, err := decodeEnvelope(env)
	mustValidationErr(t, err)
}

func TestDecodeMakeMove(t *testing.T) {
	env := wagerdto.Envelope{
		Type:    wagerdto.EvtMakeMove,
		Payload: json.RawMessage(`{"session_id":"s1","move":"e2e4"}`),
	}
	got, err := decodeEnvelope(env)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	p := got.(wagerdto.MakeMove)
	if p.SessionID != "s1" || p.Move != "e2e4" {
		t.Fatalf("payload mismatch: %+v", p)
	}
}

func TestDecodeMakeMoveRequiresFields(t *testing.T) {
	env := wagerdto.Envelope{
		Type:    wagerdto.EvtMakeMove,
		Payload: json.RawMessage(`{"session_id":"s1"}`),
	}
	_, err := decodeEnvelope(env)
	mustValidationErr(t, err)
}

func TestDecodeResignRequiresSession(t *testing.T) {
	env := wagerdto.Envelope{
		Type:    wagerdto.EvtResign,
		Payload: json.RawMessage(`{}`),
	}
	_, err := decodeEnvelope(env)
	mustValidationErr(t, err)
}

func TestDecodeUnknownEvent(t *testing.T) {
	_, err := decodeEnvelope(wagerdto.Envelope{Type: "castle_now"})
	mustValidationErr(t, err)
}

func TestDecodeMalformedPayload(t *testing.T) {
	env := wagerdto.Envelope{
		Type:    wagerdto.EvtMakeMove,
		Payload: json.RawMessage(`{"session_id":`),
	}
	_, err := decodeEnvelope(env)
	mustValidationErr(t, err)

	_, err = decodeEnvelope(wagerdto.Envelope{Type: wagerdto.EvtMakeMove})
	mustValidationErr(t, err)
}

func TestMatchFoundForAssignsPerspective(t *testing.T) {
	snap := session.Snapshot{
		ID:          "s1",
		White:       session.Player{ID: "a", Name: "Alice", Rating: 1500},
		Black:       session.Player{ID: "b", Name: "Bob", Rating: 1600},
		GameType:    "ladder",
		StakeAmount: 50,
		StakeType:   "coins",
	}
	mfA := matchFoundFor(snap, "a")
	if mfA.Color != "white" || mfA.Opponent.UserID != "b" || mfA.Opponent.Rating != 1600 {
		t.Fatalf("white perspective: %+v", mfA)
	}
	mfB := matchFoundFor(snap, "b")
	if mfB.Color != "black" || mfB.Opponent.UserID != "a" {
		t.Fatalf("black perspective: %+v", mfB)
	}
}
