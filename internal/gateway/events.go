package gateway

import (
	"encoding/json"
	"strings"

	"wagerchess/internal/session"
	"wagerchess/pkg/wagerdto"
)

// decodeEnvelope validates an inbound frame into its fixed-schema payload.
// Unknown event names and malformed payloads are rejected here, before any
// session logic runs.
func decodeEnvelope(env wagerdto.Envelope) (any, error) {
	switch env.Type {
	case wagerdto.EvtJoinMatchmaking:
		var p wagerdto.JoinMatchmaking
		if err := unmarshalPayload(env.Payload, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.GameType) == "" || strings.TrimSpace(p.StakeType) == "" || p.StakeAmount <= 0 {
			return nil, wagerdto.NewDomainError(wagerdto.CodeValidation, "join_matchmaking requires game_type, stake_type and a positive stake_amount")
		}
		return p, nil

	case wagerdto.EvtLeaveMatchmaking:
		return wagerdto.LeaveMatchmaking{}, nil

	case wagerdto.EvtMakeMove:
		var p wagerdto.MakeMove
		if err := unmarshalPayload(env.Payload, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.SessionID) == "" || strings.TrimSpace(p.Move) == "" {
			return nil, wagerdto.NewDomainError(wagerdto.CodeValidation, "make_move requires session_id and move")
		}
		return p, nil

	case wagerdto.EvtResign:
		var p wagerdto.Resign
		if err := unmarshalPayload(env.Payload, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.SessionID) == "" {
			return nil, wagerdto.NewDomainError(wagerdto.CodeValidation, "resign requires session_id")
		}
		return p, nil

	default:
		return nil, wagerdto.NewDomainError(wagerdto.CodeValidation, "unknown event type: "+env.Type)
	}
}

func unmarshalPayload(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return wagerdto.NewDomainError(wagerdto.CodeValidation, "missing payload")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return wagerdto.NewDomainError(wagerdto.CodeValidation, "malformed payload: "+err.Error())
	}
	return nil
}

func moveMadeFor(snap session.Snapshot) wagerdto.MoveMade {
	return wagerdto.MoveMade{
		SessionID: snap.ID,
		Move:      snap.LastSAN,
		Position:  snap.FEN,
		Turn:      string(snap.Turn),
		Status:    string(snap.Status),
		Moves:     snap.MovesSAN,
	}
}

func gameEndedFor(snap session.Snapshot) wagerdto.GameEnded {
	return wagerdto.GameEnded{
		SessionID: snap.ID,
		Result:    string(snap.Result),
		Winner:    snap.WinnerID,
	}
}

func matchFoundFor(snap session.Snapshot, userID string) wagerdto.MatchFound {
	opp, _ := snap.OpponentOf(userID)
	color := "white"
	if snap.Black.ID == userID {
		color = "black"
	}
	return wagerdto.MatchFound{
		SessionID:   snap.ID,
		Opponent:    wagerdto.Opponent{UserID: opp.ID, DisplayName: opp.Name, Rating: opp.Rating},
		Color:       color,
		GameType:    snap.GameType,
		StakeAmount: snap.StakeAmount,
		StakeType:   snap.StakeType,
	}
}

func participantIDs(snap session.Snapshot) []string {
	return []string{snap.White.ID, snap.Black.ID}
}
