package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"wagerchess/internal/arena"
	"wagerchess/internal/identity"
	"wagerchess/internal/msgcat"
	"wagerchess/internal/obslog"
	"wagerchess/internal/session"
	"wagerchess/internal/settle"
	"wagerchess/pkg/wagerdto"

	"go.uber.org/zap"
)

// Server multiplexes websocket clients onto the arena manager. Each
// connection is identified once through the identity boundary, then its
// events are handled in arrival order on the connection's read loop; cross
// connection ordering per session is enforced by the session lock.
type Server struct {
	manager  *arena.Manager
	identity identity.Provider
	cat      *msgcat.Catalog
	hub      *Hub
}

func NewServer(m *arena.Manager, idp identity.Provider, cat *msgcat.Catalog) *Server {
	return &Server{manager: m, identity: idp, cat: cat, hub: NewHub()}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}
	profile, err := s.identity.Profile(r.Context(), userID)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, identity.ErrUnknownUser) {
			status = http.StatusForbidden
		}
		http.Error(w, "identity lookup failed", status)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return
	}

	player := session.Player{ID: profile.UserID, Name: profile.DisplayName, Rating: profile.Rating}
	c := s.hub.Add(player.ID, conn)
	obslog.L().Info("ws_connected", zap.String("user_id", player.ID))

	s.readLoop(r.Context(), c, player)

	// A connection displaced by a newer one closes without abandoning the
	// user's sessions; only the loss of the last connection is a disconnect.
	if s.hub.Remove(c) {
		s.handleDisconnect(player.ID)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	obslog.L().Info("ws_disconnected", zap.String("user_id", player.ID))
}

func (s *Server) readLoop(ctx context.Context, c *client, player session.Player) {
	for {
		var env wagerdto.Envelope
		if err := wsjson.Read(ctx, c.conn, &env); err != nil {
			return
		}
		s.dispatch(ctx, c, player, env)
	}
}

// dispatch recovers every handler error into a structured rejection scoped
// to the requesting connection; nothing escapes to crash the read loop.
func (s *Server) dispatch(ctx context.Context, c *client, player session.Player, env wagerdto.Envelope) {
	payload, err := decodeEnvelope(env)
	if err != nil {
		s.sendError(ctx, c, err)
		return
	}

	switch p := payload.(type) {
	case wagerdto.JoinMatchmaking:
		s.handleJoin(ctx, c, player, p)
	case wagerdto.LeaveMatchmaking:
		s.manager.LeaveQueue(player.ID)
		_ = c.send(ctx, wagerdto.EvtMatchmakingLeft, wagerdto.MatchmakingLeft{})
	case wagerdto.MakeMove:
		s.handleMove(ctx, c, player, p)
	case wagerdto.Resign:
		s.handleResign(ctx, c, player, p)
	}
}

func (s *Server) handleJoin(ctx context.Context, c *client, player session.Player, p wagerdto.JoinMatchmaking) {
	res, err := s.manager.JoinQueue(ctx, player, p.GameType, p.StakeAmount, p.StakeType)
	if err != nil {
		s.sendError(ctx, c, err)
		return
	}

	switch {
	case res.Matched != nil:
		snap := *res.Matched
		for _, id := range participantIDs(snap) {
			s.hub.SendToUser(ctx, id, wagerdto.EvtMatchFound, matchFoundFor(snap, id))
		}

	case res.Failed != nil:
		// Both players are re-queued and both hear about it, whichever step
		// of session start refused.
		code := wagerdto.CodeState
		reason := s.cat.Render("queue.match_failed", nil)
		if errors.Is(res.Failed.Reason, settle.ErrInsufficientFunds) {
			code = wagerdto.CodeEconomic
			reason = s.cat.Render("queue.escrow_failed", nil)
		}
		for _, u := range []session.Player{res.Failed.A, res.Failed.B} {
			s.hub.SendToUser(ctx, u.ID, wagerdto.EvtError, wagerdto.ErrorEvent{
				Code:      code,
				Message:   reason,
				Retryable: true,
			})
			if pos, wait, ok := s.manager.QueueStatus(u.ID); ok {
				s.hub.SendToUser(ctx, u.ID, wagerdto.EvtMatchmakingJoined, wagerdto.MatchmakingJoined{
					Position:             pos,
					EstimatedWaitSeconds: wait,
				})
			}
		}

	default:
		_ = c.send(ctx, wagerdto.EvtMatchmakingJoined, wagerdto.MatchmakingJoined{
			Position:             res.Position,
			EstimatedWaitSeconds: res.EstimatedWaitSeconds,
		})
	}
}

func (s *Server) handleMove(ctx context.Context, c *client, player session.Player, p wagerdto.MakeMove) {
	snap, err := s.manager.PlayMove(ctx, player.ID, p.SessionID, p.Move)
	if err != nil {
		var derr wagerdto.DomainError
		if errors.As(err, &derr) {
			_ = c.send(ctx, wagerdto.EvtMoveError, wagerdto.MoveError{
				SessionID: p.SessionID,
				Code:      derr.Code,
				Reason:    s.reasonFor(derr),
			})
			return
		}
		s.sendError(ctx, c, err)
		return
	}

	s.hub.SendToUsers(ctx, participantIDs(snap), wagerdto.EvtMoveMade, moveMadeFor(snap))
	if snap.Status.Terminal() {
		s.hub.SendToUsers(ctx, participantIDs(snap), wagerdto.EvtGameEnded, gameEndedFor(snap))
	}
}

func (s *Server) handleResign(ctx context.Context, c *client, player session.Player, p wagerdto.Resign) {
	snap, err := s.manager.Resign(ctx, player.ID, p.SessionID)
	if err != nil {
		s.sendError(ctx, c, err)
		return
	}
	s.hub.SendToUsers(ctx, participantIDs(snap), wagerdto.EvtGameEnded, gameEndedFor(snap))
}

// handleDisconnect runs after the read loop exits: the user leaves the
// queue and their active sessions are abandoned immediately.
func (s *Server) handleDisconnect(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, snap := range s.manager.Disconnect(ctx, userID) {
		if opp, ok := snap.OpponentOf(userID); ok {
			s.hub.SendToUser(ctx, opp.ID, wagerdto.EvtPlayerDisconnected, wagerdto.PlayerDisconnected{
				SessionID: snap.ID,
				UserID:    userID,
			})
		}
	}
}

func (s *Server) sendError(ctx context.Context, c *client, err error) {
	var derr wagerdto.DomainError
	if !errors.As(err, &derr) {
		derr = wagerdto.DomainError{Code: wagerdto.CodeState, Message: s.cat.Render("err.internal", nil), Retryable: true}
	}
	_ = c.send(ctx, wagerdto.EvtError, wagerdto.ErrorEvent{
		Code:      derr.Code,
		Message:   s.reasonFor(derr),
		Retryable: derr.Retryable,
	})
}

// reasonFor maps an error code to catalog text so clients get a stable,
// human-readable reason alongside the code.
func (s *Server) reasonFor(derr wagerdto.DomainError) string {
	switch derr.Code {
	case wagerdto.CodeValidation:
		return s.cat.Render("err.validation", map[string]string{"Detail": derr.Message})
	case wagerdto.CodeRuleViolation:
		return s.cat.Render("err.rule_violation", nil)
	case wagerdto.CodeAuthorization:
		if strings.Contains(derr.Message, "turn") {
			return s.cat.Render("err.authorization_turn", nil)
		}
		return s.cat.Render("err.authorization_participant", nil)
	case wagerdto.CodeNotFound:
		return s.cat.Render("err.not_found", nil)
	case wagerdto.CodeEconomic:
		return s.cat.Render("err.economic", nil)
	case wagerdto.CodeState:
		return s.cat.Render("err.state", nil)
	default:
		return derr.Message
	}
}
