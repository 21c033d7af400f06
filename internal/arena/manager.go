package arena

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"wagerchess/internal/match"
	"wagerchess/internal/obslog"
	"wagerchess/internal/rules"
	"wagerchess/internal/session"
	"wagerchess/internal/settle"
	"wagerchess/internal/store"
	"wagerchess/pkg/wagerdto"

	"go.uber.org/zap"
)

// Manager orchestrates the whole match flow: queue pairing, escrow, session
// creation, move handling, and terminal settlement. It is the only caller
// that moves a session across lifecycle states.
type Manager struct {
	queue    *match.Queue
	registry *session.Registry
	settler  *settle.Coordinator
	store    store.Store
	engine   rules.Engine

	// coin decides color assignment for a matched pair; injected so tests
	// can pin the outcome.
	coin func() bool

	// gameTypes restricts joinable game types; nil accepts any.
	gameTypes map[string]struct{}
}

type Option func(*Manager)

// WithCoinFlip overrides the color-assignment randomness source.
func WithCoinFlip(f func() bool) Option {
	return func(m *Manager) { m.coin = f }
}

// WithGameTypes limits matchmaking to the named game types. An empty list
// leaves joining unrestricted.
func WithGameTypes(types []string) Option {
	return func(m *Manager) {
		if len(types) == 0 {
			return
		}
		m.gameTypes = make(map[string]struct{}, len(types))
		for _, t := range types {
			m.gameTypes[t] = struct{}{}
		}
	}
}

func NewManager(q *match.Queue, reg *session.Registry, c *settle.Coordinator, st store.Store, eng rules.Engine, opts ...Option) *Manager {
	m := &Manager{
		queue:    q,
		registry: reg,
		settler:  c,
		store:    st,
		engine:   eng,
		coin:     cryptoCoin,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MatchFailure reports a matched pair whose session could not be started,
// whether escrow was refused or the durable record could not be created.
// Both players are back at the front of their queue when this is returned,
// with any held stake released.
type MatchFailure struct {
	A      session.Player
	B      session.Player
	Reason error
}

// JoinResult is the outcome of a queue join: an immediate match, a start
// failure with recovery applied, or a queue position.
type JoinResult struct {
	Matched              *session.Snapshot
	Failed               *MatchFailure
	Position             int
	EstimatedWaitSeconds int
}

// JoinQueue enqueues a player and, on a compatible pairing, runs the full
// match flow: escrow both stakes, assign colors, create the durable record,
// and register the live session.
func (m *Manager) JoinQueue(ctx context.Context, p session.Player, gameType string, stakeAmount int64, stakeType string) (*JoinResult, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, wagerdto.NewDomainError(wagerdto.CodeValidation, "missing user id")
	}
	if strings.TrimSpace(gameType) == "" || strings.TrimSpace(stakeType) == "" || stakeAmount <= 0 {
		return nil, wagerdto.NewDomainError(wagerdto.CodeValidation, "game type, stake type and a positive stake are required")
	}
	if m.gameTypes != nil {
		if _, ok := m.gameTypes[gameType]; !ok {
			return nil, wagerdto.NewDomainError(wagerdto.CodeValidation, "unsupported game type: "+gameType)
		}
	}

	res := m.queue.Enqueue(p, gameType, stakeAmount, stakeType)
	if res.Matched == nil {
		obslog.L().Info("queue_join",
			zap.String("user_id", p.ID),
			zap.String("game_type", gameType),
			zap.Int64("stake", stakeAmount),
			zap.Int("position", res.Position),
		)
		return &JoinResult{Position: res.Position, EstimatedWaitSeconds: res.EstimatedWaitSeconds}, nil
	}

	snap, err := m.startSession(ctx, res.Matched)
	if err != nil {
		var failure *MatchFailure
		if errors.As(err, &failure) {
			return &JoinResult{Failed: failure}, nil
		}
		return nil, err
	}
	return &JoinResult{Matched: snap}, nil
}

func (f *MatchFailure) Error() string {
	return fmt.Sprintf("match start failed for %s vs %s: %v", f.A.ID, f.B.ID, f.Reason)
}

// startSession turns a matched pair into a registered active session. On
// escrow failure the pair is re-queued at the front and both players are
// reported for notification; matched players are never silently dropped.
func (m *Manager) startSession(ctx context.Context, pair *match.Pair) (*session.Snapshot, error) {
	white, black := pair.A.Player, pair.B.Player
	if m.coin() {
		white, black = black, white
	}

	s, err := session.New(session.Params{
		ID:          uuid.NewString(),
		White:       white,
		Black:       black,
		GameType:    pair.A.GameType,
		StakeAmount: pair.A.StakeAmount,
		StakeType:   pair.A.StakeType,
		Engine:      m.engine,
		Store:       m.store,
	})
	if err != nil {
		m.queue.RequeueFront(pair)
		return nil, err
	}

	if err := m.settler.Escrow(ctx, s.ID(), white, black, pair.A.StakeAmount); err != nil {
		m.queue.RequeueFront(pair)
		obslog.L().Warn("match_escrow_failed",
			zap.String("session_id", s.ID()),
			zap.String("white_id", white.ID),
			zap.String("black_id", black.ID),
			zap.Error(err),
		)
		return nil, &MatchFailure{A: pair.A.Player, B: pair.B.Player, Reason: err}
	}

	snap := s.Snapshot()
	rec := &store.GameRecord{
		ID:          snap.ID,
		WhiteID:     white.ID,
		WhiteName:   white.Name,
		BlackID:     black.ID,
		BlackName:   black.Name,
		GameType:    snap.GameType,
		StakeAmount: snap.StakeAmount,
		StakeType:   snap.StakeType,
		FEN:         snap.FEN,
		MovesUCI:    snap.MovesUCI,
		MovesSAN:    snap.MovesSAN,
		StartedAt:   snap.CreatedAt,
	}
	if err := m.store.CreateGameRecord(ctx, rec); err != nil {
		m.settler.ReleaseEscrow(ctx, s.ID(), white, black, snap.StakeAmount)
		m.queue.RequeueFront(pair)
		obslog.L().Warn("match_record_failed",
			zap.String("session_id", s.ID()),
			zap.String("white_id", white.ID),
			zap.String("black_id", black.ID),
			zap.Error(err),
		)
		return nil, &MatchFailure{A: pair.A.Player, B: pair.B.Player, Reason: fmt.Errorf("create game record: %w", err)}
	}

	if err := s.Activate(); err != nil {
		return nil, err
	}
	m.registry.Register(s)

	active := s.Snapshot()
	obslog.L().Info("match_found",
		zap.String("session_id", active.ID),
		zap.String("white_id", white.ID),
		zap.String("black_id", black.ID),
		zap.String("game_type", active.GameType),
		zap.Int64("stake", active.StakeAmount),
	)
	return &active, nil
}

// QueueStatus reports the user's current queue position and wait estimate.
func (m *Manager) QueueStatus(userID string) (position, estimatedWaitSeconds int, ok bool) {
	return m.queue.Status(userID)
}

// LeaveQueue removes the user from matchmaking. No side effects beyond
// queue removal.
func (m *Manager) LeaveQueue(userID string) bool {
	removed := m.queue.Dequeue(userID)
	if removed {
		obslog.L().Info("queue_leave", zap.String("user_id", userID))
	}
	return removed
}

// PlayMove applies a move to a session owned by the registry and settles if
// the move ended the game.
func (m *Manager) PlayMove(ctx context.Context, userID, sessionID, move string) (session.Snapshot, error) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return session.Snapshot{}, wagerdto.NewDomainError(wagerdto.CodeNotFound, "unknown session")
	}
	snap, err := s.ApplyMove(ctx, userID, move)
	if err != nil {
		return snap, mapSessionError(err)
	}
	obslog.L().Info("move_applied",
		zap.String("session_id", snap.ID),
		zap.String("user_id", userID),
		zap.String("uci", snap.LastUCI),
		zap.String("turn", string(snap.Turn)),
		zap.String("status", string(snap.Status)),
	)
	if snap.Status.Terminal() {
		m.finalize(ctx, s, snap)
	}
	return snap, nil
}

// Resign ends the session in favor of the opponent and settles it through
// the same payout path as checkmate.
func (m *Manager) Resign(ctx context.Context, userID, sessionID string) (session.Snapshot, error) {
	s, ok := m.registry.Get(sessionID)
	if !ok {
		return session.Snapshot{}, wagerdto.NewDomainError(wagerdto.CodeNotFound, "unknown session")
	}
	snap, err := s.Resign(userID)
	if err != nil {
		return snap, mapSessionError(err)
	}
	obslog.L().Info("resign",
		zap.String("session_id", snap.ID),
		zap.String("user_id", userID),
		zap.String("winner_id", snap.WinnerID),
	)
	m.finalize(ctx, s, snap)
	return snap, nil
}

// Disconnect handles a dropped connection: leave matchmaking and abandon
// every active session the user participates in, immediately.
func (m *Manager) Disconnect(ctx context.Context, userID string) []session.Snapshot {
	m.queue.Dequeue(userID)

	var abandoned []session.Snapshot
	for _, s := range m.registry.ActiveSessionsFor(userID) {
		snap, err := s.Abandon(userID)
		if err != nil {
			continue
		}
		obslog.L().Info("session_abandoned",
			zap.String("session_id", snap.ID),
			zap.String("user_id", userID),
		)
		m.finalize(ctx, s, snap)
		abandoned = append(abandoned, snap)
	}
	return abandoned
}

// ActiveSessions returns snapshots of the user's live sessions.
func (m *Manager) ActiveSessions(userID string) []session.Snapshot {
	sessions := m.registry.ActiveSessionsFor(userID)
	out := make([]session.Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// finalize settles a terminal session at most once and releases it from the
// registry. Settlement errors are escalated through logs; the session is
// still released so it cannot accept further operations.
func (m *Manager) finalize(ctx context.Context, s *session.Session, snap session.Snapshot) {
	if !s.MarkSettled() {
		return
	}
	if err := m.settler.Settle(ctx, snap); err != nil {
		obslog.L().Error("settle_error",
			zap.String("session_id", snap.ID),
			zap.String("result", string(snap.Result)),
			zap.Error(err),
		)
	}
	m.registry.Release(snap.ID)
}

func mapSessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotParticipant), errors.Is(err, session.ErrNotYourTurn):
		return wagerdto.DomainError{Code: wagerdto.CodeAuthorization, Message: err.Error()}
	case errors.Is(err, rules.ErrIllegalMove):
		return wagerdto.DomainError{Code: wagerdto.CodeRuleViolation, Message: err.Error()}
	case errors.Is(err, session.ErrTerminal), errors.Is(err, session.ErrNotActive):
		return wagerdto.DomainError{Code: wagerdto.CodeState, Message: err.Error()}
	default:
		return wagerdto.DomainError{Code: wagerdto.CodeState, Message: err.Error(), Retryable: true}
	}
}

func cryptoCoin() bool {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	return err == nil && n.Int64() == 0
}
