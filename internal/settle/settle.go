package settle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wagerchess/internal/ledger"
	"wagerchess/internal/obslog"
	"wagerchess/internal/session"
	"wagerchess/internal/store"

	"go.uber.org/zap"
)

// ErrInsufficientFunds reports that escrow could not hold both stakes. No
// partial deduction survives this error.
var ErrInsufficientFunds = errors.New("insufficient funds for stake")

// Coordinator bridges session lifecycle events to the economic ledger:
// escrow when a match forms, payout or refund when a session terminates, and
// the durable result record alongside.
type Coordinator struct {
	ledger ledger.Ledger
	store  store.Store

	retries    int
	retryDelay time.Duration
}

func NewCoordinator(l ledger.Ledger, s store.Store) *Coordinator {
	return &Coordinator{ledger: l, store: s, retries: 3, retryDelay: 200 * time.Millisecond}
}

// Escrow deducts the stake from both participants, all or nothing. If the
// second deduction fails the first is reversed before returning, so neither
// player is left with an irrecoverable partial debit.
func (c *Coordinator) Escrow(ctx context.Context, sessionID string, a, b session.Player, stake int64) error {
	if _, err := c.ledger.Deduct(ctx, a.ID, stake, ledger.KindEscrow, sessionID); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return ErrInsufficientFunds
		}
		return fmt.Errorf("escrow %s: %w", a.ID, err)
	}
	if _, err := c.ledger.Deduct(ctx, b.ID, stake, ledger.KindEscrow, sessionID); err != nil {
		if _, rerr := c.ledger.Credit(ctx, a.ID, stake, ledger.KindReversal, sessionID); rerr != nil {
			// A debit with no matching game corrupts the ledger; this must
			// surface loudly, not just fail the match.
			obslog.L().Error("escrow_reversal_failed",
				zap.String("session_id", sessionID),
				zap.String("user_id", a.ID),
				zap.Int64("amount", stake),
				zap.Error(rerr),
			)
			return fmt.Errorf("escrow reversal for %s: %w", a.ID, rerr)
		}
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return ErrInsufficientFunds
		}
		return fmt.Errorf("escrow %s: %w", b.ID, err)
	}
	obslog.L().Info("escrow_held",
		zap.String("session_id", sessionID),
		zap.String("user_a", a.ID),
		zap.String("user_b", b.ID),
		zap.Int64("stake", stake),
	)
	return nil
}

// ReleaseEscrow returns both held stakes when session creation fails after
// escrow succeeded. Failures are escalated; an unreturned stake is a ledger
// corruption.
func (c *Coordinator) ReleaseEscrow(ctx context.Context, sessionID string, a, b session.Player, stake int64) {
	for _, p := range []session.Player{a, b} {
		if _, err := c.ledger.Credit(ctx, p.ID, stake, ledger.KindReversal, sessionID); err != nil {
			obslog.L().Error("escrow_release_failed",
				zap.String("session_id", sessionID),
				zap.String("user_id", p.ID),
				zap.Int64("amount", stake),
				zap.Error(err),
			)
		}
	}
}

// Settle performs the terminal ledger action for a session and records the
// result. Callers guarantee at-most-once invocation per session. Transport
// failures here are retried and escalated rather than swallowed: silent loss
// would leave a balance inconsistent with a recorded game result.
func (c *Coordinator) Settle(ctx context.Context, snap session.Snapshot) error {
	if !snap.Status.Terminal() {
		return fmt.Errorf("settle non-terminal session %s (%s)", snap.ID, snap.Status)
	}

	if err := c.withRetry(ctx, "record_result", snap.ID, func() error {
		return c.store.UpdateGameResult(ctx, snap.ID, string(snap.Result), snap.WinnerID)
	}); err != nil {
		return err
	}

	switch snap.Result {
	case session.ResultDraw:
		if err := c.refund(ctx, snap.ID, snap.White, snap.StakeAmount); err != nil {
			return err
		}
		return c.refund(ctx, snap.ID, snap.Black, snap.StakeAmount)

	case session.ResultCheckmate, session.ResultResignation:
		winner, loser := snap.White, snap.Black
		if snap.WinnerID == snap.Black.ID {
			winner, loser = snap.Black, snap.White
		}
		if err := c.withRetry(ctx, "payout", snap.ID, func() error {
			_, err := c.ledger.Credit(ctx, winner.ID, 2*snap.StakeAmount, ledger.KindPayout, snap.ID)
			return err
		}); err != nil {
			return err
		}
		// Zero-amount entry: funds were already taken at escrow time, the
		// entry just fixes the loss in the transaction history.
		return c.withRetry(ctx, "loss_entry", snap.ID, func() error {
			_, err := c.ledger.Credit(ctx, loser.ID, 0, ledger.KindLoss, snap.ID)
			return err
		})

	case session.ResultAbandoned:
		// Result recorded above; no ledger action for abandoned games.
		return nil

	default:
		return fmt.Errorf("settle %s: unknown result %q", snap.ID, snap.Result)
	}
}

func (c *Coordinator) refund(ctx context.Context, sessionID string, p session.Player, stake int64) error {
	return c.withRetry(ctx, "refund", sessionID, func() error {
		_, err := c.ledger.Credit(ctx, p.ID, stake, ledger.KindRefund, sessionID)
		return err
	})
}

func (c *Coordinator) withRetry(ctx context.Context, op, sessionID string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		obslog.L().Warn("settlement_retry",
			zap.String("op", op),
			zap.String("session_id", sessionID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay * time.Duration(attempt)):
		}
	}
	obslog.L().Error("settlement_failed",
		zap.String("op", op),
		zap.String("session_id", sessionID),
		zap.Error(err),
	)
	return fmt.Errorf("settlement %s for %s: %w", op, sessionID, err)
}
