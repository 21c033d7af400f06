package settle

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"wagerchess/internal/ledger"
	"wagerchess/internal/session"
	"wagerchess/internal/store"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *ledger.RedisLedger, *store.MemoryStore) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	bank := ledger.NewRedisLedger(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	st := store.NewMemoryStore()
	c := NewCoordinator(bank, st)
	c.retryDelay = time.Millisecond
	return c, bank, st
}

func fund(t *testing.T, bank *ledger.RedisLedger, userID string, amount int64) {
	t.Helper()
	if _, err := bank.Credit(context.Background(), userID, amount, ledger.KindDeposit, ""); err != nil {
		t.Fatalf("fund %s: %v", userID, err)
	}
}

func terminalSnap(result session.Result, winnerID string) session.Snapshot {
	status := session.StatusFinished
	if result == session.ResultAbandoned {
		status = session.StatusAbandoned
	}
	return session.Snapshot{
		ID:          "game-1",
		White:       session.Player{ID: "w"},
		Black:       session.Player{ID: "b"},
		StakeAmount: 50,
		StakeType:   "coins",
		Status:      status,
		Result:      result,
		WinnerID:    winnerID,
	}
}

func seedRecord(t *testing.T, st *store.MemoryStore) {
	t.Helper()
	err := st.CreateGameRecord(context.Background(), &store.GameRecord{ID: "game-1", WhiteID: "w", BlackID: "b"})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func TestEscrowDeductsBoth(t *testing.T) {
	c, bank, _ := newTestCoordinator(t)
	ctx := context.Background()
	fund(t, bank, "w", 100)
	fund(t, bank, "b", 100)

	if err := c.Escrow(ctx, "game-1", session.Player{ID: "w"}, session.Player{ID: "b"}, 50); err != nil {
		t.Fatalf("Escrow: %v", err)
	}
	if got, _ := bank.Balance(ctx, "w"); got != 50 {
		t.Fatalf("w balance=%d", got)
	}
	if got, _ := bank.Balance(ctx, "b"); got != 50 {
		t.Fatalf("b balance=%d", got)
	}
}

func TestEscrowAllOrNothing(t *testing.T) {
	c, bank, _ := newTestCoordinator(t)
	ctx := context.Background()
	fund(t, bank, "w", 100)
	fund(t, bank, "b", 10) // cannot cover the stake

	err := c.Escrow(ctx, "game-1", session.Player{ID: "w"}, session.Player{ID: "b"}, 50)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	// first-side deduction must be reversed
	if got, _ := bank.Balance(ctx, "w"); got != 100 {
		t.Fatalf("w left partially debited: %d", got)
	}
	entries, _ := bank.History(ctx, "w", 10)
	if len(entries) != 3 || entries[2].Kind != ledger.KindReversal {
		t.Fatalf("expected deposit/escrow/reversal for w, got %+v", entries)
	}
}

func TestSettleDrawRefundsBoth(t *testing.T) {
	c, bank, st := newTestCoordinator(t)
	ctx := context.Background()
	seedRecord(t, st)
	fund(t, bank, "w", 50)
	fund(t, bank, "b", 50)
	if err := c.Escrow(ctx, "game-1", session.Player{ID: "w"}, session.Player{ID: "b"}, 50); err != nil {
		t.Fatalf("Escrow: %v", err)
	}

	if err := c.Settle(ctx, terminalSnap(session.ResultDraw, "")); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if got, _ := bank.Balance(ctx, "w"); got != 50 {
		t.Fatalf("w not refunded: %d", got)
	}
	if got, _ := bank.Balance(ctx, "b"); got != 50 {
		t.Fatalf("b not refunded: %d", got)
	}
	rec, _ := st.Get("game-1")
	if rec.Result != "draw" {
		t.Fatalf("result not recorded: %q", rec.Result)
	}
}

func TestSettleCheckmatePaysWinnerDouble(t *testing.T) {
	c, bank, st := newTestCoordinator(t)
	ctx := context.Background()
	seedRecord(t, st)
	fund(t, bank, "w", 50)
	fund(t, bank, "b", 50)
	if err := c.Escrow(ctx, "game-1", session.Player{ID: "w"}, session.Player{ID: "b"}, 50); err != nil {
		t.Fatalf("Escrow: %v", err)
	}

	if err := c.Settle(ctx, terminalSnap(session.ResultCheckmate, "b")); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if got, _ := bank.Balance(ctx, "b"); got != 100 {
		t.Fatalf("winner balance=%d, want 100", got)
	}
	if got, _ := bank.Balance(ctx, "w"); got != 0 {
		t.Fatalf("loser balance=%d, want 0", got)
	}
	entries, _ := bank.History(ctx, "w", 10)
	last := entries[len(entries)-1]
	if last.Kind != ledger.KindLoss || last.Amount != 0 {
		t.Fatalf("expected zero-amount loss entry, got %+v", last)
	}
	rec, _ := st.Get("game-1")
	if rec.Result != "checkmate" || rec.WinnerID != "b" {
		t.Fatalf("result record: %+v", rec)
	}
}

func TestSettleResignationPaysOutLikeCheckmate(t *testing.T) {
	c, bank, st := newTestCoordinator(t)
	ctx := context.Background()
	seedRecord(t, st)
	fund(t, bank, "w", 50)
	fund(t, bank, "b", 50)
	if err := c.Escrow(ctx, "game-1", session.Player{ID: "w"}, session.Player{ID: "b"}, 50); err != nil {
		t.Fatalf("Escrow: %v", err)
	}

	if err := c.Settle(ctx, terminalSnap(session.ResultResignation, "w")); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if got, _ := bank.Balance(ctx, "w"); got != 100 {
		t.Fatalf("winner balance=%d, want 100", got)
	}
}

func TestSettleAbandonedTouchesNoBalances(t *testing.T) {
	c, bank, st := newTestCoordinator(t)
	ctx := context.Background()
	seedRecord(t, st)
	fund(t, bank, "w", 50)
	fund(t, bank, "b", 50)
	if err := c.Escrow(ctx, "game-1", session.Player{ID: "w"}, session.Player{ID: "b"}, 50); err != nil {
		t.Fatalf("Escrow: %v", err)
	}

	if err := c.Settle(ctx, terminalSnap(session.ResultAbandoned, "")); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if got, _ := bank.Balance(ctx, "w"); got != 0 {
		t.Fatalf("abandoned settle mutated w balance: %d", got)
	}
	if got, _ := bank.Balance(ctx, "b"); got != 0 {
		t.Fatalf("abandoned settle mutated b balance: %d", got)
	}
	rec, _ := st.Get("game-1")
	if rec.Result != "abandoned" {
		t.Fatalf("result not recorded: %q", rec.Result)
	}
}

func TestSettleRejectsNonTerminal(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	snap := terminalSnap(session.ResultDraw, "")
	snap.Status = session.StatusActive
	if err := c.Settle(context.Background(), snap); err == nil {
		t.Fatalf("settling an active session must fail")
	}
}
