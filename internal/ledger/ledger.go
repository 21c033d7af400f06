package ledger

import (
	"context"
	"errors"
	"time"
)

// Entry kinds written by the settlement flow.
const (
	KindDeposit  = "deposit"
	KindEscrow   = "escrow"
	KindReversal = "escrow_reversal"
	KindPayout   = "payout"
	KindRefund   = "refund"
	KindLoss     = "loss"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// Entry is an immutable transaction record appended on every balance
// mutation. Balance is the user's balance after the mutation.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Amount    int64     `json:"amount"`
	Ref       string    `json:"ref,omitempty"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger mutates player balances atomically. Deduct fails with
// ErrInsufficientFunds when the balance cannot cover amount; no partial
// state is left behind in that case.
type Ledger interface {
	Deduct(ctx context.Context, userID string, amount int64, kind, ref string) (int64, error)
	Credit(ctx context.Context, userID string, amount int64, kind, ref string) (int64, error)
	Balance(ctx context.Context, userID string) (int64, error)
	History(ctx context.Context, userID string, limit int) ([]Entry, error)
}
