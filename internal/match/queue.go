package match

import (
	"sync"
	"time"

	"wagerchess/internal/session"
)

// Waiting is one queued player. Entries are owned by the queue until a match
// consumes them; removal of a matched pair is atomic with the pairing
// decision, so a player is never left half-matched.
type Waiting struct {
	Player      session.Player
	GameType    string
	StakeAmount int64
	StakeType   string
	EnqueuedAt  time.Time
}

// Pair is a compatible couple pulled from a queue; A enqueued first.
type Pair struct {
	A *Waiting
	B *Waiting
}

// Result of an enqueue: either an immediate match or a queue position with a
// wait estimate.
type Result struct {
	Matched              *Pair
	Position             int // 1-based
	EstimatedWaitSeconds int
}

// Queue holds per-game-type ordered waiting lists. A user waits in at most
// one queue at a time; re-submission returns the existing position without
// resetting the wait clock.
type Queue struct {
	mu     sync.Mutex
	byType map[string][]*Waiting

	ratingWindow     int
	waitEstimateSecs int
}

func NewQueue(ratingWindow, waitEstimateSeconds int) *Queue {
	if ratingWindow <= 0 {
		ratingWindow = 200
	}
	if waitEstimateSeconds <= 0 {
		waitEstimateSeconds = 30
	}
	return &Queue{
		byType:           make(map[string][]*Waiting),
		ratingWindow:     ratingWindow,
		waitEstimateSecs: waitEstimateSeconds,
	}
}

// Enqueue scans the target queue in insertion order for the first compatible
// opponent: different user, identical stake amount and type, rating within
// the window. First fit, not best fit. On a match both entries are removed
// before returning; otherwise the player is appended.
func (q *Queue) Enqueue(p session.Player, gameType string, stakeAmount int64, stakeType string) Result {
	q.mu.Lock()
	defer q.mu.Unlock()

	if pos, entries, ok := q.positionLocked(p.ID); ok {
		return Result{Position: pos, EstimatedWaitSeconds: entries * q.waitEstimateSecs}
	}

	w := &Waiting{
		Player:      p,
		GameType:    gameType,
		StakeAmount: stakeAmount,
		StakeType:   stakeType,
		EnqueuedAt:  time.Now(),
	}

	list := q.byType[gameType]
	for i, cand := range list {
		if cand.Player.ID == p.ID {
			continue
		}
		if cand.StakeAmount != stakeAmount || cand.StakeType != stakeType {
			continue
		}
		if abs(cand.Player.Rating-p.Rating) > q.ratingWindow {
			continue
		}
		q.byType[gameType] = append(list[:i], list[i+1:]...)
		return Result{Matched: &Pair{A: cand, B: w}}
	}

	q.byType[gameType] = append(list, w)
	n := len(q.byType[gameType])
	return Result{Position: n, EstimatedWaitSeconds: n * q.waitEstimateSecs}
}

// Dequeue removes a waiting player wherever they are queued. Idempotent.
func (q *Queue) Dequeue(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for gt, list := range q.byType {
		for i, w := range list {
			if w.Player.ID == userID {
				q.byType[gt] = append(list[:i], list[i+1:]...)
				return true
			}
		}
	}
	return false
}

// RequeueFront puts a dequeued pair back at the head of its queue, oldest
// entry first, preserving original enqueue times. Used when escrow fails
// after both players were already consumed by a match.
func (q *Queue) RequeueFront(pair *Pair) {
	if pair == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	gt := pair.A.GameType
	q.byType[gt] = append([]*Waiting{pair.A, pair.B}, q.byType[gt]...)
}

// Status reports the 1-based queue position and current wait estimate for a
// waiting user.
func (q *Queue) Status(userID string) (pos, estimatedWaitSeconds int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pos, queueLen, ok := q.positionLocked(userID)
	if !ok {
		return 0, 0, false
	}
	return pos, queueLen * q.waitEstimateSecs, true
}

func (q *Queue) Len(gameType string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byType[gameType])
}

func (q *Queue) positionLocked(userID string) (pos, queueLen int, ok bool) {
	for _, list := range q.byType {
		for i, w := range list {
			if w.Player.ID == userID {
				return i + 1, len(list), true
			}
		}
	}
	return 0, 0, false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
