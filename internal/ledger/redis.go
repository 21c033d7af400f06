package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"wagerchess/internal/obslog"

	"go.uber.org/zap"
)

// RedisLedger keeps balances as plain keys and the transaction history as a
// per-user list. Mutations run under WATCH so two concurrent settlements
// cannot both read the same balance.
type RedisLedger struct {
	rdb *redis.Client
}

func NewRedisLedger(rdb *redis.Client) *RedisLedger { return &RedisLedger{rdb: rdb} }

// Open connects a redis client from a redis:// URL and verifies the
// connection.
func Open(redisURL string) (*redis.Client, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (l *RedisLedger) Deduct(ctx context.Context, userID string, amount int64, kind, ref string) (int64, error) {
	if strings.TrimSpace(userID) == "" || amount <= 0 {
		return 0, fmt.Errorf("invalid deduct: user=%q amount=%d", userID, amount)
	}
	return l.mutate(ctx, userID, -amount, kind, ref)
}

func (l *RedisLedger) Credit(ctx context.Context, userID string, amount int64, kind, ref string) (int64, error) {
	if strings.TrimSpace(userID) == "" || amount < 0 {
		return 0, fmt.Errorf("invalid credit: user=%q amount=%d", userID, amount)
	}
	return l.mutate(ctx, userID, amount, kind, ref)
}

func (l *RedisLedger) Balance(ctx context.Context, userID string) (int64, error) {
	raw, err := l.rdb.Get(ctx, balanceKey(userID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (l *RedisLedger) History(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	raws, err := l.rdb.LRange(ctx, txKey(userID), int64(-limit), -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if jerr := json.Unmarshal([]byte(raw), &e); jerr != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// mutate applies a signed delta under WATCH and appends the transaction
// record in the same pipeline. Retries on WATCH conflicts.
func (l *RedisLedger) mutate(ctx context.Context, userID string, delta int64, kind, ref string) (int64, error) {
	key := balanceKey(userID)
	var newBalance int64
	for attempt := 0; attempt < 5; attempt++ {
		err := l.rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur := int64(0)
			raw, err := tx.Get(ctx, key).Result()
			if err != nil && err != redis.Nil {
				return err
			}
			if err == nil {
				if cur, err = strconv.ParseInt(raw, 10, 64); err != nil {
					return fmt.Errorf("corrupt balance for %s: %w", userID, err)
				}
			}
			next := cur + delta
			if next < 0 {
				return ErrInsufficientFunds
			}
			entry := Entry{
				ID:        uuid.NewString(),
				UserID:    userID,
				Kind:      kind,
				Amount:    delta,
				Ref:       ref,
				Balance:   next,
				CreatedAt: time.Now(),
			}
			entryRaw, jerr := json.Marshal(&entry)
			if jerr != nil {
				return jerr
			}
			pipe := tx.TxPipeline()
			pipe.Set(ctx, key, strconv.FormatInt(next, 10), 0)
			pipe.RPush(ctx, txKey(userID), entryRaw)
			if _, perr := pipe.Exec(ctx); perr != nil {
				return perr
			}
			newBalance = next
			return nil
		}, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return 0, err
		}
		obslog.L().Debug("ledger_mutate",
			zap.String("user_id", userID),
			zap.String("kind", kind),
			zap.Int64("amount", delta),
			zap.Int64("balance", newBalance),
		)
		return newBalance, nil
	}
	return 0, fmt.Errorf("ledger conflict for %s after retries", userID)
}

func balanceKey(userID string) string { return "ledger:balance:" + strings.TrimSpace(userID) }
func txKey(userID string) string      { return "ledger:tx:" + strings.TrimSpace(userID) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
