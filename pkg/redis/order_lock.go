package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// ErrLocked is returned when the lock stays taken for the whole wait budget.
var ErrLocked = errors.New("order lock is held")

// luaReleaseIfMatch deletes the lock only if it still carries our token, so an
// expired holder never frees a newer lock.
const luaReleaseIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

// OrderLocker is a per-order mutex shared by every replica.
type OrderLocker struct {
	rdb   *rd.Client
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
}

// NewOrderLocker: ttl bounds a crashed holder; wait bounds how long Lock spins.
func NewOrderLocker(rdb *rd.Client, ttl, wait time.Duration) *OrderLocker {
	return &OrderLocker{rdb: rdb, ttl: ttl, wait: wait, retry: 25 * time.Millisecond}
}

func (l *OrderLocker) Lock(ctx context.Context, orderID string) (func(), error) {
	key := OrderLockKey(orderID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { _ = ReleaseIfMatch(context.WithoutCancel(ctx), l.rdb, key, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLocked
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

// ReleaseIfMatch frees key only when it holds token.
func ReleaseIfMatch(ctx context.Context, rdb *rd.Client, key, token string) error {
	_, err := rdb.Eval(ctx, luaReleaseIfMatch, []string{key}, token).Int()
	return err
}
