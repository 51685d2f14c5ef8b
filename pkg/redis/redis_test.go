package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"order_payment/internal/model"

	"github.com/alicebob/miniredis/v2"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *rd.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestOrderLocker(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	locker := NewOrderLocker(rdb, 10*time.Second, 100*time.Millisecond)

	unlock, err := locker.Lock(ctx, "o-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(OrderLockKey("o-1")))

	_, err = locker.Lock(ctx, "o-1")
	require.ErrorIs(t, err, ErrLocked)

	// other orders are independent
	unlockOther, err := locker.Lock(ctx, "o-2")
	require.NoError(t, err)
	unlockOther()

	unlock()
	assert.False(t, mr.Exists(OrderLockKey("o-1")))

	unlock, err = locker.Lock(ctx, "o-1")
	require.NoError(t, err)
	unlock()
}

func TestOrderLocker_WaitsForRelease(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)
	locker := NewOrderLocker(rdb, 10*time.Second, 2*time.Second)

	unlock, err := locker.Lock(ctx, "o-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var waitErr error
	go func() {
		defer wg.Done()
		var u func()
		u, waitErr = locker.Lock(ctx, "o-1")
		if waitErr == nil {
			u()
		}
	}()
	time.Sleep(100 * time.Millisecond)
	unlock()
	wg.Wait()
	assert.NoError(t, waitErr)
}

func TestReleaseIfMatch_KeepsForeignLock(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	require.NoError(t, mr.Set("k", "theirs"))

	require.NoError(t, ReleaseIfMatch(ctx, rdb, "k", "mine"))
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "theirs", got)

	require.NoError(t, ReleaseIfMatch(ctx, rdb, "k", "theirs"))
	assert.False(t, mr.Exists("k"))
}

func TestEnqueueOnce(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	values := map[string]string{"transfer_id": "t-1", "order_id": "o-1", "kind": "refund", "amount": "1000"}

	id, err := EnqueueOnce(ctx, rdb, "transfers", "t-1", time.Minute, values)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	id, err = EnqueueOnce(ctx, rdb, "transfers", "t-1", time.Minute, values)
	require.NoError(t, err)
	assert.Empty(t, id, "duplicate is swallowed")

	entries, err := rdb.XRange(ctx, "transfers", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "o-1", entries[0].Values["order_id"])

	// once the marker expires the transfer can be enqueued again
	mr.FastForward(2 * time.Minute)
	id, err = EnqueueOnce(ctx, rdb, "transfers", "t-1", time.Minute, values)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestTransferStateCache(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	cache := NewTransferStateCache(rdb, time.Hour)

	_, found, err := cache.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.False(t, found)

	tr := model.Transfer{
		TransferID: "t-1",
		OrderID:    "o-1",
		Kind:       model.TransferRefund,
		Amount:     model.NewAmount(1000),
		Status:     model.TransferFailed,
		ErrorMsg:   "rejected",
	}
	require.NoError(t, cache.Put(ctx, tr))
	assert.Equal(t, time.Hour, mr.TTL(TransferStateKey("t-1")))

	got, found, err := cache.Get(ctx, "t-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, TransferState{
		TransferID: "t-1",
		OrderID:    "o-1",
		Kind:       "refund",
		Status:     "failed",
		Amount:     "1000",
		Reason:     "rejected",
	}, got)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "order_payment:lock:order:o-1", OrderLockKey("o-1"))
	assert.Equal(t, "order_payment:rate_limit:pay:alice.test", RateLimitKey("pay", "alice.test"))
}
