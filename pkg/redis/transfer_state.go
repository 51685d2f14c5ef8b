package redis

import (
	"context"
	"time"

	"order_payment/internal/model"

	rd "github.com/redis/go-redis/v9"
)

// TransferState is the cached view of a journal row.
type TransferState struct {
	TransferID string `json:"transfer_id"`
	OrderID    string `json:"order_id"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	Amount     string `json:"amount"`
	Reason     string `json:"reason,omitempty"`
}

// TransferStateCache keeps transfer status in Redis hashes with a TTL.
type TransferStateCache struct {
	rdb *rd.Client
	ttl time.Duration
}

func NewTransferStateCache(rdb *rd.Client, ttl time.Duration) *TransferStateCache {
	return &TransferStateCache{rdb: rdb, ttl: ttl}
}

// Put overwrites the cached state and refreshes the TTL.
func (c *TransferStateCache) Put(ctx context.Context, t model.Transfer) error {
	key := TransferStateKey(t.TransferID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"transfer_id", t.TransferID,
		"order_id", t.OrderID,
		"kind", string(t.Kind),
		"status", t.Status.String(),
		"amount", t.Amount.String(),
		"reason", t.ErrorMsg,
	)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Get reports found=false when nothing is cached.
func (c *TransferStateCache) Get(ctx context.Context, transferID string) (TransferState, bool, error) {
	m, err := c.rdb.HGetAll(ctx, TransferStateKey(transferID)).Result()
	if err != nil {
		return TransferState{}, false, err
	}
	if len(m) == 0 {
		return TransferState{}, false, nil
	}
	out := TransferState{
		TransferID: transferID,
		OrderID:    m["order_id"],
		Kind:       m["kind"],
		Status:     m["status"],
		Amount:     m["amount"],
		Reason:     m["reason"],
	}
	if out.Status == "" {
		out.Status = model.TransferPending.String()
	}
	return out, true, nil
}
