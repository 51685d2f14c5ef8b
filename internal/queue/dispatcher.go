package queue

import (
	"context"
	"time"

	"order_payment/internal/model"
	rediskey "order_payment/pkg/redis"

	rd "github.com/redis/go-redis/v9"
)

// StreamDispatcher places transfers on the Redis Stream outbox; the Relay
// carries them on to Kafka.
type StreamDispatcher struct {
	rdb      *rd.Client
	stream   string
	dedupTTL time.Duration
}

// NewStreamDispatcher: dedupTTL is how long a second dispatch of the same
// transfer is swallowed.
func NewStreamDispatcher(rdb *rd.Client, stream string, dedupTTL time.Duration) *StreamDispatcher {
	return &StreamDispatcher{rdb: rdb, stream: stream, dedupTTL: dedupTTL}
}

func (d *StreamDispatcher) Dispatch(ctx context.Context, t model.Transfer) error {
	msg := NewTransferMessage(t)
	if err := msg.Validate(); err != nil {
		return err
	}
	_, err := rediskey.EnqueueOnce(ctx, d.rdb, d.stream, t.TransferID, d.dedupTTL, msg.fields())
	return err
}
