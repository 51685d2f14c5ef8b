package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// publisher is the Kafka side of the relay.
type publisher interface {
	Publish(ctx context.Context, msg TransferMessage) error
}

// Relay forwards the transfer outbox stream to Kafka.
// A stream entry is acked only after Kafka accepted it; failures stay pending
// and are retried. Entries left pending by a relay that died are taken over
// once they have been idle for claimIdle.
type Relay struct {
	rdb      *rd.Client
	producer publisher
	log      *slog.Logger

	stream    string
	group     string
	consumer  string
	claimIdle time.Duration
}

func NewRelay(rdb *rd.Client, producer publisher, stream, group, consumer string, log *slog.Logger) *Relay {
	return &Relay{
		rdb:       rdb,
		producer:  producer,
		log:       log,
		stream:    stream,
		group:     group,
		consumer:  consumer,
		claimIdle: time.Minute,
	}
}

func (r *Relay) Run(ctx context.Context) {
	if err := r.ensureGroup(ctx); err != nil {
		r.log.Error("relay ensure group", "err", err)
		return
	}

	for ctx.Err() == nil {
		msgs, err := r.nextBatch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			r.log.Error("relay read", "stream", r.stream, "err", err)
			pause(ctx, 300*time.Millisecond)
			continue
		}

		for _, xm := range msgs {
			if err := r.processOne(ctx, xm); err != nil {
				// not acked: the entry stays pending and heads the next batch
				r.log.Error("relay process", "stream_id", xm.ID, "err", err)
				pause(ctx, 200*time.Millisecond)
				break
			}
		}
	}
}

// nextBatch prefers our own pending entries, then abandoned ones, then new ones.
func (r *Relay) nextBatch(ctx context.Context) ([]rd.XMessage, error) {
	msgs, err := r.readGroup(ctx, "0", -1)
	if err != nil || len(msgs) > 0 {
		return msgs, err
	}
	msgs, err = r.claimAbandoned(ctx)
	if err != nil || len(msgs) > 0 {
		return msgs, err
	}
	return r.readGroup(ctx, ">", 2*time.Second)
}

func (r *Relay) claimAbandoned(ctx context.Context) ([]rd.XMessage, error) {
	msgs, _, err := r.rdb.XAutoClaim(ctx, &rd.XAutoClaimArgs{
		Stream:   r.stream,
		Group:    r.group,
		Consumer: r.consumer,
		MinIdle:  r.claimIdle,
		Start:    "0-0",
		Count:    16,
	}).Result()
	if errors.Is(err, rd.Nil) {
		return nil, nil
	}
	if len(msgs) > 0 {
		r.log.Warn("relay took over abandoned entries", "count", len(msgs))
	}
	return msgs, err
}

func pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil || strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// readGroup does not block when block < 0.
func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	streams, err := r.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    16,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out []rd.XMessage
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (r *Relay) processOne(ctx context.Context, xm rd.XMessage) error {
	msg, err := parseTransferEvent(xm.Values)
	if err != nil {
		// poison entry: ack and drop so it cannot block the stream
		r.log.Warn("relay drop malformed entry", "stream_id", xm.ID, "err", err)
		if ackErr := r.ackAndDelete(ctx, xm.ID); ackErr != nil {
			return fmt.Errorf("parse failed: %v, ack failed: %w", err, ackErr)
		}
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.producer.Publish(pubCtx, msg); err != nil {
		return err
	}
	return r.ackAndDelete(ctx, xm.ID)
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}

func parseTransferEvent(values map[string]interface{}) (TransferMessage, error) {
	var msg TransferMessage
	var err error
	if msg.TransferID, err = getStreamString(values, "transfer_id"); err != nil {
		return TransferMessage{}, err
	}
	if msg.OrderID, err = getStreamString(values, "order_id"); err != nil {
		return TransferMessage{}, err
	}
	if msg.Kind, err = getStreamString(values, "kind"); err != nil {
		return TransferMessage{}, err
	}
	if msg.Amount, err = getStreamString(values, "amount"); err != nil {
		return TransferMessage{}, err
	}
	if err := msg.Validate(); err != nil {
		return TransferMessage{}, err
	}
	return msg, nil
}

func getStreamString(values map[string]interface{}, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
