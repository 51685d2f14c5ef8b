package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"order_payment/internal/ledger"
	"order_payment/internal/payment"

	"github.com/segmentio/kafka-go"
)

// TransferExecutor runs one journaled transfer to resolution.
type TransferExecutor interface {
	Execute(ctx context.Context, transferID string) (ledger.Result, error)
}

// Consumer reads transfer commands from Kafka and executes them.
// Offsets are committed only after a message is handled.
type Consumer struct {
	r    *kafka.Reader
	exec TransferExecutor
	log  *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, exec TransferExecutor, log *slog.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       1e6,
			CommitInterval: 0,
		}),
		exec: exec,
		log:  log,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			return // ctx cancelled or reader closed
		}
		if err := c.handle(ctx, m.Value); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("consume transfer", "offset", m.Offset, "partition", m.Partition, "err", err)
		}
		if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.log.Error("commit offset", "offset", m.Offset, "err", err)
		}
	}
}

// handle returns an error only for failures worth logging; duplicates and
// poison messages are dropped.
func (c *Consumer) handle(ctx context.Context, value []byte) error {
	var msg TransferMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return err
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	res, err := c.exec.Execute(ctx, msg.TransferID)
	if err != nil {
		// redelivery of a transfer someone already handled
		if errors.Is(err, payment.ErrAlreadyClaimed) || errors.Is(err, payment.ErrAlreadyResolved) {
			return nil
		}
		return err
	}
	c.log.Info("transfer executed", "transfer_id", msg.TransferID, "order_id", msg.OrderID,
		"kind", msg.Kind, "result", res.Status.String())
	return nil
}
