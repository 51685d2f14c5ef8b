package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer wraps the Kafka writer for transfer commands.
type Producer struct {
	w *kafka.Writer
}

// NewProducer keys by order id so every transfer of one order lands on the same
// partition, and waits for all in-sync replicas before acknowledging.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  5,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

func (p *Producer) Close() error { return p.w.Close() }

// Publish writes one command synchronously.
func (p *Producer) Publish(ctx context.Context, msg TransferMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.OrderID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "x-transfer-id", Value: []byte(msg.TransferID)},
			{Key: "x-transfer-kind", Value: []byte(msg.Kind)},
		},
	})
}
