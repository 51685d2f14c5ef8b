package queue

import (
	"fmt"

	"order_payment/internal/model"
)

// TransferMessage is the command that travels stream -> Kafka -> executor.
// The journal row stays the source of truth; the message only names it.
type TransferMessage struct {
	TransferID string `json:"transfer_id"`
	OrderID    string `json:"order_id"`
	Kind       string `json:"kind"`
	Amount     string `json:"amount"`
}

func NewTransferMessage(t model.Transfer) TransferMessage {
	return TransferMessage{
		TransferID: t.TransferID,
		OrderID:    t.OrderID,
		Kind:       string(t.Kind),
		Amount:     t.Amount.String(),
	}
}

// Validate rejects messages the executor could not act on.
func (m TransferMessage) Validate() error {
	if m.TransferID == "" {
		return fmt.Errorf("transfer_id is required")
	}
	if m.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}
	switch model.TransferKind(m.Kind) {
	case model.TransferRefund, model.TransferChange:
	default:
		return fmt.Errorf("unknown kind %q", m.Kind)
	}
	if _, err := model.ParseAmount(m.Amount); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	return nil
}

func (m TransferMessage) fields() map[string]string {
	return map[string]string{
		"transfer_id": m.TransferID,
		"order_id":    m.OrderID,
		"kind":        m.Kind,
		"amount":      m.Amount,
	}
}
