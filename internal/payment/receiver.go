package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"order_payment/internal/model"
	"order_payment/internal/store"

	"gorm.io/gorm"
)

// ftMessage is the payload the payer attaches to the asset transfer.
type ftMessage struct {
	OrderID     string `json:"order_id"`
	OrderAmount string `json:"order_amount"`
}

func parseFtMessage(msg string) (string, model.Amount, error) {
	var m ftMessage
	if err := json.Unmarshal([]byte(msg), &m); err != nil {
		return "", model.Amount{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.OrderID == "" {
		return "", model.Amount{}, fmt.Errorf("%w: order_id is required", ErrInvalidMessage)
	}
	amount, err := model.ParseAmount(m.OrderAmount)
	if err != nil {
		return "", model.Amount{}, fmt.Errorf("%w: order_amount: %v", ErrInvalidMessage, err)
	}
	return m.OrderID, amount, nil
}

// OnTransfer is the receiver hook the fungible-asset contract calls after moving
// amount from senderID into the service account. The returned residual is pulled
// back to the sender by the asset contract.
func (a *App) OnTransfer(ctx context.Context, call Call, senderID string, amount model.Amount, msg string) (model.Amount, error) {
	if call.Predecessor != a.state.FungibleContractID {
		return model.Amount{}, fmt.Errorf("%w: %q is not the asset contract", ErrUnauthorized, call.Predecessor)
	}
	if senderID == "" {
		return model.Amount{}, fmt.Errorf("%w: sender_id is required", ErrInvalidArgument)
	}
	orderID, orderAmount, err := parseFtMessage(msg)
	if err != nil {
		return model.Amount{}, err
	}
	// the asset contract already pulled the funds; rejecting here returns all of them
	if amount.LessThan(orderAmount) {
		return model.Amount{}, fmt.Errorf("%w: transferred %s < order amount %s", ErrInsufficientAmount, amount, orderAmount)
	}

	unlock, err := a.lock(ctx, orderID)
	if err != nil {
		return model.Amount{}, err
	}
	defer unlock()

	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := store.NewOrderStore(tx)
		existing, err := orders.Get(ctx, orderID)
		switch {
		case err == nil && existing.IsCompleted:
			return fmt.Errorf("%w: %s", ErrDuplicateOrder, orderID)
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return err
		}
		// an incomplete record under the same id is replaced, never merged
		o := model.Order{
			OrderID:        orderID,
			PayerID:        senderID,
			PaymentMethod:  model.FungibleAsset,
			Amount:         orderAmount,
			ReceivedAmount: amount,
			IsCompleted:    true,
			RefundState:    model.RefundNone,
			CreatedAt:      a.now(),
		}
		return orders.Upsert(ctx, &o)
	})
	if err != nil {
		return model.Amount{}, err
	}

	residual := amount.Excess(orderAmount)
	a.log.Info("order paid", "order_id", orderID, "payer_id", senderID, "rail", model.FungibleAsset,
		"amount", orderAmount.String(), "received", amount.String(), "residual", residual.String())
	return residual, nil
}
