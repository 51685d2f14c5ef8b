package payment

import (
	"context"
	"errors"
	"fmt"

	"order_payment/internal/model"
	"order_payment/internal/store"

	"gorm.io/gorm"
)

// PayOrder records a native-currency payment and returns the surplus, which is
// sent back to the payer right away without saga tracking.
func (a *App) PayOrder(ctx context.Context, call Call, orderID string, orderAmount model.Amount) (model.Amount, error) {
	if orderID == "" {
		return model.Amount{}, fmt.Errorf("%w: order_id is required", ErrInvalidArgument)
	}
	payer := call.payer()
	if payer == "" {
		return model.Amount{}, fmt.Errorf("%w: payer is unknown", ErrInvalidArgument)
	}
	if call.AttachedDeposit.LessThan(orderAmount) {
		return model.Amount{}, fmt.Errorf("%w: deposit %s < order amount %s", ErrInsufficientDeposit, call.AttachedDeposit, orderAmount)
	}

	unlock, err := a.lock(ctx, orderID)
	if err != nil {
		return model.Amount{}, err
	}
	defer unlock()

	change := call.AttachedDeposit.Excess(orderAmount)
	var refundChange *model.Transfer

	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o := model.Order{
			OrderID:        orderID,
			PayerID:        payer,
			PaymentMethod:  model.NativeAsset,
			Amount:         orderAmount,
			ReceivedAmount: call.AttachedDeposit,
			IsCompleted:    true,
			RefundState:    model.RefundNone,
			CreatedAt:      a.now(),
		}
		if err := store.NewOrderStore(tx).Create(ctx, &o); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("%w: %s", ErrDuplicateOrder, orderID)
			}
			return err
		}
		if change.IsZero() {
			return nil
		}
		t, err := a.newTransfer(o, model.TransferChange, change, "")
		if err != nil {
			return err
		}
		if err := store.NewTransferStore(tx).Create(ctx, &t); err != nil {
			return err
		}
		refundChange = &t
		return nil
	})
	if err != nil {
		return model.Amount{}, err
	}

	a.log.Info("order paid", "order_id", orderID, "payer_id", payer, "rail", model.NativeAsset,
		"amount", orderAmount.String(), "received", call.AttachedDeposit.String())
	if refundChange != nil {
		a.dispatch(ctx, *refundChange)
	}
	return change, nil
}
