package payment

import (
	"context"
	"errors"
	"fmt"

	"order_payment/internal/ledger"
	"order_payment/internal/model"
	"order_payment/internal/store"

	"gorm.io/gorm"
)

// RefundReceipt describes what Refund committed and dispatched.
type RefundReceipt struct {
	OrderID    string            `json:"order_id"`
	TransferID string            `json:"transfer_id,omitempty"`
	Amount     model.Amount      `json:"amount"`
	State      model.RefundState `json:"state"`
	Dispatched bool              `json:"dispatched"`
}

// Refund starts the refund saga for a completed order. Owner only.
//
// The refund flag is committed before the transfer is dispatched and stays
// committed whatever the transfer does; the continuation reconciles it.
func (a *App) Refund(ctx context.Context, call Call, orderID string) (RefundReceipt, error) {
	if call.Predecessor != a.state.OwnerID {
		return RefundReceipt{}, fmt.Errorf("%w: %q is not the owner", ErrUnauthorized, call.Predecessor)
	}

	unlock, err := a.lock(ctx, orderID)
	if err != nil {
		return RefundReceipt{}, err
	}
	defer unlock()

	receipt := RefundReceipt{OrderID: orderID}
	var pending *model.Transfer

	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := store.NewOrderStore(tx)
		o, err := orders.Get(ctx, orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, orderID)
			}
			return err
		}
		if !o.Refundable() {
			return fmt.Errorf("%w: %s is %s", ErrInvalidState, orderID, o.RefundState)
		}
		receipt.Amount = o.Amount

		// nothing to move: the flag is the whole refund
		next := model.RefundPending
		if o.Amount.IsZero() {
			next = model.Refunded
		}
		moved, err := orders.TransitionRefund(ctx, orderID, model.RefundNone, next)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("%w: %s changed concurrently", ErrInvalidState, orderID)
		}
		receipt.State = next
		if next == model.Refunded {
			return nil
		}

		t, err := a.newTransfer(o, model.TransferRefund, o.Amount, refundMemo)
		if err != nil {
			return err
		}
		if err := store.NewTransferStore(tx).Create(ctx, &t); err != nil {
			return err
		}
		pending = &t
		return nil
	})
	if err != nil {
		return RefundReceipt{}, err
	}

	if pending == nil {
		a.log.Info("refund without transfer", "order_id", orderID)
		return receipt, nil
	}
	receipt.TransferID = pending.TransferID
	receipt.Dispatched = a.dispatch(ctx, *pending)
	a.log.Info("refund dispatched", "order_id", orderID, "transfer_id", pending.TransferID,
		"rail", pending.Rail, "amount", pending.Amount.String(), "dispatched", receipt.Dispatched)
	return receipt, nil
}

// RefundContinuation reconciles an order once its refund transfer has resolved.
// It returns zero on success and the order amount when the transfer failed and
// the refund flag was rolled back.
func (a *App) RefundContinuation(ctx context.Context, orderID string, results []ledger.Result) (model.Amount, error) {
	var out model.Amount
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = a.refundContinuation(ctx, tx, orderID, results)
		return err
	})
	return out, err
}

func (a *App) refundContinuation(ctx context.Context, tx *gorm.DB, orderID string, results []ledger.Result) (model.Amount, error) {
	r, err := singleResult(results)
	if err != nil {
		return model.Amount{}, err
	}

	orders := store.NewOrderStore(tx)
	o, err := orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Amount{}, fmt.Errorf("%w: %s", ErrNotFound, orderID)
		}
		return model.Amount{}, err
	}
	if o.RefundState != model.RefundPending {
		return model.Amount{}, fmt.Errorf("%w: continuation for %s found %s", ErrInvalidState, orderID, o.RefundState)
	}

	next, out := model.Refunded, model.Amount{}
	if r.Status == ledger.Failed {
		// compensate: no funds moved, the order may be refunded again
		next, out = model.RefundNone, o.Amount
	}
	moved, err := orders.TransitionRefund(ctx, orderID, model.RefundPending, next)
	if err != nil {
		return model.Amount{}, err
	}
	if !moved {
		return model.Amount{}, fmt.Errorf("%w: %s changed concurrently", ErrInvalidState, orderID)
	}

	if r.Status == ledger.Failed {
		a.log.Warn("refund transfer failed, flag rolled back", "order_id", orderID, "reason", r.Reason)
	} else {
		a.log.Info("refund confirmed", "order_id", orderID)
	}
	return out, nil
}

// singleResult enforces the one-slot contract. A result that is not ready
// means the host broke its guarantee.
func singleResult(results []ledger.Result) (ledger.Result, error) {
	if len(results) != 1 {
		return ledger.Result{}, fmt.Errorf("%w: got %d", ErrTooManyResults, len(results))
	}
	r := results[0]
	if r.Status == ledger.NotReady {
		panic("payment: continuation invoked before the transfer resolved")
	}
	return r, nil
}
