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

// ResolveTransfer is the host side of a continuation: it settles the journal row
// and runs the continuation bound to it in the same transaction, so the
// continuation happens at most once per transfer.
//
// For refunds the returned amount is the continuation's value. Change transfers
// have no continuation and return zero.
func (a *App) ResolveTransfer(ctx context.Context, transferID string, results ...ledger.Result) (model.Amount, error) {
	r, err := singleResult(results)
	if err != nil {
		return model.Amount{}, err
	}
	status, reason := model.TransferSucceeded, ""
	if r.Status == ledger.Failed {
		status, reason = model.TransferFailed, r.Reason
	}

	var (
		out     model.Amount
		settled model.Transfer
	)
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transfers := store.NewTransferStore(tx)
		t, err := transfers.Get(ctx, transferID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrTransferNotFound, transferID)
			}
			return err
		}
		if t.Status.Settled() {
			return fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, transferID, t.Status)
		}

		now := a.now()
		ok, err := transfers.Settle(ctx, transferID, status, reason, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrAlreadyResolved, transferID)
		}
		t.Status, t.ErrorMsg, t.ResolvedAt = status, reason, &now
		settled = t

		switch t.Kind {
		case model.TransferRefund:
			out, err = a.refundContinuation(ctx, tx, t.OrderID, results)
			return err
		case model.TransferChange:
			if status == model.TransferFailed {
				// change has no continuation; only the log records the loss
				a.log.Warn("overpayment return failed", "order_id", t.OrderID, "receiver_id", t.ReceiverID,
					"amount", t.Amount.String(), "reason", reason)
			}
			return nil
		default:
			return fmt.Errorf("unknown transfer kind %q", t.Kind)
		}
	})
	if err != nil {
		return model.Amount{}, err
	}
	a.cacheTransfer(ctx, settled)
	return out, nil
}
