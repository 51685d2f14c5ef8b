package payment

import (
	"context"
	"fmt"

	"order_payment/internal/ledger"
	"order_payment/internal/model"

	"github.com/google/uuid"
)

// TransferGas is the fixed budget attached to every dispatch and continuation,
// whatever the amount moved.
const TransferGas uint64 = 10_000_000_000_000

const refundMemo = "Refund order from payment contract"

// rail is the per-payment-method transfer strategy.
type rail interface {
	// prepare fills the rail specific fields of a journal row.
	prepare(t *model.Transfer, st model.ContractState)
	// execute submits the transfer and waits for the ledger to settle it.
	execute(ctx context.Context, c ledger.Client, t model.Transfer) error
}

var rails = map[model.PaymentMethod]rail{
	model.NativeAsset:   nativeRail{},
	model.FungibleAsset: fungibleRail{},
}

func railFor(m model.PaymentMethod) (rail, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidState, m)
	}
	return rails[m], nil
}

type nativeRail struct{}

func (nativeRail) prepare(t *model.Transfer, _ model.ContractState) {
	t.Rail = model.NativeAsset
	t.AttachedDeposit = model.Amount{}
}

func (nativeRail) execute(ctx context.Context, c ledger.Client, t model.Transfer) error {
	return c.TransferNative(ctx, ledger.NativeTransfer{
		TransferID: t.TransferID,
		ReceiverID: t.ReceiverID,
		Amount:     t.Amount,
	})
}

type fungibleRail struct{}

func (fungibleRail) prepare(t *model.Transfer, st model.ContractState) {
	t.Rail = model.FungibleAsset
	t.ContractID = st.FungibleContractID
	// one unit, as the token transfer standard requires
	t.AttachedDeposit = model.NewAmount(1)
}

func (fungibleRail) execute(ctx context.Context, c ledger.Client, t model.Transfer) error {
	return c.FtTransfer(ctx, ledger.FtTransfer{
		TransferID:      t.TransferID,
		ContractID:      t.ContractID,
		ReceiverID:      t.ReceiverID,
		Amount:          t.Amount,
		Memo:            t.Memo,
		AttachedDeposit: t.AttachedDeposit,
		Gas:             t.Gas,
	})
}

func (a *App) newTransfer(o model.Order, kind model.TransferKind, amount model.Amount, memo string) (model.Transfer, error) {
	r, err := railFor(o.PaymentMethod)
	if err != nil {
		return model.Transfer{}, err
	}
	t := model.Transfer{
		TransferID: uuid.NewString(),
		OrderID:    o.OrderID,
		Kind:       kind,
		ReceiverID: o.PayerID,
		Amount:     amount,
		Memo:       memo,
		Gas:        TransferGas,
		Status:     model.TransferPending,
	}
	r.prepare(&t, a.state)
	return t, nil
}
