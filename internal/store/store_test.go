package store_test

import (
	"context"
	"testing"
	"time"

	"order_payment/internal/model"
	"order_payment/internal/store"
	"order_payment/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(id string) model.Order {
	return model.Order{
		OrderID:        id,
		PayerID:        "alice.test",
		PaymentMethod:  model.NativeAsset,
		Amount:         model.NewAmount(1000),
		ReceivedAmount: model.NewAmount(1000),
		IsCompleted:    true,
		RefundState:    model.RefundNone,
	}
}

func TestOrderStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	orders := store.NewOrderStore(storetest.New(t))

	_, err := orders.Get(ctx, "o-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	o := newOrder("o-1")
	require.NoError(t, orders.Create(ctx, &o))

	dup := newOrder("o-1")
	dup.PayerID = "mallory.test"
	require.ErrorIs(t, orders.Create(ctx, &dup), store.ErrDuplicate)

	got, err := orders.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "alice.test", got.PayerID)
	assert.Equal(t, "1000", got.Amount.String())
	assert.Equal(t, model.RefundNone, got.RefundState)
}

func TestOrderStore_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	orders := store.NewOrderStore(storetest.New(t))

	o := newOrder("o-1")
	o.IsCompleted = false
	require.NoError(t, orders.Upsert(ctx, &o))

	replacement := newOrder("o-1")
	replacement.PayerID = "bob.test"
	replacement.PaymentMethod = model.FungibleAsset
	replacement.Amount = model.MustAmount("340282366920938463463374607431768211455")
	require.NoError(t, orders.Upsert(ctx, &replacement))

	got, err := orders.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "bob.test", got.PayerID)
	assert.Equal(t, model.FungibleAsset, got.PaymentMethod)
	assert.Equal(t, "340282366920938463463374607431768211455", got.Amount.String())
	assert.True(t, got.IsCompleted)
}

func TestOrderStore_TransitionRefund(t *testing.T) {
	ctx := context.Background()
	orders := store.NewOrderStore(storetest.New(t))
	o := newOrder("o-1")
	require.NoError(t, orders.Create(ctx, &o))

	moved, err := orders.TransitionRefund(ctx, "o-1", model.RefundNone, model.RefundPending)
	require.NoError(t, err)
	assert.True(t, moved)

	// stale expectation loses
	moved, err = orders.TransitionRefund(ctx, "o-1", model.RefundNone, model.RefundPending)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = orders.TransitionRefund(ctx, "missing", model.RefundNone, model.RefundPending)
	require.NoError(t, err)
	assert.False(t, moved)

	got, err := orders.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, model.RefundPending, got.RefundState)
}

func TestOrderStore_TransitionRefundFollowsStateTable(t *testing.T) {
	ctx := context.Background()
	orders := store.NewOrderStore(storetest.New(t))
	o := newOrder("o-1")
	require.NoError(t, orders.Create(ctx, &o))

	moved, err := orders.TransitionRefund(ctx, "o-1", model.RefundNone, model.Refunded)
	require.NoError(t, err)
	require.True(t, moved, "zero amount refunds settle in one step")

	tests := []struct {
		name     string
		from, to model.RefundState
	}{
		{"refunded is terminal", model.Refunded, model.RefundNone},
		{"refunded cannot reopen", model.Refunded, model.RefundPending},
		{"no self loop", model.RefundPending, model.RefundPending},
		{"unknown state", model.RefundState("bogus"), model.Refunded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			moved, err := orders.TransitionRefund(ctx, "o-1", tt.from, tt.to)
			require.ErrorIs(t, err, store.ErrIllegalTransition)
			assert.False(t, moved)
		})
	}

	got, err := orders.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, model.Refunded, got.RefundState)
}

func newTransfer(id string) model.Transfer {
	return model.Transfer{
		TransferID:      id,
		OrderID:         "o-1",
		Kind:            model.TransferRefund,
		Rail:            model.FungibleAsset,
		ReceiverID:      "alice.test",
		ContractID:      "usdt.test",
		Amount:          model.NewAmount(1000),
		Memo:            "memo",
		AttachedDeposit: model.NewAmount(1),
		Gas:             10_000_000_000_000,
		Status:          model.TransferPending,
	}
}

func TestTransferStore_ClaimSettleOnce(t *testing.T) {
	ctx := context.Background()
	transfers := store.NewTransferStore(storetest.New(t))
	tr := newTransfer("t-1")
	require.NoError(t, transfers.Create(ctx, &tr))

	dup := newTransfer("t-1")
	require.ErrorIs(t, transfers.Create(ctx, &dup), store.ErrDuplicate)

	claimed, err := transfers.Claim(ctx, "t-1")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = transfers.Claim(ctx, "t-1")
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must lose")

	at := time.Now()
	ok, err := transfers.Settle(ctx, "t-1", model.TransferFailed, "rejected", at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = transfers.Settle(ctx, "t-1", model.TransferSucceeded, "", at)
	require.NoError(t, err)
	assert.False(t, ok, "settled rows never change")

	got, err := transfers.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, model.TransferFailed, got.Status)
	assert.Equal(t, "rejected", got.ErrorMsg)
	assert.Equal(t, "1", got.AttachedDeposit.String())
	assert.Equal(t, uint64(10_000_000_000_000), got.Gas)
	require.NotNil(t, got.ResolvedAt)
}

func TestTransferStore_ListPending(t *testing.T) {
	ctx := context.Background()
	transfers := store.NewTransferStore(storetest.New(t))
	for _, id := range []string{"t-1", "t-2", "t-3"} {
		tr := newTransfer(id)
		require.NoError(t, transfers.Create(ctx, &tr))
	}
	_, err := transfers.Claim(ctx, "t-2")
	require.NoError(t, err)

	pending, err := transfers.ListPending(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "t-1", pending[0].TransferID)
	assert.Equal(t, "t-3", pending[1].TransferID)

	pending, err = transfers.ListPending(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "young rows are left to their first dispatch")
}

func TestTransferStore_ReleaseAndListSubmitted(t *testing.T) {
	ctx := context.Background()
	transfers := store.NewTransferStore(storetest.New(t))
	for _, id := range []string{"t-1", "t-2", "t-3"} {
		tr := newTransfer(id)
		require.NoError(t, transfers.Create(ctx, &tr))
	}
	for _, id := range []string{"t-1", "t-2"} {
		_, err := transfers.Claim(ctx, id)
		require.NoError(t, err)
	}
	_, err := transfers.Settle(ctx, "t-2", model.TransferSucceeded, "", time.Now())
	require.NoError(t, err)

	stuck, err := transfers.ListSubmitted(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, "t-1", stuck[0].TransferID)

	stuck, err = transfers.ListSubmitted(ctx, time.Now().Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, stuck, "recent claims may still be in flight")

	released, err := transfers.Release(ctx, "t-1")
	require.NoError(t, err)
	assert.True(t, released)
	released, err = transfers.Release(ctx, "t-3")
	require.NoError(t, err)
	assert.False(t, released, "only submitted rows go back")

	claimed, err := transfers.Claim(ctx, "t-1")
	require.NoError(t, err)
	assert.True(t, claimed, "a released row can be claimed again")
}

func TestStateStore_InitOnce(t *testing.T) {
	ctx := context.Background()
	states := store.NewStateStore(storetest.New(t))

	_, err := states.Get(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)

	st := model.ContractState{OwnerID: "owner.test", FungibleContractID: "usdt.test"}
	require.NoError(t, states.Init(ctx, &st))

	again := model.ContractState{OwnerID: "other.test", FungibleContractID: "usdc.test"}
	require.ErrorIs(t, states.Init(ctx, &again), store.ErrDuplicate)

	got, err := states.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "owner.test", got.OwnerID)
	assert.Equal(t, "usdt.test", got.FungibleContractID)
}
