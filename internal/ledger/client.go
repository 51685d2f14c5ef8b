// Package ledger talks to the external ledger that settles transfers: the native
// currency and the fungible-asset collaborator contract.
package ledger

import (
	"context"
	"errors"

	"order_payment/internal/model"
)

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrRejected            = errors.New("ledger: transfer rejected")
	// ErrOutcomeUnknown means the request may or may not have moved funds:
	// a timeout, a dropped connection or a gateway 5xx.
	ErrOutcomeUnknown = errors.New("ledger: transfer outcome unknown")
)

// Definitive reports whether err is a settled rejection. Only those may be
// delivered to a continuation as a failure.
func Definitive(err error) bool {
	return errors.Is(err, ErrRejected) || errors.Is(err, ErrInsufficientBalance)
}

// NativeTransfer moves platform currency from the service account.
// TransferID is the idempotency key; the ledger executes an id at most once.
type NativeTransfer struct {
	TransferID string
	ReceiverID string
	Amount     model.Amount
}

// FtTransfer calls the collaborator contract's transfer operation.
// AttachedDeposit is the minimal fee unit its transfer standard demands.
type FtTransfer struct {
	TransferID      string
	ContractID      string
	ReceiverID      string
	Amount          model.Amount
	Memo            string
	AttachedDeposit model.Amount
	Gas             uint64
}

// ReceiptStatus is what the ledger recorded for a transfer id.
type ReceiptStatus int

const (
	ReceiptNotFound ReceiptStatus = iota // the ledger never executed the id
	ReceiptSucceeded
	ReceiptRejected
)

func (s ReceiptStatus) String() string {
	switch s {
	case ReceiptSucceeded:
		return "succeeded"
	case ReceiptRejected:
		return "rejected"
	default:
		return "not_found"
	}
}

type Receipt struct {
	Status ReceiptStatus
	Reason string
}

// Client submits a transfer and returns once the ledger has settled it.
// A nil error means the transfer succeeded; an error that is not Definitive
// leaves the outcome to Lookup.
type Client interface {
	TransferNative(ctx context.Context, t NativeTransfer) error
	FtTransfer(ctx context.Context, t FtTransfer) error
	Lookup(ctx context.Context, transferID string) (Receipt, error)
}
