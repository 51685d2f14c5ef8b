package model

import (
	"time"
)

// TransferStatus tracks an asynchronous ledger transfer from dispatch to resolution.
type TransferStatus int

const (
	TransferPending   TransferStatus = iota // journaled, not yet handed to the ledger
	TransferSubmitted                       // claimed by an executor, outcome unknown
	TransferSucceeded                       // ledger confirmed
	TransferFailed                          // ledger rejected
)

func (s TransferStatus) String() string {
	switch s {
	case TransferPending:
		return "pending"
	case TransferSubmitted:
		return "submitted"
	case TransferSucceeded:
		return "succeeded"
	case TransferFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s TransferStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Settled is true once the ledger has resolved the transfer either way.
func (s TransferStatus) Settled() bool {
	return s == TransferSucceeded || s == TransferFailed
}

// TransferKind says why the transfer exists and whether a continuation follows it.
type TransferKind string

const (
	TransferRefund TransferKind = "refund" // saga tracked
	TransferChange TransferKind = "change" // overpayment return, fire and forget
)

// Transfer is the journal row of one dispatched transfer. It is the persisted
// promise that the continuation is resolved against.
type Transfer struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TransferID string        `gorm:"size:64;uniqueIndex;not null" json:"transfer_id"`
	OrderID    string        `gorm:"size:128;not null;index" json:"order_id"`
	Kind       TransferKind  `gorm:"size:16;not null" json:"kind"`
	Rail       PaymentMethod `gorm:"size:16;not null" json:"rail"`
	ReceiverID string        `gorm:"size:128;not null" json:"receiver_id"`
	ContractID string        `gorm:"size:128" json:"contract_id,omitempty"`
	Amount     Amount        `gorm:"type:varchar(40);not null" json:"amount"`
	Memo       string        `gorm:"size:255" json:"memo,omitempty"`
	// AttachedDeposit and Gas are fixed per rail, never derived from Amount.
	AttachedDeposit Amount `gorm:"type:varchar(40);not null" json:"attached_deposit"`
	Gas             uint64 `gorm:"not null" json:"gas"`

	Status     TransferStatus `gorm:"not null;default:0;index" json:"status"`
	ErrorMsg   string         `gorm:"size:255" json:"error_msg,omitempty"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
}

func (Transfer) TableName() string { return "transfers" }
