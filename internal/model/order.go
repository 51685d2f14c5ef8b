package model

import (
	"time"
)

// Order is a payment record keyed by the merchant-chosen OrderID.
type Order struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderID       string        `gorm:"size:128;uniqueIndex;not null" json:"order_id"`
	PayerID       string        `gorm:"size:128;not null;index" json:"payer_id"`
	PaymentMethod PaymentMethod `gorm:"size:16;not null" json:"payment_method"`
	// Amount is what the merchant asked for; ReceivedAmount is what intake captured.
	Amount         Amount      `gorm:"type:varchar(40);not null" json:"amount"`
	ReceivedAmount Amount      `gorm:"type:varchar(40);not null" json:"received_amount"`
	IsCompleted    bool        `gorm:"not null;default:false" json:"is_completed"`
	RefundState    RefundState `gorm:"size:16;not null;default:not_refunded;index" json:"refund_state"`
}

func (Order) TableName() string { return "orders" }

// IsRefund is true while a refund is pending or confirmed.
func (o Order) IsRefund() bool {
	return o.RefundState != "" && o.RefundState != RefundNone
}

// Refundable mirrors the entry guard of a refund.
func (o Order) Refundable() bool {
	return o.IsCompleted && !o.IsRefund()
}
