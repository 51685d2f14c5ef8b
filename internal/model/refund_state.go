package model

// RefundState is the refund sub-state of a completed order.
type RefundState string

const (
	RefundNone    RefundState = "not_refunded"
	RefundPending RefundState = "refund_pending" // flag committed, transfer not resolved yet
	Refunded      RefundState = "refunded"       // terminal
)

var refundNext = map[RefundState]map[RefundState]bool{
	RefundNone:    {RefundPending: true, Refunded: true},
	RefundPending: {Refunded: true, RefundNone: true},
	Refunded:      {},
}

// CanTransition reports whether from -> to is a legal refund move.
func CanTransition(from, to RefundState) bool {
	return refundNext[from][to]
}
