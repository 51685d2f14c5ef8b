package redis

import "fmt"

// OrderLockKey guards one order against concurrent entry points.
func OrderLockKey(orderID string) string {
	return fmt.Sprintf("order_payment:lock:order:%s", orderID)
}

// TransferStateKey caches the journal state of one transfer.
func TransferStateKey(transferID string) string {
	return fmt.Sprintf("order_payment:transfer:state:%s", transferID)
}

// TransferEnqueuedKey marks a transfer as already placed on the outbox stream.
func TransferEnqueuedKey(transferID string) string {
	return fmt.Sprintf("order_payment:transfer:enqueued:%s", transferID)
}

// RateLimitKey is the sliding window of one caller on one route.
func RateLimitKey(scope, caller string) string {
	return fmt.Sprintf("order_payment:rate_limit:%s:%s", scope, caller)
}
