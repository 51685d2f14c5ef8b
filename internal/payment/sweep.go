package payment

import (
	"context"
	"time"

	"order_payment/internal/store"
)

// RedispatchPending hands journaled transfers that were never claimed back to
// the dispatcher. Claimed transfers are left alone since their outcome is unknown.
func (a *App) RedispatchPending(ctx context.Context, age time.Duration, limit int) (int, error) {
	pending, err := store.NewTransferStore(a.db).ListPending(ctx, a.now().Add(-age), limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range pending {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if a.dispatch(ctx, t) {
			n++
		}
	}
	return n, nil
}
