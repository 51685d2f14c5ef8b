package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order_payment/internal/ledger"
	"order_payment/internal/store"
)

// Executor plays the host: it submits a journaled transfer to the ledger and
// delivers the single result to the continuation.
type Executor struct {
	app     *App
	client  ledger.Client
	timeout time.Duration
}

func NewExecutor(app *App, client ledger.Client, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{app: app, client: client, timeout: timeout}
}

// Execute claims the transfer, runs it on its rail and resolves it.
// A transfer another executor already claimed yields ErrAlreadyClaimed.
//
// Only a definitive ledger answer resolves the transfer. When the outcome is
// unknown the row stays submitted for Reconcile and the error wraps
// ledger.ErrOutcomeUnknown.
func (e *Executor) Execute(ctx context.Context, transferID string) (ledger.Result, error) {
	transfers := store.NewTransferStore(e.app.db)
	claimed, err := transfers.Claim(ctx, transferID)
	if err != nil {
		return ledger.Result{}, err
	}
	if !claimed {
		return ledger.Result{}, fmt.Errorf("%w: %s", ErrAlreadyClaimed, transferID)
	}
	t, err := transfers.Get(ctx, transferID)
	if err != nil {
		return ledger.Result{}, err
	}
	r, err := railFor(t.Rail)
	if err != nil {
		return ledger.Result{}, err
	}

	tctx, cancel := context.WithTimeout(ctx, e.timeout)
	terr := r.execute(tctx, e.client, t)
	cancel()

	res := ledger.Success(nil)
	if terr != nil {
		if !ledger.Definitive(terr) {
			if !errors.Is(terr, ledger.ErrOutcomeUnknown) {
				terr = fmt.Errorf("%w: %w", ledger.ErrOutcomeUnknown, terr)
			}
			e.app.log.Warn("transfer outcome unknown, left for reconcile",
				"transfer_id", transferID, "order_id", t.OrderID, "kind", t.Kind, "err", terr)
			return ledger.Result{}, fmt.Errorf("transfer %s: %w", transferID, terr)
		}
		res = ledger.Failure(terr.Error())
	}
	if _, err := e.app.ResolveTransfer(ctx, transferID, res); err != nil {
		return res, err
	}
	return res, nil
}

// Reconcile settles transfers stuck in submitted for longer than age by asking
// the ledger for their receipt. A transfer the ledger never saw goes back to
// pending and is dispatched again; the ledger runs each transfer id once.
// age must exceed the executor timeout so in-flight transfers are left alone.
func (e *Executor) Reconcile(ctx context.Context, age time.Duration, limit int) (int, error) {
	transfers := store.NewTransferStore(e.app.db)
	stuck, err := transfers.ListSubmitted(ctx, e.app.now().Add(-age), limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range stuck {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		rc, err := e.client.Lookup(ctx, t.TransferID)
		if err != nil {
			e.app.log.Warn("lookup transfer receipt", "transfer_id", t.TransferID, "err", err)
			continue
		}

		var res ledger.Result
		switch rc.Status {
		case ledger.ReceiptSucceeded:
			res = ledger.Success(nil)
		case ledger.ReceiptRejected:
			res = ledger.Failure(rc.Reason)
		default:
			released, err := transfers.Release(ctx, t.TransferID)
			if err != nil {
				return n, err
			}
			if released && e.app.dispatch(ctx, t) {
				n++
			}
			continue
		}

		if _, err := e.app.ResolveTransfer(ctx, t.TransferID, res); err != nil {
			if errors.Is(err, ErrAlreadyResolved) {
				continue
			}
			return n, err
		}
		e.app.log.Info("reconciled transfer", "transfer_id", t.TransferID, "order_id", t.OrderID,
			"kind", t.Kind, "receipt", rc.Status.String())
		n++
	}
	return n, nil
}
