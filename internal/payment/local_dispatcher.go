package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"order_payment/internal/ledger"
	"order_payment/internal/model"
)

// LocalDispatcher executes transfers on goroutines in this process and keeps
// one promise per transfer for callers that want to wait on the outcome.
type LocalDispatcher struct {
	mu       sync.Mutex
	exec     *Executor
	promises map[string]*ledger.Promise
	wg       sync.WaitGroup
	log      *slog.Logger
}

func NewLocalDispatcher(log *slog.Logger) *LocalDispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &LocalDispatcher{promises: map[string]*ledger.Promise{}, log: log}
}

// Attach wires the executor. The App must exist before its executor, so this
// happens after construction.
func (d *LocalDispatcher) Attach(e *Executor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exec = e
}

// Dispatch starts the transfer. A dispatch of an id that is still in flight is a
// no-op; a finished one runs again and the executor's claim decides.
func (d *LocalDispatcher) Dispatch(ctx context.Context, t model.Transfer) error {
	d.mu.Lock()
	exec := d.exec
	if exec == nil {
		d.mu.Unlock()
		return errors.New("local dispatcher: no executor attached")
	}
	if p, ok := d.promises[t.TransferID]; ok && !isDone(p) {
		d.mu.Unlock()
		return nil
	}
	p := ledger.NewPromise()
	d.promises[t.TransferID] = p
	d.mu.Unlock()

	// the transfer outlives the request that dispatched it
	runCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		res, err := exec.Execute(runCtx, t.TransferID)
		if err != nil {
			d.log.Error("execute transfer", "transfer_id", t.TransferID, "err", err)
		}
		p.Resolve(res, err)
	}()
	return nil
}

// Await blocks until the transfer has been executed and its continuation ran.
func (d *LocalDispatcher) Await(ctx context.Context, transferID string) (ledger.Result, error) {
	d.mu.Lock()
	p, ok := d.promises[transferID]
	d.mu.Unlock()
	if !ok {
		return ledger.Result{}, fmt.Errorf("%w: %s was not dispatched here", ErrTransferNotFound, transferID)
	}
	return p.Await(ctx)
}

// Wait drains in-flight transfers.
func (d *LocalDispatcher) Wait() { d.wg.Wait() }

func isDone(p *ledger.Promise) bool {
	select {
	case <-p.Done():
		return true
	default:
		return false
	}
}
