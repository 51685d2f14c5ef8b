package ledger

import (
	"context"
	"sync"
)

// ResultStatus is the host's view of a dispatched transfer.
type ResultStatus int

const (
	NotReady ResultStatus = iota
	Successful
	Failed
)

func (s ResultStatus) String() string {
	switch s {
	case Successful:
		return "successful"
	case Failed:
		return "failed"
	default:
		return "not_ready"
	}
}

// Result is one promise result slot handed to a continuation.
type Result struct {
	Status ResultStatus
	Value  []byte // payload on success, if the ledger returns one
	Reason string // failure reason
}

func Success(value []byte) Result { return Result{Status: Successful, Value: value} }

func Failure(reason string) Result { return Result{Status: Failed, Reason: reason} }

// Promise holds the outcome of one asynchronous transfer. It resolves once.
type Promise struct {
	once   sync.Once
	done   chan struct{}
	result Result
	err    error
}

func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolve settles the promise. Later calls are ignored.
func (p *Promise) Resolve(r Result, err error) {
	p.once.Do(func() {
		p.result = r
		p.err = err
		close(p.done)
	})
}

func (p *Promise) Done() <-chan struct{} { return p.done }

// Await blocks until the promise settles or ctx ends.
func (p *Promise) Await(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return Result{Status: NotReady}, ctx.Err()
	}
}
