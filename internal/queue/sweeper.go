package queue

import (
	"context"
	"log/slog"
	"time"
)

type redispatcher interface {
	RedispatchPending(ctx context.Context, age time.Duration, limit int) (int, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, age time.Duration, limit int) (int, error)
}

// Sweeper periodically re-dispatches transfers whose first dispatch was lost
// and, when it has a reconciler, settles transfers stuck in submitted.
type Sweeper struct {
	app      redispatcher
	rec      reconciler
	interval time.Duration
	age      time.Duration
	recAge   time.Duration
	batch    int
	log      *slog.Logger
}

func NewSweeper(app redispatcher, interval, age time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{app: app, interval: interval, age: age, batch: 100, log: log}
}

// WithReconciler enables the submitted sweep. Only processes holding a ledger
// client can look up receipts.
func (s *Sweeper) WithReconciler(r reconciler, age time.Duration) *Sweeper {
	s.rec, s.recAge = r, age
	return s
}

func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.app.RedispatchPending(ctx, s.age, s.batch)
	if err != nil && ctx.Err() == nil {
		s.log.Error("sweep pending transfers", "err", err)
	}
	if n > 0 {
		s.log.Info("re-dispatched pending transfers", "count", n)
	}
	if s.rec == nil {
		return
	}
	n, err = s.rec.Reconcile(ctx, s.recAge, s.batch)
	if err != nil && ctx.Err() == nil {
		s.log.Error("reconcile submitted transfers", "err", err)
	}
	if n > 0 {
		s.log.Info("reconciled submitted transfers", "count", n)
	}
}
