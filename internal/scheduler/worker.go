package scheduler

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Worker polls the queue and runs the cancellation handler for each due
// order.
type Worker struct {
	queue    *Queue
	cancel   func(ctx context.Context, orderID string) error
	interval time.Duration
}

// NewWorker returns a Worker that polls at the given interval.
func NewWorker(queue *Queue, cancel func(ctx context.Context, orderID string) error, interval time.Duration) *Worker {
	return &Worker{queue: queue, cancel: cancel, interval: interval}
}

// Run polls until the context is cancelled. A failed job is logged and
// dropped; the order stays open and can still be cancelled manually.
func (w *Worker) Run(ctx context.Context) error {
	lg := zctx.From(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		ids, err := w.queue.Due(ctx)
		if err != nil {
			lg.Error("poll cancel queue", zap.Error(err))
			continue
		}
		for _, id := range ids {
			if err := w.cancel(ctx, id); err != nil {
				lg.Error("cancel unpaid order", zap.String("order_id", id), zap.Error(err))
				continue
			}
			lg.Info("processed cancel job", zap.String("order_id", id))
		}
	}
}
