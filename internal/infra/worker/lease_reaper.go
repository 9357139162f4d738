package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xavierca1/firm-backoffice/internal/entity"
)

// LeaseSweeper is implemented by usecase.GenerationQueue.
type LeaseSweeper interface {
	Kind() entity.QueueKind
	ReclaimExpiredLeases(ctx context.Context) (int, error)
}

// LeaseReaper returns queue items whose lease expired to pending. The
// 30-minute heuristic for items without a lease stays a manual action.
type LeaseReaper struct {
	queues       []LeaseSweeper
	tickInterval time.Duration
	log          logrus.FieldLogger
}

func NewLeaseReaper(interval time.Duration, log logrus.FieldLogger, queues ...LeaseSweeper) *LeaseReaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &LeaseReaper{
		queues:       queues,
		tickInterval: interval,
		log:          log,
	}
}

// Start blocks until ctx is cancelled.
func (w *LeaseReaper) Start(ctx context.Context) {
	w.log.WithField("interval", w.tickInterval.String()).Info("lease reaper started")

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.reap(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("lease reaper stopped")
			return
		case <-ticker.C:
			w.reap(ctx)
		}
	}
}

func (w *LeaseReaper) reap(ctx context.Context) {
	for _, q := range w.queues {
		n, err := q.ReclaimExpiredLeases(ctx)
		if err != nil {
			w.log.WithError(err).WithField("queue", q.Kind()).Error("failed to reclaim expired leases")
			continue
		}
		if n > 0 {
			w.log.WithFields(logrus.Fields{"queue": q.Kind(), "reclaimed": n}).Info("expired leases returned to pending")
		}
	}
}
