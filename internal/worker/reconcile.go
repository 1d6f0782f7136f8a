package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/khaphanpro-123/voichat1012-sub001/internal/metrics"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/queue"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/store"
	"github.com/khaphanpro-123/voichat1012-sub001/pkg/models"
)

// Reconciler rebuilds queue entries lost to cache eviction or a Redis
// restart. The queue is allowed to lose all state precisely because this
// pass re-derives it from the durable store.
type Reconciler struct {
	store     store.Store
	queue     queue.Queue
	interval  time.Duration
	batchSize int
	// minAge keeps the pass from racing a worker that popped the entry
	// moments ago but has not yet marked the row processing.
	minAge time.Duration
}

// NewReconciler creates a reconciler that scans every interval.
func NewReconciler(s store.Store, q queue.Queue, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{
		store:     s,
		queue:     q,
		interval:  interval,
		batchSize: 100,
		minAge:    30 * time.Second,
	}
}

// Run blocks until ctx is cancelled, reconciling on every tick.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Reconcile(ctx)
			if err != nil {
				slog.Error("reconciliation pass failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("reconciled lost queue entries", "count", n)
			}
		}
	}
}

// Reconcile re-enqueues jobs that are queued in the store but absent from
// the queue, and refreshes the queue-length gauge. Re-enqueueing is
// idempotent, so overlapping passes are harmless. Returns how many entries
// were restored.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	jobs, err := r.store.ListJobsByStatus(ctx, models.JobStatusQueued, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list queued jobs: %w", err)
	}

	restored := 0
	cutoff := time.Now().Add(-r.minAge)
	for _, job := range jobs {
		if job.UpdatedAt.After(cutoff) {
			continue
		}
		present, err := r.queue.Contains(ctx, job.JobID)
		if err != nil {
			return restored, err
		}
		if present {
			continue
		}
		err = r.queue.Enqueue(ctx, models.QueueJob{
			JobID:    job.JobID,
			Priority: job.Priority,
			QueuedAt: job.CreatedAt.UnixMilli(),
		})
		if err != nil {
			return restored, fmt.Errorf("re-enqueue job %s: %w", job.JobID, err)
		}
		metrics.JobsReconciledTotal.Inc()
		restored++
	}

	if length, err := r.queue.Length(ctx); err == nil {
		metrics.QueueLength.Set(float64(length))
	}

	return restored, nil
}
