package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/khaphanpro-123/voichat1012-sub001/internal/blob"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/extract"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/metrics"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/queue"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/store"
	"github.com/khaphanpro-123/voichat1012-sub001/pkg/models"
)

// Config tunes a worker's loop. MaxRetries bounds processing attempts per
// job; after the count reaches it, the job goes to failed permanently.
type Config struct {
	MaxRetries   int
	WaitTimeout  time.Duration
	StatusTTL    time.Duration
	SignedURLTTL time.Duration
}

// Worker executes the claim/run/persist state machine in a loop. All
// coordination with other workers happens through the queue and the store;
// no in-process state is shared.
type Worker struct {
	id        int
	store     store.Store
	queue     queue.Queue
	blobs     blob.Store
	extractor extract.Extractor
	cfg       Config
}

// New creates a worker. The id only labels log lines and carries no
// coordination meaning.
func New(id int, s store.Store, q queue.Queue, b blob.Store, e extract.Extractor, cfg Config) *Worker {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 5 * time.Second
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = queue.DefaultStatusTTL
	}
	return &Worker{id: id, store: s, queue: q, blobs: b, extractor: e, cfg: cfg}
}

// Run blocks until ctx is cancelled. Each iteration waits for a wake
// notification (bounded), then drains the queue; draining on timeout too
// defends against missed notifications.
func (w *Worker) Run(ctx context.Context) {
	log := slog.With("worker_id", w.id)
	log.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopped")
			return
		default:
		}

		if _, err := w.queue.WaitForJob(ctx, w.cfg.WaitTimeout); err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Error("wait for job failed", "error", err)
			sleepCtx(ctx, w.cfg.WaitTimeout)
			continue
		}

		w.drain(ctx, log)
	}
}

// drain pops and processes jobs until the queue is empty.
func (w *Worker) drain(ctx context.Context, log *slog.Logger) {
	for ctx.Err() == nil {
		qj, err := w.queue.Dequeue(ctx)
		if err != nil {
			log.Error("dequeue failed", "error", err)
			return
		}
		if qj == nil {
			return
		}
		w.process(ctx, qj)
	}
}

// process runs one claimed job through the state machine. The claim is
// already exclusive (the pop was atomic), so this worker is the only mutator
// of the job row until it reaches a rest state.
func (w *Worker) process(ctx context.Context, qj *models.QueueJob) {
	log := slog.With("worker_id", w.id, "job_id", qj.JobID)

	job, err := w.store.GetJob(ctx, qj.JobID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("queue entry for unknown job, dropping")
		return
	}
	if err != nil {
		log.Error("load job failed", "error", err)
		w.requeue(ctx, *qj, log)
		return
	}
	if job.IsTerminal() {
		log.Warn("stale queue entry for terminal job", "status", job.Status)
		return
	}

	// Both stores must say processing before any external work begins, so a
	// crash from here on is detectable rather than silent.
	if err := w.store.UpdateJobStatus(ctx, job.JobID, models.JobStatusProcessing); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			log.Warn("job no longer claimable", "error", err)
			return
		}
		log.Error("mark processing failed", "error", err)
		w.requeue(ctx, *qj, log)
		return
	}
	if err := w.queue.UpdateStatus(ctx, job.JobID, models.JobStatusProcessing, models.ProgressQueued, w.cfg.StatusTTL); err != nil {
		// The cached projection is advisory; the durable store already holds
		// the truth.
		log.Warn("cache status update failed", "error", err)
	}

	started := time.Now()
	log.Info("processing job", "filename", job.Filename, "attempt", job.RetryCount+1)

	result, err := w.runJob(ctx, job)
	if err != nil {
		w.handleFailure(ctx, job, err, log)
		return
	}

	// Result becomes durable strictly before the status flips, so a poller
	// that observes completed is guaranteed the result row exists.
	saved := &models.JobResult{JobID: job.JobID, Result: *result, CreatedAt: time.Now().UTC()}
	if err := w.store.SaveResult(ctx, saved); err != nil {
		if !errors.Is(err, store.ErrDuplicateResult) {
			w.handleFailure(ctx, job, fmt.Errorf("persist result: %w", err), log)
			return
		}
		// A previous attempt already persisted the result; flipping the
		// status is all that remains.
		log.Warn("result already persisted, completing")
	}
	if err := w.store.UpdateJobStatus(ctx, job.JobID, models.JobStatusCompleted); err != nil {
		// The result is already durable. Re-enqueue so a later attempt can
		// retry the flip; the duplicate-result path completes without redoing
		// the persisted work.
		log.Error("mark completed failed", "error", err)
		w.requeue(ctx, models.QueueJob{
			JobID:    job.JobID,
			Priority: job.Priority,
			QueuedAt: time.Now().UnixMilli(),
		}, log)
		return
	}
	if err := w.queue.UpdateStatus(ctx, job.JobID, models.JobStatusCompleted, models.ProgressCompleted, w.cfg.StatusTTL); err != nil {
		log.Warn("cache status update failed", "error", err)
	}

	metrics.JobsCompletedTotal.Inc()
	metrics.JobProcessingDuration.Observe(time.Since(started).Seconds())
	log.Info("job completed", "duration_ms", time.Since(started).Milliseconds(), "word_count", result.WordCount)
}

// runJob mints a fresh signed URL for the payload and invokes the external
// extraction step.
func (w *Worker) runJob(ctx context.Context, job *models.Job) (*models.ExtractionResult, error) {
	fileURL, err := w.blobs.SignedURL(ctx, job.StorageKey, w.cfg.SignedURLTTL)
	if err != nil {
		return nil, fmt.Errorf("mint signed url: %w", err)
	}
	if err := w.queue.UpdateProgress(ctx, job.JobID, models.ProgressFetched, w.cfg.StatusTTL); err != nil {
		slog.Warn("progress update failed", "job_id", job.JobID, "error", err)
	}

	if err := w.queue.UpdateProgress(ctx, job.JobID, models.ProgressExtracting, w.cfg.StatusTTL); err != nil {
		slog.Warn("progress update failed", "job_id", job.JobID, "error", err)
	}
	return w.extractor.Extract(ctx, extract.Request{
		JobID:       job.JobID,
		FileURL:     fileURL,
		Filename:    job.Filename,
		ContentType: job.ContentType,
	})
}

// handleFailure logs the error durably, bumps the retry count, and either
// re-enqueues the job or marks it permanently failed. The uploaded blob is
// never rolled back; it stays available for diagnosis and later retries.
func (w *Worker) handleFailure(ctx context.Context, job *models.Job, cause error, log *slog.Logger) {
	log.Error("job processing failed", "error", cause)

	// Errors while logging errors never fail the operation itself.
	entry := &models.JobErrorLog{
		JobID:      job.JobID,
		Error:      cause.Error(),
		RetryCount: job.RetryCount,
		Timestamp:  time.Now().UTC(),
	}
	if err := w.store.LogError(ctx, entry); err != nil {
		log.Warn("error log write failed", "error", err)
	}

	count, err := w.store.IncrementRetryCount(ctx, job.JobID)
	if err != nil {
		// Without a trustworthy count the retry loop could run unbounded;
		// treat the budget as spent.
		log.Error("increment retry count failed", "error", err)
		count = w.cfg.MaxRetries
	}

	if count < w.cfg.MaxRetries {
		metrics.JobRetriesTotal.Inc()
		w.requeue(ctx, models.QueueJob{
			JobID:    job.JobID,
			Priority: job.Priority,
			QueuedAt: time.Now().UnixMilli(),
		}, log)
		log.Info("job re-enqueued for retry", "attempt", count, "max_retries", w.cfg.MaxRetries)
		return
	}

	if err := w.store.UpdateJobStatus(ctx, job.JobID, models.JobStatusFailed, store.WithErrorMessage(cause.Error())); err != nil {
		log.Error("mark failed failed", "error", err)
	}
	cached := models.CachedJobStatus{
		Status:      models.JobStatusFailed,
		Progress:    models.ProgressExtracting,
		Error:       cause.Error(),
		CompletedAt: time.Now().UnixMilli(),
	}
	if err := w.queue.SetStatus(ctx, job.JobID, cached, w.cfg.StatusTTL); err != nil {
		log.Warn("cache status update failed", "error", err)
	}

	metrics.JobsFailedTotal.Inc()
	log.Warn("job failed permanently", "retries", count)
}

func (w *Worker) requeue(ctx context.Context, qj models.QueueJob, log *slog.Logger) {
	if err := w.queue.Enqueue(ctx, qj); err != nil {
		// The job row still says queued or processing; the reconciler will
		// pick it up once the queue is reachable again.
		log.Error("re-enqueue failed", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
