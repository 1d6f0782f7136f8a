package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/khaphanpro-123/voichat1012-sub001/internal/api/middleware"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/api/response"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/queue"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/store"
	"github.com/khaphanpro-123/voichat1012-sub001/pkg/models"
)

// StatusResponse is the polling projection of a job. Timestamps are unix
// milliseconds; zero values are omitted.
type StatusResponse struct {
	JobID       uuid.UUID `json:"job_id"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	QueuedAt    int64     `json:"queued_at,omitempty"`
	StartedAt   int64     `json:"started_at,omitempty"`
	CompletedAt int64     `json:"completed_at,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// NewStatusHandler returns the handler for GET /api/v1/jobs/{jobID}. It
// serves the cached projection when present and falls back to a projection
// synthesized from the durable store, re-warming the cache on the way out.
// On the fallback path jobs belonging to another user answer 404, the same
// hiding the result endpoint does.
func NewStatusHandler(s store.Store, q queue.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a UUID", nil)
			return
		}

		cached, found, err := q.GetStatus(r.Context(), jobID)
		if err != nil {
			// Cache unreachable; the durable store still answers.
			slog.Warn("status cache read failed", "job_id", jobID, "error", err)
		}
		if found {
			response.JSON(w, StatusResponse{
				JobID:       jobID,
				Status:      cached.Status,
				Progress:    cached.Progress,
				QueuedAt:    cached.QueuedAt,
				StartedAt:   cached.StartedAt,
				CompletedAt: cached.CompletedAt,
				Error:       cached.Error,
			})
			return
		}

		job, err := s.GetJob(r.Context(), jobID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "No job with this id", nil)
			return
		}
		if err != nil {
			slog.Error("get job failed", "job_id", jobID, "error", err)
			response.Unavailable(w, "DATABASE_UNAVAILABLE", "Database temporarily unavailable", 30)
			return
		}
		if job.UserID != userID {
			// Do not reveal other users' job ids.
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "No job with this id", nil)
			return
		}

		resp := projectJob(r.Context(), s, job)
		warmStatusCache(r.Context(), q, job.JobID, resp)
		response.JSON(w, resp)
	}
}

// projectJob synthesizes the cached-status shape from the durable row. For a
// failed job the most recent error-log entry is preferred over the row's
// final message, as it carries the freshest detail.
func projectJob(ctx context.Context, s store.Store, job *models.Job) StatusResponse {
	resp := StatusResponse{
		JobID:    job.JobID,
		Status:   job.Status,
		QueuedAt: job.CreatedAt.UnixMilli(),
	}
	if job.StartedAt != nil {
		resp.StartedAt = job.StartedAt.UnixMilli()
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.UnixMilli()
	}

	switch job.Status {
	case models.JobStatusProcessing:
		resp.Progress = models.ProgressExtracting
	case models.JobStatusCompleted:
		resp.Progress = models.ProgressCompleted
	case models.JobStatusFailed:
		resp.Progress = models.ProgressExtracting
		if job.ErrorMessage != nil {
			resp.Error = *job.ErrorMessage
		}
		if entries, err := s.GetErrors(ctx, job.JobID); err == nil && len(entries) > 0 {
			resp.Error = entries[0].Error
		}
	}
	return resp
}

// warmStatusCache writes the synthesized projection back into the cache,
// best effort, so subsequent polls hit Redis again.
func warmStatusCache(ctx context.Context, q queue.Queue, jobID uuid.UUID, resp StatusResponse) {
	status := models.CachedJobStatus{
		Status:      resp.Status,
		Progress:    resp.Progress,
		QueuedAt:    resp.QueuedAt,
		StartedAt:   resp.StartedAt,
		CompletedAt: resp.CompletedAt,
		Error:       resp.Error,
	}
	if err := q.SetStatus(ctx, jobID, status, queue.DefaultStatusTTL); err != nil {
		slog.Warn("status cache warm failed", "job_id", jobID, "error", err)
	}
}
