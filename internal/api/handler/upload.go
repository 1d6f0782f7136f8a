package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	mw "github.com/khaphanpro-123/voichat1012-sub001/internal/api/middleware"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/api/response"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/blob"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/metrics"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/queue"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/store"
	"github.com/khaphanpro-123/voichat1012-sub001/pkg/models"
)

// UploadDeps wires the three backing stores into the submission handler.
type UploadDeps struct {
	Store          store.Store
	Queue          queue.Queue
	Blobs          blob.Store
	MaxUploadBytes int64
}

// UploadResponse is returned on accepted submissions.
type UploadResponse struct {
	JobID            uuid.UUID `json:"job_id"`
	Status           string    `json:"status"`
	EstimatedSeconds int       `json:"estimated_seconds"`
}

// NewUploadHandler returns the handler for POST /api/v1/uploads. Write order
// is blob, then job row, then queue entry: once the first two succeed the
// job is durable, and the reconciler covers a crash before the enqueue.
func NewUploadHandler(deps UploadDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}
		role, _ := mw.GetUserRole(r)

		r.Body = http.MaxBytesReader(w, r.Body, deps.MaxUploadBytes+4096)
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
					"File exceeds the upload size limit", nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "No file provided", nil)
			return
		}
		defer file.Close()

		if header.Size > deps.MaxUploadBytes {
			response.Error(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				"File exceeds the upload size limit", nil)
			return
		}
		if header.Size == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "File is empty", nil)
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read file", nil)
			return
		}

		// Callers may pass their own job_id for idempotent resubmission;
		// otherwise one is assigned here.
		jobID := uuid.New()
		if raw := r.FormValue("job_id"); raw != "" {
			jobID, err = uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "job_id must be a UUID", nil)
				return
			}
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		key := blob.UploadKey(jobID.String(), header.Filename)
		if _, err := deps.Blobs.Upload(r.Context(), key, data, contentType); err != nil {
			slog.Error("blob upload failed", "job_id", jobID, "error", err)
			response.Unavailable(w, "STORAGE_UNAVAILABLE", "Storage service temporarily unavailable", 60)
			return
		}

		now := time.Now().UTC()
		job := &models.Job{
			JobID:       jobID,
			UserID:      userID,
			Filename:    header.Filename,
			FileSize:    header.Size,
			ContentType: contentType,
			StorageKey:  key,
			Status:      models.JobStatusQueued,
			Priority:    models.PriorityForRole(role),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := deps.Store.CreateJob(r.Context(), job); err != nil {
			if errors.Is(err, store.ErrDuplicateJob) {
				response.Error(w, http.StatusConflict, "DUPLICATE_JOB",
					"A job with this id already exists", map[string]any{"job_id": jobID})
				return
			}
			slog.Error("create job failed", "job_id", jobID, "error", err)
			response.Unavailable(w, "DATABASE_UNAVAILABLE", "Database temporarily unavailable", 60)
			return
		}

		err = deps.Queue.Enqueue(r.Context(), models.QueueJob{
			JobID:    jobID,
			Priority: job.Priority,
			QueuedAt: now.UnixMilli(),
		})
		if err != nil {
			// The job row exists, so the reconciler will restore the queue
			// entry; the client still gets its job id.
			slog.Error("enqueue failed, leaving job for reconciliation", "job_id", jobID, "error", err)
		}

		metrics.JobsSubmittedTotal.Inc()
		response.Accepted(w, UploadResponse{
			JobID:            jobID,
			Status:           models.JobStatusQueued,
			EstimatedSeconds: estimateSeconds(header.Size),
		})
	}
}

// estimateSeconds guesses processing time at roughly ten seconds per megabyte.
func estimateSeconds(size int64) int {
	mb := (size + 1024*1024 - 1) / (1024 * 1024)
	return int(mb) * 10
}
