package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/khaphanpro-123/voichat1012-sub001/internal/api/middleware"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/api/response"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/store"
	"github.com/khaphanpro-123/voichat1012-sub001/pkg/models"
)

// NewResultHandler returns the handler for GET /api/v1/jobs/{jobID}/result.
// Once a job reports completed, the result row is guaranteed to exist: the
// worker persists it before flipping the status.
func NewResultHandler(s store.Store) http.HandlerFunc {
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

		if job.Status != models.JobStatusCompleted {
			response.Error(w, http.StatusConflict, "RESULT_NOT_READY",
				"Job has not completed", map[string]any{"status": job.Status})
			return
		}

		result, err := s.GetResult(r.Context(), jobID)
		if err != nil {
			slog.Error("get result failed", "job_id", jobID, "error", err)
			response.Unavailable(w, "DATABASE_UNAVAILABLE", "Database temporarily unavailable", 30)
			return
		}

		response.JSON(w, result)
	}
}
