package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	mw "github.com/khaphanpro-123/voichat1012-sub001/internal/api/middleware"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/api/response"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/queue"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/store"
)

const maxListLimit = 100

// NewListJobsHandler returns the handler for GET /api/v1/jobs: the caller's
// jobs, newest first.
func NewListJobsHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
				return
			}
			limit = n
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}

		jobs, err := s.ListJobsByUser(r.Context(), userID, limit)
		if err != nil {
			slog.Error("list jobs failed", "user_id", userID, "error", err)
			response.Unavailable(w, "DATABASE_UNAVAILABLE", "Database temporarily unavailable", 30)
			return
		}

		response.JSON(w, jobs)
	}
}

// QueueStats summarizes pipeline load for dashboards.
type QueueStats struct {
	QueueLength int64          `json:"queue_length"`
	Jobs        map[string]int `json:"jobs"`
}

// NewQueueStatsHandler returns the handler for GET /api/v1/queue/stats.
func NewQueueStatsHandler(s store.Store, q queue.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		length, err := q.Length(r.Context())
		if err != nil {
			slog.Warn("queue length failed", "error", err)
			length = -1
		}

		counts, err := s.CountJobsByStatus(r.Context())
		if err != nil {
			slog.Error("count jobs failed", "error", err)
			response.Unavailable(w, "DATABASE_UNAVAILABLE", "Database temporarily unavailable", 30)
			return
		}

		response.JSON(w, QueueStats{QueueLength: length, Jobs: counts})
	}
}
