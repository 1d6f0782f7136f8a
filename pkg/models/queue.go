package models

import "github.com/google/uuid"

// QueueJob is the ephemeral queue entry for a job. It lives only in Redis
// and is reconstructible from the jobs table if the cache is lost.
type QueueJob struct {
	JobID    uuid.UUID `json:"job_id"`
	Priority int       `json:"priority"`
	QueuedAt int64     `json:"queued_at"` // unix milliseconds
}

// CachedJobStatus is the read-optimized, TTL-bounded projection of a Job held
// in Redis. It is advisory only: it may be absent at any time, in which case
// the durable store is the source of truth.
type CachedJobStatus struct {
	Status      string `json:"status"`
	Progress    int    `json:"progress"` // 0-100
	QueuedAt    int64  `json:"queued_at,omitempty"`
	StartedAt   int64  `json:"started_at,omitempty"`
	CompletedAt int64  `json:"completed_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Progress milestones reported through the cached status while a job moves
// through the pipeline.
const (
	ProgressQueued     = 0
	ProgressFetched    = 20
	ProgressExtracting = 50
	ProgressCompleted  = 100
)
