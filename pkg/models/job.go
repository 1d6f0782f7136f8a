package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Priority levels assigned at submission based on the account role.
const (
	PriorityStandard = 0
	PriorityPremium  = 10
)

// Job is the durable record of one uploaded document. The API returns a
// job_id on POST /api/v1/uploads; the client polls GET /api/v1/jobs/{job_id}
// until status is completed or failed.
type Job struct {
	JobID        uuid.UUID  `db:"job_id"        json:"job_id"`
	UserID       uuid.UUID  `db:"user_id"       json:"user_id"`
	Filename     string     `db:"filename"      json:"filename"`
	FileSize     int64      `db:"file_size"     json:"file_size"`
	ContentType  string     `db:"content_type"  json:"content_type"`
	StorageKey   string     `db:"storage_key"   json:"storage_key"`
	Status       string     `db:"status"        json:"status"`
	Priority     int        `db:"priority"      json:"priority"`
	RetryCount   int        `db:"retry_count"   json:"retry_count"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// IsTerminal reports whether no further status transition can occur.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// ValidStatus reports whether s is one of the four job statuses.
func ValidStatus(s string) bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}
