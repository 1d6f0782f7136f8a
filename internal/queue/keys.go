package queue

import (
	"fmt"

	"github.com/google/uuid"
)

// Redis keys for the scheduling structures. The sorted-set member is the
// bare jobID string, so re-enqueueing a job is idempotent: one job can never
// hold two queue entries.
const (
	queueKey        = "job_queue"
	notificationKey = "job_notification"
)

func JobStatusKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:%s:status", jobID)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
