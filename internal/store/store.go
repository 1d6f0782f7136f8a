package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/khaphanpro-123/voichat1012-sub001/pkg/models"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateJob      = errors.New("job already exists")
	ErrDuplicateResult   = errors.New("result already exists for job")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Store is the durable metadata interface. All database operations go
// through here; it survives cache loss and is the source of truth for job
// existence and outcome.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string, opts ...JobUpdateOption) error
	IncrementRetryCount(ctx context.Context, jobID uuid.UUID) (int, error)
	ListJobsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Job, error)
	ListJobsByStatus(ctx context.Context, status string, limit int) ([]*models.Job, error)
	CountJobsByStatus(ctx context.Context) (map[string]int, error)

	SaveResult(ctx context.Context, result *models.JobResult) error
	GetResult(ctx context.Context, jobID uuid.UUID) (*models.JobResult, error)

	LogError(ctx context.Context, entry *models.JobErrorLog) error
	GetErrors(ctx context.Context, jobID uuid.UUID) ([]*models.JobErrorLog, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}

type jobUpdateParams struct {
	ErrorMessage *string
}

type JobUpdateOption func(*jobUpdateParams)

// WithErrorMessage records the final error on the job row, typically when the
// job transitions to failed.
func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}
