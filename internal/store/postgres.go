package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/khaphanpro-123/voichat1012-sub001/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const jobColumns = `job_id, user_id, filename, file_size, content_type, storage_key,
	status, priority, retry_count, error_message, started_at, completed_at, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.JobID, &j.UserID, &j.Filename, &j.FileSize, &j.ContentType, &j.StorageKey,
		&j.Status, &j.Priority, &j.RetryCount, &j.ErrorMessage, &j.StartedAt, &j.CompletedAt,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (job_id, user_id, filename, file_size, content_type, storage_key,
		                   status, priority, retry_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.JobID, job.UserID, job.Filename, job.FileSize, job.ContentType, job.StorageKey,
		job.Status, job.Priority, job.RetryCount, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateJob
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE job_id = $1`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// allowedPrior lists the statuses a job may be in before moving to the keyed
// status. processing -> processing is allowed so a retried job can be
// re-claimed without regressing; started_at is only stamped once.
var allowedPrior = map[string][]string{
	models.JobStatusProcessing: {models.JobStatusQueued, models.JobStatusProcessing},
	models.JobStatusCompleted:  {models.JobStatusProcessing},
	models.JobStatusFailed:     {models.JobStatusProcessing},
}

// UpdateJobStatus moves a job to status with a single conditional UPDATE, so
// two workers can never interleave a forbidden transition. started_at and
// completed_at are stamped exactly once, by the first writer to observe the
// corresponding transition.
func (s *PostgresStore) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	prior, ok := allowedPrior[status]
	if !ok {
		return fmt.Errorf("%w: no transition into %q", ErrInvalidTransition, status)
	}

	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET
		   status = $2,
		   updated_at = $3,
		   started_at = CASE WHEN $2 = 'processing' THEN COALESCE(started_at, $3) ELSE started_at END,
		   completed_at = CASE WHEN $2 = 'completed' THEN COALESCE(completed_at, $3) ELSE completed_at END,
		   error_message = COALESCE($4, error_message)
		 WHERE job_id = $1 AND status = ANY($5)`,
		jobID, status, now, params.ErrorMessage, prior)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE job_id = $1`, jobID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get job status: %w", err)
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}
	return nil
}

func (s *PostgresStore) IncrementRetryCount(ctx context.Context, jobID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`UPDATE jobs SET retry_count = retry_count + 1, updated_at = $2
		 WHERE job_id = $1
		 RETURNING retry_count`,
		jobID, time.Now().UTC()).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment retry count: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListJobsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, normalizeLimit(limit, 50))
	if err != nil {
		return nil, fmt.Errorf("list jobs by user: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (s *PostgresStore) ListJobsByStatus(ctx context.Context, status string, limit int) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
		status, normalizeLimit(limit, 100))
	if err != nil {
		return nil, fmt.Errorf("list jobs by status: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (s *PostgresStore) CountJobsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func collectJobs(rows pgx.Rows) ([]*models.Job, error) {
	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// --- Results ---

func (s *PostgresStore) SaveResult(ctx context.Context, result *models.JobResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_results (job_id, result, created_at) VALUES ($1, $2, $3)`,
		result.JobID, result.Result, result.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateResult
		}
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetResult(ctx context.Context, jobID uuid.UUID) (*models.JobResult, error) {
	var r models.JobResult
	err := s.pool.QueryRow(ctx,
		`SELECT job_id, result, created_at FROM job_results WHERE job_id = $1`, jobID,
	).Scan(&r.JobID, &r.Result, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return &r, nil
}

// --- Error log ---

func (s *PostgresStore) LogError(ctx context.Context, entry *models.JobErrorLog) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_errors (job_id, error, retry_count, timestamp) VALUES ($1, $2, $3, $4)`,
		entry.JobID, entry.Error, entry.RetryCount, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("log error: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetErrors(ctx context.Context, jobID uuid.UUID) ([]*models.JobErrorLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT job_id, error, retry_count, timestamp FROM job_errors
		 WHERE job_id = $1 ORDER BY timestamp DESC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("get errors: %w", err)
	}
	defer rows.Close()

	var entries []*models.JobErrorLog
	for rows.Next() {
		var e models.JobErrorLog
		if err := rows.Scan(&e.JobID, &e.Error, &e.RetryCount, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan error log: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, role, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Role,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
