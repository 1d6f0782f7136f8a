package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/khaphanpro-123/voichat1012-sub001/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Queue is the low-latency scheduling interface: a priority queue plus a
// disposable status projection. It is never the durability boundary; all of
// its state is reconstructible from the metadata store. Implementations must
// be safe for concurrent use.
type Queue interface {
	Ping(ctx context.Context) error

	Enqueue(ctx context.Context, job models.QueueJob) error
	Dequeue(ctx context.Context) (*models.QueueJob, error)
	WaitForJob(ctx context.Context, timeout time.Duration) (bool, error)
	Length(ctx context.Context) (int64, error)
	Contains(ctx context.Context, jobID uuid.UUID) (bool, error)

	GetStatus(ctx context.Context, jobID uuid.UUID) (*models.CachedJobStatus, bool, error)
	SetStatus(ctx context.Context, jobID uuid.UUID, status models.CachedJobStatus, ttl time.Duration) error
	UpdateStatus(ctx context.Context, jobID uuid.UUID, status string, progress int, ttl time.Duration) error
	UpdateProgress(ctx context.Context, jobID uuid.UUID, progress int, ttl time.Duration) error
	DeleteStatus(ctx context.Context, jobID uuid.UUID) error

	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RedisQueue implements the Queue interface using go-redis/v9. The priority
// queue is a sorted set scored by priority; ZPOPMAX is the atomic claim
// point, so no two workers can pop the same entry.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a new RedisQueue from a Redis URL.
func NewRedisQueue(redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisQueue{client: redis.NewClient(opts)}, nil
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Enqueue adds the job to the priority queue, writes the initial queued
// status, and wakes one idle worker. A job already present keeps a single
// entry; only its score is refreshed.
func (q *RedisQueue) Enqueue(ctx context.Context, job models.QueueJob) error {
	err := q.client.ZAdd(ctx, queueKey, redis.Z{
		Score:  float64(job.Priority),
		Member: job.JobID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	status := models.CachedJobStatus{
		Status:   models.JobStatusQueued,
		Progress: models.ProgressQueued,
		QueuedAt: job.QueuedAt,
	}
	if err := q.SetStatus(ctx, job.JobID, status, DefaultStatusTTL); err != nil {
		return err
	}

	if err := q.client.LPush(ctx, notificationKey, "1").Err(); err != nil {
		return fmt.Errorf("notify workers: %w", err)
	}
	return nil
}

// Dequeue removes and returns the highest-priority job, or nil if the queue
// is empty. The pop is a single server-side operation; it is the mutual
// exclusion point between concurrent workers.
func (q *RedisQueue) Dequeue(ctx context.Context) (*models.QueueJob, error) {
	entries, err := q.client.ZPopMax(ctx, queueKey, 1).Result()
	if err != nil {
		return nil, fmt.Errorf("dequeue job: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	member, ok := entries[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("dequeue job: unexpected member type %T", entries[0].Member)
	}
	jobID, err := uuid.Parse(member)
	if err != nil {
		return nil, fmt.Errorf("dequeue job: parse member %q: %w", member, err)
	}

	return &models.QueueJob{
		JobID:    jobID,
		Priority: int(entries[0].Score),
	}, nil
}

// WaitForJob blocks until a new-job notification arrives or the timeout
// elapses, reporting whether a notification was observed. Callers should
// attempt a Dequeue either way, as a safety net against missed notifications.
func (q *RedisQueue) WaitForJob(ctx context.Context, timeout time.Duration) (bool, error) {
	_, err := q.client.BRPop(ctx, timeout, notificationKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("wait for job: %w", err)
	}
	return true, nil
}

func (q *RedisQueue) Length(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}

// Contains reports whether the job currently has a queue entry. Used by the
// reconciler to find queued jobs the cache has lost.
func (q *RedisQueue) Contains(ctx context.Context, jobID uuid.UUID) (bool, error) {
	err := q.client.ZScore(ctx, queueKey, jobID.String()).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check queue membership: %w", err)
	}
	return true, nil
}

// DefaultStatusTTL bounds how long a cached status projection lives. The
// durable store re-derives it on demand after expiry.
const DefaultStatusTTL = 24 * time.Hour

func (q *RedisQueue) GetStatus(ctx context.Context, jobID uuid.UUID) (*models.CachedJobStatus, bool, error) {
	data, err := q.client.Get(ctx, JobStatusKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get job status: %w", err)
	}

	var status models.CachedJobStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, false, fmt.Errorf("decode job status: %w", err)
	}
	return &status, true, nil
}

func (q *RedisQueue) SetStatus(ctx context.Context, jobID uuid.UUID, status models.CachedJobStatus, ttl time.Duration) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode job status: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	if err := q.client.Set(ctx, JobStatusKey(jobID), data, ttl).Err(); err != nil {
		return fmt.Errorf("set job status: %w", err)
	}
	return nil
}

// UpdateStatus merges status and progress into the existing cached
// projection, preserving any other fields already present.
func (q *RedisQueue) UpdateStatus(ctx context.Context, jobID uuid.UUID, status string, progress int, ttl time.Duration) error {
	current, found, err := q.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}
	if !found {
		current = &models.CachedJobStatus{}
	}
	current.Status = status
	current.Progress = progress
	switch status {
	case models.JobStatusProcessing:
		if current.StartedAt == 0 {
			current.StartedAt = time.Now().UnixMilli()
		}
	case models.JobStatusCompleted, models.JobStatusFailed:
		if current.CompletedAt == 0 {
			current.CompletedAt = time.Now().UnixMilli()
		}
	}
	return q.SetStatus(ctx, jobID, *current, ttl)
}

func (q *RedisQueue) UpdateProgress(ctx context.Context, jobID uuid.UUID, progress int, ttl time.Duration) error {
	current, found, err := q.GetStatus(ctx, jobID)
	if err != nil || !found {
		return err
	}
	current.Progress = progress
	return q.SetStatus(ctx, jobID, *current, ttl)
}

func (q *RedisQueue) DeleteStatus(ctx context.Context, jobID uuid.UUID) error {
	if err := q.client.Del(ctx, JobStatusKey(jobID)).Err(); err != nil {
		return fmt.Errorf("delete job status: %w", err)
	}
	return nil
}

func (q *RedisQueue) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := q.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
