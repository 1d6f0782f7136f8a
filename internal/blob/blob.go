package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/khaphanpro-123/voichat1012-sub001/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sethvargo/go-retry"
)

// ErrUploadFailed is returned once upload retries are exhausted. It wraps the
// last underlying cause.
var ErrUploadFailed = errors.New("blob upload failed")

// Store persists uploaded bytes durably and mints time-limited retrieval
// URLs. A failed Upload guarantees no partially written object is referenced
// by a job.
type Store interface {
	Ping(ctx context.Context) error
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// UploadKey builds the canonical storage key for a job's payload.
func UploadKey(jobID, filename string) string {
	return fmt.Sprintf("uploads/%s/%s", jobID, filename)
}

// objectAPI is the slice of the minio client the store uses. Satisfied by
// *minio.Client; narrowed so retry behaviour is testable without a backend.
type objectAPI interface {
	PutObject(ctx context.Context, bucket, key string, r *bytes.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration, params url.Values) (*url.URL, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

// minioAPI adapts *minio.Client to objectAPI (PutObject takes an io.Reader;
// the seam pins it to *bytes.Reader so every retry re-reads from the start).
type minioAPI struct {
	client *minio.Client
}

func (a *minioAPI) PutObject(ctx context.Context, bucket, key string, r *bytes.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return a.client.PutObject(ctx, bucket, key, r, size, opts)
}

func (a *minioAPI) PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration, params url.Values) (*url.URL, error) {
	return a.client.PresignedGetObject(ctx, bucket, key, expiry, params)
}

func (a *minioAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return a.client.BucketExists(ctx, bucket)
}

// MinioStore implements Store against any S3-compatible backend (Cloudflare
// R2, MinIO, AWS S3).
type MinioStore struct {
	api          objectAPI
	bucket       string
	maxAttempts  int
	backoffBase  time.Duration
	signedURLTTL time.Duration
}

// NewMinioStore connects to the configured S3-compatible endpoint.
func NewMinioStore(cfg config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &MinioStore{
		api:          &minioAPI{client: client},
		bucket:       cfg.Bucket,
		maxAttempts:  cfg.UploadRetries,
		backoffBase:  cfg.UploadBackoff,
		signedURLTTL: cfg.SignedURLTTL,
	}, nil
}

// Ping verifies the bucket is reachable.
func (s *MinioStore) Ping(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.bucket)
	}
	return nil
}

// Upload writes the object under key, retrying transient failures with
// exponential backoff (1s, 2s, 4s by default), then mints a signed URL for
// it. After exhausting retries it returns ErrUploadFailed carrying the last
// cause; the object is then either fully absent or safely re-uploadable.
func (s *MinioStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	backoff := retry.WithMaxRetries(uint64(s.maxAttempts-1), retry.NewExponential(s.backoffBase))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		_, err := s.api.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			slog.Warn("blob upload attempt failed",
				"key", key, "attempt", attempt, "max_attempts", s.maxAttempts, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w after %d attempts: %w", ErrUploadFailed, attempt, err)
	}

	return s.SignedURL(ctx, key, s.signedURLTTL)
}

// SignedURL mints a fresh time-limited URL for an existing key. Pure read
// side; re-mintable at any time, it never re-uploads.
func (s *MinioStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.signedURLTTL
	}
	u, err := s.api.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("sign url for %q: %w", key, err)
	}
	return u.String(), nil
}
