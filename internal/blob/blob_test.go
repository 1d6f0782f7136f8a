package blob

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObjectAPI fails PutObject a fixed number of times before succeeding.
type fakeObjectAPI struct {
	failures  int
	putCalls  int
	signCalls int
	lastKey   string
	lastData  []byte
	signedTTL time.Duration
}

func (f *fakeObjectAPI) PutObject(ctx context.Context, bucket, key string, r *bytes.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.putCalls++
	f.lastKey = key
	data := make([]byte, r.Len())
	if _, err := r.Read(data); err != nil {
		return minio.UploadInfo{}, err
	}
	f.lastData = data
	if f.putCalls <= f.failures {
		return minio.UploadInfo{}, errors.New("connection reset")
	}
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func (f *fakeObjectAPI) PresignedGetObject(ctx context.Context, bucket, key string, expiry time.Duration, params url.Values) (*url.URL, error) {
	f.signCalls++
	f.signedTTL = expiry
	return url.Parse("https://storage.example.com/" + bucket + "/" + key + "?signature=abc")
}

func (f *fakeObjectAPI) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return true, nil
}

func newTestStore(api objectAPI) *MinioStore {
	return &MinioStore{
		api:          api,
		bucket:       "document-uploads",
		maxAttempts:  3,
		backoffBase:  time.Millisecond,
		signedURLTTL: 7 * 24 * time.Hour,
	}
}

func TestUpload_Success(t *testing.T) {
	api := &fakeObjectAPI{}
	s := newTestStore(api)

	fileURL, err := s.Upload(context.Background(), "uploads/abc/doc.pdf", []byte("payload"), "application/pdf")
	require.NoError(t, err)
	assert.Contains(t, fileURL, "uploads/abc/doc.pdf")
	assert.Equal(t, 1, api.putCalls)
	assert.Equal(t, []byte("payload"), api.lastData)
}

func TestUpload_RetriesThenSucceeds(t *testing.T) {
	api := &fakeObjectAPI{failures: 2}
	s := newTestStore(api)

	fileURL, err := s.Upload(context.Background(), "uploads/abc/doc.pdf", []byte("payload"), "application/pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, fileURL)
	assert.Equal(t, 3, api.putCalls)
	// every attempt saw the full payload from the start
	assert.Equal(t, []byte("payload"), api.lastData)
}

func TestUpload_ExhaustsRetries(t *testing.T) {
	api := &fakeObjectAPI{failures: 10}
	s := newTestStore(api)

	_, err := s.Upload(context.Background(), "uploads/abc/doc.pdf", []byte("payload"), "application/pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Equal(t, 3, api.putCalls)
	assert.Equal(t, 0, api.signCalls, "no URL is minted for a failed upload")
}

func TestUpload_ContextCancelled(t *testing.T) {
	api := &fakeObjectAPI{failures: 10}
	s := newTestStore(api)
	s.backoffBase = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Upload(ctx, "uploads/abc/doc.pdf", []byte("payload"), "application/pdf")
	require.Error(t, err)
	assert.Less(t, api.putCalls, 3)
}

func TestSignedURL(t *testing.T) {
	api := &fakeObjectAPI{}
	s := newTestStore(api)

	u, err := s.SignedURL(context.Background(), "uploads/abc/doc.pdf", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, u, "signature=")
	assert.Equal(t, time.Hour, api.signedTTL)
	assert.Equal(t, 0, api.putCalls, "signing never re-uploads")
}

func TestSignedURL_DefaultTTL(t *testing.T) {
	api := &fakeObjectAPI{}
	s := newTestStore(api)

	_, err := s.SignedURL(context.Background(), "uploads/abc/doc.pdf", 0)
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, api.signedTTL)
}

func TestPing_BucketExists(t *testing.T) {
	s := newTestStore(&fakeObjectAPI{})
	assert.NoError(t, s.Ping(context.Background()))
}

func TestUploadKey(t *testing.T) {
	jobID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	key := UploadKey(jobID.String(), "notes.txt")
	assert.Equal(t, "uploads/11111111-1111-1111-1111-111111111111/notes.txt", key)
}
