package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/khaphanpro-123/voichat1012-sub001/internal/api/middleware"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/queue"
	"github.com/khaphanpro-123/voichat1012-sub001/internal/store"
	"github.com/khaphanpro-123/voichat1012-sub001/pkg/models"
)

// --- fakes ---

// fakeStore implements the store methods the handlers touch; embedding the
// interface panics loudly on anything a test forgot to stub.
type fakeStore struct {
	store.Store
	createJob func(ctx context.Context, job *models.Job) error
	getJob    func(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	getResult func(ctx context.Context, jobID uuid.UUID) (*models.JobResult, error)
	getErrors func(ctx context.Context, jobID uuid.UUID) ([]*models.JobErrorLog, error)
	listByUsr func(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Job, error)
	countBySt func(ctx context.Context) (map[string]int, error)
}

func (f *fakeStore) CreateJob(ctx context.Context, job *models.Job) error {
	return f.createJob(ctx, job)
}

func (f *fakeStore) GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	return f.getJob(ctx, jobID)
}

func (f *fakeStore) GetResult(ctx context.Context, jobID uuid.UUID) (*models.JobResult, error) {
	return f.getResult(ctx, jobID)
}

func (f *fakeStore) GetErrors(ctx context.Context, jobID uuid.UUID) ([]*models.JobErrorLog, error) {
	if f.getErrors == nil {
		return nil, nil
	}
	return f.getErrors(ctx, jobID)
}

func (f *fakeStore) ListJobsByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Job, error) {
	return f.listByUsr(ctx, userID, limit)
}

func (f *fakeStore) CountJobsByStatus(ctx context.Context) (map[string]int, error) {
	return f.countBySt(ctx)
}

type fakeQueue struct {
	queue.Queue
	enqueue   func(ctx context.Context, job models.QueueJob) error
	getStatus func(ctx context.Context, jobID uuid.UUID) (*models.CachedJobStatus, bool, error)
	setStatus func(ctx context.Context, jobID uuid.UUID, status models.CachedJobStatus, ttl time.Duration) error
	length    func(ctx context.Context) (int64, error)
}

func (f *fakeQueue) Enqueue(ctx context.Context, job models.QueueJob) error {
	return f.enqueue(ctx, job)
}

func (f *fakeQueue) GetStatus(ctx context.Context, jobID uuid.UUID) (*models.CachedJobStatus, bool, error) {
	return f.getStatus(ctx, jobID)
}

func (f *fakeQueue) SetStatus(ctx context.Context, jobID uuid.UUID, status models.CachedJobStatus, ttl time.Duration) error {
	if f.setStatus == nil {
		return nil
	}
	return f.setStatus(ctx, jobID, status, ttl)
}

func (f *fakeQueue) Length(ctx context.Context) (int64, error) {
	return f.length(ctx)
}

type fakeBlob struct {
	upload func(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

func (f *fakeBlob) Ping(ctx context.Context) error { return nil }

func (f *fakeBlob) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if f.upload == nil {
		return "https://storage.test/" + key, nil
	}
	return f.upload(ctx, key, data, contentType)
}

func (f *fakeBlob) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://storage.test/" + key + "?sig=abc", nil
}

// --- helpers ---

func authedCtx(ctx context.Context, userID uuid.UUID, role string) context.Context {
	ctx = mw.SetUserID(ctx, userID)
	return mw.SetUserRole(ctx, role)
}

func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func uploadReq(t *testing.T, userID uuid.UUID, role, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	body, contentType := multipartUpload(t, filename, content, fields)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	r.Header.Set("Content-Type", contentType)
	return r.WithContext(authedCtx(r.Context(), userID, role))
}

func parseData(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int) map[string]any {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("expected %d, got %d: %s", wantStatus, rec.Code, rec.Body.String())
	}
	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env.Data
}

func parseErr(t *testing.T, rec *httptest.ResponseRecorder) (int, string) {
	t.Helper()
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return rec.Code, env.Error.Code
}

func okUploadDeps() (UploadDeps, *models.Job, *models.QueueJob) {
	created := &models.Job{}
	enqueued := &models.QueueJob{}
	deps := UploadDeps{
		Store: &fakeStore{
			createJob: func(ctx context.Context, job *models.Job) error {
				*created = *job
				return nil
			},
		},
		Queue: &fakeQueue{
			enqueue: func(ctx context.Context, job models.QueueJob) error {
				*enqueued = job
				return nil
			},
		},
		Blobs:          &fakeBlob{},
		MaxUploadBytes: 50 * 1024 * 1024,
	}
	return deps, created, enqueued
}

// --- upload ---

func TestUploadHandler_Accepted(t *testing.T) {
	deps, created, enqueued := okUploadDeps()
	h := NewUploadHandler(deps)
	rec := httptest.NewRecorder()
	userID := uuid.New()

	h.ServeHTTP(rec, uploadReq(t, userID, models.RoleStandard, "notes.txt", []byte("hello vocabulary"), nil))

	data := parseData(t, rec, http.StatusAccepted)
	if data["status"] != models.JobStatusQueued {
		t.Errorf("unexpected status: %v", data["status"])
	}
	if data["estimated_seconds"] != float64(10) {
		t.Errorf("unexpected estimate: %v", data["estimated_seconds"])
	}

	if created.UserID != userID {
		t.Errorf("job owner = %s, want %s", created.UserID, userID)
	}
	if created.Filename != "notes.txt" {
		t.Errorf("filename = %q", created.Filename)
	}
	if created.Priority != models.PriorityStandard {
		t.Errorf("priority = %d", created.Priority)
	}
	if enqueued.JobID != created.JobID {
		t.Errorf("enqueued %s, created %s", enqueued.JobID, created.JobID)
	}
}

func TestUploadHandler_PremiumPriority(t *testing.T) {
	deps, created, _ := okUploadDeps()
	h := NewUploadHandler(deps)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadReq(t, uuid.New(), models.RolePremium, "notes.txt", []byte("x"), nil))

	parseData(t, rec, http.StatusAccepted)
	if created.Priority != models.PriorityPremium {
		t.Errorf("priority = %d, want %d", created.Priority, models.PriorityPremium)
	}
}

func TestUploadHandler_MissingAuth(t *testing.T) {
	deps, _, _ := okUploadDeps()
	h := NewUploadHandler(deps)
	rec := httptest.NewRecorder()

	body, contentType := multipartUpload(t, "notes.txt", []byte("x"), nil)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	r.Header.Set("Content-Type", contentType)
	h.ServeHTTP(rec, r)

	code, errCode := parseErr(t, rec)
	if code != http.StatusUnauthorized || errCode != "INVALID_TOKEN" {
		t.Errorf("got %d %s", code, errCode)
	}
}

func TestUploadHandler_NoFile(t *testing.T) {
	deps, _, _ := okUploadDeps()
	h := NewUploadHandler(deps)
	rec := httptest.NewRecorder()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.Close()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &buf)
	r.Header.Set("Content-Type", w.FormDataContentType())
	r = r.WithContext(authedCtx(r.Context(), uuid.New(), models.RoleStandard))
	h.ServeHTTP(rec, r)

	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Errorf("got %d %s", code, errCode)
	}
}

func TestUploadHandler_FileTooLarge(t *testing.T) {
	deps, _, _ := okUploadDeps()
	deps.MaxUploadBytes = 8
	h := NewUploadHandler(deps)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadReq(t, uuid.New(), models.RoleStandard, "big.bin", bytes.Repeat([]byte("a"), 64), nil))

	code, errCode := parseErr(t, rec)
	if code != http.StatusRequestEntityTooLarge || errCode != "FILE_TOO_LARGE" {
		t.Errorf("got %d %s", code, errCode)
	}
}

func TestUploadHandler_EmptyFile(t *testing.T) {
	deps, _, _ := okUploadDeps()
	h := NewUploadHandler(deps)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadReq(t, uuid.New(), models.RoleStandard, "empty.txt", nil, nil))

	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Errorf("got %d %s", code, errCode)
	}
}

func TestUploadHandler_ExplicitJobID(t *testing.T) {
	deps, created, _ := okUploadDeps()
	h := NewUploadHandler(deps)
	rec := httptest.NewRecorder()
	jobID := uuid.New()

	h.ServeHTTP(rec, uploadReq(t, uuid.New(), models.RoleStandard, "notes.txt", []byte("x"),
		map[string]string{"job_id": jobID.String()}))

	parseData(t, rec, http.StatusAccepted)
	if created.JobID != jobID {
		t.Errorf("job id = %s, want %s", created.JobID, jobID)
	}
}

func TestUploadHandler_BadJobID(t *testing.T) {
	deps, _, _ := okUploadDeps()
	h := NewUploadHandler(deps)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadReq(t, uuid.New(), models.RoleStandard, "notes.txt", []byte("x"),
		map[string]string{"job_id": "not-a-uuid"}))

	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Errorf("got %d %s", code, errCode)
	}
}

func TestUploadHandler_DuplicateJob(t *testing.T) {
	deps, _, _ := okUploadDeps()
	deps.Store = &fakeStore{
		createJob: func(ctx context.Context, job *models.Job) error {
			return store.ErrDuplicateJob
		},
	}
	h := NewUploadHandler(deps)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadReq(t, uuid.New(), models.RoleStandard, "notes.txt", []byte("x"), nil))

	code, errCode := parseErr(t, rec)
	if code != http.StatusConflict || errCode != "DUPLICATE_JOB" {
		t.Errorf("got %d %s", code, errCode)
	}
}

func TestUploadHandler_StorageDown(t *testing.T) {
	deps, _, _ := okUploadDeps()
	deps.Blobs = &fakeBlob{
		upload: func(ctx context.Context, key string, data []byte, contentType string) (string, error) {
			return "", errors.New("connection refused")
		},
	}
	h := NewUploadHandler(deps)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadReq(t, uuid.New(), models.RoleStandard, "notes.txt", []byte("x"), nil))

	code, errCode := parseErr(t, rec)
	if code != http.StatusServiceUnavailable || errCode != "STORAGE_UNAVAILABLE" {
		t.Errorf("got %d %s", code, errCode)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}

func TestUploadHandler_EnqueueFailureStillAccepted(t *testing.T) {
	deps, created, _ := okUploadDeps()
	deps.Queue = &fakeQueue{
		enqueue: func(ctx context.Context, job models.QueueJob) error {
			return errors.New("redis down")
		},
	}
	h := NewUploadHandler(deps)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, uploadReq(t, uuid.New(), models.RoleStandard, "notes.txt", []byte("x"), nil))

	// The job row is durable; reconciliation will enqueue it later.
	parseData(t, rec, http.StatusAccepted)
	if created.Status != models.JobStatusQueued {
		t.Errorf("status = %q", created.Status)
	}
}

func TestEstimateSeconds(t *testing.T) {
	cases := []struct {
		size int64
		want int
	}{
		{1, 10},
		{1024 * 1024, 10},
		{1024*1024 + 1, 20},
		{5 * 1024 * 1024, 50},
	}
	for _, tc := range cases {
		if got := estimateSeconds(tc.size); got != tc.want {
			t.Errorf("estimateSeconds(%d) = %d, want %d", tc.size, got, tc.want)
		}
	}
}

// --- status ---

func statusServe(h http.HandlerFunc, jobID string, userID uuid.UUID) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/api/v1/jobs/{jobID}", h)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID, nil)
	req = req.WithContext(authedCtx(req.Context(), userID, models.RoleStandard))
	r.ServeHTTP(rec, req)
	return rec
}

func TestStatusHandler_CacheHit(t *testing.T) {
	jobID := uuid.New()
	q := &fakeQueue{
		getStatus: func(ctx context.Context, id uuid.UUID) (*models.CachedJobStatus, bool, error) {
			return &models.CachedJobStatus{
				Status:    models.JobStatusProcessing,
				Progress:  models.ProgressExtracting,
				QueuedAt:  1000,
				StartedAt: 2000,
			}, true, nil
		},
	}
	s := &fakeStore{
		getJob: func(ctx context.Context, id uuid.UUID) (*models.Job, error) {
			t.Fatal("store must not be hit on a cache hit")
			return nil, nil
		},
	}

	rec := statusServe(NewStatusHandler(s, q), jobID.String(), uuid.New())
	data := parseData(t, rec, http.StatusOK)
	if data["status"] != models.JobStatusProcessing {
		t.Errorf("status = %v", data["status"])
	}
	if data["progress"] != float64(models.ProgressExtracting) {
		t.Errorf("progress = %v", data["progress"])
	}
}

func TestStatusHandler_FallbackToStore(t *testing.T) {
	jobID := uuid.New()
	userID := uuid.New()
	now := time.Now().UTC()
	warmed := false
	q := &fakeQueue{
		getStatus: func(ctx context.Context, id uuid.UUID) (*models.CachedJobStatus, bool, error) {
			return nil, false, nil
		},
		setStatus: func(ctx context.Context, id uuid.UUID, status models.CachedJobStatus, ttl time.Duration) error {
			warmed = true
			return nil
		},
	}
	s := &fakeStore{
		getJob: func(ctx context.Context, id uuid.UUID) (*models.Job, error) {
			return &models.Job{
				JobID:     jobID,
				UserID:    userID,
				Status:    models.JobStatusQueued,
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		},
	}

	rec := statusServe(NewStatusHandler(s, q), jobID.String(), userID)
	data := parseData(t, rec, http.StatusOK)
	if data["status"] != models.JobStatusQueued {
		t.Errorf("status = %v", data["status"])
	}
	if data["queued_at"] != float64(now.UnixMilli()) {
		t.Errorf("queued_at = %v", data["queued_at"])
	}
	if !warmed {
		t.Error("cache was not re-warmed from the durable row")
	}
}

func TestStatusHandler_CacheErrorFallsBack(t *testing.T) {
	jobID := uuid.New()
	userID := uuid.New()
	q := &fakeQueue{
		getStatus: func(ctx context.Context, id uuid.UUID) (*models.CachedJobStatus, bool, error) {
			return nil, false, errors.New("redis down")
		},
	}
	s := &fakeStore{
		getJob: func(ctx context.Context, id uuid.UUID) (*models.Job, error) {
			return &models.Job{JobID: jobID, UserID: userID, Status: models.JobStatusQueued}, nil
		},
	}

	rec := statusServe(NewStatusHandler(s, q), jobID.String(), userID)
	parseData(t, rec, http.StatusOK)
}

func TestStatusHandler_FailedJobUsesLatestErrorLog(t *testing.T) {
	jobID := uuid.New()
	userID := uuid.New()
	msg := "row message"
	q := &fakeQueue{
		getStatus: func(ctx context.Context, id uuid.UUID) (*models.CachedJobStatus, bool, error) {
			return nil, false, nil
		},
	}
	s := &fakeStore{
		getJob: func(ctx context.Context, id uuid.UUID) (*models.Job, error) {
			return &models.Job{JobID: jobID, UserID: userID, Status: models.JobStatusFailed, ErrorMessage: &msg}, nil
		},
		getErrors: func(ctx context.Context, id uuid.UUID) ([]*models.JobErrorLog, error) {
			return []*models.JobErrorLog{
				{JobID: jobID, Error: "latest attempt detail", RetryCount: 2},
				{JobID: jobID, Error: "older detail", RetryCount: 1},
			}, nil
		},
	}

	rec := statusServe(NewStatusHandler(s, q), jobID.String(), userID)
	data := parseData(t, rec, http.StatusOK)
	if data["error"] != "latest attempt detail" {
		t.Errorf("error = %v", data["error"])
	}
}

func TestStatusHandler_NotFound(t *testing.T) {
	q := &fakeQueue{
		getStatus: func(ctx context.Context, id uuid.UUID) (*models.CachedJobStatus, bool, error) {
			return nil, false, nil
		},
	}
	s := &fakeStore{
		getJob: func(ctx context.Context, id uuid.UUID) (*models.Job, error) {
			return nil, store.ErrNotFound
		},
	}

	rec := statusServe(NewStatusHandler(s, q), uuid.NewString(), uuid.New())
	code, errCode := parseErr(t, rec)
	if code != http.StatusNotFound || errCode != "JOB_NOT_FOUND" {
		t.Errorf("got %d %s", code, errCode)
	}
}

func TestStatusHandler_OtherUsersJobHidden(t *testing.T) {
	jobID := uuid.New()
	owner := uuid.New()
	detail := "extractor rejected document"
	q := &fakeQueue{
		getStatus: func(ctx context.Context, id uuid.UUID) (*models.CachedJobStatus, bool, error) {
			return nil, false, nil
		},
	}
	s := &fakeStore{
		getJob: func(ctx context.Context, id uuid.UUID) (*models.Job, error) {
			return &models.Job{JobID: jobID, UserID: owner, Status: models.JobStatusFailed, ErrorMessage: &detail}, nil
		},
	}

	// A different authenticated user sees 404, never the failure detail.
	rec := statusServe(NewStatusHandler(s, q), jobID.String(), uuid.New())
	code, errCode := parseErr(t, rec)
	if code != http.StatusNotFound || errCode != "JOB_NOT_FOUND" {
		t.Errorf("got %d %s", code, errCode)
	}
	if strings.Contains(rec.Body.String(), detail) {
		t.Errorf("response leaked another user's error detail: %s", rec.Body.String())
	}
}

func TestStatusHandler_Unauthenticated(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/jobs/{jobID}", NewStatusHandler(&fakeStore{}, &fakeQueue{}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("code = %d, want 401", rec.Code)
	}
}

func TestStatusHandler_BadJobID(t *testing.T) {
	rec := statusServe(NewStatusHandler(&fakeStore{}, &fakeQueue{}), "not-a-uuid", uuid.New())
	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Errorf("got %d %s", code, errCode)
	}
}

// --- result ---

func resultServe(h http.HandlerFunc, jobID string, userID uuid.UUID) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/api/v1/jobs/{jobID}/result", h)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID+"/result", nil)
	req = req.WithContext(authedCtx(req.Context(), userID, models.RoleStandard))
	r.ServeHTTP(rec, req)
	return rec
}

func TestResultHandler_Completed(t *testing.T) {
	jobID := uuid.New()
	userID := uuid.New()
	s := &fakeStore{
		getJob: func(ctx context.Context, id uuid.UUID) (*models.Job, error) {
			return &models.Job{JobID: jobID, UserID: userID, Status: models.JobStatusCompleted}, nil
		},
		getResult: func(ctx context.Context, id uuid.UUID) (*models.JobResult, error) {
			return &models.JobResult{
				JobID: jobID,
				Result: models.ExtractionResult{
					Vocabulary: []models.VocabularyEntry{{Word: "luminous"}},
					WordCount:  120,
				},
			}, nil
		},
	}

	rec := resultServe(NewResultHandler(s), jobID.String(), userID)
	data := parseData(t, rec, http.StatusOK)
	result, ok := data["result"].(map[string]any)
	if !ok {
		t.Fatalf("missing result payload: %v", data)
	}
	if result["word_count"] != float64(120) {
		t.Errorf("word_count = %v", result["word_count"])
	}
}

func TestResultHandler_NotReady(t *testing.T) {
	jobID := uuid.New()
	userID := uuid.New()
	s := &fakeStore{
		getJob: func(ctx context.Context, id uuid.UUID) (*models.Job, error) {
			return &models.Job{JobID: jobID, UserID: userID, Status: models.JobStatusProcessing}, nil
		},
	}

	rec := resultServe(NewResultHandler(s), jobID.String(), userID)
	code, errCode := parseErr(t, rec)
	if code != http.StatusConflict || errCode != "RESULT_NOT_READY" {
		t.Errorf("got %d %s", code, errCode)
	}
}

func TestResultHandler_OtherUsersJobHidden(t *testing.T) {
	jobID := uuid.New()
	s := &fakeStore{
		getJob: func(ctx context.Context, id uuid.UUID) (*models.Job, error) {
			return &models.Job{JobID: jobID, UserID: uuid.New(), Status: models.JobStatusCompleted}, nil
		},
	}

	rec := resultServe(NewResultHandler(s), jobID.String(), uuid.New())
	code, errCode := parseErr(t, rec)
	if code != http.StatusNotFound || errCode != "JOB_NOT_FOUND" {
		t.Errorf("got %d %s", code, errCode)
	}
}

func TestResultHandler_JobNotFound(t *testing.T) {
	s := &fakeStore{
		getJob: func(ctx context.Context, id uuid.UUID) (*models.Job, error) {
			return nil, store.ErrNotFound
		},
	}

	rec := resultServe(NewResultHandler(s), uuid.NewString(), uuid.New())
	code, errCode := parseErr(t, rec)
	if code != http.StatusNotFound || errCode != "JOB_NOT_FOUND" {
		t.Errorf("got %d %s", code, errCode)
	}
}

// --- list jobs / queue stats ---

func TestListJobsHandler_ReturnsOwnJobs(t *testing.T) {
	userID := uuid.New()
	var gotLimit int
	s := &fakeStore{
		listByUsr: func(ctx context.Context, uid uuid.UUID, limit int) ([]*models.Job, error) {
			gotLimit = limit
			if uid != userID {
				t.Errorf("listed for %s, want %s", uid, userID)
			}
			return []*models.Job{{JobID: uuid.New(), UserID: uid}}, nil
		},
	}

	h := NewListJobsHandler(s)
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	r = r.WithContext(authedCtx(r.Context(), userID, models.RoleStandard))
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	if gotLimit != 50 {
		t.Errorf("default limit = %d", gotLimit)
	}
}

func TestListJobsHandler_LimitCapped(t *testing.T) {
	var gotLimit int
	s := &fakeStore{
		listByUsr: func(ctx context.Context, uid uuid.UUID, limit int) ([]*models.Job, error) {
			gotLimit = limit
			return nil, nil
		},
	}

	h := NewListJobsHandler(s)
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/jobs?limit=5000", nil)
	r = r.WithContext(authedCtx(r.Context(), uuid.New(), models.RoleStandard))
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	if gotLimit != maxListLimit {
		t.Errorf("limit = %d, want %d", gotLimit, maxListLimit)
	}
}

func TestListJobsHandler_BadLimit(t *testing.T) {
	h := NewListJobsHandler(&fakeStore{})
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/jobs?limit=-1", nil)
	r = r.WithContext(authedCtx(r.Context(), uuid.New(), models.RoleStandard))
	h.ServeHTTP(rec, r)

	code, errCode := parseErr(t, rec)
	if code != http.StatusBadRequest || errCode != "INVALID_REQUEST" {
		t.Errorf("got %d %s", code, errCode)
	}
}

func TestQueueStatsHandler(t *testing.T) {
	s := &fakeStore{
		countBySt: func(ctx context.Context) (map[string]int, error) {
			return map[string]int{models.JobStatusQueued: 3, models.JobStatusCompleted: 7}, nil
		},
	}
	q := &fakeQueue{
		length: func(ctx context.Context) (int64, error) { return 3, nil },
	}

	h := NewQueueStatsHandler(s, q)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/queue/stats", nil))

	data := parseData(t, rec, http.StatusOK)
	if data["queue_length"] != float64(3) {
		t.Errorf("queue_length = %v", data["queue_length"])
	}
	jobs := data["jobs"].(map[string]any)
	if jobs[models.JobStatusQueued] != float64(3) {
		t.Errorf("queued count = %v", jobs[models.JobStatusQueued])
	}
}

func TestQueueStatsHandler_QueueDown(t *testing.T) {
	s := &fakeStore{
		countBySt: func(ctx context.Context) (map[string]int, error) {
			return map[string]int{}, nil
		},
	}
	q := &fakeQueue{
		length: func(ctx context.Context) (int64, error) { return 0, errors.New("redis down") },
	}

	h := NewQueueStatsHandler(s, q)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/queue/stats", nil))

	data := parseData(t, rec, http.StatusOK)
	if data["queue_length"] != float64(-1) {
		t.Errorf("queue_length = %v, want -1 when the queue is unreachable", data["queue_length"])
	}
}
