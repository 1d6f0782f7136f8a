package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/khaphanpro-123/voichat1012-sub001/pkg/models"
)

// Sentinel errors for extraction failures.
var (
	ErrExtractorUnavailable = errors.New("extractor unavailable")
	ErrExtractionFailed     = errors.New("extraction failed")
	ErrExtractionTimeout    = errors.New("extraction timeout")
	ErrInvalidResponse      = errors.New("extractor returned invalid response")
)

// Request describes one document to process. The file is handed over by
// signed URL; the extractor downloads it itself.
type Request struct {
	JobID       uuid.UUID
	FileURL     string
	Filename    string
	ContentType string
}

// Extractor is the boundary to the external document-processing service. The
// pipeline treats its output as opaque; timeouts and model choices belong to
// the service, not to this client.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*models.ExtractionResult, error)
}

// HTTPClient implements Extractor against the extraction service's HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new extraction service client.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Extract(ctx context.Context, req Request) (*models.ExtractionResult, error) {
	body, err := json.Marshal(map[string]string{
		"job_id":       req.JobID.String(),
		"file_url":     req.FileURL,
		"filename":     req.Filename,
		"content_type": req.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrExtractionFailed, resp.StatusCode)
	}

	var result models.ExtractionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return &result, nil
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrExtractionTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrExtractionTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrExtractorUnavailable, err)
}
