package mock

import (
	"context"

	"github.com/khaphanpro-123/voichat1012-sub001/internal/extract"
	"github.com/khaphanpro-123/voichat1012-sub001/pkg/models"
)

// MockExtractor satisfies extract.Extractor for testing.
type MockExtractor struct {
	ExtractFunc func(ctx context.Context, req extract.Request) (*models.ExtractionResult, error)
}

func (m *MockExtractor) Extract(ctx context.Context, req extract.Request) (*models.ExtractionResult, error) {
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, req)
	}
	return &models.ExtractionResult{}, nil
}

// NewMockExtractor returns a MockExtractor with a small canned result.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{
		ExtractFunc: func(_ context.Context, req extract.Request) (*models.ExtractionResult, error) {
			return &models.ExtractionResult{
				Vocabulary: []models.VocabularyEntry{
					{Word: "ephemeral", Definition: "lasting for a very short time", Examples: []string{"an ephemeral cache entry"}},
				},
				Flashcards: []models.Flashcard{
					{Front: "ephemeral", Back: "lasting for a very short time"},
				},
				WordCount: 1,
			}, nil
		},
	}
}

// NewFailingExtractor returns a MockExtractor that always returns the given error.
func NewFailingExtractor(err error) *MockExtractor {
	return &MockExtractor{
		ExtractFunc: func(_ context.Context, _ extract.Request) (*models.ExtractionResult, error) {
			return nil, err
		},
	}
}

// Compile-time check that MockExtractor implements Extractor.
var _ extract.Extractor = (*MockExtractor)(nil)
