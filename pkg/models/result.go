package models

import (
	"time"

	"github.com/google/uuid"
)

// VocabularyEntry is one extracted word with its definition and usage examples.
type VocabularyEntry struct {
	Word       string   `json:"word"`
	Definition string   `json:"definition"`
	Examples   []string `json:"examples"`
}

// Flashcard is one study card derived from the document.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// ExtractionResult is the payload produced by the extraction service. The
// pipeline stores it opaquely; only the extractor and the UI interpret it.
type ExtractionResult struct {
	Vocabulary []VocabularyEntry `json:"vocabulary"`
	Flashcards []Flashcard       `json:"flashcards"`
	WordCount  int               `json:"word_count"`
}

// JobResult holds the durable result of a completed job. At most one row
// exists per job, written strictly before the job's status flips to completed.
type JobResult struct {
	JobID     uuid.UUID        `db:"job_id"     json:"job_id"`
	Result    ExtractionResult `db:"result"     json:"result"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// JobErrorLog is one append-only row per failed processing attempt. History
// is never overwritten, so flaky and permanent failures stay distinguishable.
type JobErrorLog struct {
	JobID      uuid.UUID `db:"job_id"      json:"job_id"`
	Error      string    `db:"error"       json:"error"`
	RetryCount int       `db:"retry_count" json:"retry_count"`
	Timestamp  time.Time `db:"timestamp"   json:"timestamp"`
}
