package model

import "time"

// JobInput is immutable after submission.
type JobInput struct {
	SourceURL         string `json:"source_url"`
	ForceFallbackTier bool   `json:"force_fallback_tier,omitempty"`
}

// Job is the canonical queue record for one transcription request.
type Job struct {
	ID          string            `json:"id"`
	Input       JobInput          `json:"input"`
	State       string            `json:"state"`
	Attempts    int               `json:"attempts"`
	MaxAttempts int               `json:"max_attempts"`
	Progress    int               `json:"progress"`
	Stalls      int               `json:"stalls,omitempty"`
	Result      *TranscriptResult `json:"result,omitempty"`
	Failure     *FailureReason    `json:"failure,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	FinishedAt  time.Time         `json:"finished_at,omitzero"`
}

// Segment is one chronological slice of the transcript.
type Segment struct {
	Text            string  `json:"text"`
	StartSeconds    float64 `json:"start_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// TranscriptResult is the uniform success envelope, written once per job.
type TranscriptResult struct {
	VideoID         string    `json:"video_id"`
	Title           string    `json:"title"`
	Channel         string    `json:"channel"`
	CanonicalURL    string    `json:"canonical_url"`
	Source          string    `json:"source"`
	ConfidenceScore float64   `json:"confidence_score"`
	Segments        []Segment `json:"segments"`
	Tier            int       `json:"tier"`
	PlainTextURL    string    `json:"plain_text_url,omitempty"`
	JSONURL         string    `json:"json_url,omitempty"`
}

// FailureReason is the structured terminal error surfaced to status queries.
// It never carries raw subprocess output or credential paths.
type FailureReason struct {
	Kind        Kind   `json:"kind"`
	Message     string `json:"message"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
}

// QueueCounts is the per-state job census reported by the queue.
type QueueCounts struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
