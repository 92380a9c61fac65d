package ledger

import (
	"time"

	"scriptcheck/internal/verdict"
)

// Status represents the lifecycle of an interview job.
type Status string

const (
	StatusQueued               Status = "QUEUED"
	StatusProcessing           Status = "PROCESSING"
	StatusAudioExtractedQueued Status = "AUDIO_EXTRACTED_QUEUED"
	StatusCompleted            Status = "COMPLETED"
	StatusFailed               Status = "FAILED"
)

// Pipeline stage names recorded alongside PROCESSING and FAILED statuses.
const (
	StageVideoConversion = "video_conversion"
	StageMLInference     = "ml_inference"
)

// Terminal reports whether no further work is expected for the status.
// FAILED is terminal but re-entrant: a fresh message restarts the job.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// HistoryEvent is one append-only entry in a job's audit trail. History is
// never reordered or truncated; insertion order is chronological order.
type HistoryEvent struct {
	Timestamp      time.Time `bson:"timestamp" json:"timestamp"`
	Status         Status    `bson:"status" json:"status"`
	Stage          string    `bson:"stage,omitempty" json:"stage,omitempty"`
	Actor          string    `bson:"actor" json:"actor"`
	Message        string    `bson:"message" json:"message"`
	VideoGCSPath   string    `bson:"video_gcs_path,omitempty" json:"video_gcs_path,omitempty"`
	AudioGCSPrefix string    `bson:"audio_gcs_prefix,omitempty" json:"audio_gcs_prefix,omitempty"`
	Error          string    `bson:"error,omitempty" json:"error,omitempty"`
}

// Event builds a HistoryEvent stamped with the current time.
func Event(status Status, stage, actor, message string) HistoryEvent {
	return HistoryEvent{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Stage:     stage,
		Actor:     actor,
		Message:   message,
	}
}

// InterviewJob is one interview's ledger document, keyed by the externally
// supplied interview identifier.
type InterviewJob struct {
	ID                 string                   `bson:"_id" json:"interview_id"`
	Status             Status                   `bson:"status" json:"status"`
	Stage              string                   `bson:"stage,omitempty" json:"stage,omitempty"`
	ProcessingAttempts int                      `bson:"processing_attempts" json:"processing_attempts"`
	LastUpdated        time.Time                `bson:"last_updated" json:"last_updated"`
	CompletedAt        *time.Time               `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	Results            *verdict.InterviewResult `bson:"results,omitempty" json:"results,omitempty"`
	EmbeddingsGCSPath  string                   `bson:"embeddings_gcs_path,omitempty" json:"embeddings_gcs_path,omitempty"`
	JSONGCSPath        string                   `bson:"json_gcs_path,omitempty" json:"json_gcs_path,omitempty"`
	History            []HistoryEvent           `bson:"history" json:"history"`
}
