package domain

import "time"

// Status is the per-video pipeline state. Statuses form a total order and a
// record's status only ever advances along it; Failed is reachable from any
// state and is treated as Pending when the item is retried.
type Status string

const (
	StatusPending        Status = "pending"
	StatusTranscriptDone Status = "transcript_done"
	StatusBatchQueued    Status = "batch_queued"
	StatusExtractionDone Status = "extraction_done"
	StatusNormalized     Status = "normalized"
	StatusConnected      Status = "connected"
	StatusEnriched       Status = "enriched"
	StatusEmbedded       Status = "embedded"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

// statusRank maps each status to its position in the fixed step order.
// Failed ranks as Pending: a failed item resumes from the beginning.
var statusRank = map[Status]int{
	StatusPending:        0,
	StatusFailed:         0,
	StatusTranscriptDone: 1,
	StatusBatchQueued:    2,
	StatusExtractionDone: 3,
	StatusNormalized:     4,
	StatusConnected:      5,
	StatusEnriched:       6,
	StatusEmbedded:       7,
	StatusCompleted:      8,
}

// Rank returns the status position in the fixed order. Unknown statuses rank
// as Pending so a corrupt record is re-processed rather than skipped.
func (s Status) Rank() int {
	return statusRank[s]
}

// AtLeast reports whether s has reached or passed other in the fixed order.
func (s Status) AtLeast(other Status) bool {
	return s.Rank() >= other.Rank()
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// ProgressRecord is the single source of truth for what has and has not
// happened to one video. All writes are scoped to one video ID.
type ProgressRecord struct {
	VideoID      string    `bson:"video_id" json:"video_id"`
	Status       Status    `bson:"status" json:"status"`
	AttemptCount int       `bson:"attempt_count" json:"attempt_count"`
	ErrorMessage string    `bson:"error_message,omitempty" json:"error_message,omitempty"`

	// Metadata carries free-form step outputs that later steps or crash
	// recovery need: remote batch ID, token counts, cost, model used.
	Metadata map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`

	StartedAt     time.Time  `bson:"started_at" json:"started_at"`
	LastAttemptAt time.Time  `bson:"last_attempt_at" json:"last_attempt_at"`
	CompletedAt   *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Metadata keys shared between steps.
const (
	MetaBatchID     = "batch_id"
	MetaModel       = "model"
	MetaInputTokens = "input_tokens"
	MetaCostUSD     = "cost_usd"
	MetaSource      = "transcript_source"
)

// maxErrorMessageLen bounds the error text persisted on a ProgressRecord.
const maxErrorMessageLen = 500

// TruncateError shortens an error message for storage on a ProgressRecord.
func TruncateError(msg string) string {
	if len(msg) <= maxErrorMessageLen {
		return msg
	}
	return msg[:maxErrorMessageLen] + "..."
}
