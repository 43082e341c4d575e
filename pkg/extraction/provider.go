// Package extraction turns prepared transcripts into structured knowledge
// via an asynchronous batch inference provider.
package extraction

import "context"

// Request is one video's extraction prompt, submitted as one line of a
// batch. The video ID doubles as the batch custom ID, which is what lets
// results be demultiplexed back onto progress records.
type Request struct {
	VideoID string
	System  string
	User    string
}

// JobState is the coarse lifecycle of a remote batch job.
type JobState string

const (
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobExpired   JobState = "expired"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether the job will never make further progress.
func (s JobState) Terminal() bool { return s != JobRunning }

// ItemResult is one video's outcome inside a finished batch. Exactly one of
// Content and ErrMessage is meaningful.
type ItemResult struct {
	VideoID    string
	Content    string
	ErrMessage string
}

// Failed reports whether this item carries a per-item provider error.
func (r ItemResult) Failed() bool { return r.ErrMessage != "" }

// Provider is the asynchronous batch inference interface. Submit returns a
// provider-side batch ID that must be persisted before polling begins, so a
// crash mid-flight can recover the job instead of paying for it twice.
type Provider interface {
	Submit(ctx context.Context, model string, requests []Request) (batchID string, err error)
	Poll(ctx context.Context, batchID string) (JobState, error)
	Results(ctx context.Context, batchID string) ([]ItemResult, error)
}
