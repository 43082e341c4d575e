package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures. The kind decides retry policy and
// whether an item ends up failed or is left pending for a later cycle.
type ErrorKind string

const (
	// KindTransient covers network and poll hiccups: retried with backoff,
	// bounded attempts, then treated as item failure.
	KindTransient ErrorKind = "transient"

	// KindCapacity covers GPU-busy and provider rate limits: retried with
	// longer backoff; exhausting capacity retries leaves the item pending
	// rather than failed.
	KindCapacity ErrorKind = "capacity"

	// KindData covers malformed model output and orphan references:
	// recovered locally by dropping the fragment, never failing the item.
	KindData ErrorKind = "data"

	// KindTerminal is a genuine per-item extraction error reported by the
	// provider, recorded on that item only.
	KindTerminal ErrorKind = "terminal"

	// KindFatal aborts the whole run before any item is touched (missing
	// credentials, unreachable store).
	KindFatal ErrorKind = "fatal"
)

// PipelineError attaches an ErrorKind to an underlying error.
type PipelineError struct {
	ErrKind ErrorKind
	Err     error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.ErrKind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Transient wraps err as a transient failure.
func Transient(err error) error { return &PipelineError{ErrKind: KindTransient, Err: err} }

// Capacity wraps err as a capacity failure.
func Capacity(err error) error { return &PipelineError{ErrKind: KindCapacity, Err: err} }

// Data wraps err as a data failure.
func Data(err error) error { return &PipelineError{ErrKind: KindData, Err: err} }

// Terminal wraps err as a terminal per-item failure.
func Terminal(err error) error { return &PipelineError{ErrKind: KindTerminal, Err: err} }

// Fatal wraps err as a fatal run-level failure.
func Fatal(err error) error { return &PipelineError{ErrKind: KindFatal, Err: err} }

// KindOf returns the classification of err, defaulting to transient for
// unclassified errors.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.ErrKind
	}
	return KindTransient
}

// IsCapacity reports whether err is classified as a capacity failure.
func IsCapacity(err error) bool { return KindOf(err) == KindCapacity }

// IsFatal reports whether err is classified as fatal.
func IsFatal(err error) bool { return KindOf(err) == KindFatal }
