package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"tutorgraph/pkg/logging"
)

// fakeProvider scripts Submit and Poll behavior.
type fakeProvider struct {
	submitFailures int
	submitCalls    int

	pollStates []JobState
	pollErrs   []error
	pollCalls  int
}

func (f *fakeProvider) Submit(ctx context.Context, model string, requests []Request) (string, error) {
	f.submitCalls++
	if f.submitCalls <= f.submitFailures {
		return "", errors.New("connection reset")
	}
	return "batch-123", nil
}

func (f *fakeProvider) Poll(ctx context.Context, batchID string) (JobState, error) {
	i := f.pollCalls
	f.pollCalls++
	if i < len(f.pollErrs) && f.pollErrs[i] != nil {
		return JobRunning, f.pollErrs[i]
	}
	if i < len(f.pollStates) {
		return f.pollStates[i], nil
	}
	return JobCompleted, nil
}

func (f *fakeProvider) Results(ctx context.Context, batchID string) ([]ItemResult, error) {
	return nil, nil
}

func TestSubmitWithRetryRecovers(t *testing.T) {
	submitBackoff = time.Millisecond
	p := &fakeProvider{submitFailures: 2}
	id, err := SubmitWithRetry(context.Background(), p, "gpt-4o-mini", nil, logging.NewNop())
	if err != nil {
		t.Fatalf("expected recovery after retries, got %v", err)
	}
	if id != "batch-123" {
		t.Errorf("unexpected batch id %q", id)
	}
	if p.submitCalls != 3 {
		t.Errorf("expected 3 submit calls, got %d", p.submitCalls)
	}
}

func TestSubmitWithRetryGivesUp(t *testing.T) {
	submitBackoff = time.Millisecond
	p := &fakeProvider{submitFailures: 10}
	_, err := SubmitWithRetry(context.Background(), p, "gpt-4o-mini", nil, logging.NewNop())
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if p.submitCalls != submitAttempts {
		t.Errorf("expected %d submit calls, got %d", submitAttempts, p.submitCalls)
	}
}

func TestWaitForBatchToleratesPollErrors(t *testing.T) {
	p := &fakeProvider{
		pollErrs:   []error{errors.New("flaky"), errors.New("flaky"), nil},
		pollStates: []JobState{JobRunning, JobRunning, JobCompleted},
	}
	state, err := WaitForBatch(context.Background(), p, "batch-123", time.Millisecond, logging.NewNop())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if state != JobCompleted {
		t.Errorf("expected completed, got %s", state)
	}
}

func TestWaitForBatchGivesUpAfterConsecutiveFailures(t *testing.T) {
	errs := make([]error, pollFailureTolerance)
	for i := range errs {
		errs[i] = errors.New("down")
	}
	p := &fakeProvider{pollErrs: errs}
	_, err := WaitForBatch(context.Background(), p, "batch-123", time.Millisecond, logging.NewNop())
	if err == nil {
		t.Fatal("expected failure after consecutive poll errors")
	}
	if p.pollCalls != pollFailureTolerance {
		t.Errorf("expected %d polls, got %d", pollFailureTolerance, p.pollCalls)
	}
}

func TestJobStateTerminal(t *testing.T) {
	if JobRunning.Terminal() {
		t.Error("running is not terminal")
	}
	for _, s := range []JobState{JobCompleted, JobFailed, JobExpired, JobCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
