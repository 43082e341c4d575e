package extraction

import (
	"context"
	"fmt"
	"time"

	"tutorgraph/pkg/domain"

	"go.uber.org/zap"
)

const (
	submitAttempts = 3

	// pollFailureTolerance is how many consecutive poll errors are absorbed
	// before the batch step gives up. A single flaky poll must never orphan
	// a paid batch.
	pollFailureTolerance = 10
)

// submitBackoff is the initial delay between submit attempts. Variable so
// tests can shrink it.
var submitBackoff = 2 * time.Second

// SubmitWithRetry submits the batch, retrying transport failures with
// exponential backoff. Submission is all or nothing: there is no partial
// batch to clean up on failure.
func SubmitWithRetry(ctx context.Context, p Provider, model string, requests []Request, log *zap.SugaredLogger) (string, error) {
	backoff := submitBackoff
	var lastErr error
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		batchID, err := p.Submit(ctx, model, requests)
		if err == nil {
			return batchID, nil
		}
		lastErr = err
		log.Warnw("batch submit failed", "attempt", attempt, "error", err)
		if attempt == submitAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return "", domain.Transient(fmt.Errorf("submit batch after %d attempts: %w", submitAttempts, lastErr))
}

// WaitForBatch polls at a fixed interval until the job reaches a terminal
// state, tolerating up to pollFailureTolerance consecutive poll errors.
func WaitForBatch(ctx context.Context, p Provider, batchID string, interval time.Duration, log *zap.SugaredLogger) (JobState, error) {
	consecutiveFailures := 0
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state, err := p.Poll(ctx, batchID)
		if err != nil {
			consecutiveFailures++
			log.Warnw("batch poll failed", "batch_id", batchID, "consecutive", consecutiveFailures, "error", err)
			if consecutiveFailures >= pollFailureTolerance {
				return JobRunning, domain.Transient(fmt.Errorf("poll batch %s: %d consecutive failures: %w", batchID, consecutiveFailures, err))
			}
		} else {
			consecutiveFailures = 0
			if state.Terminal() {
				return state, nil
			}
			log.Debugw("batch still running", "batch_id", batchID)
		}

		select {
		case <-ctx.Done():
			return JobRunning, ctx.Err()
		case <-ticker.C:
		}
	}
}
