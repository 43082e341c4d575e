package pipeline

import (
	"context"
	"fmt"

	"tutorgraph/pkg/domain"
	"tutorgraph/pkg/extraction"
)

// Recover reconciles items stranded at batch_queued by a crash. For every
// in-flight batch the provider is asked once: a still-running batch is left
// alone (the paid job finishes on its own), a completed batch has its
// results pulled in, a dead batch fails its items. Nothing is resubmitted
// here, recovery never spends money.
func (r *Runner) Recover(ctx context.Context) error {
	records, err := r.state.ListByStatus(ctx, domain.StatusBatchQueued)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	byBatch := make(map[string][]domain.ProgressRecord)
	for _, rec := range records {
		batchID := rec.Metadata[domain.MetaBatchID]
		if batchID == "" {
			r.log.Errorw("queued item has no batch id", "video_id", rec.VideoID)
			if err := r.state.MarkFailed(ctx, rec.VideoID, "batch id missing from metadata"); err != nil {
				return err
			}
			continue
		}
		byBatch[batchID] = append(byBatch[batchID], rec)
	}

	for batchID, items := range byBatch {
		state, err := r.provider.Poll(ctx, batchID)
		if err != nil {
			r.log.Warnw("recovery poll failed, leaving batch in flight", "batch_id", batchID, "error", err)
			continue
		}
		switch state {
		case extraction.JobRunning:
			r.log.Infow("batch still running, leaving items queued", "batch_id", batchID, "items", len(items))
		case extraction.JobCompleted:
			r.log.Infow("recovering completed batch", "batch_id", batchID, "items", len(items))
			results, err := r.provider.Results(ctx, batchID)
			if err != nil {
				return fmt.Errorf("recover batch %s: %w", batchID, err)
			}
			ids := make([]string, len(items))
			for i, rec := range items {
				ids[i] = rec.VideoID
			}
			if err := r.applyResults(ctx, ids, results); err != nil {
				return err
			}
		default:
			r.log.Warnw("batch died, failing items", "batch_id", batchID, "state", state, "items", len(items))
			for _, rec := range items {
				if err := r.state.MarkFailed(ctx, rec.VideoID, fmt.Sprintf("batch %s ended %s", batchID, state)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
