package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"tutorgraph/pkg/domain"
	"tutorgraph/pkg/extraction"
	"tutorgraph/pkg/linking"
	"tutorgraph/pkg/transcript"

	"go.uber.org/zap"
)

// Options are the per-run knobs, set on the command line.
type Options struct {
	BatchSize    int
	PollInterval time.Duration
	Model        string
	ChannelID    string
	Tier         string
	DryRun       bool
	RetryFailed  bool
}

// BulkTranscriber resolves transcripts for a whole batch with bounded
// concurrency.
type BulkTranscriber interface {
	ResolveAll(ctx context.Context, videoIDs []string) []transcript.Result
}

// VideoLinker runs the cross-video linking pass.
type VideoLinker interface {
	Run(ctx context.Context, videoIDs []string) (linking.Stats, error)
}

// Summary is what one run reports back to the operator.
type Summary struct {
	Cycles           int
	Succeeded        int
	Failed           int
	LeftPending      int
	EstimatedCostUSD float64
	FailedVideoIDs   []string
	LinkStats        linking.Stats
}

// Runner drives batches of videos through the state machine until the
// manifest is drained or a stop is requested.
type Runner struct {
	state       StateStore
	graph       GraphStore
	provider    extraction.Provider
	transcriber BulkTranscriber
	normalizer  *Normalizer
	enricher    *Enricher
	embedStep   *EmbedStep
	linker      VideoLinker
	opts        Options
	log         *zap.SugaredLogger

	stopped atomic.Bool
}

// NewRunner wires a runner. linker may be nil to skip the linking pass.
func NewRunner(
	state StateStore,
	graph GraphStore,
	provider extraction.Provider,
	transcriber BulkTranscriber,
	normalizer *Normalizer,
	enricher *Enricher,
	embedStep *EmbedStep,
	linker VideoLinker,
	opts Options,
	log *zap.SugaredLogger,
) *Runner {
	if opts.BatchSize < 1 {
		opts.BatchSize = 20
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	return &Runner{
		state:       state,
		graph:       graph,
		provider:    provider,
		transcriber: transcriber,
		normalizer:  normalizer,
		enricher:    enricher,
		embedStep:   embedStep,
		linker:      linker,
		opts:        opts,
		log:         log,
	}
}

// RequestStop asks the runner to finish the current cycle and exit. The
// in-flight cycle completes its durable writes, so stopping never loses
// work.
func (r *Runner) RequestStop() {
	r.stopped.Store(true)
}

// Run executes cycles until the manifest drains, a stop is requested, or an
// unrecoverable error occurs.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	if r.opts.RetryFailed {
		n, err := r.state.ResetFailed(ctx)
		if err != nil {
			return summary, err
		}
		r.log.Infow("reset failed items to pending", "count", n)
	}

	if !r.opts.DryRun {
		if err := r.Recover(ctx); err != nil {
			return summary, fmt.Errorf("crash recovery: %w", err)
		}
	}

	limit := r.opts.BatchSize
	if r.opts.DryRun {
		// One pass over the whole pending set, so the cost estimate covers
		// the full backlog rather than the first batch.
		limit = 0
	}

	for !r.stopped.Load() {
		batch, err := r.state.PendingBatch(ctx, limit, r.opts.ChannelID, r.opts.Tier)
		if err != nil {
			return summary, err
		}
		if len(batch) == 0 {
			r.log.Infow("no pending work left")
			break
		}
		summary.Cycles++
		r.log.Infow("starting cycle", "cycle", summary.Cycles, "items", len(batch))

		before := summary.Succeeded + summary.Failed
		if err := r.cycle(ctx, batch, summary); err != nil {
			return summary, err
		}
		if r.opts.DryRun {
			break
		}
		if summary.Succeeded+summary.Failed == before {
			// The whole cycle was capacity-starved. Another cycle would just
			// hammer the same busy instances; leave the items pending for a
			// later run.
			r.log.Infow("cycle made no progress, stopping", "left_pending", summary.LeftPending)
			break
		}
	}

	if !r.opts.DryRun && r.linker != nil {
		if err := r.linkPass(ctx, summary); err != nil {
			r.log.Errorw("linking pass failed", "error", err)
		}
	}
	return summary, nil
}

// cycle runs one batch through transcription, extraction and per-item
// finishing.
func (r *Runner) cycle(ctx context.Context, batch []domain.ManifestEntry, summary *Summary) error {
	entries := make(map[string]domain.ManifestEntry, len(batch))
	statuses := make(map[string]domain.Status, len(batch))
	for _, entry := range batch {
		rec, err := r.state.EnsureProgress(ctx, entry.VideoID)
		if err != nil {
			return err
		}
		entries[entry.VideoID] = entry
		statuses[entry.VideoID] = rec.Status
	}

	if err := r.transcribePhase(ctx, statuses, summary); err != nil {
		return err
	}
	if r.stopped.Load() {
		return nil
	}
	if err := r.extractPhase(ctx, entries, statuses, summary); err != nil {
		return err
	}
	if r.opts.DryRun || r.stopped.Load() {
		return nil
	}
	return r.finishPhase(ctx, entries, statuses, summary)
}

// transcribePhase resolves transcripts for every item that does not have one
// yet. Capacity exhaustion leaves an item pending for a later cycle; any
// other failure marks it failed.
func (r *Runner) transcribePhase(ctx context.Context, statuses map[string]domain.Status, summary *Summary) error {
	var need []string
	for id, status := range statuses {
		if !status.AtLeast(domain.StatusTranscriptDone) {
			need = append(need, id)
		}
	}
	if len(need) == 0 {
		return nil
	}
	r.log.Infow("resolving transcripts", "count", len(need))

	for _, res := range r.transcriber.ResolveAll(ctx, need) {
		switch {
		case res.Err == nil:
			if err := r.state.MergeMetadata(ctx, res.VideoID, map[string]string{
				domain.MetaSource: res.Record.Source,
			}); err != nil {
				return err
			}
			if err := r.state.SetStatus(ctx, res.VideoID, domain.StatusTranscriptDone); err != nil {
				return err
			}
			statuses[res.VideoID] = domain.StatusTranscriptDone
		case domain.IsCapacity(res.Err):
			r.log.Infow("no transcription capacity, leaving pending", "video_id", res.VideoID)
			summary.LeftPending++
			delete(statuses, res.VideoID)
		default:
			r.log.Errorw("transcription failed", "video_id", res.VideoID, "error", res.Err)
			if err := r.state.MarkFailed(ctx, res.VideoID, res.Err.Error()); err != nil {
				return err
			}
			r.recordFailure(summary, res.VideoID)
			delete(statuses, res.VideoID)
		}
	}
	return nil
}

// extractPhase submits every transcript-ready item as one batch and waits
// for the results. In dry-run mode it reports the cost estimate and stops
// before submitting.
func (r *Runner) extractPhase(ctx context.Context, entries map[string]domain.ManifestEntry, statuses map[string]domain.Status, summary *Summary) error {
	var requests []extraction.Request
	var ids []string
	for id, status := range statuses {
		if status != domain.StatusTranscriptDone {
			continue
		}
		rec, err := r.state.GetTranscript(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			if err := r.state.MarkFailed(ctx, id, "transcript missing from cache"); err != nil {
				return err
			}
			r.recordFailure(summary, id)
			delete(statuses, id)
			continue
		}
		req := extraction.BuildRequest(domain.Prepare(entries[id], rec))
		requests = append(requests, req)
		ids = append(ids, id)
	}
	if len(requests) == 0 {
		return nil
	}

	cost := extraction.EstimateCostUSD(r.opts.Model, requests)
	summary.EstimatedCostUSD += cost
	if r.opts.DryRun {
		r.log.Infow("dry run: would submit batch",
			"items", len(requests), "model", r.opts.Model, "estimated_cost_usd", fmt.Sprintf("%.4f", cost))
		return nil
	}

	batchID, err := extraction.SubmitWithRetry(ctx, r.provider, r.opts.Model, requests, r.log)
	if err != nil {
		// Nothing was submitted; the items stay at transcript_done for the
		// next run.
		return err
	}
	r.log.Infow("batch submitted", "batch_id", batchID, "items", len(requests), "estimated_cost_usd", fmt.Sprintf("%.4f", cost))

	for i, id := range ids {
		if err := r.state.MergeMetadata(ctx, id, map[string]string{
			domain.MetaBatchID:     batchID,
			domain.MetaModel:       r.opts.Model,
			domain.MetaInputTokens: fmt.Sprintf("%d", extraction.EstimateTokens(requests[i])),
		}); err != nil {
			return err
		}
		if err := r.state.SetStatus(ctx, id, domain.StatusBatchQueued); err != nil {
			return err
		}
		statuses[id] = domain.StatusBatchQueued
	}

	state, err := extraction.WaitForBatch(ctx, r.provider, batchID, r.opts.PollInterval, r.log)
	if err != nil {
		// Items stay batch_queued; the next run's recovery picks the batch
		// up again.
		return err
	}
	if state != extraction.JobCompleted {
		for _, id := range ids {
			if err := r.state.MarkFailed(ctx, id, fmt.Sprintf("batch %s ended %s", batchID, state)); err != nil {
				return err
			}
			r.recordFailure(summary, id)
			delete(statuses, id)
		}
		return nil
	}

	results, err := r.provider.Results(ctx, batchID)
	if err != nil {
		return fmt.Errorf("fetch batch results %s: %w", batchID, err)
	}
	if err := r.applyResults(ctx, ids, results); err != nil {
		return err
	}
	for _, id := range ids {
		rec, err := r.state.GetProgress(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status == domain.StatusFailed {
			r.recordFailure(summary, id)
			delete(statuses, id)
		} else {
			statuses[id] = rec.Status
		}
	}
	return nil
}

// applyResults demultiplexes batch results onto progress records: the raw
// output is persisted before the status advances, per-item errors mark only
// their item, and submitted items missing from the output fail explicitly.
func (r *Runner) applyResults(ctx context.Context, submitted []string, results []extraction.ItemResult) error {
	seen := make(map[string]bool, len(results))
	for _, res := range results {
		seen[res.VideoID] = true
		if res.Failed() {
			r.log.Errorw("batch item failed", "video_id", res.VideoID, "error", res.ErrMessage)
			if err := r.state.MarkFailed(ctx, res.VideoID, res.ErrMessage); err != nil {
				return err
			}
			continue
		}
		rec, err := r.state.GetProgress(ctx, res.VideoID)
		if err != nil {
			return err
		}
		model := r.opts.Model
		if rec != nil && rec.Metadata[domain.MetaModel] != "" {
			model = rec.Metadata[domain.MetaModel]
		}
		if err := r.state.PutRawExtraction(ctx, res.VideoID, model, res.Content); err != nil {
			return err
		}
		if err := r.state.SetStatus(ctx, res.VideoID, domain.StatusExtractionDone); err != nil {
			return err
		}
	}

	for _, id := range submitted {
		if !seen[id] {
			if err := r.state.MarkFailed(ctx, id, "missing from batch output"); err != nil {
				return err
			}
		}
	}
	return nil
}

// finishPhase walks every item with results through its remaining steps.
// One item's failure never touches the others.
func (r *Runner) finishPhase(ctx context.Context, entries map[string]domain.ManifestEntry, statuses map[string]domain.Status, summary *Summary) error {
	for id, status := range statuses {
		if !status.AtLeast(domain.StatusExtractionDone) || status.AtLeast(domain.StatusCompleted) {
			continue
		}
		if r.stopped.Load() {
			return nil
		}
		if err := r.finishVideo(ctx, entries[id], status); err != nil {
			if domain.IsFatal(err) {
				return err
			}
			r.log.Errorw("finishing failed", "video_id", id, "error", err)
			if err := r.state.MarkFailed(ctx, id, err.Error()); err != nil {
				return err
			}
			r.recordFailure(summary, id)
			continue
		}
		summary.Succeeded++
	}
	return nil
}

// finishVideo runs the steps a video still owes, advancing the durable
// status after each.
func (r *Runner) finishVideo(ctx context.Context, entry domain.ManifestEntry, status domain.Status) error {
	raw, err := r.state.GetRawExtraction(ctx, entry.VideoID)
	if err != nil {
		return err
	}
	if raw == "" {
		return fmt.Errorf("raw extraction missing for %s", entry.VideoID)
	}
	result, dropped := extraction.ParseExtraction(entry.VideoID, raw)
	for _, d := range dropped {
		r.log.Warnw("dropped extraction fragment", "video_id", entry.VideoID, "error", d)
	}
	if result == nil {
		return fmt.Errorf("unparseable extraction for %s", entry.VideoID)
	}

	for _, step := range Resume(status) {
		switch step {
		case StepNormalize:
			if err := r.normalizer.Normalize(ctx, result); err != nil {
				return err
			}
		case StepConnect:
			if err := r.normalizer.Connect(ctx, result); err != nil {
				return err
			}
		case StepEnrich:
			rec, err := r.state.GetTranscript(ctx, entry.VideoID)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("transcript missing for enrichment of %s", entry.VideoID)
			}
			if err := r.enricher.Enrich(ctx, entry, rec); err != nil {
				return err
			}
		case StepEmbed:
			if err := r.embedStep.Embed(ctx, result); err != nil {
				// Embeddings are rebuildable; losing them must not strand
				// an otherwise finished video.
				r.log.Warnw("embedding failed, continuing", "video_id", entry.VideoID, "error", err)
			}
		}
		if err := r.state.SetStatus(ctx, entry.VideoID, doneStatus(step)); err != nil {
			return err
		}
	}
	return r.state.SetStatus(ctx, entry.VideoID, domain.StatusCompleted)
}

// linkPass links the full set of completed videos.
func (r *Runner) linkPass(ctx context.Context, summary *Summary) error {
	records, err := r.state.ListByStatus(ctx, domain.StatusCompleted)
	if err != nil {
		return err
	}
	if len(records) < 2 {
		return nil
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.VideoID
	}
	stats, err := r.linker.Run(ctx, ids)
	if err != nil {
		return err
	}
	summary.LinkStats = stats
	r.log.Infow("linking pass done",
		"pairs", stats.PairsConsidered, "linked", stats.Linked,
		"skipped", stats.PairsSkipped, "classifier_calls", stats.ClassifierCalls)
	return nil
}

func (r *Runner) recordFailure(summary *Summary, videoID string) {
	summary.Failed++
	summary.FailedVideoIDs = append(summary.FailedVideoIDs, videoID)
}
