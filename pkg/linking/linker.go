package linking

import (
	"context"
	"sync"
	"time"

	"tutorgraph/pkg/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Auto-link confidences for the non-classified tiers.
const (
	strongConfidence     = 0.9
	tangentialConfidence = 0.3

	// fallbackConfidence is used when the classifier fails on a medium
	// pair; the pair still gets a generic edge rather than none.
	fallbackConfidence = 0.5
)

// GraphStore is the graph surface the linker needs.
type GraphStore interface {
	MentionsForVideos(ctx context.Context, videoIDs []string) ([]domain.ConceptMention, error)
	LinkedPairs(ctx context.Context) (map[string]bool, error)
	UpsertLink(ctx context.Context, link domain.CrossVideoLink) error
}

// SummarySource resolves the per-video summaries the classifier prompts
// with.
type SummarySource interface {
	VideoSummary(ctx context.Context, videoID string) (VideoSummary, error)
}

// Linker runs the cross-video linking pass. Strong and tangential pairs are
// linked mechanically; medium pairs go through the LLM classifier with
// bounded concurrency.
type Linker struct {
	store      GraphStore
	summaries  SummarySource
	classifier Classifier
	sem        *semaphore.Weighted
	log        *zap.SugaredLogger
}

// NewLinker builds a linker. concurrency bounds simultaneous classifier
// calls.
func NewLinker(store GraphStore, summaries SummarySource, classifier Classifier, concurrency int, log *zap.SugaredLogger) *Linker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Linker{
		store:      store,
		summaries:  summaries,
		classifier: classifier,
		sem:        semaphore.NewWeighted(int64(concurrency)),
		log:        log,
	}
}

// Stats summarizes one linking pass.
type Stats struct {
	PairsConsidered int
	PairsSkipped    int
	Linked          int
	ClassifierCalls int
}

// Run links every unlinked candidate pair among videoIDs. Already-linked
// pairs are skipped, so the pass costs nothing extra on re-run.
func (l *Linker) Run(ctx context.Context, videoIDs []string) (Stats, error) {
	var stats Stats
	if len(videoIDs) < 2 {
		return stats, nil
	}

	mentions, err := l.store.MentionsForVideos(ctx, videoIDs)
	if err != nil {
		return stats, err
	}
	pairs := BuildPairs(mentions)
	existing, err := l.store.LinkedPairs(ctx)
	if err != nil {
		return stats, err
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	linkNow := func(pair Pair, cls Classification) error {
		if err := l.writePair(ctx, pair, cls); err != nil {
			return err
		}
		mu.Lock()
		stats.Linked++
		mu.Unlock()
		return nil
	}

scan:
	for _, pair := range pairs {
		stats.PairsConsidered++
		if existing[pair.Key()] {
			stats.PairsSkipped++
			continue
		}

		switch pair.Tier() {
		case TierStrong:
			if err := linkNow(pair, Classification{
				Kind: domain.LinkRelated, Confidence: strongConfidence,
			}); err != nil {
				firstErr = err
				break scan
			}
		case TierTangential:
			if err := linkNow(pair, Classification{
				Kind: domain.LinkRelated, Confidence: tangentialConfidence,
			}); err != nil {
				firstErr = err
				break scan
			}
		case TierMedium:
			if err := l.sem.Acquire(ctx, 1); err != nil {
				firstErr = err
				break scan
			}
			wg.Add(1)
			go func(p Pair) {
				defer l.sem.Release(1)
				defer wg.Done()
				cls := l.classifyPair(ctx, p)
				if err := l.writePair(ctx, p, cls); err != nil {
					l.log.Errorw("write link failed", "pair", p.Key(), "error", err)
					return
				}
				mu.Lock()
				stats.Linked++
				stats.ClassifierCalls++
				mu.Unlock()
			}(pair)
		}
	}
	// Classifier goroutines write stats; every exit, including the error
	// ones, must wait for them before the struct is returned.
	wg.Wait()
	return stats, firstErr
}

// classifyPair asks the LLM for the relationship kind, falling back to a
// generic related edge when the classifier fails. A failed classification
// never fails the pass.
func (l *Linker) classifyPair(ctx context.Context, pair Pair) Classification {
	source, err := l.summaries.VideoSummary(ctx, pair.A)
	if err == nil {
		var target VideoSummary
		target, err = l.summaries.VideoSummary(ctx, pair.B)
		if err == nil {
			var cls Classification
			cls, err = l.classifier.Classify(ctx, source, target, pair.SharedConcepts)
			if err == nil {
				return cls
			}
		}
	}
	l.log.Warnw("pair classification failed, defaulting to related", "pair", pair.Key(), "error", err)
	return Classification{Kind: domain.LinkRelated, Confidence: fallbackConfidence}
}

// writePair writes the forward edge and its mirrored reverse edge.
func (l *Linker) writePair(ctx context.Context, pair Pair, cls Classification) error {
	now := time.Now().UTC()
	forward := domain.CrossVideoLink{
		SourceVideoID:  pair.A,
		TargetVideoID:  pair.B,
		Kind:           cls.Kind,
		SharedConcepts: pair.SharedConcepts,
		Confidence:     cls.Confidence,
		Rationale:      cls.Rationale,
		CreatedAt:      now,
	}
	if err := l.store.UpsertLink(ctx, forward); err != nil {
		return err
	}
	reverse := forward
	reverse.SourceVideoID, reverse.TargetVideoID = pair.B, pair.A
	reverse.Kind = cls.Kind.Mirror()
	return l.store.UpsertLink(ctx, reverse)
}
