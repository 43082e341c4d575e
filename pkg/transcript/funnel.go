package transcript

import (
	"context"
	"errors"
	"sync"

	"tutorgraph/pkg/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CaptionSource fetches an existing caption track for a video.
type CaptionSource interface {
	Fetch(ctx context.Context, videoID string) (*domain.TranscriptRecord, error)
}

// SpeechToText produces a transcript from the audio itself.
type SpeechToText interface {
	Transcribe(ctx context.Context, videoID string) (*domain.TranscriptRecord, error)
}

// Funnel resolves transcripts through three tiers in cost order: durable
// cache, caption scrape, GPU whisper.
type Funnel struct {
	cache       *Cache
	scraper     CaptionSource
	whisper     SpeechToText
	concurrency int
	log         *zap.SugaredLogger
}

// NewFunnel assembles the funnel.
func NewFunnel(cache *Cache, scraper CaptionSource, whisper SpeechToText, concurrency int, log *zap.SugaredLogger) *Funnel {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Funnel{
		cache:       cache,
		scraper:     scraper,
		whisper:     whisper,
		concurrency: concurrency,
		log:         log,
	}
}

// Result is the outcome for one video. A capacity-classified Err means the
// item ran out of GPU capacity this cycle and should stay pending; any other
// Err is an item failure.
type Result struct {
	VideoID string
	Record  *domain.TranscriptRecord
	Err     error
}

// Resolve obtains a transcript for one video, writing it to the cache before
// returning. The cache write happens before the caller may advance status,
// so a crash between the two re-runs only the cheap cache lookup.
func (f *Funnel) Resolve(ctx context.Context, videoID string) (*domain.TranscriptRecord, error) {
	rec, err := f.cache.Get(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		f.log.Debugw("transcript cache hit", "video_id", videoID, "source", rec.Source)
		return rec, nil
	}

	rec, err = f.scraper.Fetch(ctx, videoID)
	if err == nil {
		if err := f.cache.Put(ctx, rec); err != nil {
			return nil, err
		}
		f.log.Infow("transcript scraped from captions", "video_id", videoID, "segments", rec.SegmentCount)
		return rec, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !errors.Is(err, ErrNoCaptions) {
		// Scrape failures other than "no captions" still fall through to
		// whisper; the caption tier is an optimization, not a gatekeeper.
		f.log.Warnw("caption scrape failed, falling back to whisper", "video_id", videoID, "error", err)
	}

	rec, err = f.whisper.Transcribe(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if err := f.cache.Put(ctx, rec); err != nil {
		return nil, err
	}
	f.log.Infow("transcript produced by whisper", "video_id", videoID, "segments", rec.SegmentCount)
	return rec, nil
}

// ResolveAll fans Resolve out over the batch with bounded concurrency and
// collects per-item results. One video's failure never stops the others.
func (f *Funnel) ResolveAll(ctx context.Context, videoIDs []string) []Result {
	results := make([]Result, len(videoIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, id := range videoIDs {
		i, id := i, id
		g.Go(func() error {
			rec, err := f.Resolve(gctx, id)
			mu.Lock()
			results[i] = Result{VideoID: id, Record: rec, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
