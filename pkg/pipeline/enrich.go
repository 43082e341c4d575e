package pipeline

import (
	"context"

	"tutorgraph/pkg/domain"

	"go.uber.org/zap"
)

// ReferenceResolver fetches an external reference URL.
type ReferenceResolver interface {
	Resolve(ctx context.Context, rawURL string) (title, excerpt string, err error)
}

// Enricher rebuilds the denormalized per-video context and resolves the
// video's external reference URLs. Reference resolution is best effort: a
// dead link is recorded as unresolved, never as item failure.
type Enricher struct {
	graph    GraphStore
	resolver ReferenceResolver
	log      *zap.SugaredLogger
}

// NewEnricher builds an enricher. resolver may be nil to skip reference
// resolution.
func NewEnricher(graph GraphStore, resolver ReferenceResolver, log *zap.SugaredLogger) *Enricher {
	return &Enricher{graph: graph, resolver: resolver, log: log}
}

// Enrich stores the transcript context blob, recomputes the video summary
// row, and resolves reference URLs.
func (e *Enricher) Enrich(ctx context.Context, entry domain.ManifestEntry, rec *domain.TranscriptRecord) error {
	title := entry.Title
	if title == "" {
		title = rec.Title
	}
	channel := entry.ChannelName
	if channel == "" {
		channel = rec.Author
	}
	transcript := domain.FormatTranscript(rec.Segments, domain.TranscriptCharBudget)

	if err := e.graph.UpsertVideoContext(ctx, entry.VideoID, title, channel, transcript); err != nil {
		return err
	}
	if err := e.graph.RebuildVideoContext(ctx, entry.VideoID); err != nil {
		return err
	}

	if e.resolver == nil {
		return nil
	}
	urls, err := e.graph.ReferenceURLs(ctx, entry.VideoID)
	if err != nil {
		return err
	}
	for _, u := range urls {
		refTitle, excerpt, err := e.resolver.Resolve(ctx, u)
		if err != nil {
			e.log.Warnw("reference resolution failed", "video_id", entry.VideoID, "url", u, "error", err)
			continue
		}
		if err := e.graph.ResolveReference(ctx, entry.VideoID, u, refTitle, excerpt); err != nil {
			return err
		}
	}
	return nil
}
