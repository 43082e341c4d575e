package pipeline

import (
	"context"
	"fmt"

	"tutorgraph/pkg/domain"

	"go.uber.org/zap"
)

// embedBatchSize caps one embedding request.
const embedBatchSize = 64

// fragment is one text unit to embed, identified by (kind, refKey) inside
// its video.
type fragment struct {
	kind   string
	refKey string
	text   string
}

// EmbedStep produces and stores embeddings for a video's chapters and
// moments.
type EmbedStep struct {
	graph    GraphStore
	embedder Embedder
	log      *zap.SugaredLogger
}

// NewEmbedStep builds the embed step. embedder may be nil, in which case the
// step is a no-op.
func NewEmbedStep(graph GraphStore, embedder Embedder, log *zap.SugaredLogger) *EmbedStep {
	return &EmbedStep{graph: graph, embedder: embedder, log: log}
}

// Embed replaces the video's embedding rows with vectors for its current
// chapters and moments. Deleting first keeps the table consistent with a
// re-normalized extraction.
func (e *EmbedStep) Embed(ctx context.Context, result *domain.ExtractionResult) error {
	if e.embedder == nil {
		e.log.Debugw("no embedder configured, skipping", "video_id", result.VideoID)
		return nil
	}

	fragments := collectFragments(result)
	if len(fragments) == 0 {
		return nil
	}
	if err := e.graph.DeleteEmbeddings(ctx, result.VideoID); err != nil {
		return err
	}

	for start := 0; start < len(fragments); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(fragments) {
			end = len(fragments)
		}
		chunk := fragments[start:end]

		texts := make([]string, len(chunk))
		for i, f := range chunk {
			texts[i] = f.text
		}
		vectors, err := e.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed %s: %w", result.VideoID, err)
		}
		for i, f := range chunk {
			if err := e.graph.UpsertEmbedding(ctx, result.VideoID, f.kind, f.refKey, f.text, vectors[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func collectFragments(result *domain.ExtractionResult) []fragment {
	var out []fragment
	for i, ch := range result.ChapterSummaries {
		text := ch.Title
		if ch.Summary != "" {
			text = ch.Title + ": " + ch.Summary
		}
		out = append(out, fragment{kind: "chapter", refKey: fmt.Sprintf("%d", i), text: text})
	}
	for i, m := range result.Moments {
		text := domain.MomentText(m)
		if text == "" {
			continue
		}
		out = append(out, fragment{kind: "moment", refKey: fmt.Sprintf("%d", i), text: text})
	}
	for _, c := range result.Concepts {
		if c.Definition == "" {
			continue
		}
		out = append(out, fragment{kind: "concept", refKey: c.Name, text: c.DisplayName + ": " + c.Definition})
	}
	return out
}
