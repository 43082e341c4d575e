package pipeline

import (
	"context"
	"fmt"

	"tutorgraph/pkg/domain"

	"go.uber.org/zap"
)

// Normalizer writes one video's extraction into the knowledge graph.
// Re-running it for the same video converges to the same end state: concept
// merges are idempotent and every child table carries replace semantics.
type Normalizer struct {
	graph GraphStore
	log   *zap.SugaredLogger
}

// NewNormalizer builds a normalizer.
func NewNormalizer(graph GraphStore, log *zap.SugaredLogger) *Normalizer {
	return &Normalizer{graph: graph, log: log}
}

// Normalize merges concepts first, then writes the per-video children, so a
// crash mid-way never leaves a child row pointing at a concept that was
// never merged.
func (n *Normalizer) Normalize(ctx context.Context, result *domain.ExtractionResult) error {
	videoID := result.VideoID
	known := make(map[string]bool, len(result.Concepts))
	for _, c := range result.Concepts {
		if c.Name == "" {
			n.log.Warnw("dropping unnamed concept", "video_id", videoID)
			continue
		}
		known[c.Name] = true
	}

	for _, c := range result.Concepts {
		if !known[c.Name] {
			continue
		}
		if err := n.graph.MergeConcept(ctx, videoID, c); err != nil {
			return fmt.Errorf("merge concept %s: %w", c.Name, err)
		}
	}

	if err := n.graph.ReplaceMentions(ctx, videoID, mentionsOf(videoID, result.Concepts, known)); err != nil {
		return err
	}
	if err := n.graph.UpsertRelations(ctx, n.pruneRelations(videoID, result.ConceptRelations, known)); err != nil {
		return err
	}
	if err := n.graph.ReplaceChapters(ctx, videoID, result.ChapterSummaries); err != nil {
		return err
	}
	if err := n.graph.ReplaceMoments(ctx, videoID, result.Moments); err != nil {
		return err
	}
	if err := n.graph.ReplaceQuizzes(ctx, videoID, result.QuizQuestions); err != nil {
		return err
	}
	return n.graph.ReplaceReferences(ctx, videoID, result.ExternalReferences)
}

// Connect derives prerequisite structure from each concept's depends_on
// list: the dependency enables the dependent, the dependent has the
// dependency as prerequisite. Dependencies naming concepts absent from this
// extraction are dropped as data errors.
func (n *Normalizer) Connect(ctx context.Context, result *domain.ExtractionResult) error {
	known := make(map[string]bool, len(result.Concepts))
	for _, c := range result.Concepts {
		known[c.Name] = true
	}

	var relations []domain.ConceptRelation
	for _, c := range result.Concepts {
		for _, dep := range c.DependsOn {
			if dep == c.Name {
				continue
			}
			if !known[dep] {
				n.log.Warnw("dropping orphan dependency",
					"video_id", result.VideoID, "concept", c.Name, "depends_on", dep)
				continue
			}
			relations = append(relations,
				domain.ConceptRelation{Source: dep, Target: c.Name, Type: domain.RelationEnables, Confidence: 1},
				domain.ConceptRelation{Source: c.Name, Target: dep, Type: domain.RelationPrerequisite, Confidence: 1},
			)
		}
	}
	return n.graph.UpsertRelations(ctx, relations)
}

// mentionsOf projects the extracted concepts onto this video's mention rows.
func mentionsOf(videoID string, concepts []domain.ExtractedConcept, known map[string]bool) []domain.ConceptMention {
	mentions := make([]domain.ConceptMention, 0, len(concepts))
	for _, c := range concepts {
		if !known[c.Name] {
			continue
		}
		mentions = append(mentions, domain.ConceptMention{
			VideoID:          videoID,
			ConceptName:      c.Name,
			Role:             c.Role,
			FirstMentionedAt: c.FirstMentionedAt,
		})
	}
	return mentions
}

// pruneRelations drops relations whose endpoints the extraction never
// defined. An orphan edge is a data error absorbed locally, never an item
// failure.
func (n *Normalizer) pruneRelations(videoID string, relations []domain.ExtractedRelation, known map[string]bool) []domain.ConceptRelation {
	out := make([]domain.ConceptRelation, 0, len(relations))
	for _, r := range relations {
		if !known[r.Source] || !known[r.Target] {
			n.log.Warnw("dropping orphan relation",
				"video_id", videoID, "source", r.Source, "target", r.Target)
			continue
		}
		out = append(out, domain.ConceptRelation{
			Source:     r.Source,
			Target:     r.Target,
			Type:       r.Type,
			Confidence: r.Confidence,
		})
	}
	return out
}
