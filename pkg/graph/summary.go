package graph

import (
	"context"

	"tutorgraph/pkg/linking"
)

// VideoSummary adapts the stored video context into the shape the link
// classifier prompts with.
func (s *Store) VideoSummary(ctx context.Context, videoID string) (linking.VideoSummary, error) {
	title, channel, concepts, err := s.GetVideoContext(ctx, videoID)
	if err != nil {
		return linking.VideoSummary{}, err
	}
	return linking.VideoSummary{
		VideoID:      videoID,
		Title:        title,
		Channel:      channel,
		ConceptNames: concepts,
	}, nil
}
