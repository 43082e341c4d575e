package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"tutorgraph/pkg/domain"
)

// wireResult mirrors the model's output contract, keeping the loose moment
// shape at the boundary so domain code only ever sees typed moments.
type wireResult struct {
	Concepts           []domain.ExtractedConcept  `json:"concepts"`
	ConceptRelations   []domain.ExtractedRelation `json:"concept_relations"`
	Moments            []json.RawMessage          `json:"moments"`
	QuizQuestions      []domain.QuizQuestion      `json:"quiz_questions"`
	ChapterSummaries   []domain.ChapterSummary    `json:"chapter_summaries"`
	ExternalReferences []domain.ExternalReference `json:"external_references"`
}

// ParseExtraction decodes a model response into an ExtractionResult.
// Individual malformed or unknown-kind moments are dropped and reported in
// the second return value without failing the item; an unparseable response
// as a whole returns a data-classified error.
func ParseExtraction(videoID, raw string) (*domain.ExtractionResult, []error) {
	cleaned := stripFences(raw)

	var wire wireResult
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, []error{domain.Data(fmt.Errorf("parse extraction for %s: %w", videoID, err))}
	}

	result := &domain.ExtractionResult{
		VideoID:            videoID,
		Concepts:           wire.Concepts,
		ConceptRelations:   wire.ConceptRelations,
		QuizQuestions:      wire.QuizQuestions,
		ChapterSummaries:   wire.ChapterSummaries,
		ExternalReferences: wire.ExternalReferences,
	}

	var dropped []error
	for i, rawMoment := range wire.Moments {
		m, err := domain.DecodeMoment(rawMoment)
		if err != nil {
			dropped = append(dropped, domain.Data(fmt.Errorf("moment %d for %s: %w", i, videoID, err)))
			continue
		}
		result.Moments = append(result.Moments, m)
	}
	return result, dropped
}

// stripFences removes a markdown code fence wrapper if the model added one
// despite the JSON response format.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
