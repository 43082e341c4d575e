package extraction

import (
	"fmt"
	"strings"

	"tutorgraph/pkg/domain"
)

// systemPrompt instructs the extraction model. The output contract matches
// decode.go: top-level arrays with a kind-tagged moments union.
const systemPrompt = `You are an expert knowledge extractor for educational video transcripts.
Given a timestamped transcript, return a single JSON object with exactly these keys:

"concepts": array of {
  "name": canonical lowercase snake_case identifier for cross-video matching,
  "display_name": human-readable name,
  "definition": one or two sentence definition as taught in this video,
  "aliases": array of alternative names,
  "domain_tags": array of subject-area tags,
  "category": one of "theory", "technique", "tool", "person", "event",
  "difficulty": one of "beginner", "intermediate", "advanced",
  "role": how this video treats the concept, one of "defines", "explains", "uses", "references", "assumes",
  "first_mentioned_at": seconds offset of the first mention,
  "depends_on": array of canonical names (from this same output) this concept builds on
}

"concept_relations": array of {"source", "target", "type", "confidence"}
  where type is one of "prerequisite", "enables", "contrasts_with", "special_case_of", "generalizes".

"moments": array of kind-tagged objects. Every moment has "kind", "concept", "timestamp".
  kind "quote": add "text" and optional "speaker".
  kind "analogy": add "familiar" and "text".
  kind "misconception": add "claim" and "correction".
  kind "application": add "scenario" and "text".
  kind "aha_moment": add "insight".
  kind "question": add "question".

"quiz_questions": array of {"question", "options" (4 strings), "answer" (index), "explanation", "concept", "difficulty", "timestamp"}

"chapter_summaries": array of {"title", "start_sec", "end_sec", "summary", "concepts"}

"external_references": array of {"kind" ("paper", "book", "video", "article", "tool"), "title", "url" (omit when not stated), "context"}

Use only information present in the transcript. Respond with the JSON object and nothing else.`

// BuildRequest renders one prepared transcript into a batch request.
func BuildRequest(item domain.PreparedItem) Request {
	var sb strings.Builder
	if item.Title != "" {
		fmt.Fprintf(&sb, "Video title: %s\n", item.Title)
	}
	if item.ChannelName != "" {
		fmt.Fprintf(&sb, "Channel: %s\n", item.ChannelName)
	}
	sb.WriteString("\nTranscript:\n")
	sb.WriteString(item.Transcript)

	return Request{
		VideoID: item.VideoID,
		System:  systemPrompt,
		User:    sb.String(),
	}
}

// batchInputPricePer1M is the batch-tier input price per million tokens.
// Batch runs at half the synchronous price.
var batchInputPricePer1M = map[string]float64{
	"gpt-4o":       1.25,
	"gpt-4o-mini":  0.075,
	"gpt-4.1":      1.00,
	"gpt-4.1-mini": 0.20,
}

const defaultBatchPricePer1M = 1.25

// EstimateTokens approximates the input token count of a request. Four
// characters per token is close enough for a budget estimate.
func EstimateTokens(r Request) int {
	return (len(r.System) + len(r.User)) / 4
}

// EstimateCostUSD approximates the batch input cost of submitting the
// requests with the given model. Used by dry-run mode, which must produce
// the estimate without submitting anything.
func EstimateCostUSD(model string, requests []Request) float64 {
	price, ok := batchInputPricePer1M[model]
	if !ok {
		price = defaultBatchPricePer1M
	}
	tokens := 0
	for _, r := range requests {
		tokens += EstimateTokens(r)
	}
	return float64(tokens) / 1e6 * price
}
