package linking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tutorgraph/pkg/domain"

	openai "github.com/sashabaranov/go-openai"
)

// VideoSummary is the compact description of a video handed to the
// relationship classifier.
type VideoSummary struct {
	VideoID      string
	Title        string
	Channel      string
	ConceptNames string
}

// Classification is the classifier's verdict on an ordered pair: the kind
// reads source -> target.
type Classification struct {
	Kind       domain.LinkKind `json:"kind"`
	Confidence float64         `json:"confidence"`
	Rationale  string          `json:"rationale"`
}

// Classifier decides the relationship kind for a medium-overlap pair.
type Classifier interface {
	Classify(ctx context.Context, source, target VideoSummary, shared []string) (Classification, error)
}

const classifierSystemPrompt = `You classify the relationship between two educational videos that cover overlapping concepts.
The relationship reads from video A to video B. Choose exactly one kind:
"prerequisite" (A should be watched before B), "follow_up" (A continues where B left off),
"deeper_dive" (A covers a subset of B in more depth), "alternative_explanation" (A teaches the same material differently),
"builds_on" (A applies ideas B introduces), "contrasts" (A takes an opposing approach), "related" (none of the above fits).
Respond with a JSON object: {"kind": ..., "confidence": 0..1, "rationale": one sentence}.`

// ChatClassifier implements Classifier on a synchronous chat completion.
type ChatClassifier struct {
	client *openai.Client
	model  string
}

// NewChatClassifier builds a classifier using the given model.
func NewChatClassifier(client *openai.Client, model string) *ChatClassifier {
	return &ChatClassifier{client: client, model: model}
}

func (c *ChatClassifier) Classify(ctx context.Context, source, target VideoSummary, shared []string) (Classification, error) {
	user := fmt.Sprintf(
		"Video A: %q by %s\nConcepts: %s\n\nVideo B: %q by %s\nConcepts: %s\n\nShared concepts: %s",
		source.Title, source.Channel, source.ConceptNames,
		target.Title, target.Channel, target.ConceptNames,
		strings.Join(shared, ", "))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return Classification{}, domain.Transient(fmt.Errorf("classify %s->%s: %w", source.VideoID, target.VideoID, err))
	}
	if len(resp.Choices) == 0 {
		return Classification{}, domain.Data(fmt.Errorf("classify %s->%s: empty response", source.VideoID, target.VideoID))
	}

	var out Classification
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return Classification{}, domain.Data(fmt.Errorf("parse classification %s->%s: %w", source.VideoID, target.VideoID, err))
	}
	if !domain.KnownLinkKinds[out.Kind] {
		return Classification{}, domain.Data(fmt.Errorf("unknown link kind %q for %s->%s", out.Kind, source.VideoID, target.VideoID))
	}
	return out, nil
}
