package domain

import (
	"encoding/json"
	"fmt"
)

// ExtractionResult is the structured output of the extraction model for one
// video. The raw provider output is persisted verbatim before this decomposed
// form is derived, so decomposition failures never cost a second inference
// call.
type ExtractionResult struct {
	VideoID            string              `json:"video_id"`
	Concepts           []ExtractedConcept  `json:"concepts"`
	ConceptRelations   []ExtractedRelation `json:"concept_relations"`
	Moments            []Moment            `json:"-"`
	QuizQuestions      []QuizQuestion      `json:"quiz_questions"`
	ChapterSummaries   []ChapterSummary    `json:"chapter_summaries"`
	ExternalReferences []ExternalReference `json:"external_references"`
}

// ExtractedConcept is one concept as the model saw it in one video.
type ExtractedConcept struct {
	// Name is the model-assigned canonical name, the cross-video merge key.
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Definition  string   `json:"definition"`
	Aliases     []string `json:"aliases"`
	DomainTags  []string `json:"domain_tags"`
	Category    string   `json:"category"`
	Difficulty  string   `json:"difficulty"`

	// Role is the pedagogical role of this video's mention:
	// defines, explains, uses, references or assumes.
	Role string `json:"role"`

	// FirstMentionedAt is the first timestamp (seconds) the concept appears.
	FirstMentionedAt float64 `json:"first_mentioned_at"`

	// DependsOn lists canonical names of concepts this one builds on,
	// used by the connect pass to derive prerequisite/enables edges.
	DependsOn []string `json:"depends_on"`
}

// ExtractedRelation is a typed edge between two concepts in one extraction.
type ExtractedRelation struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// QuizQuestion is a generated check-your-understanding item.
type QuizQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      int      `json:"answer"`
	Explanation string   `json:"explanation"`
	Concept     string   `json:"concept"`
	Difficulty  string   `json:"difficulty"`
	Timestamp   float64  `json:"timestamp"`
}

// ChapterSummary is one chapter of the video with its own summary.
type ChapterSummary struct {
	Title    string   `json:"title"`
	StartSec float64  `json:"start_sec"`
	EndSec   float64  `json:"end_sec"`
	Summary  string   `json:"summary"`
	Concepts []string `json:"concepts"`
}

// ExternalReference is a resource the video points the viewer at.
type ExternalReference struct {
	Kind    string `json:"kind"` // paper, book, video, article, tool
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Context string `json:"context"`
}

// MomentKind discriminates the moment union.
type MomentKind string

const (
	MomentQuote         MomentKind = "quote"
	MomentAnalogy       MomentKind = "analogy"
	MomentMisconception MomentKind = "misconception"
	MomentApplication   MomentKind = "application"
	MomentAhaMoment     MomentKind = "aha_moment"
	MomentQuestion      MomentKind = "question"
)

// Moment is one typed, timestamped fact extracted from the video. Concrete
// moment types carry kind-specific fields; the loose "bag of fields" shape of
// the wire format is confined to decoding.
type Moment interface {
	Kind() MomentKind
	Base() MomentBase
}

// MomentBase is shared by every moment kind.
type MomentBase struct {
	Concept   string  `json:"concept"`
	Timestamp float64 `json:"timestamp"`
}

func (b MomentBase) Base() MomentBase { return b }

// Quote is a verbatim memorable line.
type Quote struct {
	MomentBase
	Text    string `json:"text"`
	Speaker string `json:"speaker,omitempty"`
}

func (Quote) Kind() MomentKind { return MomentQuote }

// Analogy maps an unfamiliar idea onto a familiar one.
type Analogy struct {
	MomentBase
	Familiar string `json:"familiar"`
	Text     string `json:"text"`
}

func (Analogy) Kind() MomentKind { return MomentAnalogy }

// Misconception is a common wrong belief the video corrects.
type Misconception struct {
	MomentBase
	Claim      string `json:"claim"`
	Correction string `json:"correction"`
}

func (Misconception) Kind() MomentKind { return MomentMisconception }

// Application is a worked example or real-world use.
type Application struct {
	MomentBase
	Scenario string `json:"scenario"`
	Text     string `json:"text"`
}

func (Application) Kind() MomentKind { return MomentApplication }

// AhaMoment is a key insight the presenter builds up to.
type AhaMoment struct {
	MomentBase
	Insight string `json:"insight"`
}

func (AhaMoment) Kind() MomentKind { return MomentAhaMoment }

// OpenQuestion is a question the video raises but leaves open.
type OpenQuestion struct {
	MomentBase
	Question string `json:"question"`
}

func (OpenQuestion) Kind() MomentKind { return MomentQuestion }

// DecodeMoment parses one wire moment by its kind tag. Unknown kinds return
// an error the caller is expected to absorb (drop the fragment, keep the
// item).
func DecodeMoment(raw json.RawMessage) (Moment, error) {
	var tag struct {
		Kind MomentKind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("moment kind tag: %w", err)
	}

	var m Moment
	switch tag.Kind {
	case MomentQuote:
		m = &Quote{}
	case MomentAnalogy:
		m = &Analogy{}
	case MomentMisconception:
		m = &Misconception{}
	case MomentApplication:
		m = &Application{}
	case MomentAhaMoment:
		m = &AhaMoment{}
	case MomentQuestion:
		m = &OpenQuestion{}
	default:
		return nil, fmt.Errorf("unknown moment kind %q", tag.Kind)
	}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("moment %s: %w", tag.Kind, err)
	}
	return deref(m), nil
}

func deref(m Moment) Moment {
	switch v := m.(type) {
	case *Quote:
		return *v
	case *Analogy:
		return *v
	case *Misconception:
		return *v
	case *Application:
		return *v
	case *AhaMoment:
		return *v
	case *OpenQuestion:
		return *v
	}
	return m
}

// MomentText returns the human-readable body of a moment for storage and
// embedding, regardless of kind.
func MomentText(m Moment) string {
	switch v := m.(type) {
	case Quote:
		return v.Text
	case Analogy:
		return v.Text
	case Misconception:
		return v.Claim + " -> " + v.Correction
	case Application:
		return v.Text
	case AhaMoment:
		return v.Insight
	case OpenQuestion:
		return v.Question
	}
	return ""
}
