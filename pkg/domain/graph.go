package domain

import "time"

// Concept is the only cross-video shared entity, keyed by the canonical name
// the extraction model assigns. Merging two videos' views of the same concept
// unions aliases, keeps the longer definition and counts each video once.
type Concept struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Definition  string   `json:"definition"`
	Aliases     []string `json:"aliases"`
	DomainTags  []string `json:"domain_tags"`
	Category    string   `json:"category"`
	Difficulty  string   `json:"difficulty"`
	VideoCount  int      `json:"video_count"`
}

// ConceptMention records that a video mentions a concept with a pedagogical
// role. Mentions carry replace semantics per video.
type ConceptMention struct {
	VideoID          string  `json:"video_id"`
	ConceptName      string  `json:"concept_name"`
	Role             string  `json:"role"`
	FirstMentionedAt float64 `json:"first_mentioned_at"`
}

// ConceptRelation is a typed concept-to-concept edge, unique on
// (source, target, type).
type ConceptRelation struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Relation types derived by the connect pass.
const (
	RelationPrerequisite = "prerequisite"
	RelationEnables      = "enables"
)

// LinkKind is the fixed relationship vocabulary for cross-video links.
type LinkKind string

const (
	LinkPrerequisite           LinkKind = "prerequisite"
	LinkFollowUp               LinkKind = "follow_up"
	LinkDeeperDive             LinkKind = "deeper_dive"
	LinkAlternativeExplanation LinkKind = "alternative_explanation"
	LinkBuildsOn               LinkKind = "builds_on"
	LinkContrasts              LinkKind = "contrasts"
	LinkRelated                LinkKind = "related"
)

// KnownLinkKinds is the accepted classifier vocabulary.
var KnownLinkKinds = map[LinkKind]bool{
	LinkPrerequisite:           true,
	LinkFollowUp:               true,
	LinkDeeperDive:             true,
	LinkAlternativeExplanation: true,
	LinkBuildsOn:               true,
	LinkContrasts:              true,
	LinkRelated:                true,
}

// Mirror returns the kind written on the reverse edge. Prerequisite and
// follow-up are each other's inverse; every other kind mirrors identically.
func (k LinkKind) Mirror() LinkKind {
	switch k {
	case LinkPrerequisite:
		return LinkFollowUp
	case LinkFollowUp:
		return LinkPrerequisite
	}
	return k
}

// CrossVideoLink is one directed edge between two videos. Every classified
// pair is written as two edges, forward and reverse.
type CrossVideoLink struct {
	SourceVideoID  string    `json:"source_video_id"`
	TargetVideoID  string    `json:"target_video_id"`
	Kind           LinkKind  `json:"kind"`
	SharedConcepts []string  `json:"shared_concepts"`
	Confidence     float64   `json:"confidence"`
	Rationale      string    `json:"rationale"`
	CreatedAt      time.Time `json:"created_at"`
}
