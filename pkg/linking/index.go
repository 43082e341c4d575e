// Package linking discovers and classifies relationships between videos
// that share concepts.
package linking

import (
	"sort"

	"tutorgraph/pkg/domain"
)

// Overlap thresholds for the candidate tiers.
const (
	strongOverlap = 5 // auto-link, high confidence
	mediumMin     = 3 // LLM-classified
	mediumMax     = 4
)

// Tier classifies a candidate pair by how many concepts it shares.
type Tier int

const (
	TierNone Tier = iota
	TierTangential
	TierMedium
	TierStrong
)

// TierOf maps a shared-concept count to its tier.
func TierOf(shared int) Tier {
	switch {
	case shared >= strongOverlap:
		return TierStrong
	case shared >= mediumMin && shared <= mediumMax:
		return TierMedium
	case shared >= 1:
		return TierTangential
	default:
		return TierNone
	}
}

// Pair is a candidate video pair with its shared concepts. A and B are
// ordered so the pair is order-independent.
type Pair struct {
	A, B           string
	SharedConcepts []string
}

// Tier returns the pair's overlap tier.
func (p Pair) Tier() Tier { return TierOf(len(p.SharedConcepts)) }

// Key returns the order-independent pair key.
func (p Pair) Key() string { return p.A + "|" + p.B }

// BuildPairs inverts mentions into concept -> videos, then emits every video
// pair that shares at least one concept. Output is deterministic: pairs
// sorted by key, shared concepts sorted by name.
func BuildPairs(mentions []domain.ConceptMention) []Pair {
	byConcept := make(map[string][]string)
	seen := make(map[string]map[string]bool)
	for _, m := range mentions {
		if seen[m.ConceptName] == nil {
			seen[m.ConceptName] = make(map[string]bool)
		}
		if seen[m.ConceptName][m.VideoID] {
			continue
		}
		seen[m.ConceptName][m.VideoID] = true
		byConcept[m.ConceptName] = append(byConcept[m.ConceptName], m.VideoID)
	}

	shared := make(map[[2]string][]string)
	for concept, videos := range byConcept {
		sort.Strings(videos)
		for i := 0; i < len(videos); i++ {
			for j := i + 1; j < len(videos); j++ {
				key := [2]string{videos[i], videos[j]}
				shared[key] = append(shared[key], concept)
			}
		}
	}

	pairs := make([]Pair, 0, len(shared))
	for key, concepts := range shared {
		sort.Strings(concepts)
		pairs = append(pairs, Pair{A: key[0], B: key[1], SharedConcepts: concepts})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key() < pairs[j].Key() })
	return pairs
}
