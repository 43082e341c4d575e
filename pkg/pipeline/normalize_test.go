package pipeline

import (
	"context"
	"testing"

	"tutorgraph/pkg/domain"
	"tutorgraph/pkg/logging"
)

func concept(name string, deps ...string) domain.ExtractedConcept {
	return domain.ExtractedConcept{
		Name:        name,
		DisplayName: name,
		Definition:  "definition of " + name,
		Role:        "explains",
		DependsOn:   deps,
	}
}

func TestNormalizeDropsOrphanRelations(t *testing.T) {
	graph := newFakeGraph()
	n := NewNormalizer(graph, logging.NewNop())

	result := &domain.ExtractionResult{
		VideoID:  "vid00000001",
		Concepts: []domain.ExtractedConcept{concept("goroutine"), concept("channel")},
		ConceptRelations: []domain.ExtractedRelation{
			{Source: "goroutine", Target: "channel", Type: "contrasts_with", Confidence: 0.8},
			{Source: "goroutine", Target: "monad", Type: "builds_on", Confidence: 0.9},
		},
	}
	if err := n.Normalize(context.Background(), result); err != nil {
		t.Fatal(err)
	}

	if len(graph.relations) != 1 {
		t.Fatalf("expected 1 surviving relation, got %v", graph.relations)
	}
	if graph.relations[0].Target != "channel" {
		t.Errorf("wrong relation kept: %+v", graph.relations[0])
	}
	if graph.mentions["vid00000001"] != 2 {
		t.Errorf("expected 2 mentions, got %d", graph.mentions["vid00000001"])
	}
}

func TestNormalizeDropsUnnamedConcepts(t *testing.T) {
	graph := newFakeGraph()
	n := NewNormalizer(graph, logging.NewNop())

	result := &domain.ExtractionResult{
		VideoID:  "vid00000001",
		Concepts: []domain.ExtractedConcept{concept("goroutine"), {DisplayName: "Nameless"}},
	}
	if err := n.Normalize(context.Background(), result); err != nil {
		t.Fatal(err)
	}
	if len(graph.merged) != 1 || graph.merged[0] != "goroutine" {
		t.Errorf("merged = %v", graph.merged)
	}
	if graph.mentions["vid00000001"] != 1 {
		t.Errorf("mentions = %d", graph.mentions["vid00000001"])
	}
}

func TestConnectMirrorsDependencies(t *testing.T) {
	graph := newFakeGraph()
	n := NewNormalizer(graph, logging.NewNop())

	result := &domain.ExtractionResult{
		VideoID: "vid00000001",
		Concepts: []domain.ExtractedConcept{
			concept("goroutine"),
			concept("select", "goroutine"),
		},
	}
	if err := n.Connect(context.Background(), result); err != nil {
		t.Fatal(err)
	}

	if len(graph.relations) != 2 {
		t.Fatalf("expected forward and reverse edges, got %v", graph.relations)
	}
	byType := make(map[string]domain.ConceptRelation)
	for _, r := range graph.relations {
		byType[r.Type] = r
	}
	enables := byType[domain.RelationEnables]
	if enables.Source != "goroutine" || enables.Target != "select" {
		t.Errorf("enables edge = %+v", enables)
	}
	prereq := byType[domain.RelationPrerequisite]
	if prereq.Source != "select" || prereq.Target != "goroutine" {
		t.Errorf("prerequisite edge = %+v", prereq)
	}
}

func TestConnectDropsSelfAndOrphanDependencies(t *testing.T) {
	graph := newFakeGraph()
	n := NewNormalizer(graph, logging.NewNop())

	result := &domain.ExtractionResult{
		VideoID: "vid00000001",
		Concepts: []domain.ExtractedConcept{
			concept("goroutine", "goroutine", "scheduler"),
		},
	}
	if err := n.Connect(context.Background(), result); err != nil {
		t.Fatal(err)
	}
	if len(graph.relations) != 0 {
		t.Errorf("self and orphan dependencies should produce no edges, got %v", graph.relations)
	}
}
