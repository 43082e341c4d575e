package graph

import (
	"reflect"
	"testing"
)

func TestMergeConceptValuesUnionsSets(t *testing.T) {
	stored := ConceptValues{
		Definition: "a lightweight thread",
		Aliases:    []string{"green thread"},
		DomainTags: []string{"concurrency"},
	}
	incoming := ConceptValues{
		Definition: "short",
		Aliases:    []string{"green thread", "fiber"},
		DomainTags: []string{"runtime"},
	}

	out := MergeConceptValues(stored, incoming)
	if out.Definition != "a lightweight thread" {
		t.Errorf("shorter incoming definition must not win: %q", out.Definition)
	}
	if !reflect.DeepEqual(out.Aliases, []string{"green thread", "fiber"}) {
		t.Errorf("aliases = %v", out.Aliases)
	}
	if !reflect.DeepEqual(out.DomainTags, []string{"concurrency", "runtime"}) {
		t.Errorf("tags = %v", out.DomainTags)
	}
}

func TestMergeConceptValuesLongerDefinitionWins(t *testing.T) {
	stored := ConceptValues{Definition: "short"}
	incoming := ConceptValues{Definition: "a strictly longer definition"}
	if out := MergeConceptValues(stored, incoming); out.Definition != incoming.Definition {
		t.Errorf("definition = %q", out.Definition)
	}

	// Equal length keeps the stored one.
	equal := ConceptValues{Definition: "trohs"}
	if out := MergeConceptValues(stored, equal); out.Definition != "short" {
		t.Errorf("equal-length definition should not replace: %q", out.Definition)
	}
}

func TestMergeConceptValuesIdempotent(t *testing.T) {
	incoming := ConceptValues{
		Definition: "a lightweight thread",
		Aliases:    []string{"green thread"},
		DomainTags: []string{"concurrency"},
	}
	once := MergeConceptValues(ConceptValues{}, incoming)
	twice := MergeConceptValues(once, incoming)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge is not idempotent: %+v vs %+v", once, twice)
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"a", "", "b", "a", "c", "b"})
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("dedupe = %v", got)
	}
}

func TestPairKeyOrderIndependent(t *testing.T) {
	if PairKey("vidB", "vidA") != PairKey("vidA", "vidB") {
		t.Error("pair key must not depend on argument order")
	}
	if got := PairKey("vidA", "vidB"); got != "vidA|vidB" {
		t.Errorf("pair key = %q", got)
	}
}

func TestJSONHelpers(t *testing.T) {
	if got := mustJSON(nil); got != "[]" {
		t.Errorf("mustJSON(nil) = %q", got)
	}
	if got := mustJSON([]string{"x"}); got != `["x"]` {
		t.Errorf("mustJSON = %q", got)
	}
	if got := fromJSON(`["x","y"]`); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("fromJSON = %v", got)
	}
	if fromJSON("not json") != nil {
		t.Error("fromJSON should return nil on garbage")
	}
}
