package extraction

import (
	"strings"
	"testing"
)

const sampleExtraction = `{
	"concepts": [{"name": "recursion", "display_name": "Recursion", "definition": "a function calling itself", "role": "defines", "first_mentioned_at": 12}],
	"concept_relations": [{"source": "recursion", "target": "recursion", "type": "generalizes", "confidence": 0.5}],
	"moments": [
		{"kind": "quote", "concept": "recursion", "timestamp": 10, "text": "it calls itself"},
		{"kind": "hologram", "concept": "recursion", "timestamp": 20},
		{"kind": "aha_moment", "concept": "recursion", "timestamp": 30, "insight": "base case first"}
	],
	"quiz_questions": [],
	"chapter_summaries": [{"title": "Intro", "start_sec": 0, "end_sec": 60, "summary": "basics"}],
	"external_references": []
}`

func TestParseExtraction(t *testing.T) {
	result, dropped := ParseExtraction("vid00000001", sampleExtraction)
	if result == nil {
		t.Fatal("expected a result")
	}
	if result.VideoID != "vid00000001" {
		t.Errorf("video id not set: %q", result.VideoID)
	}
	if len(result.Concepts) != 1 || result.Concepts[0].Name != "recursion" {
		t.Errorf("unexpected concepts: %+v", result.Concepts)
	}
	if len(result.Moments) != 2 {
		t.Fatalf("expected 2 decoded moments, got %d", len(result.Moments))
	}
	if len(dropped) != 1 {
		t.Fatalf("expected 1 dropped fragment, got %d", len(dropped))
	}
	if !strings.Contains(dropped[0].Error(), "hologram") {
		t.Errorf("dropped error should name the unknown kind: %v", dropped[0])
	}
}

func TestParseExtractionStripsFences(t *testing.T) {
	fenced := "```json\n" + sampleExtraction + "\n```"
	result, _ := ParseExtraction("vid00000001", fenced)
	if result == nil {
		t.Fatal("fenced output should still parse")
	}
}

func TestParseExtractionMalformed(t *testing.T) {
	result, errs := ParseExtraction("vid00000001", "not json at all")
	if result != nil {
		t.Fatal("malformed output should not produce a result")
	}
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %d", len(errs))
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"{}", "{}"},
		{"```json\n{}\n```", "{}"},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  ```json\n{} \n```   ", "{}"},
	}
	for _, tc := range cases {
		if got := stripFences(tc.in); got != tc.want {
			t.Errorf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
