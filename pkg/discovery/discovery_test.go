package discovery

import (
	"strings"
	"testing"
)

func TestParseJSONL(t *testing.T) {
	input := `{"video_id": "dQw4w9WgXcQ", "channel_id": "UC123", "channel_name": "Go Time", "title": "Concurrency", "tier": "core"}

{"video_id": "abcdefghijk", "title": "Channels", "tier": "standard", "discovered_at": "2026-01-15T10:00:00Z"}
`
	entries, err := parseJSONL(strings.NewReader(input), "test.jsonl")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].VideoID != "dQw4w9WgXcQ" || entries[0].Tier != "core" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[0].DiscoveredAt.IsZero() {
		t.Error("missing discovered_at should default to now")
	}
	if entries[1].DiscoveredAt.Year() != 2026 {
		t.Errorf("explicit discovered_at not preserved: %v", entries[1].DiscoveredAt)
	}
}

func TestParseJSONLRejectsMalformedLine(t *testing.T) {
	input := `{"video_id": "dQw4w9WgXcQ"}
{not json}
`
	_, err := parseJSONL(strings.NewReader(input), "test.jsonl")
	if err == nil {
		t.Fatal("expected error for malformed line")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error should name the line: %v", err)
	}
}

func TestParseJSONLRejectsMissingVideoID(t *testing.T) {
	input := `{"title": "no id here"}`
	_, err := parseJSONL(strings.NewReader(input), "test.jsonl")
	if err == nil || !strings.Contains(err.Error(), "missing video_id") {
		t.Errorf("expected missing video_id error, got %v", err)
	}
}

func TestParseJSONLEmpty(t *testing.T) {
	entries, err := parseJSONL(strings.NewReader(""), "test.jsonl")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %v", entries)
	}
}
