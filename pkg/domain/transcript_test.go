package domain

import (
	"strings"
	"testing"
)

func TestFormatTranscript(t *testing.T) {
	segments := []Segment{
		{Text: "hello there", Offset: 0, Duration: 2},
		{Text: "  ", Offset: 2, Duration: 1},
		{Text: "welcome back", Offset: 65, Duration: 3},
		{Text: "one hour in", Offset: 3725, Duration: 2},
	}
	got := FormatTranscript(segments, TranscriptCharBudget)
	want := "[0:00] hello there\n[1:05] welcome back\n[1:02:05] one hour in"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatTranscriptTruncates(t *testing.T) {
	segments := make([]Segment, 100)
	for i := range segments {
		segments[i] = Segment{Text: strings.Repeat("word ", 10), Offset: float64(i * 5)}
	}
	budget := 500
	got := FormatTranscript(segments, budget)
	if len(got) > budget {
		t.Errorf("formatted transcript exceeds budget: %d > %d", len(got), budget)
	}
	if !strings.Contains(got, TruncationMarker) {
		t.Error("overflowing transcript should carry the truncation marker")
	}
}

func TestFormatTranscriptNoMarkerWhenUnderBudget(t *testing.T) {
	got := FormatTranscript([]Segment{{Text: "short", Offset: 0}}, TranscriptCharBudget)
	if strings.Contains(got, TruncationMarker) {
		t.Error("transcript under budget should not carry the marker")
	}
}

func TestPrepareFallsBackToTranscriptTitle(t *testing.T) {
	rec := &TranscriptRecord{
		VideoID:  "abc12345678",
		Segments: []Segment{{Text: "content", Offset: 0}},
		Title:    "Scraped Title",
	}
	item := Prepare(ManifestEntry{VideoID: "abc12345678"}, rec)
	if item.Title != "Scraped Title" {
		t.Errorf("expected scraped title fallback, got %q", item.Title)
	}

	item = Prepare(ManifestEntry{VideoID: "abc12345678", Title: "Manifest Title"}, rec)
	if item.Title != "Manifest Title" {
		t.Errorf("manifest title should win, got %q", item.Title)
	}
}
