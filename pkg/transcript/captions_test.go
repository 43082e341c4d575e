package transcript

import (
	"testing"

	"tutorgraph/pkg/domain"
)

func TestParseTimedText(t *testing.T) {
	raw := []byte(`<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0" dur="2.5">so today we&amp;#39;re covering goroutines</text>
  <text start="2.5" dur="3.1">and the &amp;quot;happens before&amp;quot; relation</text>
  <text start="5.6" dur="1.0">   </text>
</transcript>`)

	segments, err := parseTimedText(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments (blank dropped), got %d", len(segments))
	}
	if segments[0].Text != "so today we're covering goroutines" {
		t.Errorf("double-escaped entities not unescaped: %q", segments[0].Text)
	}
	if segments[1].Text != `and the "happens before" relation` {
		t.Errorf("unexpected second segment: %q", segments[1].Text)
	}
	if segments[1].Offset != 2.5 || segments[1].Duration != 3.1 {
		t.Errorf("timing not preserved: %+v", segments[1])
	}
}

func TestParseTimedTextRejectsGarbage(t *testing.T) {
	if _, err := parseTimedText([]byte("not xml at all <")); err == nil {
		t.Error("expected parse error")
	}
}

func TestPickTrackPrefersManualEnglish(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "fr", LanguageCode: "fr"},
		{BaseURL: "en-asr", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "en-manual", LanguageCode: "en-US"},
	}
	if got := pickTrack(tracks); got == nil || got.BaseURL != "en-manual" {
		t.Errorf("expected manual english track, got %+v", got)
	}
}

func TestPickTrackFallsBackToASR(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "de", LanguageCode: "de"},
		{BaseURL: "en-asr", LanguageCode: "en", Kind: "asr"},
	}
	if got := pickTrack(tracks); got == nil || got.BaseURL != "en-asr" {
		t.Errorf("expected asr english track, got %+v", got)
	}
}

func TestPickTrackFallsBackToFirst(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "ja", LanguageCode: "ja"},
		{BaseURL: "ko", LanguageCode: "ko"},
	}
	if got := pickTrack(tracks); got == nil || got.BaseURL != "ja" {
		t.Errorf("expected first track, got %+v", got)
	}
	if pickTrack(nil) != nil {
		t.Error("empty track list should yield nil")
	}
}

func TestParsePageMeta(t *testing.T) {
	body := []byte(`<html><head>
<meta property="og:title" content="Concurrency Patterns in Go">
<link itemprop="name" content="Go Time">
</head><body></body></html>`)

	title, author := parsePageMeta(body)
	if title != "Concurrency Patterns in Go" {
		t.Errorf("title = %q", title)
	}
	if author != "Go Time" {
		t.Errorf("author = %q", author)
	}
}

func TestCaptionTracksPattern(t *testing.T) {
	page := []byte(`var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"https://example.com/tt","languageCode":"en","kind":"asr"}],"audioTracks":[]}}};`)
	match := captionTracksPattern.FindSubmatch(page)
	if match == nil {
		t.Fatal("pattern did not match embedded track list")
	}
	if string(match[1]) != `[{"baseUrl":"https://example.com/tt","languageCode":"en","kind":"asr"}]` {
		t.Errorf("unexpected capture: %s", match[1])
	}
}

func TestTotalDuration(t *testing.T) {
	segments := []domain.Segment{
		{Text: "a", Offset: 0, Duration: 3},
		{Text: "b", Offset: 5.5, Duration: 2.5},
	}
	if got := totalDuration(segments); got != 8.0 {
		t.Errorf("totalDuration = %v, want 8.0", got)
	}
	if totalDuration(nil) != 0 {
		t.Error("empty transcript should have zero duration")
	}
}
