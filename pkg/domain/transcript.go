package domain

import (
	"fmt"
	"strings"
	"time"
)

// Segment is one timed span of transcript text.
type Segment struct {
	Text     string  `bson:"text" json:"text"`
	Offset   float64 `bson:"offset" json:"offset"`
	Duration float64 `bson:"duration" json:"duration"`
}

// TranscriptRecord is the durable cache entry for one video's transcript.
// Keyed by video ID, no expiry: a transcript fetched once is never re-fetched.
type TranscriptRecord struct {
	VideoID         string    `bson:"video_id" json:"video_id"`
	Segments        []Segment `bson:"segments" json:"segments"`
	Source          string    `bson:"source" json:"source"` // "cache", "captions", "whisper"
	SegmentCount    int       `bson:"segment_count" json:"segment_count"`
	DurationSeconds float64   `bson:"duration_seconds" json:"duration_seconds"`
	Title           string    `bson:"title,omitempty" json:"title,omitempty"`
	Author          string    `bson:"author,omitempty" json:"author,omitempty"`
	FetchedAt       time.Time `bson:"fetched_at" json:"fetched_at"`
}

// Transcript source tags.
const (
	SourceCaptions = "captions"
	SourceWhisper  = "whisper"
)

// PreparedItem is the transient, in-memory unit handed to batch submission:
// one video's transcript formatted for the extraction prompt.
type PreparedItem struct {
	VideoID     string
	ChannelName string
	Title       string
	Segments    []Segment

	// Transcript is the formatted transcript string, capped at
	// TranscriptCharBudget. Overflow is truncated with an explicit marker,
	// never silently dropped.
	Transcript string
}

// TranscriptCharBudget caps the formatted transcript included in one
// extraction request. Roughly 30k tokens of timestamped text.
const TranscriptCharBudget = 120000

// TruncationMarker is appended when a formatted transcript exceeds the budget.
const TruncationMarker = "\n[transcript truncated]"

// FormatTranscript renders segments as "[mm:ss] text" lines, capped at budget
// characters. A transcript that overflows the budget ends with
// TruncationMarker so the extraction model knows the tail is missing.
func FormatTranscript(segments []Segment, budget int) string {
	var sb strings.Builder
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		line := fmt.Sprintf("[%s] %s\n", formatOffset(seg.Offset), text)
		if sb.Len()+len(line) > budget-len(TruncationMarker) {
			sb.WriteString(TruncationMarker)
			break
		}
		sb.WriteString(line)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatOffset(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Prepare builds a PreparedItem from a manifest entry and its cached
// transcript.
func Prepare(entry ManifestEntry, rec *TranscriptRecord) PreparedItem {
	title := entry.Title
	if title == "" {
		title = rec.Title
	}
	return PreparedItem{
		VideoID:     entry.VideoID,
		ChannelName: entry.ChannelName,
		Title:       title,
		Segments:    rec.Segments,
		Transcript:  FormatTranscript(rec.Segments, TranscriptCharBudget),
	}
}
