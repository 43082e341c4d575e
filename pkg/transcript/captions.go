package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"tutorgraph/pkg/domain"
	"tutorgraph/pkg/httpclient"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// ErrNoCaptions means the video has no caption track. Not an error worth
// retrying: the funnel falls through to whisper.
var ErrNoCaptions = errors.New("no caption track available")

const watchURLFormat = "https://www.youtube.com/watch?v=%s"

// captionTracksPattern locates the player's caption track list inside the
// watch page HTML.
var captionTracksPattern = regexp.MustCompile(`"captionTracks":(\[.*?\])`)

// Scraper pulls caption tracks off the public watch page. Every outbound
// request goes through the shared gate.
type Scraper struct {
	http *httpclient.HTTPClient
	gate *Gate
	log  *zap.SugaredLogger
}

// NewScraper builds a caption scraper over the shared cooldown gate.
func NewScraper(gate *Gate, log *zap.SugaredLogger) *Scraper {
	return &Scraper{
		http: httpclient.NewClient(httpclient.BrowserClient),
		gate: gate,
		log:  log,
	}
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" for auto-generated
}

// Fetch scrapes the watch page for videoID and downloads its caption track.
// Returns ErrNoCaptions when the page has no usable track.
func (s *Scraper) Fetch(ctx context.Context, videoID string) (*domain.TranscriptRecord, error) {
	body, err := s.get(ctx, fmt.Sprintf(watchURLFormat, videoID))
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("fetch watch page %s: %w", videoID, err))
	}

	title, author := parsePageMeta(body)

	match := captionTracksPattern.FindSubmatch(body)
	if match == nil {
		return nil, ErrNoCaptions
	}
	var tracks []captionTrack
	if err := json.Unmarshal(match[1], &tracks); err != nil {
		return nil, domain.Data(fmt.Errorf("decode caption tracks %s: %w", videoID, err))
	}
	track := pickTrack(tracks)
	if track == nil {
		return nil, ErrNoCaptions
	}

	raw, err := s.get(ctx, track.BaseURL)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("fetch caption track %s: %w", videoID, err))
	}
	segments, err := parseTimedText(raw)
	if err != nil {
		return nil, domain.Data(fmt.Errorf("parse caption track %s: %w", videoID, err))
	}
	if len(segments) == 0 {
		return nil, ErrNoCaptions
	}

	return &domain.TranscriptRecord{
		VideoID:         videoID,
		Segments:        segments,
		Source:          domain.SourceCaptions,
		SegmentCount:    len(segments),
		DurationSeconds: totalDuration(segments),
		Title:           title,
		Author:          author,
		FetchedAt:       time.Now().UTC(),
	}, nil
}

func (s *Scraper) get(ctx context.Context, url string) ([]byte, error) {
	if err := s.gate.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// parsePageMeta pulls the video title and channel name from the watch page's
// meta tags. Both are optional enrichments.
func parsePageMeta(body []byte) (title, author string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}
	title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
	author, _ = doc.Find(`link[itemprop="name"]`).Attr("content")
	if author == "" {
		author, _ = doc.Find(`meta[itemprop="author"]`).Attr("content")
	}
	return title, author
}

// pickTrack prefers a manually-authored English track, then auto-generated
// English, then whatever is first.
func pickTrack(tracks []captionTrack) *captionTrack {
	var asrEnglish *captionTrack
	for i := range tracks {
		t := &tracks[i]
		if !strings.HasPrefix(t.LanguageCode, "en") {
			continue
		}
		if t.Kind != "asr" {
			return t
		}
		if asrEnglish == nil {
			asrEnglish = t
		}
	}
	if asrEnglish != nil {
		return asrEnglish
	}
	if len(tracks) > 0 {
		return &tracks[0]
	}
	return nil
}

type timedText struct {
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}

// parseTimedText converts the timedtext XML payload into segments. Caption
// bodies arrive double-escaped ("&amp;#39;"), so unescape after the XML
// decoder has already unescaped once.
func parseTimedText(raw []byte) ([]domain.Segment, error) {
	var tt timedText
	if err := xml.Unmarshal(raw, &tt); err != nil {
		return nil, err
	}
	segments := make([]domain.Segment, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Body))
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Text:     text,
			Offset:   t.Start,
			Duration: t.Dur,
		})
	}
	return segments, nil
}

func totalDuration(segments []domain.Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	last := segments[len(segments)-1]
	return last.Offset + last.Duration
}
