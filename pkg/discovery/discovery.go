// Package discovery populates the manifest: from channel RSS feeds and from
// manifest JSONL files produced offline.
package discovery

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"tutorgraph/pkg/domain"

	"github.com/mmcdole/gofeed"
)

const channelFeedFormat = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"

// videoGUIDPrefix is how YouTube feed entries encode the video ID.
const videoGUIDPrefix = "yt:video:"

// FromChannel fetches a channel's RSS feed and converts its entries into
// manifest entries. The feed only exposes the latest uploads, so discovery
// runs repeatedly and upserts.
func FromChannel(ctx context.Context, channelID, tier string) ([]domain.ManifestEntry, error) {
	fp := gofeed.NewParser()
	feed, err := fp.ParseURLWithContext(fmt.Sprintf(channelFeedFormat, channelID), ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch channel feed %s: %w", channelID, err)
	}

	now := time.Now().UTC()
	var entries []domain.ManifestEntry
	for _, item := range feed.Items {
		if !strings.HasPrefix(item.GUID, videoGUIDPrefix) {
			continue
		}
		videoID := strings.TrimPrefix(item.GUID, videoGUIDPrefix)
		if videoID == "" {
			continue
		}
		entry := domain.ManifestEntry{
			VideoID:      videoID,
			ChannelID:    channelID,
			ChannelName:  feed.Title,
			Title:        item.Title,
			Tier:         tier,
			DiscoveredAt: now,
		}
		if item.PublishedParsed != nil {
			t := item.PublishedParsed.UTC()
			entry.UploadedAt = &t
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// FromJSONL reads manifest entries from a JSONL file, one entry per line.
// Blank lines are skipped; a malformed line is an error, a silently dropped
// manifest row would be invisible forever.
func FromJSONL(path string) ([]domain.ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest %s: %w", path, err)
	}
	defer f.Close()
	return parseJSONL(f, path)
}

func parseJSONL(r io.Reader, name string) ([]domain.ManifestEntry, error) {
	var entries []domain.ManifestEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lineNo := 0
	now := time.Now().UTC()
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry domain.ManifestEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", name, lineNo, err)
		}
		if entry.VideoID == "" {
			return nil, fmt.Errorf("%s line %d: missing video_id", name, lineNo)
		}
		if entry.DiscoveredAt.IsZero() {
			entry.DiscoveredAt = now
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", name, err)
	}
	return entries, nil
}
