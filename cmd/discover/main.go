// Command discover populates the video manifest from channel RSS feeds or a
// JSONL file, upserting by video ID so re-discovery never duplicates.
package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"tutorgraph/pkg/config"
	"tutorgraph/pkg/db"
	"tutorgraph/pkg/discovery"
	"tutorgraph/pkg/domain"
	"tutorgraph/pkg/filter"
)

func main() {
	var (
		channels    = flag.String("channels", "", "Comma-separated YouTube channel IDs to discover via RSS")
		manifest    = flag.String("manifest", "", "Path to a manifest JSONL file to load")
		tier        = flag.String("tier", "standard", "Tier assigned to discovered videos (core, standard, backfill)")
		minViews    = flag.Int64("min-views", 0, "Drop videos below this view count (0 disables)")
		maxDuration = flag.Int("max-duration", 0, "Drop videos longer than this many seconds (0 disables)")
	)
	flag.Parse()

	if *channels == "" && *manifest == "" {
		log.Fatal("at least one of -channels or -manifest is required")
	}

	cfg := config.Load()
	ctx := context.Background()

	store := db.NewStore(cfg.MongoURI, cfg.MongoDatabase)
	if err := store.Connect(ctx); err != nil {
		log.Fatalf("connect to mongo: %v", err)
	}
	defer store.Close(ctx)

	var entries []domain.ManifestEntry

	if *manifest != "" {
		fromFile, err := discovery.FromJSONL(*manifest)
		if err != nil {
			log.Fatalf("load manifest file: %v", err)
		}
		log.Printf("loaded %d entries from %s", len(fromFile), *manifest)
		entries = append(entries, fromFile...)
	}

	for _, channelID := range strings.Split(*channels, ",") {
		channelID = strings.TrimSpace(channelID)
		if channelID == "" {
			continue
		}
		fromFeed, err := discovery.FromChannel(ctx, channelID, *tier)
		if err != nil {
			log.Fatalf("discover channel %s: %v", channelID, err)
		}
		log.Printf("discovered %d videos from channel %s", len(fromFeed), channelID)
		entries = append(entries, fromFeed...)
	}

	filters := []filter.Filter{filter.ValidIDFilter{}}
	if *minViews > 0 {
		filters = append(filters, filter.MinViewsFilter{Min: *minViews})
	}
	if *maxDuration > 0 {
		filters = append(filters, filter.MaxDurationFilter{MaxSeconds: *maxDuration})
	}
	kept, err := filter.Apply(entries, filters...)
	if err != nil {
		log.Fatalf("filter manifest: %v", err)
	}
	if dropped := len(entries) - len(kept); dropped > 0 {
		log.Printf("filtered out %d entries", dropped)
	}

	if err := store.UpsertManifestEntries(ctx, kept); err != nil {
		log.Fatalf("upsert manifest: %v", err)
	}
	log.Printf("manifest updated: %d entries upserted", len(kept))
}
