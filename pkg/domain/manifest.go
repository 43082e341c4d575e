package domain

import "time"

// ManifestEntry represents one discovered video in the catalog.
//
// Entries are produced once by the discovery step and never mutated by the
// pipeline; pipeline state lives in ProgressRecord.
type ManifestEntry struct {
	// VideoID is the 11-character YouTube video ID.
	VideoID string `bson:"video_id" json:"video_id"`

	ChannelID   string `bson:"channel_id" json:"channel_id"`
	ChannelName string `bson:"channel_name" json:"channel_name"`
	Title       string `bson:"title" json:"title"`

	// Tier is the priority/cost class assigned at discovery time
	// (e.g. "core", "standard", "backfill").
	Tier string `bson:"tier" json:"tier"`

	ViewCount       int64      `bson:"view_count,omitempty" json:"view_count,omitempty"`
	DurationSeconds int        `bson:"duration_seconds,omitempty" json:"duration_seconds,omitempty"`
	UploadedAt      *time.Time `bson:"uploaded_at,omitempty" json:"uploaded_at,omitempty"`

	DiscoveredAt time.Time `bson:"discovered_at" json:"discovered_at"`
}
