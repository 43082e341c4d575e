package db

import (
	"context"
	"fmt"
	"time"

	"tutorgraph/pkg/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store wraps the MongoDB collections backing the pipeline's key-value state:
// the manifest, per-video progress records, the transcript cache and the raw
// extraction blobs.
type Store struct {
	mongoClient *mongo.Client
	database    *mongo.Database

	manifest    *mongo.Collection
	progress    *mongo.Collection
	transcripts *mongo.Collection
	extractions *mongo.Collection
}

// NewStore creates a new store client.
func NewStore(connectionString, databaseName string) *Store {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		// Return store with nil client - error will be caught during Connect()
		return &Store{}
	}

	database := mongoClient.Database(databaseName)
	return &Store{
		mongoClient: mongoClient,
		database:    database,
		manifest:    database.Collection("manifest"),
		progress:    database.Collection("progress"),
		transcripts: database.Collection("transcripts"),
		extractions: database.Collection("extractions"),
	}
}

// Connect establishes connection to MongoDB.
func (s *Store) Connect(ctx context.Context) error {
	if s.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	return s.mongoClient.Ping(ctx, nil)
}

// Close closes the MongoDB connection.
func (s *Store) Close(ctx context.Context) error {
	if s.mongoClient == nil {
		return nil
	}
	return s.mongoClient.Disconnect(ctx)
}

// --- Manifest ---

// UpsertManifestEntries writes discovered videos, keyed by video ID.
// Re-discovering a video never duplicates it.
func (s *Store) UpsertManifestEntries(ctx context.Context, entries []domain.ManifestEntry) error {
	for _, entry := range entries {
		filter := bson.M{"video_id": entry.VideoID}
		update := bson.M{"$set": entry}
		opts := options.Update().SetUpsert(true)
		if _, err := s.manifest.UpdateOne(ctx, filter, update, opts); err != nil {
			return fmt.Errorf("upsert manifest %s: %w", entry.VideoID, err)
		}
	}
	return nil
}

// GetManifestEntry returns one manifest entry, or nil when unknown.
func (s *Store) GetManifestEntry(ctx context.Context, videoID string) (*domain.ManifestEntry, error) {
	var entry domain.ManifestEntry
	err := s.manifest.FindOne(ctx, bson.M{"video_id": videoID}).Decode(&entry)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get manifest %s: %w", videoID, err)
	}
	return &entry, nil
}

// PendingBatch returns up to limit manifest entries that still have pipeline
// work left: no progress record yet, pending, or parked at an intermediate
// status. limit <= 0 returns the whole pending set. Items at batch_queued
// are excluded - those belong to crash recovery and the in-flight poll, not
// to a fresh cycle.
func (s *Store) PendingBatch(ctx context.Context, limit int, channelID, tier string) ([]domain.ManifestEntry, error) {
	statuses, err := s.statusMap(ctx)
	if err != nil {
		return nil, err
	}

	filter := bson.M{}
	if channelID != "" {
		filter["channel_id"] = channelID
	}
	if tier != "" {
		filter["tier"] = tier
	}

	cursor, err := s.manifest.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query manifest: %w", err)
	}
	defer cursor.Close(ctx)

	var batch []domain.ManifestEntry
	for cursor.Next(ctx) {
		if limit > 0 && len(batch) >= limit {
			break
		}
		var entry domain.ManifestEntry
		if err := cursor.Decode(&entry); err != nil {
			continue // Skip invalid documents
		}
		status, seen := statuses[entry.VideoID]
		if !seen || resumable(status) {
			batch = append(batch, entry)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return batch, nil
}

// resumable reports whether a status still has steps left that a normal
// cycle should run.
func resumable(status domain.Status) bool {
	switch status {
	case domain.StatusCompleted, domain.StatusFailed, domain.StatusBatchQueued:
		return false
	}
	return true
}

// statusMap loads video_id -> status for every progress record.
func (s *Store) statusMap(ctx context.Context) (map[string]domain.Status, error) {
	cursor, err := s.progress.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"video_id": 1, "status": 1, "_id": 0}))
	if err != nil {
		return nil, fmt.Errorf("query progress statuses: %w", err)
	}
	defer cursor.Close(ctx)

	out := make(map[string]domain.Status)
	for cursor.Next(ctx) {
		var rec struct {
			VideoID string        `bson:"video_id"`
			Status  domain.Status `bson:"status"`
		}
		if err := cursor.Decode(&rec); err != nil {
			continue
		}
		out[rec.VideoID] = rec.Status
	}
	return out, cursor.Err()
}

// --- Progress records ---

// GetProgress returns the progress record for a video, or nil when the video
// has never been touched.
func (s *Store) GetProgress(ctx context.Context, videoID string) (*domain.ProgressRecord, error) {
	var rec domain.ProgressRecord
	err := s.progress.FindOne(ctx, bson.M{"video_id": videoID}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress %s: %w", videoID, err)
	}
	return &rec, nil
}

// EnsureProgress returns the existing record or creates a pending one.
func (s *Store) EnsureProgress(ctx context.Context, videoID string) (*domain.ProgressRecord, error) {
	rec, err := s.GetProgress(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}
	now := time.Now().UTC()
	rec = &domain.ProgressRecord{
		VideoID:       videoID,
		Status:        domain.StatusPending,
		StartedAt:     now,
		LastAttemptAt: now,
	}
	if _, err := s.progress.InsertOne(ctx, rec); err != nil {
		return nil, fmt.Errorf("create progress %s: %w", videoID, err)
	}
	return rec, nil
}

// ListByStatus returns every progress record at the given status.
func (s *Store) ListByStatus(ctx context.Context, status domain.Status) ([]domain.ProgressRecord, error) {
	cursor, err := s.progress.Find(ctx, bson.M{"status": status})
	if err != nil {
		return nil, fmt.Errorf("query progress by status: %w", err)
	}
	defer cursor.Close(ctx)

	var records []domain.ProgressRecord
	for cursor.Next(ctx) {
		var rec domain.ProgressRecord
		if err := cursor.Decode(&rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, cursor.Err()
}

// SetStatus advances a record to status. SetStatus refuses to move a record
// backwards so a stale writer cannot undo durable work.
func (s *Store) SetStatus(ctx context.Context, videoID string, status domain.Status) error {
	current, err := s.GetProgress(ctx, videoID)
	if err != nil {
		return err
	}
	if current != nil && status != domain.StatusFailed && current.Status.Rank() > status.Rank() {
		return fmt.Errorf("refusing to move %s backwards from %s to %s", videoID, current.Status, status)
	}

	set := bson.M{
		"status":          status,
		"last_attempt_at": time.Now().UTC(),
	}
	if status == domain.StatusCompleted {
		set["completed_at"] = time.Now().UTC()
	}
	_, err = s.progress.UpdateOne(ctx,
		bson.M{"video_id": videoID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set status %s=%s: %w", videoID, status, err)
	}
	return nil
}

// MarkFailed sets a record to failed with a truncated error message and
// bumps the attempt count.
func (s *Store) MarkFailed(ctx context.Context, videoID, message string) error {
	_, err := s.progress.UpdateOne(ctx,
		bson.M{"video_id": videoID},
		bson.M{
			"$set": bson.M{
				"status":          domain.StatusFailed,
				"error_message":   domain.TruncateError(message),
				"last_attempt_at": time.Now().UTC(),
			},
			"$inc": bson.M{"attempt_count": 1},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mark failed %s: %w", videoID, err)
	}
	return nil
}

// MergeMetadata merges key/value pairs into a record's metadata map.
func (s *Store) MergeMetadata(ctx context.Context, videoID string, meta map[string]string) error {
	set := bson.M{}
	for k, v := range meta {
		set["metadata."+k] = v
	}
	_, err := s.progress.UpdateOne(ctx,
		bson.M{"video_id": videoID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("merge metadata %s: %w", videoID, err)
	}
	return nil
}

// ResetFailed flips every failed record back to pending for a targeted retry
// pass. Returns the number of records reset.
func (s *Store) ResetFailed(ctx context.Context) (int, error) {
	res, err := s.progress.UpdateMany(ctx,
		bson.M{"status": domain.StatusFailed},
		bson.M{"$set": bson.M{
			"status":        domain.StatusPending,
			"error_message": "",
		}})
	if err != nil {
		return 0, fmt.Errorf("reset failed records: %w", err)
	}
	return int(res.ModifiedCount), nil
}

// --- Transcript cache ---

// GetTranscript returns the cached transcript for a video. A miss is
// distinguishable from an error: (nil, nil) means "not cached yet".
func (s *Store) GetTranscript(ctx context.Context, videoID string) (*domain.TranscriptRecord, error) {
	var rec domain.TranscriptRecord
	err := s.transcripts.FindOne(ctx, bson.M{"video_id": videoID}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript %s: %w", videoID, err)
	}
	return &rec, nil
}

// PutTranscript upserts a transcript cache entry, keyed by video ID.
func (s *Store) PutTranscript(ctx context.Context, rec *domain.TranscriptRecord) error {
	filter := bson.M{"video_id": rec.VideoID}
	update := bson.M{"$set": rec}
	opts := options.Update().SetUpsert(true)
	if _, err := s.transcripts.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("put transcript %s: %w", rec.VideoID, err)
	}
	return nil
}

// --- Raw extraction blobs ---

type rawExtraction struct {
	VideoID   string    `bson:"video_id"`
	Model     string    `bson:"model"`
	Raw       string    `bson:"raw"`
	FetchedAt time.Time `bson:"fetched_at"`
}

// PutRawExtraction persists the provider's verbatim output for a video
// before decomposition, so a normalization failure never costs a second
// inference call.
func (s *Store) PutRawExtraction(ctx context.Context, videoID, model, raw string) error {
	doc := rawExtraction{VideoID: videoID, Model: model, Raw: raw, FetchedAt: time.Now().UTC()}
	filter := bson.M{"video_id": videoID}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	if _, err := s.extractions.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("put extraction %s: %w", videoID, err)
	}
	return nil
}

// GetRawExtraction returns the stored raw extraction for a video, or ""
// when none exists.
func (s *Store) GetRawExtraction(ctx context.Context, videoID string) (string, error) {
	var doc rawExtraction
	err := s.extractions.FindOne(ctx, bson.M{"video_id": videoID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get extraction %s: %w", videoID, err)
	}
	return doc.Raw, nil
}
