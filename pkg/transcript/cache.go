package transcript

import (
	"context"
	"encoding/json"
	"time"

	"tutorgraph/pkg/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DurableStore is the persistent transcript cache the funnel reads and
// writes. A transcript stored here is never re-fetched.
type DurableStore interface {
	GetTranscript(ctx context.Context, videoID string) (*domain.TranscriptRecord, error)
	PutTranscript(ctx context.Context, rec *domain.TranscriptRecord) error
}

const (
	redisKeyPrefix = "transcript:"
	redisTTL       = 24 * time.Hour
)

// Cache layers an optional Redis hot tier over the durable store. Redis is
// best effort: any Redis error degrades to the durable store and is logged
// at debug, never surfaced.
type Cache struct {
	hot     *redis.Client // nil when no hot tier is configured
	durable DurableStore
	log     *zap.SugaredLogger
}

// NewCache builds the cache. hot may be nil.
func NewCache(hot *redis.Client, durable DurableStore, log *zap.SugaredLogger) *Cache {
	return &Cache{hot: hot, durable: durable, log: log}
}

// Get returns the cached transcript or (nil, nil) on a miss. A durable hit
// backfills the hot tier.
func (c *Cache) Get(ctx context.Context, videoID string) (*domain.TranscriptRecord, error) {
	if c.hot != nil {
		raw, err := c.hot.Get(ctx, redisKeyPrefix+videoID).Result()
		if err == nil {
			var rec domain.TranscriptRecord
			if jsonErr := json.Unmarshal([]byte(raw), &rec); jsonErr == nil {
				return &rec, nil
			}
		} else if err != redis.Nil {
			c.log.Debugw("redis get failed, falling back to durable cache", "video_id", videoID, "error", err)
		}
	}

	rec, err := c.durable.GetTranscript(ctx, videoID)
	if err != nil || rec == nil {
		return rec, err
	}
	c.backfill(ctx, rec)
	return rec, nil
}

// Put writes the transcript durably, then best-effort to the hot tier. The
// durable write must succeed before the caller may advance the item's
// status.
func (c *Cache) Put(ctx context.Context, rec *domain.TranscriptRecord) error {
	if err := c.durable.PutTranscript(ctx, rec); err != nil {
		return err
	}
	c.backfill(ctx, rec)
	return nil
}

func (c *Cache) backfill(ctx context.Context, rec *domain.TranscriptRecord) {
	if c.hot == nil {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.hot.Set(ctx, redisKeyPrefix+rec.VideoID, raw, redisTTL).Err(); err != nil {
		c.log.Debugw("redis set failed", "video_id", rec.VideoID, "error", err)
	}
}
