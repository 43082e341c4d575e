package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"tutorgraph/pkg/domain"
	"tutorgraph/pkg/httpclient"

	"go.uber.org/zap"
)

// instance is one GPU whisper service. The slot channel caps it at one
// in-flight transcription: the GPU serializes work anyway, a second request
// would just be told 503.
type instance struct {
	baseURL string
	slot    chan struct{}
}

func (i *instance) tryAcquire() bool {
	select {
	case i.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (i *instance) release() { <-i.slot }

// Pool spreads transcription requests over the configured whisper instances
// round-robin, retrying busy signals with backoff for a bounded number of
// attempts.
type Pool struct {
	instances   []*instance
	next        atomic.Uint64
	busyRetries int
	http        *httpclient.HTTPClient
	log         *zap.SugaredLogger
}

// NewPool builds a pool over the given instance base URLs. An empty URL list
// yields a pool whose Transcribe always reports no capacity.
func NewPool(urls []string, busyRetries int, log *zap.SugaredLogger) *Pool {
	p := &Pool{
		busyRetries: busyRetries,
		http:        httpclient.NewClient(httpclient.ServiceClient),
		log:         log,
	}
	for _, u := range urls {
		p.instances = append(p.instances, &instance{baseURL: u, slot: make(chan struct{}, 1)})
	}
	return p
}

// Size returns the number of configured instances.
func (p *Pool) Size() int { return len(p.instances) }

// initialBusyBackoff is the first delay after a busy signal. Variable so
// tests can shrink it.
var initialBusyBackoff = time.Second

type transcribeRequest struct {
	VideoID string `json:"video_id"`
}

type transcribeResponse struct {
	Segments []domain.Segment `json:"segments"`
	Duration float64          `json:"duration"`
}

// Transcribe runs one video through an available instance. Busy instances
// (local slot taken or HTTP 503) are retried with exponential backoff up to
// the configured attempt bound; exhausting the bound returns a capacity
// error, which the funnel treats as "leave the item pending", never as item
// failure.
func (p *Pool) Transcribe(ctx context.Context, videoID string) (*domain.TranscriptRecord, error) {
	if len(p.instances) == 0 {
		return nil, domain.Capacity(fmt.Errorf("no whisper instances configured"))
	}

	backoff := initialBusyBackoff
	for attempt := 0; ; attempt++ {
		inst := p.pick()
		rec, err := p.transcribeOn(ctx, inst, videoID)
		if err == nil {
			return rec, nil
		}
		if !domain.IsCapacity(err) {
			return nil, err
		}
		if attempt >= p.busyRetries {
			return nil, domain.Capacity(fmt.Errorf("whisper capacity exhausted for %s after %d attempts", videoID, attempt+1))
		}

		p.log.Debugw("whisper busy, backing off", "video_id", videoID, "attempt", attempt+1, "backoff", backoff)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (p *Pool) pick() *instance {
	n := p.next.Add(1)
	return p.instances[int(n-1)%len(p.instances)]
}

func (p *Pool) transcribeOn(ctx context.Context, inst *instance, videoID string) (*domain.TranscriptRecord, error) {
	if !inst.tryAcquire() {
		return nil, domain.Capacity(fmt.Errorf("instance %s has a transcription in flight", inst.baseURL))
	}
	defer inst.release()

	payload, _ := json.Marshal(transcribeRequest{VideoID: videoID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inst.baseURL+"/transcribe", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("whisper request %s: %w", inst.baseURL, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, domain.Capacity(fmt.Errorf("instance %s busy", inst.baseURL))
	case resp.StatusCode != http.StatusOK:
		return nil, domain.Transient(fmt.Errorf("whisper %s returned status %d", inst.baseURL, resp.StatusCode))
	}

	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.Data(fmt.Errorf("decode whisper response %s: %w", videoID, err))
	}
	if len(out.Segments) == 0 {
		return nil, domain.Data(fmt.Errorf("whisper returned empty transcript for %s", videoID))
	}

	duration := out.Duration
	if duration == 0 {
		duration = totalDuration(out.Segments)
	}
	return &domain.TranscriptRecord{
		VideoID:         videoID,
		Segments:        out.Segments,
		Source:          domain.SourceWhisper,
		SegmentCount:    len(out.Segments),
		DurationSeconds: duration,
		FetchedAt:       time.Now().UTC(),
	}, nil
}
