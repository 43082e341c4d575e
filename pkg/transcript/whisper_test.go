package transcript

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"tutorgraph/pkg/domain"
	"tutorgraph/pkg/logging"
)

func init() {
	initialBusyBackoff = time.Millisecond
}

func whisperServer(t *testing.T, busy *atomic.Bool, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if busy != nil && busy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"segments":[{"text":"hello","offset":0,"duration":2.5}],"duration":2.5}`))
	}))
}

func TestPoolTranscribe(t *testing.T) {
	var calls atomic.Int64
	srv := whisperServer(t, nil, &calls)
	defer srv.Close()

	pool := NewPool([]string{srv.URL}, 2, logging.NewNop())
	rec, err := pool.Transcribe(context.Background(), "vid00000001")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if rec.Source != domain.SourceWhisper {
		t.Errorf("expected whisper source, got %q", rec.Source)
	}
	if rec.SegmentCount != 1 || rec.DurationSeconds != 2.5 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestPoolBusyFallsToNextInstance(t *testing.T) {
	var busyFlag atomic.Bool
	busyFlag.Store(true)
	var busyCalls, okCalls atomic.Int64

	busySrv := whisperServer(t, &busyFlag, &busyCalls)
	defer busySrv.Close()
	okSrv := whisperServer(t, nil, &okCalls)
	defer okSrv.Close()

	pool := NewPool([]string{busySrv.URL, okSrv.URL}, 3, logging.NewNop())
	rec, err := pool.Transcribe(context.Background(), "vid00000001")
	if err != nil {
		t.Fatalf("expected the second instance to serve, got %v", err)
	}
	if rec == nil || okCalls.Load() == 0 {
		t.Error("healthy instance was never used")
	}
}

func TestPoolAllBusyIsCapacityError(t *testing.T) {
	var busyFlag atomic.Bool
	busyFlag.Store(true)
	var calls atomic.Int64
	srv := whisperServer(t, &busyFlag, &calls)
	defer srv.Close()

	pool := NewPool([]string{srv.URL}, 1, logging.NewNop())
	_, err := pool.Transcribe(context.Background(), "vid00000001")
	if err == nil {
		t.Fatal("expected capacity error")
	}
	if !domain.IsCapacity(err) {
		t.Errorf("expected capacity classification, got %v", err)
	}
	// Initial attempt plus one bounded retry.
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestPoolEmptyIsCapacityError(t *testing.T) {
	pool := NewPool(nil, 3, logging.NewNop())
	_, err := pool.Transcribe(context.Background(), "vid00000001")
	if !domain.IsCapacity(err) {
		t.Errorf("expected capacity error for empty pool, got %v", err)
	}
}
