// Package transcript resolves a transcript for every manifest entry through
// a three-tier funnel: durable cache, caption scrape, GPU whisper.
package transcript

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate enforces a minimum interval between caption scrape requests across
// every worker goroutine. One shared limiter, burst 1, so N concurrent
// workers never hit the watch-page endpoint faster than one request per
// interval.
type Gate struct {
	lim *rate.Limiter
}

// NewGate builds a gate with the given minimum spacing between requests.
func NewGate(interval time.Duration) *Gate {
	return &Gate{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next request slot, or until ctx is canceled.
func (g *Gate) Wait(ctx context.Context) error {
	return g.lim.Wait(ctx)
}
