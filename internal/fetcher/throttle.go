package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/ramkansal/routeguessr/pkg/plugin"
	"golang.org/x/time/rate"
)

// Throttle enforces a fixed pause between consecutive fetches of the
// wrapped fetcher. The pause runs from the end of one fetch to the start
// of the next, so a slow response never shortens it. An exhaustive build
// waits before every area, listing, route and image request.
type Throttle struct {
	next  plugin.Fetcher
	delay time.Duration

	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewThrottle wraps next so that fetches are at least delay apart.
// A zero delay returns a pass-through throttle.
func NewThrottle(next plugin.Fetcher, delay time.Duration) *Throttle {
	return &Throttle{next: next, delay: delay}
}

func (t *Throttle) Name() string { return t.next.Name() }

// Delay returns the configured pause between fetches.
func (t *Throttle) Delay() time.Duration { return t.delay }

// Fetch waits out the pause left by the previous fetch, then fetches.
// Fetches through one Throttle are serialised.
func (t *Throttle) Fetch(ctx context.Context, url string, depth int) (*plugin.PageData, error) {
	if t.delay <= 0 {
		return t.next.Fetch(ctx, url, depth)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	defer t.rearm()
	return t.next.Fetch(ctx, url, depth)
}

// rearm starts a fresh pause at the current instant.
func (t *Throttle) rearm() {
	l := rate.NewLimiter(rate.Every(t.delay), 1)
	l.Allow()
	t.limiter = l
}

func (t *Throttle) Close() error { return t.next.Close() }
