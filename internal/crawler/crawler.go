// Package crawler walks the climbing site's area tree. Discover follows one
// weighted random path down to a single route; Build visits every area and
// route under a root and persists what it finds; Enrich adds descriptions
// and comments to routes already stored.
package crawler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ramkansal/routeguessr/internal/extractor"
	"github.com/ramkansal/routeguessr/internal/fetcher"
	"github.com/ramkansal/routeguessr/internal/store"
	"github.com/ramkansal/routeguessr/pkg/plugin"
	"github.com/rs/zerolog"
)

// Crawler holds the collaborators shared by every traversal. It keeps no
// per-traversal state, so concurrent Discover calls are safe.
type Crawler struct {
	config  *Config
	fetch   plugin.Fetcher
	store   store.Store
	log     zerolog.Logger
	newRand func() *rand.Rand
	events  chan<- plugin.CrawlEvent
}

// Option customises a Crawler.
type Option func(*Crawler)

// WithRand sets the random source factory; each traversal calls it once.
func WithRand(f func() *rand.Rand) Option {
	return func(c *Crawler) { c.newRand = f }
}

// WithEvents sends crawl events to ch. Sends never block; events are
// dropped when ch is full.
func WithEvents(ch chan<- plugin.CrawlEvent) Option {
	return func(c *Crawler) { c.events = ch }
}

// New creates a Crawler. st may be nil when only Discover is used.
func New(config *Config, f plugin.Fetcher, st store.Store, log zerolog.Logger, opts ...Option) *Crawler {
	if config == nil {
		config = DefaultConfig()
	}
	c := &Crawler{
		config: config,
		fetch:  f,
		store:  st,
		log:    log.With().Str("component", "crawler").Logger(),
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFetcher builds the fetcher selected by config.FetcherMode. When the
// browser cannot be launched it falls back to plain HTTP.
func NewFetcher(config *Config, log zerolog.Logger) plugin.Fetcher {
	httpFetch := fetcher.NewHTTPFetcher(fetcher.HTTPFetcherConfig{
		UserAgent:       config.UserAgent,
		RespectRobots:   config.RespectRobots,
		Timeout:         config.Timeout,
		MaxResponseSize: config.MaxResponseSize,
		Proxy:           config.Proxy,
		CustomHeaders:   config.CustomHeaders,
	})
	if config.FetcherMode != FetcherBrowser {
		return httpFetch
	}

	bf, err := fetcher.NewBrowserFetcher(fetcher.BrowserFetcherConfig{
		Timeout:     config.BrowserTimeout,
		PageTimeout: config.PageTimeout,
		UserAgent:   config.UserAgent,
	})
	if err != nil {
		log.Warn().Err(err).Msg("browser fetcher unavailable, falling back to HTTP")
		return httpFetch
	}
	_ = httpFetch.Close()
	return bf
}

// Close releases the fetcher.
func (c *Crawler) Close() error {
	if c.fetch != nil {
		return c.fetch.Close()
	}
	return nil
}

// load fetches a page and parses it.
func load(ctx context.Context, f plugin.Fetcher, link string, depth int) (*extractor.Document, error) {
	page, err := f.Fetch(ctx, link, depth)
	if err != nil {
		return nil, err
	}
	return extractor.NewDocument(page)
}

// emit sends an event to the event channel (non-blocking).
func (c *Crawler) emit(event plugin.CrawlEvent) {
	if c.events == nil {
		return
	}
	select {
	case c.events <- event:
	default:
		// Drop event if the consumer is too slow; the crawl never blocks on it.
	}
}

// tally tracks the live statistics of one build.
type tally struct {
	mu      sync.Mutex
	stats   plugin.CrawlStats
	started time.Time
}

func (t *tally) add(f func(s *plugin.CrawlStats)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f(&t.stats)
	t.stats.Elapsed = time.Since(t.started)
}

// snapshot returns a copy of the current stats.
func (t *tally) snapshot() *plugin.CrawlStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.stats
	return &s
}

func pageError(link string, err error) plugin.CrawlEvent {
	return plugin.CrawlEvent{
		Type:    plugin.EventPageError,
		URL:     link,
		Error:   err,
		Message: fmt.Sprintf("Error on %s: %v", link, err),
	}
}
