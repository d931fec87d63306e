// Package plugin defines the public interfaces for the routeguessr crawler.
// External tools can import this package to plug in their own fetchers or
// consume the crawl event stream without forking the project.
package plugin

import (
	"context"
	"net/http"
	"time"
)

// ---------- Core Data Types ----------

// PageData represents a fetched page of the climbing site.
type PageData struct {
	URL           string        `json:"url"`
	FinalURL      string        `json:"final_url"`
	StatusCode    int           `json:"status_code"`
	Headers       http.Header   `json:"-"`
	RawHTML       string        `json:"-"`
	RenderedHTML  string        `json:"-"`
	ContentType   string        `json:"content_type"`
	FetchedAt     time.Time     `json:"fetched_at"`
	FetchDuration time.Duration `json:"fetch_duration"`
	FetcherUsed   string        `json:"fetcher_used"`
	Error         string        `json:"error,omitempty"`
	Depth         int           `json:"depth"`
	ResponseSize  int           `json:"response_size"`
}

// HTML returns the rendered document if a browser produced one, the raw
// response body otherwise.
func (p *PageData) HTML() string {
	if p.RenderedHTML != "" {
		return p.RenderedHTML
	}
	return p.RawHTML
}

// BaseURL returns the URL relative links on the page resolve against.
func (p *PageData) BaseURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}

// BuildSummary is the aggregated outcome of an exhaustive crawl.
type BuildSummary struct {
	RootURL         string        `json:"root_url"`
	AreaName        string        `json:"area_name"`
	AreaID          uint          `json:"area_id"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
	Duration        time.Duration `json:"duration"`
	AreasVisited    int           `json:"areas_visited"`
	LeavesVisited   int           `json:"leaves_visited"`
	RoutesPersisted int           `json:"routes_persisted"`
	RoutesSkipped   int           `json:"routes_skipped"`
	RoutesFailed    int           `json:"routes_failed"`
	ImagesPersisted int           `json:"images_persisted"`
	// Err aggregates every per-branch failure; nil when the crawl was clean.
	Err error `json:"-"`
}

// ---------- Event Types ----------

// CrawlEvent represents a real-time event emitted by the crawler.
type CrawlEvent struct {
	Type    EventType
	URL     string
	Error   error
	Stats   *CrawlStats
	Message string
}

// EventType identifies the kind of event.
type EventType int

const (
	EventAreaVisited EventType = iota
	EventLeafReached
	EventRoutePersisted
	EventRouteSkipped
	EventRouteFailed
	EventPageError
	EventCrawlStarted
	EventCrawlFinished
)

// CrawlStats holds real-time crawl statistics.
type CrawlStats struct {
	PagesFetched    int           `json:"pages_fetched"`
	AreasVisited    int           `json:"areas_visited"`
	RoutesPersisted int           `json:"routes_persisted"`
	RoutesSkipped   int           `json:"routes_skipped"`
	RoutesFailed    int           `json:"routes_failed"`
	Elapsed         time.Duration `json:"elapsed"`
}

// ---------- Plugin Interfaces ----------

// Fetcher defines how pages are retrieved.
type Fetcher interface {
	// Name returns a human-readable identifier for this fetcher.
	Name() string

	// Fetch retrieves the page at the given URL.
	Fetch(ctx context.Context, url string, depth int) (*PageData, error)

	// Close releases any resources held by the fetcher.
	Close() error
}
