package crawler

import "time"

// Config holds all configuration for the crawler.
type Config struct {
	// Traversal control
	CallBudget   int           // area steps allowed per discovery
	RequestDelay time.Duration // pause enforced between fetches of a build
	EnrichLimit  int           // routes handled per enrich run, 0 for all

	// Request options
	UserAgent       string
	Timeout         time.Duration
	MaxResponseSize int
	Proxy           string
	CustomHeaders   []string
	RespectRobots   bool
	FetcherMode     FetcherMode

	// Browser fetcher
	BrowserTimeout time.Duration
	PageTimeout    time.Duration
}

// FetcherMode controls which fetcher to use.
type FetcherMode string

const (
	FetcherHTTP    FetcherMode = "http"
	FetcherBrowser FetcherMode = "browser"
)

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		CallBudget:      10,
		RequestDelay:    4 * time.Second,
		UserAgent:       "routeguessr/1.0",
		Timeout:         15 * time.Second,
		MaxResponseSize: 4194304, // 4MB
		RespectRobots:   true,
		FetcherMode:     FetcherHTTP,
		BrowserTimeout:  30 * time.Second,
		PageTimeout:     15 * time.Second,
	}
}
