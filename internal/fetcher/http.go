package fetcher

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/ramkansal/routeguessr/pkg/plugin"
)

// HTTPFetcher uses Colly for plain HTTP page fetching.
type HTTPFetcher struct {
	collector *colly.Collector
	userAgent string
}

// HTTPFetcherConfig holds configuration for the HTTP fetcher.
type HTTPFetcherConfig struct {
	UserAgent       string
	RespectRobots   bool
	Timeout         time.Duration
	MaxResponseSize int
	Proxy           string
	CustomHeaders   []string
}

// NewHTTPFetcher creates a new Colly-based HTTP fetcher.
func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	// Walks revisit pages on purpose (backtracking to the starting area,
	// repeated discoveries), so the shared visited store must not dedupe.
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
	)

	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	c.IgnoreRobotsTxt = !cfg.RespectRobots

	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}

	if cfg.Proxy != "" {
		_ = c.SetProxy(cfg.Proxy)
	}

	if cfg.MaxResponseSize > 0 {
		c.MaxBodySize = cfg.MaxResponseSize
	}

	if len(cfg.CustomHeaders) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for _, h := range cfg.CustomHeaders {
				parts := strings.SplitN(h, ":", 2)
				if len(parts) == 2 {
					r.Headers.Set(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
				}
			}
		})
	}

	return &HTTPFetcher{
		collector: c,
		userAgent: cfg.UserAgent,
	}
}

func (f *HTTPFetcher) Name() string { return "http" }

func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string, depth int) (*plugin.PageData, error) {
	start := time.Now()

	page := &plugin.PageData{
		URL:         targetURL,
		FinalURL:    targetURL,
		FetcherUsed: "http",
		FetchedAt:   start,
		Depth:       depth,
	}

	if err := ctx.Err(); err != nil {
		return page, err
	}

	// Clone the collector for this individual fetch so we get clean callbacks
	c := f.collector.Clone()
	c.Context = ctx

	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.RawHTML = string(r.Body)
		page.ResponseSize = len(r.Body)
		page.FinalURL = r.Request.URL.String()
		page.ContentType = r.Headers.Get("Content-Type")

		page.Headers = make(http.Header)
		for key, values := range *r.Headers {
			for _, v := range values {
				page.Headers.Add(key, v)
			}
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			page.StatusCode = r.StatusCode
			if r.Request != nil {
				page.FinalURL = r.Request.URL.String()
			}
		}
		page.Error = err.Error()
	})

	if err := c.Visit(targetURL); err != nil {
		page.Error = err.Error()
		page.FetchDuration = time.Since(start)
		return page, &NetworkError{URL: targetURL, StatusCode: page.StatusCode, Err: err}
	}

	c.Wait()

	page.FetchDuration = time.Since(start)

	if fetchErr != nil {
		return page, &NetworkError{URL: targetURL, StatusCode: page.StatusCode, Err: fetchErr}
	}

	return page, nil
}

func (f *HTTPFetcher) Close() error {
	return nil
}
