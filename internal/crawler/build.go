package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	cerrors "cloudeng.io/errors"
	"github.com/ramkansal/routeguessr/internal/extractor"
	"github.com/ramkansal/routeguessr/internal/fetcher"
	"github.com/ramkansal/routeguessr/internal/models"
	"github.com/ramkansal/routeguessr/pkg/plugin"
	"github.com/rs/zerolog"
)

// build is the context record of one exhaustive crawl.
type build struct {
	c       *Crawler
	fetch   plugin.Fetcher
	log     zerolog.Logger
	areaID  uint
	visited map[string]bool
	sum     *plugin.BuildSummary
	errs    cerrors.M
	tally   *tally
}

type frame struct {
	link  string
	doc   *extractor.Document
	depth int
}

// Build crawls every area and route under rootLink, one request at a time
// with Config.RequestDelay between fetches. The root area is stored first
// and every route found below it is attached to it. Routes without a
// resolvable photo are skipped. Failures of a single area, route or photo
// are recorded in the summary and never stop the rest of the crawl; the
// returned error is set only when the root area itself cannot be stored.
func (c *Crawler) Build(ctx context.Context, rootLink string) (*plugin.BuildSummary, error) {
	if c.store == nil {
		return nil, errors.New("build requires a store")
	}
	started := time.Now()
	b := &build{
		c:       c,
		fetch:   fetcher.NewThrottle(c.fetch, c.config.RequestDelay),
		log:     c.log.With().Str("root", rootLink).Logger(),
		visited: make(map[string]bool),
		sum:     &plugin.BuildSummary{RootURL: rootLink, StartedAt: started},
		tally:   &tally{started: started},
	}

	c.emit(plugin.CrawlEvent{
		Type:    plugin.EventCrawlStarted,
		URL:     rootLink,
		Message: fmt.Sprintf("Starting build of %s", rootLink),
	})

	root, err := b.persistRoot(ctx, rootLink)
	if err != nil {
		b.finish()
		return b.sum, err
	}
	b.walk(ctx, frame{link: rootLink, doc: root})

	b.finish()
	b.log.Info().
		Int("areas", b.sum.AreasVisited).
		Int("routes", b.sum.RoutesPersisted).
		Int("skipped", b.sum.RoutesSkipped).
		Int("failed", b.sum.RoutesFailed).
		Int("images", b.sum.ImagesPersisted).
		Dur("elapsed", b.sum.Duration).
		Msg("build finished")
	return b.sum, nil
}

// persistRoot stores the root area. Its route total is the sum of what its
// immediate children advertise.
func (b *build) persistRoot(ctx context.Context, link string) (*extractor.Document, error) {
	doc, err := load(ctx, b.fetch, link, 0)
	b.tally.add(func(s *plugin.CrawlStats) { s.PagesFetched++ })
	if err != nil {
		return nil, fmt.Errorf("root area: %w", err)
	}
	info, err := doc.AreaInfo()
	if err != nil {
		return nil, fmt.Errorf("root area: %w", err)
	}
	children, err := doc.ChildAreas()
	if err != nil {
		return nil, fmt.Errorf("root area: %w", err)
	}

	area, err := models.NewArea(info.Name, info.Link, info.Coord, extractor.TotalRoutes(children))
	if err != nil {
		return nil, err
	}
	id, err := b.c.store.UpsertArea(ctx, area)
	if err != nil {
		return nil, err
	}
	b.areaID = id
	b.sum.AreaName = area.Name
	b.sum.AreaID = id
	b.log.Info().Str("area", area.Name).Uint("area_id", id).Int("total_routes", area.TotalRoutes).Msg("root area stored")
	return doc, nil
}

// walk visits the area tree depth-first, children in page order.
func (b *build) walk(ctx context.Context, root frame) {
	stack := []frame{root}
	for len(stack) > 0 {
		if ctx.Err() != nil {
			b.errs.Append(ctx.Err())
			return
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if b.visited[f.link] {
			continue
		}
		b.visited[f.link] = true

		if f.doc == nil {
			doc, err := load(ctx, b.fetch, f.link, f.depth)
			b.tally.add(func(s *plugin.CrawlStats) { s.PagesFetched++ })
			if err != nil {
				b.fail(f.link, fmt.Errorf("area %s: %w", f.link, err))
				continue
			}
			f.doc = doc
		}

		b.sum.AreasVisited++
		b.tally.add(func(s *plugin.CrawlStats) { s.AreasVisited++ })
		b.c.emit(plugin.CrawlEvent{Type: plugin.EventAreaVisited, URL: f.link, Stats: b.tally.snapshot()})

		children, err := f.doc.ChildAreas()
		if err != nil {
			b.fail(f.link, err)
			continue
		}
		if len(children) == 0 {
			b.walkRoutes(ctx, f)
			continue
		}
		for i := len(children) - 1; i >= 0; i-- {
			if !b.visited[children[i].Link] {
				stack = append(stack, frame{link: children[i].Link, depth: f.depth + 1})
			}
		}
	}
}

// walkRoutes handles every route of a leaf area independently.
func (b *build) walkRoutes(ctx context.Context, f frame) {
	b.sum.LeavesVisited++
	links := f.doc.RouteLinks()
	b.c.emit(plugin.CrawlEvent{
		Type:    plugin.EventLeafReached,
		URL:     f.link,
		Message: fmt.Sprintf("%d routes", len(links)),
	})
	if len(links) == 0 {
		b.log.Debug().Str("leaf", f.link).Msg("leaf lists no routes")
		return
	}

	for _, link := range links {
		if ctx.Err() != nil {
			return
		}
		if b.visited[link] {
			continue
		}
		b.visited[link] = true

		images, err := b.route(ctx, link, f.depth+1)
		switch {
		case errors.Is(err, ErrNoImagesFound):
			b.sum.RoutesSkipped++
			b.tally.add(func(s *plugin.CrawlStats) { s.RoutesSkipped++ })
			b.c.emit(plugin.CrawlEvent{Type: plugin.EventRouteSkipped, URL: link, Stats: b.tally.snapshot()})
		case err != nil:
			b.sum.RoutesFailed++
			b.tally.add(func(s *plugin.CrawlStats) { s.RoutesFailed++ })
			b.errs.Append(fmt.Errorf("route %s: %w", link, err))
			b.log.Warn().Err(err).Str("route", link).Msg("route failed")
			b.c.emit(plugin.CrawlEvent{Type: plugin.EventRouteFailed, URL: link, Error: err, Stats: b.tally.snapshot()})
		default:
			b.sum.RoutesPersisted++
			b.sum.ImagesPersisted += images
			b.tally.add(func(s *plugin.CrawlStats) { s.RoutesPersisted++ })
			b.c.emit(plugin.CrawlEvent{Type: plugin.EventRoutePersisted, URL: link, Stats: b.tally.snapshot()})
		}
	}
}

// route extracts a full route record, resolves all of its photos and
// stores both. It returns the number of new image rows.
func (b *build) route(ctx context.Context, link string, depth int) (int, error) {
	doc, err := load(ctx, b.fetch, link, depth)
	b.tally.add(func(s *plugin.CrawlStats) { s.PagesFetched++ })
	if err != nil {
		return 0, err
	}

	fields, err := doc.Route()
	if err != nil {
		return 0, err
	}
	route, err := models.NewRoute(fields)
	if err != nil {
		return 0, err
	}

	thumbs := doc.ThumbnailLinks()
	if len(thumbs) == 0 {
		return 0, ErrNoImagesFound
	}
	images := b.resolveImages(ctx, link, thumbs, depth+1)
	if len(images) == 0 {
		return 0, ErrNoImagesFound
	}

	routeID, err := b.c.store.UpsertRoute(ctx, route, b.areaID)
	if err != nil {
		return 0, err
	}
	return b.c.store.UpsertRouteImages(ctx, routeID, images)
}

// resolveImages turns thumbnail links into full-resolution image URLs.
// A photo page that fails is recorded and the rest are still tried.
func (b *build) resolveImages(ctx context.Context, routeLink string, thumbs []string, depth int) []string {
	var images []string
	for _, thumb := range thumbs {
		doc, err := load(ctx, b.fetch, thumb, depth)
		b.tally.add(func(s *plugin.CrawlStats) { s.PagesFetched++ })
		if err == nil {
			var image string
			if image, err = doc.MainPhoto(); err == nil {
				images = append(images, image)
				continue
			}
		}
		b.errs.Append(fmt.Errorf("photo %s of %s: %w", thumb, routeLink, err))
		b.log.Debug().Err(err).Str("photo", thumb).Msg("photo failed")
	}
	return images
}

func (b *build) fail(link string, err error) {
	b.errs.Append(err)
	b.log.Warn().Err(err).Str("url", link).Msg("area failed")
	b.c.emit(pageError(link, err))
}

func (b *build) finish() {
	b.sum.FinishedAt = time.Now()
	b.sum.Duration = b.sum.FinishedAt.Sub(b.sum.StartedAt)
	b.sum.Err = b.errs.Err()
	b.c.emit(plugin.CrawlEvent{
		Type:  plugin.EventCrawlFinished,
		URL:   b.sum.RootURL,
		Stats: b.tally.snapshot(),
		Message: fmt.Sprintf("Build complete. %d routes stored, %d skipped, %d failed.",
			b.sum.RoutesPersisted, b.sum.RoutesSkipped, b.sum.RoutesFailed),
	})
}
