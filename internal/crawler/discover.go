package crawler

import (
	"context"
	"errors"
	"fmt"

	"github.com/ramkansal/routeguessr/internal/extractor"
	"github.com/ramkansal/routeguessr/internal/models"
	"github.com/ramkansal/routeguessr/internal/sampler"
	"github.com/ramkansal/routeguessr/pkg/plugin"
	"github.com/rs/zerolog"
)

// Discovery is one randomly chosen route with a photo, ready to be guessed.
type Discovery struct {
	ImageURL   string            `json:"image_url"`
	RouteLink  string            `json:"route_link"`
	RouteName  string            `json:"route_name"`
	AreaName   string            `json:"area_name"`
	AreaCoord  models.Coordinate `json:"area_coord"`
	RouteCoord models.Coordinate `json:"route_coord"`
}

// discovery is the context record of a single exploratory traversal.
type discovery struct {
	start   string
	fetch   plugin.Fetcher
	sampler *sampler.Sampler
	budget  *Budget
	log     zerolog.Logger

	root  *extractor.AreaInfo
	depth int
}

// Discover walks from startLink down one weighted random path to a leaf
// area, picks a route and one of its photos. A route without photos sends
// the walk back to startLink. The walk gives up with ErrNoRouteDiscovered
// once it has visited Config.CallBudget area pages.
func (c *Crawler) Discover(ctx context.Context, startLink string) (*Discovery, error) {
	d := &discovery{
		start:   startLink,
		fetch:   c.fetch,
		sampler: sampler.New(c.newRand()),
		budget:  NewBudget(c.config.CallBudget),
		log:     c.log.With().Str("start", startLink).Logger(),
	}

	state := atArea(startLink)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch state.Kind {
		case AtArea:
			if err := d.budget.Spend(); err != nil {
				d.log.Info().Int("steps", d.budget.Spent()).Msg("discovery gave up")
				return nil, fmt.Errorf("%w: %w", ErrNoRouteDiscovered, err)
			}
			state = d.stepArea(ctx, state.Link)

		case Leaf:
			result, err := d.walkRoutes(ctx, state)
			if errors.Is(err, ErrNoImagesFound) {
				d.log.Debug().Str("leaf", state.Link).Msg("route has no images, restarting")
				d.depth = 0
				state = atArea(d.start)
				continue
			}
			if err != nil {
				return nil, err
			}
			return result, nil

		case Failed:
			return nil, state.Err
		}
	}
}

// stepArea visits one area page and decides where the walk goes next.
func (d *discovery) stepArea(ctx context.Context, link string) State {
	doc, err := load(ctx, d.fetch, link, d.depth)
	if err != nil {
		return failed(link, err)
	}

	if d.root == nil {
		info, err := doc.AreaInfo()
		if err != nil {
			return failed(link, err)
		}
		d.root = &info
	}

	children, err := doc.ChildAreas()
	if err != nil {
		return failed(link, err)
	}
	if len(children) == 0 {
		return leaf(link, doc)
	}
	if extractor.TotalRoutes(children) == 0 {
		return failed(link, fmt.Errorf("%w under %s", ErrNoRoutesFound, link))
	}

	candidates := make([]sampler.Candidate, len(children))
	for i, child := range children {
		candidates[i] = sampler.Candidate{ID: child.Link, Weight: child.Weight}
	}
	next, err := d.sampler.Pick(candidates)
	if err != nil {
		return failed(link, err)
	}
	d.depth++
	return atArea(next)
}

// walkRoutes picks a route of the leaf and resolves one of its photos.
// Photos are checked before any other field is extracted.
func (d *discovery) walkRoutes(ctx context.Context, state State) (*Discovery, error) {
	links := state.Doc.RouteLinks()
	if len(links) == 0 {
		return nil, fmt.Errorf("%w on %s", ErrNoRoutesFound, state.Link)
	}
	routeLink, err := d.sampler.Uniform(links)
	if err != nil {
		return nil, err
	}

	route, err := load(ctx, d.fetch, routeLink, d.depth+1)
	if err != nil {
		return nil, err
	}
	thumbs := route.ThumbnailLinks()
	if len(thumbs) == 0 {
		return nil, ErrNoImagesFound
	}

	summary, err := route.RouteSummary()
	if err != nil {
		return nil, err
	}

	thumb, err := d.sampler.Uniform(thumbs)
	if err != nil {
		return nil, err
	}
	photo, err := load(ctx, d.fetch, thumb, d.depth+2)
	if err != nil {
		return nil, err
	}
	image, err := photo.MainPhoto()
	if err != nil {
		return nil, err
	}

	return &Discovery{
		ImageURL:   image,
		RouteLink:  routeLink,
		RouteName:  summary.Name,
		AreaName:   d.root.Name,
		AreaCoord:  d.root.Coord,
		RouteCoord: summary.Coord,
	}, nil
}
