package crawler

import (
	"context"
	"errors"
	"fmt"

	cerrors "cloudeng.io/errors"
	"github.com/ramkansal/routeguessr/internal/extractor"
	"github.com/ramkansal/routeguessr/internal/fetcher"
	"github.com/ramkansal/routeguessr/internal/models"
	"github.com/ramkansal/routeguessr/pkg/plugin"
)

// EnrichSummary counts the outcome of an Enrich run.
type EnrichSummary struct {
	Routes   int   `json:"routes"`
	Details  int   `json:"details"`
	Comments int   `json:"comments"`
	Failed   int   `json:"failed"`
	Err      error `json:"-"`
}

// Enrich revisits stored routes that have no description yet and stores
// their description, location, protection and comments. Each route is
// handled independently; failures end up in the summary's Err.
func (c *Crawler) Enrich(ctx context.Context) (*EnrichSummary, error) {
	if c.store == nil {
		return nil, errors.New("enrich requires a store")
	}
	routes, err := c.store.RoutesWithoutDetail(ctx, c.config.EnrichLimit)
	if err != nil {
		return nil, fmt.Errorf("list routes without detail: %w", err)
	}

	f := fetcher.NewThrottle(c.fetch, c.config.RequestDelay)
	sum := &EnrichSummary{Routes: len(routes)}
	var errs cerrors.M

	for i := range routes {
		if err := ctx.Err(); err != nil {
			errs.Append(err)
			break
		}
		r := &routes[i]
		log := c.log.With().Str("route", r.Link).Logger()

		doc, err := load(ctx, f, r.Link, 0)
		if err != nil {
			sum.Failed++
			errs.Append(fmt.Errorf("route %s: %w", r.Link, err))
			continue
		}
		detail, err := doc.RouteDetail()
		if err != nil {
			sum.Failed++
			errs.Append(err)
			log.Debug().Err(err).Msg("no detail text")
			continue
		}
		err = c.store.UpsertRouteDetail(ctx, &models.RouteDetail{
			RouteID:     r.ID,
			Description: detail.Description,
			Location:    detail.Location,
			Protection:  detail.Protection,
		})
		if err != nil {
			sum.Failed++
			errs.Append(err)
			continue
		}
		sum.Details++

		n, err := c.comments(ctx, f, doc, r.ID)
		if err != nil {
			errs.Append(fmt.Errorf("comments of %s: %w", r.Link, err))
			log.Debug().Err(err).Msg("comments unavailable")
		}
		sum.Comments += n
	}

	sum.Err = errs.Err()
	c.log.Info().
		Int("routes", sum.Routes).
		Int("details", sum.Details).
		Int("comments", sum.Comments).
		Int("failed", sum.Failed).
		Msg("enrich finished")
	return sum, nil
}

// comments stores the comment thread of a route page.
func (c *Crawler) comments(ctx context.Context, f plugin.Fetcher, route *extractor.Document, routeID uint) (int, error) {
	id, err := route.ObjectID()
	if err != nil {
		return 0, err
	}
	link, err := extractor.CommentsURL(route.URL(), id)
	if err != nil {
		return 0, err
	}
	doc, err := load(ctx, f, link, 1)
	if err != nil {
		return 0, err
	}
	return c.store.AddRouteComments(ctx, routeID, doc.Comments())
}
