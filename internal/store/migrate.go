package store

import (
	"context"
	"fmt"

	"github.com/ramkansal/routeguessr/internal/models"
	"github.com/rs/zerolog"
)

// MigrateSummary counts what Migrate copied and what it had to skip.
type MigrateSummary struct {
	Areas    int `json:"areas"`
	Routes   int `json:"routes"`
	Images   int `json:"images"`
	Details  int `json:"details"`
	Comments int `json:"comments"`
	Orphans  int `json:"orphans"`
}

// Migrate copies every record from src into dst, parents first. Ids are not
// preserved: each parent's new id is learned from its upsert and child
// references are rewritten through it. Children whose parent is missing are
// skipped with a warning. Running it twice yields the same destination.
func Migrate(ctx context.Context, src, dst Store, log zerolog.Logger) (*MigrateSummary, error) {
	sum := &MigrateSummary{}

	areas, err := src.ListAreas(ctx)
	if err != nil {
		return sum, fmt.Errorf("list areas: %w", err)
	}
	areaIDs := make(map[uint]uint, len(areas))
	for i := range areas {
		a := areas[i]
		id, err := dst.UpsertArea(ctx, &a)
		if err != nil {
			return sum, fmt.Errorf("copy area %q: %w", a.Name, err)
		}
		areaIDs[areas[i].ID] = id
		sum.Areas++
	}
	log.Info().Int("areas", sum.Areas).Msg("areas migrated")

	routes, err := src.ListRoutes(ctx)
	if err != nil {
		return sum, fmt.Errorf("list routes: %w", err)
	}
	routeIDs := make(map[uint]uint, len(routes))
	for i := range routes {
		r := routes[i]
		areaID, ok := areaIDs[r.AreaID]
		if !ok {
			log.Warn().Str("route", r.Link).Uint("area_id", r.AreaID).Msg("skipping route with no migrated area")
			sum.Orphans++
			continue
		}
		id, err := dst.UpsertRoute(ctx, &r, areaID)
		if err != nil {
			return sum, fmt.Errorf("copy route %q: %w", r.Link, err)
		}
		routeIDs[routes[i].ID] = id
		sum.Routes++
	}
	log.Info().Int("routes", sum.Routes).Msg("routes migrated")

	images, err := src.ListRouteImages(ctx)
	if err != nil {
		return sum, fmt.Errorf("list images: %w", err)
	}
	byRoute := make(map[uint][]string)
	var order []uint
	for _, img := range images {
		routeID, ok := routeIDs[img.RouteID]
		if !ok {
			log.Warn().Str("image", img.Link).Uint("route_id", img.RouteID).Msg("skipping image with no migrated route")
			sum.Orphans++
			continue
		}
		if _, seen := byRoute[routeID]; !seen {
			order = append(order, routeID)
		}
		byRoute[routeID] = append(byRoute[routeID], img.Link)
	}
	for _, routeID := range order {
		if _, err := dst.UpsertRouteImages(ctx, routeID, byRoute[routeID]); err != nil {
			return sum, fmt.Errorf("copy images of route %d: %w", routeID, err)
		}
		sum.Images += len(byRoute[routeID])
	}
	log.Info().Int("images", sum.Images).Msg("images migrated")

	if err := migrateText(ctx, src, dst, routeIDs, sum, log); err != nil {
		return sum, err
	}
	return sum, nil
}

func migrateText(ctx context.Context, src, dst Store, routeIDs map[uint]uint, sum *MigrateSummary, log zerolog.Logger) error {
	details, err := src.ListRouteDetails(ctx)
	if err != nil {
		return fmt.Errorf("list details: %w", err)
	}
	for _, d := range details {
		routeID, ok := routeIDs[d.RouteID]
		if !ok {
			log.Warn().Uint("route_id", d.RouteID).Msg("skipping detail with no migrated route")
			sum.Orphans++
			continue
		}
		copied := models.RouteDetail{
			RouteID:     routeID,
			Description: d.Description,
			Location:    d.Location,
			Protection:  d.Protection,
		}
		if err := dst.UpsertRouteDetail(ctx, &copied); err != nil {
			return fmt.Errorf("copy detail of route %d: %w", d.RouteID, err)
		}
		sum.Details++
	}

	comments, err := src.ListRouteComments(ctx)
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}
	for _, c := range comments {
		routeID, ok := routeIDs[c.RouteID]
		if !ok {
			log.Warn().Uint("route_id", c.RouteID).Msg("skipping comment with no migrated route")
			sum.Orphans++
			continue
		}
		if _, err := dst.AddRouteComments(ctx, routeID, []string{c.Text}); err != nil {
			return fmt.Errorf("copy comment of route %d: %w", c.RouteID, err)
		}
		sum.Comments++
	}
	return nil
}
