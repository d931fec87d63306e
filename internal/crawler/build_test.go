package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ramkansal/routeguessr/internal/extractor"
	"github.com/ramkansal/routeguessr/internal/fetcher"
	"github.com/ramkansal/routeguessr/internal/store"
	"github.com/ramkansal/routeguessr/pkg/plugin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *store.GormStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	st, err := store.Open(store.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newBuildCrawler(s *fakeSite, st store.Store, opts ...Option) *Crawler {
	cfg := DefaultConfig()
	cfg.RequestDelay = 0
	return New(cfg, s, st, zerolog.Nop(), opts...)
}

// buildSite is a three level tree:
//
//	root ─┬─ a (leaf): r1 two photos, r2 no photos
//	      └─ b ── b1 (leaf): r3 one good and one broken photo, r4 no grade
func buildSite() *fakeSite {
	s := newFakeSite()
	s.area("/area/root", "Yosemite", child{"/area/a", 2}, child{"/area/b", 40})
	s.leaf("/area/a", "Alpha", "/route/r1", "/route/r2")
	s.area("/area/b", "Bravo", child{"/area/b1", 40})
	s.leaf("/area/b1", "Bravo One", "/route/r3", "/route/r4")

	s.route("/route/r1", "Route One", "/photo/11", "/photo/12")
	s.route("/route/r2", "Route Two")
	s.route("/route/r3", "Route Three", "/photo/31", "/photo/missing")
	s.pages[site+"/route/r4"] = `<h1>Route Four</h1><div class="col-xs-4"><a href="/photo/41">p</a></div>` + gpsRow(1, 1)

	s.photo("/photo/11", "https://cdn.test/11.jpg")
	s.photo("/photo/12", "https://cdn.test/12.jpg")
	s.photo("/photo/31", "https://cdn.test/31.jpg")
	s.photo("/photo/41", "https://cdn.test/41.jpg")
	return s
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	s := buildSite()
	st := openStore(t)

	sum, err := newBuildCrawler(s, st).Build(ctx, site+"/area/root")
	require.NoError(t, err)

	assert.Equal(t, "Yosemite", sum.AreaName)
	assert.NotZero(t, sum.AreaID)
	assert.Equal(t, 4, sum.AreasVisited)
	assert.Equal(t, 2, sum.LeavesVisited)
	assert.Equal(t, 2, sum.RoutesPersisted)
	assert.Equal(t, 1, sum.RoutesSkipped)
	assert.Equal(t, 1, sum.RoutesFailed)
	assert.Equal(t, 3, sum.ImagesPersisted)

	require.Error(t, sum.Err, "per-branch failures are reported")
	assert.True(t, errors.Is(sum.Err, fetcher.ErrNetwork), "broken photo: %v", sum.Err)
	assert.True(t, errors.Is(sum.Err, extractor.ErrFieldNotFound), "route without grade: %v", sum.Err)

	t.Run("root area only, with advertised total", func(t *testing.T) {
		areas, err := st.ListAreas(ctx)
		require.NoError(t, err)
		require.Len(t, areas, 1)
		assert.Equal(t, "Yosemite", areas[0].Name)
		assert.Equal(t, 42, areas[0].TotalRoutes)
	})

	t.Run("routes without images are not stored", func(t *testing.T) {
		routes, err := st.ListRoutes(ctx)
		require.NoError(t, err)
		var names []string
		for _, r := range routes {
			names = append(names, r.Name)
			assert.Equal(t, sum.AreaID, r.AreaID)
		}
		assert.ElementsMatch(t, []string{"Route One", "Route Three"}, names)

		images, err := st.ListRouteImages(ctx)
		require.NoError(t, err)
		assert.Len(t, images, 3)
	})

	t.Run("depth first in page order", func(t *testing.T) {
		var areas []string
		for _, u := range s.log() {
			if strings.Contains(u, "/area/") {
				areas = append(areas, strings.TrimPrefix(u, site))
			}
		}
		assert.Equal(t, []string{"/area/root", "/area/a", "/area/b", "/area/b1"}, areas)
	})
}

func TestBuildIsRepeatable(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)

	for i := 0; i < 2; i++ {
		_, err := newBuildCrawler(buildSite(), st).Build(ctx, site+"/area/root")
		require.NoError(t, err)
	}

	counts, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Areas)
	assert.Equal(t, int64(2), counts.Routes)
	assert.Equal(t, int64(3), counts.Images)
}

func TestBuildVisitsSharedChildOnce(t *testing.T) {
	s := newFakeSite()
	s.area("/area/root", "Loop", child{"/area/a", 1}, child{"/area/b", 1})
	s.area("/area/a", "A", child{"/area/root", 1}, child{"/area/b", 1})
	s.leaf("/area/b", "B", "/route/r1")
	s.route("/route/r1", "Route", "/photo/p1")
	s.photo("/photo/p1", "https://cdn.test/p1.jpg")

	sum, err := newBuildCrawler(s, openStore(t)).Build(context.Background(), site+"/area/root")
	require.NoError(t, err)
	assert.Equal(t, 3, sum.AreasVisited)
	assert.Equal(t, 1, s.hitsFor(site+"/area/root"))
	assert.Equal(t, 1, s.hitsFor(site+"/area/b"))
	assert.Equal(t, 1, sum.RoutesPersisted)
	assert.NoError(t, sum.Err)
}

func TestBuildUnreachableAreaKeepsSiblings(t *testing.T) {
	ctx := context.Background()
	s := newFakeSite()
	s.area("/area/root", "Joshua Tree", child{"/area/gone", 5}, child{"/area/ok", 3})
	s.leaf("/area/ok", "Hidden Valley", "/route/r1")
	s.route("/route/r1", "Route One", "/photo/p1")
	s.photo("/photo/p1", "https://cdn.test/p1.jpg")
	st := openStore(t)

	sum, err := newBuildCrawler(s, st).Build(ctx, site+"/area/root")
	require.NoError(t, err)

	assert.Equal(t, 1, s.hitsFor(site+"/area/gone"))
	assert.Equal(t, 2, sum.AreasVisited)
	assert.Equal(t, 1, sum.LeavesVisited)
	assert.Equal(t, 1, sum.RoutesPersisted)
	require.Error(t, sum.Err)
	assert.ErrorIs(t, sum.Err, fetcher.ErrNetwork)
	assert.Contains(t, sum.Err.Error(), site+"/area/gone")

	routes, err := st.ListRoutes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "Route One", routes[0].Name)
}

func TestBuildRootFailure(t *testing.T) {
	s := newFakeSite()
	st := openStore(t)

	_, err := newBuildCrawler(s, st).Build(context.Background(), site+"/area/nowhere")
	assert.ErrorIs(t, err, fetcher.ErrNetwork)

	s.pages[site+"/area/nameless"] = `<html><body>` + gpsRow(1, 1) + `</body></html>`
	_, err = newBuildCrawler(s, st).Build(context.Background(), site+"/area/nameless")
	assert.ErrorIs(t, err, extractor.ErrFieldNotFound)

	counts, err := st.Counts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts.Areas)
}

func TestBuildRequiresStore(t *testing.T) {
	_, err := newBuildCrawler(newFakeSite(), nil).Build(context.Background(), site+"/area/root")
	assert.Error(t, err)
}

func TestBuildEvents(t *testing.T) {
	events := make(chan plugin.CrawlEvent, 100)
	_, err := newBuildCrawler(buildSite(), openStore(t), WithEvents(events)).Build(context.Background(), site+"/area/root")
	require.NoError(t, err)
	close(events)

	seen := map[plugin.EventType]int{}
	var last plugin.CrawlEvent
	for e := range events {
		seen[e.Type]++
		last = e
	}
	assert.Equal(t, 1, seen[plugin.EventCrawlStarted])
	assert.Equal(t, 4, seen[plugin.EventAreaVisited])
	assert.Equal(t, 2, seen[plugin.EventRoutePersisted])
	assert.Equal(t, 1, seen[plugin.EventRouteSkipped])
	assert.Equal(t, 1, seen[plugin.EventRouteFailed])
	assert.Equal(t, plugin.EventCrawlFinished, last.Type)
	require.NotNil(t, last.Stats)
	assert.Equal(t, 2, last.Stats.RoutesPersisted)
}
