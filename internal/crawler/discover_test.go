package crawler

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/ramkansal/routeguessr/internal/extractor"
	"github.com/ramkansal/routeguessr/internal/fetcher"
	"github.com/ramkansal/routeguessr/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededRand() func() *rand.Rand {
	var n uint64
	return func() *rand.Rand {
		n++
		return rand.New(rand.NewPCG(42, n))
	}
}

func newTestCrawler(s *fakeSite, opts ...Option) *Crawler {
	cfg := DefaultConfig()
	cfg.RequestDelay = 0
	return New(cfg, s, nil, zerolog.Nop(), append([]Option{WithRand(seededRand())}, opts...)...)
}

func TestDiscoverFollowsWeights(t *testing.T) {
	s := newFakeSite()
	s.area("/area/root", "Sierra", child{"/area/a", 10}, child{"/area/b", 90})
	s.leaf("/area/a", "Alpha", "/route/a1")
	s.leaf("/area/b", "Bravo", "/route/b1")
	s.route("/route/a1", "Alpha One", "/photo/a1")
	s.route("/route/b1", "Bravo One", "/photo/b1")
	s.photo("/photo/a1", "https://cdn.test/a1.jpg")
	s.photo("/photo/b1", "https://cdn.test/b1.jpg")

	c := newTestCrawler(s)
	const trials = 1000
	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		d, err := c.Discover(context.Background(), site+"/area/root")
		require.NoError(t, err)
		counts[d.RouteName]++
	}

	assert.Equal(t, trials, counts["Alpha One"]+counts["Bravo One"])
	assert.InDelta(t, 0.90, float64(counts["Bravo One"])/trials, 0.05)
}

func TestDiscoverResult(t *testing.T) {
	s := newFakeSite()
	s.area("/area/root", "Sierra", child{"/area/a", 5})
	s.leaf("/area/a", "Alpha", "/route/a1")
	s.route("/route/a1", "Alpha One", "/photo/a1", "/photo/a2")
	s.photo("/photo/a1", "https://cdn.test/a1.jpg")
	s.photo("/photo/a2", "https://cdn.test/a2.jpg")

	d, err := newTestCrawler(s).Discover(context.Background(), site+"/area/root")
	require.NoError(t, err)

	assert.Equal(t, "Sierra", d.AreaName, "area is the starting area, not the leaf")
	assert.Equal(t, models.Coordinate{Lat: 37.5, Lon: -119.5}, d.AreaCoord)
	assert.Equal(t, site+"/route/a1", d.RouteLink)
	assert.Equal(t, "Alpha One", d.RouteName)
	assert.Equal(t, models.Coordinate{Lat: 37.7, Lon: -119.7}, d.RouteCoord)
	assert.Contains(t, []string{"https://cdn.test/a1.jpg", "https://cdn.test/a2.jpg"}, d.ImageURL)
}

func TestDiscoverLeafStart(t *testing.T) {
	s := newFakeSite()
	s.leaf("/area/crag", "Crag", "/route/r1")
	s.route("/route/r1", "Only Route", "/photo/p1")
	s.photo("/photo/p1", "https://cdn.test/p1.jpg")

	d, err := newTestCrawler(s).Discover(context.Background(), site+"/area/crag")
	require.NoError(t, err)
	assert.Equal(t, "Crag", d.AreaName)
	assert.Equal(t, []string{site + "/area/crag", site + "/route/r1", site + "/photo/p1"}, s.log(),
		"a leaf hands its own page to the route walker")
}

func TestDiscoverWithoutImagesExhaustsBudget(t *testing.T) {
	s := newFakeSite()
	s.area("/area/root", "Desert", child{"/area/a", 3})
	s.leaf("/area/a", "Alpha", "/route/bare")
	s.route("/route/bare", "Bare")

	_, err := newTestCrawler(s).Discover(context.Background(), site+"/area/root")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRouteDiscovered))
	assert.True(t, errors.Is(err, ErrCallBudgetExceeded))

	areaSteps := s.hitsFor(site+"/area/root") + s.hitsFor(site+"/area/a")
	assert.Equal(t, 10, areaSteps)
	assert.Equal(t, 5, s.hitsFor(site+"/area/root"), "every restart goes back to the starting area")
}

func TestDiscoverBudgetIsConfigurable(t *testing.T) {
	s := newFakeSite()
	s.leaf("/area/a", "Alpha", "/route/bare")
	s.route("/route/bare", "Bare")

	c := newTestCrawler(s)
	c.config.CallBudget = 3
	_, err := c.Discover(context.Background(), site+"/area/a")
	assert.True(t, errors.Is(err, ErrNoRouteDiscovered))
	assert.Equal(t, 3, s.hitsFor(site+"/area/a"))
}

func TestDiscoverFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *fakeSite)
		want  error
	}{
		{
			name:  "leaf without routes",
			setup: func(s *fakeSite) { s.leaf("/area/start", "Empty") },
			want:  ErrNoRoutesFound,
		},
		{
			name: "children advertise no routes",
			setup: func(s *fakeSite) {
				s.area("/area/start", "Zero", child{"/area/x", 0}, child{"/area/y", 0})
			},
			want: ErrNoRoutesFound,
		},
		{
			name:  "unreachable start",
			setup: func(s *fakeSite) {},
			want:  fetcher.ErrNetwork,
		},
		{
			name: "unreachable photo",
			setup: func(s *fakeSite) {
				s.leaf("/area/start", "Crag", "/route/r1")
				s.route("/route/r1", "Route", "/photo/missing")
			},
			want: fetcher.ErrNetwork,
		},
		{
			name: "route page missing gps",
			setup: func(s *fakeSite) {
				s.leaf("/area/start", "Crag", "/route/r1")
				s.pages[site+"/route/r1"] = `<h1>Route</h1><div class="col-xs-4"><a href="/photo/p">p</a></div>`
			},
			want: extractor.ErrFieldNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFakeSite()
			tt.setup(s)
			_, err := newTestCrawler(s).Discover(context.Background(), site+"/area/start")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.False(t, errors.Is(err, ErrNoRouteDiscovered))
		})
	}
}

func TestDiscoverCancelled(t *testing.T) {
	s := newFakeSite()
	s.leaf("/area/a", "Alpha", "/route/r1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestCrawler(s).Discover(ctx, site+"/area/a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.log())
}

func TestBudget(t *testing.T) {
	b := NewBudget(2)
	require.NoError(t, b.Spend())
	require.NoError(t, b.Spend())
	err := b.Spend()
	assert.ErrorIs(t, err, ErrCallBudgetExceeded)
	assert.Equal(t, 2, b.Spent())
}
