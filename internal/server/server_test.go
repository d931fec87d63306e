package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cerrors "cloudeng.io/errors"
	"github.com/ramkansal/routeguessr/internal/crawler"
	"github.com/ramkansal/routeguessr/internal/fetcher"
	"github.com/ramkansal/routeguessr/internal/jobs"
	"github.com/ramkansal/routeguessr/internal/models"
	"github.com/ramkansal/routeguessr/internal/store"
	"github.com/ramkansal/routeguessr/pkg/plugin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDiscoverer struct {
	result *crawler.Discovery
	err    error
}

func (f fakeDiscoverer) Discover(context.Context, string) (*crawler.Discovery, error) {
	return f.result, f.err
}

type fakeBuilder struct {
	sum *plugin.BuildSummary
	err error
}

func (f fakeBuilder) Build(_ context.Context, root string) (*plugin.BuildSummary, error) {
	if f.sum != nil {
		f.sum.RootURL = root
	}
	return f.sum, f.err
}

func openStore(t *testing.T) *store.GormStore {
	t.Helper()
	st, err := store.Open(store.DriverSQLite,
		fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", strings.ReplaceAll(t.Name(), "/", "_")), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestServer(t *testing.T, d Discoverer, b Builder) (*Server, *jobs.Registry, *store.GormStore) {
	t.Helper()
	reg := jobs.NewRegistry(context.Background(), zerolog.Nop())
	st := openStore(t)
	return New(d, b, reg, st, zerolog.Nop()), reg, st
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(w.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t, fakeDiscoverer{}, fakeBuilder{})
	w, body := do(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestDiscover(t *testing.T) {
	found := &crawler.Discovery{
		ImageURL:   "https://cdn.test/1.jpg",
		RouteLink:  "https://site.test/route/1",
		RouteName:  "Snake Dike",
		AreaName:   "Yosemite",
		AreaCoord:  models.Coordinate{Lat: 37.7, Lon: -119.6},
		RouteCoord: models.Coordinate{Lat: 37.74, Lon: -119.53},
	}

	t.Run("found", func(t *testing.T) {
		s, _, _ := newTestServer(t, fakeDiscoverer{result: found}, fakeBuilder{})
		w, body := do(t, s, http.MethodGet, "/api/discover?area=https://site.test/area/1", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Snake Dike", body["route_name"])
		assert.Equal(t, "Yosemite", body["area_name"])

		coord, ok := body["route_coord"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Point", coord["type"])
		assert.Equal(t, []any{-119.53, 37.74}, coord["coordinates"])
	})

	tests := []struct {
		name string
		path string
		err  error
		want int
	}{
		{"missing area", "/api/discover", nil, http.StatusBadRequest},
		{"budget exhausted", "/api/discover?area=x", fmt.Errorf("%w: %w", crawler.ErrNoRouteDiscovered, crawler.ErrCallBudgetExceeded), http.StatusNotFound},
		{"no routes", "/api/discover?area=x", crawler.ErrNoRoutesFound, http.StatusNotFound},
		{"network", "/api/discover?area=x", &fetcher.NetworkError{URL: "x", StatusCode: 503}, http.StatusBadGateway},
		{"other", "/api/discover?area=x", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestServer(t, fakeDiscoverer{err: tt.err}, fakeBuilder{})
			w, body := do(t, s, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestBuildJobs(t *testing.T) {
	sum := &plugin.BuildSummary{AreaName: "Yosemite", RoutesPersisted: 2}
	var m cerrors.M
	m.Append(errors.New("route r4: field \"grade\" not found"))
	sum.Err = m.Err()

	s, reg, _ := newTestServer(t, fakeDiscoverer{}, fakeBuilder{sum: sum})

	w, _ := do(t, s, http.MethodPost, "/api/builds", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := do(t, s, http.MethodPost, "/api/builds", `{"area":"https://site.test/area/root"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	reg.Wait()

	w, body = do(t, s, http.MethodGet, "/api/builds/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(jobs.StateComplete), body["state"])
	result, ok := body["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://site.test/area/root", result["root_url"])
	assert.Equal(t, float64(2), result["routes_persisted"])
	assert.Len(t, result["errors"], 1)

	w, _ = do(t, s, http.MethodGet, "/api/builds/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBuildJobFailure(t *testing.T) {
	s, reg, _ := newTestServer(t, fakeDiscoverer{}, fakeBuilder{err: errors.New("root area unreachable")})

	_, body := do(t, s, http.MethodPost, "/api/builds", `{"area":"https://site.test/area/root"}`)
	reg.Wait()

	_, body = do(t, s, http.MethodGet, "/api/builds/"+body["id"].(string), "")
	assert.Equal(t, string(jobs.StateError), body["state"])
	assert.Equal(t, "root area unreachable", body["error"])
}

func TestListAreasAndStats(t *testing.T) {
	s, _, st := newTestServer(t, fakeDiscoverer{}, fakeBuilder{})
	area, err := models.NewArea("Joshua Tree", "https://site.test/area/jt", models.Coordinate{Lat: 34, Lon: -116}, 12)
	require.NoError(t, err)
	_, err = st.UpsertArea(context.Background(), area)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/areas", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var areas []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &areas))
	require.Len(t, areas, 1)
	assert.Equal(t, "Joshua Tree", areas[0]["name"])
	assert.Equal(t, float64(12), areas[0]["total_routes"])
	loc, ok := areas[0]["location"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{float64(-116), float64(34)}, loc["coordinates"])

	w2, body := do(t, s, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, float64(1), body["areas"])
}
